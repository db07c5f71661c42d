package result

import (
	"context"
	"testing"

	"github.com/squareup/pqstream/common"
	"github.com/squareup/pqstream/conn"
	"github.com/squareup/pqstream/conn/fake"
	"github.com/squareup/pqstream/errors"
	"github.com/stretchr/testify/require"
)

func TestDescribeDoesNotExecute(t *testing.T) {
	fc := fake.NewConn(0, fake.Field("id", 23), fake.Field("ip", 869))
	fc.Rows = intRows(3)

	desc, err := Describe(context.Background(), fc, "select id, ip from hosts")
	require.NoError(t, err)
	require.Equal(t, 0, desc.NumParams)
	require.Equal(t, common.ColumnSchema{
		{Name: "id", Type: common.TypeInteger},
		{Name: "ip", Type: common.TypeText},
	}, desc.Schema)
	require.Len(t, desc.Warnings, 1)
	require.True(t, errors.HasCode(desc.Warnings[0], errors.UnknownType))

	require.Empty(t, fc.Sent)
	require.NotContains(t, fc.Calls, "send")
	require.False(t, fc.HasActiveResult())
}

func TestDescribeWhileResultActive(t *testing.T) {
	rs, fc := prepareInts(t, 3)
	defer rs.Close()

	_, err := Describe(context.Background(), fc, "select 1")
	require.True(t, errors.HasCode(err, errors.ConcurrentResult))
	require.True(t, rs.Active())
}

func TestDescribePrepareFailure(t *testing.T) {
	fc := fake.NewConn(1)
	fc.PrepareStatus = conn.StatusFatalError
	fc.PrepareErrorText = `ERROR:  relation "nope" does not exist`

	_, err := Describe(context.Background(), fc, "select * from nope where id = $1")
	require.True(t, errors.HasCode(err, errors.Prepare))
	require.Contains(t, err.Error(), "nope")
	require.False(t, fc.HasActiveResult())
}
