package pgwire

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/squareup/pqstream/common"
	"github.com/squareup/pqstream/conn/fake"
	"github.com/squareup/pqstream/errors"
	"github.com/squareup/pqstream/pgtest"
	"github.com/squareup/pqstream/result"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *Conn {
	t.Helper()
	pg := pgtest.RequirePostgres(t)
	ctx := context.Background()
	c, err := Connect(ctx, pg.DSN)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close(ctx)
	})
	exec(t, c, "SET TIME ZONE 'UTC'")
	return c
}

func exec(t *testing.T, c *Conn, sql string) int64 {
	t.Helper()
	rs, err := result.Prepare(context.Background(), c, sql)
	require.NoError(t, err)
	defer rs.Close()
	n, err := rs.RowsAffected(context.Background())
	require.NoError(t, err)
	return n
}

func TestIntegrationStreamsAllTypes(t *testing.T) {
	c := connect(t)
	ctx := context.Background()

	rs, err := result.Prepare(ctx, c, `SELECT 42::int4 AS i, 2.5::float8 AS r, 'abc'::text AS s, true AS b,
		'2024-02-29'::date AS d, '2024-03-15 13:45:30.5'::timestamptz AS tstz, '13:45:30.25'::time AS t,
		'\x6869'::bytea AS bytes, NULL::int8 AS n`)
	require.NoError(t, err)
	defer rs.Close()
	require.True(t, rs.Bound())

	cols, err := result.Fetch(ctx, rs, -1)
	require.NoError(t, err)
	require.Equal(t, 1, cols.RowCount())
	require.Equal(t, int64(42), cols.Column(0).Ints[0])
	require.Equal(t, 2.5, cols.Column(1).Floats[0])
	require.Equal(t, "abc", cols.Column(2).Strings[0])
	require.Equal(t, common.LogicalTrue, cols.Column(3).Logicals[0])
	require.Equal(t, float64(19782), cols.Column(4).Floats[0])
	expected := time.Date(2024, time.March, 15, 13, 45, 30, 0, time.UTC).Unix()
	require.Equal(t, float64(expected)+0.5, cols.Column(5).Floats[0])
	require.Equal(t, float64(13*3600+45*60)+30.25, cols.Column(6).Floats[0])
	require.Equal(t, []byte("hi"), cols.Column(7).Blobs[0])
	require.True(t, cols.Column(8).IsNull(0))

	complete, err := rs.IsComplete(ctx)
	require.NoError(t, err)
	require.True(t, complete)
}

func TestIntegrationPagedFetchAndBindRows(t *testing.T) {
	c := connect(t)
	ctx := context.Background()
	exec(t, c, "CREATE TEMP TABLE pq_items (id int4, label text)")

	rs, err := result.Prepare(ctx, c, "INSERT INTO pq_items VALUES ($1, $2)")
	require.NoError(t, err)
	ids := make([]*string, 250)
	labels := make([]*string, 250)
	for i := range ids {
		ids[i] = fake.Str(strconv.Itoa(i))
		if i%10 != 0 {
			labels[i] = fake.Str("label")
		}
	}
	require.NoError(t, rs.BindRows(ctx, [][]*string{ids, labels}))
	rs.Close()

	rs, err = result.Prepare(ctx, c, "SELECT id, label FROM pq_items WHERE id >= $1 ORDER BY id")
	require.NoError(t, err)
	defer rs.Close()
	require.NoError(t, rs.Bind(ctx, []*string{fake.Str("0")}))

	total := 0
	for {
		cols, err := result.Fetch(ctx, rs, 100)
		require.NoError(t, err)
		for i := 0; i < cols.RowCount(); i++ {
			require.Equal(t, int64(total+i), cols.Column(0).Ints[i])
			require.Equal(t, (total+i)%10 == 0, cols.Column(1).IsNull(i))
		}
		total += cols.RowCount()
		if cols.RowCount() < 100 {
			break
		}
	}
	require.Equal(t, 250, total)
	require.Equal(t, 250, rs.RowsFetched())
}

func TestIntegrationErrors(t *testing.T) {
	c := connect(t)
	ctx := context.Background()

	_, err := result.Prepare(ctx, c, "SELEC 1")
	require.True(t, errors.HasCode(err, errors.Prepare))
	require.Contains(t, err.Error(), "syntax error")

	first, err := result.Prepare(ctx, c, "SELECT 1")
	require.NoError(t, err)
	_, err = result.Prepare(ctx, c, "SELECT 2")
	require.True(t, errors.HasCode(err, errors.ConcurrentResult))
	require.True(t, first.Active())
	first.Close()

	rs, err := result.Prepare(ctx, c, "SELECT 1 / (g - 3) FROM generate_series(1, 5) g")
	require.NoError(t, err)
	_, err = result.Fetch(ctx, rs, -1)
	require.True(t, errors.HasCode(err, errors.Protocol))
	require.Contains(t, err.Error(), "division by zero")
	rs.Close()

	// the connection is usable after the failure
	rs, err = result.Prepare(ctx, c, "SELECT 7")
	require.NoError(t, err)
	cols, err := result.Fetch(ctx, rs, -1)
	require.NoError(t, err)
	require.Equal(t, int64(7), cols.Column(0).Ints[0])
	rs.Close()
}

func TestIntegrationUnknownTypeFallsBackToText(t *testing.T) {
	c := connect(t)
	ctx := context.Background()

	rs, err := result.Prepare(ctx, c, "SELECT '10.0.0.1'::inet AS addr")
	require.NoError(t, err)
	defer rs.Close()
	require.Len(t, rs.Warnings(), 1)

	cols, err := result.Fetch(ctx, rs, -1)
	require.NoError(t, err)
	require.Equal(t, common.TypeText, cols.Schema[0].Type)
	require.Equal(t, "10.0.0.1", cols.Column(0).Strings[0])
}
