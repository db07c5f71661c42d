package result

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/squareup/pqstream/common"
	"github.com/squareup/pqstream/conn/fake"
	"github.com/squareup/pqstream/errors"
	"github.com/stretchr/testify/require"
)

func intRows(n int) [][][]byte {
	rows := make([][][]byte, n)
	for i := range rows {
		rows[i] = [][]byte{[]byte(strconv.Itoa(i))}
	}
	return rows
}

func prepareInts(t *testing.T, n int) (*ResultStream, *fake.Conn) {
	t.Helper()
	fc := fake.NewConn(0, fake.Field("i", 23))
	fc.Rows = intRows(n)
	rs, err := Prepare(context.Background(), fc, "select i from generate_series(0, n)")
	require.NoError(t, err)
	return rs, fc
}

func requireSequence(t *testing.T, col *common.Column, start int) {
	t.Helper()
	for i := 0; i < col.Len(); i++ {
		require.Equal(t, int64(start+i), col.Ints[i])
		require.False(t, col.IsNull(i))
	}
}

func TestFetchBoundedContinuesAcrossCalls(t *testing.T) {
	rs, _ := prepareInts(t, 250)
	defer rs.Close()

	var total int
	for _, expected := range []int{100, 100, 50, 0} {
		cols, err := Fetch(context.Background(), rs, 100)
		require.NoError(t, err)
		require.Equal(t, expected, cols.RowCount())
		require.Len(t, cols.Column(0).Ints, expected)
		requireSequence(t, cols.Column(0), total)
		total += expected
		require.Equal(t, total, rs.RowsFetched())
	}
	complete, err := rs.IsComplete(context.Background())
	require.NoError(t, err)
	require.True(t, complete)
}

func TestFetchUnboundedGrowsAndTrims(t *testing.T) {
	rs, _ := prepareInts(t, 250)
	defer rs.Close()

	cols, err := Fetch(context.Background(), rs, -1)
	require.NoError(t, err)
	require.Equal(t, 250, cols.RowCount())
	col := cols.Column(0)
	require.Len(t, col.Ints, 250)
	require.Equal(t, 250, cap(col.Ints))
	require.Len(t, col.Nulls, 250)
	require.Equal(t, 250, cap(col.Nulls))
	requireSequence(t, col, 0)
	require.Equal(t, 250, rs.RowsFetched())
}

func TestFetchUnboundedExactCapacity(t *testing.T) {
	rs, _ := prepareInts(t, 100)
	defer rs.Close()

	cols, err := Fetch(context.Background(), rs, -1)
	require.NoError(t, err)
	require.Equal(t, 100, cols.RowCount())
	requireSequence(t, cols.Column(0), 0)
}

func TestFetchSmallInitialCapacity(t *testing.T) {
	rs, _ := prepareInts(t, 9)
	defer rs.Close()

	m := &Materializer{InitialCapacity: 0}
	cols, err := m.Fetch(context.Background(), rs, -1)
	require.NoError(t, err)
	require.Equal(t, 9, cols.RowCount())
	requireSequence(t, cols.Column(0), 0)
}

func TestFetchZeroRows(t *testing.T) {
	rs, _ := prepareInts(t, 5)
	defer rs.Close()

	cols, err := Fetch(context.Background(), rs, 0)
	require.NoError(t, err)
	require.Equal(t, 0, cols.RowCount())
	require.Equal(t, 0, rs.RowsFetched())

	cols, err = Fetch(context.Background(), rs, -1)
	require.NoError(t, err)
	require.Equal(t, 5, cols.RowCount())
}

func TestFetchEmptyResult(t *testing.T) {
	rs, _ := prepareInts(t, 0)
	defer rs.Close()

	cols, err := Fetch(context.Background(), rs, -1)
	require.NoError(t, err)
	require.Equal(t, 0, cols.RowCount())
	require.Equal(t, 1, cols.ColumnCount())
	require.Equal(t, "i", cols.Schema[0].Name)
}

func TestFetchDecodesEveryType(t *testing.T) {
	fc := fake.NewConn(0,
		fake.Field("i", 20), fake.Field("r", 1700), fake.Field("s", 1043), fake.Field("b", 16),
		fake.Field("d", 1082), fake.Field("ts", 1114), fake.Field("tstz", 1184), fake.Field("t", 1083),
		fake.Field("bytes", 17))
	fc.Rows = [][][]byte{
		fake.TextRow(fake.Str("-7"), fake.Str("1.25"), fake.Str("abc"), fake.Str("t"), fake.Str("2024-02-29"),
			fake.Str("2024-03-15 13:45:30.5"), fake.Str("2024-03-15 13:45:30.5+00"), fake.Str("12:00:00"),
			fake.Str(`\x6869`)),
		fake.TextRow(nil, nil, nil, nil, nil, nil, nil, nil, nil),
	}
	rs, err := Prepare(context.Background(), fc, "select ...")
	require.NoError(t, err)
	defer rs.Close()

	cols, err := Fetch(context.Background(), rs, -1)
	require.NoError(t, err)
	require.Equal(t, 2, cols.RowCount())

	require.Equal(t, int64(-7), cols.Column(0).Ints[0])
	require.Equal(t, 1.25, cols.Column(1).Floats[0])
	require.Equal(t, "abc", cols.Column(2).Strings[0])
	require.Equal(t, common.LogicalTrue, cols.Column(3).Logicals[0])
	require.Equal(t, float64(19782), cols.Column(4).Floats[0])
	require.Equal(t, decodeTimestamp([]byte("2024-03-15 13:45:30.5"), time.Local), cols.Column(5).Floats[0])
	require.Equal(t, float64(1710510330.5), cols.Column(6).Floats[0])
	require.Equal(t, float64(12*3600), cols.Column(7).Floats[0])
	require.Equal(t, []byte("hi"), cols.Column(8).Blobs[0])

	for j := 0; j < cols.ColumnCount(); j++ {
		require.False(t, cols.Column(j).IsNull(0))
		require.True(t, cols.Column(j).IsNull(1))
	}
	require.Equal(t, "Date", cols.Schema[4].Type.Class())
	require.Equal(t, "POSIXct", cols.Schema[6].Type.Class())
	require.Equal(t, "hms", cols.Schema[7].Type.Class())
	require.Equal(t, "", cols.Schema[0].Type.Class())
}

func TestFetchNotBound(t *testing.T) {
	fc := fake.NewConn(1, fake.Field("i", 23))
	rs, err := Prepare(context.Background(), fc, "select $1")
	require.NoError(t, err)
	defer rs.Close()

	_, err = Fetch(context.Background(), rs, -1)
	require.True(t, errors.HasCode(err, errors.NotBound))
}

func TestFetchInactive(t *testing.T) {
	rs, _ := prepareInts(t, 3)
	rs.Close()

	_, err := Fetch(context.Background(), rs, -1)
	require.True(t, errors.HasCode(err, errors.InactiveStream))
}

func TestFetchInterrupted(t *testing.T) {
	rs, _ := prepareInts(t, 2500)
	defer rs.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fetch(ctx, rs, -1)
	require.True(t, errors.HasCode(err, errors.Interrupted))
	// cancellation is only noticed at the first checkpoint
	require.Equal(t, 1000, rs.RowsFetched())
}

func TestFetchServerErrorMidStream(t *testing.T) {
	fc := fake.NewConn(0, fake.Field("i", 23))
	fc.Rows = intRows(10)
	fc.FatalAfterRows = 4
	fc.FatalErrorText = "canceling statement due to statement timeout"
	rs, err := Prepare(context.Background(), fc, "select i from t")
	require.NoError(t, err)
	defer rs.Close()

	_, err = Fetch(context.Background(), rs, -1)
	require.True(t, errors.HasCode(err, errors.Protocol))
	require.Contains(t, err.Error(), "statement timeout")
}
