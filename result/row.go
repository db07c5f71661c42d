package result

import (
	"context"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/squareup/pqstream/common"
	"github.com/squareup/pqstream/conn"
	"github.com/squareup/pqstream/errors"
)

// RowCursor holds one server reply: a single row in single row mode, the completion marker of a query or the
// completion of a command.
type RowCursor struct {
	msg *conn.Message
}

// newRowCursor takes the next reply off the connection. When that reply marks successful completion, the connection
// is drained of any remaining replies before returning, leaving it ready for the next query.
func newRowCursor(ctx context.Context, c conn.Conn) (*RowCursor, error) {
	msg := c.NextMessage(ctx)
	if msg == nil {
		return nil, errors.NewProtocolError("No active query")
	}
	if msg.Status.Succeeded() {
		drain(ctx, c)
	}
	if msg.Status == conn.StatusFatalError {
		drain(ctx, c)
		return nil, errors.NewProtocolError(serverErrorText(c, msg))
	}
	return &RowCursor{msg: msg}, nil
}

func drain(ctx context.Context, c conn.Conn) {
	for c.NextMessage(ctx) != nil {
	}
}

func serverErrorText(c conn.Conn, msg *conn.Message) string {
	text := c.ErrorText()
	if text == "" && msg != nil && msg.Error != nil {
		text = msg.Error.Message
	}
	return text
}

func (r *RowCursor) Status() conn.ExecStatus {
	return r.msg.Status
}

func (r *RowCursor) HasData() bool {
	return r.msg.Status == conn.StatusSingleTuple
}

// RowsAffected parses the affected row count of a completed command. It is 0 when the server did not report a count.
func (r *RowCursor) RowsAffected() int64 {
	n, err := strconv.ParseInt(r.msg.CmdTuples, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ExceptionInfo returns the server diagnostic fields attached to the reply, all empty if there are none.
func (r *RowCursor) ExceptionInfo() conn.ServerError {
	if r.msg.Error == nil {
		return conn.ServerError{}
	}
	return *r.msg.Error
}

func (r *RowCursor) ColumnCount() int {
	return len(r.msg.Values)
}

func (r *RowCursor) IsNull(col int) bool {
	return r.msg.Values[col] == nil
}

func (r *RowCursor) value(col int) []byte {
	return r.msg.Values[col]
}

func (r *RowCursor) GetInt(col int) int64 {
	if r.IsNull(col) {
		return common.NullInt
	}
	v, err := strconv.ParseInt(string(r.value(col)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (r *RowCursor) GetDouble(col int) float64 {
	if r.IsNull(col) {
		return common.NullFloat()
	}
	v, err := strconv.ParseFloat(string(r.value(col)), 64)
	if err != nil {
		return 0
	}
	return v
}

func (r *RowCursor) GetString(col int) string {
	if r.IsNull(col) {
		return ""
	}
	return string(r.value(col))
}

// GetBlob returns the bytes of a bytea value. Values in the server's hex output format are decoded, anything else is
// returned as sent.
func (r *RowCursor) GetBlob(col int) []byte {
	if r.IsNull(col) {
		return nil
	}
	val := r.value(col)
	if len(val) >= 2 && val[0] == '\\' && val[1] == 'x' {
		out := make([]byte, hex.DecodedLen(len(val)-2))
		if _, err := hex.Decode(out, val[2:]); err == nil {
			return out
		}
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out
}

func (r *RowCursor) GetLogical(col int) common.Logical {
	if r.IsNull(col) {
		return common.LogicalNull
	}
	val := r.value(col)
	if len(val) == 1 && val[0] == 't' {
		return common.LogicalTrue
	}
	return common.LogicalFalse
}

// GetDate returns the number of days since 1970-01-01.
func (r *RowCursor) GetDate(col int) float64 {
	if r.IsNull(col) {
		return common.NullFloat()
	}
	return decodeDate(r.value(col))
}

// GetTimestamp returns seconds since the epoch. If local is true the value is interpreted in the local time zone,
// otherwise as UTC.
func (r *RowCursor) GetTimestamp(col int, local bool) float64 {
	if r.IsNull(col) {
		return common.NullFloat()
	}
	loc := time.UTC
	if local {
		loc = time.Local
	}
	return decodeTimestamp(r.value(col), loc)
}

// GetTime returns seconds since midnight.
func (r *RowCursor) GetTime(col int) float64 {
	if r.IsNull(col) {
		return common.NullFloat()
	}
	return decodeTime(r.value(col))
}

// setValue decodes column col into the column buffer at rowIndex.
func (r *RowCursor) setValue(out *common.Column, rowIndex int, col int) {
	if r.IsNull(col) {
		out.SetNull(rowIndex)
		return
	}
	switch out.Type {
	case common.TypeLogical:
		out.SetLogical(rowIndex, r.GetLogical(col))
	case common.TypeInteger:
		out.SetInt64(rowIndex, r.GetInt(col))
	case common.TypeReal:
		out.SetFloat64(rowIndex, r.GetDouble(col))
	case common.TypeBlob:
		out.SetBlob(rowIndex, r.GetBlob(col))
	case common.TypeDate:
		out.SetFloat64(rowIndex, r.GetDate(col))
	case common.TypeTimestampTZ:
		out.SetFloat64(rowIndex, r.GetTimestamp(col, false))
	case common.TypeTimestamp:
		out.SetFloat64(rowIndex, r.GetTimestamp(col, true))
	case common.TypeTime:
		out.SetFloat64(rowIndex, r.GetTime(col))
	default:
		out.SetString(rowIndex, r.GetString(col))
	}
}

// The decoders below work on the server's fixed width text output:
//
//	date       YYYY-MM-DD
//	timestamp  YYYY-MM-DD HH:MM:SS[.ffffff][+TZ]
//	time       HH:MM:SS[.ffffff][+TZ]
//
// Fields are read at fixed byte offsets. Input shorter than the fixed part (e.g. "infinity") decodes as missing.

const (
	dateLen      = len("YYYY-MM-DD")
	timestampLen = len("YYYY-MM-DD HH:MM:SS")
	timeLen      = len("HH:MM:SS")
)

func digits2(b []byte, off int) int {
	return int(b[off]-'0')*10 + int(b[off+1]-'0')
}

func digits4(b []byte, off int) int {
	return digits2(b, off)*100 + digits2(b, off+2)
}

// leadingSeconds parses the seconds field starting at off, including any fraction, stopping at the first byte that
// is not part of the number (such as a time zone suffix).
func leadingSeconds(b []byte, off int) float64 {
	end := off
	for end < len(b) && (b[end] == '.' || (b[end] >= '0' && b[end] <= '9')) {
		end++
	}
	sec, err := strconv.ParseFloat(string(b[off:end]), 64)
	if err != nil {
		return 0
	}
	return sec
}

func decodeDate(b []byte) float64 {
	if len(b) < dateLen {
		return common.NullFloat()
	}
	year, month, day := digits4(b, 0), digits2(b, 5), digits2(b, 8)
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return float64(t.Unix()) / secondsPerDay
}

func decodeTimestamp(b []byte, loc *time.Location) float64 {
	if len(b) < timestampLen {
		return common.NullFloat()
	}
	year, month, day := digits4(b, 0), digits2(b, 5), digits2(b, 8)
	hour, minute := digits2(b, 11), digits2(b, 14)
	sec := leadingSeconds(b, 17)
	whole := int(sec)
	t := time.Date(year, time.Month(month), day, hour, minute, whole, 0, loc)
	return float64(t.Unix()) + (sec - float64(whole))
}

func decodeTime(b []byte) float64 {
	if len(b) < timeLen {
		return common.NullFloat()
	}
	hour, minute := digits2(b, 0), digits2(b, 3)
	return float64(hour*3600+minute*60) + leadingSeconds(b, 6)
}

const secondsPerDay = 24 * 60 * 60
