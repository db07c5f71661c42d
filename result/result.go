package result

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/squareup/pqstream/common"
	"github.com/squareup/pqstream/conn"
	"github.com/squareup/pqstream/errors"
	"github.com/squareup/pqstream/interruptor"
)

// statementName is the unnamed prepared statement. It is replaced each time a statement is prepared on the
// connection, which is fine as only one ResultStream is ever active per connection.
const statementName = ""

// ResultStream owns one query from preparation until its rows are exhausted. It registers itself as the
// connection's active result and must be closed before another query can run on the same connection.
//
// Rows are pulled one at a time. The stream always holds the next unconsumed row (the lookahead) once it has been
// asked for it, so callers can ask whether there is more data without losing a row.
type ResultStream struct {
	conn     conn.Conn
	desc     *conn.StatementDescription
	nparams  int
	schema   common.ColumnSchema
	warnings []error
	bound    bool
	nrows    int
	nextRow  *RowCursor
}

// Prepare creates a ResultStream for sql on c. If the statement takes no parameters it is executed straight away.
func Prepare(ctx context.Context, c conn.Conn, sql string) (*ResultStream, error) {
	if err := c.CheckReady(); err != nil {
		return nil, err
	}
	rs := &ResultStream{conn: c}
	if err := c.RegisterActiveResult(rs); err != nil {
		// Leave the existing registration alone
		return nil, err
	}
	if err := rs.prepare(ctx, sql); err != nil {
		c.ClearActiveResult()
		return nil, err
	}
	return rs, nil
}

func (rs *ResultStream) prepare(ctx context.Context, sql string) error {
	if err := rs.describe(ctx, sql); err != nil {
		return err
	}
	if rs.nparams == 0 {
		return rs.Bind(ctx, nil)
	}
	return nil
}

// describe prepares sql and infers the schema of its result without executing it.
func (rs *ResultStream) describe(ctx context.Context, sql string) error {
	status, err := rs.conn.PrepareStatement(ctx, statementName, sql, 0)
	if err != nil {
		return errors.MaybeAddStack(err)
	}
	if status != conn.StatusCommandOK {
		return errors.NewPrepareError(rs.conn.ErrorText())
	}

	desc, status, err := rs.conn.DescribeStatement(ctx, statementName)
	if err != nil {
		return errors.MaybeAddStack(err)
	}
	if status != conn.StatusCommandOK || desc == nil {
		return errors.NewDescribeError(rs.conn.ErrorText())
	}
	rs.desc = desc
	rs.nparams = desc.NumParams()
	rs.schema, rs.warnings = inferSchema(desc.Fields)
	return nil
}

// inferSchema maps each field's type OID to a ColumnType. Unknown types become text and produce a warning.
func inferSchema(fields []conn.FieldDescription) (common.ColumnSchema, []error) {
	schema := make(common.ColumnSchema, len(fields))
	var warnings []error
	for i, f := range fields {
		colType, ok := common.ColumnTypeForOID(f.TypeOID)
		if !ok {
			w := errors.NewUnknownTypeWarning(f.TypeOID, f.Name)
			log.Warnf("%s (%s)", w.Error(), common.OIDTypeName(f.TypeOID))
			warnings = append(warnings, w)
		}
		schema[i] = common.ColumnInfo{Name: f.Name, Type: colType}
	}
	return schema, warnings
}

// Bind executes the statement with one value per parameter and switches the connection to single row mode. A nil
// param is sent as NULL.
func (rs *ResultStream) Bind(ctx context.Context, params []*string) error {
	if len(params) != rs.nparams {
		return errors.NewParamCountError(rs.nparams, len(params))
	}
	values := make([][]byte, len(params))
	for i, p := range params {
		values[i] = encodeParam(p)
	}
	if !rs.conn.SendExecute(ctx, statementName, values, textFormats(len(values))) {
		return errors.NewSendError()
	}
	if !rs.conn.SetSingleRowMode() {
		return errors.NewModeError()
	}
	rs.bound = true
	return nil
}

// BindRows executes the statement once per row of params, where params holds one column of values per parameter.
// Each execution completes before the next one starts and returns no rows. Execution stops at the first row that
// fails; rows already executed are not rolled back.
func (rs *ResultStream) BindRows(ctx context.Context, params [][]*string) error {
	if len(params) != rs.nparams {
		return errors.NewParamCountError(rs.nparams, len(params))
	}
	if rs.nparams == 0 {
		return nil
	}
	n := len(params[0])
	for j, col := range params {
		if len(col) != n {
			return errors.NewParamLengthError(j+1, n, len(col))
		}
	}

	formats := textFormats(rs.nparams)
	for i := 0; i < n; i++ {
		if err := interruptor.MaybeInterrupt(ctx, i); err != nil {
			return err
		}
		values := make([][]byte, rs.nparams)
		for j := range params {
			values[j] = encodeParam(params[j][i])
		}
		res := rs.conn.ExecuteSync(ctx, statementName, values, formats)
		if res == nil || !res.Status.Succeeded() {
			return errors.NewRowExecError(serverErrorText(rs.conn, res), i+1)
		}
	}
	return nil
}

func encodeParam(p *string) []byte {
	if p == nil {
		return nil
	}
	b := make([]byte, len(*p))
	copy(b, *p)
	return b
}

func textFormats(n int) []int16 {
	return make([]int16, n)
}

// NextRow returns the lookahead row, pulling it from the connection if it is not held yet. It does not consume the
// row; call Advance for that.
func (rs *ResultStream) NextRow(ctx context.Context) (*RowCursor, error) {
	if rs.nextRow != nil {
		return rs.nextRow, nil
	}
	row, err := newRowCursor(ctx, rs.conn)
	if err != nil {
		return nil, err
	}
	rs.nextRow = row
	rs.nrows++
	return row, nil
}

// Advance consumes the lookahead row so the next call to NextRow pulls a fresh one.
func (rs *ResultStream) Advance() {
	rs.nextRow = nil
}

func (rs *ResultStream) RowsAffected(ctx context.Context) (int64, error) {
	row, err := rs.NextRow(ctx)
	if err != nil {
		return 0, err
	}
	return row.RowsAffected(), nil
}

// RowsFetched is the number of rows the caller has consumed. A held lookahead row is not counted.
func (rs *ResultStream) RowsFetched() int {
	if rs.nextRow != nil {
		return rs.nrows - 1
	}
	return rs.nrows
}

func (rs *ResultStream) IsComplete(ctx context.Context) (bool, error) {
	row, err := rs.NextRow(ctx)
	if err != nil {
		return false, err
	}
	return !row.HasData(), nil
}

// Active is true while this stream is the connection's registered result.
func (rs *ResultStream) Active() bool {
	return rs.conn.CurrentResultIs(rs)
}

func (rs *ResultStream) Bound() bool {
	return rs.bound
}

func (rs *ResultStream) NumParams() int {
	return rs.nparams
}

func (rs *ResultStream) Schema() common.ColumnSchema {
	return rs.schema
}

// Warnings returns the unknown type warnings raised while inferring the schema.
func (rs *ResultStream) Warnings() []error {
	return rs.warnings
}

// ColumnInfo describes each result column by name and type label.
func (rs *ResultStream) ColumnInfo() (names []string, types []string) {
	names = rs.schema.Names()
	types = make([]string, len(rs.schema))
	for i, ci := range rs.schema {
		types[i] = ci.Type.Label()
	}
	return names, types
}

// Close releases the stream. It is safe to call more than once and on error paths, and never fails.
func (rs *ResultStream) Close() {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("failed to release result stream: %v", r)
		}
	}()
	if rs.Active() {
		rs.desc = nil
		rs.nextRow = nil
		rs.conn.ClearActiveResult()
	}
}
