// Package pgwire implements conn.Conn on top of a PostgreSQL wire protocol connection from pgconn.
//
// Results are always requested in text format. Rows of a query started with SendExecute are read from the network
// one at a time as NextMessage is called, so the whole result is never buffered client side.
package pgwire

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/pqstream/conn"
	"github.com/squareup/pqstream/errors"
)

type Conn struct {
	conn.ActiveSlot
	pg         *pgconn.PgConn
	statements map[string]*pgconn.StatementDescription
	reader     *pgconn.ResultReader
	errText    string
}

var _ conn.Conn = &Conn{}

// Connect opens a connection using a PostgreSQL connection string or URL.
func Connect(ctx context.Context, dsn string) (*Conn, error) {
	pg, err := pgconn.Connect(ctx, dsn)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return NewConn(pg), nil
}

func NewConn(pg *pgconn.PgConn) *Conn {
	return &Conn{pg: pg, statements: make(map[string]*pgconn.StatementDescription)}
}

func (c *Conn) Close(ctx context.Context) error {
	if c.reader != nil {
		if _, err := c.reader.Close(); err != nil {
			log.Debugf("failed to close in flight result %v", err)
		}
		c.reader = nil
	}
	return errors.WithStack(c.pg.Close(ctx))
}

// ClearActiveResult releases the registered result. A query that was not read to the end is drained so the
// connection can be used again.
func (c *Conn) ClearActiveResult() {
	if c.reader != nil {
		if _, err := c.reader.Close(); err != nil {
			log.Debugf("discarded in flight result with error %v", err)
		}
		c.reader = nil
	}
	c.ActiveSlot.ClearActiveResult()
}

func (c *Conn) CheckReady() error {
	if c.pg.IsClosed() {
		return errors.NewConnectionClosedError("connection is closed")
	}
	if c.reader == nil && c.pg.IsBusy() {
		return errors.NewConnectionClosedError("connection is busy")
	}
	return nil
}

func (c *Conn) PrepareStatement(ctx context.Context, name string, sql string, nparams int) (conn.ExecStatus, error) {
	sd, err := c.pg.Prepare(ctx, name, sql, nil)
	if err != nil {
		if !c.setServerError(err) {
			return conn.StatusFatalError, errors.WithStack(err)
		}
		return conn.StatusFatalError, nil
	}
	log.Tracef("prepared statement %q with %d params and %d fields", name, len(sd.ParamOIDs), len(sd.Fields))
	c.statements[name] = sd
	return conn.StatusCommandOK, nil
}

func (c *Conn) DescribeStatement(_ context.Context, name string) (*conn.StatementDescription, conn.ExecStatus, error) {
	sd, ok := c.statements[name]
	if !ok {
		c.errText = fmt.Sprintf("ERROR:  prepared statement %q does not exist", name)
		return nil, conn.StatusFatalError, nil
	}
	fields := make([]conn.FieldDescription, len(sd.Fields))
	for i, f := range sd.Fields {
		fields[i] = conn.FieldDescription{Name: f.Name, TypeOID: f.DataTypeOID}
	}
	paramOIDs := make([]uint32, len(sd.ParamOIDs))
	copy(paramOIDs, sd.ParamOIDs)
	return &conn.StatementDescription{ParamOIDs: paramOIDs, Fields: fields}, conn.StatusCommandOK, nil
}

func (c *Conn) SendExecute(ctx context.Context, name string, params [][]byte, formats []int16) bool {
	if c.reader != nil {
		c.errText = "another command is already in progress"
		return false
	}
	if c.pg.IsClosed() {
		c.errText = "connection is closed"
		return false
	}
	c.reader = c.pg.ExecPrepared(ctx, name, params, formats, nil)
	return true
}

// SetSingleRowMode reports whether a query is in flight. Rows of an in flight query are always read one at a time.
func (c *Conn) SetSingleRowMode() bool {
	return c.reader != nil
}

func (c *Conn) ExecuteSync(ctx context.Context, name string, params [][]byte, formats []int16) *conn.Message {
	if c.reader != nil {
		c.errText = "another command is already in progress"
		return &conn.Message{Status: conn.StatusFatalError}
	}
	res := c.pg.ExecPrepared(ctx, name, params, formats, nil).Read()
	if res.Err != nil {
		c.setServerError(res.Err)
		return &conn.Message{Status: conn.StatusFatalError, Error: serverError(res.Err)}
	}
	status := conn.StatusCommandOK
	if len(res.FieldDescriptions) > 0 {
		status = conn.StatusTuplesOK
	}
	return &conn.Message{Status: status, CmdTuples: cmdTuples(res.CommandTag)}
}

func (c *Conn) NextMessage(_ context.Context) *conn.Message {
	if c.reader == nil {
		return nil
	}
	if c.reader.NextRow() {
		// the reader reuses its buffers on the next read
		values := c.reader.Values()
		row := make([][]byte, len(values))
		for i, v := range values {
			if v != nil {
				row[i] = append([]byte{}, v...)
			}
		}
		return &conn.Message{Status: conn.StatusSingleTuple, Values: row}
	}
	fields := c.reader.FieldDescriptions()
	tag, err := c.reader.Close()
	c.reader = nil
	if err != nil {
		c.setServerError(err)
		return &conn.Message{Status: conn.StatusFatalError, Error: serverError(err)}
	}
	status := conn.StatusCommandOK
	if len(fields) > 0 {
		status = conn.StatusTuplesOK
	}
	return &conn.Message{Status: status, CmdTuples: cmdTuples(tag)}
}

func (c *Conn) ErrorText() string {
	return c.errText
}

// setServerError records the text of err in the server's error message layout. It returns false if err did not
// come from the server.
func (c *Conn) setServerError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		c.errText = err.Error()
		return false
	}
	sb := strings.Builder{}
	sb.WriteString(pgErr.Severity)
	sb.WriteString(":  ")
	sb.WriteString(pgErr.Message)
	if pgErr.Detail != "" {
		sb.WriteString("\nDETAIL:  ")
		sb.WriteString(pgErr.Detail)
	}
	if pgErr.Hint != "" {
		sb.WriteString("\nHINT:  ")
		sb.WriteString(pgErr.Hint)
	}
	c.errText = sb.String()
	return true
}

func serverError(err error) *conn.ServerError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return &conn.ServerError{Severity: "ERROR", Message: err.Error()}
	}
	return &conn.ServerError{
		Severity: pgErr.Severity,
		Message:  pgErr.Message,
		Detail:   pgErr.Detail,
		Hint:     pgErr.Hint,
	}
}

// cmdTuples extracts the row count from a command tag such as "INSERT 0 3" or "SELECT 10". Tags without a count
// yield the empty string.
func cmdTuples(tag pgconn.CommandTag) string {
	s := tag.String()
	idx := strings.LastIndexByte(s, ' ')
	if idx < 0 {
		return ""
	}
	count := s[idx+1:]
	if _, err := strconv.ParseInt(count, 10, 64); err != nil {
		return ""
	}
	return count
}
