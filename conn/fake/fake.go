// Package fake provides a scripted in-memory conn.Conn. It records every call so tests can assert exactly what was
// sent to the "server".
package fake

import (
	"context"
	"strconv"

	"github.com/squareup/pqstream/conn"
	"github.com/squareup/pqstream/errors"
)

// ExecFunc produces the reply to a synchronous execution. rowIndex is 0-based.
type ExecFunc func(rowIndex int, params [][]byte) *conn.Message

type Conn struct {
	conn.ActiveSlot

	Closed bool

	PrepareStatus    conn.ExecStatus
	PrepareErrorText string

	Description    *conn.StatementDescription
	DescribeStatus conn.ExecStatus

	FailSend          bool
	FailSingleRowMode bool

	// Rows are streamed back, one message each, after SendExecute.
	Rows [][][]byte
	// CmdTuples is reported on the completion message.
	CmdTuples string
	// FatalAfterRows, when >= 0, replaces the completion message with a fatal error after that many rows.
	FatalAfterRows int
	FatalErrorText string
	// TrailingMessages are queued after the completion message and must be drained by the reader.
	TrailingMessages int

	Exec ExecFunc

	// Calls records the name of every server bound call in order.
	Calls         []string
	Sent          [][][]byte
	SyncExecuted  [][][]byte
	SingleRowMode bool
	MessagesRead  int

	pending []*conn.Message
	errText string
}

var _ conn.Conn = &Conn{}

// NewConn creates a fake connection whose prepared statement is described by paramCount text parameters and the
// given result fields.
func NewConn(paramCount int, fields ...conn.FieldDescription) *Conn {
	paramOIDs := make([]uint32, paramCount)
	for i := range paramOIDs {
		paramOIDs[i] = 25
	}
	return &Conn{
		PrepareStatus:  conn.StatusCommandOK,
		DescribeStatus: conn.StatusCommandOK,
		Description:    &conn.StatementDescription{ParamOIDs: paramOIDs, Fields: fields},
		FatalAfterRows: -1,
	}
}

// Field is a shorthand for a conn.FieldDescription.
func Field(name string, typeOID uint32) conn.FieldDescription {
	return conn.FieldDescription{Name: name, TypeOID: typeOID}
}

// TextRow builds a row of text values. Use a nil pointer for SQL NULL.
func TextRow(values ...*string) [][]byte {
	row := make([][]byte, len(values))
	for i, v := range values {
		if v != nil {
			row[i] = []byte(*v)
		}
	}
	return row
}

// Str returns a pointer to s, for use with TextRow.
func Str(s string) *string {
	return &s
}

func (c *Conn) CheckReady() error {
	if c.Closed {
		return errors.NewConnectionClosedError("connection is closed")
	}
	return nil
}

func (c *Conn) PrepareStatement(_ context.Context, name string, sql string, nparams int) (conn.ExecStatus, error) {
	c.Calls = append(c.Calls, "prepare")
	if c.PrepareStatus != conn.StatusCommandOK {
		c.errText = c.PrepareErrorText
	}
	return c.PrepareStatus, nil
}

func (c *Conn) DescribeStatement(_ context.Context, name string) (*conn.StatementDescription, conn.ExecStatus, error) {
	c.Calls = append(c.Calls, "describe")
	if c.DescribeStatus != conn.StatusCommandOK {
		c.errText = "describe failed"
		return nil, c.DescribeStatus, nil
	}
	return c.Description, c.DescribeStatus, nil
}

func (c *Conn) SendExecute(_ context.Context, name string, params [][]byte, formats []int16) bool {
	c.Calls = append(c.Calls, "send")
	if c.FailSend {
		c.errText = "send failed"
		return false
	}
	c.Sent = append(c.Sent, params)
	c.pending = c.pending[:0]
	for i, row := range c.Rows {
		if i == c.FatalAfterRows {
			break
		}
		c.pending = append(c.pending, &conn.Message{Status: conn.StatusSingleTuple, Values: row})
	}
	if c.FatalAfterRows >= 0 {
		c.pending = append(c.pending, &conn.Message{
			Status: conn.StatusFatalError,
			Error:  &conn.ServerError{Severity: "ERROR", Message: c.FatalErrorText},
		})
		return true
	}
	final := &conn.Message{Status: conn.StatusCommandOK, CmdTuples: c.CmdTuples}
	if len(c.Description.Fields) > 0 {
		final.Status = conn.StatusTuplesOK
		if final.CmdTuples == "" {
			final.CmdTuples = strconv.Itoa(len(c.Rows))
		}
	}
	c.pending = append(c.pending, final)
	for i := 0; i < c.TrailingMessages; i++ {
		c.pending = append(c.pending, &conn.Message{Status: conn.StatusCommandOK})
	}
	return true
}

func (c *Conn) SetSingleRowMode() bool {
	c.Calls = append(c.Calls, "single_row_mode")
	if c.FailSingleRowMode {
		c.errText = "cannot set single row mode"
		return false
	}
	c.SingleRowMode = true
	return true
}

func (c *Conn) ExecuteSync(_ context.Context, name string, params [][]byte, formats []int16) *conn.Message {
	c.Calls = append(c.Calls, "exec")
	c.SyncExecuted = append(c.SyncExecuted, params)
	if c.Exec == nil {
		return &conn.Message{Status: conn.StatusCommandOK, CmdTuples: "1"}
	}
	msg := c.Exec(len(c.SyncExecuted)-1, params)
	if msg.Status == conn.StatusFatalError && msg.Error != nil {
		c.errText = msg.Error.Message
	}
	return msg
}

func (c *Conn) NextMessage(_ context.Context) *conn.Message {
	if len(c.pending) == 0 {
		return nil
	}
	c.MessagesRead++
	msg := c.pending[0]
	c.pending = c.pending[1:]
	if msg.Status == conn.StatusFatalError {
		c.errText = c.FatalErrorText
	}
	return msg
}

// Pending is the number of queued messages not yet read.
func (c *Conn) Pending() int {
	return len(c.pending)
}

func (c *Conn) ErrorText() string {
	return c.errText
}
