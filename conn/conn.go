// Package conn defines the connection capabilities a result stream needs from the underlying wire protocol client.
//
// A Conn is used from a single goroutine. Every method that talks to the server blocks until the server has replied.
package conn

import (
	"context"
	"sync"

	"github.com/squareup/pqstream/errors"
)

// ExecStatus is the status of a server reply.
type ExecStatus int

const (
	StatusEmptyQuery ExecStatus = iota
	StatusCommandOK
	StatusTuplesOK
	StatusSingleTuple
	StatusNonFatalError
	StatusFatalError
)

func (s ExecStatus) String() string {
	switch s {
	case StatusEmptyQuery:
		return "EMPTY_QUERY"
	case StatusCommandOK:
		return "COMMAND_OK"
	case StatusTuplesOK:
		return "TUPLES_OK"
	case StatusSingleTuple:
		return "SINGLE_TUPLE"
	case StatusNonFatalError:
		return "NONFATAL_ERROR"
	case StatusFatalError:
		return "FATAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Succeeded is true for the statuses that mark a successfully completed execution.
func (s ExecStatus) Succeeded() bool {
	return s == StatusCommandOK || s == StatusTuplesOK
}

// Message is one reply from the server.
type Message struct {
	Status ExecStatus
	// Values holds the text encoded column values of a single row. A nil element is SQL NULL.
	Values [][]byte
	// CmdTuples is the textual affected row count of a completed command. It is empty when the command does not
	// report one.
	CmdTuples string
	// Error is set for error replies when the connection has the server's diagnostic fields.
	Error *ServerError
}

// ServerError carries the diagnostic fields of a server reported error.
type ServerError struct {
	Severity string
	Message  string
	Detail   string
	Hint     string
}

// FieldDescription describes one result column of a prepared statement.
type FieldDescription struct {
	Name    string
	TypeOID uint32
}

// StatementDescription is the server's description of a prepared statement.
type StatementDescription struct {
	ParamOIDs []uint32
	Fields    []FieldDescription
}

func (d *StatementDescription) NumParams() int {
	return len(d.ParamOIDs)
}

// Conn is the connection contract. Params are text encoded, a nil element is sent as SQL NULL.
type Conn interface {
	// CheckReady fails if the connection is closed or otherwise unusable.
	CheckReady() error

	PrepareStatement(ctx context.Context, name string, sql string, nparams int) (ExecStatus, error)

	DescribeStatement(ctx context.Context, name string) (*StatementDescription, ExecStatus, error)

	// SendExecute starts executing a prepared statement without waiting for the reply.
	SendExecute(ctx context.Context, name string, params [][]byte, formats []int16) bool

	// SetSingleRowMode makes the in-flight query deliver one row per message. It must be called straight after
	// SendExecute.
	SetSingleRowMode() bool

	// ExecuteSync executes a prepared statement and waits for completion, discarding any rows.
	ExecuteSync(ctx context.Context, name string, params [][]byte, formats []int16) *Message

	// NextMessage returns the next pending reply, or nil when nothing more is pending.
	NextMessage(ctx context.Context) *Message

	// ErrorText is the text of the last error reported on the connection.
	ErrorText() string

	RegisterActiveResult(handle interface{}) error
	ClearActiveResult()
	CurrentResultIs(handle interface{}) bool
}

// ActiveSlot tracks the single result that may be streaming on a connection. Conn implementations embed it.
type ActiveSlot struct {
	lock    sync.Mutex
	current interface{}
}

// RegisterActiveResult makes handle the connection's current result. It fails without changing anything if another
// result is already registered.
func (a *ActiveSlot) RegisterActiveResult(handle interface{}) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.current != nil && a.current != handle {
		return errors.NewConcurrentResultError()
	}
	a.current = handle
	return nil
}

func (a *ActiveSlot) ClearActiveResult() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.current = nil
}

func (a *ActiveSlot) CurrentResultIs(handle interface{}) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return handle != nil && a.current == handle
}

// HasActiveResult is true if any result is registered.
func (a *ActiveSlot) HasActiveResult() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.current != nil
}
