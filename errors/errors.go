package errors

import (
	"fmt"
)

type ErrorCode int

const (
	InternalError = iota
	InvalidConfiguration
	ConnectionClosed

	Prepare
	Describe
	ConcurrentResult
	ParamCount
	Send
	Mode
	RowExec
	Protocol
	NotBound
	InactiveStream
	UnknownType
	Interrupted
)

func NewInternalError(msg string) PqError {
	return NewPqErrorf(InternalError, "Internal error: %s", msg)
}

func NewInvalidConfigurationError(msg string) PqError {
	return NewPqErrorf(InvalidConfiguration, "Invalid configuration: %s", msg)
}

func NewConnectionClosedError(msg string) PqError {
	return NewPqErrorf(ConnectionClosed, "Connection is not ready: %s", msg)
}

func NewPrepareError(serverMsg string) PqError {
	return NewPqErrorf(Prepare, "Failed to prepare statement: %s", serverMsg)
}

func NewDescribeError(serverMsg string) PqError {
	return NewPqErrorf(Describe, "Failed to describe statement: %s", serverMsg)
}

func NewConcurrentResultError() PqError {
	return NewPqErrorf(ConcurrentResult, "Connection already has an active result set, release it before running another query")
}

func NewParamCountError(required int, supplied int) PqError {
	return NewPqErrorf(ParamCount, "Query requires %d params; %d supplied.", required, supplied)
}

func NewParamLengthError(param int, required int, supplied int) PqError {
	return NewPqErrorf(ParamCount, "Param %d has %d rows; %d required.", param, supplied, required)
}

func NewSendError() PqError {
	return NewPqErrorf(Send, "Failed to send query")
}

func NewModeError() PqError {
	return NewPqErrorf(Mode, "Failed to set single row mode")
}

func NewRowExecError(serverMsg string, rowIndex int) RowExecError {
	return RowExecError{
		PqError:  NewPqErrorf(RowExec, "%s (row %d)", serverMsg, rowIndex),
		RowIndex: rowIndex,
	}
}

func NewProtocolError(msg string) PqError {
	return NewPqErrorf(Protocol, "%s", msg)
}

func NewNotBoundError() PqError {
	return NewPqErrorf(NotBound, "Query needs to be bound before fetching")
}

func NewInactiveStreamError() PqError {
	return NewPqErrorf(InactiveStream, "Inactive result set")
}

func NewUnknownTypeWarning(typeOID uint32, column string) PqError {
	return NewPqErrorf(UnknownType, "Unknown field type (%d) in column %s", typeOID, column)
}

func NewInterruptedError() PqError {
	return NewPqErrorf(Interrupted, "Interrupted")
}

func NewPqErrorf(errorCode ErrorCode, msgFormat string, args ...interface{}) PqError {
	msg := fmt.Sprintf(fmt.Sprintf("PQS%04d - %s", errorCode, msgFormat), args...)
	return PqError{Code: errorCode, Msg: msg}
}

func NewPqError(errorCode ErrorCode, msg string) PqError {
	return PqError{Code: errorCode, Msg: msg}
}

func Error(msg string) error {
	return New(msg)
}

// PqError is any kind of error that is exposed to the user of a result stream
type PqError struct {
	Code ErrorCode
	Msg  string
}

func (u PqError) Error() string {
	return u.Msg
}

func (u PqError) ErrorCode() ErrorCode {
	return u.Code
}

// RowExecError is returned by a vectorized bind when the execution for one parameter row fails. RowIndex is 1-based.
type RowExecError struct {
	PqError
	RowIndex int
}

type coded interface {
	ErrorCode() ErrorCode
}

// HasCode reports whether any error in err's chain is a PqError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var c coded
	if !As(err, &c) {
		return false
	}
	return c.ErrorCode() == code
}
