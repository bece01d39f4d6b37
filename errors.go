package sdbx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erigontech/mdbx-go/mdbx"
)

// Error represents an engine status translated into sdbx's error space.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped engine error, when one exists
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sdbx: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("sdbx: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode represents an engine status code (MDBX values).
type ErrorCode int

// Engine status codes. Negative values are MDBX's own code space; positive
// values are OS errnos passed through by the engine.
const (
	// Success indicates the operation completed successfully
	Success ErrorCode = 0

	// ResultTrue indicates success with special meaning
	ResultTrue ErrorCode = -1

	// ErrKeyExist indicates the key/data pair already exists
	ErrKeyExist ErrorCode = -30799

	// ErrNotFound indicates the key/data pair was not found (EOF)
	ErrNotFound ErrorCode = -30798

	// ErrPageNotFound indicates a requested page was not found (corruption)
	ErrPageNotFound ErrorCode = -30797

	// ErrCorrupted indicates the database is corrupted
	ErrCorrupted ErrorCode = -30796

	// ErrPanic indicates a fatal environment error
	ErrPanic ErrorCode = -30795

	// ErrVersionMismatch indicates DB version doesn't match library
	ErrVersionMismatch ErrorCode = -30794

	// ErrInvalid indicates the file is not a valid MDBX file
	ErrInvalid ErrorCode = -30793

	// ErrMapFull indicates the environment mapsize was reached
	ErrMapFull ErrorCode = -30792

	// ErrDBsFull indicates the environment maxdbs was reached
	ErrDBsFull ErrorCode = -30791

	// ErrReadersFull indicates the environment maxreaders was reached
	ErrReadersFull ErrorCode = -30790

	// ErrTxnFull indicates the transaction has too many dirty pages
	ErrTxnFull ErrorCode = -30788

	// ErrCursorFull indicates cursor stack overflow (corruption)
	ErrCursorFull ErrorCode = -30787

	// ErrPageFull indicates a page has no space (internal error)
	ErrPageFull ErrorCode = -30786

	// ErrUnableExtendMapsize indicates mapping couldn't be extended
	ErrUnableExtendMapsize ErrorCode = -30785

	// ErrIncompatible indicates incompatible operation or flags
	ErrIncompatible ErrorCode = -30784

	// ErrBadRSlot indicates reader slot was corrupted or reused
	ErrBadRSlot ErrorCode = -30783

	// ErrBadTxn indicates the transaction is invalid
	ErrBadTxn ErrorCode = -30782

	// ErrBadValSize indicates invalid key or data size
	ErrBadValSize ErrorCode = -30781

	// ErrBadDBI indicates the table handle is invalid
	ErrBadDBI ErrorCode = -30780

	// ErrProblem indicates an unexpected internal error
	ErrProblem ErrorCode = -30779

	// ErrBusy indicates another write transaction is running
	ErrBusy ErrorCode = -30778

	// ErrMultiVal indicates the key has multiple associated values
	ErrMultiVal ErrorCode = -30421

	// ErrBadSign indicates bad signature (memory corruption or ABI mismatch)
	ErrBadSign ErrorCode = -30420

	// ErrWannaRecovery indicates recovery is needed but DB is read-only
	ErrWannaRecovery ErrorCode = -30419

	// ErrKeyMismatch indicates key mismatch with cursor position
	ErrKeyMismatch ErrorCode = -30418

	// ErrTooLarge indicates database is too large for system
	ErrTooLarge ErrorCode = -30417

	// ErrThreadMismatch indicates thread attempted to use unowned object
	ErrThreadMismatch ErrorCode = -30416

	// ErrTxnOverlapping indicates overlapping read/write transactions
	ErrTxnOverlapping ErrorCode = -30415
)

// Error descriptions
var errorMessages = map[ErrorCode]string{
	Success:                "success",
	ResultTrue:             "operation result true",
	ErrKeyExist:            "key/data pair already exists",
	ErrNotFound:            "key/data pair not found",
	ErrPageNotFound:        "requested page not found",
	ErrCorrupted:           "database is corrupted",
	ErrPanic:               "fatal environment error",
	ErrVersionMismatch:     "database version mismatch",
	ErrInvalid:             "file is not a valid MDBX database",
	ErrMapFull:             "environment mapsize limit reached",
	ErrDBsFull:             "environment maxdbs limit reached",
	ErrReadersFull:         "environment maxreaders limit reached",
	ErrTxnFull:             "transaction has too many dirty pages",
	ErrCursorFull:          "cursor stack overflow",
	ErrPageFull:            "page has no space",
	ErrUnableExtendMapsize: "unable to extend memory mapping",
	ErrIncompatible:        "incompatible operation or flags",
	ErrBadRSlot:            "reader slot corrupted",
	ErrBadTxn:              "transaction is invalid",
	ErrBadValSize:          "invalid key or value size",
	ErrBadDBI:              "invalid table handle",
	ErrProblem:             "unexpected internal error",
	ErrBusy:                "another write transaction is running",
	ErrMultiVal:            "key has multiple values",
	ErrBadSign:             "bad signature",
	ErrWannaRecovery:       "recovery needed but database is read-only",
	ErrKeyMismatch:         "key mismatch with cursor position",
	ErrTooLarge:            "database too large for system",
	ErrThreadMismatch:      "thread attempted to use unowned object",
	ErrTxnOverlapping:      "overlapping transactions",
}

// NewError creates a new Error with the given code
func NewError(code ErrorCode) *Error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = fmt.Sprintf("unknown error code %d", code)
	}
	return &Error{Code: code, Message: msg}
}

// WrapError creates a new Error wrapping another error
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

// fromEngine translates an error returned by the engine binding into an
// *Error carrying the status code. Known codes get the message from the
// table above; anything else keeps the engine's own text, with the library
// prefix stripped.
func fromEngine(err error) error {
	if err == nil {
		return nil
	}
	var errno mdbx.Errno
	if errors.As(err, &errno) {
		code := ErrorCode(errno)
		if msg, ok := errorMessages[code]; ok {
			return &Error{Code: code, Message: msg, Err: err}
		}
		return &Error{Code: code, Message: trimEnginePrefix(err.Error()), Err: err}
	}
	if mdbx.IsNotFound(err) {
		return &Error{Code: ErrNotFound, Message: errorMessages[ErrNotFound], Err: err}
	}
	return &Error{Code: ErrProblem, Message: trimEnginePrefix(err.Error()), Err: err}
}

// trimEnginePrefix strips a leading "NAME: " tag from an engine status
// message, e.g. "MDBX_NOTFOUND: no matching key/data pair found" becomes
// "no matching key/data pair found". The tag is only removed when it is a
// single word, so path-bearing OS errors stay intact.
func trimEnginePrefix(msg string) string {
	i := strings.Index(msg, ": ")
	if i < 0 {
		return msg
	}
	if strings.ContainsRune(msg[:i], ' ') {
		return msg
	}
	return msg[i+2:]
}

// InactiveError reports an operation on a handle whose native resources may
// no longer be used: a closed environment, database or cursor, or a
// terminated transaction (directly or through an ended ancestor). It is
// always raised by this layer before any engine call is issued.
type InactiveError struct {
	msg string
}

func (e *InactiveError) Error() string {
	return e.msg
}

// The four lifecycle failures, one per handle type.
var (
	// ErrEnvClosed is returned when using an environment after Close.
	ErrEnvClosed = &InactiveError{msg: "Environment is closed"}

	// ErrTxnTerminated is returned when using a transaction after it, or
	// any of its ancestors, committed or aborted.
	ErrTxnTerminated = &InactiveError{msg: "Transaction is terminated"}

	// ErrDatabaseClosed is returned when using a database handle after
	// Close or Drop.
	ErrDatabaseClosed = &InactiveError{msg: "Database is closed"}

	// ErrCursorClosed is returned when using a cursor after Close.
	ErrCursorClosed = &InactiveError{msg: "Cursor is closed"}
)

// IsInactive returns true if the error is a handle-lifecycle violation
// detected by this layer.
func IsInactive(err error) bool {
	var e *InactiveError
	return errors.As(err, &e)
}

// ArgumentError reports caller input rejected before reaching the engine.
type ArgumentError struct {
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("sdbx: invalid argument %s: %s", e.Arg, e.Reason)
}

func argErr(arg, reason string) *ArgumentError {
	return &ArgumentError{Arg: arg, Reason: reason}
}

// IsArgument returns true if the error reports invalid caller input.
func IsArgument(err error) bool {
	var e *ArgumentError
	return errors.As(err, &e)
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrNotFound
	}
	return false
}

// IsKeyExist returns true if the error is ErrKeyExist
func IsKeyExist(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrKeyExist
	}
	return false
}

// IsCorrupted returns true if the error indicates database corruption
func IsCorrupted(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCorrupted || e.Code == ErrPageNotFound
	}
	return false
}

// IsMapFull returns true if the error is ErrMapFull
func IsMapFull(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrMapFull
	}
	return false
}

// Code returns the error code from an error, or ErrProblem if not an sdbx
// engine error
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrProblem
}
