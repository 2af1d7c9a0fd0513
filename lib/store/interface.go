package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mediamanager/mstore/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by a local store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() (db.KVDB, error)

// IStore is the key-value storage capability shared by the local store, the remote store
// and the cache that layers one over the other.
// Values are strings (serialized records). Failures are reported as *Error.
type IStore interface {
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	// An absent key is not an error.
	Get(ctx context.Context, key string) (value string, loaded bool, err error)
	// Set inserts or updates a key-value pair.
	Set(ctx context.Context, key string, value string) (err error)
	// Remove deletes a key-value pair. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) (err error)
	// Has returns whether a key exists in the store.
	Has(ctx context.Context, key string) (loaded bool, err error)
	// Range calls fn for each entry until fn returns false.
	Range(ctx context.Context, fn func(key, value string) bool) (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the underlying cause.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the cause so errors.Is/As see through the store error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, which makes the sentinel values below usable
// with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new store error with the given code, message and cause.
func WrapError(code RetCode, err error, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

// CodeOf returns the code of the first *Error in err's chain, RetCSuccess for nil and
// RetCInternalError for foreign errors.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// Sentinels for errors.Is
var (
	ErrInternal      = NewError(RetCInternalError, "internal error")
	ErrRequestFailed = NewError(RetCRequestFailed, "request failed")
	ErrNotFound      = NewError(RetCNotFound, "not found")
	ErrAlreadyExists = NewError(RetCAlreadyExists, "already exists")
	ErrUnsupported   = NewError(RetCUnsupportedOperation, "unsupported operation")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCRequestFailed                       // 3: Transport failure or unexpected remote status.
	RetCNotFound                            // 4: The record does not exist.
	RetCAlreadyExists                       // 5: The record exists and must not be replaced.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCRequestFailed:
		return "RequestFailed"
	case RetCNotFound:
		return "NotFound"
	case RetCAlreadyExists:
		return "AlreadyExists"
	default:
		return "Unknown"
	}
}
