// Package errs implements the error-kind taxonomy used across the engine.
//
// Errors are classified by Kind rather than by concrete type, mirroring
// the way the teacher codebase leans on github.com/pkg/errors for
// wrapping while keeping a small, stable set of sentinel conditions
// (utils.ErrKeyNotFound, utils.ErrBadChecksum, ...) for callers to
// switch on.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the coarse error taxonomy from the error handling design.
type Kind int

const (
	KindOK Kind = iota
	KindNotFound
	KindCorruption
	KindNotSupported
	KindInvalidArgument
	KindIOError
	KindIncomplete
	KindShutdownInProgress
	KindTimedOut
	KindAborted
	KindBusy
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "OK"
	case KindNotFound:
		return "NotFound"
	case KindCorruption:
		return "Corruption"
	case KindNotSupported:
		return "NotSupported"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindIOError:
		return "IOError"
	case KindIncomplete:
		return "Incomplete"
	case KindShutdownInProgress:
		return "ShutdownInProgress"
	case KindTimedOut:
		return "TimedOut"
	case KindAborted:
		return "Aborted"
	case KindBusy:
		return "Busy"
	case KindExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// SubCode further qualifies lock-related errors.
type SubCode int

const (
	SubCodeNone SubCode = iota
	SubCodeMutexTimeout
	SubCodeLockTimeout
	SubCodeLockLimit
)

// Error is a classified, wrapped error.
type Error struct {
	Kind    Kind
	SubCode SubCode
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a classified error, wrapping cause with pkg/errors so the
// stack trace survives for %+v formatting.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Newf is the formatted variant of New.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap classifies an existing error under kind, preserving its cause chain.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, msg)}
}

// WithSubCode attaches a lock sub-code to a classified error.
func WithSubCode(err error, sub SubCode) error {
	if e, ok := err.(*Error); ok {
		e.SubCode = sub
		return e
	}
	return &Error{Kind: KindInvalidArgument, SubCode: sub, cause: err}
}

// Is reports whether err (or any error it wraps) is classified as kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			return false
		}
		err = cause
	}
	return false
}

// KindOf returns the classified kind of err, or KindOK if err is nil and
// KindIOError as the default classification for an unclassified error.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ce, ok := e.(*Error); ok {
			return ce.Kind
		}
	}
	return KindIOError
}

// Sentinel conditions callers switch on directly, analogous to the
// teacher's utils.ErrKeyNotFound / utils.ErrBadChecksum package vars.
var (
	ErrNotFound           = New(KindNotFound, "key not found")
	ErrShutdownInProgress = New(KindShutdownInProgress, "shutdown in progress")
	ErrIteratorReleased   = New(KindInvalidArgument, "iterator was released")
)
