package metacore

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	// KindUsage covers bad arguments and argument combinations.
	KindUsage Kind = "Usage"
	// KindIO covers local filesystem failures.
	KindIO Kind = "IO"
	// KindCrypto covers signing and encryption failures.
	KindCrypto Kind = "Crypto"
	// KindTransport covers failures to reach a node or read its reply.
	KindTransport Kind = "Transport"
)

// Error is the package's structured error type. Branch on Kind (or on the
// wrapped sentinel via errors.Is), not on Message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "metacore: " + e.Op + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

var (
	// ErrInvalidArgumentCombination is returned when only one half of a
	// credential (signing key or provider) is supplied.
	ErrInvalidArgumentCombination = errors.New("signing key and credential provider must be supplied together")
	// ErrMissingCredential is returned by operations that require a signature.
	ErrMissingCredential = errors.New("operation requires a credential")
	// ErrFileTooLarge is returned when an upload exceeds the configured limit.
	ErrFileTooLarge = errors.New("file exceeds the upload size limit")
)

func newError(kind Kind, op, msg string, cause error) error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

func usageError(op string, cause error, format string, args ...any) error {
	return newError(KindUsage, op, fmt.Sprintf(format, args...), cause)
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTransport reports whether err is a failure to talk to the node, as
// opposed to a local failure.
func IsTransport(err error) bool { return KindOf(err) == KindTransport }
