// Package cryptoerr defines the stable error taxonomy surfaced by the
// envelope encryption layer. Callers should branch on Kind via errors.As,
// never on message text.
package cryptoerr

import (
	"errors"
	"fmt"
)

// Kind tags the category of failure. Values are stable across releases.
type Kind string

const (
	// UnsupportedAlgorithm: metadata names a wrap/CEK algorithm this build
	// does not implement, or the configured security profile forbids it.
	UnsupportedAlgorithm Kind = "UnsupportedAlgorithm"
	// InvalidData: envelope structure is broken (bad inner-wrap length,
	// CEK-alg mismatch, all-zero IV/message-id).
	InvalidData Kind = "InvalidData"
	// CryptoError: authentication tag mismatch, RSA failure, AES error.
	CryptoError Kind = "CryptoError"
	// KeyCommitmentMismatch: V3 stored commitment disagrees with derived one.
	KeyCommitmentMismatch Kind = "KeyCommitmentMismatch"
	// PolicyViolation: suite/policy/profile combination is forbidden.
	PolicyViolation Kind = "PolicyViolation"
	// EncryptionContextMismatch: per-request KMS context disagrees with
	// the context recovered from metadata.
	EncryptionContextMismatch Kind = "EncryptionContextMismatch"
	// InvalidArgument: caller error such as a reserved context key, or a
	// ranged read that isn't block-aligned.
	InvalidArgument Kind = "InvalidArgument"
	// ProtocolViolation: multipart parts arrived out of order or two
	// parts of the same upload were driven concurrently.
	ProtocolViolation Kind = "ProtocolViolation"
	// NotEncrypted: the object carries no recognisable envelope.
	NotEncrypted Kind = "NotEncrypted"
	// Cancelled: the operation was cancelled mid-stream.
	Cancelled Kind = "Cancelled"
)

// Error is the concrete error type returned by this module. It always
// carries a Kind so callers can branch with errors.As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
