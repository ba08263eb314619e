package deploy

import (
	"errors"
	"fmt"

	"github.com/3leaps/appdeploy/pkg/provider"
)

// Kind classifies deployment failures. Every kind is fatal for the run.
type Kind int

const (
	// KindPrecondition: staged changes present, changelog not confirmed,
	// or no release tag given.
	KindPrecondition Kind = iota + 1

	// KindConfiguration: configuration bucket missing, empty, or without
	// applications.
	KindConfiguration

	// KindUsage: operations called out of sequence or an unknown
	// application requested.
	KindUsage

	// KindStorage: any credential or service failure from the bucket.
	KindStorage
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindConfiguration:
		return "configuration"
	case KindUsage:
		return "usage"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a classified deployment failure.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op is the operation that failed (e.g., "Verify", "Deploy").
	Op string

	// Message is the operator-facing explanation.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// storageError wraps a provider failure exactly once, keeping the original
// message.
func storageError(op string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	msg := "error thrown by AWS S3"
	if provider.IsMissingCredentials(err) || provider.IsInvalidCredentials(err) {
		msg = "missing AWS credentials"
	}
	return newError(KindStorage, op, msg, err)
}

// KindOf returns the kind of err, or zero if err is not a deployment error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsPrecondition returns true if err is a precondition failure.
func IsPrecondition(err error) bool { return KindOf(err) == KindPrecondition }

// IsConfiguration returns true if err is a configuration bucket failure.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsUsage returns true if err is a sequencing or selection error.
func IsUsage(err error) bool { return KindOf(err) == KindUsage }

// IsStorage returns true if err wraps a storage backend failure.
func IsStorage(err error) bool { return KindOf(err) == KindStorage }
