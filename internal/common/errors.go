// Package common defines shared sentinel errors and the four-way outcome
// taxonomy reported by orchestrators. Callers should use errors.Is and
// errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Input errors.
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrInvalidArgument    = errors.New("invalid argument")

	// Authorization denials.
	ErrEntitlementNotFound = errors.New("no valid subscription found for this creator")
	ErrNoAccess            = errors.New("no decryption access")

	// Transient infrastructure errors.
	ErrRetrieval = errors.New("could not retrieve encrypted file, please retry")

	// Protocol / invariant violations.
	ErrInvariant = errors.New("invariant violated")
)

// Kind classifies a failure so callers can decide whether to retry.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInput: missing wallet, missing fields, invalid ids. Not retryable.
	KindInput
	// KindDenied: no entitlement or key release refused. Not retryable
	// without a new entitlement.
	KindDenied
	// KindTransient: mirror timeout, RPC failure, wallet transport error.
	KindTransient
	// KindFatal: protocol or invariant violation for this flow instance.
	KindFatal
	// KindCanceled: the caller gave up. Reported quietly, never retried.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindDenied:
		return "denied"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Failure is the typed outcome returned by orchestrators. Message is the
// user-facing text, Err keeps the raw cause for logging.
type Failure struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Message)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Message, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// NewFailure builds a Failure. An empty message falls back to the cause text.
func NewFailure(kind Kind, op, message string, err error) *Failure {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Failure{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the Kind of the first Failure in err's chain.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// UserMessage returns the user-facing message carried by err, or its text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}
