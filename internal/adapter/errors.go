package adapter

import "errors"

// Class is the mandatory error classification every adapter failure falls
// into. The dispatcher never guesses; adapters declare it explicitly by
// wrapping one of the three sentinel errors below.
type Class string

const (
	ClassTransient     Class = "transient"
	ClassPermanent     Class = "permanent"
	ClassMisconfigured Class = "misconfigured"
)

// Sentinel errors wrapped by TransientError / PermanentError / MisconfiguredError.
var (
	ErrTransient     = errors.New("adapter: transient failure")
	ErrPermanent     = errors.New("adapter: permanent failure")
	ErrMisconfigured = errors.New("adapter: misconfigured")
)

// ClassifiedError is an adapter failure tagged with its retry classification.
type ClassifiedError struct {
	Class Class
	Msg   string
	Err   error // underlying cause, optional
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ClassifiedError) Unwrap() error {
	switch e.Class {
	case ClassPermanent:
		return ErrPermanent
	case ClassMisconfigured:
		return ErrMisconfigured
	default:
		return ErrTransient
	}
}

// Transient wraps err as a retryable adapter failure (network error, 5xx,
// rate-limit).
func Transient(msg string, err error) error {
	return &ClassifiedError{Class: ClassTransient, Msg: msg, Err: err}
}

// Permanent wraps err as a non-retryable adapter failure (provider rejected
// the payload or recipient).
func Permanent(msg string, err error) error {
	return &ClassifiedError{Class: ClassPermanent, Msg: msg, Err: err}
}

// Misconfigured wraps err as a non-retryable failure caused by missing or
// invalid adapter credentials.
func Misconfigured(msg string, err error) error {
	return &ClassifiedError{Class: ClassMisconfigured, Msg: msg, Err: err}
}

// IsTransient reports whether err was classified as retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err was classified as a permanent rejection.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// IsMisconfigured reports whether err was classified as a configuration
// problem.
func IsMisconfigured(err error) bool {
	return errors.Is(err, ErrMisconfigured)
}
