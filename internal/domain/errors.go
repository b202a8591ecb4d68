package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// TransportError means the upstream API could not be reached, timed out,
// or answered with a non-2xx status.
type TransportError struct {
	Keyword    string
	Regime     Regime
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s search %q: status %d: %v", e.Regime, e.Keyword, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s search %q: %v", e.Regime, e.Keyword, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError means the upstream payload did not decode into
// the expected shape.
type MalformedResponseError struct {
	Keyword string
	Regime  Regime
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("upstream %s search %q: malformed response: %v", e.Regime, e.Keyword, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ValidationError is a rejected input at an API boundary.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// StoreError is a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// IsUpstreamError reports whether err came from the upstream API, either
// as a transport or a payload failure.
func IsUpstreamError(err error) bool {
	var te *TransportError
	var me *MalformedResponseError
	return errors.As(err, &te) || errors.As(err, &me)
}
