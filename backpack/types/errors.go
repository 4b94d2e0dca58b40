package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the exchange client can report.
//
// The client never panics and never lets a transport library error escape
// untyped: every operation either succeeds or returns an *Error carrying one
// of these kinds, so a trading loop can branch on the outcome and keep
// iterating over the remaining accounts.
type ErrorKind string

const (
	// KindInvalidKeyMaterial means the account secret does not decode to a
	// 32-byte Ed25519 seed. Fatal at client construction, never retried.
	KindInvalidKeyMaterial ErrorKind = "invalid_key_material"

	// KindProxyFailure means the transport kept failing with
	// connection-reset/refused class errors after the retry budget,
	// including the proxy rotations in between, was exhausted.
	KindProxyFailure ErrorKind = "proxy_failure"

	// KindInvalidJSON means the response body was not parseable JSON.
	KindInvalidJSON ErrorKind = "invalid_json"

	// KindInvalidResponse means the body parsed but failed shape validation.
	KindInvalidResponse ErrorKind = "invalid_response"

	// KindAPIError means the exchange reported a business error. A normal,
	// non-exceptional outcome the caller must branch on.
	KindAPIError ErrorKind = "api_error"

	// KindNoFreeProxy means the directory had no free proxy for rotation.
	KindNoFreeProxy ErrorKind = "no_free_proxy"

	// KindUnexpected covers anything that does not fit the kinds above.
	KindUnexpected ErrorKind = "unexpected"
)

// Error is the structured failure value returned by all client operations.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds an *Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or KindUnexpected when err is not
// an *Error. Returns "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
