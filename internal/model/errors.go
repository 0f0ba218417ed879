package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies scan failures.
type ErrorKind string

const (
	KindInvalidURL         ErrorKind = "InvalidURL"
	KindRenderTimeout      ErrorKind = "RenderTimeout"
	KindRenderFailure      ErrorKind = "RenderFailure"
	KindRuleEngineError    ErrorKind = "RuleEngineError"
	KindRemoteAuditError   ErrorKind = "RemoteAuditError"
	KindConfigurationError ErrorKind = "ConfigurationError"
	KindQuotaExceeded      ErrorKind = "QuotaExceeded"
	KindInternal           ErrorKind = "Internal"
)

// HTTPStatus maps a kind to the status returned to API callers.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidURL:
		return http.StatusBadRequest
	case KindRenderTimeout:
		return http.StatusGatewayTimeout
	case KindRenderFailure, KindRemoteAuditError:
		return http.StatusBadGateway
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ScanError is the single typed failure a scan can end in. Msg is safe to
// show to users; Err carries the underlying cause for logs.
type ScanError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// NewScanError builds a ScanError.
func NewScanError(kind ErrorKind, msg string, cause error) *ScanError {
	return &ScanError{Kind: kind, Msg: msg, Err: cause}
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ScanError) Unwrap() error { return e.Err }

// HTTPStatus is shorthand for e.Kind.HTTPStatus().
func (e *ScanError) HTTPStatus() int { return e.Kind.HTTPStatus() }

// KindOf extracts the kind from err, or KindInternal when err carries none.
func KindOf(err error) ErrorKind {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// UserMessage returns the short message for err, falling back to
// "Internal error" for anything that is not a ScanError.
func UserMessage(err error) string {
	var se *ScanError
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}
	return "Internal error"
}
