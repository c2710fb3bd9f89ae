package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies resolution failures for callers that need to decide
// whether a retry can help.
type ErrorKind string

const (
	// KindBadRequest marks malformed input (hash, magnet). Not retryable.
	KindBadRequest ErrorKind = "BAD_REQUEST"
	// KindUpstream marks a gateway HTTP failure. Retryable by the caller.
	KindUpstream ErrorKind = "UPSTREAM_ERROR"
	// KindNoMatchingFile marks a failed file selection. Not retryable
	// without different hints.
	KindNoMatchingFile ErrorKind = "NO_MATCHING_FILE"
	// KindUnsupported marks a request the gateway cannot serve at all.
	KindUnsupported ErrorKind = "UNSUPPORTED"
)

// ResolveError carries the failure class alongside the original cause.
type ResolveError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ResolveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// NewResolveError builds a classified error.
func NewResolveError(kind ErrorKind, message string, cause error) *ResolveError {
	return &ResolveError{Kind: kind, Message: message, Cause: cause}
}

func NewBadRequestError(message string, cause error) *ResolveError {
	return NewResolveError(KindBadRequest, message, cause)
}

func NewUpstreamError(message string, cause error) *ResolveError {
	return NewResolveError(KindUpstream, message, cause)
}

func NewNoMatchingFileError(message string) *ResolveError {
	return NewResolveError(KindNoMatchingFile, message, nil)
}

func NewUnsupportedError(message string) *ResolveError {
	return NewResolveError(KindUnsupported, message, nil)
}

// IsKind reports whether err (or anything it wraps) is a ResolveError of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Kind == kind
}
