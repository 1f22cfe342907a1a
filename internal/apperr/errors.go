// file: internal/apperr/errors.go
// version: 1.1.0
// guid: aca7b4ac-32eb-4e1d-8d81-46b7627fc4b5

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure for propagation and HTTP mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindNotFound
	KindTransient
	KindConfigUnavailable
	KindCacheWrite
	KindUpstreamAuth
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindConfigUnavailable:
		return "config_unavailable"
	case KindCacheWrite:
		return "cache_write"
	case KindUpstreamAuth:
		return "upstream_auth"
	default:
		return "internal"
	}
}

// Error is a kinded error that wraps an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports a missing or malformed request field.
func Validation(format string, args ...any) error {
	return newf(KindValidation, nil, format, args...)
}

// Authentication reports a missing or rejected bearer credential.
func Authentication(format string, args ...any) error {
	return newf(KindAuthentication, nil, format, args...)
}

// NotFound reports that an upstream was reachable but had no matching record.
func NotFound(format string, args ...any) error {
	return newf(KindNotFound, nil, format, args...)
}

// Transient wraps a timeout, 5xx or malformed upstream response.
func Transient(err error, format string, args ...any) error {
	return newf(KindTransient, err, format, args...)
}

// ConfigUnavailable reports that a required upstream credential is not configured.
func ConfigUnavailable(format string, args ...any) error {
	return newf(KindConfigUnavailable, nil, format, args...)
}

// CacheWrite wraps a failed cache upsert. It is logged, never returned to callers.
func CacheWrite(err error, format string, args ...any) error {
	return newf(KindCacheWrite, err, format, args...)
}

// UpstreamAuth wraps a failed client-credential exchange.
func UpstreamAuth(err error, format string, args ...any) error {
	return newf(KindUpstreamAuth, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var re *ResolutionError
	if errors.As(err, &re) {
		return KindNotFound
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConfigUnavailable:
		return http.StatusServiceUnavailable
	case KindTransient, KindUpstreamAuth:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// StrategyFailure records why a single resolution strategy failed.
type StrategyFailure struct {
	Strategy string
	Cached   bool
	Err      error
}

// ResolutionError is returned when every strategy for an identifier failed.
type ResolutionError struct {
	Identifier string
	Failures   []StrategyFailure
}

// Error implements the error interface
func (e *ResolutionError) Error() string {
	names := make([]string, 0, len(e.Failures))
	var cached, external bool
	for _, f := range e.Failures {
		names = append(names, f.Strategy)
		if f.Cached {
			cached = true
		} else {
			external = true
		}
	}
	return fmt.Sprintf("no record found for %s: %s (%s)",
		e.Identifier, exhausted(cached, external), strings.Join(names, ", "))
}

func exhausted(cached, external bool) string {
	switch {
	case cached && external:
		return "cache and external lookups exhausted"
	case cached:
		return "cache lookups exhausted"
	case external:
		return "external lookups exhausted"
	default:
		return "no lookups available"
	}
}

// Unwrap exposes each strategy failure to errors.Is and errors.As.
func (e *ResolutionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
