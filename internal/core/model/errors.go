package model

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindMissingInput         Kind = "missing_input"
	KindInvalidCoordinate    Kind = "invalid_coordinate"
	KindGeocodeNotFound      Kind = "geocode_not_found"
	KindGeocodeProviderError Kind = "geocode_provider_error"
	KindGeocoderUnavailable  Kind = "geocoder_unavailable"
	KindInvalidBatchRequest  Kind = "invalid_batch_request"
	KindInternal             Kind = "internal"
)

const MissingInputMessage = "Either both 'lat' and 'lon' or 'address' must be provided."

// Error is the typed failure carried through lookups. Detail is safe to show
// to clients unless the kind is opaque, in which case only CorrelationID is.
type Error struct {
	Kind          Kind
	Detail        string
	CorrelationID string
	cause         error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// Opaque reports whether the detail must stay server-side.
func (e *Error) Opaque() bool {
	return e.Kind == KindGeocodeProviderError || e.Kind == KindInternal
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput, KindMissingInput, KindInvalidCoordinate,
		KindGeocodeNotFound, KindInvalidBatchRequest:
		return http.StatusBadRequest
	case KindGeocoderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicDetail is the message clients see.
func (e *Error) PublicDetail() string {
	if e.Opaque() {
		return "An internal error occurred - error id: " + e.CorrelationID
	}
	return e.Detail
}

func NewError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

// Opaquef builds an opaque error with a fresh correlation id.
func Opaquef(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:          kind,
		Detail:        fmt.Sprintf(format, args...),
		CorrelationID: uuid.NewString(),
		cause:         cause,
	}
}

// AsError returns err as *Error, wrapping anything untyped as Internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Opaquef(KindInternal, err, "unexpected failure")
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
