// Package response builds the {code, msg, data} JSON envelope every
// endpoint answers with.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/zombor/receipt-vision/internal/scanning"
)

const (
	defaultMsg      = "Successfully"
	forbiddenMsg    = "I'm sorry, you do not have permission."
	successCode     = 200
	listSuccessCode = 0
)

// Envelope is the body of every API response. Total is only set by
// SuccessWithSize.
type Envelope struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Data  any    `json:"data"`
	Total *int   `json:"total,omitempty"`
}

// Option overrides the defaults of a success envelope
type Option func(*Envelope)

// WithCode overrides the envelope code
func WithCode(code int) Option {
	return func(e *Envelope) { e.Code = code }
}

// WithMsg overrides the envelope message
func WithMsg(msg string) Option {
	return func(e *Envelope) { e.Msg = msg }
}

func build(e Envelope, opts []Option) Envelope {
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Success wraps data with code 200 and msg "Successfully"
func Success(data any, opts ...Option) Envelope {
	return build(Envelope{Code: successCode, Msg: defaultMsg, Data: data}, opts)
}

// SuccessWithSize wraps a page of data with its total count. A nil data,
// including a nil slice or map, becomes an empty list with total 0.
func SuccessWithSize(data any, total int, opts ...Option) Envelope {
	if isNil(data) {
		data = []any{}
		total = 0
	}
	return build(Envelope{Code: listSuccessCode, Msg: defaultMsg, Data: data, Total: &total}, opts)
}

func isNil(data any) bool {
	if data == nil {
		return true
	}
	switch v := reflect.ValueOf(data); v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Records wraps a list with code 0
func Records(data any, opts ...Option) Envelope {
	if data == nil {
		data = []any{}
	}
	return build(Envelope{Code: listSuccessCode, Msg: defaultMsg, Data: data}, opts)
}

// Failed builds the envelope for a catalogued error
func Failed(err Error, data any) Envelope {
	return Envelope{Code: err.Status, Msg: err.Msg, Data: data}
}

// Forbidden builds the permission denied envelope
func Forbidden() Envelope {
	return Envelope{Code: http.StatusForbidden, Msg: forbiddenMsg}
}

// Error is a catalogued API error
type Error struct {
	Code   string
	Msg    string
	Status int
}

var (
	InternalServerError = Error{"INTERNAL_SERVER_ERROR", "A system error has occurred.", http.StatusInternalServerError}
	InvalidContentType  = Error{"INVALID_CONTENT_TYPE", "Content-Type: application/json is required", http.StatusBadRequest}
	ProviderUnavailable = Error{"PROVIDER_UNAVAILABLE", "The analysis provider is unavailable.", http.StatusServiceUnavailable}
	ProviderRejected    = Error{"PROVIDER_REJECTED", "The analysis provider rejected the request.", http.StatusFailedDependency}
	MalformedResponse   = Error{"MALFORMED_RESPONSE", "The analysis provider returned an unreadable response.", http.StatusBadGateway}
	ProviderTimeout     = Error{"PROVIDER_TIMEOUT", "The analysis provider did not respond in time.", http.StatusGatewayTimeout}
	NotFound            = Error{"NOT_FOUND", "Not found.", http.StatusNotFound}
	UnsupportedImage    = Error{"UNSUPPORTED_IMAGE", "Unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF.", http.StatusUnsupportedMediaType}
)

// ValidationError formats the validation message
func ValidationError(format string, args ...any) Error {
	return Error{"VALIDATION_ERROR", fmt.Sprintf(format, args...), http.StatusBadRequest}
}

// RejectedData is the data of a PROVIDER_REJECTED envelope
type RejectedData struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// FromError maps an error onto the catalogue. Only the provider's own
// rejection body is passed through; other error text stays server side.
func FromError(err error) (Error, any) {
	var rejected *scanning.RejectedError
	switch {
	case errors.As(err, &rejected):
		return ProviderRejected, RejectedData{Status: rejected.Status, Body: rejected.Body}
	case errors.Is(err, scanning.ErrTimeout):
		return ProviderTimeout, nil
	case errors.Is(err, scanning.ErrProviderUnavailable):
		return ProviderUnavailable, nil
	case errors.Is(err, scanning.ErrMalformedResponse):
		return MalformedResponse, nil
	case errors.Is(err, scanning.ErrUnsupportedImage):
		return UnsupportedImage, nil
	}
	return InternalServerError, nil
}

// Write encodes the envelope as the response body
func Write(w http.ResponseWriter, status int, e Envelope) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return nil
}

// WriteError writes the failure envelope for err with the matching HTTP status
func WriteError(w http.ResponseWriter, err error) error {
	e, data := FromError(err)
	return Write(w, e.Status, Failed(e, data))
}
