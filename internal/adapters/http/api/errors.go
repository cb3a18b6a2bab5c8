package api

import (
	"errors"
	"net/http"

	"github.com/sigte/riskengine/internal/adapters/repository"
	service "github.com/sigte/riskengine/internal/app"
)

var (
	// ErrServe is returned when the HTTP server fails to serve.
	ErrServe = errors.New("serve http")
	// ErrBadRequest marks malformed input rejected before reaching the service.
	ErrBadRequest = errors.New("bad request")
)

// Kind classifies an API error for status mapping.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindUnavailable
)

func (k Kind) status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) code() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "data_unavailable"
	default:
		return "internal_error"
	}
}

// Error is an operation failure annotated with its kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewKind creates an error of kind k with message msg.
func NewKind(op string, k Kind, msg string) error {
	return &Error{Op: op, Kind: k, Err: errors.New(msg)}
}

// Wrap annotates err with op, deriving the kind from the error chain.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kindOf(err), Err: err}
}

// WrapKind annotates err with op and an explicit kind.
func WrapKind(op string, k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: k, Err: err}
}

func kindOf(err error) Kind {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Kind
	case errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidArgument):
		return KindBadRequest
	case errors.Is(err, service.ErrDataUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
