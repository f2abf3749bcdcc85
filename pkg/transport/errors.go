package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/storage"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		switch err.Code {
		case "conflict":
			return http.StatusConflict
		case "unauthenticated":
			return http.StatusUnauthorized
		}
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeModelError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// APIErrorFrom converts any error into an *api.APIError. API errors pass
// through unchanged; storage sentinels become their API counterparts and
// everything else is reported as a server error.
func APIErrorFrom(err error) *api.APIError {
	var apiErr *api.APIError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError(err.Error())
	case errors.Is(err, storage.ErrConflict):
		e := api.NewInvalidRequestError("id", err.Error())
		e.Code = "conflict"
		return e
	case errors.Is(err, storage.ErrInvalidCursor):
		return api.NewInvalidRequestError("after", err.Error())
	case errors.Is(err, context.Canceled):
		e := api.NewServerError("request cancelled")
		e.Code = "cancelled"
		return e
	case errors.Is(err, context.DeadlineExceeded):
		e := api.NewServerError("request timed out")
		e.Code = "timeout"
		return e
	default:
		return api.NewServerError(err.Error())
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError converts err with APIErrorFrom and writes it.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, APIErrorFrom(err))
}
