package openai

import (
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/rhuss/chatkit/pkg/api"
)

// mapError converts go-openai errors into *api.APIError. Upstream
// request validation and rate limiting keep their meaning; everything
// else is a model error.
func mapError(err error) *api.APIError {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return mapStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return mapStatus(reqErr.HTTPStatusCode, msg)
	}

	return api.NewModelError(fmt.Sprintf("provider connection error: %s", err.Error()))
}

func mapStatus(status int, message string) *api.APIError {
	switch {
	case status == http.StatusBadRequest:
		if message == "" {
			message = "invalid request to provider"
		}
		e := api.NewModelError(message)
		e.Code = "provider_invalid_request"
		return e
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if message == "" {
			message = "provider authentication failed"
		}
		return api.NewServerError(message)
	case status == http.StatusTooManyRequests:
		if message == "" {
			message = "provider rate limit exceeded"
		}
		return api.NewTooManyRequestsError(message)
	default:
		if message == "" {
			message = fmt.Sprintf("provider error (HTTP %d)", status)
		}
		return api.NewModelError(message)
	}
}
