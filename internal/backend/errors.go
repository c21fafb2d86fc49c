package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	errorMessageUnauthorized   = "backend: unauthorized"
	errorMessageMissingBaseURL = "backend: missing base url"
	errorMessageInvalidBaseURL = "backend: invalid base url"
	errorMessageEncodeBody     = "backend: encode request body"
	errorMessageBuildRequest   = "backend: build request"
	errorMessageDecodeResponse = "backend: decode response"
	statusErrorMessageTemplate = "backend: %s %s returned %d"
	maxErrorBodyBytes          = 16 * 1024
)

var (
	// ErrUnauthorized indicates the backend rejected the bearer credential with 401.
	ErrUnauthorized = errors.New(errorMessageUnauthorized)
	// ErrMissingBaseURL indicates the backend base URL configuration was omitted.
	ErrMissingBaseURL = errors.New(errorMessageMissingBaseURL)
	// ErrInvalidBaseURL indicates the backend base URL could not be parsed.
	ErrInvalidBaseURL = errors.New(errorMessageInvalidBaseURL)
)

// StatusError reports a non-2xx, non-401 backend response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (statusError *StatusError) Error() string {
	message := fmt.Sprintf(statusErrorMessageTemplate, statusError.Method, statusError.Path, statusError.StatusCode)
	if statusError.Detail == "" {
		return message
	}
	return message + ": " + statusError.Detail
}

// DetailFromError returns the backend-supplied detail message carried by err, if any.
func DetailFromError(err error) string {
	var statusError *StatusError
	if errors.As(err, &statusError) {
		return statusError.Detail
	}
	return ""
}

func newStatusError(response *http.Response) *StatusError {
	statusError := &StatusError{StatusCode: response.StatusCode}
	if response.Request != nil {
		statusError.Method = response.Request.Method
		statusError.Path = response.Request.URL.Path
	}
	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
	if readErr != nil || len(body) == 0 {
		return statusError
	}
	var payload struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return statusError
	}
	if detail, ok := payload.Detail.(string); ok {
		statusError.Detail = strings.TrimSpace(detail)
	}
	return statusError
}
