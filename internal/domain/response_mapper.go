package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// DefaultResponseMapper is the default implementation of ResponseMapper.
type DefaultResponseMapper struct{}

// NewResponseMapper creates a new instance of DefaultResponseMapper.
func NewResponseMapper() ResponseMapper {
	return &DefaultResponseMapper{}
}

// MapToToolResponse converts a tool output to the success envelope.
func (m *DefaultResponseMapper) MapToToolResponse(output interface{}) (*ToolResponse, error) {
	if output == nil {
		return &ToolResponse{
			Content:           TextContent("{}"),
			StructuredContent: map[string]interface{}{},
		}, nil
	}

	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool output: %w", err)
	}

	return &ToolResponse{
		Content:           TextContent(string(jsonBytes)),
		StructuredContent: output,
	}, nil
}

// MapError converts an error to the error envelope.
func (m *DefaultResponseMapper) MapError(err error) *ToolResponse {
	if err == nil {
		err = errors.New("unknown error")
	}
	return &ToolResponse{
		Content: TextContent(ErrorMessage(err)),
		IsError: true,
	}
}

// ErrorMessage renders err for a tool caller, prefixing the failure class.
func ErrorMessage(err error) string {
	var (
		validationErr  *ValidationError
		notFoundErr    *NotFoundError
		missingLinkErr *MissingLinkError
		httpErr        *BackendHTTPError
		unavailableErr *BackendUnavailableError
		serviceErr     *BackendServiceError
		noContentErr   *NoRetrievableContentError
		rpcErr         *Error
	)

	switch {
	case errors.As(err, &validationErr):
		return "Invalid input: " + err.Error()
	case errors.As(err, &httpErr):
		return fmt.Sprintf("%s (status %d): %s", httpStatusSummary(httpErr.Status), httpErr.Status, err.Error())
	case errors.As(err, &unavailableErr):
		return "Backend unavailable: " + err.Error()
	case errors.As(err, &serviceErr):
		return "Backend service error: " + serviceErr.Message
	case errors.As(err, &notFoundErr):
		return "Not found: " + err.Error()
	case errors.As(err, &missingLinkErr):
		return "Missing link: " + err.Error()
	case errors.As(err, &noContentErr):
		return "No retrievable content: " + err.Error()
	case errors.As(err, &rpcErr):
		return rpcErr.Message
	default:
		return "Error: " + err.Error()
	}
}

// ErrorCode maps an error to the closest JSON-RPC error code.
func ErrorCode(err error) int {
	var (
		rpcErr         *Error
		validationErr  *ValidationError
		httpErr        *BackendHTTPError
		unavailableErr *BackendUnavailableError
	)

	switch {
	case errors.As(err, &rpcErr):
		return rpcErr.Code
	case errors.As(err, &validationErr):
		return InvalidParams
	case errors.As(err, &httpErr):
		if httpErr.Status == http.StatusUnauthorized || httpErr.Status == http.StatusForbidden {
			return AuthenticationError
		}
		return BackendError
	case errors.As(err, &unavailableErr):
		return NetworkError
	default:
		return InternalError
	}
}

// httpStatusSummary gives a short label for a backend status code.
func httpStatusSummary(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Authentication failed"
	case http.StatusForbidden:
		return "Access forbidden"
	case http.StatusNotFound:
		return "Backend resource not found"
	case http.StatusBadRequest:
		return "Bad request"
	case http.StatusTooManyRequests:
		return "Rate limited by backend"
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway:
		return "Backend unavailable"
	default:
		if status >= 500 {
			return "Backend server error"
		}
		return "Backend client error"
	}
}
