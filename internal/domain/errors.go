package domain

import (
	"fmt"
	"strings"
)

// NotFoundError reports that a queried entity has no matching rows.
type NotFoundError struct {
	Entity string
	Field  string
	Value  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found for %s=%s", e.Entity, e.Field, e.Value)
}

// MissingLinkError reports that an expected foreign key is absent on a record.
type MissingLinkError struct {
	Entity string
	ID     string
	Field  string
}

func (e *MissingLinkError) Error() string {
	return fmt.Sprintf("%s %s has no %s", e.Entity, e.ID, e.Field)
}

// BackendHTTPError reports a non-2xx response from the backend.
type BackendHTTPError struct {
	Status int
	Method string
	URL    string
	Body   string
}

func (e *BackendHTTPError) Error() string {
	msg := fmt.Sprintf("backend returned HTTP %d for %s %s", e.Status, e.Method, e.URL)
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 512 {
			body = body[:512] + "..."
		}
		msg += ": " + body
	}
	return msg
}

// BackendUnavailableError reports a transport-level failure such as a
// refused connection or a timeout.
type BackendUnavailableError struct {
	Method string
	URL    string
	Err    error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable for %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// BackendServiceError reports an error embedded in a successful HTTP
// response (responseMessage "error" or "fail").
type BackendServiceError struct {
	Message string
}

func (e *BackendServiceError) Error() string {
	return "backend service error: " + e.Message
}

// NoRetrievableContentError reports that every content retrieval strategy
// came back empty.
type NoRetrievableContentError struct {
	ContentID          string
	DataResourceTypeID string
	// Cause is the last download failure, if any.
	Cause error
}

func (e *NoRetrievableContentError) Error() string {
	typeID := e.DataResourceTypeID
	if typeID == "" {
		typeID = "unknown"
	}
	msg := fmt.Sprintf("no retrievable content for contentId=%s (dataResourceTypeId=%s)", e.ContentID, typeID)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NoRetrievableContentError) Unwrap() error {
	return e.Cause
}

// ValidationError reports tool input that does not match its schema.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}
