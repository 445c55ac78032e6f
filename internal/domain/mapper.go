package domain

// ResponseMapper converts tool outcomes into MCP tool responses.
// Every tool goes through the same mapper so callers always see one of the
// two envelope shapes.
type ResponseMapper interface {
	// MapToToolResponse wraps a typed tool output as a success response.
	// The output is returned as structured content and echoed as indented
	// JSON text.
	MapToToolResponse(output interface{}) (*ToolResponse, error)

	// MapError converts any error into an error response with a
	// human-readable message.
	MapError(err error) *ToolResponse
}
