package domain

import (
	"context"
)

// ToolHandler processes requests for a group of related ERP tools.
// Each area (data manager, content, orders) has its own handler that
// implements this interface.
type ToolHandler interface {
	// Handle processes an MCP tool call request.
	// Tool failures are reported inside the returned ToolResponse; an error
	// is returned only when the handler does not know the tool.
	Handle(ctx context.Context, req *ToolRequest) (*ToolResponse, error)

	// ListTools returns available tools for this handler.
	ListTools() []ToolDefinition

	// ToolName returns the identifier for this handler.
	ToolName() string
}
