package application

import (
	"context"
	"fmt"

	"erp-mcp-server/internal/domain"
)

// RequestRouter dispatches MCP tool requests to the appropriate ToolHandler.
// Handlers are indexed by the exact names of the tools they list.
type RequestRouter struct {
	handlers []domain.ToolHandler
	byTool   map[string]domain.ToolHandler
}

// NewRequestRouter creates a new RequestRouter with the provided handlers.
// It fails when two handlers list the same tool name.
func NewRequestRouter(handlers ...domain.ToolHandler) (*RequestRouter, error) {
	router := &RequestRouter{
		handlers: handlers,
		byTool:   make(map[string]domain.ToolHandler),
	}

	for _, handler := range handlers {
		for _, def := range handler.ListTools() {
			if existing, dup := router.byTool[def.Name]; dup {
				return nil, fmt.Errorf("tool %s registered by both %s and %s", def.Name, existing.ToolName(), handler.ToolName())
			}
			router.byTool[def.Name] = handler
		}
	}

	return router, nil
}

// Route dispatches a tool request to the handler that lists its name.
func (r *RequestRouter) Route(ctx context.Context, req *domain.ToolRequest) (*domain.ToolResponse, error) {
	handler, exists := r.byTool[req.Name]
	if !exists {
		return nil, &domain.Error{
			Code:    domain.MethodNotFound,
			Message: "Tool not found",
			Data:    fmt.Sprintf("unknown tool: %s", req.Name),
		}
	}

	return handler.Handle(ctx, req)
}

// ListAllTools aggregates tool definitions from all registered handlers,
// in registration order.
func (r *RequestRouter) ListAllTools() []domain.ToolDefinition {
	allTools := []domain.ToolDefinition{}
	for _, handler := range r.handlers {
		allTools = append(allTools, handler.ListTools()...)
	}
	return allTools
}

// GetHandler returns the handler serving a tool name.
func (r *RequestRouter) GetHandler(toolName string) (domain.ToolHandler, bool) {
	handler, exists := r.byTool[toolName]
	return handler, exists
}
