package application

import (
	"context"
	"fmt"

	"erp-mcp-server/internal/domain"
)

// toolSet implements domain.ToolHandler over a fixed list of tools.
// Handlers embed it and only declare their tools.
type toolSet struct {
	name   string
	tools  []Invoker
	byName map[string]Invoker
}

func newToolSet(name string, tools []Invoker) *toolSet {
	s := &toolSet{
		name:   name,
		tools:  tools,
		byName: make(map[string]Invoker, len(tools)),
	}
	for _, t := range tools {
		s.byName[t.Definition().Name] = t
	}
	return s
}

// ToolName returns the identifier for this handler.
func (s *toolSet) ToolName() string {
	return s.name
}

// ListTools returns the definitions in declaration order.
func (s *toolSet) ListTools() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(s.tools))
	for _, t := range s.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Handle runs the named tool. An error is returned only for unknown tools;
// tool failures come back as error responses.
func (s *toolSet) Handle(ctx context.Context, req *domain.ToolRequest) (*domain.ToolResponse, error) {
	t, ok := s.byName[req.Name]
	if !ok {
		return nil, &domain.Error{
			Code:    domain.MethodNotFound,
			Message: fmt.Sprintf("unknown %s tool: %s", s.name, req.Name),
		}
	}
	return t.Call(ctx, req.Arguments), nil
}

// toolList collects tools, keeping the first construction error.
type toolList struct {
	tools []Invoker
	err   error
}

func (l *toolList) add(t Invoker, err error) {
	if l.err != nil {
		return
	}
	if err != nil {
		l.err = err
		return
	}
	l.tools = append(l.tools, t)
}
