package application

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"erp-mcp-server/internal/domain"
)

// ToolSpec is the static metadata of a tool.
type ToolSpec struct {
	Name        string
	Title       string
	Description string
}

// ToolDeps are the collaborators shared by every tool of a server.
type ToolDeps struct {
	// Backend supplies the static fallback credential.
	Backend domain.BackendConfig
	Mapper  domain.ResponseMapper
	Logger  domain.Logger
}

func (d ToolDeps) withDefaults() ToolDeps {
	if d.Mapper == nil {
		d.Mapper = domain.NewResponseMapper()
	}
	if d.Logger == nil {
		d.Logger = domain.NopLogger{}
	}
	return d
}

// Call carries the per-invocation values a tool body needs.
type Call struct {
	InvocationID string
	// Credential is resolved once per invocation and used for every
	// backend request of that invocation.
	Credential domain.Credential
}

// ToolFunc is the typed body of a tool.
type ToolFunc[In, Out any] func(ctx context.Context, call Call, in In) (Out, error)

// Invoker is a tool as seen by a handler: its definition plus an entry
// point that always yields one of the two response shapes.
type Invoker interface {
	Definition() domain.ToolDefinition
	Call(ctx context.Context, args map[string]interface{}) *domain.ToolResponse
}

// Tool binds a typed body to reflected input and output schemas.
// A Tool is immutable once built and safe for concurrent calls.
type Tool[In, Out any] struct {
	spec       ToolSpec
	fn         ToolFunc[In, Out]
	deps       ToolDeps
	definition domain.ToolDefinition
	input      *domain.CompiledSchema
	output     *domain.CompiledSchema
}

// NewTool reflects and compiles the schemas of In and Out and returns the
// tool. In and Out must be struct types.
func NewTool[In, Out any](spec ToolSpec, deps ToolDeps, fn ToolFunc[In, Out]) (*Tool[In, Out], error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s has no body", spec.Name)
	}

	inSchema := domain.GenerateSchema[In]()
	outSchema := domain.GenerateSchema[Out]()

	input, err := domain.CompileSchema(spec.Name+".input", inSchema)
	if err != nil {
		return nil, err
	}
	output, err := domain.CompileSchema(spec.Name+".output", outSchema)
	if err != nil {
		return nil, err
	}

	return &Tool[In, Out]{
		spec: spec,
		fn:   fn,
		deps: deps.withDefaults(),
		definition: domain.ToolDefinition{
			Name:         spec.Name,
			Title:        spec.Title,
			Description:  spec.Description,
			InputSchema:  inSchema,
			OutputSchema: outSchema,
		},
		input:  input,
		output: output,
	}, nil
}

// Definition returns the tool metadata advertised by tools/list.
func (t *Tool[In, Out]) Definition() domain.ToolDefinition {
	return t.definition
}

// Name returns the tool name.
func (t *Tool[In, Out]) Name() string {
	return t.spec.Name
}

// Call validates args, runs the tool body and wraps the outcome. It never
// returns nil and never panics.
func (t *Tool[In, Out]) Call(ctx context.Context, args map[string]interface{}) (resp *domain.ToolResponse) {
	invocationID := uuid.NewString()
	logger := t.deps.Logger

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tool %s panicked: %v", t.spec.Name, r)
			logger.Error(ctx, err, "tool panic", "tool", t.spec.Name, "invocation_id", invocationID)
			resp = t.deps.Mapper.MapError(err)
		}
	}()

	if args == nil {
		args = map[string]interface{}{}
	}
	if err := t.input.Validate(args); err != nil {
		logger.Warn(ctx, "tool input rejected", "tool", t.spec.Name, "invocation_id", invocationID, "error", err.Error())
		return t.deps.Mapper.MapError(&domain.ValidationError{Tool: t.spec.Name, Reason: err.Error()})
	}

	in, err := decodeArgs[In](args)
	if err != nil {
		return t.deps.Mapper.MapError(&domain.ValidationError{Tool: t.spec.Name, Reason: err.Error()})
	}

	rc := domain.RequestContextFrom(ctx)
	call := Call{
		InvocationID: invocationID,
		Credential:   domain.ResolveCredential(rc, t.deps.Backend),
	}
	logger.Info(ctx, "tool call", "tool", t.spec.Name, "invocation_id", invocationID,
		"credential", call.Credential.Source(rc))

	out, err := t.fn(ctx, call, in)
	if err != nil {
		logger.Warn(ctx, "tool failed", "tool", t.spec.Name, "invocation_id", invocationID, "error", err.Error())
		return t.deps.Mapper.MapError(err)
	}

	if err := t.output.Validate(out); err != nil {
		err = fmt.Errorf("output of %s does not match its schema: %w", t.spec.Name, err)
		logger.Error(ctx, err, "tool output rejected", "tool", t.spec.Name, "invocation_id", invocationID)
		return t.deps.Mapper.MapError(err)
	}

	resp, err = t.deps.Mapper.MapToToolResponse(out)
	if err != nil {
		logger.Error(ctx, err, "failed to encode tool output", "tool", t.spec.Name, "invocation_id", invocationID)
		return t.deps.Mapper.MapError(err)
	}
	logger.Debug(ctx, "tool succeeded", "tool", t.spec.Name, "invocation_id", invocationID)
	return resp
}

// decodeArgs converts validated arguments into In.
func decodeArgs[In any](args map[string]interface{}) (In, error) {
	var in In
	data, err := json.Marshal(args)
	if err != nil {
		return in, fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("arguments do not fit %s: %w", reflect.TypeOf(in), err)
	}
	return in, nil
}
