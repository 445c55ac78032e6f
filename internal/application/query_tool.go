package application

import (
	"context"
	"fmt"

	"erp-mcp-server/internal/domain"
)

// Query declares a single-entity lookup tool.
type Query[In, Out any] struct {
	Entity string
	// Filters builds the performFind input fields. Nil values are dropped.
	Filters func(in In) map[string]interface{}
	Limit   int
	// LimitOf overrides Limit with a value taken from the input.
	LimitOf func(in In) int
	SortKey string
	// Shape turns the returned rows into the tool output.
	Shape func(in In, docs []domain.Record) (Out, error)
}

// NewQueryTool builds a tool that runs one performFind and shapes its rows.
func NewQueryTool[In, Out any](spec ToolSpec, deps ToolDeps, client domain.BackendClient, q Query[In, Out]) (*Tool[In, Out], error) {
	if q.Entity == "" || q.Filters == nil || q.Shape == nil {
		return nil, fmt.Errorf("query tool %s needs an entity, filters and a shape", spec.Name)
	}
	return NewTool(spec, deps, func(ctx context.Context, call Call, in In) (Out, error) {
		limit := q.Limit
		if q.LimitOf != nil {
			limit = q.LimitOf(in)
		}
		docs, err := find(ctx, client, call.Credential, domain.QueryRequest{
			EntityName: q.Entity,
			Filters:    q.Filters(in),
			Limit:      limit,
			SortKey:    q.SortKey,
		})
		if err != nil {
			var zero Out
			return zero, err
		}
		return q.Shape(in, docs)
	})
}

// find runs one query and rejects a service error reported either on the
// response body or on a returned row.
func find(ctx context.Context, client domain.BackendClient, cred domain.Credential, req domain.QueryRequest) ([]domain.Record, error) {
	resp, err := client.Find(ctx, cred, req)
	if err != nil {
		return nil, fmt.Errorf("%s lookup failed: %w", req.EntityName, err)
	}
	if resp == nil {
		return []domain.Record{}, nil
	}
	if err := domain.CheckServiceResponse(resp.Body); err != nil {
		return nil, fmt.Errorf("%s lookup failed: %w", req.EntityName, err)
	}
	for _, doc := range resp.Docs {
		if err := domain.CheckServiceResponse(doc); err != nil {
			return nil, err
		}
	}
	return resp.Docs, nil
}

// single projects the first row onto T, or fails with NotFoundError.
func single[T any](entity, field, value string, docs []domain.Record) (T, error) {
	if len(docs) == 0 {
		var zero T
		return zero, &domain.NotFoundError{Entity: entity, Field: field, Value: value}
	}
	return domain.ProjectInto[T](docs[0])
}
