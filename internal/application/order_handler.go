package application

import (
	"context"

	"erp-mcp-server/internal/domain"
)

// Tool name constants for order operations.
const (
	ToolFindOrderItems = "findOrderItems"
	ToolFindOrderTasks = "findOrderTasks"
)

// OrderItem is the projection of an OrderItem record.
type OrderItem struct {
	OrderID               string      `json:"orderId,omitempty"`
	OrderItemSeqID        string      `json:"orderItemSeqId,omitempty"`
	ProductID             string      `json:"productId,omitempty"`
	ItemDescription       string      `json:"itemDescription,omitempty"`
	StatusID              string      `json:"statusId,omitempty"`
	ShipGroupSeqID        string      `json:"shipGroupSeqId,omitempty"`
	Quantity              *float64    `json:"quantity,omitempty"`
	UnitPrice             *float64    `json:"unitPrice,omitempty"`
	EstimatedDeliveryDate interface{} `json:"estimatedDeliveryDate,omitempty" jsonschema:"description=Date string or epoch milliseconds"`
}

// OrderTask joins a WorkOrderItemFulfillment row with its WorkEffort.
type OrderTask struct {
	WorkEffortID            string      `json:"workEffortId" jsonschema:"required"`
	OrderItemSeqID          string      `json:"orderItemSeqId,omitempty"`
	ShipGroupSeqID          string      `json:"shipGroupSeqId,omitempty"`
	WorkEffortTypeID        string      `json:"workEffortTypeId,omitempty"`
	WorkEffortName          string      `json:"workEffortName,omitempty"`
	Description             string      `json:"description,omitempty"`
	CurrentStatusID         string      `json:"currentStatusId,omitempty"`
	EstimatedStartDate      interface{} `json:"estimatedStartDate,omitempty" jsonschema:"description=Date string or epoch milliseconds"`
	EstimatedCompletionDate interface{} `json:"estimatedCompletionDate,omitempty" jsonschema:"description=Date string or epoch milliseconds"`
	ActualStartDate         interface{} `json:"actualStartDate,omitempty" jsonschema:"description=Date string or epoch milliseconds"`
	ActualCompletionDate    interface{} `json:"actualCompletionDate,omitempty" jsonschema:"description=Date string or epoch milliseconds"`
}

// OrderInput is the input of the order tools.
type OrderInput struct {
	OrderID string `json:"orderId" jsonschema:"required,minLength=1,description=Id of the order"`
	Limit   int    `json:"limit,omitempty" jsonschema:"minimum=1,maximum=500,description=Maximum number of rows (default 20)"`
}

// FindOrderItemsOutput is the output of findOrderItems.
type FindOrderItemsOutput struct {
	OrderID string      `json:"orderId" jsonschema:"required"`
	Items   []OrderItem `json:"items" jsonschema:"required"`
}

// FindOrderTasksOutput is the output of findOrderTasks.
type FindOrderTasksOutput struct {
	OrderID string      `json:"orderId" jsonschema:"required"`
	Tasks   []OrderTask `json:"tasks" jsonschema:"required"`
}

// OrderHandler implements ToolHandler for order operations.
type OrderHandler struct {
	*toolSet
	client domain.BackendClient
}

// NewOrderHandler creates a new OrderHandler instance.
func NewOrderHandler(client domain.BackendClient, deps ToolDeps) (*OrderHandler, error) {
	h := &OrderHandler{client: client}

	var l toolList
	l.add(NewQueryTool(ToolSpec{
		Name:        ToolFindOrderItems,
		Title:       "Find order items",
		Description: "List the items of an order. An order without items yields an empty list.",
	}, deps, client, Query[OrderInput, FindOrderItemsOutput]{
		Entity:  domain.EntityOrderItem,
		Filters: func(in OrderInput) map[string]interface{} { return map[string]interface{}{"orderId": in.OrderID} },
		LimitOf: func(in OrderInput) int { return in.Limit },
		SortKey: "orderItemSeqId",
		Shape: func(in OrderInput, docs []domain.Record) (FindOrderItemsOutput, error) {
			items, err := domain.ProjectAll[OrderItem](docs)
			if err != nil {
				return FindOrderItemsOutput{}, err
			}
			return FindOrderItemsOutput{OrderID: in.OrderID, Items: items}, nil
		},
	}))

	l.add(NewTool(ToolSpec{
		Name:        ToolFindOrderTasks,
		Title:       "Find order tasks",
		Description: "List the work efforts fulfilling the items of an order, with their status and dates.",
	}, deps, h.findOrderTasks))

	if l.err != nil {
		return nil, l.err
	}
	h.toolSet = newToolSet("order", l.tools)
	return h, nil
}

// findOrderTasks looks up the fulfillments of the order, then each work
// effort in turn.
func (h *OrderHandler) findOrderTasks(ctx context.Context, call Call, in OrderInput) (FindOrderTasksOutput, error) {
	links, err := find(ctx, h.client, call.Credential, domain.QueryRequest{
		EntityName: domain.EntityWorkOrderItemFulfillment,
		Filters:    map[string]interface{}{"orderId": in.OrderID},
		Limit:      in.Limit,
	})
	if err != nil {
		return FindOrderTasksOutput{}, err
	}

	tasks := make([]OrderTask, 0, len(links))
	for _, link := range links {
		workEffortID := link.String("workEffortId")
		if workEffortID == "" {
			return FindOrderTasksOutput{}, &domain.MissingLinkError{
				Entity: domain.EntityWorkOrderItemFulfillment,
				ID:     in.OrderID + "/" + link.String("orderItemSeqId"),
				Field:  "workEffortId",
			}
		}

		efforts, err := find(ctx, h.client, call.Credential, domain.QueryRequest{
			EntityName: domain.EntityWorkEffort,
			Filters:    map[string]interface{}{"workEffortId": workEffortID},
			Limit:      1,
		})
		if err != nil {
			return FindOrderTasksOutput{}, err
		}
		if len(efforts) == 0 {
			return FindOrderTasksOutput{}, &domain.NotFoundError{Entity: domain.EntityWorkEffort, Field: "workEffortId", Value: workEffortID}
		}

		merged := domain.Record{}
		for k, v := range efforts[0] {
			merged[k] = v
		}
		for _, k := range []string{"workEffortId", "orderItemSeqId", "shipGroupSeqId"} {
			if link.Has(k) {
				merged[k] = link[k]
			}
		}

		task, err := domain.ProjectInto[OrderTask](merged)
		if err != nil {
			return FindOrderTasksOutput{}, err
		}
		tasks = append(tasks, task)
	}

	return FindOrderTasksOutput{OrderID: in.OrderID, Tasks: tasks}, nil
}
