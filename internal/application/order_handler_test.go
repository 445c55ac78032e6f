package application

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erp-mcp-server/internal/domain"
)

func newOrderHandler(t *testing.T, backend *fakeBackend) *OrderHandler {
	t.Helper()
	h, err := NewOrderHandler(backend, ToolDeps{})
	require.NoError(t, err)
	return h
}

func TestFindOrderItems(t *testing.T) {
	backend := newFakeBackend().add(domain.EntityOrderItem,
		domain.Record{"orderId": "O1", "orderItemSeqId": "00001", "productId": "P1", "quantity": float64(2), "unitPrice": float64(9.5)},
		domain.Record{"orderId": "O1", "orderItemSeqId": "00002", "productId": "P2", "estimatedDeliveryDate": "2024-05-01 00:00:00.0"},
		domain.Record{"orderId": "O2", "orderItemSeqId": "00001", "productId": "P3"},
	)
	h := newOrderHandler(t, backend)

	out := structured(t, callTool(t, h, ToolFindOrderItems, map[string]interface{}{"orderId": "O1"}))
	assert.Equal(t, "O1", out["orderId"])
	items := out["items"].([]interface{})
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "P1", first["productId"])
	assert.Equal(t, float64(2), first["quantity"])
	assert.Equal(t, "2024-05-01 00:00:00.0", items[1].(map[string]interface{})["estimatedDeliveryDate"])

	calls := backend.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.EntityOrderItem, calls[0].Entity)
}

func TestFindOrderItems_NumericIDs(t *testing.T) {
	backend := newFakeBackend().add(domain.EntityOrderItem,
		domain.Record{"orderId": "O1", "orderItemSeqId": json.Number("1"), "productId": json.Number("10010"), "quantity": json.Number("3")},
	)
	h := newOrderHandler(t, backend)

	out := structured(t, callTool(t, h, ToolFindOrderItems, map[string]interface{}{"orderId": "O1"}))
	items := out["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "1", item["orderItemSeqId"])
	assert.Equal(t, "10010", item["productId"])
	assert.Equal(t, float64(3), item["quantity"])
}

func TestFindOrderItems_Empty(t *testing.T) {
	h := newOrderHandler(t, newFakeBackend())

	resp := callTool(t, h, ToolFindOrderItems, map[string]interface{}{"orderId": "NOPE"})
	out := structured(t, resp)
	assert.Equal(t, []interface{}{}, out["items"])
	assert.Contains(t, resp.Content[0].Text, `"items": []`)
}

func TestFindOrderItems_ServiceErrorBody(t *testing.T) {
	h, err := NewOrderHandler(serviceErrorClient(t, "User admin does not have permission"), ToolDeps{})
	require.NoError(t, err)

	msg := errorText(t, callTool(t, h, ToolFindOrderItems, map[string]interface{}{"orderId": "1001"}))
	assert.Contains(t, msg, "Backend service error")
	assert.Contains(t, msg, "User admin does not have permission")
}

func TestFindOrderTasks(t *testing.T) {
	backend := newFakeBackend().
		add(domain.EntityWorkOrderItemFulfillment,
			domain.Record{"orderId": "O1", "orderItemSeqId": "00001", "workEffortId": "WE1"},
			domain.Record{"orderId": "O1", "orderItemSeqId": "00002", "workEffortId": "WE2"},
		).
		add(domain.EntityWorkEffort,
			domain.Record{"workEffortId": "WE1", "workEffortName": "Assemble", "currentStatusId": "PRUN_RUNNING", "estimatedStartDate": float64(1714000000000)},
			domain.Record{"workEffortId": "WE2", "workEffortName": "Pack", "currentStatusId": "PRUN_CREATED"},
		)
	h := newOrderHandler(t, backend)

	out := structured(t, callTool(t, h, ToolFindOrderTasks, map[string]interface{}{"orderId": "O1"}))
	tasks := out["tasks"].([]interface{})
	require.Len(t, tasks, 2)

	first := tasks[0].(map[string]interface{})
	assert.Equal(t, "WE1", first["workEffortId"])
	assert.Equal(t, "00001", first["orderItemSeqId"])
	assert.Equal(t, "Assemble", first["workEffortName"])
	assert.Equal(t, float64(1714000000000), first["estimatedStartDate"])

	assert.Equal(t, []string{
		domain.EntityWorkOrderItemFulfillment,
		domain.EntityWorkEffort,
		domain.EntityWorkEffort,
	}, backend.entities(), "work efforts are fetched one at a time after the fulfillments")
}

func TestFindOrderTasks_Failures(t *testing.T) {
	t.Run("missing work effort link", func(t *testing.T) {
		backend := newFakeBackend().add(domain.EntityWorkOrderItemFulfillment,
			domain.Record{"orderId": "O1", "orderItemSeqId": "00001"})
		msg := errorText(t, callTool(t, newOrderHandler(t, backend), ToolFindOrderTasks, map[string]interface{}{"orderId": "O1"}))
		assert.Contains(t, msg, "Missing link")
		assert.Contains(t, msg, "workEffortId")
	})

	t.Run("work effort not found", func(t *testing.T) {
		backend := newFakeBackend().add(domain.EntityWorkOrderItemFulfillment,
			domain.Record{"orderId": "O1", "orderItemSeqId": "00001", "workEffortId": "WE404"})
		msg := errorText(t, callTool(t, newOrderHandler(t, backend), ToolFindOrderTasks, map[string]interface{}{"orderId": "O1"}))
		assert.Contains(t, msg, "Not found")
		assert.Contains(t, msg, "WE404")
	})

	t.Run("no fulfillments", func(t *testing.T) {
		out := structured(t, callTool(t, newOrderHandler(t, newFakeBackend()), ToolFindOrderTasks, map[string]interface{}{"orderId": "O1"}))
		assert.Equal(t, []interface{}{}, out["tasks"])
	})
}
