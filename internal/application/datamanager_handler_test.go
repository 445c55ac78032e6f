package application

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erp-mcp-server/internal/domain"
)

func newDataManagerHandler(t *testing.T, backend *fakeBackend) *DataManagerHandler {
	t.Helper()
	h, err := NewDataManagerHandler(backend, ToolDeps{})
	require.NoError(t, err)
	return h
}

func callTool(t *testing.T, h domain.ToolHandler, name string, args map[string]interface{}) *domain.ToolResponse {
	t.Helper()
	resp, err := h.Handle(context.Background(), &domain.ToolRequest{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func TestDataManagerHandler_ListTools(t *testing.T) {
	h := newDataManagerHandler(t, newFakeBackend())

	var names []string
	for _, def := range h.ListTools() {
		names = append(names, def.Name)
		assert.NotEmpty(t, def.Description)
		assert.NotNil(t, def.InputSchema)
		assert.NotNil(t, def.OutputSchema)
	}
	assert.Equal(t, []string{
		ToolGetLogByID,
		ToolFindDataManagerLogs,
		ToolGetDataManagerConfig,
		ToolRetryDataManagerLog,
		ToolUploadAndImportFile,
	}, names)
	assert.Equal(t, "datamanager", h.ToolName())
}

func TestGetLogByID(t *testing.T) {
	backend := newFakeBackend().add(domain.EntityDataManagerLog, domain.Record{
		"logId":                "40160",
		"configId":             "IMP_ORDER",
		"statusId":             "SERVICE_FAILED",
		"errorRecordContentId": "C1",
		"totalRecordCount":     json.Number("12"),
		"createdDate":          float64(1712000000000),
		"lastUpdatedStamp":     "ignored",
	})
	h := newDataManagerHandler(t, backend)

	out := structured(t, callTool(t, h, ToolGetLogByID, map[string]interface{}{"logId": "40160"}))
	assert.Equal(t, "40160", out["logId"])
	assert.Equal(t, "C1", out["errorRecordContentId"])
	assert.Equal(t, float64(12), out["totalRecordCount"])
	assert.Equal(t, float64(1712000000000), out["createdDate"])
	assert.NotContains(t, out, "lastUpdatedStamp")
	assert.NotContains(t, out, "failedRecordCount")

	calls := backend.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.EntityDataManagerLog, calls[0].Entity)
	assert.Equal(t, map[string]interface{}{"logId": "40160"}, calls[0].Filters)
	assert.Equal(t, 1, calls[0].Limit)
}

func TestGetLogByID_Idempotent(t *testing.T) {
	backend := newFakeBackend().add(domain.EntityDataManagerLog, domain.Record{"logId": "L1", "statusId": "SERVICE_FINISHED"})
	h := newDataManagerHandler(t, backend)

	first := callTool(t, h, ToolGetLogByID, map[string]interface{}{"logId": "L1"})
	second := callTool(t, h, ToolGetLogByID, map[string]interface{}{"logId": "L1"})
	assert.Equal(t, first, second)
}

func TestGetLogByID_Failures(t *testing.T) {
	tests := []struct {
		name     string
		backend  *fakeBackend
		args     map[string]interface{}
		contains []string
	}{
		{
			name:     "not found",
			backend:  newFakeBackend(),
			args:     map[string]interface{}{"logId": "missing"},
			contains: []string{"Not found", "missing"},
		},
		{
			name:     "missing argument",
			backend:  newFakeBackend(),
			args:     map[string]interface{}{},
			contains: []string{"Invalid input"},
		},
		{
			name: "backend status",
			backend: func() *fakeBackend {
				b := newFakeBackend()
				b.findErr[domain.EntityDataManagerLog] = &domain.BackendHTTPError{Status: 500, Method: "POST", URL: "/api/performFind", Body: "oops"}
				return b
			}(),
			args:     map[string]interface{}{"logId": "L1"},
			contains: []string{"500"},
		},
		{
			name: "service error row",
			backend: newFakeBackend().add(domain.EntityDataManagerLog, domain.Record{
				"logId":           "L1",
				"responseMessage": "error",
				"errorMessage":    "permission denied",
			}),
			args:     map[string]interface{}{"logId": "L1"},
			contains: []string{"Backend service error", "permission denied"},
		},
		{
			name: "service error body",
			backend: func() *fakeBackend {
				b := newFakeBackend()
				b.bodies = map[string]domain.Record{
					domain.EntityDataManagerLog: {"responseMessage": "error", "errorMessage": "not authorized"},
				}
				return b
			}(),
			args:     map[string]interface{}{"logId": "L1"},
			contains: []string{"Backend service error", "not authorized"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := errorText(t, callTool(t, newDataManagerHandler(t, tt.backend), ToolGetLogByID, tt.args))
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestFindDataManagerLogs(t *testing.T) {
	backend := newFakeBackend().add(domain.EntityDataManagerLog,
		domain.Record{"logId": "L3", "configId": "IMP", "statusId": "SERVICE_FAILED"},
		domain.Record{"logId": "L2", "configId": "IMP", "statusId": "SERVICE_FINISHED"},
		domain.Record{"logId": "L1", "configId": "IMP", "statusId": "SERVICE_FAILED"},
		domain.Record{"logId": "X1", "configId": "OTHER", "statusId": "SERVICE_FAILED"},
	)
	h := newDataManagerHandler(t, backend)

	t.Run("all statuses", func(t *testing.T) {
		out := structured(t, callTool(t, h, ToolFindDataManagerLogs, map[string]interface{}{"configId": "IMP"}))
		assert.Equal(t, float64(3), out["count"])
		assert.Len(t, out["logs"], 3)
	})

	t.Run("status filter", func(t *testing.T) {
		out := structured(t, callTool(t, h, ToolFindDataManagerLogs, map[string]interface{}{
			"configId":  "IMP",
			"statusIds": []interface{}{"SERVICE_FAILED"},
		}))
		assert.Equal(t, float64(2), out["count"])
		logs := out["logs"].([]interface{})
		assert.Equal(t, "L3", logs[0].(map[string]interface{})["logId"])
		assert.Equal(t, "L1", logs[1].(map[string]interface{})["logId"])
	})

	t.Run("no match is an empty list", func(t *testing.T) {
		out := structured(t, callTool(t, h, ToolFindDataManagerLogs, map[string]interface{}{"configId": "NONE"}))
		assert.Equal(t, float64(0), out["count"])
		assert.Equal(t, []interface{}{}, out["logs"])
	})

	t.Run("limit is forwarded", func(t *testing.T) {
		callTool(t, h, ToolFindDataManagerLogs, map[string]interface{}{"configId": "IMP", "limit": 2})
		calls := backend.recorded()
		assert.Equal(t, 2, calls[len(calls)-1].Limit)
	})
}

func TestLimitOrDefault(t *testing.T) {
	assert.Equal(t, domain.DefaultViewSize, limitOrDefault(0))
	assert.Equal(t, domain.DefaultViewSize, limitOrDefault(-3))
	assert.Equal(t, 7, limitOrDefault(7))
	assert.Equal(t, maxLogsLimit, limitOrDefault(10000))
}

func TestGetDataManagerConfig(t *testing.T) {
	backend := newFakeBackend().add(domain.EntityDataManagerConfig, domain.Record{
		"configId":          "IMP_ORDER",
		"importServiceName": "createOrder",
		"multiThreading":    "N",
	})
	h := newDataManagerHandler(t, backend)

	out := structured(t, callTool(t, h, ToolGetDataManagerConfig, map[string]interface{}{"configId": "IMP_ORDER"}))
	assert.Equal(t, "createOrder", out["importServiceName"])

	msg := errorText(t, callTool(t, h, ToolGetDataManagerConfig, map[string]interface{}{"configId": "NOPE"}))
	assert.Contains(t, msg, "DataManagerConfig")
}

func TestRetryDataManagerLog(t *testing.T) {
	backend := newFakeBackend().add(domain.EntityDataManagerLog,
		domain.Record{"logId": "L1", "configId": "IMP", "statusId": "SERVICE_FAILED", "errorRecordContentId": "C1"},
		domain.Record{"logId": "L2", "statusId": "SERVICE_FAILED"},
	)
	h := newDataManagerHandler(t, backend)

	out := structured(t, callTool(t, h, ToolRetryDataManagerLog, map[string]interface{}{"logId": "L1"}))
	assert.Equal(t, false, out["retried"])
	instruction := out["instruction"].(string)
	assert.Contains(t, instruction, "not implemented")
	assert.Contains(t, instruction, "C1")
	assert.Contains(t, instruction, "IMP")

	out = structured(t, callTool(t, h, ToolRetryDataManagerLog, map[string]interface{}{"logId": "L2"}))
	assert.Contains(t, out["instruction"], "Fix the source file")

	for _, c := range backend.recorded() {
		assert.Equal(t, "find", c.Op, "retry must not write to the backend")
	}
}

func TestUploadAndImportFile(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		backend := newFakeBackend()
		backend.upload = domain.Record{"uploadFileContentId": "UP1", "responseMessage": "success"}
		h := newDataManagerHandler(t, backend)

		out := structured(t, callTool(t, h, ToolUploadAndImportFile, map[string]interface{}{
			"configId":    "IMP",
			"fileName":    "orders.csv",
			"fileContent": "a,b\n1,2\n",
		}))
		assert.Equal(t, "UP1", out["uploadFileContentId"])
		assert.Equal(t, "orders.csv", out["fileName"])
	})

	t.Run("base64", func(t *testing.T) {
		backend := newFakeBackend()
		backend.upload = domain.Record{"uploadFileContentId": "UP2"}
		h := newDataManagerHandler(t, backend)

		structured(t, callTool(t, h, ToolUploadAndImportFile, map[string]interface{}{
			"configId":    "IMP",
			"fileName":    "orders.csv",
			"fileContent": base64.StdEncoding.EncodeToString([]byte("a,b")),
			"encoding":    "base64",
		}))

		msg := errorText(t, callTool(t, h, ToolUploadAndImportFile, map[string]interface{}{
			"configId":    "IMP",
			"fileName":    "orders.csv",
			"fileContent": "%%%",
			"encoding":    "base64",
		}))
		assert.Contains(t, msg, "base64")
	})

	t.Run("service error", func(t *testing.T) {
		backend := newFakeBackend()
		backend.upload = domain.Record{"responseMessage": "error", "errorMessage": "config not found"}
		h := newDataManagerHandler(t, backend)

		msg := errorText(t, callTool(t, h, ToolUploadAndImportFile, map[string]interface{}{
			"configId": "IMP", "fileName": "f.csv", "fileContent": "x",
		}))
		assert.Contains(t, msg, "config not found")
	})

	t.Run("missing content id", func(t *testing.T) {
		backend := newFakeBackend()
		backend.upload = domain.Record{}
		h := newDataManagerHandler(t, backend)

		msg := errorText(t, callTool(t, h, ToolUploadAndImportFile, map[string]interface{}{
			"configId": "IMP", "fileName": "f.csv", "fileContent": "x",
		}))
		assert.Contains(t, msg, "uploadFileContentId")
	})

	t.Run("transport failure", func(t *testing.T) {
		backend := newFakeBackend()
		backend.uploadErr = &domain.BackendUnavailableError{Method: "POST", URL: "/api/service/uploadAndImportFile", Err: errors.New("connection refused")}
		h := newDataManagerHandler(t, backend)

		msg := errorText(t, callTool(t, h, ToolUploadAndImportFile, map[string]interface{}{
			"configId": "IMP", "fileName": "f.csv", "fileContent": "x",
		}))
		assert.Contains(t, msg, "Backend unavailable")
	})

	t.Run("bad encoding value", func(t *testing.T) {
		h := newDataManagerHandler(t, newFakeBackend())
		msg := errorText(t, callTool(t, h, ToolUploadAndImportFile, map[string]interface{}{
			"configId": "IMP", "fileName": "f.csv", "fileContent": "x", "encoding": "gzip",
		}))
		assert.Contains(t, msg, "Invalid input")
	})
}
