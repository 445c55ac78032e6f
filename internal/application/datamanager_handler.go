package application

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"erp-mcp-server/internal/domain"
)

// Tool name constants for data manager operations.
const (
	ToolGetLogByID           = "getLogById"
	ToolFindDataManagerLogs  = "findDataManagerLogs"
	ToolGetDataManagerConfig = "getDataManagerConfig"
	ToolRetryDataManagerLog  = "retryDataManagerLog"
	ToolUploadAndImportFile  = "uploadAndImportFile"
)

const maxLogsLimit = 500

// DataManagerLog is the projection of a DataManagerLog record.
type DataManagerLog struct {
	LogID                string      `json:"logId" jsonschema:"required"`
	ConfigID             string      `json:"configId,omitempty"`
	JobID                string      `json:"jobId,omitempty"`
	StatusID             string      `json:"statusId,omitempty"`
	LogTypeEnumID        string      `json:"logTypeEnumId,omitempty"`
	ErrorRecordContentID string      `json:"errorRecordContentId,omitempty"`
	LogFileContentID     string      `json:"logFileContentId,omitempty"`
	CreatedByUserLogin   string      `json:"createdByUserLogin,omitempty"`
	TotalRecordCount     *float64    `json:"totalRecordCount,omitempty"`
	FailedRecordCount    *float64    `json:"failedRecordCount,omitempty"`
	CreatedDate          interface{} `json:"createdDate,omitempty" jsonschema:"description=Date string or epoch milliseconds"`
	StartDateTime        interface{} `json:"startDateTime,omitempty" jsonschema:"description=Date string or epoch milliseconds"`
	FinishDateTime       interface{} `json:"finishDateTime,omitempty" jsonschema:"description=Date string or epoch milliseconds"`
}

// DataManagerConfig is the projection of a DataManagerConfig record.
type DataManagerConfig struct {
	ConfigID          string `json:"configId" jsonschema:"required"`
	Description       string `json:"description,omitempty"`
	ImportServiceName string `json:"importServiceName,omitempty"`
	ImportPath        string `json:"importPath,omitempty"`
	ExportServiceName string `json:"exportServiceName,omitempty"`
	ExportPath        string `json:"exportPath,omitempty"`
	ExecutionModeID   string `json:"executionModeId,omitempty"`
	ScriptTitle       string `json:"scriptTitle,omitempty"`
	Delimiter         string `json:"delimiter,omitempty"`
	MultiThreading    string `json:"multiThreading,omitempty"`
}

// GetLogByIDInput is the input of getLogById.
type GetLogByIDInput struct {
	LogID string `json:"logId" jsonschema:"required,minLength=1,description=Id of the DataManagerLog"`
}

// FindDataManagerLogsInput is the input of findDataManagerLogs.
type FindDataManagerLogsInput struct {
	ConfigID  string   `json:"configId" jsonschema:"required,minLength=1,description=Data manager configuration id"`
	StatusIDs []string `json:"statusIds,omitempty" jsonschema:"description=Keep only logs in these statuses (applied after the query)"`
	Limit     int      `json:"limit,omitempty" jsonschema:"minimum=1,maximum=500,description=Maximum number of logs fetched (default 20)"`
}

// FindDataManagerLogsOutput is the output of findDataManagerLogs.
type FindDataManagerLogsOutput struct {
	Logs  []DataManagerLog `json:"logs" jsonschema:"required"`
	Count int              `json:"count" jsonschema:"required"`
}

// GetDataManagerConfigInput is the input of getDataManagerConfig.
type GetDataManagerConfigInput struct {
	ConfigID string `json:"configId" jsonschema:"required,minLength=1,description=Data manager configuration id"`
}

// RetryDataManagerLogInput is the input of retryDataManagerLog.
type RetryDataManagerLogInput struct {
	LogID string `json:"logId" jsonschema:"required,minLength=1,description=Id of the failed DataManagerLog"`
}

// RetryDataManagerLogOutput reports the log and how to retry it by hand.
type RetryDataManagerLogOutput struct {
	LogID                string `json:"logId" jsonschema:"required"`
	ConfigID             string `json:"configId,omitempty"`
	StatusID             string `json:"statusId,omitempty"`
	ErrorRecordContentID string `json:"errorRecordContentId,omitempty"`
	Retried              bool   `json:"retried" jsonschema:"required"`
	Instruction          string `json:"instruction" jsonschema:"required"`
}

// UploadAndImportFileInput is the input of uploadAndImportFile.
type UploadAndImportFileInput struct {
	ConfigID    string `json:"configId" jsonschema:"required,minLength=1,description=Data manager configuration id"`
	FileName    string `json:"fileName" jsonschema:"required,minLength=1,description=Name of the uploaded file"`
	FileContent string `json:"fileContent" jsonschema:"required,minLength=1,description=File body"`
	Encoding    string `json:"encoding,omitempty" jsonschema:"enum=text,enum=base64,description=Encoding of fileContent (default text)"`
}

// UploadAndImportFileOutput is the output of uploadAndImportFile.
type UploadAndImportFileOutput struct {
	ConfigID            string `json:"configId" jsonschema:"required"`
	FileName            string `json:"fileName" jsonschema:"required"`
	UploadFileContentID string `json:"uploadFileContentId" jsonschema:"required"`
}

// DataManagerHandler implements ToolHandler for data manager operations.
type DataManagerHandler struct {
	*toolSet
	client domain.BackendClient
}

// NewDataManagerHandler creates a new DataManagerHandler instance.
func NewDataManagerHandler(client domain.BackendClient, deps ToolDeps) (*DataManagerHandler, error) {
	h := &DataManagerHandler{client: client}

	var l toolList
	l.add(NewQueryTool(ToolSpec{
		Name:        ToolGetLogByID,
		Title:       "Get data manager log",
		Description: "Retrieve a DataManagerLog by its id, including the errorRecordContentId of failed imports.",
	}, deps, client, Query[GetLogByIDInput, DataManagerLog]{
		Entity:  domain.EntityDataManagerLog,
		Filters: func(in GetLogByIDInput) map[string]interface{} { return map[string]interface{}{"logId": in.LogID} },
		Limit:   1,
		Shape: func(in GetLogByIDInput, docs []domain.Record) (DataManagerLog, error) {
			return single[DataManagerLog](domain.EntityDataManagerLog, "logId", in.LogID, docs)
		},
	}))

	l.add(NewQueryTool(ToolSpec{
		Name:        ToolFindDataManagerLogs,
		Title:       "Find data manager logs",
		Description: "List DataManagerLogs of a configuration, newest first, optionally keeping only the given statuses.",
	}, deps, client, Query[FindDataManagerLogsInput, FindDataManagerLogsOutput]{
		Entity: domain.EntityDataManagerLog,
		Filters: func(in FindDataManagerLogsInput) map[string]interface{} {
			return map[string]interface{}{"configId": in.ConfigID}
		},
		LimitOf: func(in FindDataManagerLogsInput) int { return limitOrDefault(in.Limit) },
		SortKey: "-createdDate",
		Shape:   shapeLogs,
	}))

	l.add(NewQueryTool(ToolSpec{
		Name:        ToolGetDataManagerConfig,
		Title:       "Get data manager configuration",
		Description: "Retrieve a DataManagerConfig by its id.",
	}, deps, client, Query[GetDataManagerConfigInput, DataManagerConfig]{
		Entity: domain.EntityDataManagerConfig,
		Filters: func(in GetDataManagerConfigInput) map[string]interface{} {
			return map[string]interface{}{"configId": in.ConfigID}
		},
		Limit: 1,
		Shape: func(in GetDataManagerConfigInput, docs []domain.Record) (DataManagerConfig, error) {
			return single[DataManagerConfig](domain.EntityDataManagerConfig, "configId", in.ConfigID, docs)
		},
	}))

	l.add(NewTool(ToolSpec{
		Name:        ToolRetryDataManagerLog,
		Title:       "Retry data manager log",
		Description: "Look up a failed DataManagerLog and explain how to re-run it. Automatic retry is not implemented.",
	}, deps, h.retryLog))

	l.add(NewTool(ToolSpec{
		Name:        ToolUploadAndImportFile,
		Title:       "Upload and import file",
		Description: "Upload a file to a data manager configuration and start its import.",
	}, deps, h.uploadAndImport))

	if l.err != nil {
		return nil, l.err
	}
	h.toolSet = newToolSet("datamanager", l.tools)
	return h, nil
}

// limitOrDefault resolves the fetch size of findDataManagerLogs.
func limitOrDefault(limit int) int {
	switch {
	case limit <= 0:
		return domain.DefaultViewSize
	case limit > maxLogsLimit:
		return maxLogsLimit
	default:
		return limit
	}
}

// shapeLogs projects the rows and applies the status allow-list.
func shapeLogs(in FindDataManagerLogsInput, docs []domain.Record) (FindDataManagerLogsOutput, error) {
	allowed := make(map[string]bool, len(in.StatusIDs))
	for _, s := range in.StatusIDs {
		allowed[s] = true
	}

	kept := make([]domain.Record, 0, len(docs))
	for _, doc := range docs {
		if len(allowed) > 0 && !allowed[doc.String("statusId")] {
			continue
		}
		kept = append(kept, doc)
	}
	logs, err := domain.ProjectAll[DataManagerLog](kept)
	if err != nil {
		return FindDataManagerLogsOutput{}, err
	}
	return FindDataManagerLogsOutput{Logs: logs, Count: len(logs)}, nil
}

func (h *DataManagerHandler) retryLog(ctx context.Context, call Call, in RetryDataManagerLogInput) (RetryDataManagerLogOutput, error) {
	docs, err := find(ctx, h.client, call.Credential, domain.QueryRequest{
		EntityName: domain.EntityDataManagerLog,
		Filters:    map[string]interface{}{"logId": in.LogID},
		Limit:      1,
	})
	if err != nil {
		return RetryDataManagerLogOutput{}, err
	}
	log, err := single[DataManagerLog](domain.EntityDataManagerLog, "logId", in.LogID, docs)
	if err != nil {
		return RetryDataManagerLogOutput{}, err
	}

	return RetryDataManagerLogOutput{
		LogID:                log.LogID,
		ConfigID:             log.ConfigID,
		StatusID:             log.StatusID,
		ErrorRecordContentID: log.ErrorRecordContentID,
		Retried:              false,
		Instruction:          retryInstruction(log),
	}, nil
}

func retryInstruction(log DataManagerLog) string {
	var b strings.Builder
	b.WriteString("Automatic retry is not implemented. ")
	if log.ErrorRecordContentID != "" {
		fmt.Fprintf(&b, "Fetch the failed records with getContent (contentId %s), fix them, ", log.ErrorRecordContentID)
	} else {
		b.WriteString("Fix the source file, ")
	}
	if log.ConfigID != "" {
		fmt.Fprintf(&b, "then upload them again with uploadAndImportFile (configId %s).", log.ConfigID)
	} else {
		b.WriteString("then upload them again with uploadAndImportFile.")
	}
	return b.String()
}

func (h *DataManagerHandler) uploadAndImport(ctx context.Context, call Call, in UploadAndImportFileInput) (UploadAndImportFileOutput, error) {
	data := []byte(in.FileContent)
	if in.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(in.FileContent)
		if err != nil {
			return UploadAndImportFileOutput{}, &domain.ValidationError{Tool: ToolUploadAndImportFile, Reason: "fileContent is not valid base64: " + err.Error()}
		}
		data = decoded
	}

	rec, err := h.client.UploadAndImport(ctx, call.Credential, domain.UploadRequest{
		ConfigID: in.ConfigID,
		FileName: in.FileName,
		Data:     data,
	})
	if err != nil {
		return UploadAndImportFileOutput{}, fmt.Errorf("upload to %s failed: %w", in.ConfigID, err)
	}
	if err := domain.CheckServiceResponse(rec); err != nil {
		return UploadAndImportFileOutput{}, err
	}

	contentID := rec.String("uploadFileContentId")
	if contentID == "" {
		return UploadAndImportFileOutput{}, &domain.BackendServiceError{Message: "upload response has no uploadFileContentId"}
	}
	return UploadAndImportFileOutput{
		ConfigID:            in.ConfigID,
		FileName:            in.FileName,
		UploadFileContentID: contentID,
	}, nil
}
