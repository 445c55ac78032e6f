package domain

import (
	"context"
	"mime"
	"strings"
)

// ERP entity names queried through performFind.
const (
	EntityContent                  = "Content"
	EntityDataResource             = "DataResource"
	EntityElectronicText           = "ElectronicText"
	EntityDataManagerLog           = "DataManagerLog"
	EntityDataManagerConfig        = "DataManagerConfig"
	EntityOrderItem                = "OrderItem"
	EntityWorkOrderItemFulfillment = "WorkOrderItemFulfillment"
	EntityWorkEffort               = "WorkEffort"
)

// DataResource type ids that select the content retrieval path.
const (
	DataResourceElectronicText = "ELECTRONIC_TEXT"
	DataResourceShortText      = "SHORT_TEXT"
	DataResourceOfbizFile      = "OFBIZ_FILE"
	DataResourceLocalFile      = "LOCAL_FILE"
)

// IsInlineText reports whether the data resource stores its text in an
// ElectronicText row.
func IsInlineText(dataResourceTypeID string) bool {
	return dataResourceTypeID == DataResourceElectronicText || dataResourceTypeID == DataResourceShortText
}

// IsFileBacked reports whether the data resource points at a file on the
// backend's filesystem.
func IsFileBacked(dataResourceTypeID string) bool {
	return dataResourceTypeID == DataResourceOfbizFile || dataResourceTypeID == DataResourceLocalFile
}

// DefaultViewSize is used when a query does not set a limit.
const DefaultViewSize = 20

// QueryRequest is one performFind call.
type QueryRequest struct {
	EntityName string
	// Filters maps field names to values. Nil values are omitted from the
	// outbound request.
	Filters map[string]interface{}
	Limit   int
	// SortKey is passed as orderBy, e.g. "-createdDate". Optional.
	SortKey string
}

// QueryResponse holds the records returned by performFind.
// An empty Docs slice means nothing matched.
type QueryResponse struct {
	Docs []Record `json:"docs"`
	// Body is the top-level response object, where the backend reports
	// service errors. Nil when the backend answered with a bare array.
	Body Record `json:"-"`
}

// First returns the first record, or nil when there is none.
func (r *QueryResponse) First() Record {
	if r == nil || len(r.Docs) == 0 {
		return nil
	}
	return r.Docs[0]
}

// DownloadKind selects the raw download endpoint.
type DownloadKind int

const (
	// DownloadByContentID uses /api/DownloadCsvFile?contentId=...
	DownloadByContentID DownloadKind = iota
	// DownloadByDataResourceID uses /content/control/ViewBinaryDataResource?dataResourceId=...
	DownloadByDataResourceID
)

// DownloadRequest identifies a raw file to fetch.
type DownloadRequest struct {
	Kind DownloadKind
	ID   string
}

// DownloadedFile is a raw body fetched from the backend.
type DownloadedFile struct {
	Data        []byte
	ContentType string
}

// UploadRequest is a multipart upload to the uploadAndImportFile service.
type UploadRequest struct {
	ConfigID string
	FileName string
	Data     []byte
}

// BackendClient is the ERP API used by the tools. Every call carries the
// credential resolved for the current invocation.
type BackendClient interface {
	// Find runs performFind for one entity.
	Find(ctx context.Context, cred Credential, req QueryRequest) (*QueryResponse, error)
	// Download fetches a raw file body.
	Download(ctx context.Context, cred Credential, req DownloadRequest) (*DownloadedFile, error)
	// UploadAndImport posts a file to the data manager import service and
	// returns the decoded response body.
	UploadAndImport(ctx context.Context, cred Credential, req UploadRequest) (Record, error)
}

// ExtensionForMIME maps a MIME type to the file extension used when
// persisting content.
func ExtensionForMIME(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch {
	case mediaType == "text/csv", mediaType == "application/csv", mediaType == "application/vnd.ms-excel":
		return ".csv"
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return ".json"
	case mediaType == "application/xml", mediaType == "text/xml", strings.HasSuffix(mediaType, "+xml"):
		return ".xml"
	case mediaType == "application/pdf":
		return ".pdf"
	default:
		return ".txt"
	}
}
