package infrastructure

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"erp-mcp-server/internal/domain"
)

// ERP endpoint paths relative to the configured base URL.
const (
	performFindPath      = "/api/performFind"
	downloadCsvFilePath  = "/api/DownloadCsvFile"
	viewBinaryPath       = "/content/control/ViewBinaryDataResource"
	uploadAndImportPath  = "/api/service/uploadAndImportFile"
	maxErrorBodyBytes    = 4096
	noConditionFindValue = "Y"
)

// ERPClient handles ERP REST API interactions.
// It implements domain.BackendClient. The client holds no credential of its
// own: every call carries the credential resolved for that invocation, so a
// single ERPClient is shared safely across concurrent tool calls.
type ERPClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     domain.Logger
}

// NewERPClient creates a new ERP API client from the backend configuration.
// TLS certificates are verified unless InsecureSkipVerify is set.
func NewERPClient(cfg domain.BackendConfig, logger domain.Logger) *ERPClient {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultBackendTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return NewERPClientWithHTTPClient(cfg, &http.Client{Timeout: timeout, Transport: transport}, logger)
}

// NewERPClientWithHTTPClient creates a client that uses httpClient as is.
// This is primarily used for testing.
func NewERPClientWithHTTPClient(cfg domain.BackendConfig, httpClient *http.Client, logger domain.Logger) *ERPClient {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = domain.DefaultUserAgent
	}
	return &ERPClient{
		baseURL:    cfg.BaseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the configured base URL of the ERP instance.
func (c *ERPClient) BaseURL() string {
	return c.baseURL
}

// findRequest is the performFind request body.
type findRequest struct {
	EntityName      string                 `json:"entityName"`
	NoConditionFind string                 `json:"noConditionFind"`
	InputFields     map[string]interface{} `json:"inputFields"`
	ViewSize        int                    `json:"viewSize"`
	OrderBy         string                 `json:"orderBy,omitempty"`
}

// buildFindRequest turns a query into the performFind body. Nil filter
// values are dropped.
func buildFindRequest(req domain.QueryRequest) findRequest {
	inputFields := make(map[string]interface{}, len(req.Filters))
	for k, v := range req.Filters {
		if v == nil {
			continue
		}
		inputFields[k] = v
	}
	viewSize := req.Limit
	if viewSize <= 0 {
		viewSize = domain.DefaultViewSize
	}
	return findRequest{
		EntityName:      req.EntityName,
		NoConditionFind: noConditionFindValue,
		InputFields:     inputFields,
		ViewSize:        viewSize,
		OrderBy:         req.SortKey,
	}
}

// Find runs performFind for one entity.
// Zero matching rows are returned as an empty QueryResponse, not an error.
func (c *ERPClient) Find(ctx context.Context, cred domain.Credential, req domain.QueryRequest) (*domain.QueryResponse, error) {
	body, err := json.Marshal(buildFindRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal performFind request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, cred, http.MethodPost, c.baseURL+performFindPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, _, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	resp, err := decodeFindResponse(respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", req.EntityName, err)
	}

	c.logger.Debug(ctx, "performFind", "entity", req.EntityName, "rows", len(resp.Docs))
	return resp, nil
}

// decodeFindResponse accepts both {"docs":[...]} and a bare array. The
// top-level object is kept as Body. Numbers are kept as json.Number so
// numeric ids keep their exact form.
func decodeFindResponse(data []byte) (*domain.QueryResponse, error) {
	trimmed := bytes.TrimSpace(data)
	resp := &domain.QueryResponse{Docs: []domain.Record{}}
	if len(trimmed) == 0 {
		return resp, nil
	}

	if trimmed[0] == '[' {
		if err := decodeNumbers(trimmed, &resp.Docs); err != nil {
			return nil, err
		}
	} else {
		if err := decodeNumbers(trimmed, &resp.Body); err != nil {
			return nil, err
		}
		if raw, ok := resp.Body["docs"]; ok && raw != nil {
			list, ok := raw.([]interface{})
			if !ok {
				return nil, fmt.Errorf("docs is %T, not a list", raw)
			}
			resp.Docs = make([]domain.Record, 0, len(list))
			for i, item := range list {
				row, ok := item.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("docs[%d] is %T, not an object", i, item)
				}
				resp.Docs = append(resp.Docs, domain.Record(row))
			}
		}
	}
	if resp.Docs == nil {
		resp.Docs = []domain.Record{}
	}
	return resp, nil
}

func decodeNumbers(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// Download fetches a raw file body by content id or data resource id.
func (c *ERPClient) Download(ctx context.Context, cred domain.Credential, req domain.DownloadRequest) (*domain.DownloadedFile, error) {
	var endpoint string
	switch req.Kind {
	case domain.DownloadByContentID:
		endpoint = fmt.Sprintf("%s%s?contentId=%s", c.baseURL, downloadCsvFilePath, url.QueryEscape(req.ID))
	case domain.DownloadByDataResourceID:
		endpoint = fmt.Sprintf("%s%s?dataResourceId=%s", c.baseURL, viewBinaryPath, url.QueryEscape(req.ID))
	default:
		return nil, fmt.Errorf("unknown download kind %d", req.Kind)
	}

	httpReq, err := c.newRequest(ctx, cred, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "*/*")

	data, header, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	c.logger.Debug(ctx, "download", "id", req.ID, "bytes", len(data))
	return &domain.DownloadedFile{Data: data, ContentType: header.Get("Content-Type")}, nil
}

// UploadAndImport posts a file to the data manager import service.
// The decoded response body is returned unchanged; callers check it with
// domain.CheckServiceResponse.
func (c *ERPClient) UploadAndImport(ctx context.Context, cred domain.Credential, req domain.UploadRequest) (domain.Record, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("configId", req.ConfigID); err != nil {
		return nil, fmt.Errorf("failed to write configId field: %w", err)
	}
	if err := w.WriteField("_uploadedFile_fileName", req.FileName); err != nil {
		return nil, fmt.Errorf("failed to write file name field: %w", err)
	}
	part, err := w.CreateFormFile("uploadedFile", req.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	httpReq, err := c.newRequest(ctx, cred, http.MethodPost, c.baseURL+uploadAndImportPath, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	respBody, _, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	rec := domain.Record{}
	if len(bytes.TrimSpace(respBody)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(respBody))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode upload response: %w", err)
		}
	}
	return rec, nil
}

// newRequest builds a request carrying a fresh header set for cred.
func (c *ERPClient) newRequest(ctx context.Context, cred domain.Credential, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = domain.BuildHeaders(cred, c.userAgent)
	return req, nil
}

// do executes req and returns the body of a 2xx response. Transport
// failures become BackendUnavailableError, other statuses BackendHTTPError.
func (c *ERPClient) do(req *http.Request) ([]byte, http.Header, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn(req.Context(), "backend request failed", "method", req.Method, "path", req.URL.Path, "error", err.Error())
		return nil, nil, &domain.BackendUnavailableError{Method: req.Method, URL: redactURL(req.URL), Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug(req.Context(), "backend request", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, nil, &domain.BackendHTTPError{
			Status: resp.StatusCode,
			Method: req.Method,
			URL:    redactURL(req.URL),
			Body:   string(body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &domain.BackendUnavailableError{Method: req.Method, URL: redactURL(req.URL), Err: fmt.Errorf("read body: %w", err)}
	}
	return body, resp.Header, nil
}

// redactURL drops user info from u for error messages.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Redacted()
}
