package application

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"erp-mcp-server/internal/domain"
	"erp-mcp-server/internal/infrastructure"
)

// backendCall records one call made against fakeBackend.
type backendCall struct {
	Op      string // "find", "download" or "upload"
	Entity  string
	Filters map[string]interface{}
	Limit   int
	Kind    domain.DownloadKind
	ID      string
	Token   string
}

// fakeBackend is an in-memory domain.BackendClient. Rows are keyed by
// entity name and filtered on equality of every filter value.
type fakeBackend struct {
	mu        sync.Mutex
	rows      map[string][]domain.Record
	bodies    map[string]domain.Record // top-level find body per entity
	findErr   map[string]error
	downloads map[domain.DownloadKind]map[string]*domain.DownloadedFile
	dlErr     error
	upload    domain.Record
	uploadErr error
	calls     []backendCall
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rows:    make(map[string][]domain.Record),
		findErr: make(map[string]error),
		downloads: map[domain.DownloadKind]map[string]*domain.DownloadedFile{
			domain.DownloadByContentID:      {},
			domain.DownloadByDataResourceID: {},
		},
	}
}

func (f *fakeBackend) add(entity string, rows ...domain.Record) *fakeBackend {
	f.rows[entity] = append(f.rows[entity], rows...)
	return f
}

func (f *fakeBackend) file(kind domain.DownloadKind, id, contentType, body string) *fakeBackend {
	f.downloads[kind][id] = &domain.DownloadedFile{Data: []byte(body), ContentType: contentType}
	return f
}

func (f *fakeBackend) Find(ctx context.Context, cred domain.Credential, req domain.QueryRequest) (*domain.QueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, backendCall{Op: "find", Entity: req.EntityName, Filters: req.Filters, Limit: req.Limit, Token: cred.Token})

	if err := f.findErr[req.EntityName]; err != nil {
		return nil, err
	}

	docs := []domain.Record{}
	for _, row := range f.rows[req.EntityName] {
		if matches(row, req.Filters) {
			docs = append(docs, row)
		}
		if req.Limit > 0 && len(docs) == req.Limit {
			break
		}
	}
	return &domain.QueryResponse{Docs: docs, Body: f.bodies[req.EntityName]}, nil
}

func matches(row domain.Record, filters map[string]interface{}) bool {
	for k, v := range filters {
		if v == nil {
			continue
		}
		if row[k] != v {
			return false
		}
	}
	return true
}

func (f *fakeBackend) Download(ctx context.Context, cred domain.Credential, req domain.DownloadRequest) (*domain.DownloadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, backendCall{Op: "download", Kind: req.Kind, ID: req.ID, Token: cred.Token})

	if f.dlErr != nil {
		return nil, f.dlErr
	}
	file, ok := f.downloads[req.Kind][req.ID]
	if !ok {
		return nil, &domain.BackendHTTPError{Status: 404, Method: "GET", URL: "/download", Body: "not found"}
	}
	return file, nil
}

func (f *fakeBackend) UploadAndImport(ctx context.Context, cred domain.Credential, req domain.UploadRequest) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, backendCall{Op: "upload", ID: req.ConfigID, Token: cred.Token})
	return f.upload, f.uploadErr
}

func (f *fakeBackend) recorded() []backendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backendCall(nil), f.calls...)
}

// entities lists the entity names of the find calls, in order.
func (f *fakeBackend) entities() []string {
	var out []string
	for _, c := range f.recorded() {
		if c.Op == "find" {
			out = append(out, c.Entity)
		}
	}
	return out
}

// savedFile records one call to fakeSaver.Save.
type savedFile struct {
	Category, ConfigID, ContentID, MimeType string
	Data                                    []byte
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []savedFile
	err   error
}

func (s *fakeSaver) Save(ctx context.Context, category, configID, contentID, mimeType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, savedFile{category, configID, contentID, mimeType, data})
	return "/runtime/" + category + "File_" + configID + "/" + contentID + domain.ExtensionForMIME(mimeType), nil
}

// structured decodes the structured content of a success response into a
// generic map.
func structured(t testing.TB, resp *domain.ToolResponse) map[string]interface{} {
	t.Helper()
	if resp == nil {
		t.Fatalf("nil response")
	}
	if resp.IsError {
		t.Fatalf("unexpected error response: %s", resp.Content[0].Text)
	}
	data, err := json.Marshal(resp.StructuredContent)
	if err != nil {
		t.Fatalf("encode structured content: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode structured content: %v", err)
	}
	return m
}

// errorText returns the message of an error response.
func errorText(t testing.TB, resp *domain.ToolResponse) string {
	t.Helper()
	if resp == nil || !resp.IsError {
		t.Fatalf("expected an error response, got %+v", resp)
	}
	if resp.StructuredContent != nil {
		t.Fatalf("error response carries structured content: %+v", resp.StructuredContent)
	}
	return resp.Content[0].Text
}

// serviceErrorClient returns a real ERP client whose backend answers every
// performFind with HTTP 200 and a service error body.
func serviceErrorClient(t testing.TB, message string) *infrastructure.ERPClient {
	t.Helper()
	body, err := json.Marshal(map[string]string{"responseMessage": "error", "errorMessage": message})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/performFind" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, string(body))
	}))
	t.Cleanup(server.Close)
	return infrastructure.NewERPClient(domain.BackendConfig{BaseURL: server.URL, Timeout: 5 * time.Second}, nil)
}
