package domain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transport defines the interface for MCP transport mechanisms.
// Implementations handle communication between MCP clients and the server
// using either stdio or HTTP transport.
type Transport interface {
	// Start begins listening for incoming MCP messages.
	// Returns an error if the transport cannot be initialized.
	Start(ctx context.Context) error

	// Send transmits a JSON-RPC response to the client.
	// Returns an error if the response cannot be sent.
	Send(response *Response) error

	// Receive returns a channel for incoming JSON-RPC requests.
	// The channel is closed when the transport is shut down.
	Receive() <-chan *Request

	// Close gracefully shuts down the transport.
	// Returns an error if shutdown fails.
	Close() error
}

// maxMessageSize bounds a single stdio message. Uploads travel inline, so
// lines can be far longer than bufio's default token size.
const maxMessageSize = 16 << 20

// decodeRequest parses one JSON-RPC message. On failure it returns the error
// response to send back instead of a request.
func decodeRequest(data []byte) (*Request, *Response) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errorResponse(nil, ParseError, "Parse error", err.Error())
	}
	if req.JSONRPC != "2.0" {
		return nil, errorResponse(req.ID, InvalidRequest, "Invalid Request", "invalid jsonrpc version")
	}
	return &req, nil
}

func errorResponse(id interface{}, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}

// StdioTransport exchanges newline-delimited JSON-RPC messages over a pair of
// streams, stdin and stdout by default. Each response is written as exactly
// one line.
type StdioTransport struct {
	in      io.Reader
	out     io.Writer
	reqChan chan *Request

	writeMu sync.Mutex
	mu      sync.Mutex
	started bool
	closed  bool
}

// NewStdioTransport returns a transport bound to the process's stdin and stdout.
func NewStdioTransport() *StdioTransport {
	return NewStdioTransportWithIO(os.Stdin, os.Stdout)
}

// NewStdioTransportWithIO returns a transport bound to the given streams.
func NewStdioTransportWithIO(reader io.Reader, writer io.Writer) *StdioTransport {
	return &StdioTransport{
		in:      reader,
		out:     writer,
		reqChan: make(chan *Request, 10),
	}
}

// Start launches the read loop. The Receive channel is closed when the input
// ends, a line exceeds maxMessageSize, or ctx is cancelled.
func (t *StdioTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.closed:
		return fmt.Errorf("transport is closed")
	case t.started:
		return fmt.Errorf("transport already started")
	}
	t.started = true

	go t.readLoop(ctx)
	return nil
}

func (t *StdioTransport) readLoop(ctx context.Context) {
	defer close(t.reqChan)

	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		req, errResp := decodeRequest(line)
		if errResp != nil {
			_ = t.Send(errResp)
			continue
		}

		select {
		case t.reqChan <- req:
		case <-ctx.Done():
			return
		}
	}
}

// Send writes response as a single line. encoding/json escapes control
// characters inside strings, so the only raw newline is the terminator.
func (t *StdioTransport) Send(response *Response) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("transport is closed")
	}

	if response.JSONRPC == "" {
		response.JSONRPC = "2.0"
	}
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// Receive returns the channel of decoded requests.
func (t *StdioTransport) Receive() <-chan *Request {
	return t.reqChan
}

// Close stops further sends. The read loop owns the request channel and
// closes it when the input ends.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// HTTPTransport implements Transport using HTTP with SSE for communication.
// It exposes two endpoints:
// 1. SSE endpoint (GET) for server-to-client messages
// 2. HTTP POST endpoint for client-to-server messages
//
// A bearer token on the POST request is attached to the JSON-RPC request as
// the delegated credential for that call.
type HTTPTransport struct {
	host    string
	port    int
	server  *http.Server
	reqChan chan *Request
	logger  Logger
	mu      sync.Mutex
	closed  bool
	// Session management for SSE connections
	sessions   map[string]*sseSession
	sessionsMu sync.RWMutex
}

// sseSession represents an active SSE connection
type sseSession struct {
	id          string
	messageChan chan *Response
	done        chan struct{}
	closeOnce   sync.Once
}

func (s *sseSession) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// NewHTTPTransport creates a new HTTPTransport instance.
func NewHTTPTransport(host string, port int, logger Logger) *HTTPTransport {
	if logger == nil {
		logger = NopLogger{}
	}
	return &HTTPTransport{
		host:     host,
		port:     port,
		reqChan:  make(chan *Request, 10),
		logger:   logger,
		sessions: make(map[string]*sseSession),
	}
}

// Handler returns the HTTP handler serving both MCP endpoints.
func (t *HTTPTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", t.handleSSE)             // SSE endpoint for server-to-client
	mux.HandleFunc("/mcp/message", t.handleMessage) // POST endpoint for client-to-server
	return mux
}

// Start begins the HTTP server and starts listening for incoming requests.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}
	t.mu.Unlock()

	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	t.server = &http.Server{
		Addr:              addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.logger.Error(ctx, err, "http transport stopped", "addr", addr)
		}
	}()

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		t.Close()
	}()

	return nil
}

// handleSSE handles SSE connections (GET requests) for server-to-client messages.
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t.logger.Debug(ctx, "http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	session := &sseSession{
		id:          uuid.NewString(),
		messageChan: make(chan *Response, 10),
		done:        make(chan struct{}),
	}

	t.sessionsMu.Lock()
	t.sessions[session.id] = session
	t.sessionsMu.Unlock()

	// Tell the client where to send messages
	fmt.Fprintf(w, "event: endpoint\ndata: /mcp/message?sessionId=%s\n\n", session.id)
	flusher.Flush()

	t.logger.Info(ctx, "sse session established", "session_id", session.id)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info(ctx, "sse session disconnected", "session_id", session.id)
			t.sessionsMu.Lock()
			delete(t.sessions, session.id)
			t.sessionsMu.Unlock()
			session.close()
			return
		case <-session.done:
			return
		case response := <-session.messageChan:
			data, err := json.Marshal(response)
			if err != nil {
				t.logger.Error(ctx, err, "failed to marshal sse response", "session_id", session.id)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", string(data))
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

// handleMessage handles HTTP POST requests for client-to-server messages.
func (t *HTTPTransport) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t.logger.Debug(ctx, "http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "Missing sessionId parameter", http.StatusBadRequest)
		return
	}

	t.sessionsMu.RLock()
	session, exists := t.sessions[sessionID]
	t.sessionsMu.RUnlock()

	if !exists {
		http.Error(w, "Invalid session", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	req, errResp := decodeRequest(body)
	if errResp != nil {
		t.sendToSession(session, errResp)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	req.SessionID = sessionID
	if token := BearerToken(r.Header.Get("Authorization")); token != "" {
		req.AuthInfo = &AuthInfo{DownstreamToken: token}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		http.Error(w, "Transport closed", http.StatusServiceUnavailable)
		return
	}

	select {
	case t.reqChan <- req:
		w.WriteHeader(http.StatusAccepted)
	default:
		t.sendToSession(session, errorResponse(req.ID, InternalError, "Internal error", "request queue full"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

// sendToSession queues a transport-level response on one session without
// blocking the POST handler.
func (t *HTTPTransport) sendToSession(session *sseSession, response *Response) {
	select {
	case session.messageChan <- response:
	default:
		t.logger.Warn(context.Background(), "sse channel full, dropping error", "session_id", session.id)
	}
}

// Send transmits a JSON-RPC response to the client via SSE.
// Responses carrying a SessionID go to that session only; others are
// broadcast to all active sessions.
func (t *HTTPTransport) Send(response *Response) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}
	t.mu.Unlock()

	if response.JSONRPC == "" {
		response.JSONRPC = "2.0"
	}

	t.sessionsMu.RLock()
	defer t.sessionsMu.RUnlock()

	if response.SessionID != "" {
		session, ok := t.sessions[response.SessionID]
		if !ok {
			return fmt.Errorf("session %s is not active", response.SessionID)
		}
		select {
		case session.messageChan <- response:
			return nil
		default:
			return fmt.Errorf("session %s channel full", response.SessionID)
		}
	}

	if len(t.sessions) == 0 {
		return fmt.Errorf("no active sessions")
	}

	for _, session := range t.sessions {
		select {
		case session.messageChan <- response:
		default:
			t.logger.Warn(context.Background(), "sse channel full, dropping response", "session_id", session.id)
		}
	}

	return nil
}

// Receive returns the channel for incoming JSON-RPC requests.
func (t *HTTPTransport) Receive() <-chan *Request {
	return t.reqChan
}

// Close gracefully shuts down the HTTP server and all SSE sessions.
func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	t.sessionsMu.Lock()
	for _, session := range t.sessions {
		session.close()
	}
	t.sessions = make(map[string]*sseSession)
	t.sessionsMu.Unlock()

	close(t.reqChan)

	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}

	return nil
}
