package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"erp-mcp-server/internal/domain"
)

// Protocol and server identity reported by initialize.
const (
	ProtocolVersion = "2025-06-18"
	ServerName      = "erp-mcp-server"
	ServerVersion   = "1.0.0"
)

// Server is the main MCP server implementation.
// It orchestrates the transport layer and request routing and implements
// the MCP protocol methods.
type Server struct {
	transport domain.Transport
	router    *RequestRouter
	config    *domain.Config
	logger    domain.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(
	transport domain.Transport,
	router *RequestRouter,
	config *domain.Config,
	logger domain.Logger,
) *Server {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &Server{
		transport: transport,
		router:    router,
		config:    config,
		logger:    logger,
	}
}

// Start begins the server operation.
// It starts the transport layer and begins processing incoming requests.
func (s *Server) Start(ctx context.Context) error {
	if err := s.transport.Start(ctx); err != nil {
		s.logger.Error(ctx, err, "failed to start transport", "transport_type", s.config.Transport.Type)
		return fmt.Errorf("failed to start transport: %w", err)
	}

	s.logger.Info(ctx, "server started", "transport_type", s.config.Transport.Type,
		"backend", s.config.Backend.BaseURL, "tools", len(s.router.ListAllTools()))

	go s.processRequests(ctx)

	return nil
}

// processRequests continuously processes incoming JSON-RPC requests.
// Each tools/call runs in its own goroutine; calls share nothing but the
// read-only configuration.
func (s *Server) processRequests(ctx context.Context) {
	reqChan := s.transport.Receive()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "server shutting down")
			return
		case req, ok := <-reqChan:
			if !ok {
				return
			}
			if req.Method == "tools/call" {
				go s.handleRequest(ctx, req)
				continue
			}
			s.handleRequest(ctx, req)
		}
	}
}

// handleRequest processes a single JSON-RPC request.
func (s *Server) handleRequest(ctx context.Context, req *domain.Request) {
	s.logger.Debug(ctx, "received request", "method", req.Method, "request_id", req.ID, "session_id", req.SessionID)

	// Notifications carry no id and never get a response.
	if req.ID == nil {
		return
	}

	if err := s.validateRequest(req); err != nil {
		s.sendErrorResponse(req, domain.InvalidRequest, "Invalid Request", err.Error())
		return
	}

	var response *domain.Response
	var err error

	switch req.Method {
	case "initialize":
		response = s.handleInitialize(req)
	case "ping":
		response = s.result(req, map[string]interface{}{})
	case "tools/list":
		response = s.handleToolsList(req)
	case "tools/call":
		response, err = s.handleToolsCall(ctx, req)
	default:
		s.sendErrorResponse(req, domain.MethodNotFound, "Method not found", fmt.Sprintf("unknown method: %s", req.Method))
		return
	}

	if err != nil {
		s.logger.Warn(ctx, "request failed", "method", req.Method, "request_id", req.ID, "error", err.Error())
		s.sendMappedError(req, err)
		return
	}

	if err := s.transport.Send(response); err != nil {
		s.logger.Error(ctx, err, "failed to send response", "request_id", req.ID)
	}
}

// validateRequest validates the basic structure of a JSON-RPC request.
func (s *Server) validateRequest(req *domain.Request) error {
	if req.JSONRPC != "2.0" {
		return fmt.Errorf("invalid jsonrpc version: %s", req.JSONRPC)
	}

	if req.Method == "" {
		return fmt.Errorf("method is required")
	}

	return nil
}

func (s *Server) result(req *domain.Request, result interface{}) *domain.Response {
	return &domain.Response{
		JSONRPC:   "2.0",
		ID:        req.ID,
		Result:    result,
		SessionID: req.SessionID,
	}
}

// handleInitialize handles the MCP initialize method.
func (s *Server) handleInitialize(req *domain.Request) *domain.Response {
	return s.result(req, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    ServerName,
			"version": ServerVersion,
		},
	})
}

// handleToolsList handles the MCP tools/list method.
func (s *Server) handleToolsList(req *domain.Request) *domain.Response {
	return s.result(req, map[string]interface{}{
		"tools": s.router.ListAllTools(),
	})
}

// handleToolsCall handles the MCP tools/call method. The delegated
// credential attached by the transport travels to the tool in the context.
func (s *Server) handleToolsCall(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	toolReq, err := s.parseToolRequest(req.Params)
	if err != nil {
		return nil, &domain.Error{Code: domain.InvalidParams, Message: "Invalid params", Data: err.Error()}
	}

	ctx = domain.WithRequestContext(ctx, domain.RequestContext{AuthInfo: req.AuthInfo})

	toolResp, err := s.router.Route(ctx, toolReq)
	if err != nil {
		return nil, err
	}

	return s.result(req, toolResp), nil
}

// parseToolRequest parses the params field into a ToolRequest.
func (s *Server) parseToolRequest(params interface{}) (*domain.ToolRequest, error) {
	if params == nil {
		return nil, fmt.Errorf("params is required for tools/call")
	}

	// Params may be a decoded map or a struct; round-trip through JSON.
	jsonData, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	var toolReq domain.ToolRequest
	if err := json.Unmarshal(jsonData, &toolReq); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool request: %w", err)
	}

	if toolReq.Name == "" {
		return nil, fmt.Errorf("tool name is required")
	}

	if toolReq.Arguments == nil {
		toolReq.Arguments = make(map[string]interface{})
	}

	return &toolReq, nil
}

// sendErrorResponse sends a JSON-RPC error response.
func (s *Server) sendErrorResponse(req *domain.Request, code int, message string, data interface{}) {
	response := &domain.Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Error: &domain.Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		SessionID: req.SessionID,
	}

	if err := s.transport.Send(response); err != nil {
		s.logger.Error(context.Background(), err, "failed to send error response",
			"request_id", req.ID, "error_code", code, "error_message", message)
	}
}

// sendMappedError maps an error to a JSON-RPC error and sends it.
func (s *Server) sendMappedError(req *domain.Request, err error) {
	var rpcErr *domain.Error
	if errors.As(err, &rpcErr) {
		s.sendErrorResponse(req, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	s.sendErrorResponse(req, domain.ErrorCode(err), "Internal error", domain.ErrorMessage(err))
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info(context.Background(), "closing server")
	return s.transport.Close()
}
