package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/locodev/loco/internal/buildinfo"
	"github.com/locodev/loco/internal/tools"
)

// Server exposes a local tool registry to MCP clients over a
// newline-delimited JSON-RPC stream (stdin/stdout in `loco mcp-serve`).
type Server struct {
	registry *tools.Registry
	logger   *slog.Logger
}

// NewServer creates an MCP server backed by the given registry.
func NewServer(registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: registry, logger: logger}
}

// rawRequest is an inbound envelope. The ID stays raw so it can be
// echoed back byte-for-byte whether the client sent a number or a
// string. A nil ID marks a notification.
type rawRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rawResponse is an outbound envelope carrying the echoed request ID.
type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// callToolParams is the tools/call request payload.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Serve reads requests from r and writes responses to w until r is
// exhausted or ctx is cancelled. A failed request never stops the loop;
// the error goes back to the client and the next request is read.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rawRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("skipping malformed request", "error", err)
			continue
		}

		if req.ID == nil {
			// Notification: consumed, never answered.
			s.logger.Debug("received notification", "method", req.Method)
			continue
		}

		resp := s.dispatch(ctx, &req)
		out, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error("marshal response", "error", err)
			continue
		}
		if _, err := w.Write(append(out, '\n')); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

// dispatch routes one request to its handler. Panics become -32603 so
// a single bad tool cannot take the server down.
func (s *Server) dispatch(ctx context.Context, req *rawRequest) (resp *rawResponse) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic", "method", req.Method, "panic", r)
			resp = errorResponse(req.ID, CodeInternalError, fmt.Sprintf("Internal error: %v", r))
		}
	}()

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleListTools(req)
	case "tools/call":
		return s.handleCallTool(ctx, req)
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *rawRequest) *rawResponse {
	return resultResponse(req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "loco",
			"version": buildinfo.Version,
		},
	})
}

func (s *Server) handleListTools(req *rawRequest) *rawResponse {
	names := s.registry.AllToolNames()
	sort.Strings(names)

	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		t := s.registry.Get(name)
		defs = append(defs, ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return resultResponse(req.ID, map[string]any{"tools": defs})
}

func (s *Server) handleCallTool(ctx context.Context, req *rawRequest) *rawResponse {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("Invalid params: %v", err))
	}
	if params.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params: missing tool name")
	}

	if s.registry.Get(params.Name) == nil {
		return toolResultResponse(req.ID, fmt.Sprintf("Error: Unknown tool '%s'", params.Name), true)
	}

	output, err := s.registry.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		return toolResultResponse(req.ID, fmt.Sprintf("Error executing %s: %v", params.Name, err), true)
	}
	return toolResultResponse(req.ID, output, false)
}

func resultResponse(id json.RawMessage, result any) *rawResponse {
	return &rawResponse{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *rawResponse {
	return &rawResponse{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}

func toolResultResponse(id json.RawMessage, text string, isError bool) *rawResponse {
	result := map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
	}
	if isError {
		result["isError"] = true
	}
	return resultResponse(id, result)
}
