package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/tool/shelf"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "smartshelf"

// Server publishes the Reservation Engine operations as MCP tools
type Server struct {
	server *mcpsdk.Server
	ops    []*shelf.Operation
}

// NewServer registers one MCP tool per engine operation
func NewServer(engine shelf.Engine, version string) *Server {
	s := &Server{
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    serverName,
			Version: version,
		}, nil),
		ops: shelf.Operations(engine),
	}

	for _, op := range s.ops {
		s.server.AddTool(&mcpsdk.Tool{
			Name:        op.Name,
			Description: op.Description,
			InputSchema: op.InputSchema,
		}, handler(op))
	}

	return s
}

// Tools returns the registered tool names in registration order
func (s *Server) Tools() []string {
	names := make([]string, len(s.ops))
	for i, op := range s.ops {
		names[i] = op.Name
	}
	return names
}

func handler(op *shelf.Operation) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		logger := logging.From(ctx)

		var args map[string]any
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(map[string]any{
					"error":      "arguments must be a JSON object",
					"error_kind": "invalid_input",
				})
			}
		}

		result, err := op.Call(ctx, args)
		if err != nil {
			resp, known := shelf.ErrorResponse(err)
			if !known {
				logger.Error("shelf operation failed", "tool", op.Name, "error", err)
				return nil, goerr.Wrap(err, "shelf operation failed", goerr.V("tool", op.Name))
			}
			logger.Info("shelf operation rejected", "tool", op.Name, "error", err)
			return errorResult(resp)
		}

		return textResult(result, false)
	}
}

func errorResult(resp map[string]any) (*mcpsdk.CallToolResult, error) {
	return textResult(resp, true)
}

func textResult(v map[string]any, isError bool) (*mcpsdk.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(raw)},
		},
		IsError: isError,
	}, nil
}

// Connect attaches the server to a single transport and returns once the
// session is established
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	ss, err := s.server.Connect(ctx, t, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect MCP server")
	}
	return ss, nil
}

// ServeStdio serves one client over stdin/stdout until it disconnects or ctx
// is cancelled
func (s *Server) ServeStdio(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "MCP stdio server stopped")
	}
	return nil
}

// Handler returns an HTTP handler speaking the streamable HTTP transport
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(r *http.Request) *mcpsdk.Server {
		return s.server
	}, nil)
}

// SessionIDHeader lets HTTP clients pick which conversation they drive
const SessionIDHeader = "X-Smartshelf-Session"

// SessionRouter builds a server per conversation named by SessionIDHeader.
// Requests without the header share the default conversation.
type SessionRouter struct {
	factory func(id model.SessionID) *Server
}

// NewSessionRouter uses factory to bind each conversation to its own engine
func NewSessionRouter(factory func(id model.SessionID) *Server) *SessionRouter {
	return &SessionRouter{factory: factory}
}

// Handler returns a streamable HTTP handler that dispatches on SessionIDHeader
func (r *SessionRouter) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(req *http.Request) *mcpsdk.Server {
		id := model.SessionID(req.Header.Get(SessionIDHeader))
		if id == "" {
			id = model.DefaultSessionID
		}
		return r.factory(id).server
	}, nil)
}
