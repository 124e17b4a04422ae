package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/repository"
	"github.com/m-mizutani/smartshelf/pkg/service/mcp"
	"github.com/m-mizutani/smartshelf/pkg/usecase/shelf"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func newEngine(t *testing.T) *shelf.UseCase {
	repo, err := repository.NewSQLite(filepath.Join(t.TempDir(), "shelf.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	_, err = repo.EnsureSpots(context.Background(), []*model.Spot{
		{ID: "M-1", Size: model.SizeM, Location: "Main Area"},
	})
	gt.NoError(t, err)

	return shelf.New(repo, repo)
}

func connectInMemory(t *testing.T, server *mcp.Server) *mcpsdk.ClientSession {
	ctx := context.Background()
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()

	ss, err := server.Connect(ctx, serverTransport)
	gt.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcpsdk.ClientSession, name string, args map[string]any) (map[string]any, bool) {
	t.Helper()
	result, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	gt.NoError(t, err)
	gt.A(t, result.Content).Length(1)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)

	var resp map[string]any
	gt.NoError(t, json.Unmarshal([]byte(text.Text), &resp))
	return resp, result.IsError
}

func sessionOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	s, ok := resp["session"].(map[string]any)
	gt.True(t, ok)
	return s
}

func TestListTools(t *testing.T) {
	server := mcp.NewServer(newEngine(t), "test")
	cs := connectInMemory(t, server)

	result, err := cs.ListTools(context.Background(), nil)
	gt.NoError(t, err)
	gt.A(t, result.Tools).Length(len(server.Tools()))

	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
		gt.V(t, tool.InputSchema).NotNil()
	}
	for _, name := range server.Tools() {
		gt.True(t, names[name])
	}
}

func TestStorageFlowOverMCP(t *testing.T) {
	cs := connectInMemory(t, mcp.NewServer(newEngine(t), "test"))

	_, isErr := callTool(t, cs, "reset_session", nil)
	gt.False(t, isErr)

	_, isErr = callTool(t, cs, "record_size", map[string]any{"size": "M"})
	gt.False(t, isErr)

	_, isErr = callTool(t, cs, "record_apartment", map[string]any{"apartment_number": "7a"})
	gt.False(t, isErr)

	resp, isErr := callTool(t, cs, "locate_spot", nil)
	gt.False(t, isErr)
	gt.Equal(t, sessionOf(t, resp)["spot_id"], any("M-1"))

	resp, isErr = callTool(t, cs, "commit_reservation", nil)
	gt.False(t, isErr)
	gt.Equal(t, sessionOf(t, resp)["reservation_status"], any(true))

	// the only M spot is now taken
	resp, _ = callTool(t, cs, "locate_spot", nil)
	gt.Equal(t, sessionOf(t, resp)["spot_available"], any(false))
}

func TestDomainErrorsAreToolErrors(t *testing.T) {
	cs := connectInMemory(t, mcp.NewServer(newEngine(t), "test"))

	resp, isErr := callTool(t, cs, "record_apartment", map[string]any{"apartment_number": "   "})
	gt.True(t, isErr)
	gt.Equal(t, resp["error_kind"], any("invalid_input"))

	resp, isErr = callTool(t, cs, "commit_reservation", nil)
	gt.True(t, isErr)
	gt.Equal(t, resp["error_kind"], any("missing_field"))
	gt.Equal(t, resp["field"], any("apartment_number"))
}

type headerTransport struct {
	sessionID string
}

func (h *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(mcp.SessionIDHeader, h.sessionID)
	return http.DefaultTransport.RoundTrip(req)
}

func TestStreamableHTTPSessions(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)

	router := mcp.NewSessionRouter(func(id model.SessionID) *mcp.Server {
		return mcp.NewServer(engine.ForSession(id), "test")
	})
	httpServer := httptest.NewServer(router.Handler())
	t.Cleanup(httpServer.Close)

	connect := func(sessionID string) *mcpsdk.ClientSession {
		client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
		cs, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{
			Endpoint:   httpServer.URL,
			HTTPClient: &http.Client{Transport: &headerTransport{sessionID: sessionID}},
		}, nil)
		gt.NoError(t, err)
		t.Cleanup(func() { cs.Close() })
		return cs
	}

	alice := connect("alice")
	bob := connect("bob")

	_, isErr := callTool(t, alice, "record_apartment", map[string]any{"apartment_number": "1A"})
	gt.False(t, isErr)
	_, isErr = callTool(t, bob, "record_apartment", map[string]any{"apartment_number": "9Z"})
	gt.False(t, isErr)

	resp, _ := callTool(t, alice, "get_session", nil)
	gt.Equal(t, sessionOf(t, resp)["apartment_number"], any("1A"))

	resp, _ = callTool(t, bob, "get_session", nil)
	gt.Equal(t, sessionOf(t, resp)["apartment_number"], any("9Z"))
}
