package mcpserver_test

import (
	"context"
	"encoding/json"
	"math/rand"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptop-refresh/llamastack/llamastacktest"
	mcpserver "laptop-refresh/mcp-server"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 3, 9, 30, 15, 123456000, time.Local) }

func connect(t *testing.T, s *mcpserver.Server) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "mcpserver-test", Version: "1.0.0"},
		},
	})
	require.NoError(t, err)
	return c
}

func callJSON(t *testing.T, c *client.Client, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	if out != nil {
		require.False(t, res.IsError)
		require.Len(t, res.Content, 1)
		text, ok := res.Content[0].(mcp.TextContent)
		require.True(t, ok)
		require.NoError(t, json.Unmarshal([]byte(text.Text), out))
	}
	return res
}

func TestAssetDBAlternation(t *testing.T) {
	db := mcpserver.NewAssetDB(nil, fixedNow)
	s, err := mcpserver.NewAssetDBServer(db)
	require.NoError(t, err)
	assert.Equal(t, "mcp::asset_database", s.ToolGroupID())
	c := connect(t, s)

	want := []string{"5 years 1 month", "2 years 3 months", "5 years 1 month", "2 years 3 months"}
	ids := []string{"1234", "1234", "9999", "42"}
	for i, id := range ids {
		var info mcpserver.LaptopInfo
		callJSON(t, c, "get_laptop_info", map[string]any{"employee_id": id}, &info)
		assert.Equal(t, want[i], info.PurchaseDate, "call %d", i+1)
		assert.Equal(t, "North America", info.Geo)
		assert.Equal(t, id, info.EmployeeID)
		assert.Equal(t, "2025-06-03T09:30:15.123456", info.Timestamp)
	}
}

func TestAssetDBNumericEmployeeID(t *testing.T) {
	s, err := mcpserver.NewAssetDBServer(mcpserver.NewAssetDB(nil, nil))
	require.NoError(t, err)
	c := connect(t, s)

	var info mcpserver.LaptopInfo
	callJSON(t, c, "get_laptop_info", map[string]any{"employee_id": 1234}, &info)
	assert.Equal(t, "1234", info.EmployeeID)
}

func TestAssetDBCounterIsInjected(t *testing.T) {
	var shared atomic.Uint64
	first := mcpserver.NewAssetDB(&shared, nil)
	second := mcpserver.NewAssetDB(&shared, nil)
	private := mcpserver.NewAssetDB(nil, nil)

	assert.Equal(t, "5 years 1 month", first.LaptopInfo("1").PurchaseDate)
	assert.Equal(t, "2 years 3 months", second.LaptopInfo("1").PurchaseDate)
	assert.Equal(t, "5 years 1 month", private.LaptopInfo("1").PurchaseDate)
	assert.Equal(t, uint64(2), shared.Load())
}

func TestSubmitLaptopRequest(t *testing.T) {
	sn := mcpserver.NewServiceNow(rand.New(rand.NewSource(7)), fixedNow)
	s, err := mcpserver.NewServiceNowServer(sn)
	require.NoError(t, err)
	assert.Equal(t, "mcp::servicenow", s.ToolGroupID())
	c := connect(t, s)

	ticketPattern := regexp.MustCompile(`^REQ\d{7}$`)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		var request mcpserver.LaptopRequest
		callJSON(t, c, "submit_laptop_request", map[string]any{
			"employee_id":  "1234",
			"laptop_model": "MacBook Pro 14",
		}, &request)
		assert.Equal(t, "Submitted", request.Status)
		assert.Regexp(t, ticketPattern, request.TicketNumber)
		assert.Equal(t, "MacBook Pro 14", request.LaptopModel)
		seen[request.TicketNumber] = true
	}
	assert.Greater(t, len(seen), 1, "identical submissions open different tickets")
}

func TestMissingArgumentIsToolError(t *testing.T) {
	s, err := mcpserver.NewServiceNowServer(mcpserver.NewServiceNow(nil, nil))
	require.NoError(t, err)
	c := connect(t, s)

	res := callJSON(t, c, "submit_laptop_request", map[string]any{"employee_id": "1234"}, nil)
	require.True(t, res.IsError)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "laptop_model")
}

func TestToolSchemas(t *testing.T) {
	s, err := mcpserver.NewServiceNowServer(mcpserver.NewServiceNow(nil, nil))
	require.NoError(t, err)
	c := connect(t, s)

	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, res.Tools, 1)
	data, err := json.Marshal(res.Tools[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"required":["employee_id","laptop_model"]`)
}

func TestSSETransport(t *testing.T) {
	s, err := mcpserver.NewAssetDBServer(mcpserver.NewAssetDB(nil, nil))
	require.NoError(t, err)
	ts := server.NewTestServer(s.MCPServer())
	defer ts.Close()

	c, err := client.NewSSEMCPClient(ts.URL + "/sse")
	require.NoError(t, err)
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))
	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "mcpserver-test", Version: "1.0.0"},
		},
	})
	require.NoError(t, err)

	var info mcpserver.LaptopInfo
	callJSON(t, c, "get_laptop_info", map[string]any{"employee_id": "1234"}, &info)
	assert.Equal(t, "5 years 1 month", info.PurchaseDate)
}

func TestRunRegistersAndStops(t *testing.T) {
	fake := llamastacktest.New(t)
	s, err := mcpserver.NewServiceNowServer(mcpserver.NewServiceNow(nil, nil))
	require.NoError(t, err)

	opts := mcpserver.Options{
		Host:           "127.0.0.1",
		Port:           0,
		LlamaStackHost: fake.URL,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, opts) }()

	require.Eventually(t, func() bool { return len(fake.Registrations()) == 1 }, 5*time.Second, 10*time.Millisecond)
	registration := fake.Registrations()[0]
	assert.Equal(t, "mcp::servicenow", registration.ToolGroupID)
	assert.Equal(t, "model-context-protocol", registration.ProviderID)
	assert.True(t, strings.HasSuffix(registration.URI, "/sse"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestOptions(t *testing.T) {
	opts := mcpserver.Options{Host: "localhost", Port: mcpserver.AssetDBPort}
	assert.Equal(t, "localhost:8002", opts.Addr())
	assert.Equal(t, "http://localhost:8002/sse", opts.EndpointURI())
}
