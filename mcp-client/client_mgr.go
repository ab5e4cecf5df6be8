package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"laptop-refresh/shared"
)

// ClientMgr holds one MCP client per server and routes tool calls to the
// server that lists the tool. It is a service.ToolSource, so the harness can
// run against the MCP servers without the platform's tool runtime.
type ClientMgr struct {
	mu        sync.Mutex
	clientMap map[string]*client.Client
	toolOwner map[string]string
}

func NewClientMgr() *ClientMgr {
	return &ClientMgr{
		clientMap: map[string]*client.Client{},
		toolOwner: map[string]string{},
	}
}

func (mgr *ClientMgr) Close() error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	var errList []error
	for _, c := range mgr.clientMap {
		if err := c.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	mgr.clientMap = map[string]*client.Client{}
	mgr.toolOwner = map[string]string{}
	return errors.Join(errList...)
}

// AddSSEClient connects to an MCP server's SSE endpoint, e.g.
// http://localhost:8002/sse.
func (mgr *ClientMgr) AddSSEClient(ctx context.Context, url string) error {
	c, err := client.NewSSEMCPClient(url)
	if err != nil {
		return fmt.Errorf("create sse client %s: %w", url, err)
	}
	return mgr.add(ctx, c, url)
}

// AddInProcessClient connects to a server running in this process.
func (mgr *ClientMgr) AddInProcessClient(ctx context.Context, s *server.MCPServer) error {
	c, err := client.NewInProcessClient(s)
	if err != nil {
		return fmt.Errorf("create in-process client: %w", err)
	}
	return mgr.add(ctx, c, "in-process")
}

func (mgr *ClientMgr) add(ctx context.Context, c *client.Client, target string) error {
	// The SSE stream lives as long as the Start context; detach it from ctx.
	if err := c.Start(context.WithoutCancel(ctx)); err != nil {
		_ = c.Close()
		return fmt.Errorf("start mcp client %s: %w", target, err)
	}
	res, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "laptop-refresh-harness",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("initialize mcp client %s: %w", target, err)
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	name := res.ServerInfo.Name
	if _, exist := mgr.clientMap[name]; exist {
		_ = c.Close()
		return fmt.Errorf("mcp server %s already exist", name)
	}
	mgr.clientMap[name] = c
	log.Info().Str("server", name).Str("target", target).Msg("create mcp client success")
	return nil
}

func (mgr *ClientMgr) clients() map[string]*client.Client {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	clients := make(map[string]*client.Client, len(mgr.clientMap))
	for name, c := range mgr.clientMap {
		clients[name] = c
	}
	return clients
}

// ListTools lists the tools of every connected server ordered by name. A
// server that fails to answer fails the whole listing.
func (mgr *ClientMgr) ListTools(ctx context.Context) ([]shared.ToolDescriptor, error) {
	var descriptors []shared.ToolDescriptor
	var errList []error
	owners := map[string]string{}
	for name, c := range mgr.clients() {
		res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			errList = append(errList, fmt.Errorf("list tools of %s: %w", name, err))
			continue
		}
		for _, tool := range res.Tools {
			desc, err := shared.DescriptorFromMcpTool(tool)
			if err != nil {
				errList = append(errList, err)
				continue
			}
			if owner, dup := owners[desc.Identifier]; dup {
				log.Warn().Str("tool", desc.Identifier).Str("server", name).Str("kept", owner).Msg("duplicate tool name")
				continue
			}
			owners[desc.Identifier] = name
			descriptors = append(descriptors, desc)
		}
	}
	if err := errors.Join(errList...); err != nil {
		return nil, err
	}

	mgr.mu.Lock()
	mgr.toolOwner = owners
	mgr.mu.Unlock()

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Identifier < descriptors[j].Identifier
	})
	return descriptors, nil
}

func (mgr *ClientMgr) owner(ctx context.Context, name string) (*client.Client, error) {
	mgr.mu.Lock()
	owner, ok := mgr.toolOwner[name]
	mgr.mu.Unlock()
	if !ok {
		if _, err := mgr.ListTools(ctx); err != nil {
			return nil, err
		}
		mgr.mu.Lock()
		owner, ok = mgr.toolOwner[name]
		mgr.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("no mcp server serves tool %s", name)
		}
	}
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	c, ok := mgr.clientMap[owner]
	if !ok {
		return nil, fmt.Errorf("client %s not exist", owner)
	}
	return c, nil
}

// InvokeTool calls a tool on the server that serves it. A result flagged as
// an error is returned as a reply carrying the error text.
func (mgr *ClientMgr) InvokeTool(ctx context.Context, name string, kwargs map[string]any) (shared.ToolReply, error) {
	c, err := mgr.owner(ctx, name)
	if err != nil {
		return shared.ToolReply{}, err
	}
	res, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: kwargs,
		},
	})
	if err != nil {
		return shared.ToolReply{}, err
	}

	reply := shared.ToolReply{Raw: res}
	var texts []string
	for _, content := range res.Content {
		text, ok := content.(mcp.TextContent)
		if ok {
			reply.Content = append(reply.Content, shared.ContentItem{Type: text.Type, Text: text.Text})
			texts = append(texts, text.Text)
		}
	}
	if res.IsError {
		reply.Error = strings.Join(texts, "\n")
		if reply.Error == "" {
			reply.Error = fmt.Sprintf("tool %s failed", name)
		}
	}
	return reply, nil
}
