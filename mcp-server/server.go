// Package mcpserver serves the mock backend tools (an asset database and a
// ServiceNow ticketing system) as MCP servers over SSE and registers them
// with the orchestration platform.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"laptop-refresh/config"
	"laptop-refresh/llamastack"
	"laptop-refresh/shared"
)

const (
	AssetDBPort    = 8002
	ServiceNowPort = 8003

	mcpProviderID   = "model-context-protocol"
	shutdownTimeout = 5 * time.Second
)

// Options are the command line flags shared by both servers.
type Options struct {
	Host           string `long:"host" default:"localhost" description:"Host IP for this MCP server"`
	Port           int    `long:"port" description:"Port for this MCP server"`
	LlamaStackHost string `long:"llama-stack-host" default:"localhost:8321" description:"Llama Stack host and port"`
	LogLevel       string `long:"log-level" default:"INFO" choice:"DEBUG" choice:"INFO" choice:"WARNING" choice:"ERROR" description:"Logging level"`
	NoRegister     bool   `long:"no-register" description:"Skip automatic registration with Llama Stack"`
}

func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// EndpointURI is the SSE endpoint advertised to the platform.
func (o Options) EndpointURI() string {
	return "http://" + o.Addr() + "/sse"
}

type Server struct {
	name        string
	toolGroupID string
	mcpServer   *server.MCPServer
}

type toolFunc func() (openai.FunctionDefinition, server.ToolHandlerFunc)

func newServer(name, toolGroupID string, tools ...toolFunc) (*Server, error) {
	s := &Server{
		name:        name,
		toolGroupID: toolGroupID,
		mcpServer:   server.NewMCPServer(name, "1.0.0", server.WithToolCapabilities(true)),
	}
	for _, tool := range tools {
		def, handler := tool()
		mcpTool, err := shared.ConvertToMcpTool(def)
		if err != nil {
			return nil, fmt.Errorf("convert tool %s: %w", def.Name, err)
		}
		s.mcpServer.AddTool(mcpTool, handler)
	}
	return s, nil
}

func NewAssetDBServer(db *AssetDB) (*Server, error) {
	return newServer("Asset Database Server", config.AssetDBToolGroup, db.laptopInfoTool)
}

func NewServiceNowServer(sn *ServiceNow) (*Server, error) {
	return newServer("ServiceNow Server", config.ServiceNowToolGroup, sn.laptopRequestTool)
}

func (s *Server) Name() string {
	return s.name
}

func (s *Server) ToolGroupID() string {
	return s.toolGroupID
}

// MCPServer exposes the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Run serves SSE on opts.Addr until ctx is done. Unless NoRegister is set the
// server registers itself as a tool group once it is listening.
func (s *Server) Run(ctx context.Context, opts Options) error {
	log.Info().Str("server", s.name).Str("host", opts.Host).Int("port", opts.Port).
		Str("llama_stack_host", opts.LlamaStackHost).Msg("starting MCP server")

	listener, err := net.Listen("tcp", opts.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.Addr(), err)
	}
	httpServer := &http.Server{}
	sseServer := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL("http://"+opts.Addr()),
		server.WithHTTPServer(httpServer),
	)
	httpServer.Handler = sseServer

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	if !opts.NoRegister {
		if err := Register(ctx, opts.LlamaStackHost, s.toolGroupID, opts.EndpointURI()); err != nil {
			s.shutdown(sseServer)
			return err
		}
	}

	select {
	case <-ctx.Done():
		log.Info().Str("server", s.name).Msg("shutting down MCP server")
		s.shutdown(sseServer)
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", s.name, err)
	}
}

func (s *Server) shutdown(sseServer *server.SSEServer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sseServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Str("server", s.name).Msg("shutdown failed")
	}
}

// Register advertises an MCP endpoint to the platform as a tool group.
func Register(ctx context.Context, llamaStackHost, toolGroupID, endpointURI string) error {
	client, err := llamastack.New(config.PlatformURL(llamaStackHost), 120*time.Second, nil)
	if err != nil {
		return fmt.Errorf("register %s: %w", toolGroupID, err)
	}
	if err := client.RegisterToolGroup(ctx, toolGroupID, mcpProviderID, endpointURI); err != nil {
		return err
	}
	log.Info().Str("toolgroup", toolGroupID).Str("uri", endpointURI).Msg("registered MCP server")
	return nil
}
