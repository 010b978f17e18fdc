// Package mcpserver exposes every registered service adapter as MCP
// tools over SSE. Tool names follow the <service>_<tool> convention so
// one server can aggregate any number of services without collisions.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"conductor/internal/registry"
	"conductor/pkg/logging"
)

// Config holds the MCP server's listen address and identity.
type Config struct {
	Host       string
	Port       int
	ServerName string
	Version    string
}

// Server bridges the service registry to MCP clients.
type Server struct {
	config   Config
	registry *registry.Registry

	mcpServer *server.MCPServer
	sseServer *server.SSEServer
}

// New creates an MCP server over the given registry.
func New(config Config, reg *registry.Registry) *Server {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 8090
	}
	if config.ServerName == "" {
		config.ServerName = "conductor"
	}
	return &Server{config: config, registry: reg}
}

// Start builds the tool list from the registry's current capabilities
// and begins serving SSE. The listener is bound before Start returns,
// so an unusable address fails here rather than in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.mcpServer != nil {
		return fmt.Errorf("mcp server already started")
	}

	s.mcpServer = server.NewMCPServer(
		s.config.ServerName,
		s.config.Version,
		server.WithToolCapabilities(true),
	)
	tools := s.buildTools()
	s.mcpServer.AddTools(tools...)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	baseURL := fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
	httpServer := &http.Server{Addr: addr}
	s.sseServer = server.NewSSEServer(
		s.mcpServer,
		server.WithBaseURL(baseURL),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(30*time.Second),
		server.WithHTTPServer(httpServer),
	)
	httpServer.Handler = s.sseServer

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mcpServer = nil
		s.sseServer = nil
		return fmt.Errorf("binding mcp listener on %s: %w", addr, err)
	}
	logging.Info("MCPServer", "Serving %d tools on %s", len(tools), addr)

	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error("MCPServer", err, "SSE server error")
		}
	}()
	return nil
}

// Stop shuts the SSE listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.sseServer == nil {
		return nil
	}
	return s.sseServer.Shutdown(ctx)
}

// Endpoint returns the SSE endpoint URL clients connect to.
func (s *Server) Endpoint() string {
	return fmt.Sprintf("http://%s:%d/sse", s.config.Host, s.config.Port)
}

// buildTools flattens every service capability into one MCP tool.
func (s *Server) buildTools() []server.ServerTool {
	var tools []server.ServerTool
	for _, info := range s.registry.ListServices() {
		caps, err := s.registry.GetCapabilities(info.Name)
		if err != nil {
			logging.Warn("MCPServer", "Skipping service %s: %v", info.Name, err)
			continue
		}
		for _, capability := range caps {
			tools = append(tools, s.serverTool(info.Name, capability))
		}
	}
	return tools
}

func (s *Server) serverTool(service string, capability registry.Capability) server.ServerTool {
	properties := map[string]interface{}{}
	for name, schema := range capability.InputSchema {
		properties[name] = schema
	}

	tool := mcp.Tool{
		Name:        fmt.Sprintf("%s_%s", service, capability.Name),
		Description: capability.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
		},
	}

	toolName := capability.Name
	return server.ServerTool{
		Tool: tool,
		Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := map[string]interface{}{}
			if req.Params.Arguments != nil {
				if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
					args = argsMap
				}
			}

			result := s.registry.Execute(ctx, service, registry.Command{Tool: toolName, Args: args})
			if !result.Success {
				return mcp.NewToolResultError(result.Error), nil
			}

			data, err := json.Marshal(result.Data)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
			}
			return mcp.NewToolResultText(string(data)), nil
		},
	}
}
