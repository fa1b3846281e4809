// Package mcp bridges external MCP (Model Context Protocol) servers into
// the native tool registry, namespacing every discovered tool so it
// cannot collide with a built-in.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/atlasforge/agentmesh/internal/tools"
)

const discoveryTimeout = 10 * time.Second

// ServerConfig describes one external MCP server to bridge in.
type ServerConfig struct {
	Name      string
	Transport string // "stdio", "sse", or "streamable-http"
	Command   string
	Args      []string
	Env       map[string]string
	URL       string
	Headers   map[string]string
}

type serverState struct {
	client    *mcpclient.Client
	toolNames []string
}

// Manager owns connections to a tenant's configured MCP servers and
// keeps their tools registered in a tools.Registry.
type Manager struct {
	mu       sync.Mutex
	registry *tools.Registry
	servers  map[string]*serverState
	logger   *slog.Logger
}

// NewManager builds a Manager that registers bridged tools into registry.
func NewManager(registry *tools.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{registry: registry, servers: make(map[string]*serverState), logger: logger}
}

// Connect dials one MCP server, performs the protocol handshake, and
// registers every tool it advertises. Discovery is bounded to 10s so a
// slow or unreachable server never blocks tenant startup.
func (m *Manager) Connect(ctx context.Context, cfg ServerConfig) error {
	dctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	client, err := dial(cfg)
	if err != nil {
		return fmt.Errorf("mcp %s: dial: %w", cfg.Name, err)
	}

	if cfg.Transport != "stdio" {
		if err := client.Start(dctx); err != nil {
			_ = client.Close()
			return fmt.Errorf("mcp %s: start transport: %w", cfg.Name, err)
		}
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "agentmesh", Version: "1.0.0"}
	if _, err := client.Initialize(dctx, initReq); err != nil {
		_ = client.Close()
		return fmt.Errorf("mcp %s: initialize: %w", cfg.Name, err)
	}

	listed, err := client.ListTools(dctx, mcpgo.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("mcp %s: list tools: %w", cfg.Name, err)
	}

	var registered []string
	for _, mt := range listed.Tools {
		bt := NewBridgeTool(cfg.Name, mt, client)
		if err := m.registry.Register(bt); err != nil {
			m.logger.Warn("mcp tool collision, skipped", "server", cfg.Name, "tool", bt.Name(), "error", err)
			continue
		}
		registered = append(registered, bt.Name())
	}

	m.mu.Lock()
	m.servers[cfg.Name] = &serverState{client: client, toolNames: registered}
	m.mu.Unlock()

	m.logger.Info("mcp server connected", "server", cfg.Name, "transport", cfg.Transport, "tools", len(registered))
	return nil
}

// Disconnect closes one server's connection and unregisters its tools.
func (m *Manager) Disconnect(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ss, ok := m.servers[name]
	if !ok {
		return
	}
	_ = ss.client.Close()
	for _, toolName := range ss.toolNames {
		m.registry.Unregister(toolName)
	}
	delete(m.servers, name)
}

// Close disconnects every connected server.
func (m *Manager) Close() {
	m.mu.Lock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	m.mu.Unlock()
	for _, name := range names {
		m.Disconnect(name)
	}
}

func dial(cfg ServerConfig) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case "stdio":
		envSlice := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			envSlice = append(envSlice, k+"="+v)
		}
		return mcpclient.NewStdioMCPClient(cfg.Command, envSlice, cfg.Args...)
	case "sse":
		var opts []mcpclient.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)
	case "streamable-http":
		return mcpclient.NewStreamableHttpClient(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}
