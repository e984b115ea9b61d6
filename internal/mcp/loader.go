package mcp

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/locodev/loco/internal/config"
	"github.com/locodev/loco/internal/tools"
)

// DefaultConnectTimeout bounds a single server's initialize + tools/list
// during startup.
const DefaultConnectTimeout = 30 * time.Second

// LoadServers connects to every configured MCP server concurrently,
// bridges the discovered tools into the registry, and returns the
// connected clients keyed by server name. Each server gets its own
// connect timeout; a server that fails to connect or list tools is
// logged, contributes zero tools, and never stalls the others.
func LoadServers(ctx context.Context, servers map[string]config.MCPServerConfig, registry *tools.Registry, connectTimeout time.Duration, logger *slog.Logger) map[string]*Client {
	if logger == nil {
		logger = slog.Default()
	}
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	// Deterministic startup order for logs.
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu      sync.Mutex
		clients = make(map[string]*Client)
		wg      sync.WaitGroup
	)

	for _, name := range names {
		cfg := servers[name]
		wg.Add(1)
		go func(name string, cfg config.MCPServerConfig) {
			defer wg.Done()

			client, err := connectServer(ctx, name, cfg, registry, connectTimeout, logger)
			if err != nil {
				logger.Warn("MCP server unavailable, skipping",
					"server", name,
					"error", err,
				)
				return
			}

			mu.Lock()
			clients[name] = client
			mu.Unlock()
		}(name, cfg)
	}
	wg.Wait()

	return clients
}

// connectServer builds the transport for one server config, performs the
// handshake, and bridges its tools.
func connectServer(ctx context.Context, name string, cfg config.MCPServerConfig, registry *tools.Registry, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	var transport Transport
	switch cfg.Type {
	case config.MCPServerTypeHTTP:
		transport = NewHTTPTransport(HTTPConfig{
			Name:    name,
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Logger:  logger,
		})
	default:
		argv := cfg.Argv()
		transport = NewStdioTransport(StdioConfig{
			Name:    name,
			Command: argv[0],
			Args:    argv[1:],
			Env:     cfg.EnvList(),
			Cwd:     cfg.Cwd,
			Logger:  logger,
		})
	}

	client := NewClient(name, transport, logger)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Initialize(connectCtx); err != nil {
		_ = client.Close()
		return nil, err
	}

	count, err := BridgeTools(connectCtx, client, name, registry, nil, nil, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("MCP server connected", "server", name, "tools", count)
	return client, nil
}

// CloseAll shuts down every client, logging failures.
func CloseAll(clients map[string]*Client, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for name, client := range clients {
		if err := client.Close(); err != nil {
			logger.Warn("closing MCP client", "server", name, "error", err)
		}
	}
}
