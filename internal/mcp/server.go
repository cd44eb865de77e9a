package mcp

import (
	"context"
	"io"
	"log/slog"

	"github.com/ganot/rpstage/internal/hub"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Game defines the hub operations needed by MCP.
type Game interface {
	Submit(ctx context.Context, actor hub.Actor, cmd hub.Command) error
	Overview(ctx context.Context, recent int) (hub.Overview, error)
}

// Config contains server configuration.
type Config struct {
	Game Game
	// DefaultActor names tool calls that carry no display name.
	DefaultActor string
	Logger       *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.DefaultActor == "" {
		cfg.DefaultActor = DefaultActor
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "rpstage",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	server.AddReceivingMiddleware(actorMiddleware(cfg.DefaultActor))
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	registerTools(server, cfg.Game)

	return server
}
