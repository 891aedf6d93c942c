package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mgomes/nestfind/internal/search"
)

// Server exposes the search over MCP on stdio.
type Server struct {
	mcp *server.MCPServer
	log *slog.Logger
}

func New(fetcher search.Fetcher, opts search.Options, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		"nestfind",
		version,
		server.WithToolCapabilities(true),
	)
	AddSearchTool(mcpServer, fetcher, opts, log)

	return &Server{mcp: mcpServer, log: log}
}

// Serve blocks until stdin closes or ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting MCP server on stdio")
		errCh <- server.ServeStdio(s.mcp)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("stopping MCP server")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	}
}
