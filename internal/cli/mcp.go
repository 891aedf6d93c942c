package cli

import (
	"fmt"
	"os"

	"github.com/mgomes/nestfind/internal/logger"
	"github.com/mgomes/nestfind/internal/mcpserver"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the search as an MCP tool over stdio",
	Long: `Start a Model Context Protocol server on stdio exposing the nest_search
tool. Logs go to stderr (or log.file) so stdout stays free for the protocol.

Example:
  nfind mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.NeedsSetup() {
		return fmt.Errorf("search backend %q is not configured; run nfind setup", cfg.Search.Backend)
	}

	closer, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	ctx := cmd.Context()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close() //nolint:errcheck

	stopWatching := b.watchLocal(ctx)
	defer stopWatching()

	fmt.Fprintf(os.Stderr, "nestfind MCP server (%s backend)\n", cfg.Search.Backend)
	return mcpserver.New(b.fetcher, cfg.EngineOptions(), version, logger.ForComponent("mcp")).Serve(ctx)
}
