package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/mgomes/nestfind/internal/config"
	"github.com/mgomes/nestfind/internal/logger"
	"github.com/mgomes/nestfind/internal/navigate"
	"github.com/mgomes/nestfind/internal/search"
	"github.com/mgomes/nestfind/internal/telemetry"
	"github.com/mgomes/nestfind/internal/tui"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Start the interactive search box",
	Long: `Start the interactive search box, optionally pre-filled with text.

Keys:
  up/down   move the highlight
  enter     open the highlighted hit
  esc       hide suggestions (press again to quit)
  ctrl+c    quit`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ensureSetup(cmd.Context(), cfg); err != nil {
		return err
	}

	closer, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close() //nolint:errcheck

	stopWatching := b.watchLocal(ctx)
	defer stopWatching()

	nav, err := navigate.New(cfg.Site.BaseURL, navigate.WithLogger(logger.ForComponent("navigate")))
	if err != nil {
		return err
	}

	engine := search.New(
		cfg.EngineOptions(),
		b.fetcher,
		nav,
		telemetry.New(logger.ForComponent("telemetry")),
		logger.ForComponent("search"),
	)
	defer engine.Close() //nolint:errcheck

	return tui.RunSearch(engine, strings.Join(args, " "))
}

// ensureSetup runs the setup wizard when the remote backend is not
// configured yet. The local backend is configured by hand.
func ensureSetup(ctx context.Context, cfg *config.Config) error {
	if cfg.Search.Backend == config.BackendLocal {
		if cfg.NeedsSetup() {
			return errors.New("local.data_dir is not set in the config file")
		}
		if cfg.Site.BaseURL == "" {
			return errors.New("site.base_url is not set in the config file")
		}
		return nil
	}

	if cfg.NeedsSetup() || cfg.Site.BaseURL == "" {
		return runSetupWizard(ctx, cfg)
	}
	return nil
}
