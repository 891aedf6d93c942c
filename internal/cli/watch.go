package cli

import (
	"fmt"

	"github.com/mgomes/nestfind/internal/indexer"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-import index dumps as they change",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closer, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	database, idx, err := openLocal(cfg)
	if err != nil {
		return err
	}
	defer database.Close() //nolint:errcheck

	watcher, err := indexer.NewWatcher(idx)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	out := cmd.OutOrStdout()
	watcher.SetMessageHandler(func(msg string) {
		fmt.Fprintln(out, msg)
	})

	err = watcher.Start(cmd.Context())
	fmt.Fprintln(out, "Stopping watcher...")
	return err
}
