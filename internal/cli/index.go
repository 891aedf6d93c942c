package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fullFlag bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Import index dumps into the local store",
	Long: `Import the JSON index dumps under local.data_dir into the local store.

Each dump is {"index": "<name>", "hits": [...]}; without "index" the file
name (projects.json) names the index. Unchanged dumps are skipped unless
--full is given. With a Cohere API key configured, records are embedded
for semantic search.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&fullFlag, "full", false, "re-import every dump")
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	reporter := newProgressReporter(out)
	err = idx.Index(cmd.Context(), fullFlag, reporter.report)
	reporter.finish()
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	sources, _ := database.SourceCount()
	records, _ := database.RecordCount()
	embeddings, _ := database.EmbeddingCount()
	fmt.Fprintf(out, "Index complete: %d dumps, %d records, %d embeddings\n", sources, records, embeddings)
	return nil
}
