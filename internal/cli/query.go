package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mgomes/nestfind/internal/logger"
	"github.com/mgomes/nestfind/internal/mcpserver"
	"github.com/mgomes/nestfind/internal/search"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	jsonFlag    bool
	indexesFlag []string
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run one search and print the grouped suggestions",
	Long: `Run one search without debouncing and print the suggestions grouped by
index, each with the page or link it opens.

Examples:
  nfind query zap
  nfind query --json --index projects,chapters "threat modeling"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&jsonFlag, "json", false, "print JSON")
	queryCmd.Flags().StringSliceVar(&indexesFlag, "index", nil, "restrict to these indexes")
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	opts := cfg.EngineOptions()
	if len(indexesFlag) > 0 {
		for _, name := range indexesFlag {
			if !slices.Contains(opts.IndexNames, name) {
				return fmt.Errorf("%w: %q", search.ErrUnknownIndex, name)
			}
		}
		opts.IndexNames = indexesFlag
	}

	ctx := cmd.Context()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close() //nolint:errcheck

	text := strings.Join(args, " ")
	d := search.NewDispatcher(b.fetcher, opts.IndexNames, opts.PageSize, opts.FetchTimeout, logger.ForComponent("search"))
	set, err := search.Once(ctx, d, text)
	if err != nil {
		return err
	}

	if jsonFlag {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(mcpserver.NewSearchResponse(search.NormalizeQuery(text), set))
	}
	printSuggestions(cmd.OutOrStdout(), set)
	return nil
}

var titleCase = cases.Title(language.English)

func printSuggestions(w io.Writer, set search.SuggestionSet) {
	if set.Empty() {
		fmt.Fprintln(w, "No matches")
		return
	}

	for i, r := range set.Results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, titleCase.String(r.IndexName))
		for _, h := range r.Hits {
			target := "-"
			if action, err := search.Resolve(h, r.IndexName); err == nil {
				target = action.Target
			}
			fmt.Fprintf(w, "  %-40s %s\n", h.DisplayName(), target)
		}
	}
}
