package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mgomes/nestfind/internal/cohere"
	"github.com/mgomes/nestfind/internal/config"
	"github.com/mgomes/nestfind/internal/db"
	"github.com/mgomes/nestfind/internal/indexer"
	"github.com/mgomes/nestfind/internal/local"
	"github.com/mgomes/nestfind/internal/logger"
	"github.com/mgomes/nestfind/internal/remote"
	"github.com/mgomes/nestfind/internal/search"
)

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.NewLoader(cfgFile).Load()
	}
	return config.Load()
}

func saveConfig(cfg *config.Config) error {
	if cfgFile != "" {
		return cfg.SaveTo(cfgFile)
	}
	return cfg.Save()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogging installs the default logger. With toFile set, or a log file
// configured, records go to the file so they do not corrupt the terminal UI.
func setupLogging(cfg *config.Config, toFile bool) (io.Closer, error) {
	lc := logger.DefaultConfig()
	lc.Level = logger.ParseLevel(cfg.Log.Level)
	lc.Format = cfg.Log.Format
	if verbose {
		lc.Level = slog.LevelDebug
	}

	path := cfg.Log.File
	if path == "" && toFile {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "nestfind.log")
	}
	if path == "" {
		logger.Init(lc)
		return nopCloser{}, nil
	}

	f, err := logger.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	lc.Output = f
	logger.Init(lc)
	return f, nil
}

func newCohere(cfg *config.Config) *cohere.Client {
	return cohere.NewClient(cohere.Config{
		APIKey:      cfg.Cohere.APIKey,
		EmbedModel:  cfg.Cohere.EmbedModel,
		RerankModel: cfg.Cohere.RerankModel,
		EmbedDim:    cfg.Cohere.EmbedDim,
	})
}

// openLocal opens the local store and an importer over the data directory.
// Records are embedded only when a Cohere key is configured.
func openLocal(cfg *config.Config) (*db.DB, *indexer.Indexer, error) {
	if cfg.Local.DataDir == "" {
		return nil, nil, errors.New("local.data_dir is not set in the config file")
	}

	dbPath, err := config.DBPath()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database path: %w", err)
	}

	database, err := db.Open(dbPath, cfg.Cohere.EmbedDim)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	var embedder indexer.Embedder
	if cfg.Cohere.APIKey != "" {
		embedder = newCohere(cfg)
	}

	idx := indexer.New(database, embedder, cfg.Local.DataDir, cfg.Local.Include, logger.ForComponent("indexer"))
	return database, idx, nil
}

// backend is the fetch adapter selected by search.backend.
type backend struct {
	fetcher  search.Fetcher
	searcher *local.Searcher
	indexer  *indexer.Indexer
	db       *db.DB
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Search.Backend != config.BackendLocal {
		client, err := remote.NewClient(remoteConfig(cfg), logger.ForComponent("remote"))
		if err != nil {
			return nil, err
		}
		return &backend{fetcher: client}, nil
	}

	database, idx, err := openLocal(cfg)
	if err != nil {
		return nil, err
	}

	opts := []local.Option{local.WithLogger(logger.ForComponent("local"))}
	if cfg.SemanticEnabled() {
		c := newCohere(cfg)
		opts = append(opts, local.WithSemantic(c, c))
	}

	searcher, err := local.NewSearcher(ctx, database, opts...)
	if err != nil {
		database.Close() //nolint:errcheck
		return nil, err
	}

	return &backend{fetcher: searcher, searcher: searcher, indexer: idx, db: database}, nil
}

func remoteConfig(cfg *config.Config) remote.Config {
	return remote.Config{
		BaseURL:  cfg.Remote.BaseURL,
		APIKey:   cfg.Remote.APIKey,
		Timeout:  time.Duration(cfg.Remote.TimeoutSeconds) * time.Second,
		RetryMax: cfg.Remote.RetryMax,
	}
}

func (b *backend) Close() error {
	var errs []error
	if b.searcher != nil {
		errs = append(errs, b.searcher.Close())
	}
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	return errors.Join(errs...)
}

// watchLocal keeps the local searcher in step with the data directory. It
// returns a func that stops watching; for the remote backend it does
// nothing.
func (b *backend) watchLocal(ctx context.Context) func() {
	if b.indexer == nil {
		return func() {}
	}

	log := logger.ForComponent("watcher")
	w, err := indexer.NewWatcher(b.indexer)
	if err != nil {
		log.Warn("not watching data dir", "error", err)
		return func() {}
	}

	w.SetMessageHandler(func(msg string) { log.Debug(msg) })
	w.SetChangeHandler(func() {
		if err := b.searcher.Reload(ctx); err != nil {
			log.Warn("failed to reload local index", "error", err)
		}
	})

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Warn("watcher stopped", "error", err)
		}
	}()
	return w.Stop
}
