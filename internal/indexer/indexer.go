package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mgomes/nestfind/internal/cohere"
	"github.com/mgomes/nestfind/internal/db"
)

const batchSize = cohere.MaxBatch

// Embedder turns record text into vectors. *cohere.Client satisfies it.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer imports index dumps from a directory into the local store.
type Indexer struct {
	db       *db.DB
	embedder Embedder
	dir      string
	include  []string
	log      *slog.Logger
}

type Progress struct {
	Current  int
	Total    int
	FilePath string
	Message  string
}

type ProgressFunc func(Progress)

// New returns an indexer for dataDir. A nil embedder skips embeddings, so
// only keyword search is available.
func New(database *db.DB, embedder Embedder, dataDir string, include []string, log *slog.Logger) *Indexer {
	if len(include) == 0 {
		include = []string{"**/*.json"}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		db:       database,
		embedder: embedder,
		dir:      dataDir,
		include:  include,
		log:      log,
	}
}

func (idx *Indexer) Dir() string {
	return idx.dir
}

func (idx *Indexer) Index(ctx context.Context, fullReindex bool, progress ProgressFunc) error {
	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}

	files, err := idx.findDumpFiles()
	if err != nil {
		return fmt.Errorf("failed to find dump files: %w", err)
	}

	existing, err := idx.db.GetAllSources()
	if err != nil {
		return fmt.Errorf("failed to get existing sources: %w", err)
	}

	existingByPath := make(map[string]*db.Source, len(existing))
	for i := range existing {
		existingByPath[existing[i].Path] = &existing[i]
	}

	current := make(map[string]bool, len(files))
	for _, f := range files {
		current[f] = true
	}

	for _, src := range existing {
		if current[src.Path] {
			continue
		}
		report(Progress{Message: fmt.Sprintf("Removing deleted: %s", filepath.Base(src.Path))})
		if err := idx.db.DeleteSource(src.Path); err != nil {
			return fmt.Errorf("failed to delete source %s: %w", src.Path, err)
		}
	}

	var toImport []string
	for _, relPath := range files {
		needs, err := idx.needsIndexing(relPath, fullReindex, existingByPath[relPath])
		if err != nil {
			return err
		}
		if needs {
			toImport = append(toImport, relPath)
		}
	}

	for i, relPath := range toImport {
		if err := ctx.Err(); err != nil {
			return err
		}
		report(Progress{
			Current:  i + 1,
			Total:    len(toImport),
			FilePath: relPath,
			Message:  fmt.Sprintf("Importing %s", filepath.Base(relPath)),
		})
		if _, err := idx.importFile(relPath); err != nil {
			return fmt.Errorf("failed to import %s: %w", relPath, err)
		}
	}

	if len(toImport) == 0 {
		report(Progress{Message: "Index is up to date"})
	}

	return idx.EmbedPending(ctx, func(batchNum, totalBatches, batchLen int) {
		report(Progress{
			Current: batchNum,
			Total:   totalBatches,
			Message: fmt.Sprintf("Embedding batch %d/%d (%d records)", batchNum, totalBatches, batchLen),
		})
	})
}

func (idx *Indexer) findDumpFiles() ([]string, error) {
	var files []string
	err := filepath.Walk(idx.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != idx.dir && isHiddenDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(idx.dir, path)
		if err != nil {
			return err
		}
		if idx.Matches(relPath) {
			files = append(files, relPath)
		}
		return nil
	})

	return files, err
}

// Matches reports whether relPath is a dump this indexer imports.
func (idx *Indexer) Matches(relPath string) bool {
	return !isHiddenRelPath(relPath) && matchesInclude(idx.include, relPath)
}

func (idx *Indexer) needsIndexing(relPath string, fullReindex bool, src *db.Source) (bool, error) {
	if fullReindex || src == nil {
		return true, nil
	}

	info, err := os.Stat(filepath.Join(idx.dir, relPath))
	if err != nil {
		return false, err
	}

	return info.ModTime().Unix() > src.ModifiedAt, nil
}

// importFile replaces the stored records of one dump and returns how many
// were imported.
func (idx *Indexer) importFile(relPath string) (int, error) {
	absPath := filepath.Join(idx.dir, relPath)
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return 0, err
	}

	indexName, recs, err := parseDump(data, relPath)
	if err != nil {
		return 0, err
	}

	sourceID, err := idx.db.UpsertSource(relPath, indexName, info.ModTime().Unix(), time.Now().Unix())
	if err != nil {
		return 0, err
	}

	if _, err := idx.db.ReplaceRecords(sourceID, recs); err != nil {
		return 0, err
	}

	idx.log.Debug("imported dump", "path", relPath, "index", indexName, "records", len(recs))
	return len(recs), nil
}

// IndexFile imports a single dump and embeds its records. Used by the
// watcher.
func (idx *Indexer) IndexFile(ctx context.Context, relPath string) error {
	if _, err := idx.importFile(relPath); err != nil {
		return err
	}
	return idx.EmbedPending(ctx, nil)
}

func (idx *Indexer) RemoveFile(relPath string) error {
	return idx.db.DeleteSource(relPath)
}

type batchProgressFunc func(batchNum, totalBatches, batchLen int)

// EmbedPending embeds every record that has no vector yet. It does nothing
// without an embedder.
func (idx *Indexer) EmbedPending(ctx context.Context, onBatch batchProgressFunc) error {
	if idx.embedder == nil {
		return nil
	}

	pending, err := idx.db.RecordsWithoutEmbedding(0)
	if err != nil {
		return fmt.Errorf("failed to list records to embed: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	totalBatches := (len(pending) + batchSize - 1) / batchSize
	for i := 0; i < len(pending); i += batchSize {
		end := min(i+batchSize, len(pending))
		batch := pending[i:end]
		batchNum := (i / batchSize) + 1

		if onBatch != nil {
			onBatch(batchNum, totalBatches, len(batch))
		}

		texts := make([]string, len(batch))
		for j, r := range batch {
			texts[j] = r.Body
		}

		embeddings, err := idx.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings for batch %d: %w", batchNum, err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("batch %d: got %d embeddings for %d records", batchNum, len(embeddings), len(batch))
		}

		for j, r := range batch {
			embBytes, err := sqlite_vec.SerializeFloat32(embeddings[j])
			if err != nil {
				return fmt.Errorf("failed to serialize embedding: %w", err)
			}

			if err := idx.db.InsertEmbedding(r.ID, r.IndexName, embBytes); err != nil {
				return fmt.Errorf("failed to insert embedding: %w", err)
			}
		}
	}

	return nil
}
