package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/mgomes/nestfind/internal/db"
	"github.com/mgomes/nestfind/internal/search"
)

// Store is the part of the record store the searcher reads. *db.DB
// satisfies it.
type Store interface {
	AllRecords() ([]db.Record, error)
	SearchSimilar(indexName string, queryEmbedding []byte, limit int) ([]db.RecordWithScore, error)
}

// Searcher answers index fetches from imported dumps. It implements
// search.Fetcher.
type Searcher struct {
	store    Store
	semantic *semantic
	log      *slog.Logger

	mu    sync.RWMutex
	index bleve.Index
}

type Option func(*Searcher)

// WithSemantic ranks by embeddings and reranking instead of keywords.
func WithSemantic(embedder Embedder, reranker Reranker) Option {
	return func(s *Searcher) {
		s.semantic = &semantic{embedder: embedder, reranker: reranker}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Searcher) {
		s.log = log
	}
}

func NewSearcher(ctx context.Context, store Store, opts ...Option) (*Searcher, error) {
	s := &Searcher{store: store, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rebuilds the keyword index from the store and swaps it in.
func (s *Searcher) Reload(ctx context.Context) error {
	recs, err := s.store.AllRecords()
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return fmt.Errorf("failed to create bleve index: %w", err)
	}

	if err := indexRecords(ctx, index, recs); err != nil {
		index.Close() //nolint:errcheck
		return fmt.Errorf("failed to index records: %w", err)
	}

	s.mu.Lock()
	old := s.index
	s.index = index
	s.mu.Unlock()

	if old != nil {
		old.Close() //nolint:errcheck
	}

	s.log.Debug("keyword index loaded", "records", len(recs))
	return nil
}

func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

func (s *Searcher) FetchIndex(ctx context.Context, req search.FetchRequest) (search.Page, error) {
	if req.PageSize <= 0 {
		req.PageSize = search.DefaultPageSize
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	if s.semantic != nil {
		return s.semantic.fetch(ctx, s.store, req)
	}
	return s.keyword(ctx, req)
}

func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = false
	keyword.Index = true

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false
	text.Index = true

	payload := bleve.NewTextFieldMapping()
	payload.Store = true
	payload.Index = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("index_name", keyword)
	docMapping.AddFieldMappingsAt("name", text)
	docMapping.AddFieldMappingsAt("body", text)
	docMapping.AddFieldMappingsAt("payload", payload)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func indexRecords(ctx context.Context, index bleve.Index, recs []db.Record) error {
	const batchSize = 1000

	batch := index.NewBatch()
	for i, r := range recs {
		if i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		doc := map[string]interface{}{
			"index_name": r.IndexName,
			"name":       r.Name,
			"body":       r.Body,
			"payload":    r.Payload,
		}
		if err := batch.Index(strconv.FormatInt(r.ID, 10), doc); err != nil {
			return fmt.Errorf("failed to add record %d to batch: %w", r.ID, err)
		}

		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("failed to execute final batch: %w", err)
		}
	}
	return nil
}

// keywordQuery matches every term, treating the last one as a prefix so
// that partially typed words still match.
func keywordQuery(indexName string, terms []string) query.Query {
	scope := bleve.NewTermQuery(indexName)
	scope.SetField("index_name")
	queries := []query.Query{scope}

	for i, term := range terms {
		full := bleve.NewMatchQuery(term)
		full.SetField("body")

		if i < len(terms)-1 {
			queries = append(queries, full)
			continue
		}

		prefix := bleve.NewPrefixQuery(term)
		prefix.SetField("body")
		name := bleve.NewMatchQuery(term)
		name.SetField("name")
		name.SetBoost(2)
		queries = append(queries, bleve.NewDisjunctionQuery(full, prefix, name))
	}

	return bleve.NewConjunctionQuery(queries...)
}

// queryTerms splits text into lowercase words and drops those the body
// analyzer discards, such as stop words. A query made only of such words
// keeps its last word so it can still match as a prefix.
func queryTerms(index bleve.Index, text string) []string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return nil
	}

	analyzer := index.Mapping().AnalyzerNamed(standard.Name)
	if analyzer == nil {
		return words
	}

	var terms []string
	for _, w := range words {
		if len(analyzer.Analyze([]byte(w))) > 0 {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 {
		return words[len(words)-1:]
	}
	return terms
}

func (s *Searcher) keyword(ctx context.Context, req search.FetchRequest) (search.Page, error) {
	if strings.TrimSpace(req.Query) == "" {
		return search.Page{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return search.Page{}, fmt.Errorf("searcher is closed")
	}

	from := (req.Page - 1) * req.PageSize
	q := keywordQuery(req.IndexName, queryTerms(s.index, req.Query))
	sr := bleve.NewSearchRequestOptions(q, req.PageSize, from, false)
	sr.Fields = []string{"payload"}

	res, err := s.index.SearchInContext(ctx, sr)
	if err != nil {
		return search.Page{}, fmt.Errorf("bleve search failed: %w", err)
	}

	page := search.Page{
		Hits:       make([]search.Hit, 0, len(res.Hits)),
		TotalPages: totalPages(int(res.Total), req.PageSize),
	}
	for _, h := range res.Hits {
		payload, _ := h.Fields["payload"].(string)
		hit, err := decodePayload(req.IndexName, payload)
		if err != nil {
			return search.Page{}, err
		}
		if hit != nil {
			page.Hits = append(page.Hits, hit)
		}
	}
	return page, nil
}

func decodePayload(indexName, payload string) (search.Hit, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, nil
	}
	return search.DecodeHit(indexName, fields)
}

func totalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
