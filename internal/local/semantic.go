package local

import (
	"context"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mgomes/nestfind/internal/cohere"
	"github.com/mgomes/nestfind/internal/search"
)

const vectorSearchLimit = 20

type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]cohere.RerankResult, error)
}

type semantic struct {
	embedder Embedder
	reranker Reranker
}

// fetch takes nearest neighbours for the query within one index, reranks
// them and cuts the requested page.
func (s *semantic) fetch(ctx context.Context, store Store, req search.FetchRequest) (search.Page, error) {
	queryEmb, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return search.Page{}, fmt.Errorf("failed to embed query: %w", err)
	}

	queryBytes, err := sqlite_vec.SerializeFloat32(queryEmb)
	if err != nil {
		return search.Page{}, fmt.Errorf("failed to serialize query embedding: %w", err)
	}

	limit := max(vectorSearchLimit, req.Page*req.PageSize)
	candidates, err := store.SearchSimilar(req.IndexName, queryBytes, limit)
	if err != nil {
		return search.Page{}, fmt.Errorf("vector search failed: %w", err)
	}
	if len(candidates) == 0 {
		return search.Page{}, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Body
	}

	ranked, err := s.reranker.Rerank(ctx, req.Query, docs, len(docs))
	if err != nil {
		return search.Page{}, fmt.Errorf("rerank failed: %w", err)
	}

	from := (req.Page - 1) * req.PageSize
	page := search.Page{TotalPages: totalPages(len(ranked), req.PageSize)}
	for i := from; i < len(ranked) && i < from+req.PageSize; i++ {
		c := candidates[ranked[i].Index]
		hit, err := decodePayload(req.IndexName, c.Payload)
		if err != nil {
			return search.Page{}, err
		}
		if hit != nil {
			page.Hits = append(page.Hits, hit)
		}
	}
	return page, nil
}
