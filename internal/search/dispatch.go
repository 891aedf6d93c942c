package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// FetchRequest asks one index for one page of hits.
type FetchRequest struct {
	IndexName string
	Query     string
	Page      int
	PageSize  int
}

// Page is one index's answer to a FetchRequest.
type Page struct {
	Hits       []Hit
	TotalPages int
}

// Fetcher queries a single index. Implementations must return once ctx is
// done, either with an error or with an empty page.
type Fetcher interface {
	FetchIndex(ctx context.Context, req FetchRequest) (Page, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req FetchRequest) (Page, error)

func (f FetcherFunc) FetchIndex(ctx context.Context, req FetchRequest) (Page, error) {
	return f(ctx, req)
}

// Dispatcher fans one query out to every configured index.
type Dispatcher struct {
	fetcher      Fetcher
	indexNames   []string
	pageSize     int
	fetchTimeout time.Duration
	log          *slog.Logger
}

func NewDispatcher(fetcher Fetcher, indexNames []string, pageSize int, fetchTimeout time.Duration, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	names := make([]string, len(indexNames))
	copy(names, indexNames)
	return &Dispatcher{
		fetcher:      fetcher,
		indexNames:   names,
		pageSize:     pageSize,
		fetchTimeout: fetchTimeout,
		log:          log,
	}
}

func (d *Dispatcher) IndexNames() []string {
	names := make([]string, len(d.indexNames))
	copy(names, d.indexNames)
	return names
}

// Batch is the set of in-flight fetches for one generation.
type Batch struct {
	Token   *Token
	Query   string
	g       errgroup.Group
	results []IndexResult
}

// Wait blocks until every index has settled and returns one result per
// index in configuration order. Failed indexes yield empty results.
func (b *Batch) Wait() []IndexResult {
	_ = b.g.Wait()
	return b.results
}

// Dispatch starts one fetch per index without waiting on any of them.
func (d *Dispatcher) Dispatch(token *Token, query string) *Batch {
	b := &Batch{
		Token:   token,
		Query:   query,
		results: make([]IndexResult, len(d.indexNames)),
	}

	for i, name := range d.indexNames {
		b.g.Go(func() error {
			b.results[i] = d.fetchOne(token, name, query)
			return nil
		})
	}

	return b
}

type fetchOutcome struct {
	page Page
	err  error
}

func (d *Dispatcher) fetchOne(token *Token, indexName, query string) IndexResult {
	empty := IndexResult{IndexName: indexName}

	ctx := token.Context()
	if d.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.fetchTimeout)
		defer cancel()
	}

	req := FetchRequest{
		IndexName: indexName,
		Query:     query,
		Page:      1,
		PageSize:  d.pageSize,
	}

	// The adapter runs on its own goroutine so an adapter that ignores ctx
	// cannot hold the whole batch.
	done := make(chan fetchOutcome, 1)
	go func() {
		page, err := d.fetcher.FetchIndex(ctx, req)
		done <- fetchOutcome{page: page, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = fetchOutcome{err: ctx.Err()}
	}

	if out.err != nil {
		if errors.Is(out.err, context.Canceled) && token.Canceled() {
			d.log.Debug("fetch canceled", "index", indexName, "generation", token.Generation())
		} else {
			d.log.Warn("fetch failed", "index", indexName, "generation", token.Generation(), "error", out.err)
		}
		return empty
	}

	return IndexResult{
		IndexName:  indexName,
		Hits:       out.page.Hits,
		TotalPages: out.page.TotalPages,
	}
}

// Once runs a single generation synchronously, without debouncing, and
// returns its suggestions. ctx bounds the whole run.
func Once(ctx context.Context, d *Dispatcher, text string) (SuggestionSet, error) {
	q := NormalizeQuery(text)
	if q == "" {
		return SuggestionSet{}, nil
	}

	tokens := NewTokenManager(ctx)
	token := tokens.BeginGeneration()
	defer tokens.CancelActive()

	results := d.Dispatch(token, q).Wait()
	if err := ctx.Err(); err != nil {
		return SuggestionSet{}, fmt.Errorf("search %q: %w", q, err)
	}
	return collect(results), nil
}
