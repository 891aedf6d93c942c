package search

import (
	"context"
	"errors"
	"sync"
)

type recordedFetch struct {
	req FetchRequest
	ctx context.Context
}

// fakeFetcher serves canned hits per index. Queries listed in block wait
// for their channel to close, ignoring ctx.
type fakeFetcher struct {
	mu      sync.Mutex
	hits    map[string][]Hit
	failing map[string]bool
	block   map[string]chan struct{}
	calls   []recordedFetch
}

func newFakeFetcher(hits map[string][]Hit) *fakeFetcher {
	return &fakeFetcher{
		hits:    hits,
		failing: make(map[string]bool),
		block:   make(map[string]chan struct{}),
	}
}

func (f *fakeFetcher) FetchIndex(ctx context.Context, req FetchRequest) (Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedFetch{req: req, ctx: ctx})
	wait := f.block[req.Query]
	failing := f.failing[req.IndexName]
	hits := f.hits[req.IndexName]
	f.mu.Unlock()

	if wait != nil {
		<-wait
	}
	if failing {
		return Page{}, errors.New("index unavailable")
	}
	return Page{Hits: hits, TotalPages: 1}, nil
}

func (f *fakeFetcher) blockQuery(q string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.block[q] = ch
	return ch
}

func (f *fakeFetcher) fail(indexName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[indexName] = true
}

func (f *fakeFetcher) recorded() []recordedFetch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedFetch, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeFetcher) queries() []string {
	var out []string
	for _, c := range f.recorded() {
		out = append(out, c.req.Query)
	}
	return out
}

type recordingNavigator struct {
	mu       sync.Mutex
	paths    []string
	external []string
}

func (n *recordingNavigator) NavigateTo(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
	return nil
}

func (n *recordingNavigator) OpenExternal(url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.external = append(n.external, url)
	return nil
}

type recordingTelemetry struct {
	mu      sync.Mutex
	queries []Query
}

func (r *recordingTelemetry) QueryFired(q Query) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *recordingTelemetry) fired() []Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Query(nil), r.queries...)
}

func sampleHits() map[string][]Hit {
	return map[string][]Hit{
		IndexChapters: {ChapterHit{Key: "london", Name: "London"}},
		IndexProjects: {
			ProjectHit{Key: "zap", Name: "ZAP"},
			ProjectHit{Key: "juice-shop", Name: "Juice Shop"},
		},
		IndexUsers:         {UserHit{Login: "alice", Name: "Alice"}},
		IndexOrganizations: nil,
		IndexEvents:        {EventHit{Key: "appsec-eu", Name: "AppSec EU", URL: "https://example.org/appsec-eu"}},
	}
}
