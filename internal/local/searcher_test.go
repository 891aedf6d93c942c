package local

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mgomes/nestfind/internal/cohere"
	"github.com/mgomes/nestfind/internal/db"
	"github.com/mgomes/nestfind/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func seed(t *testing.T, database *db.DB, path, indexName string, recs ...db.Record) {
	t.Helper()
	sourceID, err := database.UpsertSource(path, indexName, 1, 1)
	require.NoError(t, err)
	for i := range recs {
		recs[i].IndexName = indexName
		recs[i].Position = i
	}
	_, err = database.ReplaceRecords(sourceID, recs)
	require.NoError(t, err)
}

func project(key, name, summary string) db.Record {
	return db.Record{
		ObjectID: key,
		Name:     name,
		Body:     name + " " + summary,
		Payload:  fmt.Sprintf(`{"key": %q, "name": %q, "summary": %q}`, key, name, summary),
	}
}

func seeded(t *testing.T) *db.DB {
	database := openDB(t)
	seed(t, database, "projects.json", search.IndexProjects,
		project("zap", "ZAP", "web application scanner"),
		project("juice-shop", "Juice Shop", "insecure web application"),
		project("amass", "Amass", "attack surface mapping"),
	)
	seed(t, database, "chapters.json", search.IndexChapters,
		db.Record{ObjectID: "london", Name: "London", Body: "London Europe", Payload: `{"key": "london", "name": "London"}`},
	)
	return database
}

func names(hits []search.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.DisplayName()
	}
	return out
}

func TestKeyword_MatchesWithinIndex(t *testing.T) {
	s, err := NewSearcher(context.Background(), seeded(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	page, err := s.FetchIndex(context.Background(), search.FetchRequest{
		IndexName: search.IndexProjects,
		Query:     "web application",
		Page:      1,
		PageSize:  10,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ZAP", "Juice Shop"}, names(page.Hits))
	assert.Equal(t, 1, page.TotalPages)

	for _, h := range page.Hits {
		assert.IsType(t, search.ProjectHit{}, h)
	}
}

func TestKeyword_PrefixOnLastTerm(t *testing.T) {
	s, err := NewSearcher(context.Background(), seeded(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	page, err := s.FetchIndex(context.Background(), search.FetchRequest{
		IndexName: search.IndexProjects,
		Query:     "Jui",
	})
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Equal(t, "juice-shop", page.Hits[0].ID())
}

func TestKeyword_IgnoresStopWords(t *testing.T) {
	s, err := NewSearcher(context.Background(), seeded(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	for query, want := range map[string][]string{
		"the web":      {"ZAP", "Juice Shop"},
		"an attack":    {"Amass"},
		"web the":      {"ZAP", "Juice Shop"},
		"the juice sh": {"Juice Shop"},
	} {
		page, err := s.FetchIndex(context.Background(), search.FetchRequest{
			IndexName: search.IndexProjects,
			Query:     query,
		})
		require.NoError(t, err, query)
		assert.ElementsMatch(t, want, names(page.Hits), query)
	}
}

func TestKeyword_ScopedToIndex(t *testing.T) {
	s, err := NewSearcher(context.Background(), seeded(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	page, err := s.FetchIndex(context.Background(), search.FetchRequest{
		IndexName: search.IndexChapters,
		Query:     "web",
	})
	require.NoError(t, err)
	assert.Empty(t, page.Hits)
	assert.Zero(t, page.TotalPages)

	page, err = s.FetchIndex(context.Background(), search.FetchRequest{
		IndexName: search.IndexChapters,
		Query:     "london",
	})
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.IsType(t, search.ChapterHit{}, page.Hits[0])
}

func TestKeyword_Pagination(t *testing.T) {
	s, err := NewSearcher(context.Background(), seeded(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	first, err := s.FetchIndex(context.Background(), search.FetchRequest{
		IndexName: search.IndexProjects, Query: "web", Page: 1, PageSize: 1,
	})
	require.NoError(t, err)
	second, err := s.FetchIndex(context.Background(), search.FetchRequest{
		IndexName: search.IndexProjects, Query: "web", Page: 2, PageSize: 1,
	})
	require.NoError(t, err)

	require.Len(t, first.Hits, 1)
	require.Len(t, second.Hits, 1)
	assert.Equal(t, 2, first.TotalPages)
	assert.NotEqual(t, first.Hits[0].ID(), second.Hits[0].ID())
}

func TestKeyword_BlankQuery(t *testing.T) {
	s, err := NewSearcher(context.Background(), seeded(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	page, err := s.FetchIndex(context.Background(), search.FetchRequest{IndexName: search.IndexProjects, Query: "  "})
	require.NoError(t, err)
	assert.Empty(t, page.Hits)
}

func TestReload_PicksUpNewRecords(t *testing.T) {
	database := seeded(t)
	s, err := NewSearcher(context.Background(), database)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	req := search.FetchRequest{IndexName: search.IndexProjects, Query: "threat"}
	page, err := s.FetchIndex(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, page.Hits)

	seed(t, database, "more.json", search.IndexProjects, project("threat-dragon", "Threat Dragon", "threat modeling"))
	require.NoError(t, s.Reload(context.Background()))

	page, err = s.FetchIndex(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"Threat Dragon"}, names(page.Hits))
}

func TestClosed(t *testing.T) {
	s, err := NewSearcher(context.Background(), seeded(t))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.FetchIndex(context.Background(), search.FetchRequest{IndexName: search.IndexProjects, Query: "zap"})
	assert.Error(t, err)
}

type fakeStore struct {
	candidates []db.RecordWithScore
	lastIndex  string
	lastLimit  int
}

func (f *fakeStore) AllRecords() ([]db.Record, error) { return nil, nil }

func (f *fakeStore) SearchSimilar(indexName string, _ []byte, limit int) ([]db.RecordWithScore, error) {
	f.lastIndex = indexName
	f.lastLimit = limit
	return f.candidates, nil
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0, 0}, nil
}

// reverseReranker ranks candidates in reverse order.
type reverseReranker struct{}

func (reverseReranker) Rerank(_ context.Context, _ string, docs []string, _ int) ([]cohere.RerankResult, error) {
	out := make([]cohere.RerankResult, len(docs))
	for i := range docs {
		out[i] = cohere.RerankResult{Index: len(docs) - 1 - i, Score: float64(len(docs) - i)}
	}
	return out, nil
}

func candidate(key, name string) db.RecordWithScore {
	r := project(key, name, "")
	return db.RecordWithScore{Record: r}
}

func TestSemantic_RerankedPage(t *testing.T) {
	store := &fakeStore{candidates: []db.RecordWithScore{
		candidate("zap", "ZAP"),
		candidate("juice-shop", "Juice Shop"),
		candidate("amass", "Amass"),
	}}
	s, err := NewSearcher(context.Background(), store, WithSemantic(fakeEmbedder{}, reverseReranker{}))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	page, err := s.FetchIndex(context.Background(), search.FetchRequest{
		IndexName: search.IndexProjects, Query: "scanner", Page: 1, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Amass", "Juice Shop"}, names(page.Hits))
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, search.IndexProjects, store.lastIndex)
	assert.Equal(t, vectorSearchLimit, store.lastLimit)

	page, err = s.FetchIndex(context.Background(), search.FetchRequest{
		IndexName: search.IndexProjects, Query: "scanner", Page: 2, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ZAP"}, names(page.Hits))
}

func TestSemantic_EmbedError(t *testing.T) {
	s, err := NewSearcher(context.Background(), &fakeStore{},
		WithSemantic(fakeEmbedder{err: errors.New("invalid api key")}, reverseReranker{}))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.FetchIndex(context.Background(), search.FetchRequest{IndexName: search.IndexProjects, Query: "zap"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestSemantic_NoCandidates(t *testing.T) {
	s, err := NewSearcher(context.Background(), &fakeStore{}, WithSemantic(fakeEmbedder{}, reverseReranker{}))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	page, err := s.FetchIndex(context.Background(), search.FetchRequest{IndexName: search.IndexEvents, Query: "summit"})
	require.NoError(t, err)
	assert.Empty(t, page.Hits)
}
