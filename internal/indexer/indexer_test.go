package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mgomes/nestfind/internal/db"
	"github.com/mgomes/nestfind/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectsDump = `{
	"index": "projects",
	"hits": [
		{"idx_key": "zap", "idx_name": "ZAP", "idx_summary": "Web app scanner", "idx_url": "https://example.org/zap"},
		{"idx_key": "juice-shop", "idx_name": "Juice Shop", "idx_summary": "Insecure web app"},
		{"idx_name": "No key"},
		42
	]
}`

const chaptersDump = `{"hits": [{"key": "london", "name": "London", "region": "Europe"}]}`

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1, 0, 0}
	}
	return out, nil
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func setup(t *testing.T, embedder Embedder) (*Indexer, *db.DB, string) {
	t.Helper()
	dir := t.TempDir()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return New(database, embedder, dir, nil, nil), database, dir
}

func TestParseDump(t *testing.T) {
	indexName, recs, err := parseDump([]byte(projectsDump), "exports/whatever.json")
	require.NoError(t, err)

	assert.Equal(t, search.IndexProjects, indexName)
	require.Len(t, recs, 2)
	assert.Equal(t, "zap", recs[0].ObjectID)
	assert.Equal(t, "ZAP", recs[0].Name)
	assert.Equal(t, 0, recs[0].Position)
	assert.Equal(t, "juice-shop", recs[1].ObjectID)
	assert.Equal(t, 1, recs[1].Position)

	assert.Contains(t, recs[0].Body, "Web app scanner")
	assert.NotContains(t, recs[0].Body, "https://", "urls are not searchable text")
	assert.JSONEq(t, `{"idx_key": "zap", "idx_name": "ZAP", "idx_summary": "Web app scanner", "idx_url": "https://example.org/zap"}`, recs[0].Payload)
}

func TestParseDump_IndexFromFileName(t *testing.T) {
	indexName, recs, err := parseDump([]byte(chaptersDump), "dumps/chapters.json")
	require.NoError(t, err)
	assert.Equal(t, search.IndexChapters, indexName)
	require.Len(t, recs, 1)
	assert.Equal(t, "London", recs[0].Name)
}

func TestParseDump_Errors(t *testing.T) {
	_, _, err := parseDump([]byte(`{"hits": [`), "projects.json")
	assert.Error(t, err)

	_, _, err = parseDump([]byte(`{"hits": [{"key": "x"}]}`), "mentorship.json")
	assert.ErrorIs(t, err, search.ErrUnknownIndex)
}

func TestMatchesInclude(t *testing.T) {
	patterns := []string{"**/*.json"}
	assert.True(t, matchesInclude(patterns, "projects.json"))
	assert.True(t, matchesInclude(patterns, "2024/events.json"))
	assert.False(t, matchesInclude(patterns, "notes.md"))
	assert.False(t, matchesInclude([]string{"exports/*.json"}, "projects.json"))
}

func TestIndex_ImportsAndRemoves(t *testing.T) {
	idx, database, dir := setup(t, nil)
	writeFile(t, dir, "projects.json", projectsDump)
	writeFile(t, dir, "nested/chapters.json", chaptersDump)
	writeFile(t, dir, ".hidden/users.json", `{"hits": [{"login": "alice"}]}`)
	writeFile(t, dir, "README.md", "not a dump")

	var messages []string
	require.NoError(t, idx.Index(context.Background(), false, func(p Progress) {
		messages = append(messages, p.Message)
	}))

	count, err := database.SourceCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = database.RecordCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Contains(t, messages, "Importing projects.json")

	// Unchanged files are skipped on the next run.
	messages = nil
	require.NoError(t, idx.Index(context.Background(), false, func(p Progress) {
		messages = append(messages, p.Message)
	}))
	assert.Contains(t, messages, "Index is up to date")

	require.NoError(t, os.Remove(filepath.Join(dir, "projects.json")))
	require.NoError(t, idx.Index(context.Background(), false, nil))

	count, err = database.RecordCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndex_EmbedsRecords(t *testing.T) {
	emb := &fakeEmbedder{}
	idx, database, dir := setup(t, emb)
	writeFile(t, dir, "projects.json", projectsDump)

	require.NoError(t, idx.Index(context.Background(), false, nil))

	count, err := database.EmbeddingCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, emb.calls)

	// A second pass finds nothing to embed.
	require.NoError(t, idx.EmbedPending(context.Background(), nil))
	assert.Equal(t, 1, emb.calls)
}

func TestIndex_EmbedFailure(t *testing.T) {
	idx, _, dir := setup(t, &fakeEmbedder{err: errors.New("quota exceeded")})
	writeFile(t, dir, "projects.json", projectsDump)

	err := idx.Index(context.Background(), false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestIndex_FullReindex(t *testing.T) {
	idx, database, dir := setup(t, nil)
	writeFile(t, dir, "projects.json", projectsDump)
	require.NoError(t, idx.Index(context.Background(), false, nil))

	before, err := database.GetSource("projects.json")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, idx.Index(context.Background(), true, nil))

	after, err := database.GetSource("projects.json")
	require.NoError(t, err)
	assert.Greater(t, after.IndexedAt, before.IndexedAt)
}
