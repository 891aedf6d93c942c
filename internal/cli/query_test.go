package cli

import (
	"bytes"
	"testing"

	"github.com/mgomes/nestfind/internal/indexer"
	"github.com/mgomes/nestfind/internal/search"
	"github.com/stretchr/testify/assert"
)

func TestPrintSuggestions(t *testing.T) {
	var buf bytes.Buffer
	printSuggestions(&buf, search.SuggestionSet{Results: []search.IndexResult{
		{IndexName: search.IndexProjects, Hits: []search.Hit{
			search.ProjectHit{Key: "zap", Name: "ZAP"},
		}},
		{IndexName: search.IndexEvents, Hits: []search.Hit{
			search.EventHit{Key: "appsec", Name: "Global AppSec", URL: "https://events.example.org/appsec"},
			search.EventHit{Key: "tbd", Name: "TBD"},
		}},
	}})

	out := buf.String()
	assert.Contains(t, out, "Projects\n")
	assert.Regexp(t, `ZAP\s+/projects/zap`, out)
	assert.Contains(t, out, "Events\n")
	assert.Regexp(t, `Global AppSec\s+https://events.example.org/appsec`, out)
	assert.Regexp(t, `TBD\s+-`, out)
}

func TestPrintSuggestions_Empty(t *testing.T) {
	var buf bytes.Buffer
	printSuggestions(&buf, search.SuggestionSet{})
	assert.Equal(t, "No matches\n", buf.String())
}

func TestProgressReporter(t *testing.T) {
	var buf bytes.Buffer
	r := newProgressReporter(&buf)

	r.report(indexer.Progress{Current: 1, Total: 2, FilePath: "projects.json", Message: "Importing projects.json"})
	r.report(indexer.Progress{Current: 2, Total: 2, FilePath: "events.json", Message: "Importing events.json"})
	assert.NotNil(t, r.bar)

	r.report(indexer.Progress{Message: "Index is up to date"})
	assert.Nil(t, r.bar)
	assert.Contains(t, buf.String(), "Index is up to date\n")
	r.finish()
}
