package indexer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mgomes/nestfind/internal/db"
	"github.com/mgomes/nestfind/internal/search"
	"github.com/spf13/cast"
)

// dump is the on-disk export of one index: {"index": "projects", "hits": [...]}.
type dump struct {
	Index string            `json:"index"`
	Hits  []json.RawMessage `json:"hits"`
}

// parseDump turns a dump file into records. The index name falls back to
// the file's base name. Hits that are not objects or carry no identifier
// are skipped.
func parseDump(data []byte, relPath string) (string, []db.Record, error) {
	var d dump
	if err := json.Unmarshal(data, &d); err != nil {
		return "", nil, fmt.Errorf("decode dump: %w", err)
	}

	indexName := strings.TrimSpace(d.Index)
	if indexName == "" {
		base := filepath.Base(relPath)
		indexName = strings.TrimSuffix(base, filepath.Ext(base))
	}

	recs := make([]db.Record, 0, len(d.Hits))
	for _, raw := range d.Hits {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}

		hit, err := search.DecodeHit(indexName, fields)
		if err != nil {
			return "", nil, err
		}
		objectID := hit.ID()
		if objectID == "" {
			objectID = hit.Link()
		}
		if objectID == "" {
			continue
		}

		recs = append(recs, db.Record{
			IndexName: indexName,
			ObjectID:  objectID,
			Name:      hit.DisplayName(),
			Body:      recordBody(fields),
			Payload:   string(raw),
			Position:  len(recs),
		})
	}

	return indexName, recs, nil
}

// recordBody joins the scalar string values of a hit in key order, which
// is what keyword and semantic search match against.
func recordBody(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		if strings.HasSuffix(k, "url") {
			continue
		}
		s, err := cast.ToStringE(fields[k])
		if err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
