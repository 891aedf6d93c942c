package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/mgomes/nestfind/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryFired(t *testing.T) {
	var buf bytes.Buffer
	r := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	_, err := uuid.Parse(r.Session())
	require.NoError(t, err)

	r.QueryFired(search.Query{Text: "zap", Generation: 3})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "query fired", rec["msg"])
	assert.Equal(t, "zap", rec["text"])
	assert.EqualValues(t, 3, rec["generation"])
	assert.Equal(t, r.Session(), rec["session"])
}

func TestSessionPerRecorder(t *testing.T) {
	assert.NotEqual(t, New(nil).Session(), New(nil).Session())
}
