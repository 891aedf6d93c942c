package search

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDelay = 20 * time.Millisecond

func newTestEngine(t *testing.T, f Fetcher) (*Engine, *recordingNavigator, *recordingTelemetry) {
	t.Helper()
	nav := &recordingNavigator{}
	tel := &recordingTelemetry{}
	opts := DefaultOptions()
	opts.DebounceDelay = testDelay
	e := New(opts, f, nav, tel, nil)
	t.Cleanup(func() { _ = e.Close() })
	return e, nav, tel
}

func waitPhase(t *testing.T, e *Engine, phase Phase) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return e.Snapshot().Phase == phase }, 2*time.Second, 2*time.Millisecond)
	return e.Snapshot()
}

func TestEngine_OneGenerationPerPause(t *testing.T) {
	f := newFakeFetcher(sampleHits())
	e, _, tel := newTestEngine(t, f)

	for _, s := range []string{"z", "za", "zap"} {
		e.SetText(s)
	}
	assert.Equal(t, PhasePending, e.Snapshot().Phase)
	assert.Empty(t, f.recorded(), "no fetch before the delay elapses")

	waitPhase(t, e, PhaseShowing)
	time.Sleep(3 * testDelay)

	assert.Equal(t, []string{"zap", "zap", "zap", "zap", "zap"}, f.queries())
	fired := tel.fired()
	require.Len(t, fired, 1)
	assert.Equal(t, "zap", fired[0].Text)
	assert.Equal(t, uint64(1), fired[0].Generation)
}

func TestEngine_ShowsNonEmptyIndexesInOrder(t *testing.T) {
	e, _, _ := newTestEngine(t, newFakeFetcher(sampleHits()))

	e.SetText("zap")
	snap := waitPhase(t, e, PhaseShowing)

	assert.True(t, snap.Visible)
	assert.Equal(t, "zap", snap.Text)
	var names []string
	for _, r := range snap.Suggestions.Results {
		names = append(names, r.IndexName)
	}
	assert.Equal(t, []string{IndexChapters, IndexProjects, IndexUsers, IndexEvents}, names)
	assert.Equal(t, []Hit{
		ProjectHit{Key: "zap", Name: "ZAP"},
		ProjectHit{Key: "juice-shop", Name: "Juice Shop"},
	}, snap.Suggestions.Results[1].Hits)
}

func TestEngine_FailingIndexDoesNotHideOthers(t *testing.T) {
	f := newFakeFetcher(sampleHits())
	f.fail(IndexChapters)
	f.fail(IndexUsers)
	e, _, _ := newTestEngine(t, f)

	e.SetText("zap")
	snap := waitPhase(t, e, PhaseShowing)

	require.Len(t, snap.Suggestions.Results, 2)
	assert.Equal(t, IndexProjects, snap.Suggestions.Results[0].IndexName)
	assert.Equal(t, IndexEvents, snap.Suggestions.Results[1].IndexName)
}

func TestEngine_StaleGenerationNeverWrites(t *testing.T) {
	f := newFakeFetcher(sampleHits())
	releaseG1 := f.blockQuery("zap")
	e, _, _ := newTestEngine(t, f)

	e.SetText("zap")
	require.Eventually(t, func() bool { return len(f.recorded()) == len(DefaultIndexNames) }, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, PhaseFetching, e.Snapshot().Phase)

	e.SetText("zaproxy")
	waitPhase(t, e, PhaseShowing)
	settled := e.Snapshot()
	assert.Equal(t, "zaproxy", settled.Text)

	for _, c := range f.recorded() {
		if c.req.Query == "zap" {
			assert.Error(t, c.ctx.Err(), "superseded generation must be canceled")
		}
	}

	close(releaseG1)
	time.Sleep(5 * testDelay)
	assert.Equal(t, settled, e.Snapshot())
}

func TestEngine_ClearIsSynchronous(t *testing.T) {
	f := newFakeFetcher(sampleHits())
	release := f.blockQuery("zap")
	e, _, tel := newTestEngine(t, f)

	e.SetText("zap")
	waitPhase(t, e, PhaseFetching)

	e.SetText("")
	snap := e.Snapshot()
	assert.False(t, snap.Visible)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Text)
	assert.True(t, snap.Suggestions.Empty())

	close(release)
	time.Sleep(5 * testDelay)
	assert.Equal(t, snap.Version, e.Snapshot().Version)
	assert.Len(t, tel.fired(), 1)
}

func TestEngine_ClearCancelsPendingDebounce(t *testing.T) {
	f := newFakeFetcher(sampleHits())
	e, _, tel := newTestEngine(t, f)

	e.SetText("zap")
	e.SetText("")
	time.Sleep(5 * testDelay)

	assert.Empty(t, f.recorded())
	assert.Empty(t, tel.fired())
	assert.Equal(t, PhaseIdle, e.Snapshot().Phase)
}

func TestEngine_WhitespaceClearsWithoutQuery(t *testing.T) {
	f := newFakeFetcher(sampleHits())
	e, _, _ := newTestEngine(t, f)

	e.SetText("zap")
	waitPhase(t, e, PhaseShowing)

	e.SetText("   ")
	snap := waitPhase(t, e, PhaseIdle)

	assert.False(t, snap.Visible)
	assert.Equal(t, "   ", snap.Text)
	assert.Len(t, f.recorded(), len(DefaultIndexNames))
}

func TestEngine_CloseWhileInFlight(t *testing.T) {
	f := newFakeFetcher(sampleHits())
	release := f.blockQuery("zap")
	t.Cleanup(func() { close(release) })
	e, _, _ := newTestEngine(t, f)

	var writes atomic.Int32
	e.Subscribe(func(Snapshot) { writes.Add(1) })

	e.SetText("zap")
	waitPhase(t, e, PhaseFetching)

	require.NoError(t, e.Close())
	after := writes.Load()
	assert.Equal(t, PhaseDisposed, e.Snapshot().Phase)

	for _, c := range f.recorded() {
		assert.Error(t, c.ctx.Err())
	}

	e.SetText("owasp")
	e.MoveHighlight(1)
	e.Focus()
	e.Blur()
	time.Sleep(5 * testDelay)

	assert.Equal(t, after, writes.Load())
	assert.Equal(t, PhaseDisposed, e.Snapshot().Phase)
	assert.NoError(t, e.Close())
}

func TestEngine_BlurAndFocus(t *testing.T) {
	f := newFakeFetcher(sampleHits())
	e, _, _ := newTestEngine(t, f)

	e.Focus()
	e.SetText("zap")
	waitPhase(t, e, PhaseShowing)

	e.Blur()
	snap := e.Snapshot()
	assert.False(t, snap.Focused)
	assert.False(t, snap.Visible)
	assert.Equal(t, "zap", snap.Text)

	e.Focus()
	snap = waitPhase(t, e, PhaseShowing)
	assert.True(t, snap.Focused)
	assert.True(t, snap.Visible)
}

func TestEngine_SelectRoutes(t *testing.T) {
	e, nav, _ := newTestEngine(t, newFakeFetcher(sampleHits()))

	e.SetText("zap")
	waitPhase(t, e, PhaseShowing)

	action, err := e.Select(ProjectHit{Key: "zap", Name: "ZAP"}, IndexProjects)
	require.NoError(t, err)
	assert.Equal(t, Action{Kind: ActionNavigate, Target: "/projects/zap"}, action)
	assert.Equal(t, []string{"/projects/zap"}, nav.paths)

	snap := e.Snapshot()
	assert.False(t, snap.Visible)
	assert.Equal(t, "zap", snap.Text, "selection keeps the text")

	_, err = e.Select(EventHit{Key: "appsec-eu", Name: "AppSec EU", URL: "https://example.org/appsec-eu"}, IndexEvents)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.org/appsec-eu"}, nav.external)
}

func TestEngine_SelectMissingFieldIsIgnored(t *testing.T) {
	e, nav, _ := newTestEngine(t, newFakeFetcher(sampleHits()))

	e.SetText("alice")
	waitPhase(t, e, PhaseShowing)
	before := e.Snapshot()

	action, err := e.Select(UserHit{Name: "No Login"}, IndexUsers)
	require.NoError(t, err)
	assert.Equal(t, Action{}, action)
	assert.Empty(t, nav.paths)
	assert.Empty(t, nav.external)
	assert.Equal(t, before, e.Snapshot())
}

func TestEngine_SelectUnknownIndexHides(t *testing.T) {
	e, nav, _ := newTestEngine(t, newFakeFetcher(sampleHits()))

	e.SetText("zap")
	waitPhase(t, e, PhaseShowing)

	_, err := e.Select(ProjectHit{Key: "zap"}, "mentorship")
	require.NoError(t, err)
	assert.False(t, e.Snapshot().Visible)
	assert.Empty(t, nav.paths)
}

func TestEngine_KeyboardSelection(t *testing.T) {
	e, nav, _ := newTestEngine(t, newFakeFetcher(sampleHits()))

	e.SetText("zap")
	waitPhase(t, e, PhaseShowing)

	// chapters(1) projects(2) users(1) events(1): the third row is juice-shop.
	e.MoveHighlight(1)
	e.MoveHighlight(1)
	h := e.MoveHighlight(1)
	require.NotNil(t, h)
	assert.Equal(t, Highlight{Result: 1, Hit: 1}, *h)

	_, err := e.SelectHighlighted()
	require.NoError(t, err)
	assert.Equal(t, []string{"/projects/juice-shop"}, nav.paths)
}

func TestEngine_Defaults(t *testing.T) {
	e := New(Options{}, newFakeFetcher(nil), &recordingNavigator{}, nil, nil)
	defer e.Close()

	assert.Equal(t, DefaultPlaceholder, e.Placeholder())
	assert.Equal(t, DefaultIndexNames, e.IndexNames())
}
