package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	DefaultDebounceDelay = 300 * time.Millisecond
	DefaultPageSize      = 10
	DefaultPlaceholder   = "Search chapters, projects, people and events"
)

// Options is the configuration surface supplied by the embedding surface.
type Options struct {
	IndexNames    []string
	Placeholder   string
	DebounceDelay time.Duration
	PageSize      int
	// FetchTimeout bounds each index fetch. Zero means no bound.
	FetchTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		IndexNames:    append([]string(nil), DefaultIndexNames...),
		Placeholder:   DefaultPlaceholder,
		DebounceDelay: DefaultDebounceDelay,
		PageSize:      DefaultPageSize,
	}
}

func (o Options) withDefaults() Options {
	if len(o.IndexNames) == 0 {
		o.IndexNames = append([]string(nil), DefaultIndexNames...)
	}
	if o.Placeholder == "" {
		o.Placeholder = DefaultPlaceholder
	}
	if o.DebounceDelay < 0 {
		o.DebounceDelay = 0
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.FetchTimeout < 0 {
		o.FetchTimeout = 0
	}
	return o
}

// Engine is one search box: it debounces input, runs one generation per
// pause against every index and publishes the latest generation's
// suggestions to its Store.
//
// Observers subscribed to the store are called while the engine holds its
// own lock and must not call back into the engine synchronously.
type Engine struct {
	opts Options
	nav  Navigator
	tel  Telemetry
	log  *slog.Logger

	store      *Store
	tokens     *TokenManager
	debouncer  *Debouncer
	dispatcher *Dispatcher
	aggregator *Aggregator

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	text   string
	closed bool
}

func New(opts Options, fetcher Fetcher, nav Navigator, tel Telemetry, log *slog.Logger) *Engine {
	opts = opts.withDefaults()
	if tel == nil {
		tel = nopTelemetry{}
	}
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := NewStore()
	tokens := NewTokenManager(ctx)

	e := &Engine{
		opts:       opts,
		nav:        nav,
		tel:        tel,
		log:        log,
		store:      store,
		tokens:     tokens,
		dispatcher: NewDispatcher(fetcher, opts.IndexNames, opts.PageSize, opts.FetchTimeout, log),
		aggregator: NewAggregator(tokens, store, log),
		cancel:     cancel,
	}
	e.debouncer = NewDebouncer(opts.DebounceDelay, e.fire)
	return e
}

func (e *Engine) Placeholder() string {
	return e.opts.Placeholder
}

func (e *Engine) IndexNames() []string {
	return e.dispatcher.IndexNames()
}

func (e *Engine) Snapshot() Snapshot {
	return e.store.Snapshot()
}

// Subscribe registers fn for every state change. See Store.Subscribe.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	return e.store.Subscribe(fn)
}

// SetText records new input. Empty input clears the suggestions and
// cancels any pending or running generation right away; anything else
// restarts the debounce timer.
func (e *Engine) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.text = text
	if text == "" {
		e.debouncer.Cancel()
		e.tokens.CancelActive()
		e.store.reset(text)
		return
	}

	e.store.setText(text, PhasePending)
	e.debouncer.Schedule(text)
}

// Focus marks the box focused. Non-blank text left over from before a blur
// is searched again after the usual delay.
func (e *Engine) Focus() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.store.setFocused(true)
	if strings.TrimSpace(e.text) != "" {
		e.store.setText(e.text, PhasePending)
		e.debouncer.Schedule(e.text)
	}
}

// Blur drops pending work and the suggestions. The text is kept.
func (e *Engine) Blur() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.debouncer.Cancel()
	e.tokens.CancelActive()
	e.store.setFocused(false)
	e.store.clear()
}

// Hide hides the suggestions without touching the text or any running
// generation.
func (e *Engine) Hide() {
	e.store.hide()
}

// MoveHighlight moves the keyboard highlight by delta rows.
func (e *Engine) MoveHighlight(delta int) *Highlight {
	return e.store.moveHighlight(delta)
}

// SelectHighlighted selects the highlighted row, or the first row when
// nothing is highlighted. It is a no-op while suggestions are hidden.
func (e *Engine) SelectHighlighted() (Action, error) {
	snap := e.store.Snapshot()
	if !snap.Visible || snap.Suggestions.Empty() {
		return Action{}, nil
	}

	h := Highlight{}
	if snap.Highlight != nil {
		h = *snap.Highlight
	}
	hit, indexName, ok := snap.Suggestions.At(h)
	if !ok {
		return Action{}, nil
	}
	return e.Select(hit, indexName)
}

// Select dispatches the navigation action for hit and hides the
// suggestions. An index without a route is logged and hidden. A hit that
// lacks its routing field is ignored and the suggestions stay visible.
func (e *Engine) Select(hit Hit, indexName string) (Action, error) {
	if e.Snapshot().Phase == PhaseDisposed {
		return Action{}, nil
	}

	action, err := Resolve(hit, indexName)
	switch {
	case errors.Is(err, ErrNoRoute):
		e.log.Warn("no route for selection", "index", indexName)
		e.store.hide()
		return Action{}, nil
	case errors.Is(err, ErrMissingField):
		e.log.Debug("ignoring selection", "index", indexName, "error", err)
		return Action{}, nil
	case err != nil:
		return Action{}, err
	}

	err = action.Perform(e.nav)
	e.store.hide()
	if err != nil {
		return action, fmt.Errorf("%s %s: %w", action.Kind, action.Target, err)
	}
	e.log.Debug("selection dispatched", "index", indexName, "action", action.Kind.String(), "target", action.Target)
	return action, nil
}

// Close stops the timer, cancels the running generation and waits for its
// goroutines to return. The store accepts no writes afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.debouncer.Stop()
	e.tokens.CancelActive()
	e.store.dispose()
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}

// fire runs on the debounce timer's goroutine and carries the generation
// through to aggregation.
func (e *Engine) fire(text string) {
	e.mu.Lock()
	if e.closed || text != e.text {
		e.mu.Unlock()
		return
	}

	q := NormalizeQuery(text)
	if q == "" {
		e.tokens.CancelActive()
		e.store.clear()
		e.mu.Unlock()
		return
	}

	token := e.tokens.BeginGeneration()
	e.store.setPhase(PhaseFetching)
	batch := e.dispatcher.Dispatch(token, q)
	e.wg.Add(1)
	e.mu.Unlock()
	defer e.wg.Done()

	e.tel.QueryFired(Query{Text: q, Generation: token.Generation()})
	e.aggregator.Aggregate(batch)
}
