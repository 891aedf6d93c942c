package search

import (
	"sync"
)

// Phase is where the search box is in its lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseFetching
	PhaseShowing
	PhaseDisposed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseFetching:
		return "fetching"
	case PhaseShowing:
		return "showing"
	case PhaseDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the store. Version increases with every
// write, so observers can drop snapshots that arrive out of order.
type Snapshot struct {
	Version     uint64
	Text        string
	Focused     bool
	Visible     bool
	Phase       Phase
	Suggestions SuggestionSet
	Highlight   *Highlight
}

// Store holds the input and selection state. Every write goes through one
// of its methods under mu; observers are notified after mu is released.
type Store struct {
	mu        sync.Mutex
	snap      Snapshot
	observers map[int]func(Snapshot)
	nextID    int
}

func NewStore() *Store {
	return &Store{observers: make(map[int]func(Snapshot))}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn for every later write and returns a function that
// removes it. fn runs on the writer's goroutine and must not block.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// update applies fn under the lock. fn returns false to leave the store
// untouched. Disposed stores accept no writes.
func (s *Store) update(fn func(*Snapshot) bool) bool {
	s.mu.Lock()
	if s.snap.Phase == PhaseDisposed || !fn(&s.snap) {
		s.mu.Unlock()
		return false
	}
	s.snap.Version++
	snap := s.snap
	observers := make([]func(Snapshot), 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
	return true
}

func (s *Store) setText(text string, phase Phase) {
	s.update(func(snap *Snapshot) bool {
		snap.Text = text
		if phase != snap.Phase && !(phase == PhasePending && snap.Phase == PhaseFetching) {
			snap.Phase = phase
		}
		return true
	})
}

func (s *Store) setPhase(phase Phase) {
	s.update(func(snap *Snapshot) bool {
		if snap.Phase == phase {
			return false
		}
		snap.Phase = phase
		return true
	})
}

func (s *Store) setFocused(focused bool) {
	s.update(func(snap *Snapshot) bool {
		if snap.Focused == focused {
			return false
		}
		snap.Focused = focused
		return true
	})
}

// commit replaces the suggestions if active still holds once the lock is
// taken. This is the only path that publishes fetched results.
func (s *Store) commit(active func() bool, set SuggestionSet) bool {
	return s.update(func(snap *Snapshot) bool {
		if !active() {
			return false
		}
		snap.Suggestions = set
		snap.Visible = true
		snap.Highlight = nil
		snap.Phase = PhaseShowing
		return true
	})
}

// clear drops the suggestions and hides them.
func (s *Store) clear() {
	s.update(func(snap *Snapshot) bool {
		clearSuggestions(snap)
		return true
	})
}

// reset replaces the text and clears in one write.
func (s *Store) reset(text string) {
	s.update(func(snap *Snapshot) bool {
		snap.Text = text
		clearSuggestions(snap)
		return true
	})
}

func clearSuggestions(snap *Snapshot) {
	snap.Suggestions = SuggestionSet{}
	snap.Visible = false
	snap.Highlight = nil
	snap.Phase = PhaseIdle
}

func (s *Store) hide() {
	s.update(func(snap *Snapshot) bool {
		if !snap.Visible {
			return false
		}
		snap.Visible = false
		snap.Highlight = nil
		return true
	})
}

// moveHighlight steps through the rows of all results, wrapping at both
// ends. It returns the new coordinate, if any.
func (s *Store) moveHighlight(delta int) *Highlight {
	var moved *Highlight
	s.update(func(snap *Snapshot) bool {
		total := snap.Suggestions.HitCount()
		if !snap.Visible || total == 0 || delta == 0 {
			return false
		}

		pos := -1
		if snap.Highlight != nil {
			pos = flatIndex(snap.Suggestions, *snap.Highlight)
		}
		switch {
		case pos < 0 && delta > 0:
			pos = delta - 1
		case pos < 0:
			pos = total + delta
		default:
			pos += delta
		}
		pos = ((pos % total) + total) % total

		h := coordinate(snap.Suggestions, pos)
		snap.Highlight = &h
		moved = &h
		return true
	})
	return moved
}

func (s *Store) dispose() {
	s.update(func(snap *Snapshot) bool {
		snap.Phase = PhaseDisposed
		snap.Visible = false
		snap.Highlight = nil
		return true
	})
}

func flatIndex(set SuggestionSet, h Highlight) int {
	pos := 0
	for i, r := range set.Results {
		if i == h.Result {
			if h.Hit < 0 || h.Hit >= len(r.Hits) {
				return -1
			}
			return pos + h.Hit
		}
		pos += len(r.Hits)
	}
	return -1
}

func coordinate(set SuggestionSet, pos int) Highlight {
	for i, r := range set.Results {
		if pos < len(r.Hits) {
			return Highlight{Result: i, Hit: pos}
		}
		pos -= len(r.Hits)
	}
	return Highlight{}
}
