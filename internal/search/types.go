package search

// Query is one debounced search attempt.
type Query struct {
	Text       string
	Generation uint64
}

// IndexResult is the response of one index for one generation. Hits keep
// the order the index returned them in.
type IndexResult struct {
	IndexName  string
	Hits       []Hit
	TotalPages int
}

// SuggestionSet is what the search box renders. It only ever holds results
// with at least one hit and is replaced wholesale, never edited in place.
type SuggestionSet struct {
	Results []IndexResult
}

func (s SuggestionSet) Empty() bool {
	return len(s.Results) == 0
}

// HitCount is the number of rows across all results.
func (s SuggestionSet) HitCount() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Hits)
	}
	return n
}

// At returns the hit under a highlight coordinate.
func (s SuggestionSet) At(h Highlight) (Hit, string, bool) {
	if h.Result < 0 || h.Result >= len(s.Results) {
		return nil, "", false
	}
	r := s.Results[h.Result]
	if h.Hit < 0 || h.Hit >= len(r.Hits) {
		return nil, "", false
	}
	return r.Hits[h.Hit], r.IndexName, true
}

// Highlight addresses one suggestion row for keyboard navigation.
type Highlight struct {
	Result int
	Hit    int
}

// collect keeps non-empty results in dispatch order.
func collect(results []IndexResult) SuggestionSet {
	set := SuggestionSet{Results: make([]IndexResult, 0, len(results))}
	for _, r := range results {
		if len(r.Hits) == 0 {
			continue
		}
		set.Results = append(set.Results, r)
	}
	return set
}
