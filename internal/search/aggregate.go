package search

import "log/slog"

// Aggregator settles a generation's batch and publishes it to the store
// when, and only when, the generation is still the active one.
type Aggregator struct {
	tokens *TokenManager
	store  *Store
	log    *slog.Logger
}

func NewAggregator(tokens *TokenManager, store *Store, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{tokens: tokens, store: store, log: log}
}

// Aggregate blocks until every fetch in batch has settled. It reports
// whether the results were published.
func (a *Aggregator) Aggregate(batch *Batch) bool {
	results := batch.Wait()
	token := batch.Token

	set := collect(results)
	applied := a.store.commit(func() bool { return a.tokens.IsActive(token) }, set)
	if !applied {
		a.log.Debug("discarding stale results", "generation", token.Generation(), "query", batch.Query)
		return false
	}

	a.log.Debug("results published",
		"generation", token.Generation(),
		"query", batch.Query,
		"indexes", len(set.Results),
		"hits", set.HitCount(),
	)
	return true
}
