package search

// Telemetry receives one call per debounce firing. Implementations must not
// block.
type Telemetry interface {
	QueryFired(q Query)
}

type nopTelemetry struct{}

func (nopTelemetry) QueryFired(Query) {}
