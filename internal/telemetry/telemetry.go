package telemetry

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/mgomes/nestfind/internal/search"
)

// Recorder writes one log record per fired query, tagged with a session id
// that is fixed for the life of the process.
type Recorder struct {
	session string
	log     *slog.Logger
}

func New(log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{session: uuid.NewString(), log: log}
}

func (r *Recorder) Session() string {
	return r.session
}

func (r *Recorder) QueryFired(q search.Query) {
	r.log.Info("query fired",
		"text", q.Text,
		"generation", q.Generation,
		"session", r.session,
	)
}
