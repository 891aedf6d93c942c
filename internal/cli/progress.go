package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/mgomes/nestfind/internal/indexer"
	"github.com/schollz/progressbar/v3"
)

// progressReporter renders indexer progress. Counted steps get a bar,
// everything else is printed as a line.
type progressReporter struct {
	out   io.Writer
	bar   *progressbar.ProgressBar
	phase string
	total int
}

func newProgressReporter(out io.Writer) *progressReporter {
	return &progressReporter{out: out}
}

func (r *progressReporter) report(p indexer.Progress) {
	if p.Total == 0 {
		r.finish()
		fmt.Fprintln(r.out, p.Message)
		return
	}

	phase := "Importing"
	if p.FilePath == "" {
		phase = "Embedding"
	}
	if r.bar == nil || phase != r.phase || p.Total != r.total {
		r.finish()
		r.phase = phase
		r.total = p.Total
		r.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription(phase),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(r.out)
			}),
		)
	}

	r.bar.Describe(p.Message)
	_ = r.bar.Set(p.Current)
}

func (r *progressReporter) finish() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	r.bar = nil
}
