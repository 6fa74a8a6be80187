package internal

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Progress receives per-file updates from an organise run. Implementations
// must be safe for concurrent use.
type Progress interface {
	SetTotal(n int)
	Inc()
	Done()
}

// Counter is a Progress that only counts.
type Counter struct {
	total atomic.Int64
	done  atomic.Int64
}

func (c *Counter) SetTotal(n int) { c.total.Store(int64(n)) }
func (c *Counter) Inc()           { c.done.Add(1) }
func (c *Counter) Done()          {}

func (c *Counter) Total() int { return int(c.total.Load()) }
func (c *Counter) Count() int { return int(c.done.Load()) }

// BarProgress draws a terminal progress bar.
type BarProgress struct {
	bar *progressbar.ProgressBar
}

// NewBarProgress writes a bar titled description to w.
func NewBarProgress(w io.Writer, description string) *BarProgress {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &BarProgress{bar: bar}
}

func (p *BarProgress) SetTotal(n int) { p.bar.ChangeMax(n) }
func (p *BarProgress) Inc()           { _ = p.bar.Add(1) }
func (p *BarProgress) Done()          { _ = p.bar.Finish() }

type nopProgress struct{}

func (nopProgress) SetTotal(int) {}
func (nopProgress) Inc()         {}
func (nopProgress) Done()        {}
