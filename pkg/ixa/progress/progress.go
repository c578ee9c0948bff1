// Package progress draws a single-line, carriage-return-redrawn progress
// bar scaled to a simulation's final virtual time. It is silent when its
// output is an *os.File that isn't a terminal, so redirecting a run's
// stderr to a file or pipe never mixes bar redraws into it; any other
// io.Writer receives the bar.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const barWidth = 30

// Bar redraws a fixed-width progress bar on every Advance call, scaled by
// the max virtual time supplied at construction.
type Bar struct {
	w       io.Writer
	max     float64
	enabled bool
	last    int // last drawn percentage, -1 before the first draw
}

// New builds a Bar writing to w, scaled so Advance(max) draws a full bar.
// If w is an *os.File and not a terminal, the bar draws nothing at all —
// the idiomatic way to avoid corrupting redirected output.
func New(w io.Writer, max float64) *Bar {
	enabled := max > 0
	if f, ok := w.(*os.File); ok && enabled {
		enabled = isatty.IsTerminal(f.Fd())
	}
	return &Bar{w: w, max: max, enabled: enabled, last: -1}
}

// Advance redraws the bar for the given virtual time, a no-op if the bar
// is disabled or the percentage hasn't changed since the last draw.
func (b *Bar) Advance(now float64) {
	if !b.enabled {
		return
	}
	pct := int(now / b.max * 100)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	if pct == b.last {
		return
	}
	b.last = pct

	filled := pct * barWidth / 100
	bar := make([]byte, barWidth)
	for i := range bar {
		if i < filled {
			bar[i] = '='
		} else {
			bar[i] = ' '
		}
	}
	fmt.Fprintf(b.w, "\r[%s] %3d%% (t=%.2f)", bar, pct, now)
}

// Finish writes a trailing newline so subsequent output doesn't share the
// bar's line. A no-op if the bar never drew anything.
func (b *Bar) Finish() {
	if !b.enabled || b.last < 0 {
		return
	}
	fmt.Fprintln(b.w)
}
