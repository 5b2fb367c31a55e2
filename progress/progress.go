// Package progress renders pipeline progress.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 10

// Reporter receives a 1-based step index, the total number of steps and a
// short label before each pipeline transition.
type Reporter interface {
	Step(step, total int, label string)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(step, total int, label string)

func (f ReporterFunc) Step(step, total int, label string) { f(step, total, label) }

// Nop discards progress.
type Nop struct{}

func (Nop) Step(int, int, string) {}

// Multi fans progress out to several reporters.
type Multi []Reporter

func (m Multi) Step(step, total int, label string) {
	for _, r := range m {
		if r != nil {
			r.Step(step, total, label)
		}
	}
}

// Bar prints a plain text progress line per step:
//
//	[02/4] [#####.....] Building Docker image...
type Bar struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBar returns a Bar writing to w.
func NewBar(w io.Writer) *Bar {
	return &Bar{w: w}
}

func (b *Bar) Step(step, total int, label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.w, "[%02d/%d] [%s] %s\n", step, total, Render(step, total), label)
}

// Render returns the bar body for step out of total.
func Render(step, total int) string {
	filled := 0
	if total > 0 {
		filled = (step*barWidth + total/2) / total
	}
	filled = max(0, min(filled, barWidth))
	return strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
}
