// Package progressbar implements functionality of printing a progress
// bar to a terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ManualProgressBar implements a progress bar that must be manually
// managed. The bar is redrawn on its writer each time Increment() is
// called. ManualProgressBar does not use concurrency.
type ManualProgressBar struct {
	out             io.Writer
	width           int
	maxProgress     int
	currentProgress int
	startTime       time.Time
	suffix          string
}

// NewManualProgressBar returns a new ManualProgressBar which is width
// characters wide and reaches 100% after max calls to Increment()
func NewManualProgressBar(out io.Writer, width, max int) *ManualProgressBar {
	return &ManualProgressBar{
		out:         out,
		width:       width,
		maxProgress: max,
		startTime:   time.Now(),
	}
}

// SetSuffix sets text displayed after the bar, such as the most recent
// average reward
func (p *ManualProgressBar) SetSuffix(suffix string) {
	p.suffix = suffix
}

// Increment increments the internal progress counter and redraws the
// bar. Each time an iteration is performed, Increment should be called.
func (p *ManualProgressBar) Increment() {
	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
	p.Display()
}

// Display draws the progress bar
func (p *ManualProgressBar) Display() {
	fmt.Fprintf(p.out, "\r\033[K%v", p.String())
}

// Close finishes the progress bar line
func (p *ManualProgressBar) Close() {
	fmt.Fprintln(p.out)
}

// String returns the progress bar as a string
func (p *ManualProgressBar) String() string {
	fraction := 1.0
	if p.maxProgress > 0 {
		fraction = float64(p.currentProgress) / float64(p.maxProgress)
	}
	filled := int(fraction * float64(p.width))

	var bar strings.Builder
	bar.WriteString("|")
	bar.WriteString(strings.Repeat("█", filled))
	bar.WriteString(strings.Repeat(" ", p.width-filled))
	fmt.Fprintf(&bar, "| %v/%v [%.2f%% | elapsed: %v]", p.currentProgress,
		p.maxProgress, fraction*100,
		time.Since(p.startTime).Truncate(time.Second))

	if p.suffix != "" {
		bar.WriteString(" " + p.suffix)
	}
	return bar.String()
}
