package utils

import (
	"fmt"
	"io"

	"github.com/inhies/go-bytesize"
	"github.com/pterm/pterm"
)

// FormatSize renders a byte count for humans, e.g. "1.50MB".
func FormatSize(n int64) string {
	return bytesize.New(float64(n)).String()
}

// Percent returns current/total as a percentage clamped to [0, 100].
func Percent(current, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(current) / float64(total) * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// ProgressBar shows transfer progress for a single file.
type ProgressBar struct {
	title   string
	total   int64
	current int64
	bar     *pterm.ProgressbarPrinter
}

// NewProgressBar starts a progress bar titled with the file name and its size.
// A nil writer selects the terminal; quiet suppresses rendering entirely.
func NewProgressBar(total int64, name string, w io.Writer, quiet bool) *ProgressBar {
	pb := &ProgressBar{
		title: fmt.Sprintf("%s (%s)", name, FormatSize(total)),
		total: total,
	}
	if quiet {
		return pb
	}

	printer := pterm.DefaultProgressbar.
		WithTitle(pb.title).
		WithRemoveWhenDone(false).
		WithShowCount(false)
	if w != nil {
		printer = printer.WithWriter(w)
	}
	if total > 0 {
		printer = printer.WithTotal(int(total))
	}

	started, err := printer.Start()
	if err == nil {
		pb.bar = started
	}
	return pb
}

// Update moves the bar to current bytes.
func (pb *ProgressBar) Update(current int64) {
	if current < pb.current {
		return
	}
	delta := current - pb.current
	pb.current = current
	if pb.bar != nil && delta > 0 {
		pb.bar.Add(int(delta))
		pb.bar.UpdateTitle(fmt.Sprintf("%s %s/%s", pb.title, FormatSize(current), FormatSize(pb.total)))
	}
}

// Current returns the last reported byte count.
func (pb *ProgressBar) Current() int64 {
	return pb.current
}

// Finish stops the bar and prints a success line.
func (pb *ProgressBar) Finish() {
	if pb.bar == nil {
		return
	}
	pb.bar.Stop()
	pterm.Success.Println(pb.title)
}

// Fail stops the bar and prints an error line.
func (pb *ProgressBar) Fail() {
	if pb.bar == nil {
		return
	}
	pb.bar.Stop()
	pterm.Error.Println(pb.title)
}
