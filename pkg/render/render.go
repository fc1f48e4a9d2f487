// Package render turns the engine's structured results into console output:
// colored inline diffs, scan reports, progress and run summaries. The engine
// itself never styles anything.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ewtools/ewsub/pkg/engine"
	"github.com/ewtools/ewsub/pkg/text"
)

// DefaultProgressStep is how many processed cells pass between progress
// updates unless configured otherwise.
const DefaultProgressStep = 20

// Options configures a Printer.
type Options struct {
	// NoColor renders marked spans without ANSI colors.
	NoColor bool

	// ProgressStep overrides DefaultProgressStep when positive.
	ProgressStep int
}

// Printer renders engine output to one console writer.
type Printer struct {
	console  io.Writer
	removed  *color.Color
	inserted *color.Color
	step     int

	progressShown bool
}

// NewPrinter creates a Printer writing to console.
func NewPrinter(console io.Writer, opts Options) *Printer {
	removed := color.New(color.FgRed)
	inserted := color.New(color.FgGreen)
	if opts.NoColor {
		removed.DisableColor()
		inserted.DisableColor()
	} else {
		removed.EnableColor()
		inserted.EnableColor()
	}

	step := opts.ProgressStep
	if step <= 0 {
		step = DefaultProgressStep
	}

	return &Printer{
		console:  console,
		removed:  removed,
		inserted: inserted,
		step:     step,
	}
}

// renderSpans styles the marked spans of one rendered string.
func renderSpans(spans []text.Span, marked *color.Color) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Marked {
			b.WriteString(marked.Sprint(s.Text))
		} else {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Diff prints one previewed cell change as a removed/inserted line pair.
func (p *Printer) Diff(d engine.Diff) {
	fmt.Fprintf(p.console, "%s.%s rowid %d:\n", d.Table, d.Column, d.RowID)
	fmt.Fprintf(p.console, "%s %s\n", p.removed.Sprint("-"), renderSpans(d.Rendering.Original, p.removed))
	fmt.Fprintf(p.console, "%s %s\n\n", p.inserted.Sprint("+"), renderSpans(d.Rendering.New, p.inserted))
}

// ScanReport prints which tables and columns contain matches.
func (p *Printer) ScanReport(report *engine.MatchReport) {
	if report.Empty() {
		fmt.Fprintln(p.console, "Nothing to do here")
		return
	}

	fmt.Fprintf(p.console, "Found %d occurrences in %d tables:\n", report.Total, len(report.Columns))
	for _, table := range report.Tables() {
		columns := report.Columns[table]
		fmt.Fprintf(p.console, "\t%s (%d columns where string occurs: %s)\n",
			table, len(columns), strings.Join(columns, ", "))
	}
}

// Progress prints a throttled in-place percentage. It writes on the first
// cell, every step cells after that, and always at completion.
func (p *Printer) Progress(processed, total int) {
	if total <= 0 {
		return
	}
	if processed != total && processed != 1 && processed%p.step != 0 {
		return
	}
	p.progressShown = true
	fmt.Fprintf(p.console, "\r%3.0f%% (%d/%d)", float64(processed)/float64(total)*100, processed, total)
	if processed == total {
		fmt.Fprintln(p.console)
		p.progressShown = false
	}
}

// Summary prints what the run did.
func (p *Printer) Summary(summary *engine.Summary, report *engine.MatchReport) {
	if p.progressShown {
		fmt.Fprintln(p.console)
		p.progressShown = false
	}

	verb := "replaced"
	if summary.DryRun {
		verb = "showed difference of"
	}
	fmt.Fprintf(p.console, "%s %d items in %d tables:\n", verb, summary.Replaced, summary.Tables)
	for _, table := range report.Tables() {
		fmt.Fprintf(p.console, "\t%s (columns: %s)\n", table, strings.Join(report.Columns[table], ", "))
	}
}
