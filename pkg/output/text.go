package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Markers framing the event listing in text output. Downstream
// tooling greps for these, so they are part of the format contract.
const (
	eventsStartMarker = "=== CAPTURED DATALAYER EVENTS ==="
	eventsEndMarker   = "=== END OF CAPTURED EVENTS ==="
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	fmt.Fprintf(w, "Total events captured: %d\n", report.Summary.TotalEvents)
	return nil
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, eventsStartMarker)
	fmt.Fprintln(w)

	if !report.HasEvents() {
		fmt.Fprintln(w, "No dataLayer events were captured.")
		fmt.Fprintln(w)
	}

	for i, e := range report.Events {
		fmt.Fprintf(w, "Event %d:\n", i+1)

		body, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			// An unrenderable event is still reported, just raw.
			fmt.Fprintf(w, "%+v\n", e)
		} else {
			fmt.Fprintf(w, "%s\n", body)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, eventsEndMarker)
	fmt.Fprintf(w, "Total events captured: %d\n", report.Summary.TotalEvents)

	if f.opts.Verbose {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Session: %s\n", report.Metadata.SessionID)
		fmt.Fprintf(w, "URL: %s\n", report.Metadata.TargetURL)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
		for src, n := range report.Summary.BySource {
			fmt.Fprintf(w, "  %s: %d\n", src, n)
		}
		if report.Metadata.Interrupted {
			fmt.Fprintln(w, "Run was interrupted before the wait window closed.")
		}
	}

	return nil
}
