package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/tagwatch/tagwatch/pkg/event"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report as JSON. Quiet mode emits the summary
// alone; run metadata appears only in verbose mode, the same contract
// the text formatter follows.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		return encoder.Encode(report.Summary)
	}
	if f.opts.Verbose {
		return encoder.Encode(report)
	}

	return encoder.Encode(struct {
		Summary Summary               `json:"summary"`
		Events  []event.CapturedEvent `json:"events"`
	}{report.Summary, report.Events})
}
