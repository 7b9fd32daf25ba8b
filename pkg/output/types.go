// Package output provides formatting and output generation for
// observation reports.
package output

import (
	"time"

	"github.com/tagwatch/tagwatch/pkg/event"
)

// Report is the complete output of one observation run.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Events contains every captured event in append order.
	Events []event.CapturedEvent `json:"events"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// TotalEvents is the number of events captured.
	TotalEvents int `json:"total_events"`

	// BySource counts events per capture strategy.
	BySource map[event.Source]int `json:"by_source"`
}

// Metadata provides context about the observation run.
type Metadata struct {
	// SessionID uniquely identifies the run.
	SessionID string `json:"session_id"`

	// TargetURL is the page that was observed.
	TargetURL string `json:"target_url"`

	// WaitSeconds is the configured observation window.
	WaitSeconds int `json:"wait_seconds"`

	// ObservedAt is when the run completed.
	ObservedAt time.Time `json:"observed_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`

	// Interrupted records whether the run was cut short by a signal.
	Interrupted bool `json:"interrupted"`
}

// NewReport creates a Report from the store's contents.
func NewReport(store *event.Store, meta Metadata) *Report {
	events := store.Events()
	return &Report{
		Events:   events,
		Metadata: meta,
		Summary: Summary{
			TotalEvents: len(events),
			BySource:    store.CountBySource(),
		},
	}
}

// HasEvents returns true if any events were captured.
func (r *Report) HasEvents() bool {
	return r.Summary.TotalEvents > 0
}
