// Package event defines the captured-event record, its JSON-compatible
// payload union, and the append-only store shared by the collectors.
package event

import (
	"time"
)

// Source identifies which capture strategy produced an event.
type Source string

const (
	// SourceConsoleLog is a classified line drained from the browser
	// console log buffer.
	SourceConsoleLog Source = "console_log"

	// SourcePerformanceLog is a matched line drained from the
	// performance/network log buffer.
	SourcePerformanceLog Source = "performance_log"

	// SourceConsoleAPI is a structured console call delivered by the
	// DevTools subscription.
	SourceConsoleAPI Source = "console_api"

	// SourceInjectedPush is a payload intercepted by the injected
	// dataLayer.push wrapper.
	SourceInjectedPush Source = "injected_push"

	// SourceFinalSnapshot is a one-shot read of the page's dataLayer
	// array or the injected capture buffer at session end.
	SourceFinalSnapshot Source = "final_snapshot"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceConsoleLog, SourcePerformanceLog, SourceConsoleAPI,
		SourceInjectedPush, SourceFinalSnapshot:
		return true
	}
	return false
}

// CapturedEvent is one observed piece of analytics instrumentation.
// Records are immutable once appended to the store.
type CapturedEvent struct {
	// Source is the capture strategy that produced the event.
	Source Source `json:"source"`

	// Payload is the observed value: a log line, a console argument,
	// a pushed object, or a snapshot array.
	Payload Value `json:"payload"`

	// Level is the log severity as reported by the browser, when the
	// source is a log buffer.
	Level string `json:"level,omitempty"`

	// ObservedAt is the wall-clock capture time in this process.
	ObservedAt time.Time `json:"observed_at"`

	// OriginTimestamp is the timestamp reported by the browser for the
	// underlying entry, when one was available.
	OriginTimestamp *time.Time `json:"origin_timestamp,omitempty"`
}
