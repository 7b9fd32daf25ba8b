// Package browser provides the controllable Chrome session used for an
// observation run: navigation, script evaluation, drainable log
// channels, and the DevTools console subscription.
package browser

import (
	"context"
	"encoding/json"
	"time"
)

// LogChannel names a drainable log buffer exposed by the session.
type LogChannel string

const (
	// ChannelBrowser carries console log lines.
	ChannelBrowser LogChannel = "browser"

	// ChannelPerformance carries network activity lines. Availability
	// is environment-dependent and must be probed with HasLogChannel.
	ChannelPerformance LogChannel = "performance"
)

// LogEntry is one drained log line.
type LogEntry struct {
	// Level is the severity reported by the browser.
	Level string

	// Message is the raw line text.
	Message string

	// Timestamp is the browser-reported time of the entry.
	Timestamp time.Time
}

// ConsoleEvent is a structured console call delivered by the DevTools
// subscription. Callbacks run on the event-delivery goroutine, not the
// caller's.
type ConsoleEvent struct {
	// Type is the console API kind (log, warning, error, ...).
	Type string

	// Args holds the resolved argument values as raw JSON. Arguments
	// the browser could not serialize are rendered as JSON strings of
	// their description.
	Args []json.RawMessage

	// Observed is the wall-clock time the event was received.
	Observed time.Time

	// Origin is the browser-reported event time, when available.
	Origin *time.Time
}

// FirstArgString returns the first argument as plain text: JSON strings
// are unquoted, anything else is returned as its JSON rendering. Empty
// when there are no arguments.
func (e ConsoleEvent) FirstArgString() string {
	if len(e.Args) == 0 || len(e.Args[0]) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Args[0], &s); err == nil {
		return s
	}
	return string(e.Args[0])
}

// Session is a live, exclusively owned browser session. Close must be
// called exactly once on every exit path; implementations make repeated
// calls safe.
type Session interface {
	// Navigate loads the URL and waits for the page load to settle.
	Navigate(ctx context.Context, url string) error

	// Evaluate runs a script in the page and unmarshals its result
	// into out. A nil out discards the result.
	Evaluate(ctx context.Context, expr string, out any) error

	// DrainLog removes and returns all buffered entries for the
	// channel. A second drain without new entries returns nothing.
	DrainLog(channel LogChannel) ([]LogEntry, error)

	// HasLogChannel reports whether the channel is available in this
	// environment.
	HasLogChannel(channel LogChannel) bool

	// SubscribeConsole registers a callback for console API events for
	// the remainder of the session. An error means the capability is
	// unavailable; the session remains usable for polling.
	SubscribeConsole(fn func(ConsoleEvent)) error

	// Close shuts the browser down. Safe to call more than once.
	Close() error
}
