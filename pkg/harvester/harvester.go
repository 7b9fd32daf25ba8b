// Package harvester orchestrates one observation run: it points a
// browser session at a page, installs the push wrapper, subscribes to
// console events, and polls the session's log channels until the wait
// window closes, appending everything it captures to a shared store.
package harvester

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tagwatch/tagwatch/pkg/browser"
	"github.com/tagwatch/tagwatch/pkg/classifier"
	"github.com/tagwatch/tagwatch/pkg/event"
)

// DefaultPollInterval is the delay between log-channel drains.
const DefaultPollInterval = time.Second

// Harvester drives the capture strategies against a single session.
type Harvester struct {
	session browser.Session
	store   *event.Store

	console     *classifier.Classifier
	performance *classifier.Classifier

	pollInterval time.Duration
	logger       *zap.Logger
}

// Option configures harvester behavior.
type Option func(*Harvester)

// WithPollInterval sets the delay between log-channel drains.
func WithPollInterval(d time.Duration) Option {
	return func(h *Harvester) {
		if d > 0 {
			h.pollInterval = d
		}
	}
}

// WithConsoleClassifier replaces the matcher applied to console log
// lines and console API arguments.
func WithConsoleClassifier(c *classifier.Classifier) Option {
	return func(h *Harvester) {
		if c != nil {
			h.console = c
		}
	}
}

// WithPerformanceClassifier replaces the matcher applied to
// performance log lines.
func WithPerformanceClassifier(c *classifier.Classifier) Option {
	return func(h *Harvester) {
		if c != nil {
			h.performance = c
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harvester) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates a harvester bound to a session and a store.
func New(session browser.Session, store *event.Store, opts ...Option) *Harvester {
	h := &Harvester{
		session:      session,
		store:        store,
		console:      classifier.New(),
		performance:  classifier.New(classifier.WithKeywords(classifier.DefaultPerformanceKeywords()), classifier.WithCompoundRules(nil)),
		pollInterval: DefaultPollInterval,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run performs one observation: navigate, instrument, poll for the
// wait duration, then a final drain and snapshot pass. A cancelled
// context ends the poll loop early; the final drain and snapshot still
// run so events already sitting in the page are not lost. Only a
// navigation failure is returned as an error.
func (h *Harvester) Run(ctx context.Context, targetURL string, wait time.Duration) error {
	if err := h.session.SubscribeConsole(h.onConsoleEvent); err != nil {
		h.captureError("console subscription", err)
	}

	if err := h.session.Navigate(ctx, targetURL); err != nil {
		return fmt.Errorf("navigating to %s: %w", targetURL, err)
	}
	h.logger.Info("page loaded", zap.String("url", targetURL))

	if err := browser.InjectPushMonitor(ctx, h.session); err != nil {
		h.captureError("push monitor injection", err)
	}

	h.pollLoop(ctx, wait)

	// One last drain catches entries buffered after the final tick.
	h.drainOnce()
	h.snapshot(context.WithoutCancel(ctx))
	return nil
}

// pollLoop drains the log channels once per poll interval until the
// wait window closes or the context is cancelled.
func (h *Harvester) pollLoop(ctx context.Context, wait time.Duration) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		h.drainOnce()
		if !time.Now().Before(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			h.logger.Info("observation interrupted", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
		}
	}
}

// drainOnce empties both log channels and appends every matching line.
func (h *Harvester) drainOnce() {
	entries, err := h.session.DrainLog(browser.ChannelBrowser)
	if err != nil {
		h.captureError("browser log drain", err)
	}
	for _, entry := range entries {
		if !h.console.Match(entry.Message) {
			continue
		}
		h.append(event.CapturedEvent{
			Source:          event.SourceConsoleLog,
			Payload:         event.String(entry.Message),
			Level:           entry.Level,
			ObservedAt:      time.Now().UTC(),
			OriginTimestamp: originTime(entry.Timestamp),
		})
	}

	if !h.session.HasLogChannel(browser.ChannelPerformance) {
		return
	}
	entries, err = h.session.DrainLog(browser.ChannelPerformance)
	if err != nil {
		h.captureError("performance log drain", err)
	}
	for _, entry := range entries {
		if !h.performance.Match(entry.Message) {
			continue
		}
		h.append(event.CapturedEvent{
			Source:          event.SourcePerformanceLog,
			Payload:         event.String(entry.Message),
			Level:           entry.Level,
			ObservedAt:      time.Now().UTC(),
			OriginTimestamp: originTime(entry.Timestamp),
		})
	}
}

// onConsoleEvent routes a subscribed console call. Wrapper echoes
// become injected_push events carrying the pushed payload; any other
// matching call is recorded as a console_api event. Runs on the
// session's delivery goroutine, so the store does the synchronizing.
func (h *Harvester) onConsoleEvent(e browser.ConsoleEvent) {
	if e.FirstArgString() == browser.PushEchoPrefix() {
		h.onPushEcho(e)
		return
	}

	text := e.FirstArgString()
	if !h.console.Match(text) {
		return
	}
	h.append(event.CapturedEvent{
		Source:          event.SourceConsoleAPI,
		Payload:         consolePayload(e),
		Level:           e.Type,
		ObservedAt:      e.Observed,
		OriginTimestamp: e.Origin,
	})
}

// onPushEcho decodes the wrapper's JSON echo. The second console
// argument is a JSON string of {data, timestamp} where timestamp is
// milliseconds since the epoch.
func (h *Harvester) onPushEcho(e browser.ConsoleEvent) {
	if len(e.Args) < 2 {
		h.captureError("push echo", fmt.Errorf("echo without payload argument"))
		return
	}
	text := browser.ConsoleEvent{Args: e.Args[1:]}.FirstArgString()
	entry, err := event.ParseString(text)
	if err != nil {
		h.captureError("push echo", fmt.Errorf("decoding echo payload: %w", err))
		return
	}

	captured := event.CapturedEvent{
		Source:     event.SourceInjectedPush,
		Payload:    event.Null(),
		ObservedAt: e.Observed,
	}
	if data, ok := entry.Get("data"); ok {
		captured.Payload = data
	}
	if ts, ok := entry.Get("timestamp"); ok && ts.Kind() == event.KindNumber {
		t := time.UnixMilli(int64(ts.NumberValue())).UTC()
		captured.OriginTimestamp = &t
	}
	h.append(captured)
}

// snapshot records the page's dataLayer array and the wrapper's
// capture buffer as one final_snapshot event each. Empty arrays are
// recorded too: a run that saw nothing still documents that fact.
func (h *Harvester) snapshot(ctx context.Context) {
	var dataLayer event.Value
	if err := browser.SnapshotDataLayer(ctx, h.session, &dataLayer); err != nil {
		h.captureError("dataLayer snapshot", err)
	} else {
		h.append(event.CapturedEvent{
			Source:     event.SourceFinalSnapshot,
			Payload:    dataLayer,
			ObservedAt: time.Now().UTC(),
		})
	}

	var captureBuf event.Value
	if err := browser.SnapshotCaptureBuffer(ctx, h.session, &captureBuf); err != nil {
		h.captureError("capture buffer snapshot", err)
	} else {
		h.append(event.CapturedEvent{
			Source:     event.SourceFinalSnapshot,
			Payload:    captureBuf,
			ObservedAt: time.Now().UTC(),
		})
	}
}

func (h *Harvester) append(e event.CapturedEvent) {
	h.store.Append(e)
	h.logger.Debug("event captured", zap.String("source", string(e.Source)))
}

// captureError is the single non-fatal error path: log and carry on.
// A failed read on one tick never ends the run.
func (h *Harvester) captureError(stage string, err error) {
	h.logger.Warn("capture error", zap.String("stage", stage), zap.Error(err))
}

// consolePayload renders the console arguments as a Value: the lone
// argument directly, or a list when there are several.
func consolePayload(e browser.ConsoleEvent) event.Value {
	vals := make([]event.Value, 0, len(e.Args))
	for _, arg := range e.Args {
		v, err := event.Parse(arg)
		if err != nil {
			v = event.String(string(arg))
		}
		vals = append(vals, v)
	}
	switch len(vals) {
	case 0:
		return event.Null()
	case 1:
		return vals[0]
	default:
		return event.List(vals...)
	}
}

func originTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
