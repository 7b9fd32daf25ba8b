package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Options configures a Chrome session.
type Options struct {
	// Headless runs Chrome without a visible window.
	Headless bool

	// ExtraFlags are additional Chrome switches in name or name=value
	// form, without leading dashes.
	ExtraFlags []string

	// CallTimeout bounds each individual browser call. Zero means 5s.
	CallTimeout time.Duration

	// NavigationTimeout bounds page loads. Zero means 30s.
	NavigationTimeout time.Duration

	// Logger receives session diagnostics. Nil means no-op.
	Logger *zap.Logger
}

// ChromeSession drives a locally launched Chrome over CDP. Log channels
// are in-process buffers fed by CDP push events, drained destructively
// by the polling loop.
type ChromeSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	callTimeout time.Duration
	navTimeout  time.Duration
	logger      *zap.Logger

	browserBuf *logBuffer
	perfBuf    *logBuffer

	perfAvailable bool
	runtimeOK     bool

	mu          sync.Mutex
	subscribers []func(ConsoleEvent)

	closeOnce sync.Once
	closeErr  error
}

var _ Session = (*ChromeSession)(nil)

// NewChromeSession launches Chrome and wires up event capture. A launch
// failure is the caller's only fatal error class; the returned session
// is otherwise usable even when optional capabilities are missing.
//
// The session's lifetime is independent of ctx: an interrupt that
// cancels the observation window must still leave the browser alive for
// the final drain and snapshot. Close tears everything down.
func NewChromeSession(_ context.Context, opts Options) (*ChromeSession, error) {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 5 * time.Second
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("enable-logging", true),
		chromedp.Flag("v", "1"),
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Headless)
	}
	for _, flag := range opts.ExtraFlags {
		name, value, found := strings.Cut(flag, "=")
		if found {
			allocOpts = append(allocOpts, chromedp.Flag(name, value))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		callTimeout:   opts.CallTimeout,
		navTimeout:    opts.NavigationTimeout,
		logger:        logger,
		browserBuf:    newLogBuffer(),
		perfBuf:       newLogBuffer(),
	}

	// Listener must be registered before the browser starts so no early
	// events are dropped.
	chromedp.ListenTarget(browserCtx, s.handleEvent)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	// Log and Runtime power the console channel, Network the
	// performance channel. Each is probed independently; a missing
	// capability degrades capture instead of failing the session.
	if err := s.runAction(chromedp.ActionFunc(func(c context.Context) error {
		return cdplog.Enable().Do(c)
	})); err != nil {
		logger.Warn("browser log channel unavailable", zap.Error(err))
	}

	if err := s.runAction(chromedp.ActionFunc(func(c context.Context) error {
		return cdpruntime.Enable().Do(c)
	})); err != nil {
		logger.Warn("console API channel unavailable", zap.Error(err))
	} else {
		s.runtimeOK = true
	}

	if err := s.runAction(chromedp.ActionFunc(func(c context.Context) error {
		return network.Enable().Do(c)
	})); err != nil {
		logger.Warn("performance log channel unavailable", zap.Error(err))
	} else {
		s.perfAvailable = true
	}

	return s, nil
}

// runAction runs a chromedp action bounded by the per-call timeout.
func (s *ChromeSession) runAction(action chromedp.Action) error {
	tctx, cancel := context.WithTimeout(s.browserCtx, s.callTimeout)
	defer cancel()
	return chromedp.Run(tctx, action)
}

// Navigate loads the URL, bounded by the navigation timeout.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(s.browserCtx, s.navTimeout)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// Evaluate runs the expression in the page, bounded by the per-call
// timeout, and unmarshals the result into out when out is non-nil.
func (s *ChromeSession) Evaluate(ctx context.Context, expr string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(s.browserCtx, s.callTimeout)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.Evaluate(expr, out)); err != nil {
		return fmt.Errorf("evaluating script: %w", err)
	}
	return nil
}

// DrainLog destructively reads the channel's buffered entries.
func (s *ChromeSession) DrainLog(channel LogChannel) ([]LogEntry, error) {
	switch channel {
	case ChannelBrowser:
		return s.browserBuf.drain(), nil
	case ChannelPerformance:
		if !s.perfAvailable {
			return nil, fmt.Errorf("log channel %q not available", channel)
		}
		return s.perfBuf.drain(), nil
	default:
		return nil, fmt.Errorf("unknown log channel %q", channel)
	}
}

// HasLogChannel reports channel availability.
func (s *ChromeSession) HasLogChannel(channel LogChannel) bool {
	switch channel {
	case ChannelBrowser:
		return true
	case ChannelPerformance:
		return s.perfAvailable
	default:
		return false
	}
}

// SubscribeConsole registers fn for console API events. Fails when the
// Runtime domain could not be enabled at launch.
func (s *ChromeSession) SubscribeConsole(fn func(ConsoleEvent)) error {
	if !s.runtimeOK {
		return fmt.Errorf("console API subscription unavailable: runtime domain not enabled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
	return nil
}

// Close shuts down the browser. Repeated calls return the first result.
func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.browserCtx); err != nil {
			s.closeErr = fmt.Errorf("closing browser: %w", err)
		}
		s.browserCancel()
		s.allocCancel()
	})
	return s.closeErr
}

// handleEvent routes CDP push events into the channel buffers and the
// console subscribers. It runs on chromedp's event goroutine.
func (s *ChromeSession) handleEvent(ev any) {
	switch e := ev.(type) {
	case *cdplog.EventEntryAdded:
		s.browserBuf.append(LogEntry{
			Level:     string(e.Entry.Level),
			Message:   e.Entry.Text,
			Timestamp: timestampTime(e.Entry.Timestamp),
		})
	case *cdpruntime.EventConsoleAPICalled:
		s.handleConsoleAPI(e)
	case *network.EventRequestWillBeSent:
		s.perfBuf.append(LogEntry{
			Level:     "INFO",
			Message:   perfMessage("Network.requestWillBeSent", e.Request.Method, e.Request.URL),
			Timestamp: wallTime(e.WallTime),
		})
	case *network.EventResponseReceived:
		s.perfBuf.append(LogEntry{
			Level:     "INFO",
			Message:   perfMessage("Network.responseReceived", fmt.Sprintf("%d", e.Response.Status), e.Response.URL),
			Timestamp: time.Now(),
		})
	}
}

func (s *ChromeSession) handleConsoleAPI(e *cdpruntime.EventConsoleAPICalled) {
	observed := time.Now()
	var origin *time.Time
	if e.Timestamp != nil {
		t := e.Timestamp.Time()
		origin = &t
	}

	args := make([]json.RawMessage, len(e.Args))
	parts := make([]string, 0, len(e.Args))
	for i, arg := range e.Args {
		args[i] = renderRemoteArg(arg)
		parts = append(parts, argText(args[i]))
	}

	// Console calls also feed the browser log channel, mirroring what a
	// browser-side console log buffer would contain.
	s.browserBuf.append(LogEntry{
		Level:     string(e.Type),
		Message:   strings.Join(parts, " "),
		Timestamp: observed,
	})

	event := ConsoleEvent{
		Type:     string(e.Type),
		Args:     args,
		Observed: observed,
		Origin:   origin,
	}

	s.mu.Lock()
	subscribers := make([]func(ConsoleEvent), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(event)
	}
}

// renderRemoteArg turns a CDP remote object into raw JSON. Objects the
// browser did not serialize by value fall back to a JSON string of
// their description.
func renderRemoteArg(arg *cdpruntime.RemoteObject) json.RawMessage {
	if arg == nil {
		return json.RawMessage("null")
	}
	if len(arg.Value) > 0 {
		return json.RawMessage(arg.Value)
	}
	desc := arg.Description
	if desc == "" {
		desc = string(arg.Type)
	}
	quoted, err := json.Marshal(desc)
	if err != nil {
		return json.RawMessage("null")
	}
	return quoted
}

func argText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// perfMessage renders a network event as a one-line JSON message, the
// shape performance log consumers expect.
func perfMessage(method, detail, url string) string {
	payload := struct {
		Method string `json:"method"`
		Params struct {
			Detail string `json:"detail"`
			URL    string `json:"url"`
		} `json:"params"`
	}{Method: method}
	payload.Params.Detail = detail
	payload.Params.URL = url

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"method":%q}`, method)
	}
	return string(data)
}

func timestampTime(ts *cdpruntime.Timestamp) time.Time {
	if ts == nil {
		return time.Now()
	}
	return ts.Time()
}

func wallTime(ts *cdp.TimeSinceEpoch) time.Time {
	if ts == nil {
		return time.Now()
	}
	return ts.Time()
}
