package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tagwatch/tagwatch/internal/database"
	"github.com/tagwatch/tagwatch/pkg/browser"
	"github.com/tagwatch/tagwatch/pkg/classifier"
	"github.com/tagwatch/tagwatch/pkg/config"
	"github.com/tagwatch/tagwatch/pkg/event"
	"github.com/tagwatch/tagwatch/pkg/harvester"
	"github.com/tagwatch/tagwatch/pkg/output"
	"github.com/tagwatch/tagwatch/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// newSession launches the browser session. Tests swap it out.
var newSession = func(ctx context.Context, opts browser.Options) (browser.Session, error) {
	return browser.NewChromeSession(ctx, opts)
}

// ObserveOptions holds command-line options for the observe command.
type ObserveOptions struct {
	Output     string
	ConfigFile string
	Headless   bool
	Database   string
	Verbose    bool
	Quiet      bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewObserveCommand creates the observe command.
func NewObserveCommand() *cobra.Command {
	opts := &ObserveOptions{}

	cmd := &cobra.Command{
		Use:   "observe [url] [wait-seconds]",
		Short: "Watch a page for dataLayer activity",
		Long: `Open the page in Chrome and capture every dataLayer push, GTM console
line, and tag-related network request for the duration of the wait window.

Captures via three strategies at once:
  - a wrapped dataLayer.push that echoes each pushed object
  - the DevTools console subscription for structured console calls
  - polled browser and performance log buffers

Interrupting the run (Ctrl-C) ends the wait early; events already
captured are still reported.

Exit codes:
  0 - At least one dataLayer event was captured
  1 - Session completed but captured nothing
  2 - Launch, navigation, or configuration error`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObserve(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.Headless, "headless", false, "Run Chrome without a window")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite file to persist captured events to")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show run metadata and debug logging")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_events", "When to fire webhook (on_events|always|never)")

	return cmd
}

func runObserve(cmd *cobra.Command, args []string, opts *ObserveOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Load configuration
	cfg, err := config.LoadOrDefault(ctx, opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyArgs(cfg, args); err != nil {
		return err
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = opts.Headless
	}
	if opts.Database != "" {
		cfg.DatabasePath = opts.Database
	}

	sessionID := uuid.NewString()
	logger := newLogger(opts).With(zap.String("session_id", sessionID))
	defer func() { _ = logger.Sync() }()

	formatter, err := createFormatter(opts)
	if err != nil {
		return err
	}

	logger.Info("starting observation",
		zap.String("url", cfg.TargetURL),
		zap.Int("wait_seconds", cfg.WaitSeconds))

	// A signal ends the wait window, not the browser: the session must
	// stay alive for the final drain and snapshot.
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := newSession(ctx, browser.Options{
		Headless:          cfg.Browser.Headless,
		ExtraFlags:        cfg.Browser.ExtraFlags,
		CallTimeout:       cfg.CallTimeout,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	// Close exactly once, on every exit path. The browser is shut down
	// before the report is rendered; the deferred call covers errors
	// that end the run early.
	var closeOnce sync.Once
	closeSession := func() {
		closeOnce.Do(func() {
			if err := session.Close(); err != nil {
				logger.Warn("closing browser", zap.Error(err))
			}
		})
	}
	defer closeSession()

	store := event.NewStore()
	h := harvester.New(session, store,
		harvester.WithPollInterval(cfg.PollInterval),
		harvester.WithConsoleClassifier(classifier.New(
			classifier.WithKeywords(cfg.Keywords),
			classifier.WithCompoundRules(cfg.CompoundKeywords),
		)),
		harvester.WithPerformanceClassifier(classifier.New(
			classifier.WithKeywords(cfg.PerformanceKeywords),
			classifier.WithCompoundRules(nil),
		)),
		harvester.WithLogger(logger),
	)

	start := time.Now()
	if err := h.Run(runCtx, cfg.TargetURL, time.Duration(cfg.WaitSeconds)*time.Second); err != nil {
		return fmt.Errorf("observing %s: %w", cfg.TargetURL, err)
	}
	interrupted := runCtx.Err() != nil

	closeSession()

	report := output.NewReport(store, output.Metadata{
		SessionID:   sessionID,
		TargetURL:   cfg.TargetURL,
		WaitSeconds: cfg.WaitSeconds,
		ObservedAt:  time.Now().UTC(),
		Duration:    time.Since(start),
		Interrupted: interrupted,
	})

	// Output report
	if err := formatter.Format(ctx, report, os.Stdout); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Persist events (errors logged but don't fail the run)
	persistEvents(cfg, sessionID, store, logger)

	// Send webhooks (errors logged but don't fail the run)
	sendWebhooks(ctx, cfg, opts, report)

	// Set exit code based on results
	if !report.HasEvents() {
		ExitCode = 1
	}

	return nil
}

// applyArgs overrides target URL and wait window from positional args.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 && args[0] != "" {
		cfg.TargetURL = args[0]
	}
	if len(args) > 1 {
		secs, err := strconv.Atoi(args[1])
		if err != nil || secs <= 0 {
			return fmt.Errorf("invalid wait-seconds %q: must be a positive integer", args[1])
		}
		cfg.WaitSeconds = secs
	}
	return config.Validate(cfg)
}

func newLogger(opts *ObserveOptions) *zap.Logger {
	if opts.Quiet {
		return zap.NewNop()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	if !opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func createFormatter(opts *ObserveOptions) (output.Formatter, error) {
	formatOpts := output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	}

	switch opts.Output {
	case "text":
		return output.NewTextFormatter(formatOpts), nil
	case "json":
		return output.NewJSONFormatter(formatOpts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

// persistEvents writes the session's events to SQLite when a database
// path is configured.
func persistEvents(cfg *config.Config, sessionID string, store *event.Store, logger *zap.Logger) {
	if cfg.DatabasePath == "" {
		return
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Warn("opening database", zap.String("path", cfg.DatabasePath), zap.Error(err))
		return
	}
	defer func() { _ = db.Close() }()

	if err := db.InsertEvents(sessionID, store.Events()); err != nil {
		logger.Warn("persisting events", zap.Error(err))
		return
	}
	logger.Info("events persisted",
		zap.String("path", cfg.DatabasePath),
		zap.Int("count", store.Len()))
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are logged to stderr but don't fail the run.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *ObserveOptions, report *output.Report) {
	// Collect webhooks from config and CLI
	webhooks := collectWebhooks(cfg, opts)

	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		// Check trigger condition
		if !shouldFireWebhook(wh.Trigger, report.HasEvents()) {
			continue
		}

		// Send webhook
		resp := client.Send(ctx, report, webhook.SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		// Log result
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if resp.Success() {
			fmt.Fprintf(os.Stderr, "Webhook %s: sent (%d, %s)\n", name, resp.StatusCode, resp.Duration)
		} else {
			fmt.Fprintf(os.Stderr, "Webhook %s: failed (%v)\n", name, resp.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ObserveOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)

	// Add config file webhooks
	webhooks = append(webhooks, cfg.Webhooks...)

	// Add CLI webhook if specified
	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnEvents
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

// shouldFireWebhook determines if a webhook should fire based on trigger and captures.
func shouldFireWebhook(trigger config.WebhookTrigger, hasEvents bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	case config.WebhookTriggerOnEvents:
		return hasEvents
	default:
		// Default to on_events
		return hasEvents
	}
}
