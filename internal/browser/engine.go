// File: internal/browser/engine.go

// Package browser owns the headless engine lifecycle and builds isolated,
// identity-bearing sessions on top of it. One Engine process serves many
// sessions; each session gets its own browsing context and is torn down
// independently.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/config"
)

// Engine holds the shared exec allocator that sessions derive their
// contexts from. Each session launches its own browser process, so
// attempts are process-isolated; the engine owns the launch settings and
// the startup probe, not a long-lived browser.
type Engine struct {
	logger          *zap.Logger
	cfg             config.BrowserConfig
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
}

// NewEngine prepares the allocator and launches a throwaway browser to
// verify the environment can start one. Launch failure is fatal for the
// caller and carries environment hints; it is never retried here.
func NewEngine(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Engine, error) {
	e := &Engine{
		logger: logger.Named("browser_engine"),
		cfg:    cfg,
	}

	e.logger.Info("Initializing browser allocator",
		zap.Bool("headless", cfg.Headless),
		zap.String("exec_path", cfg.ExecPath))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, e.allocatorOptions()...)
	e.allocatorCtx = allocCtx
	e.allocatorCancel = cancel

	// Probe with a throwaway tab to confirm the process is alive before
	// any attempt depends on it.
	launchTimeout := cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = 30 * time.Second
	}
	probeCtx, cancelProbe := context.WithTimeout(allocCtx, launchTimeout)
	defer cancelProbe()
	tabCtx, cancelTab := chromedp.NewContext(probeCtx)
	defer cancelTab()

	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		e.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start: %w%s", err, launchHint(err))
	}

	e.logger.Info("Browser launched and responsive")
	return e, nil
}

// allocatorOptions assembles launch flags with the automation tells
// removed: the enable-automation default is dropped and the Blink feature
// behind navigator.webdriver is disabled.
func (e *Engine) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", e.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", e.cfg.IgnoreTLSErrors),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
	)

	if e.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(e.cfg.ExecPath))
	}

	for _, arg := range e.cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	return opts
}

// Close tears down the browser process. Sessions created from this engine
// become unusable afterwards.
func (e *Engine) Close() {
	if e.allocatorCancel != nil {
		e.allocatorCancel()
	}
	e.logger.Info("Browser engine shut down")
}

// allocator exposes the allocator context to the session builder.
func (e *Engine) allocator() context.Context {
	return e.allocatorCtx
}

// launchHint maps common launch failures to actionable environment hints.
func launchHint(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "executable file not found"), strings.Contains(msg, "no such file"):
		return " (hint: no Chrome/Chromium binary found; install one or set browser.exec_path)"
	case strings.Contains(msg, "cannot open display"), strings.Contains(msg, "missing x server"):
		return " (hint: no display available; run with browser.headless=true)"
	case strings.Contains(msg, "error while loading shared libraries"):
		return " (hint: missing native libraries; install the browser's runtime dependencies)"
	case strings.Contains(msg, "context deadline exceeded"):
		return " (hint: browser did not respond within the launch timeout; the host may be overloaded or sandboxing may be blocked)"
	default:
		return ""
	}
}
