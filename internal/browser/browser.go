// Package browser wraps chromedp in a scoped session for the flight boards
// that only render behind a real browser. A Session owns its allocator and
// tab context; Close tears both down on every exit path.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/35000ft/next-train-bot/internal/restyutil"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

// Options configures a browser session.
type Options struct {
	// Headless runs the browser without a window. Off is only useful when
	// debugging a scrape locally.
	Headless bool
	// ScreenshotDir receives failure captures; empty disables them.
	ScreenshotDir string
}

// Session is one live browser tab.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	log         *logger.Logger
	opts        Options
}

// NewSession starts a browser. The session inherits cancellation from ctx,
// so a request deadline also bounds every chromedp action run through it.
func NewSession(ctx context.Context, opts Options, log *logger.Logger) (*Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("lang", "zh-CN"),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(restyutil.BrowserUserAgent),
		chromedp.NoSandbox,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		log:         log.Named("browser"),
		opts:        opts,
	}
	// Starting the browser eagerly surfaces a missing chrome binary here
	// instead of at the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

// Close tears the tab and the browser process down.
func (s *Session) Close() {
	s.cancelTab()
	s.cancelAlloc()
}

// Run executes chromedp actions on the session's tab.
func (s *Session) Run(actions ...chromedp.Action) error {
	return chromedp.Run(s.ctx, actions...)
}

// Navigate loads a URL and waits for the body to be ready.
func (s *Session) Navigate(url string) error {
	s.log.Info("loading url", logger.String("url", url))
	if err := s.Run(chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Click clicks the first node matching the selector.
func (s *Session) Click(sel string, queryOpts ...chromedp.QueryOption) error {
	return s.Run(chromedp.Click(sel, queryOpts...))
}

// SendKeys types into the first node matching the selector.
func (s *Session) SendKeys(sel, text string) error {
	return s.Run(chromedp.SendKeys(sel, text))
}

// SetSelectValue picks an option of a <select> element by value.
func (s *Session) SetSelectValue(sel, value string) error {
	return s.Run(chromedp.SetValue(sel, value))
}

// OuterHTML returns the rendered HTML of the first node matching the
// selector, for parsing outside the browser.
func (s *Session) OuterHTML(sel string, queryOpts ...chromedp.QueryOption) (string, error) {
	var html string
	if err := s.Run(chromedp.OuterHTML(sel, &html, queryOpts...)); err != nil {
		return "", fmt.Errorf("read %s: %w", sel, err)
	}
	return html, nil
}

// Sleep pauses inside the tab context, so cancellation still interrupts it.
func (s *Session) Sleep(d time.Duration) error {
	return s.Run(chromedp.Sleep(d))
}

// CaptureFailure saves a screenshot for post-mortem inspection and returns
// its path. Capture errors are logged, never propagated; the original
// failure is the one worth reporting.
func (s *Session) CaptureFailure(label string) string {
	if s.opts.ScreenshotDir == "" {
		return ""
	}
	var shot []byte
	if err := s.Run(chromedp.CaptureScreenshot(&shot)); err != nil {
		s.log.Warn("screenshot capture failed", logger.Error(err))
		return ""
	}
	name := fmt.Sprintf("%s_fetcher_error_%s.png", label, time.Now().Format("2006_01_02_150405"))
	path := filepath.Join(s.opts.ScreenshotDir, name)
	if err := os.MkdirAll(s.opts.ScreenshotDir, 0o755); err != nil {
		s.log.Warn("screenshot dir unavailable", logger.Error(err))
		return ""
	}
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		s.log.Warn("screenshot write failed", logger.Error(err))
		return ""
	}
	s.log.Info("failure screenshot saved", logger.String("path", path))
	return path
}
