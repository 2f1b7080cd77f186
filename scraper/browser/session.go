// Package browser owns the headless-browser session used by all extractors.
// A Session wraps a single Chrome tab; callers must serialize access, the
// session is not safe for concurrent navigation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrExtractionTimeout reports that an expected page marker did not appear
// within the bounded wait.
var ErrExtractionTimeout = errors.New("extraction timeout: expected element did not appear")

// NavigationError reports a failed page load: transport error, timeout, or
// an HTTP error status.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigate %s: http status %d", e.URL, e.Status)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Options configures a browser Session.
type Options struct {
	UserAgent   string
	ChromeBin   string
	NavTimeout  time.Duration
	WaitTimeout time.Duration
}

// Session is one long-lived headless Chrome tab reused serially across
// discovery, detail capture, price probing, and liveness checking.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	navTimeout  time.Duration
	waitTimeout time.Duration
}

// NewSession launches headless Chrome and opens the single tab used for the
// lifetime of the session.
func NewSession(opts Options) (*Session, error) {
	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	navTimeout := opts.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 15 * time.Second
	}
	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Second
	}

	s := &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		navTimeout:  navTimeout,
		waitTimeout: waitTimeout,
	}

	// Start the browser process up front so the first navigation does not
	// pay the launch cost inside its own timeout budget. The target sites
	// localize by Accept-Language, so pin it to Polish for every request.
	startCtx, cancel := context.WithTimeout(tabCtx, 60*time.Second)
	defer cancel()
	err := chromedp.Run(startCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "pl-PL,pl;q=0.9,en;q=0.6"}),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	return s, nil
}

// Close shuts down the tab and the browser process.
func (s *Session) Close() {
	s.cancelTab()
	s.cancelAlloc()
}

// Navigate loads url in the session tab. It returns a *NavigationError on
// transport failure, navigation timeout, or HTTP status >= 400.
func (s *Session) Navigate(url string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.navTimeout)
	defer cancel()

	resp, err := chromedp.RunResponse(ctx, chromedp.Navigate(url))
	if err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if resp == nil {
		// Same-document navigations and downloads produce no response
		// object; there is no status to reject, so they count as loaded.
		return nil
	}
	if resp.Status >= 400 {
		return &NavigationError{URL: url, Status: int(resp.Status)}
	}
	return nil
}

// WaitVisible blocks until sel matches a visible element or the timeout
// elapses, in which case the error wraps ErrExtractionTimeout. A zero
// timeout uses the session default.
func (s *Session) WaitVisible(sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.waitTimeout
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrExtractionTimeout, sel)
		}
		return err
	}
	return nil
}

// Click clicks the first element matching sel. Used best-effort for the
// cookie-consent banner on the first navigation of a cycle.
func (s *Session) Click(sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.waitTimeout
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery))
}

// HTML returns the rendered DOM of the current page.
func (s *Session) HTML() (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.waitTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: outer html: %w", err)
	}
	return html, nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
