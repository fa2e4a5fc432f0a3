// Package browser drives a real Chrome instance over the DevTools protocol.
//
// It is used for two things: obtaining the anti-bot cookies the site sets
// on a book landing page, and rendering chapter pages when the paragraph
// text is not available from the JSON API.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"qdreviews/pkg/logger"
)

// hideWebdriver runs before any page script on every new document
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Session is one running browser with a single tab
type Session interface {
	Navigate(url string) error
	Title() (string, error)
	Cookies() ([]*http.Cookie, error)
	OuterHTML() (string, error)
	// Close terminates the browser process. It is safe to call more than once.
	Close() error
}

// Launcher starts browser sessions
type Launcher interface {
	Launch(ctx context.Context, headless bool) (Session, error)
}

// ChromeLauncher launches Chrome through chromedp
type ChromeLauncher struct {
	// ExecPath overrides Chrome discovery when set
	ExecPath        string
	UserAgent       string
	NavigateTimeout time.Duration
	Logger          logger.Logger
}

// NewChromeLauncher creates a launcher with the given user agent
func NewChromeLauncher(execPath, userAgent string, navigateTimeout time.Duration, log logger.Logger) *ChromeLauncher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ChromeLauncher{
		ExecPath:        execPath,
		UserAgent:       userAgent,
		NavigateTimeout: navigateTimeout,
		Logger:          log.WithField("component", "browser"),
	}
}

func (l *ChromeLauncher) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-infobars", true),
	)
	if headless {
		opts = append(opts, chromedp.WindowSize(1920, 1080))
	} else {
		opts = append(opts, chromedp.Flag("start-maximized", true))
	}
	if l.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.UserAgent))
	}
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}
	return opts
}

// Launch starts Chrome and installs the fingerprint-masking init script.
// Cancelling ctx terminates the browser.
func (l *ChromeLauncher) Launch(ctx context.Context, headless bool) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions(headless)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		l.Logger.Debug(fmt.Sprintf(format, args...))
	}))

	s := &chromeSession{
		ctx:     tabCtx,
		cancel:  func() { tabCancel(); allocCancel() },
		timeout: l.NavigateTimeout,
	}

	// the first Run starts the process
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	}))
	if err != nil {
		// no browser to close gracefully; the tab cancel releases the allocator
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	s.started = true

	l.Logger.DebugWithFields("browser started", map[string]interface{}{
		"headless": headless,
	})
	return s, nil
}

type chromeSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	started bool
	once    sync.Once
}

func (s *chromeSession) Navigate(url string) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
	}
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) Title() (string, error) {
	var title string
	if err := chromedp.Run(s.ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

func (s *chromeSession) Cookies() ([]*http.Cookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return cookies, nil
}

func (s *chromeSession) OuterHTML() (string, error) {
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Close() error {
	s.once.Do(func() {
		// graceful first so the profile directory is released. chromedp.Cancel
		// on a context that never allocated leaves the tab cancel blocked.
		if s.started {
			_ = chromedp.Cancel(s.ctx)
		}
		s.cancel()
	})
	return nil
}

// CookieValue returns the value of the named cookie and whether it was present
func CookieValue(cookies []*http.Cookie, name string) (string, bool) {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}
