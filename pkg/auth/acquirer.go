package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"qdreviews/pkg/browser"
	"qdreviews/pkg/config"
	"qdreviews/pkg/logger"
	"qdreviews/pkg/retry"
)

// ErrNoCredentials means no anti-forgery token could be obtained within the
// bounded wait
var ErrNoCredentials = errors.New("no credentials acquired")

var errTokenNotYet = errors.New("token not present yet")

// Acquirer drives a browser against a book landing page until the
// anti-forgery cookie appears
type Acquirer struct {
	launcher browser.Launcher
	baseURL  string
	cfg      config.BrowserConfig
	logger   logger.Logger

	// Guide receives the operator instructions when a visible browser opens
	Guide io.Writer
	// OnWait is called after each unsuccessful visible poll with the time waited so far
	OnWait func(elapsed, timeout time.Duration)
	// OnVisible is called once a visible browser is showing the page
	OnVisible func(pageURL string)
}

// NewAcquirer creates an Acquirer
func NewAcquirer(launcher browser.Launcher, baseURL string, cfg config.BrowserConfig, log logger.Logger) *Acquirer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Acquirer{
		launcher: launcher,
		baseURL:  strings.TrimRight(baseURL, "/"),
		cfg:      cfg,
		logger:   log.WithField("component", "auth"),
		Guide:    os.Stdout,
	}
}

// BookURL is the landing page that sets the anti-forgery cookie
func (a *Acquirer) BookURL(bookID string) string {
	return fmt.Sprintf("%s/book/%s/", a.baseURL, bookID)
}

// Acquire returns a fresh credential set for bookID. It tries headless
// first and escalates to a visible, human-assisted browser when the site
// challenges or the headless attempts fail. The only failure of the
// bounded wait is ErrNoCredentials.
func (a *Acquirer) Acquire(ctx context.Context, bookID string) (*Credentials, error) {
	pageURL := a.BookURL(bookID)

	creds, challenged, err := a.headless(ctx, pageURL, a.cfg.HeadlessSettle)
	if creds != nil {
		return creds, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		a.logger.WithError(err).Warn("headless browser failed, switching to visible browser")
	} else if challenged {
		a.logger.Info("verification page detected, switching to visible browser")
	} else {
		a.logger.Info("token not set yet, retrying headless with a longer settle")
		if err := retry.Wait(ctx, a.cfg.RetryPause); err != nil {
			return nil, err
		}
		creds, _, err = a.headless(ctx, pageURL, a.cfg.RetrySettle)
		if creds != nil {
			return creds, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			a.logger.WithError(err).Warn("headless retry failed")
		}
		a.logger.Info("headless attempts exhausted, switching to visible browser")
	}

	return a.visible(ctx, pageURL)
}

// headless makes one headless attempt. It reports whether the page looked
// like a verification challenge.
func (a *Acquirer) headless(ctx context.Context, pageURL string, settle time.Duration) (*Credentials, bool, error) {
	session, err := a.launcher.Launch(ctx, true)
	if err != nil {
		return nil, false, err
	}
	defer session.Close()

	if err := session.Navigate(pageURL); err != nil {
		return nil, false, err
	}
	if err := retry.Wait(ctx, settle); err != nil {
		return nil, false, err
	}

	cookies, err := session.Cookies()
	if err != nil {
		return nil, false, err
	}
	if creds, ok := fromCookies(cookies, SourceHeadless); ok {
		a.logger.InfoWithFields("credentials acquired", map[string]interface{}{
			"source":  string(SourceHeadless),
			"cookies": len(cookies),
		})
		return creds, false, nil
	}

	title, err := session.Title()
	if err != nil {
		return nil, false, err
	}
	return nil, IsChallenge(title, cookies), nil
}

// visible opens a window for the operator and polls until the token
// appears or the timeout elapses
func (a *Acquirer) visible(ctx context.Context, pageURL string) (*Credentials, error) {
	session, err := a.launcher.Launch(ctx, false)
	if err != nil {
		a.logger.WithError(err).Error("could not open a visible browser")
		return nil, ErrNoCredentials
	}
	defer session.Close()

	if err := session.Navigate(pageURL); err != nil {
		a.logger.WithError(err).Error("visible browser could not load the book page")
		return nil, ErrNoCredentials
	}
	if a.Guide != nil {
		ShowChallengeGuide(a.Guide, pageURL, a.cfg.VisibleTimeout)
	}
	if a.OnVisible != nil {
		a.OnVisible(pageURL)
	}

	interval := a.cfg.PollInterval
	attempts := int(a.cfg.VisibleTimeout / interval)
	if attempts < 1 {
		attempts = 1
	}

	creds, err := retry.DoWithResult(func() (*Credentials, error) {
		cookies, err := session.Cookies()
		if err != nil {
			return nil, err
		}
		if creds, ok := fromCookies(cookies, SourceVisible); ok {
			return creds, nil
		}
		return nil, errTokenNotYet
	}, &retry.Config{
		MaxAttempts: attempts,
		Backoff:     &retry.ConstantBackoff{Delay: interval},
		Context:     ctx,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			if a.OnWait != nil {
				a.OnWait(time.Duration(attempt)*interval, a.cfg.VisibleTimeout)
			}
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.WithError(err).WarnWithFields("gave up waiting for verification", map[string]interface{}{
			"timeout": a.cfg.VisibleTimeout,
		})
		return nil, ErrNoCredentials
	}

	a.logger.InfoWithFields("credentials acquired", map[string]interface{}{
		"source":  string(SourceVisible),
		"cookies": len(creds.Cookies),
	})
	return creds, nil
}
