// Package auth obtains the anti-forgery cookies the site requires on its
// JSON endpoints.
//
// Credentials are never persisted. They are bound to the browser that
// produced them and are simply reacquired when the server rejects them.
package auth

import (
	"net/http"
	"strings"
	"time"

	"qdreviews/pkg/browser"
)

// Cookie names set by the site and its WAF
const (
	CSRFCookie           = "_csrfToken"
	TsfpCookie           = "w_tsfp"
	CaptchaRefererCookie = "x-waf-captcha-referer"
)

// Source records which browser mode produced a credential set
type Source string

const (
	SourceHeadless Source = "headless"
	SourceVisible  Source = "visible"
)

// Credentials is one anti-bot session: the tokens injected as query
// parameters plus the full cookie jar
type Credentials struct {
	CSRFToken  string
	WTsfp      string
	Cookies    []*http.Cookie
	Source     Source
	AcquiredAt time.Time
}

// CookieMap returns the jar as name to value
func (c *Credentials) CookieMap() map[string]string {
	m := make(map[string]string, len(c.Cookies))
	for _, ck := range c.Cookies {
		m[ck.Name] = ck.Value
	}
	return m
}

// fromCookies builds Credentials when the anti-forgery token is present
func fromCookies(cookies []*http.Cookie, source Source) (*Credentials, bool) {
	token, ok := browser.CookieValue(cookies, CSRFCookie)
	if !ok || token == "" {
		return nil, false
	}
	tsfp, _ := browser.CookieValue(cookies, TsfpCookie)
	return &Credentials{
		CSRFToken:  token,
		WTsfp:      tsfp,
		Cookies:    cookies,
		Source:     source,
		AcquiredAt: time.Now(),
	}, true
}

// IsChallenge reports whether the page is an interstitial verification
// page rather than the book page
func IsChallenge(title string, cookies []*http.Cookie) bool {
	if strings.Contains(title, "验证") || strings.Contains(title, "安全") {
		return true
	}
	_, hasCaptcha := browser.CookieValue(cookies, CaptchaRefererCookie)
	_, hasToken := browser.CookieValue(cookies, CSRFCookie)
	return hasCaptcha && !hasToken
}
