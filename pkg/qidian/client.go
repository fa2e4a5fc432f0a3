package qidian

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"qdreviews/pkg/auth"
	"qdreviews/pkg/config"
	"qdreviews/pkg/errors"
	"qdreviews/pkg/logger"
)

// CredentialSource produces a fresh credential set for a book
type CredentialSource interface {
	Acquire(ctx context.Context, bookID string) (*auth.Credentials, error)
}

// Client issues authenticated JSON calls for one book. It owns the current
// credential set and the HTTP session built from it; both are replaced
// together on refresh. A Client is not safe for concurrent use.
type Client struct {
	bookID       string
	baseURL      string
	userAgent    string
	timeout      time.Duration
	expiredCodes map[int]bool
	pageSize     int
	source       CredentialSource
	logger       logger.Logger

	http      *resty.Client
	creds     *auth.Credentials
	refreshes int

	// OnRefresh is called each time the credential set is discarded
	OnRefresh func()
	// OnResponse is called after every upstream exchange
	OnResponse func(path string, status int, duration time.Duration)
}

// NewClient creates a Client for bookID. No credentials are acquired until
// Authenticate or the first refresh.
func NewClient(bookID string, source CredentialSource, qcfg config.QidianConfig, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	base := qcfg.BaseURL
	if base == "" {
		base = BaseURL
	}
	pageSize := qcfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	expired := make(map[int]bool, len(qcfg.ExpiredCodes))
	for _, code := range qcfg.ExpiredCodes {
		expired[code] = true
	}
	return &Client{
		bookID:       bookID,
		baseURL:      strings.TrimRight(base, "/"),
		userAgent:    qcfg.UserAgent,
		timeout:      timeout,
		expiredCodes: expired,
		pageSize:     pageSize,
		source:       source,
		logger:       log.WithField("component", "qidian"),
	}
}

// BookID returns the book the client is bound to
func (c *Client) BookID() string { return c.bookID }

// BaseURL returns the site root requests are sent to
func (c *Client) BaseURL() string { return c.baseURL }

// Refreshes returns how many times the credential set was discarded
func (c *Client) Refreshes() int { return c.refreshes }

// Credentials returns the current credential set, nil when there is none
func (c *Client) Credentials() *auth.Credentials { return c.creds }

// Authenticate acquires the first credential set
func (c *Client) Authenticate(ctx context.Context) error {
	creds, err := c.source.Acquire(ctx, c.bookID)
	if err != nil {
		return err
	}
	c.install(creds)
	return nil
}

// Refresh discards the current credential set and HTTP session, then
// acquires a new one from scratch
func (c *Client) Refresh(ctx context.Context) error {
	c.creds = nil
	c.http = nil
	c.refreshes++
	if c.OnRefresh != nil {
		c.OnRefresh()
	}

	c.logger.Info("refreshing credentials")
	creds, err := c.source.Acquire(ctx, c.bookID)
	if err != nil {
		return fmt.Errorf("refresh credentials: %w", err)
	}
	c.install(creds)
	return nil
}

func (c *Client) install(creds *auth.Credentials) {
	jar, _ := cookiejar.New(nil)

	client := resty.New()
	client.SetBaseURL(c.baseURL)
	client.SetCookieJar(jar)
	client.SetTimeout(c.timeout)
	client.SetHeaders(map[string]string{
		"Accept":           "application/json, text/plain, */*",
		"Accept-Language":  "zh-CN,zh;q=0.9,en;q=0.8",
		"X-Requested-With": "XMLHttpRequest",
	})
	if c.userAgent != "" {
		client.SetHeader("User-Agent", c.userAgent)
	}
	client.SetCookies(creds.Cookies)
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.LogRequest(c.logger, resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Time())
		if c.OnResponse != nil && resp.Request.RawRequest != nil {
			c.OnResponse(resp.Request.RawRequest.URL.Path, resp.StatusCode(), resp.Time())
		}
		return nil
	})

	c.http = client
	c.creds = creds
}

// Get performs one logical call. A rejected call (interception, expired
// session code, malformed JSON, missing session) discards the credentials
// and is tried exactly once more. The envelope is returned only when its
// code is 0.
func (c *Client) Get(ctx context.Context, path string, params map[string]string, referer string) (*Envelope, error) {
	env, err := c.attempt(ctx, path, params, referer)
	if err == nil || !errors.IsRefreshable(errors.TypeOf(err)) {
		return env, err
	}

	c.logger.WarnWithFields("request rejected, refreshing credentials", map[string]interface{}{
		"path":  path,
		"cause": string(errors.TypeOf(err)),
	})
	if rerr := c.Refresh(ctx); rerr != nil {
		return nil, fmt.Errorf("%s after %v: %w", path, err, rerr)
	}
	return c.attempt(ctx, path, params, referer)
}

// GetNoRefresh performs a single attempt and never touches the credentials
func (c *Client) GetNoRefresh(ctx context.Context, path string, params map[string]string, referer string) (*Envelope, error) {
	return c.attempt(ctx, path, params, referer)
}

func (c *Client) attempt(ctx context.Context, path string, params map[string]string, referer string) (*Envelope, error) {
	if c.http == nil || c.creds == nil {
		return nil, errors.New(errors.ErrorTypeAuth, 0, "no credentials")
	}

	query := make(map[string]string, len(params)+2)
	for k, v := range params {
		query[k] = v
	}
	if c.creds.CSRFToken != "" {
		query[auth.CSRFCookie] = c.creds.CSRFToken
	}
	if c.creds.WTsfp != "" {
		query[auth.TsfpCookie] = c.creds.WTsfp
	}

	req := c.http.R().SetContext(ctx).SetQueryParams(query)
	if referer != "" {
		req.SetHeader("Referer", referer)
	}
	resp, err := req.Get(path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("GET %s: %w", path, ctx.Err())
		}
		c.logger.WithError(err).WarnWithFields("HTTP request failed", map[string]interface{}{
			"path": path,
		})
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "GET "+path)
	}

	body := resp.Body()
	if len(body) == 0 || resp.StatusCode() == 202 {
		return nil, errors.New(errors.ErrorTypeIntercepted, resp.StatusCode(),
			fmt.Sprintf("empty or intercepted response from %s (%d bytes)", path, len(body)))
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.DebugWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         path,
			"status":       resp.StatusCode(),
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return nil, errors.New(errors.ErrorTypeParsing, resp.StatusCode(),
			fmt.Sprintf("failed to parse JSON from %s: %v", path, err))
	}
	if env.Code == nil {
		return nil, errors.New(errors.ErrorTypeParsing, resp.StatusCode(),
			fmt.Sprintf("response from %s has no code", path))
	}

	code := *env.Code
	switch {
	case c.expiredCodes[code]:
		return nil, errors.New(errors.ErrorTypeSessionExpired, code,
			fmt.Sprintf("%s rejected the session: %s", path, env.Msg))
	case code != 0:
		return nil, errors.New(errors.ErrorTypeAPI, code,
			fmt.Sprintf("%s returned code %d: %s", path, code, env.Msg))
	}
	return &env, nil
}
