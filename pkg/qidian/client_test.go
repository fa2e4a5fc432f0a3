package qidian

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qdreviews/pkg/auth"
	"qdreviews/pkg/config"
	"qdreviews/pkg/errors"
	"qdreviews/pkg/logger"
)

const testBook = "1035420986"

// fakeSource hands out numbered credential sets
type fakeSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *fakeSource) Acquire(ctx context.Context, bookID string) (*auth.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	token := fmt.Sprintf("csrf-%d", s.calls)
	return &auth.Credentials{
		CSRFToken: token,
		WTsfp:     "tsfp",
		Cookies: []*http.Cookie{
			{Name: auth.CSRFCookie, Value: token},
			{Name: "newstatisticUUID", Value: "uuid"},
		},
		Source:     auth.SourceHeadless,
		AcquiredAt: time.Now(),
	}, nil
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// upstream is an httptest server with per-path handlers and hit counts
type upstream struct {
	*httptest.Server
	mu       sync.Mutex
	hits     map[string]int
	requests []*http.Request
	handlers map[string]http.HandlerFunc
}

func newUpstream(t *testing.T, handlers map[string]http.HandlerFunc) *upstream {
	u := &upstream{hits: make(map[string]int), handlers: handlers}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[r.URL.Path]++
		u.requests = append(u.requests, r.Clone(context.Background()))
		u.mu.Unlock()

		if h, ok := u.handlers[r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) Hits(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

func (u *upstream) Last() *http.Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests[len(u.requests)-1]
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func newTestClient(t *testing.T, u *upstream, src *fakeSource) *Client {
	cfg := config.DefaultConfig()
	cfg.Qidian.BaseURL = u.URL
	c := NewClient(testBook, src, cfg.Qidian, 5*time.Second, logger.NewTestLogger())
	require.NoError(t, c.Authenticate(context.Background()))
	return c
}

func TestGetInjectsCredentials(t *testing.T) {
	u := newUpstream(t, map[string]http.HandlerFunc{
		CategoryEndpoint: jsonHandler(`{"code":0,"msg":"ok","data":{}}`),
	})
	src := &fakeSource{}
	c := newTestClient(t, u, src)

	env, err := c.Get(context.Background(), CategoryEndpoint, map[string]string{"bookId": testBook}, "https://www.google.com")
	require.NoError(t, err)
	require.NotNil(t, env.Code)
	assert.Equal(t, 0, *env.Code)

	req := u.Last()
	q := req.URL.Query()
	assert.Equal(t, testBook, q.Get("bookId"))
	assert.Equal(t, "csrf-1", q.Get("_csrfToken"))
	assert.Equal(t, "tsfp", q.Get("w_tsfp"))
	assert.Equal(t, "https://www.google.com", req.Header.Get("Referer"))
	assert.Equal(t, "XMLHttpRequest", req.Header.Get("X-Requested-With"))
	assert.Contains(t, req.Header.Get("User-Agent"), "Chrome/120")

	ck, err := req.Cookie("newstatisticUUID")
	require.NoError(t, err)
	assert.Equal(t, "uuid", ck.Value)
}

func TestGetOmitsEmptySecondaryToken(t *testing.T) {
	u := newUpstream(t, map[string]http.HandlerFunc{
		CategoryEndpoint: jsonHandler(`{"code":0,"data":{}}`),
	})
	c := newTestClient(t, u, &fakeSource{})
	c.creds.WTsfp = ""

	_, err := c.Get(context.Background(), CategoryEndpoint, nil, "")
	require.NoError(t, err)
	assert.False(t, u.Last().URL.Query().Has("w_tsfp"))
}

func TestGetRefreshesExactlyOnce(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantType errors.ErrorType
	}{
		{"empty body", func(w http.ResponseWriter, r *http.Request) {}, errors.ErrorTypeIntercepted},
		{"status 202", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, `<html>challenge</html>`)
		}, errors.ErrorTypeIntercepted},
		{"expired code", jsonHandler(`{"code":1001,"msg":"expired"}`), errors.ErrorTypeSessionExpired},
		{"negative code", jsonHandler(`{"code":-1}`), errors.ErrorTypeSessionExpired},
		{"malformed json", jsonHandler(`<html>not json`), errors.ErrorTypeParsing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t, map[string]http.HandlerFunc{ReviewSummaryEndpoint: tt.handler})
			src := &fakeSource{}
			c := newTestClient(t, u, src)

			env, err := c.Get(context.Background(), ReviewSummaryEndpoint, nil, "")
			assert.Nil(t, env)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err))

			assert.Equal(t, 2, u.Hits(ReviewSummaryEndpoint), "one call plus one retried call")
			assert.Equal(t, 2, src.Calls(), "initial acquisition plus one refresh")
			assert.Equal(t, 1, c.Refreshes())
			assert.Equal(t, "csrf-2", u.Last().URL.Query().Get("_csrfToken"), "retry uses the fresh token")
		})
	}
}

func TestGetRecoversAfterRefresh(t *testing.T) {
	first := true
	u := newUpstream(t, map[string]http.HandlerFunc{
		CategoryEndpoint: func(w http.ResponseWriter, r *http.Request) {
			if first {
				first = false
				w.WriteHeader(http.StatusAccepted)
				return
			}
			fmt.Fprint(w, `{"code":0,"data":{"vs":[]}}`)
		},
	})
	src := &fakeSource{}
	c := newTestClient(t, u, src)
	refreshed := 0
	c.OnRefresh = func() { refreshed++ }

	env, err := c.Get(context.Background(), CategoryEndpoint, nil, "")
	require.NoError(t, err)
	assert.NotNil(t, env)
	assert.Equal(t, 1, refreshed)
}

func TestGetNoRefreshDoesNotTouchCredentials(t *testing.T) {
	u := newUpstream(t, map[string]http.HandlerFunc{
		ReviewListEndpoint: func(w http.ResponseWriter, r *http.Request) {},
	})
	src := &fakeSource{}
	c := newTestClient(t, u, src)

	_, err := c.GetNoRefresh(context.Background(), ReviewListEndpoint, nil, "")
	assert.Equal(t, errors.ErrorTypeIntercepted, errors.TypeOf(err))
	assert.Equal(t, 1, u.Hits(ReviewListEndpoint))
	assert.Equal(t, 1, src.Calls())
	assert.Zero(t, c.Refreshes())
}

func TestGetFailedRefreshGivesNoResult(t *testing.T) {
	u := newUpstream(t, map[string]http.HandlerFunc{
		CategoryEndpoint: jsonHandler(`{"code":1002}`),
	})
	src := &fakeSource{}
	c := newTestClient(t, u, src)
	src.err = auth.ErrNoCredentials

	_, err := c.Get(context.Background(), CategoryEndpoint, nil, "")
	assert.ErrorIs(t, err, auth.ErrNoCredentials)
	assert.Equal(t, 1, u.Hits(CategoryEndpoint))
	assert.Nil(t, c.Credentials())

	// the next call heals through the refresh path once credentials work again
	src.err = nil
	_, err = c.Get(context.Background(), CategoryEndpoint, nil, "")
	assert.Equal(t, errors.ErrorTypeSessionExpired, errors.TypeOf(err))
	assert.Equal(t, 2, c.Refreshes())
	assert.Equal(t, 2, u.Hits(CategoryEndpoint))
}

func TestGetOtherCodesAreNotRefreshed(t *testing.T) {
	u := newUpstream(t, map[string]http.HandlerFunc{
		CategoryEndpoint: jsonHandler(`{"code":2,"msg":"book not found"}`),
	})
	src := &fakeSource{}
	c := newTestClient(t, u, src)

	_, err := c.Get(context.Background(), CategoryEndpoint, nil, "")
	assert.Equal(t, errors.ErrorTypeAPI, errors.TypeOf(err))
	assert.Equal(t, 1, u.Hits(CategoryEndpoint))
	assert.Zero(t, c.Refreshes())
}

func TestGetNetworkErrorIsNotRefreshed(t *testing.T) {
	u := newUpstream(t, nil)
	src := &fakeSource{}
	c := newTestClient(t, u, src)
	u.Close()

	_, err := c.Get(context.Background(), CategoryEndpoint, nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
	assert.Zero(t, c.Refreshes())
	assert.Equal(t, 1, src.Calls())
}

func TestGetCancelledContext(t *testing.T) {
	u := newUpstream(t, map[string]http.HandlerFunc{
		CategoryEndpoint: jsonHandler(`{"code":0}`),
	})
	c := newTestClient(t, u, &fakeSource{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, CategoryEndpoint, nil, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.IsNetwork(err))
	assert.Zero(t, c.Refreshes())
}
