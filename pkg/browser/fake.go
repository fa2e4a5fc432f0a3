package browser

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// FakePage is what a FakeSession reports while it is on a given URL
type FakePage struct {
	Title   string
	Cookies []*http.Cookie
	HTML    string
	// CookiesAfter delays Cookies until the page has been polled this many times
	CookiesAfter int
}

// FakeLauncher is an in-memory Launcher for tests. Pages maps URLs to what a
// session sees there.
type FakeLauncher struct {
	mu sync.Mutex

	Pages         map[string]FakePage
	HeadlessPages map[string]FakePage
	LaunchErr     error
	// HeadlessErr fails only headless launches
	HeadlessErr error

	Launches []bool
	sessions []*FakeSession
}

// Launch records the call and returns a FakeSession
func (f *FakeLauncher) Launch(ctx context.Context, headless bool) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Launches = append(f.Launches, headless)
	if f.LaunchErr != nil {
		return nil, f.LaunchErr
	}
	if headless && f.HeadlessErr != nil {
		return nil, f.HeadlessErr
	}
	pages := f.Pages
	if headless && f.HeadlessPages != nil {
		pages = f.HeadlessPages
	}
	s := &FakeSession{pages: pages}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// AllClosed reports whether every launched session was closed
func (f *FakeLauncher) AllClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if !s.Closed() {
			return false
		}
	}
	return true
}

// FakeSession is the Session returned by FakeLauncher
type FakeSession struct {
	mu      sync.Mutex
	pages   map[string]FakePage
	current string
	polls   int
	closed  bool
	Visited []string
}

var errSessionClosed = errors.New("session closed")

func (s *FakeSession) Navigate(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	s.current = url
	s.polls = 0
	s.Visited = append(s.Visited, url)
	return nil
}

func (s *FakeSession) Title() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errSessionClosed
	}
	return s.pages[s.current].Title, nil
}

func (s *FakeSession) Cookies() ([]*http.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSessionClosed
	}
	p := s.pages[s.current]
	s.polls++
	if s.polls <= p.CookiesAfter {
		return nil, nil
	}
	return p.Cookies, nil
}

func (s *FakeSession) OuterHTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errSessionClosed
	}
	return s.pages[s.current].HTML, nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
