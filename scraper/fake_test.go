package scraper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/pagesift/browser"
	"github.com/use-agent/pagesift/config"
	"github.com/use-agent/pagesift/extract"
)

// fakeLauncher hands out fakeSessions and counts how many are open.
type fakeLauncher struct {
	open      atomic.Int32
	launchErr error
	newSess   func() *fakeSession
}

func (l *fakeLauncher) Launch(ctx context.Context) (browser.Session, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	s := &fakeSession{}
	if l.newSess != nil {
		s = l.newSess()
	}
	if s.net == nil {
		s.net = browser.NewNetworkLog()
	}
	s.launcher = l
	l.open.Add(1)
	return s, nil
}

// fakeSession is a scripted browser.Session. Unset hooks fall back to a
// well-behaved page that loads with status 200.
type fakeSession struct {
	launcher *fakeLauncher
	net      *browser.NetworkLog

	html     string
	title    string
	finalURL string

	navigate func(ctx context.Context, url string) (*browser.Response, error)
	content  func(ctx context.Context) (string, error)
	waitNav  func(ctx context.Context) error

	mu      sync.Mutex
	visited []string

	closeOnce sync.Once
}

func (s *fakeSession) InstallScripts(_ context.Context, scripts []browser.InitScript) []browser.Outcome {
	out := make([]browser.Outcome, len(scripts))
	for i, sc := range scripts {
		out[i] = browser.Outcome{Name: sc.Name}
	}
	return out
}

func (s *fakeSession) BlockMedia(context.Context) browser.Outcome {
	return browser.Outcome{Name: "block-media"}
}

func (s *fakeSession) Navigate(ctx context.Context, url string, _ time.Duration) (*browser.Response, error) {
	s.mu.Lock()
	s.visited = append(s.visited, url)
	s.mu.Unlock()
	if s.navigate != nil {
		return s.navigate(ctx, url)
	}
	return s.document(url, 200), nil
}

// document records a main-frame document response and returns it.
func (s *fakeSession) document(url string, status int) *browser.Response {
	s.net.Append(browser.NetworkEntry{
		URL:          url,
		Status:       status,
		ResourceType: browser.ResourceDocument,
		MainFrame:    true,
		MIMEType:     "text/html",
		Headers:      map[string]string{"content-type": "text/html; charset=utf-8"},
	})
	resp, _ := s.net.LastDocument()
	return resp
}

func (s *fakeSession) visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

func (s *fakeSession) WaitNavigation(ctx context.Context, timeout time.Duration) error {
	if s.waitNav != nil {
		return s.waitNav(ctx)
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return errors.New("no navigation")
	}
}

func (s *fakeSession) WaitReady(context.Context, time.Duration) error       { return nil }
func (s *fakeSession) WaitNetworkIdle(context.Context, time.Duration) error { return nil }

func (s *fakeSession) Content(ctx context.Context) (string, error) {
	if s.content != nil {
		return s.content(ctx)
	}
	return s.html, nil
}

func (s *fakeSession) Info(context.Context) (string, string, error) {
	return s.title, s.finalURL, nil
}

func (s *fakeSession) Gesture(context.Context) browser.Outcome {
	return browser.Outcome{Name: "gesture"}
}

func (s *fakeSession) ClickChallengeWidget(context.Context) (bool, error) { return false, nil }

func (s *fakeSession) Dismiss(context.Context, []browser.Rule) (browser.DismissReport, error) {
	return browser.DismissReport{}, nil
}

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }

func (s *fakeSession) Network() *browser.NetworkLog { return s.net }

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() {
		if s.launcher != nil {
			s.launcher.open.Add(-1)
		}
	})
	return nil
}

// sequence returns a Content hook that yields pages in order and then keeps
// returning the last one.
func sequence(pages ...string) func(context.Context) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		p := pages[min(i, len(pages)-1)]
		i++
		return p, nil
	}
}

func fastConfig() config.ScraperConfig {
	return config.ScraperConfig{
		Timeout:            5 * time.Second,
		NavigationTimeout:  time.Second,
		NavigationAttempts: 3,
		IdleTimeout:        10 * time.Millisecond,
		RetryBackoff:       time.Millisecond,
		RetryJitter:        0,
		ChallengeDeadline:  300 * time.Millisecond,
		ChallengePoll:      10 * time.Millisecond,
		MaxExtraWait:       0,
	}
}

func newTestScraper(l browser.Launcher, cfg config.ScraperConfig) *Scraper {
	s := New(l, extract.NewPipeline(), cfg, true)
	s.pauses = pauses{
		settle:        time.Millisecond,
		overlay:       0,
		ready:         10 * time.Millisecond,
		originNav:     100 * time.Millisecond,
		primeNav:      20 * time.Millisecond,
		primeRetarget: 100 * time.Millisecond,
	}
	return s
}
