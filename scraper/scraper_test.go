package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/pagesift/browser"
	"github.com/use-agent/pagesift/models"
)

const fixtureHTML = `<html lang="en"><head><title>Fixture</title></head><body>
<h1>Hello</h1>
<a href="/inside">Inside</a>
<a href="https://elsewhere.test/">Elsewhere</a>
<img src="/pic.png">
</body></html>`

func waitClosed(t *testing.T, l *fakeLauncher) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for l.open.Load() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sessions still open: %d", l.open.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScrape_EndToEnd(t *testing.T) {
	l := &fakeLauncher{newSess: func() *fakeSession {
		return &fakeSession{html: fixtureHTML, title: "Fixture", finalURL: "http://example.test/"}
	}}
	s := newTestScraper(l, fastConfig())

	req := &models.ScrapeRequest{
		URL:        "http://example.test/",
		Extractors: []string{models.ExtractorLinks, models.ExtractorHeadings},
	}
	req.Defaults()

	res, err := s.Scrape(context.Background(), req)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}

	if res.URL != "http://example.test/" || res.Crawl.ReferrerURL != req.URL {
		t.Errorf("url = %q, referrer = %q", res.URL, res.Crawl.ReferrerURL)
	}
	if res.Crawl.HTTPStatusCode == nil || *res.Crawl.HTTPStatusCode != 200 {
		t.Errorf("status = %v", res.Crawl.HTTPStatusCode)
	}
	if !strings.HasPrefix(res.Crawl.ContentType, "text/html") {
		t.Errorf("content type = %q", res.Crawl.ContentType)
	}
	if res.Links == nil || res.Links.Total != 2 {
		t.Fatalf("links = %+v", res.Links)
	}
	external := 0
	for _, l := range res.Links.Items {
		if l.IsExternal {
			external++
		}
	}
	if external != 1 {
		t.Errorf("external links = %d, want 1", external)
	}
	if res.Headings == nil || len(res.Headings.H1) != 1 || res.Headings.H1[0] != "Hello" {
		t.Errorf("headings = %+v", res.Headings)
	}
	if res.Images != nil || res.Text != nil || res.Prices != nil || res.Tables != nil {
		t.Error("unrequested extractors must be absent")
	}
	if res.Challenge != nil {
		t.Errorf("challenge = %+v, want nil", res.Challenge)
	}
	if res.ScreenshotURL != nil {
		t.Error("screenshot not requested")
	}
	if !strings.HasSuffix(res.TimeTaken, "s") {
		t.Errorf("timeTaken = %q", res.TimeTaken)
	}
	if res.NetworkSummary.TotalRequests != 1 {
		t.Errorf("network summary = %+v", res.NetworkSummary)
	}
	if l.open.Load() != 0 {
		t.Errorf("open sessions = %d after Scrape", l.open.Load())
	}
}

func TestScrape_ResultKeys(t *testing.T) {
	l := &fakeLauncher{newSess: func() *fakeSession {
		return &fakeSession{html: fixtureHTML, finalURL: "http://example.test/"}
	}}
	s := newTestScraper(l, fastConfig())

	req := &models.ScrapeRequest{URL: "http://example.test/", Screenshot: true}
	req.Defaults()
	res, err := s.Scrape(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	raw, _ := json.Marshal(res)
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{
		"url", "crawl", "metadata", "html", "markdown", "screenshotUrl", "timeTaken",
		"networkSummary", "links", "images", "headings", "text", "prices", "tables",
	} {
		if _, ok := keys[k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
	if _, ok := keys["fullHtml"]; ok {
		t.Error("fullHtml not requested")
	}
	if res.ScreenshotURL == nil || !strings.HasPrefix(*res.ScreenshotURL, "data:image/png;base64,") {
		t.Errorf("screenshot = %v", res.ScreenshotURL)
	}
}

func TestScrape_StatusFromLastDocument(t *testing.T) {
	var sess *fakeSession
	l := &fakeLauncher{newSess: func() *fakeSession {
		sess = &fakeSession{finalURL: "http://example.test/"}
		var passed atomic.Bool
		sess.navigate = func(_ context.Context, url string) (*browser.Response, error) {
			return sess.document(url, 403), nil
		}
		sess.waitNav = func(context.Context) error {
			// the challenge redirect lands on the real page
			sess.document("http://example.test/", 200)
			passed.Store(true)
			return nil
		}
		sess.content = func(context.Context) (string, error) {
			if passed.Load() {
				return fixtureHTML, nil
			}
			return cfChallenge, nil
		}
		return sess
	}}

	cfg := fastConfig()
	cfg.ChallengePoll = time.Second
	s := newTestScraper(l, cfg)

	req := &models.ScrapeRequest{URL: "http://example.test/"}
	req.Defaults()
	res, err := s.Scrape(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Crawl.HTTPStatusCode == nil || *res.Crawl.HTTPStatusCode != 200 {
		t.Errorf("status = %v, want 200 from the post-challenge document", res.Crawl.HTTPStatusCode)
	}
	if res.Challenge == nil || !res.Challenge.Resolved || res.Challenge.Strategy != models.ChallengeStrategyNavigation {
		t.Errorf("challenge = %+v", res.Challenge)
	}
}

func TestScrape_TimeoutReleasesSession(t *testing.T) {
	l := &fakeLauncher{newSess: func() *fakeSession {
		s := &fakeSession{}
		s.navigate = func(ctx context.Context, _ string) (*browser.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return s
	}}

	cfg := fastConfig()
	cfg.Timeout = 50 * time.Millisecond
	s := newTestScraper(l, cfg)

	req := &models.ScrapeRequest{URL: "http://example.test/"}
	req.Defaults()

	start := time.Now()
	res, err := s.Scrape(context.Background(), req)
	if res != nil {
		t.Error("no partial result on timeout")
	}
	if se := models.AsScrapeError(err); se.Code != models.ErrCodeTimeout {
		t.Fatalf("err = %v, want SCRAPE_TIMEOUT", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("Scrape returned after %s", time.Since(start))
	}
	waitClosed(t, l)
	if s.ActiveSessions() != 0 {
		t.Errorf("active sessions = %d", s.ActiveSessions())
	}
}

func TestScrape_LaunchFailure(t *testing.T) {
	l := &fakeLauncher{launchErr: errors.New("no chrome")}
	s := newTestScraper(l, fastConfig())

	req := &models.ScrapeRequest{URL: "http://example.test/"}
	req.Defaults()
	_, err := s.Scrape(context.Background(), req)
	if se := models.AsScrapeError(err); se.Code != models.ErrCodeLaunch {
		t.Errorf("code = %s, want BROWSER_LAUNCH_FAILED", se.Code)
	}
}

func TestOverlayRules_Shape(t *testing.T) {
	rules := OverlayRules()
	counts := map[string]int{}
	for _, r := range rules {
		counts[r.Action]++
		if r.Action == browser.ActionHide && (r.MinWidth != 200 || r.MinHeight != 200 || len(r.Positions) != 2) {
			t.Errorf("hide rule %q has wrong geometry", r.Selector)
		}
	}
	if counts[browser.ActionClick] != len(closeSelectors) ||
		counts[browser.ActionClickText] != 1 ||
		counts[browser.ActionHide] != len(overlaySelectors) {
		t.Errorf("rule counts = %v", counts)
	}
	if rules[0].Action != browser.ActionClick || rules[len(rules)-1].Action != browser.ActionHide {
		t.Error("click rules must run before hide rules")
	}
}
