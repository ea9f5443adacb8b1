package scraper

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/pagesift/browser"
	"github.com/use-agent/pagesift/config"
	"github.com/use-agent/pagesift/extract"
	"github.com/use-agent/pagesift/metrics"
	"github.com/use-agent/pagesift/models"
)

// pauses are the fixed settle and sub-step budgets of the protocol. They are
// not configurable; tests shrink them through the unexported field.
type pauses struct {
	settle        time.Duration // after a widget click, before a content retry, after origin visits
	overlay       time.Duration // after overlay rules ran
	ready         time.Duration // DOM ready and idle waits after the challenge race
	originNav     time.Duration // origin-first visit between navigation attempts
	primeNav      time.Duration // origin visit and redirect wait during cookie priming
	primeRetarget time.Duration // target navigation during cookie priming
}

func defaultPauses() pauses {
	return pauses{
		settle:        2 * time.Second,
		overlay:       500 * time.Millisecond,
		ready:         5 * time.Second,
		originNav:     20 * time.Second,
		primeNav:      15 * time.Second,
		primeRetarget: 20 * time.Second,
	}
}

// Scraper runs complete scrape invocations. Each call launches its own
// browser session, so a Scraper holds no per-request state and is safe for
// concurrent use.
type Scraper struct {
	launcher   browser.Launcher
	pipeline   *extract.Pipeline
	cfg        config.ScraperConfig
	blockMedia bool
	overlays   []browser.Rule
	pauses     pauses

	active atomic.Int32
}

// New wires an engine from a launcher and an extraction pipeline.
func New(l browser.Launcher, p *extract.Pipeline, cfg config.ScraperConfig, blockMedia bool) *Scraper {
	return &Scraper{
		launcher:   l,
		pipeline:   p,
		cfg:        cfg,
		blockMedia: blockMedia,
		overlays:   OverlayRules(),
		pauses:     defaultPauses(),
	}
}

// ActiveSessions returns the number of browser sessions currently open.
func (s *Scraper) ActiveSessions() int {
	return int(s.active.Load())
}

// Scrape loads req.URL in a fresh browser and returns the structured result.
//
// The run happens in its own goroutine bounded by the configured timeout.
// When the deadline fires first the caller gets SCRAPE_TIMEOUT immediately;
// the goroutine observes the same cancelled context, unwinds, and its
// deferred Close releases the browser. A partial result is never returned.
func (s *Scraper) Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	type outcome struct {
		res *models.ScrapeResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.run(ctx, req, start)
		done <- outcome{res: res, err: err}
	}()

	var (
		res *models.ScrapeResult
		err error
	)
	select {
	case o := <-done:
		res, err = o.res, o.err
		if err != nil && ctx.Err() != nil {
			err = s.timeoutError(ctx.Err())
		}
	case <-ctx.Done():
		err = s.timeoutError(ctx.Err())
	}

	elapsed := time.Since(start)
	metrics.ScrapeDuration.Observe(elapsed.Seconds())
	if err == nil {
		metrics.ScrapesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		slog.Info("scrape complete", "url", req.URL, "finalURL", res.URL, "elapsed", elapsed)
		return res, nil
	}

	se := models.AsScrapeError(err)
	if se.Code == models.ErrCodeTimeout {
		metrics.ScrapesTotal.WithLabelValues(metrics.OutcomeTimeout).Inc()
		slog.Warn("scrape timed out", "url", req.URL, "elapsed", elapsed)
	} else {
		metrics.ScrapesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		slog.Warn("scrape failed", "url", req.URL, "code", se.Code, "error", se)
	}
	return nil, se
}

func (s *Scraper) timeoutError(cause error) *models.ScrapeError {
	if errors.Is(cause, context.Canceled) {
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", cause)
	}
	return models.NewScrapeError(
		models.ErrCodeTimeout,
		fmt.Sprintf("scrape exceeded %s", s.cfg.Timeout),
		cause,
	)
}

// run is one invocation from launch to result.
func (s *Scraper) run(ctx context.Context, req *models.ScrapeRequest, start time.Time) (*models.ScrapeResult, error) {
	// ── 1. Launch ─────────────────────────────────────────────────────
	sess, err := s.launcher.Launch(ctx)
	if err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to launch browser", err)
	}
	s.active.Add(1)
	metrics.ActiveSessions.Inc()

	// ── 2. CRITICAL DEFER: the session is released on every exit path
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("browser session close failed", "url", req.URL, "error", err)
		}
		s.active.Add(-1)
		metrics.ActiveSessions.Dec()
	}()

	// ── 3. Stealth (before navigation) ────────────────────────────────
	for _, o := range sess.InstallScripts(ctx, browser.StealthScripts()) {
		if !o.OK() {
			slog.Debug("stealth patch failed", "patch", o.Name, "error", o.Err)
		}
	}
	if s.blockMedia {
		if o := sess.BlockMedia(ctx); !o.OK() {
			slog.Warn("media blocking unavailable, loading everything", "error", o.Err)
		}
	}

	// ── 4. Navigate ───────────────────────────────────────────────────
	slog.Info("navigating", "url", req.URL)
	resp, err := s.navigate(ctx, sess, req.URL)
	if err != nil {
		return nil, err
	}

	// ── 5. Challenge ──────────────────────────────────────────────────
	html, err := sess.Content(ctx)
	if err != nil {
		slog.Debug("initial content sample failed", "url", req.URL, "error", err)
	}
	var challenge *models.ChallengeInfo
	if challengeTriggered(html, resp) {
		var primed *browser.Response
		html, primed, challenge = s.resolveChallenge(ctx, sess, req.URL, html, resp)
		if primed != nil {
			resp = primed
		}
	} else {
		slog.Debug("page loaded without challenge", "url", req.URL)
	}

	if wait := req.WaitForMs(); wait > 0 {
		sleepCtx(ctx, min(time.Duration(wait)*time.Millisecond, s.cfg.MaxExtraWait))
	}

	// ── 6. Overlays ───────────────────────────────────────────────────
	s.dismissOverlays(ctx, sess)

	// ── 7. Capture ────────────────────────────────────────────────────
	snap := s.capture(ctx, sess, resp, html, req.Screenshot)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if snap.url == "" {
		snap.url = req.URL
	}
	slog.Debug("page captured", "title", snap.title, "url", snap.url, "bytes", len(snap.html))

	// ── 8. Extract ────────────────────────────────────────────────────
	res := s.pipeline.Run(extract.Input{
		HTML:    snap.html,
		PageURL: snap.url,
		Headers: headersOf(snap.resp),
	}, req)

	res.URL = snap.url
	res.Crawl = models.CrawlInfo{
		LoadedURL:   snap.url,
		LoadedTime:  time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		ReferrerURL: req.URL,
		Depth:       0,
		ContentType: snap.resp.ContentType(),
	}
	if snap.resp != nil {
		status := snap.resp.Status
		res.Crawl.HTTPStatusCode = &status
	}
	if len(snap.screenshot) > 0 {
		uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(snap.screenshot)
		res.ScreenshotURL = &uri
	}
	res.NetworkSummary = sess.Network().Summary()
	res.Challenge = challenge
	res.TimeTaken = fmt.Sprintf("%.2fs", time.Since(start).Seconds())
	return res, nil
}

func (s *Scraper) gesture(ctx context.Context, sess browser.Session) {
	if o := sess.Gesture(ctx); !o.OK() {
		slog.Debug("gesture failed", "error", o.Err)
	}
}

func headersOf(r *browser.Response) map[string]string {
	if r == nil || r.Headers == nil {
		return map[string]string{}
	}
	return r.Headers
}
