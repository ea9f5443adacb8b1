package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/pagesift/browser"
	"github.com/use-agent/pagesift/metrics"
	"github.com/use-agent/pagesift/models"
)

// challengeSizeCeiling: documents with more characters than this are real
// pages. All size limits below count characters, not bytes.
const challengeSizeCeiling = 60000

// LooksLikeChallenge reports whether html is a bot-verification interstitial
// rather than the requested content. It is a pure function over the
// serialized DOM and is re-evaluated on every sample.
func LooksLikeChallenge(html string) bool {
	n := utf8.RuneCountInString(html)
	if n > challengeSizeCeiling {
		return false
	}
	l := strings.ToLower(html)
	has := func(s string) bool { return strings.Contains(l, s) }

	switch {
	case has("cf_chl_opt"), has("cf-challenge"), has("cf-turnstile"):
		return true
	case has("just a moment") && (has("cloudflare") || has("ray id")):
		return true
	case has("managed_checking_msg"), has("cf-browser-verification"):
		return true
	case (has("checking your browser") || has("ddos protection")) && n < 20000:
		return true
	case has("access denied") && n < 10000:
		return true
	}
	return false
}

// challengeTriggered decides whether the bypass protocol runs.
func challengeTriggered(html string, resp *browser.Response) bool {
	if LooksLikeChallenge(html) {
		return true
	}
	if resp == nil {
		return false
	}
	switch resp.Status {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// resolveChallenge runs the bypass protocol and returns the best HTML it
// could obtain. The response is non-nil only when cookie priming re-loaded
// the target. Failure is not an error: whatever is on the page goes on to
// extraction.
func (s *Scraper) resolveChallenge(ctx context.Context, sess browser.Session, target, html string, resp *browser.Response) (string, *browser.Response, *models.ChallengeInfo) {
	status := 0
	if resp != nil {
		status = resp.Status
	}
	slog.Info("challenge detected, waiting for auto-resolve",
		"url", target, "status", status, "bytes", len(html))

	info := &models.ChallengeInfo{Detected: true}
	s.gesture(ctx, sess)

	// ── Race: redirect after solve vs in-place content change ─────────
	raceCtx, cancel := context.WithTimeout(ctx, s.cfg.ChallengeDeadline)
	winner := firstTrue(raceCtx,
		func(ctx context.Context) bool {
			return sess.WaitNavigation(ctx, s.cfg.ChallengeDeadline) == nil
		},
		func(ctx context.Context) bool {
			return s.pollChallenge(ctx, sess)
		},
	)
	cancel()
	switch winner {
	case 0:
		info.Strategy = models.ChallengeStrategyNavigation
	case 1:
		info.Strategy = models.ChallengeStrategyContent
	}

	// ── Settle ────────────────────────────────────────────────────────
	if err := sess.WaitReady(ctx, s.pauses.ready); err != nil {
		slog.Debug("document not ready after challenge race", "error", err)
	}
	if h, ok := s.sample(ctx, sess); ok {
		html = h
	}
	_ = sess.WaitNetworkIdle(ctx, s.pauses.ready)

	// ── Cookie priming via origin ─────────────────────────────────────
	var primed *browser.Response
	if LooksLikeChallenge(html) {
		info.Strategy = ""
		if h, r, ok := s.primeCookies(ctx, sess, target); ok {
			html, primed = h, r
			info.Strategy = models.ChallengeStrategyCookiePriming
		}
	}

	info.Resolved = !LooksLikeChallenge(html)
	if !info.Resolved {
		info.Strategy = ""
		slog.Warn("bot protection could not be bypassed", "url", target)
	} else {
		slog.Info("challenge bypassed", "url", target, "strategy", info.Strategy)
	}
	metrics.ChallengesTotal.WithLabelValues(strconv.FormatBool(info.Resolved)).Inc()
	return html, primed, info
}

// pollChallenge re-samples content until it is no longer a challenge,
// clicking a verification widget when one is visible.
func (s *Scraper) pollChallenge(ctx context.Context, sess browser.Session) bool {
	for sleepCtx(ctx, s.cfg.ChallengePoll) {
		html, err := sess.Content(ctx)
		if err != nil {
			// mid-navigation; skip this tick
			continue
		}
		if !LooksLikeChallenge(html) {
			return true
		}
		clicked, err := sess.ClickChallengeWidget(ctx)
		if err != nil {
			slog.Debug("challenge widget click failed", "error", err)
			continue
		}
		if clicked {
			slog.Debug("clicked challenge widget")
			sleepCtx(ctx, s.pauses.settle)
		}
	}
	return false
}

// primeCookies visits the origin so protections can set clearance cookies,
// then loads the target again.
func (s *Scraper) primeCookies(ctx context.Context, sess browser.Session, target string) (string, *browser.Response, bool) {
	origin, err := originOf(target)
	if err != nil {
		return "", nil, false
	}
	slog.Info("still blocked, priming cookies via origin", "origin", origin)

	if _, err := sess.Navigate(ctx, origin, s.pauses.primeNav); err != nil {
		slog.Warn("cookie priming failed", "step", "origin", "error", err)
		return "", nil, false
	}
	_ = sess.WaitNavigation(ctx, s.pauses.primeNav)
	_ = sess.WaitNetworkIdle(ctx, s.cfg.IdleTimeout)

	resp, err := sess.Navigate(ctx, target, s.pauses.primeRetarget)
	if err != nil {
		slog.Warn("cookie priming failed", "step", "target", "error", err)
		return "", nil, false
	}
	_ = sess.WaitNetworkIdle(ctx, s.cfg.IdleTimeout)
	sleepCtx(ctx, s.pauses.settle)

	html, err := sess.Content(ctx)
	if err != nil {
		slog.Warn("cookie priming failed", "step", "sample", "error", err)
		return "", nil, false
	}
	return html, resp, true
}

// sample reads the DOM, retrying once after a settle pause.
func (s *Scraper) sample(ctx context.Context, sess browser.Session) (string, bool) {
	html, err := sess.Content(ctx)
	if err == nil {
		return html, true
	}
	if !sleepCtx(ctx, s.pauses.settle) {
		return "", false
	}
	html, err = sess.Content(ctx)
	if err != nil {
		slog.Debug("content sample failed twice", "error", err)
		return "", false
	}
	return html, true
}
