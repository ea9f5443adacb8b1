package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/pagesift/browser"
	"github.com/use-agent/pagesift/metrics"
	"github.com/use-agent/pagesift/models"
)

// retryableSignatures are substrings of transient navigation failures.
var retryableSignatures = []string{
	"ERR_ABORTED",
	"ERR_CONNECTION",
	"ERR_TIMED_OUT",
	"ERR_NAME",
	"net::",
	"timeout",
}

// isRetryable classifies a failed attempt. A per-attempt deadline counts as
// transient only while the request itself is still alive.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range retryableSignatures {
		if strings.Contains(msg, strings.ToLower(sig)) {
			return true
		}
	}
	return false
}

// navigate loads target with bounded retries. After the second failure it
// visits the site origin once before the final attempt, which picks up
// cookies that some protections set on the landing page.
//
// The returned response may be nil when the load produced no observable
// document response.
func (s *Scraper) navigate(ctx context.Context, sess browser.Session, target string) (*browser.Response, error) {
	attempts := max(s.cfg.NavigationAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := sess.Navigate(ctx, target, s.cfg.NavigationTimeout)
		if err == nil {
			metrics.NavigationAttempts.WithLabelValues(metrics.NavSuccess).Inc()
			if err := sess.WaitNetworkIdle(ctx, s.cfg.IdleTimeout); err != nil {
				slog.Debug("network did not settle, proceeding", "url", target, "error", err)
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(ctx, err) {
			metrics.NavigationAttempts.WithLabelValues(metrics.NavFatal).Inc()
			return nil, models.NewScrapeError(models.ErrCodeNavigation, "navigation failed", err)
		}
		metrics.NavigationAttempts.WithLabelValues(metrics.NavRetryable).Inc()
		slog.Warn("navigation attempt failed",
			"url", target, "attempt", attempt, "of", attempts, "error", err)

		if attempt == attempts {
			break
		}
		delay := time.Duration(attempt)*s.cfg.RetryBackoff + jitter(s.cfg.RetryJitter)
		slog.Debug("retrying navigation", "url", target, "delay", delay)
		if !sleepCtx(ctx, delay) {
			return nil, ctx.Err()
		}
		if attempt == 2 {
			s.visitOrigin(ctx, sess, target)
		}
	}

	return nil, models.NewScrapeError(
		models.ErrCodeNavigation,
		fmt.Sprintf("navigation failed after %d attempts", attempts),
		lastErr,
	)
}

// visitOrigin is the origin-first fallback. Failures are logged and the
// caller retries the target directly.
func (s *Scraper) visitOrigin(ctx context.Context, sess browser.Session, target string) {
	origin, err := originOf(target)
	if err != nil {
		return
	}
	slog.Info("trying origin-first navigation", "origin", origin)
	if _, err := sess.Navigate(ctx, origin, s.pauses.originNav); err != nil {
		slog.Warn("origin visit failed, retrying target directly", "origin", origin, "error", err)
		return
	}
	_ = sess.WaitNetworkIdle(ctx, s.cfg.IdleTimeout)
	if !sleepCtx(ctx, s.pauses.settle) {
		return
	}
	s.gesture(ctx, sess)
}

// originOf returns scheme://host of an absolute URL.
func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
