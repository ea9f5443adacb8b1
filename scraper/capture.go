package scraper

import (
	"context"
	"log/slog"

	"github.com/use-agent/pagesift/browser"
)

// snapshot is the final page state handed to extraction.
type snapshot struct {
	html       string
	title      string
	url        string
	resp       *browser.Response
	screenshot []byte
}

// capture samples the final DOM and picks the response that describes it.
// prior is kept when both DOM samples fail. The last main-frame document
// response wins over the navigation response, so a challenge redirect
// reports the status of the page that was actually captured.
func (s *Scraper) capture(ctx context.Context, sess browser.Session, navResp *browser.Response, prior string, screenshot bool) *snapshot {
	snap := &snapshot{html: prior, resp: navResp}
	if html, ok := s.sample(ctx, sess); ok {
		snap.html = html
	}

	title, u, err := sess.Info(ctx)
	if err != nil {
		slog.Debug("page info unavailable", "error", err)
	}
	snap.title, snap.url = title, u

	if last, ok := sess.Network().LastDocument(); ok {
		if navResp != nil && last.Status != navResp.Status {
			slog.Info("final status differs from navigation",
				"final", last.Status, "initial", navResp.Status)
		}
		snap.resp = last
	}

	if screenshot {
		buf, err := sess.Screenshot(ctx)
		if err != nil {
			slog.Warn("screenshot failed", "error", err)
		} else {
			snap.screenshot = buf
		}
	}
	return snap
}
