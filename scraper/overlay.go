package scraper

import (
	"context"
	"log/slog"

	"github.com/use-agent/pagesift/browser"
)

var closeSelectors = []string{
	`button[class*="close"]`,
	`a[class*="close"]`,
	`span[class*="close"]`,
	`div[class*="close"]`,
	`button[class*="Close"]`,
	`a[class*="Close"]`,
	`[class*="popup-close"]`,
	`[class*="modal-close"]`,
	`[class*="overlay-close"]`,
	`[class*="dismiss"]`,
	`[class*="Dismiss"]`,
	`[aria-label="Close"]`,
	`[aria-label="close"]`,
	`[aria-label="Kapat"]`,
	`[aria-label="kapat"]`,
	`[data-dismiss="modal"]`,
	`[data-dismiss="popup"]`,
	`[data-close]`,
	`[data-action="close"]`,
	`[class*="kapat"]`,
	`[class*="Kapat"]`,
	`.modal .close`,
	`.modal-header .close`,
	`.btn-close`,
	`.fancybox-close`,
	`.fancybox-close-small`,
	`.lightbox-close`,
	`button:has(> svg)`,
}

var closeTexts = []string{"×", "X", "x", "✕", "✖", "✗", "close", "kapat"}

var overlaySelectors = []string{
	`[class*="popup"]`,
	`[class*="Popup"]`,
	`[class*="modal"]`,
	`[class*="Modal"]`,
	`[class*="overlay"]`,
	`[class*="Overlay"]`,
	`[class*="lightbox"]`,
	`[class*="Lightbox"]`,
	`[id*="popup"]`,
	`[id*="Popup"]`,
	`[id*="modal"]`,
	`[id*="Modal"]`,
	`[id*="overlay"]`,
	`[id*="Overlay"]`,
	`.fancybox-container`,
	`.fancybox-overlay`,
}

// OverlayRules returns the dismissal rule set in evaluation order: visible
// close controls, then glyph/word close buttons, then force-hiding large
// positioned overlays that survived.
func OverlayRules() []browser.Rule {
	rules := make([]browser.Rule, 0, len(closeSelectors)+1+len(overlaySelectors))
	for _, sel := range closeSelectors {
		rules = append(rules, browser.Rule{Selector: sel, Action: browser.ActionClick})
	}
	rules = append(rules, browser.Rule{
		Selector: "button, a, span, div, i",
		Action:   browser.ActionClickText,
		Texts:    closeTexts,
	})
	for _, sel := range overlaySelectors {
		rules = append(rules, browser.Rule{
			Selector:  sel,
			Action:    browser.ActionHide,
			MinWidth:  200,
			MinHeight: 200,
			Positions: []string{"fixed", "absolute"},
		})
	}
	return rules
}

func (s *Scraper) dismissOverlays(ctx context.Context, sess browser.Session) {
	report, err := sess.Dismiss(ctx, s.overlays)
	if err != nil {
		slog.Debug("overlay dismissal failed", "error", err)
	} else if report.Clicked > 0 || report.Hidden > 0 {
		slog.Debug("overlays dismissed", "clicked", report.Clicked, "hidden", report.Hidden)
	}
	sleepCtx(ctx, s.pauses.overlay)
}
