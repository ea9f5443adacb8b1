// Package browser wraps a real browser engine behind a narrow interface.
//
// A Launcher produces one Session per scrape. The session owns the OS
// process, an isolated browsing context and a single page, and it must be
// closed on every exit path. Retry and challenge logic in package scraper
// only ever talks to these interfaces, so it runs unchanged against the fake
// sessions used in tests.
package browser

import (
	"context"
	"strings"
	"time"
)

// Launcher starts browser sessions. Implementations must be safe for
// concurrent use; every call yields an independent session.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is a single page inside a dedicated browser process.
type Session interface {
	// InstallScripts registers scripts that run before any site script in
	// every new document. One Outcome per script.
	InstallScripts(ctx context.Context, scripts []InitScript) []Outcome

	// BlockMedia aborts audio/video requests and passes everything else.
	BlockMedia(ctx context.Context) Outcome

	// Navigate loads url and waits for main-frame DOMContentLoaded within
	// timeout. The returned response is nil when no document response was
	// observed for this navigation.
	Navigate(ctx context.Context, url string, timeout time.Duration) (*Response, error)

	// WaitNavigation waits for the next main-frame DOMContentLoaded.
	WaitNavigation(ctx context.Context, timeout time.Duration) error

	// WaitReady waits until document.readyState is no longer "loading".
	WaitReady(ctx context.Context, timeout time.Duration) error

	// WaitNetworkIdle waits until no requests are in flight, or timeout.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error

	// Content samples the current serialized DOM.
	Content(ctx context.Context) (string, error)

	// Info returns the current title and URL.
	Info(ctx context.Context) (title, url string, err error)

	// Gesture performs a short mouse move and a small scroll.
	Gesture(ctx context.Context) Outcome

	// ClickChallengeWidget looks for a verification widget inside challenge
	// iframes and clicks it. It reports whether a click happened.
	ClickChallengeWidget(ctx context.Context) (bool, error)

	// Dismiss evaluates overlay rules inside the page.
	Dismiss(ctx context.Context, rules []Rule) (DismissReport, error)

	// Screenshot captures the visible viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// Network is the response log collected since launch.
	Network() *NetworkLog

	// Close releases the page, context and process. It is idempotent.
	Close() error
}

// Response is the subset of a document response the engine consumes.
type Response struct {
	URL      string
	Status   int
	MIMEType string
	Headers  map[string]string
}

// ContentType returns the content-type header, falling back to the MIME type.
func (r *Response) ContentType() string {
	if r == nil {
		return ""
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, "content-type") {
			return v
		}
	}
	return r.MIMEType
}

// Outcome is the result of a best-effort operation. Callers may discard it.
type Outcome struct {
	Name string
	Err  error
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// InitScript is one named stealth patch.
type InitScript struct {
	Name   string
	Source string
}

// Rule actions understood by Session.Dismiss.
const (
	ActionClick     = "click"
	ActionClickText = "click-text"
	ActionHide      = "hide"
)

// Rule is a declarative overlay-dismissal instruction evaluated in the page.
type Rule struct {
	Selector string `json:"selector"`
	Action   string `json:"action"`

	// Texts are exact trimmed-text matches for ActionClickText.
	Texts []string `json:"texts,omitempty"`

	// MinWidth, MinHeight and Positions gate ActionHide.
	MinWidth  int      `json:"minWidth,omitempty"`
	MinHeight int      `json:"minHeight,omitempty"`
	Positions []string `json:"positions,omitempty"`
}

// DismissReport counts what the overlay rules touched.
type DismissReport struct {
	Clicked int `json:"clicked"`
	Hidden  int `json:"hidden"`
}
