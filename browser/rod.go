package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/pagesift/config"
	"github.com/use-agent/pagesift/models"
	"github.com/ysmood/gson"
)

// closeTimeout bounds each CDP call made while tearing a session down.
const closeTimeout = 5 * time.Second

// challengeFrameMarkers identify verification-widget iframes by src.
var challengeFrameMarkers = []string{"challenges.cloudflare.com", "turnstile"}

const challengeWidgetSelector = "input[type='checkbox'], .ctp-checkbox-label, #challenge-stage"

var errNoSystemBrowser = errors.New("no installed browser found on PATH")

// RodLauncher starts one Chromium process per session using go-rod.
// It holds no mutable state and is safe for concurrent use.
type RodLauncher struct {
	cfg         config.BrowserConfig
	fingerprint Fingerprint
}

// NewRodLauncher returns a launcher that applies the default fingerprint.
func NewRodLauncher(cfg config.BrowserConfig) *RodLauncher {
	return &RodLauncher{cfg: cfg, fingerprint: DefaultFingerprint()}
}

// channel is one way of obtaining a browser binary.
type channel struct {
	name string
	bin  func() (string, error)
}

// channels lists launch candidates in preference order: a pinned binary
// when configured, otherwise the host's installed browser and then rod's
// bundled revision (downloaded on first use).
func (l *RodLauncher) channels() []channel {
	if l.cfg.BrowserBin != "" {
		return []channel{{name: "configured", bin: func() (string, error) { return l.cfg.BrowserBin, nil }}}
	}
	return []channel{
		{name: "system", bin: func() (string, error) {
			if p, ok := launcher.LookPath(); ok {
				return p, nil
			}
			return "", errNoSystemBrowser
		}},
		{name: "bundled", bin: func() (string, error) {
			return launcher.NewBrowser().Get()
		}},
	}
}

// Launch starts a browser, opens an isolated context with one page, applies
// the fingerprint and starts recording network responses.
func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	var errs []error
	for _, ch := range l.channels() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sess, err := l.launchChannel(ch)
		if err == nil {
			return sess, nil
		}
		slog.Warn("browser channel failed", "channel", ch.name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", ch.name, err))
	}
	return nil, models.NewScrapeError(
		models.ErrCodeLaunch,
		"failed to launch browser",
		errors.Join(errs...),
	)
}

func (l *RodLauncher) launchChannel(ch channel) (*rodSession, error) {
	bin, err := ch.bin()
	if err != nil {
		return nil, err
	}

	ln := l.newLauncher(bin)
	controlURL, err := ln.Launch()
	if err != nil {
		ln.Kill()
		return nil, fmt.Errorf("launch %s: %w", bin, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("connect: %w", err)
	}

	s := &rodSession{launcher: ln, root: b, net: NewNetworkLog()}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if s.incognito, err = b.Incognito(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	if s.page, err = s.incognito.Page(proto.TargetCreateTarget{}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := s.watchNetwork(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("enable network events: %w", err)
	}
	for _, o := range s.applyFingerprint(l.fingerprint) {
		if !o.OK() {
			slog.Debug("fingerprint override failed", "override", o.Name, "error", o.Err)
		}
	}

	slog.Debug("browser session ready", "channel", ch.name, "pid", ln.PID())
	return s, nil
}

func (l *RodLauncher) newLauncher(bin string) *launcher.Launcher {
	ln := launcher.New().
		Bin(bin).
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox)

	if l.cfg.Proxy != "" {
		ln = ln.Proxy(l.cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-setuid-sandbox"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", l.fingerprint.Width, l.fingerprint.Height))
	ln.Set(flags.Flag("lang"), "en-US,en")
	return ln
}

// rodSession owns one process, one incognito context and one page.
type rodSession struct {
	launcher  *launcher.Launcher
	root      *rod.Browser
	incognito *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	net       *NetworkLog

	// ctx scopes background event loops to the session lifetime.
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) applyFingerprint(fp Fingerprint) []Outcome {
	p := s.page
	return []Outcome{
		{Name: "user-agent", Err: p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      fp.UserAgent,
			AcceptLanguage: fp.AcceptLanguage,
			Platform:       fp.Platform,
		})},
		{Name: "viewport", Err: p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             fp.Width,
			Height:            fp.Height,
			DeviceScaleFactor: 1,
			Mobile:            false,
		})},
		{Name: "timezone", Err: proto.EmulationSetTimezoneOverride{TimezoneID: fp.Timezone}.Call(p)},
		{Name: "locale", Err: proto.EmulationSetLocaleOverride{Locale: fp.Locale}.Call(p)},
		{Name: "touch", Err: proto.EmulationSetTouchEmulationEnabled{Enabled: false}.Call(p)},
		{Name: "javascript", Err: proto.EmulationSetScriptExecutionDisabled{Value: false}.Call(p)},
		{Name: "headers", Err: proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(fp.Headers)}.Call(p)},
	}
}

// watchNetwork records every response into the session's NetworkLog for as
// long as the session is open.
func (s *rodSession) watchNetwork() error {
	if err := (proto.NetworkEnable{}).Call(s.page); err != nil {
		return err
	}
	mainFrame := s.page.FrameID
	wait := s.page.Context(s.ctx).EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Response == nil {
			return
		}
		entry := NetworkEntry{
			URL:          e.Response.URL,
			Status:       e.Response.Status,
			ResourceType: strings.ToLower(string(e.Type)),
			MainFrame:    e.FrameID == mainFrame,
			MIMEType:     e.Response.MIMEType,
		}
		if entry.ResourceType == ResourceDocument {
			entry.Headers = fromHeadersMap(e.Response.Headers)
		}
		s.net.Append(entry)
	})
	go wait()
	return nil
}

func (s *rodSession) InstallScripts(ctx context.Context, scripts []InitScript) []Outcome {
	p := s.page.Context(ctx)
	out := make([]Outcome, 0, len(scripts))
	for _, sc := range scripts {
		_, err := p.EvalOnNewDocument(wrapScript(sc.Source))
		out = append(out, Outcome{Name: sc.Name, Err: err})
	}
	return out
}

func (s *rodSession) BlockMedia(_ context.Context) Outcome {
	router, err := setupHijack(s.page)
	if err == nil {
		s.router = router
	}
	return Outcome{Name: "block-media", Err: err}
}

func (s *rodSession) Navigate(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := s.page.Context(actx)

	mark := s.net.Len()
	wait := s.waitLifecycle(p, proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return nil, err
	}
	wait()
	if err := actx.Err(); err != nil {
		return nil, fmt.Errorf("timeout %s exceeded waiting for DOMContentLoaded: %w", timeout, err)
	}

	resp, _ := s.net.DocumentSince(mark)
	return resp, nil
}

func (s *rodSession) WaitNavigation(ctx context.Context, timeout time.Duration) error {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	s.waitLifecycle(s.page.Context(actx), proto.PageLifecycleEventNameDOMContentLoaded)()
	return actx.Err()
}

// waitLifecycle must be called before the action that triggers the event.
func (s *rodSession) waitLifecycle(p *rod.Page, name proto.PageLifecycleEventName) func() {
	_ = proto.PageSetLifecycleEventsEnabled{Enabled: true}.Call(p)
	frame := s.page.FrameID
	return p.EachEvent(func(e *proto.PageLifecycleEvent) bool {
		return e.Name == name && e.FrameID == frame
	})
}

func (s *rodSession) WaitReady(ctx context.Context, timeout time.Duration) error {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.page.Context(actx).Wait(rod.Eval(`() => document.readyState !== 'loading'`))
}

func (s *rodSession) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	s.page.Context(actx).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	if err := ctx.Err(); err != nil {
		return err
	}
	if actx.Err() != nil {
		return fmt.Errorf("network not idle after %s", timeout)
	}
	return nil
}

func (s *rodSession) Content(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) Info(ctx context.Context) (string, string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", "", err
	}
	return info.Title, info.URL, nil
}

func (s *rodSession) Gesture(ctx context.Context) Outcome {
	p := s.page.Context(ctx)
	to := proto.Point{X: 400 + rand.Float64()*600, Y: 300 + rand.Float64()*200}
	if err := p.Mouse.MoveLinear(to, 3); err != nil {
		return Outcome{Name: "gesture", Err: err}
	}
	_, err := p.Eval(`() => window.scrollBy(0, 80)`)
	return Outcome{Name: "gesture", Err: err}
}

func (s *rodSession) ClickChallengeWidget(ctx context.Context) (bool, error) {
	p := s.page.Context(ctx)
	frames, err := p.Elements("iframe")
	if err != nil {
		return false, err
	}
	for _, el := range frames {
		src, err := el.Attribute("src")
		if err != nil || src == nil || !containsAny(*src, challengeFrameMarkers) {
			continue
		}
		frame, err := el.Frame()
		if err != nil {
			continue
		}
		has, target, err := frame.Has(challengeWidgetSelector)
		if err != nil || !has {
			continue
		}
		if err := target.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (s *rodSession) Dismiss(ctx context.Context, rules []Rule) (DismissReport, error) {
	var report DismissReport
	res, err := s.page.Context(ctx).Eval(dismissJS, rules)
	if err != nil {
		return report, err
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return report, err
	}
	err = json.Unmarshal(raw, &report)
	return report, err
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (s *rodSession) Network() *NetworkLog { return s.net }

// Close tears the session down in reverse order of creation and always
// kills the process, even when the CDP calls before it fail.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop hijack: %w", err))
			}
		}
		s.cancel()
		if s.page != nil {
			if err := s.page.Timeout(closeTimeout).Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.incognito != nil {
			if err := s.incognito.Timeout(closeTimeout).Close(); err != nil {
				errs = append(errs, fmt.Errorf("dispose context: %w", err))
			}
		}
		if err := s.root.Timeout(closeTimeout).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// fromHeadersMap flattens response headers, lower-casing names.
func fromHeadersMap(headers proto.NetworkHeaders) map[string]string {
	m := make(map[string]string, len(headers))
	for k, v := range headers {
		m[strings.ToLower(k)] = v.Str()
	}
	return m
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
