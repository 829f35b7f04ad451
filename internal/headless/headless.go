// Package headless implements the Headless extraction engine, the third
// escalation tier: a pooled, stealth-patched Chromium
// instance driven via go-rod, used only after Fast and Wasm have both
// been exhausted or the content classifies as a JS-rendered
// placeholder.
//
// Grounded on IshaanNene-ScrapeGoat-And-ArchEnemy/internal/fetcher/
// browser.go's BrowserFetcher -- the launcher flags, page-pool channel
// and WaitStable navigation sequence are kept; the surface is adapted
// from a Fetcher (request/response) into an extraction engine that
// returns the pipeline's own model.FetchResult so the Gate can treat a
// headless render exactly like any other fetch.
package headless

import (
	"context"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/foofork/riptide/internal/model"
	"github.com/foofork/riptide/pkg/pipeerr"
)

const (
	DefaultMaxPages       = 4
	DefaultNavigateTimeout = 30 * time.Second
	DefaultStabilityWait  = 300 * time.Millisecond
)

// Config tunes the pool size and navigation waits; zero values fall
// back to the package defaults above.
type Config struct {
	MaxPages        int
	NavigateTimeout time.Duration
	StabilityWait   time.Duration
	UserAgent       string
	Stealth         bool
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = DefaultNavigateTimeout
	}
	if c.StabilityWait <= 0 {
		c.StabilityWait = DefaultStabilityWait
	}
	return c
}

// Engine drives a single headless Chromium instance behind a bounded
// page pool.
type Engine struct {
	browser  *rod.Browser
	cfg      Config
	pagePool chan *rod.Page
}

// New launches a headless Chromium instance with the usual
// automation-hardening flags.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-web-security").
		Set("disable-features", "IsolateOrigins,site-per-process").
		Set("disable-blink-features", "AutomationControlled")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, pipeerr.NewNetwork(err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, pipeerr.NewNetwork(err)
	}

	return &Engine{
		browser:  browser,
		cfg:      cfg,
		pagePool: make(chan *rod.Page, cfg.MaxPages),
	}, nil
}

// Fetch navigates to target and returns the rendered DOM as a
// model.FetchResult, letting the Gate and extractor treat a headless
// render identically to a Fast-engine fetch.
func (e *Engine) Fetch(ctx context.Context, target url.URL) (model.FetchResult, error) {
	start := time.Now()

	page, err := e.getPage()
	if err != nil {
		return model.FetchResult{}, pipeerr.NewNetwork(err)
	}
	defer e.putPage(page)

	if e.cfg.Stealth {
		if sp, err := stealth.Page(e.browser); err == nil {
			page = sp
		}
	}

	if e.cfg.UserAgent != "" {
		_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: e.cfg.UserAgent})
	}

	navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Timeout(e.cfg.NavigateTimeout).Navigate(target.String()); err != nil {
		if navCtx.Err() != nil {
			return model.FetchResult{}, pipeerr.NewTimeout("headless_navigate", e.cfg.NavigateTimeout, false)
		}
		return model.FetchResult{}, pipeerr.NewNetwork(err)
	}

	// A stability-wait failure is not fatal: the page may simply have
	// long-lived background network activity (analytics, polling).
	_ = page.Timeout(e.cfg.NavigateTimeout).WaitStable(e.cfg.StabilityWait)

	html, err := page.HTML()
	if err != nil {
		return model.FetchResult{}, pipeerr.NewNetwork(err)
	}

	finalURL := target
	if info, err := page.Info(); err == nil && info != nil {
		if u, perr := url.Parse(info.URL); perr == nil {
			finalURL = *u
		}
	}

	return model.NewFetchResult(200, nil, []byte(html), finalURL, time.Since(start), false, time.Now()), nil
}

// getPage pulls a warm page from the pool or opens a fresh one.
func (e *Engine) getPage() (*rod.Page, error) {
	select {
	case page := <-e.pagePool:
		return page, nil
	default:
		return e.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
}

// putPage blanks the page to release its memory before returning it to
// the pool, or closes it outright if the pool is already full.
func (e *Engine) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")
	select {
	case e.pagePool <- page:
	default:
		_ = page.Close()
	}
}

func (e *Engine) Close() error {
	close(e.pagePool)
	for page := range e.pagePool {
		_ = page.Close()
	}
	if e.browser != nil {
		return e.browser.Close()
	}
	return nil
}
