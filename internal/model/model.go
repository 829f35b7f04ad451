// Package model holds the shared value types that flow between the
// Frontier, Fetcher, EngineSelector and WasmPool components. Everything
// here is a plain, serialisable value: no package in this tree other than
// the orchestrator is allowed to mutate another package's state through
// these types, so fields stay unexported and accessed through methods.
package model

import (
	"net/url"
	"time"
)

// Engine identifies which extraction backend produced (or should produce)
// a document.
type Engine int

const (
	EngineFast Engine = iota
	EngineWasm
	EngineHeadless
)

func (e Engine) String() string {
	switch e {
	case EngineFast:
		return "fast"
	case EngineWasm:
		return "wasm"
	case EngineHeadless:
		return "headless"
	default:
		return "unknown"
	}
}

// DiscoverySource records why a URL entered the frontier.
type DiscoverySource int

const (
	DiscoverySeed DiscoverySource = iota
	DiscoveryLink
)

// FrontierURL is a single candidate queued for crawling.
type FrontierURL struct {
	canonicalURL url.URL
	depth        int
	priority     float64
	source       DiscoverySource
	attempts     int
}

func NewFrontierURL(canonicalURL url.URL, depth int, priority float64, source DiscoverySource) FrontierURL {
	return FrontierURL{
		canonicalURL: canonicalURL,
		depth:        depth,
		priority:     priority,
		source:       source,
	}
}

func (f FrontierURL) URL() url.URL              { return f.canonicalURL }
func (f FrontierURL) Depth() int                { return f.depth }
func (f FrontierURL) Priority() float64         { return f.priority }
func (f FrontierURL) Source() DiscoverySource   { return f.source }
func (f FrontierURL) Attempts() int             { return f.attempts }
func (f FrontierURL) WithAttemptIncrement() FrontierURL {
	f.attempts++
	return f
}

// CrawlRequest is what the Frontier hands the Fetcher for a single URL.
type CrawlRequest struct {
	targetURL     url.URL
	referer       string
	depth         int
	strategyHints StrategyHints
}

// StrategyHints passes strategy-derived context (query terms, current
// engine escalation state for this request) down the pipeline without
// forcing the Fetcher or EngineSelector to know about Frontier internals.
type StrategyHints struct {
	Query          string
	ProbeFirstSPA  bool
	EscalatedOnce  bool
}

func NewCrawlRequest(targetURL url.URL, referer string, depth int, hints StrategyHints) CrawlRequest {
	return CrawlRequest{targetURL: targetURL, referer: referer, depth: depth, strategyHints: hints}
}

func (c CrawlRequest) URL() url.URL             { return c.targetURL }
func (c CrawlRequest) Referer() string          { return c.referer }
func (c CrawlRequest) Depth() int                { return c.depth }
func (c CrawlRequest) Hints() StrategyHints      { return c.strategyHints }

// FetchResult is what the Fetcher hands the EngineSelector.
type FetchResult struct {
	statusCode int
	headers    map[string]string
	body       []byte
	finalURL   url.URL
	elapsed    time.Duration
	fromCache  bool
	fetchedAt  time.Time
}

func NewFetchResult(statusCode int, headers map[string]string, body []byte, finalURL url.URL, elapsed time.Duration, fromCache bool, fetchedAt time.Time) FetchResult {
	return FetchResult{
		statusCode: statusCode,
		headers:    headers,
		body:       body,
		finalURL:   finalURL,
		elapsed:    elapsed,
		fromCache:  fromCache,
		fetchedAt:  fetchedAt,
	}
}

func (f FetchResult) StatusCode() int             { return f.statusCode }
func (f FetchResult) Headers() map[string]string  { return f.headers }
func (f FetchResult) Body() []byte                { return f.body }
func (f FetchResult) FinalURL() url.URL           { return f.finalURL }
func (f FetchResult) Elapsed() time.Duration      { return f.elapsed }
func (f FetchResult) FromCache() bool             { return f.fromCache }
func (f FetchResult) FetchedAt() time.Time        { return f.fetchedAt }

// EngineDecision is the Gate's output: which engine to use, how confident
// it is, and a short machine-stable rationale tag (asserted in tests, so
// this is never free text).
type EngineDecision struct {
	engine     Engine
	confidence float64
	rationale  string
}

func NewEngineDecision(engine Engine, confidence float64, rationale string) EngineDecision {
	return EngineDecision{engine: engine, confidence: confidence, rationale: rationale}
}

func (d EngineDecision) Engine() Engine        { return d.engine }
func (d EngineDecision) Confidence() float64   { return d.confidence }
func (d EngineDecision) Rationale() string     { return d.rationale }

// Escalate returns a copy of d escalated to the next engine tier, per the
// monotonic Fast -> Wasm -> Headless ordering. Escalating past Headless is
// a no-op: there is nowhere further to go.
func (d EngineDecision) Escalate(rationale string) EngineDecision {
	next := d.engine
	switch d.engine {
	case EngineFast:
		next = EngineWasm
	case EngineWasm:
		next = EngineHeadless
	}
	return EngineDecision{engine: next, confidence: d.confidence, rationale: rationale}
}

// Media is a single non-text asset reference discovered in a document.
type Media struct {
	URL  string
	Kind string
}

// ExtractedDoc is the final, pipeline-owned output of one crawled URL.
type ExtractedDoc struct {
	url          url.URL
	title        string
	text         string
	markdown     string
	html         string
	links        []url.URL
	media        []Media
	language     string
	categories   []string
	qualityScore int
	engine       Engine
	rationale    string
}

func NewExtractedDoc(sourceURL url.URL, engine Engine) *ExtractedDoc {
	return &ExtractedDoc{url: sourceURL, engine: engine}
}

func (d *ExtractedDoc) URL() url.URL         { return d.url }
func (d *ExtractedDoc) Title() string        { return d.title }
func (d *ExtractedDoc) Text() string         { return d.text }
func (d *ExtractedDoc) Markdown() string     { return d.markdown }
func (d *ExtractedDoc) HTML() string         { return d.html }
func (d *ExtractedDoc) Links() []url.URL     { return d.links }
func (d *ExtractedDoc) Media() []Media       { return d.media }
func (d *ExtractedDoc) Language() string     { return d.language }
func (d *ExtractedDoc) Categories() []string { return d.categories }
func (d *ExtractedDoc) QualityScore() int    { return d.qualityScore }
func (d *ExtractedDoc) Engine() Engine       { return d.engine }

// Rationale carries the Gate's (possibly escalated) EngineDecision
// rationale tag forward onto the document it produced, so a caller
// inspecting the final ExtractedDoc can see "probe→escalate" rather
// than just the engine tier that ultimately ran.
func (d *ExtractedDoc) Rationale() string { return d.rationale }

func (d *ExtractedDoc) SetTitle(title string) *ExtractedDoc       { d.title = title; return d }
func (d *ExtractedDoc) SetText(text string) *ExtractedDoc         { d.text = text; return d }
func (d *ExtractedDoc) SetMarkdown(md string) *ExtractedDoc       { d.markdown = md; return d }
func (d *ExtractedDoc) SetHTML(html string) *ExtractedDoc         { d.html = html; return d }
func (d *ExtractedDoc) SetLinks(links []url.URL) *ExtractedDoc    { d.links = links; return d }
func (d *ExtractedDoc) SetMedia(media []Media) *ExtractedDoc      { d.media = media; return d }
func (d *ExtractedDoc) SetLanguage(lang string) *ExtractedDoc     { d.language = lang; return d }
func (d *ExtractedDoc) SetCategories(cats []string) *ExtractedDoc { d.categories = cats; return d }
func (d *ExtractedDoc) SetQualityScore(score int) *ExtractedDoc   { d.qualityScore = score; return d }
func (d *ExtractedDoc) SetRationale(rationale string) *ExtractedDoc {
	d.rationale = rationale
	return d
}
