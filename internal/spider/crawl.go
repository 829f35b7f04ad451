// Crawl execution: one Frontier per crawl, a bounded pool of workers
// pulling CrawlRequests off it, and a single admission chain (rate
// limiter -> robots -> host slot -> circuit breaker) run per in-flight
// request.
package spider

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/foofork/riptide/internal/assets"
	"github.com/foofork/riptide/internal/breaker"
	"github.com/foofork/riptide/internal/engine"
	"github.com/foofork/riptide/internal/extractor"
	"github.com/foofork/riptide/internal/fetcher"
	"github.com/foofork/riptide/internal/frontier"
	"github.com/foofork/riptide/internal/model"
	"github.com/foofork/riptide/internal/normalize"
	"github.com/foofork/riptide/internal/sanitizer"
	"github.com/foofork/riptide/internal/wasmpool"
	"github.com/foofork/riptide/pkg/extractortext"
	"github.com/foofork/riptide/pkg/pipeerr"
	"github.com/foofork/riptide/pkg/retry"
)

// Crawl runs spec to completion against one fresh Frontier and returns
// its summary plus every ExtractedDoc produced along the way. A Spider
// may run several Crawls sequentially (its process-scoped resources --
// rate limiter, robots cache, timeout manager, WASM pool, host breakers
// -- are shared and keep learning across them) but never concurrently:
// the caller owns serialising calls to Crawl.
func (s *Spider) Crawl(ctx context.Context, spec model.CrawlSpec) (model.CrawlSummary, []*model.ExtractedDoc) {
	start := time.Now()

	fr := frontier.New(spec.Strategy, spec.HostRules, spec.Budget, spec.Query, 0)
	for _, seed := range spec.Seeds {
		fr.Push(seed, 0, model.DiscoverySeed, "")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu          sync.Mutex
		docs        []*model.ExtractedDoc
		domainsSeen = make(map[string]struct{})
		discovered  = make(map[string]struct{})
		stopReason  string
	)

	var inFlight atomic.Int64
	sem := make(chan struct{}, s.cfg.WorkerCount)
	var wg sync.WaitGroup

pull:
	for {
		if ctx.Err() != nil {
			stopReason = "cancelled"
			break pull
		}
		if reason, stop := fr.ShouldStop(); stop {
			stopReason = reason
			break pull
		}

		req, ok := fr.Next()
		if !ok {
			if inFlight.Load() == 0 {
				stopReason = "completed"
				break pull
			}
			select {
			case <-ctx.Done():
				stopReason = "cancelled"
				break pull
			case <-time.After(10 * time.Millisecond):
				continue pull
			}
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			stopReason = "cancelled"
			break pull
		}
		inFlight.Add(1)
		wg.Add(1)

		go func(req model.CrawlRequest) {
			defer func() {
				<-sem
				inFlight.Add(-1)
				wg.Done()
			}()

			doc, links, outcome := s.processOne(ctx, spec, req, fr.Budget())
			fr.MarkDone(outcome)

			if doc != nil {
				mu.Lock()
				docs = append(docs, doc)
				domainsSeen[req.URL().Host] = struct{}{}
				mu.Unlock()
				fr.RecordQuality(doc.QualityScore())
			}

			for _, link := range links {
				pushOutcome, _ := fr.Push(link, req.Depth()+1, model.DiscoveryLink, "")
				if pushOutcome == frontier.Accepted {
					mu.Lock()
					discovered[link.String()] = struct{}{}
					mu.Unlock()
				}
			}
		}(req)
	}

	wg.Wait()

	done, failed, _ := fr.Stats()
	domains := make([]string, 0, len(domainsSeen))
	for d := range domainsSeen {
		domains = append(domains, d)
	}
	discoveredURLs := make([]string, 0, len(discovered))
	for u := range discovered {
		discoveredURLs = append(discoveredURLs, u)
	}

	summary := model.CrawlSummary{
		PagesCrawled:   int(done),
		PagesFailed:    int(failed),
		DurationSecs:   time.Since(start).Seconds(),
		StopReason:     stopReason,
		Domains:        domains,
		DiscoveredURLs: discoveredURLs,
	}

	if s.crawlFinalizer != nil {
		s.crawlFinalizer.RecordFinalCrawlStats(summary.PagesCrawled, summary.PagesFailed, 0, time.Since(start))
	}

	return summary, docs
}

// hostBreaker returns this process's circuit breaker for host,
// constructing one lazily on first use. Breakers are process-scoped,
// so they keep their trip history across requests and across Crawl
// calls on the same Spider.
func (s *Spider) hostBreaker(host string) *breaker.Breaker {
	s.hostBreakersMu.Lock()
	defer s.hostBreakersMu.Unlock()
	b, ok := s.hostBreakers[host]
	if !ok {
		b = breaker.NewDefault(breaker.RealClock{})
		s.hostBreakers[host] = b
	}
	return b
}

// processOne runs one CrawlRequest through admission, fetch, engine
// selection and extraction, in dependency order: rate limit -> robots
// -> host slot -> circuit breaker -> fetch -> gate -> extract (with
// escalation) -> optional sanitize/convert/resolve/normalize/store
// pipeline. It returns the produced document (nil on
// any admission rejection or terminal failure), the links it found to
// feed back into the Frontier, and the Outcome to record.
func (s *Spider) processOne(ctx context.Context, spec model.CrawlSpec, req model.CrawlRequest, budget *frontier.Budget) (*model.ExtractedDoc, []url.URL, frontier.Outcome) {
	target := req.URL()
	host := target.Host

	if delay := s.rateLimiter.ResolveDelay(host); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, nil, frontier.OutcomeFiltered
		}
	}

	decision := s.robot.IsAllowed(ctx, target, s.cfg.UserAgent, spec.DevMode)
	if spec.RespectRobots && !decision.Allowed {
		// Robots denial counts toward pages_failed, not toward the
		// filtered bucket: the URL was admitted and then refused.
		return nil, nil, frontier.OutcomeFailed
	}
	if decision.CrawlDelay != nil {
		s.rateLimiter.SetCrawlDelay(host, *decision.CrawlDelay)
	}

	slot := s.hostSlot(host)
	select {
	case slot <- struct{}{}:
		defer func() { <-slot }()
	case <-ctx.Done():
		return nil, nil, frontier.OutcomeFiltered
	}

	hb := s.hostBreaker(host)
	if !hb.Allow() {
		return nil, nil, frontier.OutcomeFailed
	}

	domain := registrableDomain(target)
	fetchTimeout := s.timeouts.For(domain)
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	fetchParam := fetcher.NewFetchParam(target, s.cfg.UserAgent)
	retryParam := retry.NewRetryParam(s.cfg.RetryBaseDelay, s.cfg.RetryJitter, s.cfg.RandomSeed, s.cfg.RetryMaxAttempts, backoffParam())

	fetchStart := time.Now()
	fres, ferr := s.fetcher.Fetch(fetchCtx, req.Depth(), fetchParam, retryParam)
	elapsed := time.Since(fetchStart)

	if ferr != nil {
		hb.Failure()
		var fe *fetcher.FetchError
		isFetchErr := errors.As(ferr, &fe)
		// The adaptive timeout grows on a 5xx or a transport failure (which
		// is how a request cut by the fetch deadline surfaces), not on 4xx
		// or content rejections.
		if isFetchErr && (fe.Cause == fetcher.ErrCauseRequest5xx || fe.Cause == fetcher.ErrCauseNetworkFailure) {
			s.timeouts.RecordFailure(domain, time.Now())
		}
		// Only an explicit rate-limit signal earns an exponential hold on
		// the whole host; ordinary failures are the breaker's job.
		if isFetchErr && fe.Cause == fetcher.ErrCauseRequestTooMany {
			s.rateLimiter.Backoff(host)
		}
		return nil, nil, frontier.OutcomeFailed
	}
	hb.Success()
	s.timeouts.RecordSuccess(domain, elapsed, time.Now())
	s.rateLimiter.ResetBackoff(host)
	s.rateLimiter.MarkLastFetchAsNow(host)
	if budget != nil {
		budget.RecordPage(int64(fres.SizeByte()))
	}

	modelFetchResult := model.NewFetchResult(fres.Code(), fres.Headers(), fres.Body(), fres.URL(), elapsed, false, fres.FetchedAt())

	now := time.Now()
	gateDecision, structuredDoc := s.gate.DecideWithProfile(modelFetchResult, spec.Flags, domain, s.domainProfiles, now)

	if structuredDoc != nil {
		doc := docFromStructured(target, *structuredDoc)
		links := discoverLinks(target, modelFetchResult.Body())
		doc.SetLinks(links)
		return doc, links, frontier.OutcomeSuccess
	}

	s.domainProfiles.Record(domain, engine.DensityHint(gateDecision), true, now)

	doc, links, err := s.runEngine(ctx, spec, target, req.Depth(), gateDecision, modelFetchResult)
	if err != nil {
		return nil, nil, frontier.OutcomeFailed
	}
	return doc, links, frontier.OutcomeSuccess
}

// runEngine dispatches to the engine the Gate named. Probe-first
// escalation lives here rather than inside Gate.Decide so the Gate
// stays a pure function: a Wasm probe whose quality falls under
// engine.ProbeQualityThreshold is escalated to Headless, and the
// monotonic Fast -> Wasm -> Headless ordering from model.EngineDecision
// is never violated.
func (s *Spider) runEngine(ctx context.Context, spec model.CrawlSpec, target url.URL, depth int, decision model.EngineDecision, fr model.FetchResult) (*model.ExtractedDoc, []url.URL, error) {
	switch decision.Engine() {
	case model.EngineFast:
		doc, links, err := s.buildDoc(model.EngineFast, depth, spec.HostRules.AllowedPathPrefix, target, fr.Body())
		if err == nil {
			doc.SetRationale(decision.Rationale())
		}
		return doc, links, err

	case model.EngineWasm:
		doc, links, err := s.extractWasm(ctx, spec, target, depth, fr.Body())
		if err != nil {
			return nil, nil, err
		}
		if decision.Rationale() == "probe-first-candidate" && doc.QualityScore() < engine.ProbeQualityThreshold {
			escalated := decision.Escalate("probe→escalate")
			hdoc, hlinks, herr := s.extractHeadless(ctx, spec, target, depth)
			if herr != nil {
				return nil, nil, herr
			}
			hdoc.SetRationale(escalated.Rationale())
			return hdoc, hlinks, nil
		}
		doc.SetRationale(decision.Rationale())
		return doc, links, nil

	case model.EngineHeadless:
		doc, links, err := s.extractHeadless(ctx, spec, target, depth)
		if err == nil {
			doc.SetRationale(decision.Rationale())
		}
		return doc, links, err

	default:
		return nil, nil, pipeerr.NewExtractionFailed("unknown", nil)
	}
}

// extractWasm exercises the WASM pool's acquire/release/health/circuit
// bookkeeping via Extract, then always derives the returned document
// through the same Fast DOM path buildDoc uses. No compiled ".wasm"
// extractor component ships in this tree (see DESIGN.md), so
// runExtraction only ever returns a stub doc with URL/Engine set; the
// pool is still real infrastructure worth exercising for its health and
// circuit semantics, it just never is the source of extracted content.
func (s *Spider) extractWasm(ctx context.Context, spec model.CrawlSpec, target url.URL, depth int, body []byte) (*model.ExtractedDoc, []url.URL, error) {
	wreq := wasmpool.Request{URL: target, HTML: body, Mode: spec.ExtractMode}
	_, _ = s.wasmPool.Extract(ctx, wreq)
	return s.buildDoc(model.EngineWasm, depth, spec.HostRules.AllowedPathPrefix, target, body)
}

func (s *Spider) extractHeadless(ctx context.Context, spec model.CrawlSpec, target url.URL, depth int) (*model.ExtractedDoc, []url.URL, error) {
	eng, err := s.headlessEngine()
	if err != nil {
		return nil, nil, err
	}
	rendered, err := eng.Fetch(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	return s.buildDoc(model.EngineHeadless, depth, spec.HostRules.AllowedPathPrefix, target, rendered.Body())
}

// buildDoc runs the Fast DOM extractor and sanitizer against body
// regardless of which engine tier named it the winner -- Wasm and
// Headless both hand their resulting HTML back through the same
// extraction/sanitization path, tagging the result with the engine that
// actually produced it. When cfg.OutputDir is set the optional
// convert -> resolve -> normalize -> store pipeline also runs, filling
// in Markdown/Title from the frontmatter the normalizer derives.
func (s *Spider) buildDoc(eng model.Engine, depth int, allowedPathPrefixes []string, target url.URL, body []byte) (*model.ExtractedDoc, []url.URL, error) {
	result, err := s.extractor.Extract(target, body)
	if err != nil {
		return nil, nil, err
	}

	sanitized, err := s.sanitizer.Sanitize(result.ContentNode)
	if err != nil {
		return nil, nil, err
	}

	links := resolveDiscoveredLinks(target, sanitized.GetDiscoveredURLs())
	media := resolveDiscoveredMedia(target, sanitized.GetDiscoveredMedia())

	params := extractor.DefaultExtractParam()
	quality := extractor.QualityScore(result, params)

	doc := model.NewExtractedDoc(target, eng).
		SetTitle(extractortext.Title(result.DocumentRoot)).
		SetText(extractortext.VisibleText(sanitized.GetContentNode())).
		SetLinks(links).
		SetMedia(media).
		SetQualityScore(quality)

	if s.cfg.OutputDir != "" {
		s.runArtifactPipeline(context.Background(), target, depth, allowedPathPrefixes, sanitized, doc)
	}

	return doc, links, nil
}

// runArtifactPipeline is the optional convert -> resolve -> normalize ->
// store leg of the pipeline, skipped entirely when cfg.OutputDir is
// empty. Failures here are logged by each stage's own metadata sink
// call and are not fatal to the crawl: the caller already has a usable
// ExtractedDoc from buildDoc's DOM-derived title/text/links.
func (s *Spider) runArtifactPipeline(ctx context.Context, target url.URL, depth int, allowedPathPrefixes []string, sanitized sanitizer.SanitizedHTMLDoc, doc *model.ExtractedDoc) {
	conv, err := s.convertRule.Convert(sanitized)
	if err != nil {
		return
	}

	resolveParam := assets.NewResolveParam(s.cfg.OutputDir, s.cfg.MaxAssetSize, s.cfg.HashAlgo)
	retryParam := retry.NewRetryParam(s.cfg.RetryBaseDelay, s.cfg.RetryJitter, s.cfg.RandomSeed, s.cfg.RetryMaxAttempts, backoffParam())

	assetful, err := s.resolver.Resolve(ctx, target, conv, resolveParam, retryParam)
	if err != nil {
		return
	}

	normalizeParam := normalize.NewNormalizeParam(s.cfg.AppVersion, time.Now(), s.cfg.HashAlgo, depth, allowedPathPrefixes)
	normalized, err := s.normalizer.Normalize(target, assetful, normalizeParam)
	if err != nil {
		return
	}

	doc.SetMarkdown(string(normalized.Content()))
	if title := normalized.Frontmatter().Title(); title != "" {
		doc.SetTitle(title)
	}
	if section := normalized.Frontmatter().Section(); section != "" {
		doc.SetCategories([]string{section})
	}

	_, _ = s.storageSink.Write(s.cfg.OutputDir, normalized, s.cfg.HashAlgo)
}

// docFromStructured builds the ExtractedDoc straight from the Gate's
// JSON-LD short-circuit: no further extraction method runs once a
// complete Article/Event schema is found.
func docFromStructured(target url.URL, doc engine.StructuredDoc) *model.ExtractedDoc {
	title := doc.Headline
	if title == "" {
		title = doc.Name
	}
	return model.NewExtractedDoc(target, model.EngineFast).
		SetTitle(title).
		SetText(doc.Body).
		SetQualityScore(80).
		SetRationale("jsonld-shortcircuit")
}

// discoverLinks parses raw fetched HTML directly (the JSON-LD
// short-circuit path never runs the sanitizer, so there is no
// SanitizedHTMLDoc.GetDiscoveredURLs() to draw on here).
func discoverLinks(target url.URL, body []byte) []url.URL {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var out []url.URL
	gq.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		rel, err := url.Parse(href)
		if err != nil {
			return
		}
		out = append(out, *target.ResolveReference(rel))
	})
	return out
}

// resolveDiscoveredLinks resolves the sanitizer's raw (possibly
// relative) hrefs against the page's final URL; the Frontier itself
// canonicalises on Push, so only absolute resolution happens here.
func resolveDiscoveredLinks(target url.URL, raw []url.URL) []url.URL {
	out := make([]url.URL, 0, len(raw))
	for _, rel := range raw {
		u := rel
		out = append(out, *target.ResolveReference(&u))
	}
	return out
}

// resolveDiscoveredMedia resolves the sanitizer's raw media src
// references against the page's final URL, same as resolveDiscoveredLinks.
func resolveDiscoveredMedia(target url.URL, raw []sanitizer.MediaRef) []model.Media {
	out := make([]model.Media, 0, len(raw))
	for _, ref := range raw {
		rel, err := url.Parse(ref.URL)
		if err != nil {
			continue
		}
		out = append(out, model.Media{URL: target.ResolveReference(rel).String(), Kind: ref.Kind})
	}
	return out
}

// registrableDomain reduces a host to the timeout manager's keying
// granularity: host without a leading "www." so "docs.example.com" and
// "www.example.com" still share one adaptive-timeout profile only when
// they are the same host. Timeout profiles key per registrable domain,
// but this tree has no public-suffix list dependency to derive eTLD+1,
// so host (minus "www.") is the closest available approximation.
func registrableDomain(u url.URL) string {
	host := u.Hostname()
	if len(host) > 4 && host[:4] == "www." {
		return host[4:]
	}
	return host
}
