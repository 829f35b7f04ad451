package robots

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration, honouring a TTL (default 1h)
- Enforce allow/disallow rules before enqueue
- Fall back to "allow" when robots.txt cannot be parsed
- Bypass enforcement (but still log) in development mode

Robots checks occur before a URL enters the frontier.
*/

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/foofork/riptide/internal/metadata"
	"github.com/temoto/robotstxt"
)

const DefaultTTL = time.Hour

type entry struct {
	result    RobotsFetchResult
	parsed    *robotstxt.RobotsData
	parseOK   bool
	fetchedAt time.Time
}

// Robot is the TTL'd, host-keyed robots.txt authority used by the
// Fetcher's admission check. It owns its own freshness window on top of
// RobotsFetcher's raw-bytes cache: a stale entry triggers a refetch
// rather than being served past its TTL.
type Robot struct {
	fetcher      *RobotsFetcher
	metadataSink metadata.MetadataSink
	ttl          time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRobot(fetcher *RobotsFetcher, metadataSink metadata.MetadataSink, ttl time.Duration) *Robot {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Robot{
		fetcher:      fetcher,
		metadataSink: metadataSink,
		ttl:          ttl,
		entries:      make(map[string]*entry),
	}
}

// IsAllowed decides whether targetURL may be crawled under userAgent. In
// devMode the decision is always Allowed, but the would-be verdict is
// still logged via the metadata sink so operators can see what
// production would have done.
func (r *Robot) IsAllowed(ctx context.Context, targetURL url.URL, userAgent string, devMode bool) Decision {
	e, err := r.resolve(ctx, targetURL, userAgent)
	if err != nil {
		if r.metadataSink != nil {
			r.metadataSink.RecordError(time.Now(), "robots", "is_allowed",
				mapRobotsErrorToMetadataCause(err), err.Error(),
				[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, targetURL.String())})
		}
		// Fallback to allow on fetch/parse failure.
		return Decision{Url: targetURL, Allowed: true, Reason: EmptyRuleSet}
	}

	allowed := true
	var crawlDelay *time.Duration
	if e.parseOK && e.parsed != nil {
		group := e.parsed.FindGroup(userAgent)
		allowed = group.Test(targetURL.Path)
		if group.CrawlDelay > 0 {
			d := group.CrawlDelay
			crawlDelay = &d
		}
	}

	reason := AllowedByRobots
	if !allowed {
		reason = DisallowedByRobots
	}

	decision := Decision{Url: targetURL, Allowed: allowed, Reason: reason, CrawlDelay: crawlDelay}

	if devMode {
		if r.metadataSink != nil && !allowed {
			r.metadataSink.RecordError(time.Now(), "robots", "is_allowed_dev_bypass",
				metadata.CausePolicyDisallow, "robots would have disallowed this URL in dev mode",
				[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, targetURL.String())})
		}
		decision.Allowed = true
		return decision
	}

	return decision
}

func (r *Robot) resolve(ctx context.Context, targetURL url.URL, userAgent string) (*entry, *RobotsError) {
	host := targetURL.Host

	r.mu.Lock()
	e, ok := r.entries[host]
	r.mu.Unlock()
	if ok && time.Since(e.fetchedAt) < r.ttl {
		return e, nil
	}

	result, fetchErr := r.fetcher.Fetch(ctx, schemeOrDefault(targetURL), host)
	if fetchErr != nil {
		if ok {
			// Stale entry beats failing the crawl outright.
			return e, nil
		}
		return nil, fetchErr
	}

	parsed, parseErr := robotstxt.FromStatusAndBytes(result.HTTPStatus, []byte(result.RawContent))
	newEntry := &entry{
		result:    result,
		parsed:    parsed,
		parseOK:   parseErr == nil,
		fetchedAt: time.Now(),
	}

	r.mu.Lock()
	r.entries[host] = newEntry
	r.mu.Unlock()

	return newEntry, nil
}

func schemeOrDefault(u url.URL) string {
	if u.Scheme == "" {
		return "https"
	}
	return u.Scheme
}
