package spider

import (
	"context"
	"net/http"
	"sync"

	"github.com/foofork/riptide/internal/assets"
	"github.com/foofork/riptide/internal/breaker"
	"github.com/foofork/riptide/internal/engine"
	"github.com/foofork/riptide/internal/extractor"
	"github.com/foofork/riptide/internal/fetcher"
	"github.com/foofork/riptide/internal/headless"
	"github.com/foofork/riptide/internal/mdconvert"
	"github.com/foofork/riptide/internal/metadata"
	"github.com/foofork/riptide/internal/normalize"
	"github.com/foofork/riptide/internal/robots"
	"github.com/foofork/riptide/internal/robots/cache"
	"github.com/foofork/riptide/internal/sanitizer"
	"github.com/foofork/riptide/internal/storage"
	"github.com/foofork/riptide/internal/timeout"
	"github.com/foofork/riptide/internal/wasmpool"
	"github.com/foofork/riptide/pkg/limiter"
)

// Spider is the single control-plane authority for one crawl: it owns
// every process-scoped shared resource (rate limiter, robots cache,
// timeout profiles, host breakers, WASM pool) and is the only component
// allowed to decide whether a URL may enter the frontier.
type Spider struct {
	cfg Config

	metadataSink   metadata.MetadataSink
	crawlFinalizer metadata.CrawlFinalizer

	fetcher     fetcher.Fetcher
	robot       *robots.Robot
	rateLimiter limiter.RateLimiter
	timeouts    *timeout.Manager

	gate           *engine.Gate
	domainProfiles *engine.DomainProfileStore
	extractor      extractor.Extractor
	wasmPool       *wasmpool.Pool

	headlessOnce sync.Once
	headlessEng  *headless.Engine
	headlessErr  error

	sanitizer   sanitizer.Sanitizer
	convertRule mdconvert.ConvertRule
	resolver    assets.Resolver
	normalizer  normalize.Constraint
	storageSink storage.Sink

	hostBreakersMu sync.Mutex
	hostBreakers   map[string]*breaker.Breaker

	hostSlotsMu sync.Mutex
	hostSlots   map[string]chan struct{}
}

// New constructs a Spider ready to run one or more sequential crawls.
// Callers must call Close when done to release the WASM runtime and any
// headless browser that was lazily started.
func New(cfg Config, metadataSink metadata.MetadataSink, crawlFinalizer metadata.CrawlFinalizer) (*Spider, error) {
	cfg = cfg.withDefaults()

	htmlFetcher := fetcher.NewHtmlFetcher(metadataSink)

	robotsFetcher := robots.NewRobotsFetcher(metadataSink, cfg.UserAgent, cache.NewMemoryCache())
	robotsFetcher.SetTTL(cfg.RobotsTTL)
	robot := robots.NewRobot(robotsFetcher, metadataSink, cfg.RobotsTTL)

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetRandomSeed(cfg.RandomSeed)

	wasmPool, err := wasmpool.New(context.Background(), cfg.Wasm)
	if err != nil {
		return nil, err
	}

	ext := extractor.NewDomExtractor(metadataSink)
	htmlSanitizer := sanitizer.NewHTMLSanitizer(metadataSink)
	convertRule := mdconvert.NewRule(metadataSink)
	resolver := assets.NewLocalResolver(metadataSink, &http.Client{}, cfg.UserAgent)
	markdownConstraint := normalize.NewMarkdownConstraint(metadataSink)
	storageSink := storage.NewLocalSink(metadataSink)

	return &Spider{
		cfg:            cfg,
		metadataSink:   metadataSink,
		crawlFinalizer: crawlFinalizer,
		fetcher:        &htmlFetcher,
		robot:          robot,
		rateLimiter:    rateLimiter,
		timeouts:       timeout.New(),
		gate:           engine.NewGate(),
		domainProfiles: engine.NewDomainProfileStore(),
		extractor:      &ext,
		wasmPool:       wasmPool,
		sanitizer:      &htmlSanitizer,
		convertRule:    convertRule,
		resolver:       &resolver,
		normalizer:     &markdownConstraint,
		storageSink:    &storageSink,
		hostBreakers:   make(map[string]*breaker.Breaker),
		hostSlots:      make(map[string]chan struct{}),
	}, nil
}

// hostSlot returns the per-host in-flight semaphore, sized by
// Config.PerHostConcurrency, creating it lazily on first use. This is the
// cap that keeps concurrent workers from piling onto one origin even when
// the global worker pool is much larger.
func (s *Spider) hostSlot(host string) chan struct{} {
	s.hostSlotsMu.Lock()
	defer s.hostSlotsMu.Unlock()
	slot, ok := s.hostSlots[host]
	if !ok {
		slot = make(chan struct{}, s.cfg.PerHostConcurrency)
		s.hostSlots[host] = slot
	}
	return slot
}

// headlessEngine lazily starts the browser engine on the first Headless
// escalation. A crawl that never needs Headless never pays Chromium's
// startup cost.
func (s *Spider) headlessEngine() (*headless.Engine, error) {
	s.headlessOnce.Do(func() {
		s.headlessEng, s.headlessErr = headless.New(headless.Config{
			MaxPages:        s.cfg.Headless.MaxPages,
			NavigateTimeout: s.cfg.Headless.NavigateTimeout,
			StabilityWait:   s.cfg.Headless.StabilityWait,
			UserAgent:       s.cfg.UserAgent,
			Stealth:         s.cfg.Headless.Stealth,
		})
	})
	return s.headlessEng, s.headlessErr
}

// Close releases the WASM runtime and, if it was ever started, the
// headless browser. Safe to call once a crawl (or the Spider) is done.
func (s *Spider) Close(ctx context.Context) error {
	err := s.wasmPool.Close(ctx)
	if s.headlessEng != nil {
		if cerr := s.headlessEng.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
