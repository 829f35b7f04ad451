package engine

import (
	"sync"
	"time"

	"github.com/foofork/riptide/internal/model"
)

// DomainProfile is a warm-start cache entry: a registrable domain's
// historical content-signal baseline plus a confidence and TTL, so a
// site that is reliably a SPA (or reliably static) is not re-probed on
// every page.
type DomainProfile struct {
	BaselineDensity float64
	Confidence      float64
	TTLUntil        time.Time
}

// domainProfileConfidence is how sure a DomainProfile must be before the
// Gate trusts it over a fresh density read on this page.
const domainProfileConfidence = 0.75

// DomainProfileTTL is the default lifetime of a warm-start entry before it
// must be re-earned by a fresh density read.
const DomainProfileTTL = time.Hour

// DomainProfileStore is a process-scoped, concurrency-safe TTL'd cache of
// per-domain baselines. There is no package-level global: callers own one
// instance per Spider. A miss or expired entry is not an error: it just
// means the Gate falls through to a fresh read of the fetched body.
type DomainProfileStore struct {
	mu       sync.Mutex
	profiles map[string]DomainProfile
}

func NewDomainProfileStore() *DomainProfileStore {
	return &DomainProfileStore{profiles: make(map[string]DomainProfile)}
}

func (s *DomainProfileStore) get(domain string, now time.Time) (DomainProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[domain]
	if !ok || now.After(p.TTLUntil) {
		return DomainProfile{}, false
	}
	return p, true
}

// Record updates domain's baseline after an observed decision, exponentially
// smoothing confidence toward 1 on repeated agreement and decaying it by
// half on disagreement, so a warm-started decision is only ever trusted
// once a domain has proven consistent.
func (s *DomainProfileStore) Record(domain string, density float64, agrees bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.profiles[domain]
	confidence := 0.5
	if ok {
		if agrees {
			confidence = prev.Confidence + (1-prev.Confidence)*0.3
		} else {
			confidence = prev.Confidence * 0.5
		}
	}
	s.profiles[domain] = DomainProfile{
		BaselineDensity: density,
		Confidence:      confidence,
		TTLUntil:        now.Add(DomainProfileTTL),
	}
}

// DensityHint approximates the density value behind an already-made
// EngineDecision, for callers (the orchestrator) that only have the
// decision, not the raw body scan, at the point they want to feed
// DomainProfileStore.Record.
func DensityHint(d model.EngineDecision) float64 {
	if d.Engine() == model.EngineHeadless {
		return DensityLow - 0.01
	}
	return DensityHigh + 0.01
}
