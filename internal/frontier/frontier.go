// Package frontier implements the priority-aware, deduplicating URL
// queue: BFS/DFS/Best-First ordering, dedup after canonicalisation,
// host/path scope filtering, and budget admission. It knows nothing
// about fetching, extraction or storage -- a data structure plus a
// policy, not a pipeline executor.
package frontier

import (
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/foofork/riptide/internal/model"
	"github.com/foofork/riptide/pkg/pipeerr"
)

// PushOutcome reports why a URL was or was not admitted.
type PushOutcome int

const (
	Accepted PushOutcome = iota
	RejectedDuplicate
	RejectedOutOfScope
	RejectedFull
	RejectedBudget
)

func (o PushOutcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case RejectedDuplicate:
		return "rejected_duplicate"
	case RejectedOutOfScope:
		return "rejected_out_of_scope"
	case RejectedFull:
		return "rejected_full"
	case RejectedBudget:
		return "rejected_budget"
	default:
		return "unknown"
	}
}

// Outcome is what mark_done records about a dequeued URL.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeFiltered
)

// DefaultCapacity bounds in-memory frontier size absent an explicit cap.
const DefaultCapacity = 100_000

// Frontier is process-scoped, shared-mutable state guarded by a single
// mutex: strategy queues are cheap to hold a lock across (no I/O), so a
// coarse mutex is simpler and just as correct as sharding here, unlike
// the per-host concurrent maps in pkg/limiter and internal/robots which
// sit on the hot fetch path.
type Frontier struct {
	mu       sync.Mutex
	strategy model.Strategy
	hostRules model.HostRules
	weights  ScoreWeights
	query    string
	capacity int

	queue orderedQueue
	seen  Set[string]
	size  int

	discoveryCounter uint64
	hostDequeueCount map[string]int

	budget *Budget
	stop   *AdaptiveStop

	pagesDone     atomic.Int64
	pagesFailed   atomic.Int64
	pagesFiltered atomic.Int64
}

// New constructs a Frontier for one crawl. Callers must construct a
// fresh Frontier per crawl; there is no shared singleton.
func New(strategy model.Strategy, hostRules model.HostRules, budget model.Budget, query string, capacity int) *Frontier {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	f := &Frontier{
		strategy:         strategy,
		hostRules:        hostRules,
		weights:          DefaultScoreWeights(),
		query:            query,
		capacity:         capacity,
		seen:             NewSet[string](),
		hostDequeueCount: make(map[string]int),
		budget:           NewBudget(budget),
		stop:             NewAdaptiveStop(DefaultWindowSize, DefaultQualityFloor, DefaultInfoRateFloor),
	}
	switch strategy {
	case model.StrategyDFS:
		f.queue = newDFSStack()
	case model.StrategyBestFirst:
		f.queue = newBestFirstQueue()
	default:
		f.queue = newBFSQueue()
	}
	return f
}

// Push admits a URL discovered at depth with anchorText (used for
// Best-First scoring; ignored otherwise). Silently-ignored URLs
// (duplicate or out of scope) and explicit capacity rejection both
// return a PushOutcome rather than an error; only capacity exhaustion
// additionally surfaces pipeerr.ResourceExhausted, since that is the one
// rejection a caller might want to act on (e.g. pause discovery).
func (f *Frontier) Push(raw url.URL, depth int, source model.DiscoverySource, anchorText string) (PushOutcome, error) {
	canonical := canonicalize(raw)

	if !f.inScope(canonical) {
		return RejectedOutOfScope, nil
	}

	key := fingerprint(canonical)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen.Contains(key) {
		return RejectedDuplicate, nil
	}
	if f.size >= f.capacity {
		return RejectedFull, pipeerr.NewResourceExhausted("frontier")
	}
	if !f.budget.Allow() || !f.budget.AllowDepth(depth) {
		return RejectedBudget, nil
	}

	priority := f.priorityLocked(canonical, depth, anchorText)

	f.discoveryCounter++
	f.queue.push(item{
		url:            canonical,
		depth:          depth,
		priority:       priority,
		source:         source,
		anchorText:     anchorText,
		discoveryOrder: f.discoveryCounter,
	})
	f.seen.Add(key)
	f.size++
	return Accepted, nil
}

func (f *Frontier) priorityLocked(canonical url.URL, depth int, anchorText string) float64 {
	if f.query != "" && f.strategy == model.StrategyBestFirst {
		return score(f.weights, f.query, canonical.Path, anchorText, depth, f.hostDequeueCount[canonical.Host])
	}
	if f.strategy == model.StrategyDFS {
		return float64(depth)
	}
	return -float64(depth)
}

// Next atomically removes and returns the highest-priority URL per the
// active strategy. The second return value is false once the frontier
// is empty.
func (f *Frontier) Next() (model.CrawlRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	it, ok := f.queue.pop()
	if !ok {
		return model.CrawlRequest{}, false
	}
	f.size--
	f.hostDequeueCount[it.url.Host]++

	hints := model.StrategyHints{Query: f.query}
	return model.NewCrawlRequest(it.url, "", it.depth, hints), true
}

// MarkDone updates bookkeeping for a dequeued URL's terminal outcome.
// It never re-admits or re-scores the URL: Frontier's dedup set already
// guarantees it is never revisited.
func (f *Frontier) MarkDone(outcome Outcome) {
	switch outcome {
	case OutcomeSuccess:
		f.pagesDone.Add(1)
	case OutcomeFailed:
		f.pagesFailed.Add(1)
	case OutcomeFiltered:
		f.pagesFiltered.Add(1)
	}
}

// RecordQuality feeds an extraction's quality score to AdaptiveStop.
func (f *Frontier) RecordQuality(qualityScore int) { f.stop.RecordQuality(qualityScore) }

// ShouldStop reports whether AdaptiveStop or Budget says the crawl
// should terminate, and why.
func (f *Frontier) ShouldStop() (reason string, stop bool) {
	if reason, exhausted := f.budget.Exhausted(); exhausted {
		return reason, true
	}
	return f.stop.ShouldStop()
}

func (f *Frontier) Budget() *Budget { return f.budget }

func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *Frontier) Stats() (done, failed, filtered int64) {
	return f.pagesDone.Load(), f.pagesFailed.Load(), f.pagesFiltered.Load()
}

func (f *Frontier) inScope(canonical url.URL) bool {
	if len(f.hostRules.AllowedHosts) > 0 {
		if _, ok := f.hostRules.AllowedHosts[canonical.Host]; !ok {
			return false
		}
	}
	if len(f.hostRules.AllowedPathPrefix) == 0 {
		return true
	}
	for _, prefix := range f.hostRules.AllowedPathPrefix {
		if strings.HasPrefix(canonical.Path, prefix) {
			return true
		}
	}
	return false
}
