package frontier

import (
	"sync/atomic"
	"time"

	"github.com/foofork/riptide/internal/model"
)

// Budget tracks crawl-level consumption against model.Budget's caps
// (pages, bytes, wall-clock), independent of AdaptiveStop's quality
// signal.
type Budget struct {
	limits    model.Budget
	startedAt time.Time
	pages     atomic.Int64
	bytes     atomic.Int64
}

func NewBudget(limits model.Budget) *Budget {
	return &Budget{limits: limits, startedAt: time.Now()}
}

// Allow reports whether the budget still has room for one more admitted
// page. It does not itself consume the page; call RecordPage after the
// page is actually fetched.
func (b *Budget) Allow() bool {
	if b.limits.MaxPages > 0 && int(b.pages.Load()) >= b.limits.MaxPages {
		return false
	}
	if b.limits.MaxBytes > 0 && b.bytes.Load() >= b.limits.MaxBytes {
		return false
	}
	if b.limits.MaxElapsed > 0 && time.Since(b.startedAt) >= b.limits.MaxElapsed {
		return false
	}
	return true
}

// AllowDepth reports whether a URL discovered at depth is still within
// the crawl's depth cap. Depth never consumes budget; it only gates
// admission.
func (b *Budget) AllowDepth(depth int) bool {
	return b.limits.MaxDepth <= 0 || depth <= b.limits.MaxDepth
}

func (b *Budget) RecordPage(bodyBytes int64) {
	b.pages.Add(1)
	b.bytes.Add(bodyBytes)
}

// Exhausted reports which bound (if any) is responsible for Allow()
// returning false, for the crawl summary's stop_reason.
func (b *Budget) Exhausted() (reason string, exhausted bool) {
	if b.limits.MaxPages > 0 && int(b.pages.Load()) >= b.limits.MaxPages {
		return "max_pages", true
	}
	if b.limits.MaxBytes > 0 && b.bytes.Load() >= b.limits.MaxBytes {
		return "max_bytes", true
	}
	if b.limits.MaxElapsed > 0 && time.Since(b.startedAt) >= b.limits.MaxElapsed {
		return "max_elapsed", true
	}
	return "", false
}

func (b *Budget) PagesSoFar() int   { return int(b.pages.Load()) }
func (b *Budget) BytesSoFar() int64 { return b.bytes.Load() }
func (b *Budget) Elapsed() time.Duration { return time.Since(b.startedAt) }
