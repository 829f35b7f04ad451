package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
)

// Recorder is the production MetadataSink/CrawlFinalizer implementation.
// It encodes every event as a single logfmt line, which keeps the
// observability surface greppable and avoids pulling in a full logging
// framework for what is, by contract, a write-only sink.
type Recorder struct {
	mu  sync.Mutex
	enc *logfmt.Encoder
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: logfmt.NewEncoder(w)}
}

// NewStderrRecorder is a process-wide convenience default: a bin target
// may use it directly, but library callers
// should construct their own Recorder (or another MetadataSink) and
// inject it.
func NewStderrRecorder() *Recorder {
	return NewRecorder(os.Stderr)
}

func (r *Recorder) emit(kv ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.EncodeKeyvals(kv...); err != nil {
		return
	}
	_ = r.enc.EndRecord()
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.emit(
		"event", "fetch",
		"url", fetchUrl,
		"status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"content_type", contentType,
		"retry_count", retryCount,
		"depth", crawlDepth,
	)
}

func (r *Recorder) RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int) {
	r.emit(
		"event", "asset_fetch",
		"url", fetchUrl,
		"status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"retry_count", retryCount,
	)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute) {
	kv := []interface{}{
		"event", "error",
		"time", observedAt.Format(time.RFC3339),
		"package", packageName,
		"action", action,
		"cause", cause.String(),
		"details", details,
	}
	for _, a := range attrs {
		kv = append(kv, string(a.Key), a.Value)
	}
	r.emit(kv...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	kv := []interface{}{
		"event", "artifact",
		"kind", string(kind),
		"path", path,
	}
	for _, a := range attrs {
		kv = append(kv, string(a.Key), a.Value)
	}
	r.emit(kv...)
}

func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.emit(
		"event", "crawl_summary",
		"total_pages", strconv.Itoa(totalPages),
		"total_errors", strconv.Itoa(totalErrors),
		"total_assets", strconv.Itoa(totalAssets),
		"duration_ms", duration.Milliseconds(),
	)
}

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CauseRetryFailure:
		return "retry_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}
