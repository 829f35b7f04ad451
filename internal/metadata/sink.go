package metadata

import "time"

// ArtifactKind classifies a persisted crawl artifact for observability.
type ArtifactKind string

const (
	ArtifactMarkdown ArtifactKind = "markdown"
	ArtifactAsset    ArtifactKind = "asset"
)

// MetadataSink is the narrow, observational-only interface every pipeline
// stage depends on to report what happened. No method here returns a
// value or an error: a sink can never participate in control flow,
// matching the ErrorCause contract above.
type MetadataSink interface {
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer records the terminal crawlStats summary exactly once,
// after crawl termination. It is deliberately a separate interface from
// MetadataSink: most pipeline stages only ever need to record events,
// while only the orchestrator is positioned to know the crawl is done.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration)
}

// NoopSink discards every event. Used by tests and by callers who don't
// want the structured-logging overhead.
type NoopSink struct{}

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int)        {}
func (NoopSink) RecordAssetFetch(string, int, time.Duration, int)                {}
func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}
func (NoopSink) RecordArtifact(ArtifactKind, string, []Attribute)                {}
func (NoopSink) RecordFinalCrawlStats(int, int, int, time.Duration)              {}
