// Package spider is the crawl orchestrator: it owns the Frontier,
// Fetcher, Robot, rate limiter, timeout manager, engine selector, WASM
// pool, headless engine and extractor, and drives a bounded concurrent
// worker pool over one crawl. The Spider is the single authority over
// admission -- no URL enters the frontier or reaches the network except
// through its admission chain -- and it is also where probe-first
// escalation between extraction engines is decided, keeping the
// selector itself a pure function.
package spider

import (
	"time"

	"github.com/foofork/riptide/internal/wasmpool"
	"github.com/foofork/riptide/pkg/hashutil"
	"github.com/foofork/riptide/pkg/timeutil"
)

const (
	DefaultWorkerCount        = 8
	DefaultPerHostConcurrency = 2
	DefaultUserAgent          = "riptide/1.0 (+https://github.com/foofork/riptide)"
	DefaultRetryMaxAttempts   = 3
	DefaultRetryBaseDelay     = 500 * time.Millisecond
	DefaultRetryJitter        = 250 * time.Millisecond
	DefaultRobotsTTL          = 1 * time.Hour
	DefaultMaxAssetSize       = 10 * 1024 * 1024
	DefaultAppVersion         = "riptide/1.0"
)

// Config tunes the Spider's worker pool, politeness and pipeline
// behaviour. Zero values fall back to the defaults above.
type Config struct {
	UserAgent          string
	WorkerCount        int
	PerHostConcurrency int
	DevMode            bool

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryJitter      time.Duration
	RandomSeed       int64

	RobotsTTL time.Duration

	// OutputDir enables the optional post-extraction pipeline (asset
	// resolution, markdown normalisation, on-disk storage). Left empty,
	// the Spider still emits ExtractedDoc.Markdown/HTML/Links but skips
	// asset downloads and file writes entirely.
	OutputDir    string
	MaxAssetSize int64
	HashAlgo     hashutil.HashAlgo
	AppVersion   string

	Wasm     wasmpool.Config
	Headless HeadlessConfig
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = DefaultWorkerCount
	}
	if c.PerHostConcurrency <= 0 {
		c.PerHostConcurrency = DefaultPerHostConcurrency
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.RetryJitter <= 0 {
		c.RetryJitter = DefaultRetryJitter
	}
	if c.RobotsTTL <= 0 {
		c.RobotsTTL = DefaultRobotsTTL
	}
	if c.MaxAssetSize <= 0 {
		c.MaxAssetSize = DefaultMaxAssetSize
	}
	if c.HashAlgo == "" {
		c.HashAlgo = hashutil.HashAlgoBLAKE3
	}
	if c.AppVersion == "" {
		c.AppVersion = DefaultAppVersion
	}
	return c
}

// backoffParam builds the timeutil.BackoffParam every retry.RetryParam
// in this package shares.
func backoffParam() timeutil.BackoffParam {
	return timeutil.NewBackoffParam(500*time.Millisecond, 2.0, 30*time.Second)
}

// HeadlessConfig re-exports the subset of internal/headless.Config the
// Spider needs to lazily start the browser engine only when the Gate
// first escalates to it -- launching Chromium up front would cost every
// crawl the startup latency even when every page resolves via Fast/Wasm.
type HeadlessConfig struct {
	MaxPages        int
	NavigateTimeout time.Duration
	StabilityWait   time.Duration
	Stealth         bool
}
