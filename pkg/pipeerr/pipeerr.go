// Package pipeerr implements the stable, machine-readable error taxonomy
// the crawl-render-extract pipeline uses to propagate failures across the
// Frontier/Fetcher/EngineSelector/WasmPool boundary. Every
// kind here carries its own retryability rule so callers never have to
// special-case a string message to decide whether to retry, fall back, or
// surface the failure to the crawl summary.
package pipeerr

import (
	"fmt"
	"time"

	"github.com/foofork/riptide/pkg/failure"
)

// Kind is the closed, stable failure classification.
type Kind int

const (
	InvalidUrl Kind = iota
	RobotsDenied
	RateLimited
	CircuitOpen
	Timeout
	Network
	Http4xx
	Http5xx
	ExtractionFailed
	WasmUnhealthy
	ResourceExhausted
	BudgetExceeded
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidUrl:
		return "invalid_url"
	case RobotsDenied:
		return "robots_denied"
	case RateLimited:
		return "rate_limited"
	case CircuitOpen:
		return "circuit_open"
	case Timeout:
		return "timeout"
	case Network:
		return "network"
	case Http4xx:
		return "http_4xx"
	case Http5xx:
		return "http_5xx"
	case ExtractionFailed:
		return "extraction_failed"
	case WasmUnhealthy:
		return "wasm_unhealthy"
	case ResourceExhausted:
		return "resource_exhausted"
	case BudgetExceeded:
		return "budget_exceeded"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the single concrete error type returned across the pipeline
// boundary. Fields outside a Kind's relevant subset are left zero.
type Error struct {
	Kind      Kind
	Message   string
	Stage     string        // Timeout: which pipeline stage timed out
	Duration  time.Duration // Timeout: how long the stage ran before it was cut
	Status    int           // Http4xx / Http5xx
	Engine    string        // ExtractionFailed: which engine produced it
	Resource  string        // ResourceExhausted: which resource was exhausted
	Cause     error
	retryable bool
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Severity satisfies failure.ClassifiedError: retryable kinds are
// recoverable at the local stage, everything else is fatal to that
// single URL, never to the whole crawl.
func (e *Error) Severity() failure.Severity {
	if e.retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable reports whether the local stage should retry this request.
func (e *Error) IsRetryable() bool { return e.retryable }

func NewInvalidURL(raw string, cause error) *Error {
	return &Error{Kind: InvalidUrl, Message: raw, Cause: cause, retryable: false}
}

func NewRobotsDenied(path string) *Error {
	return &Error{Kind: RobotsDenied, Message: path, retryable: false}
}

// NewRateLimited marks the error retryable: the caller should wait
// retryAfter (local to the fetch, not part of the shared retry policy)
// before trying again.
func NewRateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: RateLimited, Message: retryAfter.String(), retryable: true}
}

// NewCircuitOpen marks the error retryable after the breaker's cooldown
// elapses; the immediate caller should fall back rather than spin.
func NewCircuitOpen(host string) *Error {
	return &Error{Kind: CircuitOpen, Message: host, retryable: true}
}

// NewTimeout reports a stage timeout. overAttemptCap should be true once
// the caller's own retry budget for this request is exhausted, at which
// point the error becomes terminal for this URL.
func NewTimeout(stage string, d time.Duration, overAttemptCap bool) *Error {
	return &Error{Kind: Timeout, Stage: stage, Duration: d, retryable: !overAttemptCap}
}

func NewNetwork(cause error) *Error {
	return &Error{Kind: Network, Cause: cause, retryable: true}
}

// NewHTTP4xx is retryable only for 408 (Request Timeout) and 429 (Too
// Many Requests).
func NewHTTP4xx(status int) *Error {
	return &Error{Kind: Http4xx, Status: status, retryable: status == 408 || status == 429}
}

func NewHTTP5xx(status int) *Error {
	return &Error{Kind: Http5xx, Status: status, retryable: true}
}

// NewExtractionFailed is never retryable in the "retry same engine"
// sense: a low-quality or failed extraction is handled by engine
// escalation at the orchestrator, not a bare retry.
func NewExtractionFailed(engine string, cause error) *Error {
	return &Error{Kind: ExtractionFailed, Engine: engine, Cause: cause, retryable: false}
}

func NewWasmUnhealthy(cause error) *Error {
	return &Error{Kind: WasmUnhealthy, Cause: cause, retryable: true}
}

func NewResourceExhausted(resource string) *Error {
	return &Error{Kind: ResourceExhausted, Resource: resource, retryable: false}
}

func NewBudgetExceeded(reason string) *Error {
	return &Error{Kind: BudgetExceeded, Message: reason, retryable: false}
}

func NewCancelled() *Error {
	return &Error{Kind: Cancelled, retryable: false}
}
