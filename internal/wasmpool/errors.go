package wasmpool

import (
	"errors"

	"github.com/foofork/riptide/pkg/pipeerr"
)

var (
	errInstanceClosed  = errors.New("wasmpool: instance closed")
	errNoModule        = errors.New("wasmpool: no module bytes configured")
	errNoExtractExport = errors.New("wasmpool: module has no \"extract\" export")
	errWasmOOMSignal   = errors.New("wasmpool: extractor signalled out-of-memory")
	errWasmPanic       = errors.New("wasmpool: recovered panic in host-call path")
)

// FailureClass classifies how an instance failed (parse error, OOM,
// epoch timeout, internal panic) so the cause propagates with the error.
type FailureClass int

const (
	ClassParseError FailureClass = iota
	ClassOOM
	ClassEpochTimeout
	ClassPanic
	ClassUnknown
)

func (c FailureClass) String() string {
	switch c {
	case ClassParseError:
		return "parse_error"
	case ClassOOM:
		return "oom"
	case ClassEpochTimeout:
		return "epoch_timeout"
	case ClassPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// classify maps a raw extraction failure (a recovered panic, a wazero
// trap, a context deadline) to a FailureClass, and wraps it in the
// shared pipeerr taxonomy for the orchestrator.
func classify(class FailureClass, cause error) *pipeerr.Error {
	switch class {
	case ClassEpochTimeout:
		return pipeerr.NewTimeout("extract", 0, false)
	case ClassOOM:
		return pipeerr.NewResourceExhausted("wasm_instance_memory")
	default:
		return pipeerr.NewExtractionFailed("wasm", cause)
	}
}
