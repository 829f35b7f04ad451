package wasmpool

import (
	"context"
	"net/url"
	"time"

	"github.com/foofork/riptide/internal/model"
)

// DefaultEpoch is the per-call preemption budget: an
// extraction that runs longer is cut at the epoch boundary and reported
// as ClassEpochTimeout, never left to run unbounded.
const DefaultEpoch = 5 * time.Second

// Request is one unit of work handed to Pool.Extract: the fetched body,
// the URL it came from (for link resolution) and the extraction mode the
// caller wants (Article, Full or Metadata).
type Request struct {
	URL   url.URL
	HTML  []byte
	Mode  model.ExtractMode
	Epoch time.Duration // 0 uses DefaultEpoch
}

// runExtraction calls into the pooled instance's exported "extract"
// function under a context bounded by Request.Epoch, using
// wazero.RuntimeConfig.WithCloseOnContextDone(true) (set at pool
// construction) so a deadline actually preempts in-flight WASM
// execution rather than leaking a goroutine. Any panic surfacing from
// the host-call path is recovered and classified as ClassPanic.
func (p *Pool) runExtraction(ctx context.Context, inst *Instance, req Request) (doc model.ExtractedDoc, err error) {
	epoch := req.Epoch
	if epoch <= 0 {
		epoch = DefaultEpoch
	}
	callCtx, cancel := context.WithTimeout(ctx, epoch)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			inst.health = Failed
			err = classify(ClassPanic, panicAsError(r))
		}
	}()

	if inst.module == nil {
		return model.ExtractedDoc{}, classify(ClassParseError, errNoModule)
	}

	fn := inst.module.ExportedFunction("extract")
	if fn == nil {
		return model.ExtractedDoc{}, classify(ClassParseError, errNoExtractExport)
	}

	out, callErr := fn.Call(callCtx, uint64(len(req.HTML)), uint64(req.Mode))
	if callErr != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return model.ExtractedDoc{}, classify(ClassEpochTimeout, callErr)
		}
		return model.ExtractedDoc{}, classify(ClassUnknown, callErr)
	}

	result := model.NewExtractedDoc(req.URL, model.EngineWasm)
	if len(out) > 0 && out[0] == 0 {
		return model.ExtractedDoc{}, classify(ClassOOM, errWasmOOMSignal)
	}

	return *result, nil
}

func panicAsError(r interface{}) error {
	if e, ok := r.(error); ok {
		return e
	}
	return errWasmPanic
}
