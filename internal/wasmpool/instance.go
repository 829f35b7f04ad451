package wasmpool

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Health classifies a pooled instance after a health check: Healthy instances are returned by Acquire, Degraded ones are
// recycled on Release, Failed ones are never handed out again.
type Health int

const (
	Healthy Health = iota
	Degraded
	Failed
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// wasmPage is the linear-memory page size wazero (and the WASM spec)
// uses for api.Memory.Size(), which reports bytes directly; nothing in
// this package reads the constant.
const wasmPage = 64 * 1024

// Instance is a single pooled extractor: one wazero module instantiation
// plus its lifecycle bookkeeping (use count, memory high-water, health).
type Instance struct {
	id           uint64
	createdAt    time.Time
	useCount     int
	memoryHWM    uint32 // bytes, high-water mark
	health       Health
	module       api.Module
	runtime      wazero.Runtime
	memoryCapMB  uint32
}

func (i *Instance) ID() uint64          { return i.id }
func (i *Instance) CreatedAt() time.Time { return i.createdAt }
func (i *Instance) UseCount() int       { return i.useCount }
func (i *Instance) MemoryHighWater() uint32 { return i.memoryHWM }
func (i *Instance) Health() Health      { return i.health }

// sampleMemory records the instance's current linear-memory size
// against its high-water mark, and returns whether it now exceeds the
// per-instance cap.
func (i *Instance) sampleMemory() (exceeded bool) {
	if i.module == nil {
		return false
	}
	mem := i.module.Memory()
	if mem == nil {
		return false
	}
	size := mem.Size()
	if size > i.memoryHWM {
		i.memoryHWM = size
	}
	capBytes := uint32(i.memoryCapMB) * 1024 * 1024
	return capBytes > 0 && size > capBytes
}

// ping is the periodic health check: a responsive module can still
// report its own memory size without blocking. A real extractor module
// would export a cheap "ping" function; absent that export this falls
// back to the memory-size probe, which already requires the module to
// be alive and unrecovered-from-panic.
func (i *Instance) ping(ctx context.Context) error {
	if i.module == nil {
		return errInstanceClosed
	}
	if fn := i.module.ExportedFunction("ping"); fn != nil {
		_, err := fn.Call(ctx)
		return err
	}
	_ = i.module.Memory()
	return nil
}

func (i *Instance) close(ctx context.Context) {
	if i.module != nil {
		_ = i.module.Close(ctx)
	}
}
