// Package wasmpool implements the pooled, health-monitored,
// resource-limited WASM extractor pool: bounded
// acquire/release, epoch-based preemption, a circuit breaker in front of
// the pool, and aggregate memory tracking.
//
// Grounded on 99souls-ariadne/engine/internal/resources/manager.go for
// the semaphore-backed Acquire/Release/Stats shape -- adapted here from
// an LRU page cache to a bounded instance pool with health states,
// because the WASM runtime (github.com/tetratelabs/wazero) is not
// grounded anywhere in the retrieved pack; it is the idiomatic
// cgo-free Go WASM runtime and the only concrete substitute available.
package wasmpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foofork/riptide/internal/breaker"
	"github.com/foofork/riptide/internal/model"
	"github.com/foofork/riptide/pkg/pipeerr"
	wz "github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const (
	DefaultInitialSize     = 2
	DefaultMaxReuse        = 1000
	DefaultIdleTimeout     = 300 * time.Second
	DefaultHealthInterval  = 30 * time.Second
	DefaultMemoryCapMBEach = 256
	DefaultAcquireTimeout  = 5 * time.Second
)

// Config tunes pool sizing and limits; zero values fall back to the
// package defaults.
type Config struct {
	InitialSize    int
	MaxSize        int // 0 derives from runtime.NumCPU()
	MaxReuse       int
	IdleTimeout    time.Duration
	HealthInterval time.Duration
	MemoryCapMB    uint32 // per instance
	AcquireTimeout time.Duration
	ModuleBytes    []byte // compiled WASM extractor component
}

func (c Config) withDefaults() Config {
	if c.InitialSize <= 0 {
		c.InitialSize = DefaultInitialSize
	}
	if c.MaxSize <= 0 {
		c.MaxSize = runtime.NumCPU() * 2
		if c.MaxSize < c.InitialSize {
			c.MaxSize = c.InitialSize
		}
	}
	if c.MaxReuse <= 0 {
		c.MaxReuse = DefaultMaxReuse
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.MemoryCapMB == 0 {
		c.MemoryCapMB = DefaultMemoryCapMBEach
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	return c
}

// Stats is a point-in-time snapshot for observability.
type Stats struct {
	Created   int
	InUse     int
	Idle      int
	Recycled  int
	Breaker   breaker.State
	AggMemory uint64
}

// Pool hands out extractor Instances bounded by Config.MaxSize,
// recycling unhealthy or over-used instances and fast-failing behind a
// breaker.Breaker when extraction is in a catastrophic failure loop.
type Pool struct {
	cfg     Config
	rt      wz.Runtime
	compiled wz.CompiledModule

	mu       sync.Mutex
	idle     []*Instance
	created  int
	nextID   uint64
	recycled atomic.Int64

	breaker *breaker.Breaker

	closeOnce  sync.Once
	stopHealth chan struct{}
	wg         sync.WaitGroup
}

// New warms up InitialSize instances and starts the background health
// monitor. The caller owns the returned Pool's lifetime and must call
// Close to release the wazero runtime and all instances.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()

	rt := wz.NewRuntimeWithConfig(ctx, wz.NewRuntimeConfig().WithCloseOnContextDone(true))

	var compiled wz.CompiledModule
	if len(cfg.ModuleBytes) > 0 {
		var err error
		compiled, err = rt.CompileModule(ctx, cfg.ModuleBytes)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, classify(ClassParseError, err)
		}
	}

	p := &Pool{
		cfg:        cfg,
		rt:         rt,
		compiled:   compiled,
		breaker:    breaker.NewDefault(breaker.RealClock{}),
		stopHealth: make(chan struct{}),
	}

	for i := 0; i < cfg.InitialSize; i++ {
		inst, err := p.instantiate(ctx)
		if err != nil {
			_ = p.Close(ctx)
			return nil, err
		}
		p.idle = append(p.idle, inst)
	}

	p.wg.Add(1)
	go p.healthLoop()

	return p, nil
}

// instantiate instantiates one fresh module from the module New
// compiled. Without ModuleBytes configured, the pool still hands out
// Instances with a nil module so Acquire/Release/health-loop bookkeeping
// can be exercised; runExtraction reports ClassParseError in that case.
func (p *Pool) instantiate(ctx context.Context) (*Instance, error) {
	var m api.Module
	if p.compiled != nil {
		inst, err := p.rt.InstantiateModule(ctx, p.compiled, wz.NewModuleConfig().WithName(""))
		if err != nil {
			return nil, classify(ClassParseError, err)
		}
		m = inst
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.created++
	p.mu.Unlock()

	return &Instance{
		id:          id,
		createdAt:   time.Now(),
		health:      Healthy,
		module:      m,
		runtime:     p.rt,
		memoryCapMB: p.cfg.MemoryCapMB,
	}, nil
}

// Acquire returns a healthy instance, creating one if the pool has not
// yet reached MaxSize, or waiting up to AcquireTimeout otherwise. The
// breaker in front of the pool fails fast when extraction has been
// failing consecutively.
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	if !p.breaker.Allow() {
		return nil, pipeerr.NewCircuitOpen("wasm_pool")
	}

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		inst := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return inst, nil
	}
	canGrow := p.created < p.cfg.MaxSize
	p.mu.Unlock()

	if canGrow {
		inst, err := p.instantiate(ctx)
		if err != nil {
			p.breaker.Failure()
			return nil, err
		}
		return inst, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()
	for {
		p.mu.Lock()
		if n := len(p.idle); n > 0 {
			inst := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()
			return inst, nil
		}
		p.mu.Unlock()
		select {
		case <-acquireCtx.Done():
			return nil, pipeerr.NewResourceExhausted("wasm_pool")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Release runs the instance's health check and either returns it to the
// idle set or recycles it: unhealthy instances,
// instances at max-reuse, or instances over their memory cap are
// destroyed and replaced with a freshly instantiated one.
func (p *Pool) Release(ctx context.Context, inst *Instance) {
	inst.useCount++
	exceededMemory := inst.sampleMemory()

	if err := inst.ping(ctx); err != nil {
		inst.health = Degraded
	}

	shouldRecycle := inst.health != Healthy ||
		inst.useCount >= p.cfg.MaxReuse ||
		exceededMemory

	if shouldRecycle {
		inst.close(ctx)
		p.recycled.Add(1)
		p.mu.Lock()
		p.created--
		p.mu.Unlock()
		if fresh, err := p.instantiate(ctx); err == nil {
			p.mu.Lock()
			p.idle = append(p.idle, fresh)
			p.mu.Unlock()
		}
		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, inst)
	p.mu.Unlock()
}

// RecordExtractionResult feeds the pool's breaker: consecutive
// extraction failures trip it open.
func (p *Pool) RecordExtractionResult(success bool) {
	if success {
		p.breaker.Success()
	} else {
		p.breaker.Failure()
	}
}

func (p *Pool) healthLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopHealth:
			return
		case <-ticker.C:
			p.sweepIdle()
		}
	}
}

// sweepIdle removes Failed instances from the idle set so Acquire can
// never hand one out.
func (p *Pool) sweepIdle() {
	ctx := context.Background()
	p.mu.Lock()
	kept := p.idle[:0]
	for _, inst := range p.idle {
		if err := inst.ping(ctx); err != nil {
			inst.health = Failed
		}
		if inst.health == Failed {
			inst.close(ctx)
			p.created--
			p.recycled.Add(1)
			continue
		}
		kept = append(kept, inst)
	}
	p.idle = kept
	p.mu.Unlock()
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	var aggMem uint64
	for _, inst := range p.idle {
		aggMem += uint64(inst.MemoryHighWater())
	}
	return Stats{
		Created:   p.created,
		Idle:      len(p.idle),
		InUse:     p.created - len(p.idle),
		Recycled:  int(p.recycled.Load()),
		Breaker:   p.breaker.State(),
		AggMemory: aggMem,
	}
}

func (p *Pool) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		close(p.stopHealth)
		p.wg.Wait()
		p.mu.Lock()
		for _, inst := range p.idle {
			inst.close(ctx)
		}
		p.idle = nil
		p.mu.Unlock()
		if p.compiled != nil {
			_ = p.compiled.Close(ctx)
		}
		err = p.rt.Close(ctx)
	})
	return err
}

// Extract runs one extraction through the pool: acquire, bound by the
// epoch timer, release. See extract.go for the request/response shape.
func (p *Pool) Extract(ctx context.Context, req Request) (model.ExtractedDoc, error) {
	inst, err := p.Acquire(ctx)
	if err != nil {
		return model.ExtractedDoc{}, err
	}
	doc, extractErr := p.runExtraction(ctx, inst, req)
	p.RecordExtractionResult(extractErr == nil)
	p.Release(ctx, inst)
	return doc, extractErr
}
