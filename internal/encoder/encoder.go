// Package encoder coordinates the two-pass GIF pipeline against the shared
// engine session: input staging, palette generation, palette application,
// output validation and scratch cleanup. At most one encode runs against a
// session at a time; the engine is not reentrant and all requests share one
// scratch namespace.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gifforge/gifforge/internal/engine"
	"github.com/gifforge/gifforge/internal/gif"
	"github.com/gifforge/gifforge/internal/session"
)

// Fixed scratch slot names inside the engine's namespace. The busy policy
// is the only thing preventing two requests from colliding on these.
const (
	inputSlot   = "input.mp4"
	paletteSlot = "palette.png"
	outputSlot  = "output.gif"
)

// gifMagic is the signature a valid output must start with.
var gifMagic = []byte{0x47, 0x49, 0x46}

// Pass weights for the combined progress ratio: the palette pass is cheap
// relative to the encode pass, so the caller sees continuous forward
// progress instead of a reset between passes.
const (
	paletteWeight = 0.3
	encodeWeight  = 0.7
)

// BusyPolicy selects what happens to a request that arrives while another
// encode is in flight.
type BusyPolicy string

const (
	// BusyReject fails the second request with a Busy classification.
	BusyReject BusyPolicy = "reject"
	// BusyQueue serializes the second request behind the first.
	BusyQueue BusyPolicy = "queue"
)

// IsValid returns true for a known busy policy.
func (p BusyPolicy) IsValid() bool {
	return p == BusyReject || p == BusyQueue
}

// Progress is one progress report for an encode: a combined ratio across
// both passes plus an optional stage message.
type Progress struct {
	Ratio   float64
	Message string
}

// ProgressFunc observes encode progress. Ratios are non-decreasing within a
// single request. The callback runs on the encoder's goroutine and must not
// block.
type ProgressFunc func(p Progress)

// Encoder drives the two-pass pipeline. Create one per engine session.
type Encoder struct {
	session *session.Manager
	logger  *slog.Logger
	policy  BusyPolicy

	// slot is a one-deep semaphore enforcing at most one in-flight encode.
	slot chan struct{}
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithBusyPolicy selects the behavior for concurrent requests. The default
// is BusyReject.
func WithBusyPolicy(p BusyPolicy) Option {
	return func(e *Encoder) {
		if p.IsValid() {
			e.policy = p
		}
	}
}

// New creates an Encoder bound to a session manager.
func New(sess *session.Manager, logger *slog.Logger, opts ...Option) *Encoder {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Encoder{
		session: sess,
		logger:  logger,
		policy:  BusyReject,
		slot:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode runs one request through the pipeline and returns the GIF bytes.
// Failures are classified (*Error); scratch slots are deleted on every
// path. onProgress may be nil.
//
// Cancelling ctx stops the caller from waiting but cannot interrupt a pass
// the engine has already started; the serialization slot is released only
// once the engine call returns, so a later request waits for quiescence
// rather than corrupting shared scratch state.
func (e *Encoder) Encode(ctx context.Context, req gif.Request, onProgress ProgressFunc) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, newError(KindInput, "request validation failed", err)
	}

	if err := e.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer func() { <-e.slot }()

	eng, err := e.session.Acquire(ctx)
	if err != nil {
		if errors.Is(err, session.ErrLoad) {
			return nil, newError(KindInitialization, "engine failed to load", err)
		}
		return nil, fmt.Errorf("acquire engine session: %w", err)
	}

	return e.run(ctx, eng, req, onProgress)
}

// acquireSlot claims the single in-flight slot according to the busy
// policy.
func (e *Encoder) acquireSlot(ctx context.Context) error {
	select {
	case e.slot <- struct{}{}:
		return nil
	default:
	}

	if e.policy == BusyReject {
		return newError(KindBusy, "another encode is in flight", nil)
	}

	select {
	case e.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queued encode abandoned: %w", ctx.Err())
	}
}

// run executes the pipeline steps against an acquired engine. Scratch
// cleanup is deferred so it runs on every path.
func (e *Encoder) run(ctx context.Context, eng engine.Engine, req gif.Request, onProgress ProgressFunc) (out []byte, err error) {
	reporter := newProgressReporter(onProgress)

	// Cleanup must survive the request's own cancellation.
	defer e.cleanup(context.WithoutCancel(ctx), eng)

	if err := eng.WriteFile(ctx, inputSlot, req.Source); err != nil {
		return nil, newError(KindEngineExecution, "write input slot", err)
	}

	graph := req.FilterGraph(e.mediaDuration(ctx, eng, req))
	e.logger.Debug("segment normalized",
		slog.Float64("start_sec", graph.Segment.StartSec),
		slog.Float64("duration_sec", graph.Segment.DurationSec),
		slog.String("quality", string(req.Quality)),
	)

	cancelSub := e.session.OnProgress(reporter.observeEngine)
	defer cancelSub()

	reporter.stage(0, paletteWeight, "generating palette")
	if err := eng.Exec(ctx, graph.PaletteArgs(inputSlot, paletteSlot)); err != nil {
		return nil, newError(KindEngineExecution, "palette generation failed", err)
	}

	reporter.stage(paletteWeight, encodeWeight, "encoding frames")
	if err := eng.Exec(ctx, graph.EncodeArgs(inputSlot, paletteSlot, outputSlot)); err != nil {
		return nil, newError(KindEngineExecution, "palette application failed", err)
	}

	data, err := eng.ReadFile(ctx, outputSlot)
	if err != nil {
		return nil, newError(KindEngineExecution, "read output slot", err)
	}
	if len(data) == 0 {
		return nil, newError(KindOutputValidation, "engine produced an empty output", nil)
	}
	if !bytes.HasPrefix(data, gifMagic) {
		return nil, newError(KindOutputValidation, "output lacks GIF signature", nil)
	}

	reporter.done()
	return data, nil
}

// mediaDuration determines the source duration used to bound the trim
// range: the caller's hint first, then the engine's prober if it has one,
// then the requested end as a last resort.
func (e *Encoder) mediaDuration(ctx context.Context, eng engine.Engine, req gif.Request) float64 {
	if req.SourceDurationSec > 0 {
		return req.SourceDurationSec
	}
	if prober, ok := eng.(engine.DurationProber); ok {
		if sec, err := prober.Duration(ctx, inputSlot); err == nil && sec > 0 {
			return sec
		}
		e.logger.Debug("duration probe unavailable, using requested end")
	}
	return req.EndSec
}

// cleanup deletes all three scratch slots. Best-effort: failures are logged
// and never mask the request's primary result.
func (e *Encoder) cleanup(ctx context.Context, eng engine.Engine) {
	for _, slot := range []string{inputSlot, paletteSlot, outputSlot} {
		if err := eng.DeleteFile(ctx, slot); err != nil {
			e.logger.Warn("scratch cleanup failed",
				slog.String("slot", slot),
				slog.String("error", err.Error()),
			)
		}
	}
}

// progressReporter folds per-pass engine ratios into one non-decreasing
// combined ratio.
type progressReporter struct {
	fn ProgressFunc

	mu     sync.Mutex
	base   float64
	weight float64
	last   float64
}

func newProgressReporter(fn ProgressFunc) *progressReporter {
	return &progressReporter{fn: fn}
}

// stage enters a new pass window and reports its start message.
func (r *progressReporter) stage(base, weight float64, message string) {
	r.mu.Lock()
	r.base = base
	r.weight = weight
	r.mu.Unlock()
	r.report(base, message)
}

// observeEngine maps a raw engine ratio into the current pass window.
func (r *progressReporter) observeEngine(ratio float64) {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	r.mu.Lock()
	combined := r.base + ratio*r.weight
	r.mu.Unlock()
	r.report(combined, "")
}

// done reports terminal progress.
func (r *progressReporter) done() {
	r.report(1, "done")
}

// report emits a progress event, enforcing monotonicity within the request.
func (r *progressReporter) report(ratio float64, message string) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	if ratio < r.last {
		ratio = r.last
	}
	r.last = ratio
	r.mu.Unlock()
	r.fn(Progress{Ratio: ratio, Message: message})
}
