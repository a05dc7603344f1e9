// Package session owns the lifecycle of the shared processing-engine
// instance: lazy one-time initialization, de-duplication of concurrent
// loads, and fan-out of the engine's progress stream. The engine itself is
// expensive to load and shared process-wide, so exactly one load may be in
// flight at a time; latecomers wait on that load instead of starting
// another.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gifforge/gifforge/internal/engine"
)

// ErrLoad wraps any failure of the engine's initialization. A failed load
// resets the session so a later Acquire can retry.
var ErrLoad = errors.New("engine load failed")

// State is the session lifecycle state.
type State int

const (
	// StateUninitialized means no load has succeeded or is in flight.
	StateUninitialized State = iota
	// StateLoading means one caller is performing the engine load.
	StateLoading
	// StateReady means the engine is loaded and usable.
	StateReady
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// loadAttempt is one in-flight engine load. done is closed when the load
// finishes; err is set before the close and never written afterwards.
type loadAttempt struct {
	done chan struct{}
	err  error
}

// Manager guards a single shared engine behind a small state machine:
// Uninitialized -> Loading -> Ready. Acquire is idempotent once Ready and
// never starts a second load while one is in flight.
type Manager struct {
	eng    engine.Engine
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	current *loadAttempt
}

// NewManager creates a session manager around the given engine.
func NewManager(eng engine.Engine, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{eng: eng, logger: logger}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Acquire returns the engine, loading it first if necessary. If a load is
// already in flight the caller waits for that load rather than starting its
// own; all waiters of a failed load receive the same ErrLoad-wrapped error
// and the session resets so a subsequent Acquire retries.
func (m *Manager) Acquire(ctx context.Context) (engine.Engine, error) {
	for {
		m.mu.Lock()
		switch m.state {
		case StateReady:
			m.mu.Unlock()
			return m.eng, nil

		case StateLoading:
			attempt := m.current
			m.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("awaiting engine load: %w", ctx.Err())
			case <-attempt.done:
			}
			if attempt.err != nil {
				return nil, attempt.err
			}
			// Load succeeded; loop to observe Ready.

		case StateUninitialized:
			attempt := &loadAttempt{done: make(chan struct{})}
			m.state = StateLoading
			m.current = attempt
			m.mu.Unlock()
			return m.load(ctx, attempt)
		}
	}
}

// load runs the engine initialization on behalf of every current waiter.
func (m *Manager) load(ctx context.Context, attempt *loadAttempt) (engine.Engine, error) {
	m.logger.Info("loading engine")
	err := m.eng.Load(ctx)

	m.mu.Lock()
	if err != nil {
		m.state = StateUninitialized
		attempt.err = fmt.Errorf("%w: %w", ErrLoad, err)
	} else {
		m.state = StateReady
	}
	m.current = nil
	m.mu.Unlock()
	close(attempt.done)

	if attempt.err != nil {
		m.logger.Error("engine load failed", slog.String("error", err.Error()))
		return nil, attempt.err
	}
	m.logger.Info("engine ready")
	return m.eng, nil
}

// OnProgress subscribes to the engine's native progress stream. The manager
// is the translator between the engine's callback mechanism and the
// encoder's observer contract.
func (m *Manager) OnProgress(fn engine.ProgressFunc) (cancel func()) {
	return m.eng.OnProgress(fn)
}
