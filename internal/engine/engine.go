// Package engine defines the processing-engine capability consumed by the
// encoder: a private file namespace plus command execution, with a progress
// event stream. The engine is opaque; callers drive it only through this
// interface and never assume anything about how frames are produced.
package engine

import "context"

// ProgressFunc receives engine progress ratios in [0, 1] for the currently
// running command. Ratios are best-effort; the engine does not guarantee
// monotonicity.
type ProgressFunc func(ratio float64)

// Engine is the capability interface for the media-processing engine.
// Implementations own a private flat file namespace; names never contain
// path separators.
type Engine interface {
	// Load performs the engine's one-time expensive initialization.
	// It is safe to call again after a failed load.
	Load(ctx context.Context) error

	// WriteFile stores bytes under name in the engine's namespace,
	// replacing any previous content.
	WriteFile(ctx context.Context, name string, data []byte) error

	// Exec runs one engine command to completion. It returns an error on
	// nonzero exit, carrying whatever diagnostic text the engine produced.
	Exec(ctx context.Context, args []string) error

	// ReadFile returns the bytes stored under name.
	ReadFile(ctx context.Context, name string) ([]byte, error)

	// DeleteFile removes name from the namespace. Deleting a missing file
	// is not an error.
	DeleteFile(ctx context.Context, name string) error

	// OnProgress registers a progress observer and returns a function that
	// removes it. Observers may be invoked from the engine's own goroutine.
	OnProgress(fn ProgressFunc) (cancel func())
}

// DurationProber is an optional engine capability: reporting the duration in
// seconds of a media file already written into the engine's namespace.
type DurationProber interface {
	Duration(ctx context.Context, name string) (float64, error)
}
