// Package gif holds the pure domain types for GIF encoding: the encode
// request, quality profiles, segment normalization and the two-pass
// filter-graph builders. Nothing here touches the engine or does I/O.
package gif

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Request describes one encode: the source video bytes, the trim range and
// the output parameters. Requests are treated as immutable once built.
type Request struct {
	// Source is the raw video container bytes.
	Source []byte `validate:"required,min=1"`
	// StartSec is the requested trim start in seconds.
	StartSec float64 `validate:"gte=0"`
	// EndSec is the requested trim end in seconds. An end before the start
	// is not an error; normalization corrects inverted ranges.
	EndSec float64 `validate:"gt=0"`
	// FPS is the output frame rate.
	FPS int `validate:"min=6,max=30"`
	// Width is the output width in pixels; height follows the aspect ratio.
	Width int `validate:"min=160,max=720"`
	// Loop selects infinite looping; false plays the GIF once.
	Loop bool
	// Quality selects the encoding profile.
	Quality Quality `validate:"required"`
	// SourceDurationSec is the full duration of the source, if the caller
	// knows it. Zero means unknown; the encoder probes or falls back.
	SourceDurationSec float64 `validate:"gte=0"`
}

var validate = validator.New()

// Validate checks the request against its field constraints.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid encode request: %w", err)
	}
	if !r.Quality.IsValid() {
		return fmt.Errorf("invalid encode request: unknown quality %q", r.Quality)
	}
	return nil
}

// FilterGraph resolves the request's quality profile and normalized segment
// into the two-pass filter graph. mediaDurationSec bounds the trim range;
// callers pass the probed duration, or the request's own hint.
func (r Request) FilterGraph(mediaDurationSec float64) FilterGraph {
	return FilterGraph{
		Segment: NormalizeSegment(r.StartSec, r.EndSec, mediaDurationSec),
		FPS:     r.FPS,
		Width:   r.Width,
		Profile: ResolveProfile(r.Quality),
		Loop:    r.Loop,
	}
}
