package gif

import (
	"fmt"
	"strconv"
)

// Two-pass palette encoding: pass 1 samples the trimmed frame stream and
// computes an optimal 256-color palette, pass 2 re-samples the same stream
// and maps it through that palette with dithering. Single-pass GIF encoding
// quantizes per-frame and looks visibly worse.
//
// The trim, fps and scale parameters MUST be identical in both passes so the
// palette is computed from exactly the pixel stream it is later applied to.
// Mismatched passes produce banding or corrupted frames.

// FilterGraph builds the two ffmpeg invocations for one encode request.
type FilterGraph struct {
	Segment Segment
	FPS     int
	Width   int
	Profile Profile
	Loop    bool
}

// frameFilter is the shared fps+scale filter chain. Both passes call this
// so the two filter strings cannot drift apart.
func (g FilterGraph) frameFilter() string {
	return fmt.Sprintf("fps=%d,scale=%d:-1:flags=%s", g.FPS, g.Width, g.Profile.Scale)
}

// trimArgs returns the input trim flags, identical for both passes.
func (g FilterGraph) trimArgs() []string {
	return []string{
		"-ss", formatSeconds(g.Segment.StartSec),
		"-t", formatSeconds(g.Segment.DurationSec),
	}
}

// PaletteArgs returns the argv for the palette-generation pass, reading
// inputName and writing the palette image to paletteName.
func (g FilterGraph) PaletteArgs(inputName, paletteName string) []string {
	args := []string{"-y"}
	args = append(args, g.trimArgs()...)
	args = append(args,
		"-i", inputName,
		"-vf", g.frameFilter()+",palettegen",
		paletteName,
	)
	return args
}

// EncodeArgs returns the argv for the palette-application pass, reading
// inputName plus paletteName and writing the final GIF to outputName.
func (g FilterGraph) EncodeArgs(inputName, paletteName, outputName string) []string {
	loop := "0" // infinite
	if !g.Loop {
		loop = "1" // play once
	}

	filter := fmt.Sprintf("%s[x];[x][1:v]paletteuse=dither=%s", g.frameFilter(), g.Profile.Dither)

	args := []string{"-y"}
	args = append(args, g.trimArgs()...)
	args = append(args,
		"-i", inputName,
		"-i", paletteName,
		"-lavfi", filter,
		"-loop", loop,
		outputName,
	)
	return args
}

// formatSeconds renders a time offset with millisecond precision, which is
// as fine as ffmpeg seeks reliably.
func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
