package gif

// Quality selects the palette/dithering trade-off for an encode.
type Quality string

const (
	// QualityLow favors speed: ordered bayer dithering and bilinear scaling.
	QualityLow Quality = "low"
	// QualityMedium uses Floyd-Steinberg dithering and bicubic scaling.
	QualityMedium Quality = "medium"
	// QualityHigh uses Sierra-2-4A dithering and lanczos scaling.
	QualityHigh Quality = "high"
)

// IsValid returns true if the quality tier is one of the known values.
func (q Quality) IsValid() bool {
	return q == QualityLow || q == QualityMedium || q == QualityHigh
}

// Profile holds the filter-graph parameters derived from a quality tier.
// Profiles are immutable; ResolveProfile returns the same values for the
// same tier on every call.
type Profile struct {
	// Dither is the paletteuse dithering algorithm.
	Dither string
	// Scale is the swscale flags value applied in both passes.
	Scale string
}

// profiles maps each quality tier to its fixed filter parameters.
var profiles = map[Quality]Profile{
	QualityLow:    {Dither: "bayer:bayer_scale=5", Scale: "bilinear"},
	QualityMedium: {Dither: "floyd_steinberg", Scale: "bicubic"},
	QualityHigh:   {Dither: "sierra2_4a", Scale: "lanczos"},
}

// ResolveProfile maps a quality tier to its encoding profile.
// Unknown tiers fall back to the medium profile so the function stays total.
func ResolveProfile(q Quality) Profile {
	if p, ok := profiles[q]; ok {
		return p
	}
	return profiles[QualityMedium]
}
