package gif

// MinSegmentSec is the shortest segment the encoder will produce.
// Requests shorter than this are stretched to it during normalization.
const MinSegmentSec = 0.1

// Segment is a normalized trim range: a start offset and a duration,
// both in seconds.
type Segment struct {
	StartSec    float64
	DurationSec float64
}

// NormalizeSegment clamps a requested (start, end) range against the media
// duration. It always yields a usable segment: StartSec >= 0 and
// DurationSec >= MinSegmentSec, even for inverted or out-of-range input.
// There is no error path; degenerate requests produce a trivial segment
// rather than failing.
func NormalizeSegment(startSec, endSec, mediaDurationSec float64) Segment {
	start := startSec
	if upper := endSec - MinSegmentSec; start > upper {
		start = upper
	}
	if start < 0 {
		start = 0
	}
	if start > mediaDurationSec {
		start = mediaDurationSec
	}

	duration := endSec - start
	if duration < MinSegmentSec {
		duration = MinSegmentSec
	}

	return Segment{StartSec: start, DurationSec: duration}
}
