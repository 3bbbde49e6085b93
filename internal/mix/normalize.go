package mix

import (
	"errors"
	"fmt"
	"math"
)

// Normalization modes for the optional final pass.
const (
	NormalizeModePeak = "peak"
	NormalizeModeRMS  = "rms"
)

// DefaultNormalizeTarget leaves a little headroom below full scale.
const DefaultNormalizeTarget = 0.95

// ErrUnknownNormalizeMode indicates a normalize_mode outside {peak, rms}.
var ErrUnknownNormalizeMode = errors.New("unknown normalize mode")

// Normalize scales the whole buffer in place so its peak or RMS level matches
// the target, and returns the applied gain. This is the only place the
// pipeline adjusts overall level; the mixer itself never guards against
// clipping. A zero or negative target selects the default.
func Normalize(samples []float64, mode string, target float64) (float64, error) {
	if target <= 0 {
		target = DefaultNormalizeTarget
	}

	var level float64

	switch mode {
	case NormalizeModePeak, "":
		level = peak(samples)
	case NormalizeModeRMS:
		level = rms(samples)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownNormalizeMode, mode)
	}

	if level == 0 {
		// Silent buffer; nothing to scale.
		return 1, nil
	}

	gain := target / level
	for i := range samples {
		samples[i] *= gain
	}

	return gain, nil
}

func peak(samples []float64) float64 {
	highest := 0.0

	for _, sample := range samples {
		if value := math.Abs(sample); value > highest {
			highest = value
		}
	}

	return highest
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += sample * sample
	}

	return math.Sqrt(sum / float64(len(samples)))
}
