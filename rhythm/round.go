package rhythm

import (
	"math"
	"time"

	"github.com/robmorgan/tapsync/scale"
)

const (
	// WholeBPMStep is the quantization step used when whole-BPM rounding is enabled.
	WholeBPMStep = 1.0

	// FineBPMStep is the quantization step used otherwise.
	FineBPMStep = 0.1
)

// RoundBPM rounds bpm half-up to a multiple of step. The result is trimmed to six decimals so that
// repeated rounding is stable. A non-positive step returns bpm unchanged.
func RoundBPM(bpm, step float64) float64 {
	if step <= 0 {
		return bpm
	}
	rounded := math.Floor(bpm/step+0.5) * step
	return math.Round(rounded*1e6) / 1e6
}

// clampBPM limits bpm to the supported tempo range.
func clampBPM(bpm float64) float64 {
	return scale.Clamp(bpm, MinBPM, MaxBPM)
}

// beatInterval returns the length of a beat for a given tempo.
func beatInterval(bpm float64) time.Duration {
	return time.Duration(60.0 / bpm * float64(time.Second))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
