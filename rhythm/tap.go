package rhythm

import (
	"math"
	"time"

	"golang.org/x/exp/slices"
)

const (
	// madBandFactor is the multiple of the median absolute deviation an interval may stray from the
	// median before it is treated as an outlier.
	madBandFactor = 2.8

	minDispersion = 1e-9
)

// TapTracker turns a stream of tap timestamps into a smoothed tempo estimate. It is not safe for
// concurrent use; the Metronome serialises access to its tracker.
type TapTracker struct {
	// MaxTaps bounds the tap history; the oldest taps are discarded first.
	MaxTaps int

	// ResetGap is the silence after which the history is discarded and a new run starts.
	ResetGap time.Duration

	// MinInterval and MaxInterval bound the tap intervals considered plausible.
	MinInterval time.Duration
	MaxInterval time.Duration

	// Tolerance is the fallback outlier band, as a fraction of the median interval.
	Tolerance float64

	// RecentWindow is the number of most recent intervals used for the weighted average.
	RecentWindow int

	taps    []time.Time
	last    float64
	hasLast bool
}

// NewTapTracker creates a TapTracker with the default tuning.
func NewTapTracker() *TapTracker {
	return &TapTracker{
		MaxTaps:      12,
		ResetGap:     2500 * time.Millisecond,
		MinInterval:  200 * time.Millisecond,
		MaxInterval:  3 * time.Second,
		Tolerance:    0.22,
		RecentWindow: 6,
	}
}

// AddTap records a tap at ts and returns the current tempo estimate. The second return value is
// false while there is not enough consistent data for an estimate; that is a normal outcome and
// not an error. Taps that are not strictly after the previous tap are ignored.
func (t *TapTracker) AddTap(ts time.Time) (float64, bool) {
	if n := len(t.taps); n > 0 {
		prev := t.taps[n-1]
		if !ts.After(prev) {
			return 0, false
		}

		// A long pause means a new tempo is being tapped in.
		if ts.Sub(prev) > t.ResetGap {
			t.taps = append(t.taps[:0], ts)
			t.hasLast = false
			return 0, false
		}
	}

	t.taps = append(t.taps, ts)
	if excess := len(t.taps) - t.MaxTaps; t.MaxTaps > 0 && excess > 0 {
		copy(t.taps, t.taps[excess:])
		t.taps = t.taps[:t.MaxTaps]
	}

	// Need at least 3 taps (2 intervals) for a stable estimate.
	if len(t.taps) < 3 {
		return 0, false
	}

	intervals := make([]float64, 0, len(t.taps)-1)
	for i := 1; i < len(t.taps); i++ {
		d := t.taps[i].Sub(t.taps[i-1])
		if d >= t.MinInterval && d <= t.MaxInterval {
			intervals = append(intervals, d.Seconds())
		}
	}
	if len(intervals) < 2 {
		return 0, false
	}

	center := median(intervals)
	if center <= 0 {
		return 0, false
	}

	good := rejectOutliers(intervals, center, t.Tolerance)
	if len(good) < 2 {
		return 0, false
	}

	interval := recencyWeightedMean(good, t.RecentWindow)
	if interval <= 0 {
		return 0, false
	}

	bpm := 60.0 / interval
	if bpm < MinBPM || bpm > MaxBPM {
		return 0, false
	}

	if t.hasLast {
		drift := math.Abs(bpm-t.last) / math.Max(t.last, 1e-6)
		alpha := smoothingAlpha(drift)
		bpm = (1-alpha)*t.last + alpha*bpm
	}

	t.last = bpm
	t.hasLast = true
	return bpm, true
}

// Reset discards the tap history and the smoothing memory.
func (t *TapTracker) Reset() {
	t.taps = t.taps[:0]
	t.hasLast = false
}

// Len returns the number of taps currently held.
func (t *TapTracker) Len() int {
	return len(t.taps)
}

// rejectOutliers keeps the intervals inside a MAD band around center. When the taps are too
// consistent to measure dispersion every interval is kept; when the MAD band leaves fewer than two
// intervals a band of tolerance*center is used instead.
func rejectOutliers(intervals []float64, center, tolerance float64) []float64 {
	deviations := make([]float64, len(intervals))
	for i, x := range intervals {
		deviations[i] = math.Abs(x - center)
	}
	mad := median(deviations)

	var good []float64
	if mad > minDispersion {
		good = within(intervals, center, madBandFactor*mad)
	} else {
		good = append([]float64(nil), intervals...)
	}

	if len(good) < 2 {
		good = within(intervals, center, tolerance*center)
	}
	return good
}

func within(values []float64, center, band float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.Abs(v-center) <= band {
			out = append(out, v)
		}
	}
	return out
}

// recencyWeightedMean averages the last window values with weights 1..N, the newest value weighing
// the most.
func recencyWeightedMean(values []float64, window int) float64 {
	recent := values
	if window > 0 && len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	var sum, weights float64
	for i, v := range recent {
		w := float64(i + 1)
		sum += v * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// smoothingAlpha picks how much of a new estimate to blend in: small jitter is damped, large tempo
// jumps are followed quickly.
func smoothingAlpha(drift float64) float64 {
	switch {
	case drift < 0.08:
		return 0.45
	case drift < 0.2:
		return 0.6
	default:
		return 0.8
	}
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
