package effect

import (
	"sync"
	"time"

	"github.com/fogleman/ease"
	"github.com/robmorgan/tapsync/scale"
)

// Curve maps progress through the envelope, 0 to 1, onto an eased value in the same range.
type Curve func(t float64) float64

// Flash is a beat-synced envelope: every trigger jumps to a peak level which then decays to zero over
// a fraction of the beat. Downbeats flash at full level.
type Flash struct {
	// AccentLevel is the peak on the first beat of a bar.
	AccentLevel float64

	// BeatLevel is the peak on every other beat.
	BeatLevel float64

	// Decay is the fraction of the beat interval the flash takes to fade out.
	Decay float64

	// Curve shapes the fade. It defaults to ease.OutQuad, so the flash drops quickly and tails off.
	Curve Curve

	lock   sync.Mutex
	start  time.Time
	length time.Duration
	peak   float64
}

// NewFlash creates a Flash with the default shape.
func NewFlash() *Flash {
	return &Flash{
		AccentLevel: 1,
		BeatLevel:   0.6,
		Decay:       0.5,
		Curve:       ease.OutQuad,
	}
}

// Trigger restarts the envelope at the given time for a beat of the given interval.
func (f *Flash) Trigger(at time.Time, interval time.Duration, downbeat bool) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.start = at
	f.length = time.Duration(float64(interval) * scale.Clamp(f.Decay, 0, 1))
	f.peak = f.BeatLevel
	if downbeat {
		f.peak = f.AccentLevel
	}
}

// Level returns the envelope value at now, in [0, 1].
func (f *Flash) Level(now time.Time) float64 {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.length <= 0 || now.Before(f.start) {
		return 0
	}

	elapsed := now.Sub(f.start)
	if elapsed >= f.length {
		return 0
	}

	curve := f.Curve
	if curve == nil {
		curve = ease.OutQuad
	}
	progress := float64(elapsed) / float64(f.length)
	return scale.Clamp(f.peak*(1-curve(progress)), 0, 1)
}
