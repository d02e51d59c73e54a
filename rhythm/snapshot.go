package rhythm

import (
	"fmt"
	"time"
)

// Snapshot is a copy of the metronome's tempo state taken at a single point in time. It is never
// an alias of the live state, so holders may keep or modify it freely.
type Snapshot struct {
	// BPM is the quantized tempo, always within [MinBPM, MaxBPM].
	BPM float64 `json:"bpm"`

	// Beat is the position within the bar, 1 to BeatsPerBar.
	Beat int `json:"beat"`

	// Bar counts bars since the metronome started. It never decreases.
	Bar int `json:"bar"`

	// Running reports whether the clock is advancing beats.
	Running bool `json:"running"`
}

// BeatInterval returns the length of one beat at the snapshot's tempo.
func (s Snapshot) BeatInterval() time.Duration {
	return beatInterval(s.BPM)
}

// IsDownBeat checks whether the snapshot sits on the first beat of its bar.
func (s Snapshot) IsDownBeat() bool {
	return s.Beat == 1
}

// GetMarker returns the position represented by the snapshot as "bar.beat".
func (s Snapshot) GetMarker() string {
	return fmt.Sprintf("%d.%d", s.Bar, s.Beat)
}

// Observer receives notifications from a Metronome. Every method is called after the metronome has
// released its lock, so implementations may call back into the metronome. Implementations should
// hand slow work (network fan-out, device I/O) to their own goroutines.
type Observer interface {
	// OnState is called whenever bpm, beat/bar or running changes, and on taps that did not yield
	// an estimate.
	OnState(s Snapshot)

	// OnBPM is called only when the quantized tempo actually changes.
	OnBPM(bpm float64)

	// OnBeat is called once per beat boundary crossed, in increasing order.
	OnBeat(beat, bar int)
}

type nopObserver struct{}

func (nopObserver) OnState(Snapshot) {}
func (nopObserver) OnBPM(float64)    {}
func (nopObserver) OnBeat(int, int)  {}

// InvalidValueError is returned when a tempo command carries a value that cannot be applied, such
// as NaN or an infinite delta. The metronome state is left untouched.
type InvalidValueError struct {
	Field string
	Value float64
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s: %v is not a finite number", e.Field, e.Value)
}
