package rhythm

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/robmorgan/tapsync/logger"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

const (
	MinBPM      = 20.0
	MaxBPM      = 300.0
	DefaultBPM  = 120.0
	BeatsPerBar = 4

	// pausedPollInterval is how often a paused metronome checks whether it was resumed.
	pausedPollInterval = 50 * time.Millisecond

	bpmEpsilon = 1e-9
)

// tempoState is the live, authoritative tempo record. It is only touched while holding
// Metronome.mu.
type tempoState struct {
	bpm      float64
	beat     int
	bar      int
	running  bool
	lastBeat time.Time
}

type beatEvent struct {
	beat, bar int
}

// Metronome owns the shared tempo and advances beats and bars in real time. All of its methods are
// safe for concurrent use. Observer callbacks are always made after the internal lock is released.
type Metronome struct {
	mu    sync.Mutex
	state tempoState
	tap   *TapTracker
	step  float64

	clock    clock.Clock
	observer Observer

	once sync.Once
	done chan struct{}
}

// Option configures a Metronome.
type Option func(*Metronome)

// WithTempo sets the initial tempo. It is clamped and quantized like any other tempo change.
func WithTempo(bpm float64) Option {
	return func(m *Metronome) {
		if isFinite(bpm) {
			m.state.bpm = bpm
		}
	}
}

// WithWholeBPMRounding selects the initial quantization step.
func WithWholeBPMRounding(enabled bool) Option {
	return func(m *Metronome) {
		m.step = quantizeStep(enabled)
	}
}

// WithTapTracker replaces the default tap tracker.
func WithTapTracker(t *TapTracker) Option {
	return func(m *Metronome) {
		m.tap = t
	}
}

// NewMetronome creates a metronome at 120 BPM, beat 1 of bar 1, with whole-BPM rounding. A nil clock
// uses the real clock and a nil observer discards notifications.
func NewMetronome(clk clock.Clock, observer Observer, opts ...Option) *Metronome {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if observer == nil {
		observer = nopObserver{}
	}

	m := &Metronome{
		state: tempoState{
			bpm:     DefaultBPM,
			beat:    1,
			bar:     1,
			running: true,
		},
		tap:      NewTapTracker(),
		step:     WholeBPMStep,
		clock:    clk,
		observer: observer,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state.bpm = RoundBPM(clampBPM(m.state.bpm), m.step)
	m.state.lastBeat = clk.Now()

	return m
}

// Start launches the beat loop. It only has an effect the first time it is called; the loop runs
// until ctx is cancelled.
func (m *Metronome) Start(ctx context.Context) {
	m.once.Do(func() {
		go m.run(ctx)
	})
}

// Wait blocks until the beat loop started by Start has exited.
func (m *Metronome) Wait() {
	<-m.done
}

// State returns a snapshot of the current tempo state.
func (m *Metronome) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// SetBPM clamps bpm to [MinBPM, MaxBPM], quantizes it and makes it the current tempo.
func (m *Metronome) SetBPM(bpm float64) error {
	if !isFinite(bpm) {
		return &InvalidValueError{Field: "bpm", Value: bpm}
	}

	m.mu.Lock()
	changed := m.applyBPMLocked(bpm)
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snapshot, changed)
	return nil
}

// Nudge shifts the current tempo by delta BPM.
func (m *Metronome) Nudge(delta float64) error {
	if !isFinite(delta) {
		return &InvalidValueError{Field: "delta", Value: delta}
	}

	m.mu.Lock()
	changed := m.applyBPMLocked(m.state.bpm + delta)
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snapshot, changed)
	return nil
}

// Tap registers a tap at the current time. When the tap tracker produces an estimate it becomes the
// new tempo and Tap returns true. Otherwise the unchanged state is still broadcast, so observers can
// see tap activity, and Tap returns false.
func (m *Metronome) Tap() bool {
	m.mu.Lock()
	estimate, ok := m.tap.AddTap(m.clock.Now())
	changed := false
	if ok {
		changed = m.applyBPMLocked(estimate)
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snapshot, changed)
	return ok
}

// Resync restarts the beat phase on beat 1 of the current bar without touching the tempo.
func (m *Metronome) Resync() {
	m.mu.Lock()
	m.state.beat = 1
	m.state.lastBeat = m.clock.Now()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.observer.OnBeat(snapshot.Beat, snapshot.Bar)
	m.observer.OnState(snapshot)
}

// SetWholeBPMRounding switches the quantization step between whole and tenth BPM and re-quantizes
// the current tempo.
func (m *Metronome) SetWholeBPMRounding(enabled bool) {
	m.mu.Lock()
	m.step = quantizeStep(enabled)
	changed := m.applyBPMLocked(m.state.bpm)
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snapshot, changed)
}

// ToggleWholeBPMRounding atomically flips the quantization step and returns whether whole-BPM
// rounding is now on.
func (m *Metronome) ToggleWholeBPMRounding() bool {
	m.mu.Lock()
	enabled := m.step != WholeBPMStep
	m.step = quantizeStep(enabled)
	changed := m.applyBPMLocked(m.state.bpm)
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snapshot, changed)
	return enabled
}

// WholeBPMRounding reports whether tempos are rounded to whole BPM.
func (m *Metronome) WholeBPMRounding() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step == WholeBPMStep
}

// SetRunning pauses or resumes beat advancement. Resuming restarts the beat phase at the current
// time so the beats missed while paused are not emitted in a burst.
func (m *Metronome) SetRunning(running bool) {
	m.mu.Lock()
	changed := m.state.running != running
	m.state.running = running
	if changed && running {
		m.state.lastBeat = m.clock.Now()
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if changed {
		m.observer.OnState(snapshot)
	}
}

func (m *Metronome) run(ctx context.Context) {
	defer close(m.done)

	log := logger.GetProjectLogger()

	m.mu.Lock()
	m.state.lastBeat = m.clock.Now()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	m.observer.OnState(snapshot)

	log.WithFields(logrus.Fields{"bpm": snapshot.BPM}).Info("Metronome started")

	for {
		m.mu.Lock()
		bpm := m.state.bpm
		running := m.state.running
		lastBeat := m.state.lastBeat
		m.mu.Unlock()

		if !running {
			if !m.sleep(ctx, pausedPollInterval) {
				break
			}
			continue
		}

		next := lastBeat.Add(beatInterval(bpm))
		if !m.sleep(ctx, next.Sub(m.clock.Now())) {
			break
		}

		events, snapshot := m.advance()
		for _, e := range events {
			m.observer.OnBeat(e.beat, e.bar)
		}
		if len(events) > 0 {
			m.observer.OnState(snapshot)
		}
	}

	log.Info("Metronome shutdown")
}

// advance moves the beat position forward once for every beat boundary that has passed. The anchor
// advances by exactly one interval per beat so delays never skew the phase. It uses the state as it
// is now, which may differ from what the loop saw before sleeping.
func (m *Metronome) advance() ([]beatEvent, Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.running {
		return nil, m.snapshotLocked()
	}

	interval := beatInterval(m.state.bpm)
	now := m.clock.Now()
	next := m.state.lastBeat.Add(interval)

	var events []beatEvent
	for !now.Before(next) {
		m.state.lastBeat = next
		m.state.beat++
		if m.state.beat > BeatsPerBar {
			m.state.beat = 1
			m.state.bar++
		}
		events = append(events, beatEvent{beat: m.state.beat, bar: m.state.bar})
		next = m.state.lastBeat.Add(interval)
	}

	return events, m.snapshotLocked()
}

// sleep waits for d or until ctx is done. It returns false when ctx is done.
func (m *Metronome) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	t := m.clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return true
	}
}

// applyBPMLocked clamps, quantizes and stores bpm, reporting whether the stored value changed.
func (m *Metronome) applyBPMLocked(bpm float64) bool {
	previous := m.state.bpm
	m.state.bpm = RoundBPM(clampBPM(bpm), m.step)
	return math.Abs(m.state.bpm-previous) > bpmEpsilon
}

func (m *Metronome) snapshotLocked() Snapshot {
	return Snapshot{
		BPM:     m.state.bpm,
		Beat:    m.state.beat,
		Bar:     m.state.bar,
		Running: m.state.running,
	}
}

func (m *Metronome) notify(snapshot Snapshot, bpmChanged bool) {
	if bpmChanged {
		m.observer.OnBPM(snapshot.BPM)
	}
	m.observer.OnState(snapshot)
}

func quantizeStep(wholeBPM bool) float64 {
	if wholeBPM {
		return WholeBPMStep
	}
	return FineBPMStep
}
