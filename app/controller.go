package app

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/robmorgan/tapsync/logger"
	"github.com/robmorgan/tapsync/output"
	"github.com/robmorgan/tapsync/rhythm"
	"github.com/robmorgan/tapsync/server"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// Broadcaster delivers a payload to every connected client without blocking.
type Broadcaster interface {
	Broadcast(payload interface{})
}

// Controller owns the metronome and connects it to the outputs and the connected clients. It is
// the metronome's observer and the target of every control surface.
type Controller struct {
	metronome   *rhythm.Metronome
	outputs     *output.Outputs
	broadcaster Broadcaster
	flasher     *output.DMXFlasher

	lock             sync.Mutex
	metronomeEnabled bool

	log *logrus.Entry
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithDMXFlasher flashes a DMX channel on every beat.
func WithDMXFlasher(flasher *output.DMXFlasher) ControllerOption {
	return func(c *Controller) {
		c.flasher = flasher
	}
}

// NewController creates a Controller and its metronome. The metronome is not started.
func NewController(clk clock.Clock, initialBPM float64, roundWholeBPM bool, outputs *output.Outputs, broadcaster Broadcaster, opts ...ControllerOption) *Controller {
	c := &Controller{
		outputs:     outputs,
		broadcaster: broadcaster,
		log:         logger.GetProjectLogger().WithField("component", "controller"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.metronome = rhythm.NewMetronome(clk, c,
		rhythm.WithWholeBPMRounding(roundWholeBPM),
		rhythm.WithTempo(initialBPM),
	)
	return c
}

// Start starts the metronome; it runs until ctx is done.
func (c *Controller) Start(ctx context.Context) {
	c.metronome.Start(ctx)
}

// Wait blocks until the metronome has stopped.
func (c *Controller) Wait() {
	c.metronome.Wait()
}

// OnState implements rhythm.Observer.
func (c *Controller) OnState(s rhythm.Snapshot) {
	c.broadcaster.Broadcast(c.statePayload(s))
}

// OnBPM implements rhythm.Observer.
func (c *Controller) OnBPM(bpm float64) {
	c.log.WithField("bpm", bpm).Debug("Tempo changed")
	c.outputs.SetBPM(bpm)
}

// OnBeat implements rhythm.Observer.
func (c *Controller) OnBeat(beat, bar int) {
	c.outputs.Beat(beat, bar)
	if c.flasher != nil {
		c.flasher.Beat(c.metronome.State().BeatInterval(), beat == 1)
	}
}

func (c *Controller) Tap() bool {
	return c.metronome.Tap()
}

func (c *Controller) SetBPM(bpm float64) error {
	return c.metronome.SetBPM(bpm)
}

func (c *Controller) Nudge(delta float64) error {
	return c.metronome.Nudge(delta)
}

// Resync restarts the beat phase here and on every output that supports it.
func (c *Controller) Resync() {
	c.metronome.Resync()
	c.outputs.Resync()
}

func (c *Controller) SetRunning(running bool) {
	c.metronome.SetRunning(running)
}

// SyncBPM sends the current tempo to the console only.
func (c *Controller) SyncBPM() error {
	return c.outputs.SetBPMForTarget(output.TargetMA3, c.metronome.State().BPM)
}

func (c *Controller) ToggleMetronome() {
	c.lock.Lock()
	c.metronomeEnabled = !c.metronomeEnabled
	enabled := c.metronomeEnabled
	c.lock.Unlock()

	c.applyMetronome(enabled)
}

func (c *Controller) SetMetronome(enabled bool) {
	c.lock.Lock()
	c.metronomeEnabled = enabled
	c.lock.Unlock()

	c.applyMetronome(enabled)
}

func (c *Controller) applyMetronome(enabled bool) {
	c.outputs.SetMetronome(enabled)
	c.broadcaster.Broadcast(c.State())
}

// ToggleRoundWholeBPM flips the rounding step. The metronome owns the flag.
func (c *Controller) ToggleRoundWholeBPM() {
	c.metronome.ToggleWholeBPMRounding()
	c.broadcaster.Broadcast(c.Settings())
}

func (c *Controller) SetRoundWholeBPM(enabled bool) {
	c.metronome.SetWholeBPMRounding(enabled)
	c.broadcaster.Broadcast(c.Settings())
}

// SetOutputEnabled enables or disables a target. A target that is switched on is brought up to date
// straight away.
func (c *Controller) SetOutputEnabled(target string, enabled bool) error {
	target, err := output.NormalizeTarget(target)
	if err != nil {
		return err
	}
	if err := c.outputs.SetOutputEnabled(target, enabled); err != nil {
		return err
	}
	if enabled {
		c.syncOutput(target)
	}
	c.broadcaster.Broadcast(c.Settings())
	return nil
}

func (c *Controller) SetOutputTarget(target, ip string, port int) error {
	target, err := output.NormalizeTarget(target)
	if err != nil {
		return err
	}
	if err := c.outputs.SetOutputTarget(target, strings.TrimSpace(ip), port); err != nil {
		return err
	}
	c.syncOutputIfEnabled(target)
	c.broadcaster.Broadcast(c.Settings())
	return nil
}

func (c *Controller) SetMA3OSC(primaryMaster *string, extras []output.MA3Extra) error {
	c.outputs.SetMA3OSC(primaryMaster, extras)
	c.syncOutputIfEnabled(output.TargetMA3)
	c.broadcaster.Broadcast(c.Settings())
	return nil
}

func (c *Controller) SetHeavyMOSC(update output.HeavyMUpdate) error {
	if err := c.outputs.SetHeavyMOSC(update); err != nil {
		return err
	}
	c.syncOutputIfEnabled(output.TargetHeavyM)
	c.broadcaster.Broadcast(c.Settings())
	return nil
}

// TestHeavyMBPM sends bpm to HeavyM without changing the tempo, to check the OSC mapping.
func (c *Controller) TestHeavyMBPM(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return &rhythm.InvalidValueError{Field: "bpm", Value: bpm}
	}
	return c.outputs.SetBPMForTarget(output.TargetHeavyM, bpm)
}

// TestHeavyMSync sends a resync to HeavyM only.
func (c *Controller) TestHeavyMSync() error {
	return c.outputs.TriggerResyncForTarget(output.TargetHeavyM)
}

// State returns the state payload for the current tempo.
func (c *Controller) State() server.StatePayload {
	return c.statePayload(c.metronome.State())
}

// Settings returns the current output settings payload.
func (c *Controller) Settings() server.SettingsPayload {
	return server.NewSettingsPayload(c.outputs, c.RoundWholeBPM())
}

func (c *Controller) Snapshot() rhythm.Snapshot {
	return c.metronome.State()
}

func (c *Controller) RoundWholeBPM() bool {
	return c.metronome.WholeBPMRounding()
}

func (c *Controller) MetronomeEnabled() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.metronomeEnabled
}

func (c *Controller) statePayload(s rhythm.Snapshot) server.StatePayload {
	return server.NewStatePayload(s, c.MetronomeEnabled(), c.RoundWholeBPM())
}

func (c *Controller) syncOutputIfEnabled(target string) {
	if c.outputs.IsEnabled(target) {
		c.syncOutput(target)
	}
}

// syncOutput brings a single target up to date with the current tempo.
func (c *Controller) syncOutput(target string) {
	if err := c.outputs.SetBPMForTarget(target, c.metronome.State().BPM); err != nil {
		c.log.WithField("target", target).WithError(err).Warn("Could not sync output")
		return
	}
	if target == output.TargetResolume {
		c.outputs.SetMetronome(c.MetronomeEnabled())
	}
}
