package output

import (
	"sync"

	"github.com/hypebeast/go-osc/osc"
	"github.com/robmorgan/tapsync/logger"
	"github.com/sirupsen/logrus"
)

// Settings is the full configuration of the OSC outputs.
type Settings struct {
	MA3      TargetSettings
	Resolume TargetSettings
	HeavyM   TargetSettings

	MA3OSC    MA3Settings
	HeavyMOSC HeavyMSettings
}

type target struct {
	settings TargetSettings
	sender   Sender
}

type delivery struct {
	target  string
	sender  Sender
	message *osc.Message
}

// Outputs fans tempo changes out to the OSC targets. All methods are safe for concurrent use. Send
// failures are logged and never returned: a target that is offline must not affect the tempo.
type Outputs struct {
	lock      sync.Mutex
	newSender SenderFactory
	targets   map[string]*target
	ma3       MA3Settings
	heavym    HeavyMSettings
	log       *logrus.Entry
}

// NewOutputs creates the targets described by settings. A nil factory sends over UDP.
func NewOutputs(settings Settings, newSender SenderFactory) *Outputs {
	if newSender == nil {
		newSender = NewUDPSender
	}

	o := &Outputs{
		newSender: newSender,
		targets:   map[string]*target{},
		ma3:       settings.MA3OSC.clone(),
		heavym:    settings.HeavyMOSC,
		log:       logger.GetProjectLogger().WithField("component", "outputs"),
	}
	for name, s := range map[string]TargetSettings{
		TargetMA3:      settings.MA3,
		TargetResolume: settings.Resolume,
		TargetHeavyM:   settings.HeavyM,
	} {
		o.targets[name] = &target{settings: s, sender: newSender(s.IP, s.Port)}
	}

	return o
}

// SetBPM sends the tempo to every enabled target.
func (o *Outputs) SetBPM(bpm float64) {
	o.lock.Lock()
	var out []delivery
	for _, name := range Targets {
		if o.targets[name].settings.Enabled {
			out = append(out, o.tempoLocked(name, bpm)...)
		}
	}
	o.lock.Unlock()

	o.deliver(out)
}

// SetBPMForTarget sends the tempo to a single target, whether or not it is enabled.
func (o *Outputs) SetBPMForTarget(name string, bpm float64) error {
	name, err := NormalizeTarget(name)
	if err != nil {
		return err
	}

	o.lock.Lock()
	out := o.tempoLocked(name, bpm)
	o.lock.Unlock()

	o.deliver(out)
	return nil
}

// Beat forwards a beat boundary to the targets that follow individual beats.
func (o *Outputs) Beat(beat, bar int) {
	o.lock.Lock()
	var out []delivery
	if t := o.targets[TargetHeavyM]; t.settings.Enabled {
		out = deliveries(TargetHeavyM, t.sender, heavyMBeat(o.heavym, beat, bar)...)
	}
	o.lock.Unlock()

	o.deliver(out)
}

// Resync tells every enabled target that supports it to restart its beat phase.
func (o *Outputs) Resync() {
	o.lock.Lock()
	var out []delivery
	for _, name := range []string{TargetResolume, TargetHeavyM} {
		if o.targets[name].settings.Enabled {
			out = append(out, o.resyncLocked(name)...)
		}
	}
	o.lock.Unlock()

	o.deliver(out)
}

// TriggerResyncForTarget sends a resync to a single target, whether or not it is enabled.
func (o *Outputs) TriggerResyncForTarget(name string) error {
	name, err := NormalizeTarget(name)
	if err != nil {
		return err
	}

	o.lock.Lock()
	out := o.resyncLocked(name)
	o.lock.Unlock()

	o.deliver(out)
	return nil
}

// SetMetronome switches Resolume's audible metronome.
func (o *Outputs) SetMetronome(enabled bool) {
	o.lock.Lock()
	var out []delivery
	if t := o.targets[TargetResolume]; t.settings.Enabled {
		out = deliveries(TargetResolume, t.sender, resolumeMetronome(enabled))
	}
	o.lock.Unlock()

	o.deliver(out)
}

// SetOutputEnabled enables or disables a target.
func (o *Outputs) SetOutputEnabled(name string, enabled bool) error {
	name, err := NormalizeTarget(name)
	if err != nil {
		return err
	}

	o.lock.Lock()
	defer o.lock.Unlock()
	o.targets[name].settings.Enabled = enabled
	return nil
}

// SetOutputTarget points a target at a new host and port.
func (o *Outputs) SetOutputTarget(name, ip string, port int) error {
	name, err := NormalizeTarget(name)
	if err != nil {
		return err
	}

	o.lock.Lock()
	defer o.lock.Unlock()

	t := o.targets[name]
	updated := TargetSettings{Enabled: t.settings.Enabled, IP: ip, Port: port}
	if err := updated.Validate(); err != nil {
		return err
	}
	t.settings = updated
	t.sender = o.newSender(ip, port)

	o.log.WithFields(logrus.Fields{"target": name, "ip": ip, "port": port}).Info("OSC target updated")
	return nil
}

// IsEnabled reports whether the named target receives updates.
func (o *Outputs) IsEnabled(name string) bool {
	o.lock.Lock()
	defer o.lock.Unlock()

	t, ok := o.targets[name]
	return ok && t.settings.Enabled
}

// SetMA3OSC replaces the primary master and/or the extra masters. A nil argument leaves that part
// unchanged.
func (o *Outputs) SetMA3OSC(primaryMaster *string, extras []MA3Extra) {
	o.lock.Lock()
	defer o.lock.Unlock()

	if primaryMaster != nil {
		o.ma3.PrimaryMaster = *primaryMaster
	}
	if extras != nil {
		o.ma3.Extras = append([]MA3Extra{}, extras...)
	}
}

// SetHeavyMOSC applies a partial HeavyM settings change. The change is rejected as a whole if the
// result is invalid.
func (o *Outputs) SetHeavyMOSC(update HeavyMUpdate) error {
	o.lock.Lock()
	defer o.lock.Unlock()

	updated := update.Apply(o.heavym)
	if err := updated.Validate(); err != nil {
		return err
	}
	o.heavym = updated
	return nil
}

// SettingsSnapshot returns the settings of every target keyed by name.
func (o *Outputs) SettingsSnapshot() map[string]TargetSettings {
	o.lock.Lock()
	defer o.lock.Unlock()

	out := make(map[string]TargetSettings, len(o.targets))
	for name, t := range o.targets {
		out[name] = t.settings
	}
	return out
}

// MA3Settings returns a copy of the MA3 master settings.
func (o *Outputs) MA3Settings() MA3Settings {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.ma3.clone()
}

// HeavyMSettings returns a copy of the HeavyM OSC settings.
func (o *Outputs) HeavyMSettings() HeavyMSettings {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.heavym
}

func (o *Outputs) tempoLocked(name string, bpm float64) []delivery {
	t := o.targets[name]
	switch name {
	case TargetMA3:
		return deliveries(name, t.sender, ma3Messages(o.ma3, bpm)...)
	case TargetResolume:
		return deliveries(name, t.sender, resolumeTempo(bpm))
	case TargetHeavyM:
		return deliveries(name, t.sender, heavyMTempo(o.heavym, bpm))
	}
	return nil
}

func (o *Outputs) resyncLocked(name string) []delivery {
	t := o.targets[name]
	switch name {
	case TargetResolume:
		return deliveries(name, t.sender, resolumeResync())
	case TargetHeavyM:
		return deliveries(name, t.sender, heavyMResync(o.heavym)...)
	}
	return nil
}

func deliveries(name string, sender Sender, messages ...*osc.Message) []delivery {
	out := make([]delivery, 0, len(messages))
	for _, m := range messages {
		out = append(out, delivery{target: name, sender: sender, message: m})
	}
	return out
}

func (o *Outputs) deliver(out []delivery) {
	for _, d := range out {
		if err := d.sender.Send(d.message); err != nil {
			o.log.WithFields(logrus.Fields{
				"target":  d.target,
				"address": d.message.Address,
			}).WithError(err).Warn("OSC send failed")
		}
	}
}
