package output

import (
	"fmt"
	"math"

	"github.com/hypebeast/go-osc/osc"
	"github.com/robmorgan/tapsync/scale"
)

// HeavyMSettings maps the tempo onto the OSC assignments configured in HeavyM. HeavyM sliders take
// values in [0,1], so the tempo is normalised over [BPMMin, BPMMax].
type HeavyMSettings struct {
	BPMAddress     string  `json:"bpm_address" yaml:"bpm_address" split_words:"true"`
	ResyncAddress  string  `json:"resync_address" yaml:"resync_address" split_words:"true"`
	BeatAddress    string  `json:"beat_address" yaml:"beat_address" split_words:"true"`
	BarAddress     string  `json:"bar_address" yaml:"bar_address" split_words:"true"`
	BPMMin         float64 `json:"bpm_min" yaml:"bpm_min" split_words:"true"`
	BPMMax         float64 `json:"bpm_max" yaml:"bpm_max" split_words:"true"`
	ResyncValue    float64 `json:"resync_value" yaml:"resync_value" split_words:"true"`
	ResyncSendZero bool    `json:"resync_send_zero" yaml:"resync_send_zero" split_words:"true"`
}

// DefaultHeavyMSettings returns the addresses and range used unless configured otherwise.
func DefaultHeavyMSettings() HeavyMSettings {
	return HeavyMSettings{
		BPMAddress:     "/bpm-tap-sync/bpm",
		ResyncAddress:  "/bpm-tap-sync/resync",
		BeatAddress:    "/bpm-tap-sync/beat",
		BarAddress:     "/bpm-tap-sync/bar",
		BPMMin:         20,
		BPMMax:         300,
		ResyncValue:    1,
		ResyncSendZero: true,
	}
}

// Validate checks the addresses and the normalisation range.
func (s HeavyMSettings) Validate() error {
	for _, address := range []string{s.BPMAddress, s.ResyncAddress} {
		if err := ValidateAddress(address); err != nil {
			return err
		}
	}
	for _, address := range []string{s.BeatAddress, s.BarAddress} {
		if address == "" {
			continue
		}
		if err := ValidateAddress(address); err != nil {
			return err
		}
	}
	for _, v := range []float64{s.BPMMin, s.BPMMax, s.ResyncValue} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("heavym setting %v is not a finite number", v)
		}
	}
	if s.BPMMin >= s.BPMMax {
		return fmt.Errorf("heavym bpm_min (%v) must be below bpm_max (%v)", s.BPMMin, s.BPMMax)
	}
	return nil
}

// Normalize maps bpm onto [0,1] over the configured range.
func (s HeavyMSettings) Normalize(bpm float64) float64 {
	return scale.ToUnitClamp(s.BPMMin, s.BPMMax)(bpm)
}

// HeavyMUpdate is a partial change to HeavyMSettings. Nil fields are left as they are.
type HeavyMUpdate struct {
	BPMAddress     *string
	ResyncAddress  *string
	BPMMin         *float64
	BPMMax         *float64
	ResyncValue    *float64
	ResyncSendZero *bool
}

// Empty reports whether the update changes nothing.
func (u HeavyMUpdate) Empty() bool {
	return u.BPMAddress == nil && u.ResyncAddress == nil && u.BPMMin == nil && u.BPMMax == nil &&
		u.ResyncValue == nil && u.ResyncSendZero == nil
}

// Apply returns s with the update applied.
func (u HeavyMUpdate) Apply(s HeavyMSettings) HeavyMSettings {
	if u.BPMAddress != nil {
		s.BPMAddress = *u.BPMAddress
	}
	if u.ResyncAddress != nil {
		s.ResyncAddress = *u.ResyncAddress
	}
	if u.BPMMin != nil {
		s.BPMMin = *u.BPMMin
	}
	if u.BPMMax != nil {
		s.BPMMax = *u.BPMMax
	}
	if u.ResyncValue != nil {
		s.ResyncValue = *u.ResyncValue
	}
	if u.ResyncSendZero != nil {
		s.ResyncSendZero = *u.ResyncSendZero
	}
	return s
}

func heavyMTempo(s HeavyMSettings, bpm float64) *osc.Message {
	return osc.NewMessage(s.BPMAddress, float32(s.Normalize(bpm)))
}

func heavyMResync(s HeavyMSettings) []*osc.Message {
	messages := []*osc.Message{osc.NewMessage(s.ResyncAddress, float32(s.ResyncValue))}
	if s.ResyncSendZero {
		messages = append(messages, osc.NewMessage(s.ResyncAddress, float32(0)))
	}
	return messages
}

func heavyMBeat(s HeavyMSettings, beat, bar int) []*osc.Message {
	var messages []*osc.Message
	if s.BeatAddress != "" {
		messages = append(messages, osc.NewMessage(s.BeatAddress, int32(beat)))
	}
	if s.BarAddress != "" {
		messages = append(messages, osc.NewMessage(s.BarAddress, int32(bar)))
	}
	return messages
}
