package server

import (
	"errors"

	"github.com/robmorgan/tapsync/output"
)

// Controller is everything the WebSocket commands can do. Implementations broadcast the resulting
// state or settings changes themselves.
type Controller interface {
	Tap() bool
	SetBPM(bpm float64) error
	Nudge(delta float64) error
	Resync()
	SetRunning(running bool)

	// SyncBPM sends the current tempo to the console only.
	SyncBPM() error

	ToggleMetronome()
	SetMetronome(enabled bool)
	ToggleRoundWholeBPM()
	SetRoundWholeBPM(enabled bool)

	SetOutputEnabled(target string, enabled bool) error
	SetOutputTarget(target, ip string, port int) error
	SetMA3OSC(primaryMaster *string, extras []output.MA3Extra) error
	SetHeavyMOSC(update output.HeavyMUpdate) error
	TestHeavyMBPM(bpm float64) error
	TestHeavyMSync() error

	State() StatePayload
	Settings() SettingsPayload
}

// command runs a decoded message against the controller. A non-nil reply is sent back to the
// client that issued the command only.
type command func(ctl Controller, msg message) (reply interface{}, err error)

var commands = map[string]command{
	"tap": func(ctl Controller, _ message) (interface{}, error) {
		ctl.Tap()
		return nil, nil
	},
	"set_bpm": setBPM,
	"preset":  setBPM,
	"nudge": func(ctl Controller, msg message) (interface{}, error) {
		delta, err := msg.floatOr("delta", 0)
		if err != nil {
			return nil, err
		}
		return nil, ctl.Nudge(delta)
	},
	"resync": func(ctl Controller, _ message) (interface{}, error) {
		ctl.Resync()
		return nil, nil
	},
	"sync_bpm": func(ctl Controller, _ message) (interface{}, error) {
		return nil, ctl.SyncBPM()
	},
	"pause": func(ctl Controller, _ message) (interface{}, error) {
		ctl.SetRunning(false)
		return nil, nil
	},
	"play": func(ctl Controller, _ message) (interface{}, error) {
		ctl.SetRunning(true)
		return nil, nil
	},
	"toggle_metronome": func(ctl Controller, _ message) (interface{}, error) {
		ctl.ToggleMetronome()
		return nil, nil
	},
	"set_metronome": func(ctl Controller, msg message) (interface{}, error) {
		enabled, err := msg.bool("enabled")
		if err != nil {
			return nil, err
		}
		ctl.SetMetronome(enabled)
		return nil, nil
	},
	"toggle_bpm_rounding": func(ctl Controller, _ message) (interface{}, error) {
		ctl.ToggleRoundWholeBPM()
		return nil, nil
	},
	"set_round_whole_bpm": func(ctl Controller, msg message) (interface{}, error) {
		enabled, err := msg.bool("enabled")
		if err != nil {
			return nil, err
		}
		ctl.SetRoundWholeBPM(enabled)
		return nil, nil
	},
	"set_output_enabled": func(ctl Controller, msg message) (interface{}, error) {
		target, err := msg.string("target")
		if err != nil {
			return nil, err
		}
		enabled, err := msg.bool("enabled")
		if err != nil {
			return nil, err
		}
		return nil, ctl.SetOutputEnabled(target, enabled)
	},
	"set_output_target": func(ctl Controller, msg message) (interface{}, error) {
		target, err := msg.string("target")
		if err != nil {
			return nil, err
		}
		ip, err := msg.string("ip")
		if err != nil {
			return nil, err
		}
		port, err := msg.port("port")
		if err != nil {
			return nil, err
		}
		return nil, ctl.SetOutputTarget(target, ip, port)
	},
	"set_ma3_osc":     setMA3OSC,
	"set_heavym_osc":  setHeavyMOSC,
	"test_heavym_bpm": testHeavyMBPM,
	"test_heavym_sync": func(ctl Controller, _ message) (interface{}, error) {
		return nil, ctl.TestHeavyMSync()
	},
	"get_settings": func(ctl Controller, _ message) (interface{}, error) {
		return ctl.Settings(), nil
	},
}

func setBPM(ctl Controller, msg message) (interface{}, error) {
	bpm, err := msg.float("bpm")
	if err != nil {
		return nil, err
	}
	return nil, ctl.SetBPM(bpm)
}

func setMA3OSC(ctl Controller, msg message) (interface{}, error) {
	var (
		primary *string
		extras  []output.MA3Extra
	)

	if msg.has("primary_master") {
		master, err := msg.string("primary_master")
		if err != nil {
			return nil, err
		}
		primary = &master
	}
	if msg.has("extras") {
		parsed, err := msg.extras("extras")
		if err != nil {
			return nil, err
		}
		extras = parsed
	}
	if primary == nil && extras == nil {
		return nil, errors.New("no MA3 OSC settings provided")
	}

	return nil, ctl.SetMA3OSC(primary, extras)
}

func setHeavyMOSC(ctl Controller, msg message) (interface{}, error) {
	var update output.HeavyMUpdate

	for key, dst := range map[string]**string{
		"bpm_address":    &update.BPMAddress,
		"resync_address": &update.ResyncAddress,
	} {
		if !msg.has(key) {
			continue
		}
		address, err := msg.address(key)
		if err != nil {
			return nil, err
		}
		*dst = &address
	}

	for key, dst := range map[string]**float64{
		"bpm_min":      &update.BPMMin,
		"bpm_max":      &update.BPMMax,
		"resync_value": &update.ResyncValue,
	} {
		if !msg.has(key) {
			continue
		}
		v, err := msg.float(key)
		if err != nil {
			return nil, err
		}
		*dst = &v
	}

	if msg.has("resync_send_zero") {
		sendZero, err := msg.bool("resync_send_zero")
		if err != nil {
			return nil, err
		}
		update.ResyncSendZero = &sendZero
	}

	if update.Empty() {
		return nil, errors.New("no HeavyM OSC settings provided")
	}
	return nil, ctl.SetHeavyMOSC(update)
}

func testHeavyMBPM(ctl Controller, msg message) (interface{}, error) {
	bpm, err := msg.floatOr("bpm", 120)
	if err != nil {
		return nil, err
	}
	return nil, ctl.TestHeavyMBPM(bpm)
}
