package server

import (
	"github.com/robmorgan/tapsync/output"
	"github.com/robmorgan/tapsync/rhythm"
)

// StatePayload is the tempo state as broadcast to every client.
type StatePayload struct {
	Type          string  `json:"type"`
	BPM           float64 `json:"bpm"`
	Beat          int     `json:"beat"`
	Bar           int     `json:"bar"`
	Running       bool    `json:"running"`
	Metronome     bool    `json:"metronome"`
	RoundWholeBPM bool    `json:"round_whole_bpm"`
}

// NewStatePayload combines a metronome snapshot with the console flags.
func NewStatePayload(s rhythm.Snapshot, metronome, roundWholeBPM bool) StatePayload {
	return StatePayload{
		Type:          "state",
		BPM:           s.BPM,
		Beat:          s.Beat,
		Bar:           s.Bar,
		Running:       s.Running,
		Metronome:     metronome,
		RoundWholeBPM: roundWholeBPM,
	}
}

// SettingsPayload describes the output configuration.
type SettingsPayload struct {
	Type          string                           `json:"type"`
	RoundWholeBPM bool                             `json:"round_whole_bpm"`
	Outputs       map[string]output.TargetSettings `json:"outputs"`
	MA3OSC        output.MA3Settings               `json:"ma3_osc"`
	HeavyMOSC     output.HeavyMSettings            `json:"heavym_osc"`
}

// NewSettingsPayload builds a settings payload from the current outputs.
func NewSettingsPayload(outputs *output.Outputs, roundWholeBPM bool) SettingsPayload {
	return SettingsPayload{
		Type:          "settings",
		RoundWholeBPM: roundWholeBPM,
		Outputs:       outputs.SettingsSnapshot(),
		MA3OSC:        outputs.MA3Settings(),
		HeavyMOSC:     outputs.HeavyMSettings(),
	}
}

// ErrorPayload reports a rejected command to the client that sent it.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error messages sent back to clients.
const (
	ErrInvalidJSON    = "Invalid JSON"
	ErrNotAnObject    = "Message must be a JSON object"
	ErrInvalidPayload = "Invalid payload"
	ErrUnknownType    = "Unknown message type"
)

func errorPayload(message string) ErrorPayload {
	return ErrorPayload{Type: "error", Message: message}
}
