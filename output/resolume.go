package output

import "github.com/hypebeast/go-osc/osc"

// Resolume Arena tempo controller addresses.
const (
	ResolumeTempoAddress     = "/composition/tempocontroller/tempo"
	ResolumeMetronomeAddress = "/composition/tempocontroller/metronome"
	ResolumeResyncAddress    = "/composition/tempocontroller/resync"
)

func resolumeTempo(bpm float64) *osc.Message {
	return osc.NewMessage(ResolumeTempoAddress, float32(bpm))
}

func resolumeMetronome(enabled bool) *osc.Message {
	var v int32
	if enabled {
		v = 1
	}
	return osc.NewMessage(ResolumeMetronomeAddress, v)
}

func resolumeResync() *osc.Message {
	return osc.NewMessage(ResolumeResyncAddress, int32(1))
}
