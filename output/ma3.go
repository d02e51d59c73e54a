package output

import (
	"fmt"
	"math"

	"github.com/hypebeast/go-osc/osc"
)

// MA3CommandAddress is the grandMA3 command line OSC address.
const MA3CommandAddress = "/cmd"

// MA3Extra drives an additional speed master at a multiple of the tempo, e.g. a half-time master.
type MA3Extra struct {
	Master     string  `json:"master" yaml:"master"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// MA3Settings configures which grandMA3 speed masters follow the tempo.
type MA3Settings struct {
	PrimaryMaster string     `json:"primary_master" yaml:"primary_master" split_words:"true"`
	Extras        []MA3Extra `json:"extras" yaml:"extras" ignored:"true"`
}

// Validate checks that the multiplier is a finite number.
func (e MA3Extra) Validate() error {
	if math.IsNaN(e.Multiplier) || math.IsInf(e.Multiplier, 0) {
		return fmt.Errorf("multiplier %v for master %q is not a finite number", e.Multiplier, e.Master)
	}
	return nil
}

// Validate checks every extra master.
func (s MA3Settings) Validate() error {
	for _, extra := range s.Extras {
		if err := extra.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s MA3Settings) clone() MA3Settings {
	s.Extras = append([]MA3Extra{}, s.Extras...)
	return s
}

// ma3Messages builds the command line messages setting every configured master to bpm.
func ma3Messages(s MA3Settings, bpm float64) []*osc.Message {
	messages := make([]*osc.Message, 0, 1+len(s.Extras))
	if s.PrimaryMaster != "" {
		messages = append(messages, ma3Command(s.PrimaryMaster, bpm))
	}
	for _, extra := range s.Extras {
		if extra.Master == "" {
			continue
		}
		messages = append(messages, ma3Command(extra.Master, bpm*extra.Multiplier))
	}
	return messages
}

func ma3Command(master string, bpm float64) *osc.Message {
	return osc.NewMessage(MA3CommandAddress, fmt.Sprintf("Master %s At BPM %.1f", master, bpm))
}
