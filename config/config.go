package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/kelseyhightower/envconfig"
	"github.com/robmorgan/tapsync/output"
	"github.com/robmorgan/tapsync/rhythm"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable, e.g. BPM_TAP_SYNC_PORT.
const EnvPrefix = "BPM_TAP_SYNC"

// Config represents options that configure the global behavior of the program
type Config struct {
	// Web server
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	FrontendDir string `yaml:"frontend_dir" split_words:"true"`

	LogLevel string `yaml:"log_level" split_words:"true"`

	// Tempo
	InitialBPM    float64 `yaml:"initial_bpm" split_words:"true"`
	RoundWholeBPM bool    `yaml:"round_whole_bpm" split_words:"true"`

	// OSC control input
	Control ControlSettings `yaml:"control" envconfig:"CONTROL"`

	// Outputs
	MA3      MA3Config             `yaml:"ma3" envconfig:"MA3"`
	Resolume output.TargetSettings `yaml:"resolume" envconfig:"RESOLUME"`
	HeavyM   HeavyMConfig          `yaml:"heavym" envconfig:"HEAVYM"`
	DMX      output.DMXSettings    `yaml:"dmx" envconfig:"DMX"`
}

// ControlSettings configures the OSC control input.
type ControlSettings struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MA3Config is the grandMA3 target and its speed masters.
type MA3Config struct {
	output.TargetSettings `yaml:",inline"`
	output.MA3Settings    `yaml:",inline"`
}

// HeavyMConfig is the HeavyM target and its OSC assignments.
type HeavyMConfig struct {
	output.TargetSettings `yaml:",inline"`
	output.HeavyMSettings `yaml:",inline"`
}

// NewConfig creates a Config with reasonable defaults for real usage
func NewConfig() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          8000,
		FrontendDir:   "frontend_dist",
		LogLevel:      "info",
		InitialBPM:    rhythm.DefaultBPM,
		RoundWholeBPM: true,
		Control: ControlSettings{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    9100,
		},
		MA3: MA3Config{
			TargetSettings: output.TargetSettings{Enabled: true, IP: "127.0.0.1", Port: 8001},
			MA3Settings:    output.MA3Settings{PrimaryMaster: "3.1"},
		},
		Resolume: output.TargetSettings{Enabled: true, IP: "127.0.0.1", Port: 7000},
		HeavyM: HeavyMConfig{
			TargetSettings: output.TargetSettings{Enabled: true, IP: "127.0.0.1", Port: 9000},
			HeavyMSettings: output.DefaultHeavyMSettings(),
		},
		DMX: output.DMXSettings{
			Enabled:  false,
			OLAAddr:  "localhost:9010",
			Universe: 1,
			Channel:  1,
			Tick:     40 * time.Millisecond,
		},
	}
}

// Load builds the configuration from the defaults, the YAML file at path (skipped when path is
// empty) and then the BPM_TAP_SYNC_* environment variables, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.WithStackTraceAndPrefix(err, "reading config file %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.WithStackTraceAndPrefix(err, "parsing config file %s", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, errors.WithStackTraceAndPrefix(err, "reading %s_* environment", EnvPrefix)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.WithStackTrace(fmt.Errorf("port %d not in range 1..65535", c.Port))
	}
	if c.Control.Enabled && (c.Control.Port < 1 || c.Control.Port > 65535) {
		return errors.WithStackTrace(fmt.Errorf("control port %d not in range 1..65535", c.Control.Port))
	}
	if c.InitialBPM < rhythm.MinBPM || c.InitialBPM > rhythm.MaxBPM {
		return errors.WithStackTrace(fmt.Errorf("initial_bpm %v not in range %v..%v", c.InitialBPM, rhythm.MinBPM, rhythm.MaxBPM))
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.WithStackTrace(err)
	}

	targets := map[string]output.TargetSettings{
		output.TargetMA3:      c.MA3.TargetSettings,
		output.TargetResolume: c.Resolume,
		output.TargetHeavyM:   c.HeavyM.TargetSettings,
	}
	for _, name := range output.Targets {
		if err := targets[name].Validate(); err != nil {
			return errors.WithStackTraceAndPrefix(err, "%s target", name)
		}
	}

	if err := c.MA3.MA3Settings.Validate(); err != nil {
		return errors.WithStackTraceAndPrefix(err, "ma3 extras")
	}
	if err := c.HeavyM.HeavyMSettings.Validate(); err != nil {
		return errors.WithStackTrace(err)
	}
	if c.DMX.Enabled {
		if err := c.DMX.Validate(); err != nil {
			return errors.WithStackTrace(err)
		}
	}

	return nil
}

// Addr is the host:port the web server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ControlAddr is the host:port the OSC control input listens on.
func (c Config) ControlAddr() string {
	return net.JoinHostPort(c.Control.Host, strconv.Itoa(c.Control.Port))
}

// OutputSettings collects the OSC output settings.
func (c Config) OutputSettings() output.Settings {
	return output.Settings{
		MA3:       c.MA3.TargetSettings,
		Resolume:  c.Resolume,
		HeavyM:    c.HeavyM.TargetSettings,
		MA3OSC:    c.MA3.MA3Settings,
		HeavyMOSC: c.HeavyM.HeavyMSettings,
	}
}
