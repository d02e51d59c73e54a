package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robmorgan/tapsync/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tapsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestNewConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, "0.0.0.0:9100", cfg.ControlAddr())
	assert.True(t, cfg.RoundWholeBPM)
	assert.False(t, cfg.DMX.Enabled)

	settings := cfg.OutputSettings()
	assert.Equal(t, output.TargetSettings{Enabled: true, IP: "127.0.0.1", Port: 8001}, settings.MA3)
	assert.Equal(t, 7000, settings.Resolume.Port)
	assert.Equal(t, 9000, settings.HeavyM.Port)
	assert.Equal(t, "3.1", settings.MA3OSC.PrimaryMaster)
	assert.Equal(t, "/bpm-tap-sync/bpm", settings.HeavyMOSC.BPMAddress)
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
port: 8080
round_whole_bpm: false
ma3:
  ip: 10.0.0.5
  primary_master: "2.1"
  extras:
    - master: "2.2"
      multiplier: 0.5
heavym:
  enabled: false
  bpm_min: 60
  bpm_max: 180
dmx:
  enabled: true
  channel: 12
  tick: 25ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.RoundWholeBPM)
	assert.Equal(t, "10.0.0.5", cfg.MA3.IP)
	assert.Equal(t, 8001, cfg.MA3.Port, "unset keys keep their default")
	assert.Equal(t, "2.1", cfg.MA3.PrimaryMaster)
	assert.Equal(t, []output.MA3Extra{{Master: "2.2", Multiplier: 0.5}}, cfg.MA3.Extras)
	assert.False(t, cfg.HeavyM.Enabled)
	assert.Equal(t, 60.0, cfg.HeavyM.BPMMin)
	assert.Equal(t, "/bpm-tap-sync/resync", cfg.HeavyM.ResyncAddress)
	assert.True(t, cfg.DMX.Enabled)
	assert.Equal(t, 12, cfg.DMX.Channel)
	assert.Equal(t, 25*time.Millisecond, cfg.DMX.Tick)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "port: [not, a, number]"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "heavym:\n  bpm_min: 200\n  bpm_max: 100\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "ma3:\n  extras:\n    - master: \"3.2\"\n      multiplier: .nan\n"))
	assert.Error(t, err)
}

// Environment tests cannot run in parallel.
func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "port: 8080\nresolume:\n  port: 7100\n")

	t.Setenv("BPM_TAP_SYNC_PORT", "9999")
	t.Setenv("BPM_TAP_SYNC_MA3_IP", "192.168.1.20")
	t.Setenv("BPM_TAP_SYNC_MA3_PRIMARY_MASTER", "4.1")
	t.Setenv("BPM_TAP_SYNC_HEAVYM_BPM_ADDRESS", "/tempo")
	t.Setenv("BPM_TAP_SYNC_DMX_TICK", "50ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 7100, cfg.Resolume.Port)
	assert.Equal(t, "192.168.1.20", cfg.MA3.IP)
	assert.Equal(t, "4.1", cfg.MA3.PrimaryMaster)
	assert.Equal(t, "/tempo", cfg.HeavyM.BPMAddress)
	assert.Equal(t, 50*time.Millisecond, cfg.DMX.Tick)
}

func TestLoadIgnoresUnprefixedEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "nonsense-level")
	t.Setenv("INITIAL_BPM", "90")
	t.Setenv("BPM_MIN", "200")
	t.Setenv("BPM_MASTER", "9.9")
	t.Setenv("OLA_ADDR", "ola.local:9010")

	cfg, err := Load("")
	require.NoError(t, err)

	defaults := NewConfig()
	assert.Equal(t, defaults.LogLevel, cfg.LogLevel)
	assert.Equal(t, defaults.InitialBPM, cfg.InitialBPM)
	assert.Equal(t, defaults.HeavyM.BPMMin, cfg.HeavyM.BPMMin)
	assert.Equal(t, defaults.MA3.PrimaryMaster, cfg.MA3.PrimaryMaster)
	assert.Equal(t, defaults.DMX.OLAAddr, cfg.DMX.OLAAddr)
}

func TestLoadPrefixedMultiWordEnvironment(t *testing.T) {
	t.Setenv("BPM_TAP_SYNC_LOG_LEVEL", "debug")
	t.Setenv("BPM_TAP_SYNC_INITIAL_BPM", "90")
	t.Setenv("BPM_TAP_SYNC_ROUND_WHOLE_BPM", "false")
	t.Setenv("BPM_TAP_SYNC_HEAVYM_BPM_MIN", "60")
	t.Setenv("BPM_TAP_SYNC_DMX_OLA_ADDR", "ola.local:9010")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90.0, cfg.InitialBPM)
	assert.False(t, cfg.RoundWholeBPM)
	assert.Equal(t, 60.0, cfg.HeavyM.BPMMin)
	assert.Equal(t, "ola.local:9010", cfg.DMX.OLAAddr)
}

func TestLoadRejectsBadEnvironment(t *testing.T) {
	t.Setenv("BPM_TAP_SYNC_PORT", "eighty")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"control port", func(c *Config) { c.Control.Port = 70000 }},
		{"initial bpm", func(c *Config) { c.InitialBPM = 5 }},
		{"target ip", func(c *Config) { c.Resolume.IP = "resolume.local" }},
		{"target port", func(c *Config) { c.HeavyM.Port = -1 }},
		{"heavym address", func(c *Config) { c.HeavyM.BPMAddress = "bpm" }},
		{"dmx channel", func(c *Config) { c.DMX.Enabled = true; c.DMX.Channel = 600 }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"ma3 extra multiplier", func(c *Config) {
			c.MA3.Extras = []output.MA3Extra{{Master: "3.2", Multiplier: math.NaN()}}
		}},
	}

	for _, testCase := range testCases {
		cfg := NewConfig()
		testCase.mutate(&cfg)
		assert.Error(t, cfg.Validate(), testCase.name)
	}

	// A disabled control input or DMX channel is not validated.
	cfg := NewConfig()
	cfg.Control.Enabled = false
	cfg.Control.Port = 0
	cfg.DMX.Channel = 0
	assert.NoError(t, cfg.Validate())
}
