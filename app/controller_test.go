package app

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/robmorgan/tapsync/output"
	"github.com/robmorgan/tapsync/rhythm"
	"github.com/robmorgan/tapsync/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type recordingBroadcaster struct {
	lock     sync.Mutex
	payloads []interface{}
}

func (b *recordingBroadcaster) Broadcast(payload interface{}) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.payloads = append(b.payloads, payload)
}

func (b *recordingBroadcaster) lastState(t *testing.T) server.StatePayload {
	b.lock.Lock()
	defer b.lock.Unlock()
	for i := len(b.payloads) - 1; i >= 0; i-- {
		if s, ok := b.payloads[i].(server.StatePayload); ok {
			return s
		}
	}
	require.FailNow(t, "no state payload was broadcast")
	return server.StatePayload{}
}

func (b *recordingBroadcaster) lastSettings(t *testing.T) server.SettingsPayload {
	b.lock.Lock()
	defer b.lock.Unlock()
	for i := len(b.payloads) - 1; i >= 0; i-- {
		if s, ok := b.payloads[i].(server.SettingsPayload); ok {
			return s
		}
	}
	require.FailNow(t, "no settings payload was broadcast")
	return server.SettingsPayload{}
}

type recordingSender struct {
	lock     sync.Mutex
	messages []*osc.Message
}

func (s *recordingSender) Send(packet osc.Packet) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.messages = append(s.messages, packet.(*osc.Message))
	return nil
}

func (s *recordingSender) addresses() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make([]string, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Address
	}
	return out
}

func (s *recordingSender) last() *osc.Message {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	return s.messages[len(s.messages)-1]
}

type network struct {
	lock    sync.Mutex
	senders map[string]*recordingSender
}

func (n *network) factory(ip string, port int) output.Sender {
	n.lock.Lock()
	defer n.lock.Unlock()

	key := fmt.Sprintf("%s:%d", ip, port)
	if _, ok := n.senders[key]; !ok {
		n.senders[key] = &recordingSender{}
	}
	return n.senders[key]
}

func (n *network) at(key string) *recordingSender {
	n.lock.Lock()
	defer n.lock.Unlock()
	if s, ok := n.senders[key]; ok {
		return s
	}
	return &recordingSender{}
}

const (
	ma3Addr      = "127.0.0.1:8001"
	resolumeAddr = "127.0.0.1:7000"
	heavymAddr   = "127.0.0.1:9000"
)

func newTestController(t *testing.T, resolumeEnabled bool) (*Controller, *network, *recordingBroadcaster) {
	t.Helper()

	net := &network{senders: map[string]*recordingSender{}}
	outputs := output.NewOutputs(output.Settings{
		MA3:       output.TargetSettings{Enabled: true, IP: "127.0.0.1", Port: 8001},
		Resolume:  output.TargetSettings{Enabled: resolumeEnabled, IP: "127.0.0.1", Port: 7000},
		HeavyM:    output.TargetSettings{Enabled: true, IP: "127.0.0.1", Port: 9000},
		MA3OSC:    output.MA3Settings{PrimaryMaster: "3.1", Extras: []output.MA3Extra{}},
		HeavyMOSC: output.DefaultHeavyMSettings(),
	}, net.factory)

	clk := testingclock.NewFakeClock(time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC))
	broadcaster := &recordingBroadcaster{}
	return NewController(clk, 120, true, outputs, broadcaster), net, broadcaster
}

func TestSetBPMReachesOutputsAndClients(t *testing.T) {
	t.Parallel()

	ctl, net, broadcaster := newTestController(t, true)

	require.NoError(t, ctl.SetBPM(128.4))

	assert.Equal(t, "Master 3.1 At BPM 128.0", net.at(ma3Addr).last().Arguments[0])
	assert.Equal(t, float32(128), net.at(resolumeAddr).last().Arguments[0])
	assert.Equal(t, output.DefaultHeavyMSettings().BPMAddress, net.at(heavymAddr).last().Address)

	state := broadcaster.lastState(t)
	assert.Equal(t, "state", state.Type)
	assert.Equal(t, 128.0, state.BPM)
	assert.True(t, state.RoundWholeBPM)
}

func TestInvalidBPMIsRejected(t *testing.T) {
	t.Parallel()

	ctl, net, _ := newTestController(t, true)

	var invalid *rhythm.InvalidValueError
	assert.ErrorAs(t, ctl.SetBPM(math.NaN()), &invalid)
	assert.ErrorAs(t, ctl.TestHeavyMBPM(math.Inf(1)), &invalid)
	assert.Empty(t, net.at(ma3Addr).addresses())
	assert.Empty(t, net.at(heavymAddr).addresses())
}

func TestSyncBPMOnlyTargetsMA3(t *testing.T) {
	t.Parallel()

	ctl, net, _ := newTestController(t, true)

	require.NoError(t, ctl.SyncBPM())

	assert.Equal(t, []string{output.MA3CommandAddress}, net.at(ma3Addr).addresses())
	assert.Empty(t, net.at(resolumeAddr).addresses())
	assert.Empty(t, net.at(heavymAddr).addresses())
}

func TestResyncRestartsBeatAndNotifiesOutputs(t *testing.T) {
	t.Parallel()

	ctl, net, broadcaster := newTestController(t, true)

	ctl.Resync()

	assert.Contains(t, net.at(resolumeAddr).addresses(), output.ResolumeResyncAddress)
	assert.Contains(t, net.at(heavymAddr).addresses(), output.DefaultHeavyMSettings().ResyncAddress)
	assert.Equal(t, 1, broadcaster.lastState(t).Beat)
}

func TestToggleMetronome(t *testing.T) {
	t.Parallel()

	ctl, net, broadcaster := newTestController(t, true)

	ctl.ToggleMetronome()
	assert.True(t, ctl.MetronomeEnabled())
	assert.True(t, broadcaster.lastState(t).Metronome)
	assert.Equal(t, output.ResolumeMetronomeAddress, net.at(resolumeAddr).last().Address)
	assert.Equal(t, int32(1), net.at(resolumeAddr).last().Arguments[0])

	ctl.SetMetronome(false)
	assert.False(t, broadcaster.lastState(t).Metronome)
	assert.Equal(t, int32(0), net.at(resolumeAddr).last().Arguments[0])
}

func TestToggleRoundWholeBPM(t *testing.T) {
	t.Parallel()

	ctl, _, broadcaster := newTestController(t, true)

	ctl.ToggleRoundWholeBPM()
	assert.False(t, ctl.RoundWholeBPM())
	assert.False(t, broadcaster.lastSettings(t).RoundWholeBPM)

	require.NoError(t, ctl.SetBPM(128.44))
	assert.Equal(t, 128.4, ctl.Snapshot().BPM)

	ctl.SetRoundWholeBPM(true)
	assert.Equal(t, 128.0, ctl.Snapshot().BPM)
	assert.True(t, broadcaster.lastState(t).RoundWholeBPM)
}

func TestConcurrentRoundingTogglesStayConsistent(t *testing.T) {
	t.Parallel()

	ctl, _, _ := newTestController(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 51; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctl.ToggleRoundWholeBPM()
		}()
	}
	wg.Wait()

	assert.False(t, ctl.RoundWholeBPM())
	require.NoError(t, ctl.SetBPM(128.44))
	assert.Equal(t, 128.4, ctl.Snapshot().BPM)
	assert.False(t, ctl.State().RoundWholeBPM)
	assert.False(t, ctl.Settings().RoundWholeBPM)
}

func TestEnablingAnOutputSyncsIt(t *testing.T) {
	t.Parallel()

	ctl, net, broadcaster := newTestController(t, false)

	require.NoError(t, ctl.SetOutputEnabled(" Resolume ", true))

	assert.Equal(t, []string{output.ResolumeTempoAddress, output.ResolumeMetronomeAddress}, net.at(resolumeAddr).addresses())
	assert.True(t, broadcaster.lastSettings(t).Outputs[output.TargetResolume].Enabled)

	var unknown output.UnknownTargetError
	assert.ErrorAs(t, ctl.SetOutputEnabled("lasers", true), &unknown)
}

func TestSetOutputTargetMovesSender(t *testing.T) {
	t.Parallel()

	ctl, net, broadcaster := newTestController(t, true)

	require.NoError(t, ctl.SetOutputTarget("ma3", " 10.0.0.5 ", 8000))

	assert.Equal(t, []string{output.MA3CommandAddress}, net.at("10.0.0.5:8000").addresses())
	settings := broadcaster.lastSettings(t).Outputs[output.TargetMA3]
	assert.Equal(t, "10.0.0.5", settings.IP)
	assert.Equal(t, 8000, settings.Port)

	assert.Error(t, ctl.SetOutputTarget("ma3", "not-an-ip", 8000))
	assert.Error(t, ctl.SetOutputTarget("ma3", "10.0.0.5", 70000))
}

func TestSetMA3OSCResyncsConsole(t *testing.T) {
	t.Parallel()

	ctl, net, broadcaster := newTestController(t, true)

	master := "4.1"
	require.NoError(t, ctl.SetMA3OSC(&master, []output.MA3Extra{{Master: "4.2", Multiplier: 2}}))

	sent := net.at(ma3Addr).addresses()
	require.Len(t, sent, 2)
	assert.Equal(t, "Master 4.2 At BPM 240.0", net.at(ma3Addr).last().Arguments[0])
	assert.Equal(t, "4.1", broadcaster.lastSettings(t).MA3OSC.PrimaryMaster)
}

func TestSetHeavyMOSCRejectsBadRange(t *testing.T) {
	t.Parallel()

	ctl, net, _ := newTestController(t, true)

	lo, hi := 200.0, 100.0
	assert.Error(t, ctl.SetHeavyMOSC(output.HeavyMUpdate{BPMMin: &lo, BPMMax: &hi}))
	assert.Empty(t, net.at(heavymAddr).addresses())
}

func TestTestHeavyMLeavesTempoAlone(t *testing.T) {
	t.Parallel()

	ctl, net, _ := newTestController(t, true)

	require.NoError(t, ctl.TestHeavyMBPM(90))
	require.NoError(t, ctl.TestHeavyMSync())

	assert.Equal(t, 120.0, ctl.Snapshot().BPM)
	assert.Empty(t, net.at(ma3Addr).addresses())
	assert.NotEmpty(t, net.at(heavymAddr).addresses())
}

func TestSetRunning(t *testing.T) {
	t.Parallel()

	ctl, _, broadcaster := newTestController(t, true)

	ctl.SetRunning(false)
	assert.False(t, broadcaster.lastState(t).Running)
	assert.False(t, ctl.Snapshot().Running)

	ctl.SetRunning(true)
	assert.True(t, broadcaster.lastState(t).Running)
}
