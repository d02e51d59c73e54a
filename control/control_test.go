package control

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTempo struct {
	lock    sync.Mutex
	taps    int
	resyncs int
	bpms    []float64
	nudges  []float64
	err     error
}

func (f *fakeTempo) Tap() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.taps++
	return false
}

func (f *fakeTempo) SetBPM(bpm float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.bpms = append(f.bpms, bpm)
	return f.err
}

func (f *fakeTempo) Nudge(delta float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.nudges = append(f.nudges, delta)
	return f.err
}

func (f *fakeTempo) Resync() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.resyncs++
}

func (f *fakeTempo) tapCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.taps
}

func TestHandle(t *testing.T) {
	t.Parallel()

	tempo := &fakeTempo{}
	d := NewDispatcher(tempo)

	require.NoError(t, d.Handle(TapMessage()))
	require.NoError(t, d.Handle(osc.NewMessage(AddressResync)))
	require.NoError(t, d.Handle(BPMMessage(128)))
	require.NoError(t, d.Handle(osc.NewMessage(AddressBPM, int32(90))))
	require.NoError(t, d.Handle(osc.NewMessage(AddressBPM, "140.5")))
	require.NoError(t, d.Handle(osc.NewMessage(AddressNudge, float32(-0.5))))

	assert.Equal(t, 1, tempo.taps)
	assert.Equal(t, 1, tempo.resyncs)
	assert.Equal(t, []float64{128, 90, 140.5}, tempo.bpms)
	assert.Equal(t, []float64{-0.5}, tempo.nudges)
}

func TestHandleRejectsMalformedMessages(t *testing.T) {
	t.Parallel()

	tempo := &fakeTempo{}
	d := NewDispatcher(tempo)

	assert.Error(t, d.Handle(osc.NewMessage("/tapsync/unknown")))
	assert.Error(t, d.Handle(osc.NewMessage(AddressBPM)))
	assert.Error(t, d.Handle(osc.NewMessage(AddressBPM, float32(1), float32(2))))
	assert.Error(t, d.Handle(osc.NewMessage(AddressBPM, "fast")))
	assert.Error(t, d.Handle(osc.NewMessage(AddressNudge, true)))
	assert.Empty(t, tempo.bpms)
	assert.Empty(t, tempo.nudges)

	tempo.err = errors.New("invalid bpm")
	assert.Error(t, d.Handle(BPMMessage(120)))
}

func TestDispatchBundle(t *testing.T) {
	t.Parallel()

	tempo := &fakeTempo{}
	d := NewDispatcher(tempo)

	inner := osc.NewBundle(time.Now())
	require.NoError(t, inner.Append(TapMessage()))

	bundle := osc.NewBundle(time.Now())
	require.NoError(t, bundle.Append(TapMessage()))
	require.NoError(t, bundle.Append(osc.NewMessage("/not/ours")))
	require.NoError(t, bundle.Append(inner))

	d.Dispatch(bundle)
	assert.Equal(t, 2, tempo.taps)
}

func TestServe(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port

	tempo := &fakeTempo{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, conn, tempo) }()

	client := osc.NewClient("127.0.0.1", port)
	require.Eventually(t, func() bool {
		_ = client.Send(TapMessage())
		return tempo.tapCount() > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeSurvivesMalformedPackets(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	tempo := &fakeTempo{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, conn, tempo) }()

	sender, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	// A type tag string that does not start with ','.
	_, err = sender.Write([]byte("/tapsync/tap\x00\x00\x00\x00xyz\x00"))
	require.NoError(t, err)
	_, err = sender.Write([]byte("not osc at all"))
	require.NoError(t, err)

	tap, err := TapMessage().MarshalBinary()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, _ = sender.Write(tap)
		return tempo.tapCount() > 0
	}, 2*time.Second, 20*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Serve returned early: %v", err)
	default:
	}
}
