// Package control accepts tempo commands over OSC, e.g. from a controller surface or the tempo command.
package control

import (
	"context"
	"net"
	"strconv"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
	"github.com/robmorgan/tapsync/logger"
	"github.com/sirupsen/logrus"
)

// OSC addresses.
const (
	AddressTap    = "/tapsync/tap"
	AddressBPM    = "/tapsync/bpm"
	AddressNudge  = "/tapsync/nudge"
	AddressResync = "/tapsync/resync"
)

// Tempo is the set of tempo commands the control input can drive.
type Tempo interface {
	Tap() bool
	SetBPM(bpm float64) error
	Nudge(delta float64) error
	Resync()
}

// Dispatcher routes OSC control messages to a Tempo. Malformed messages are logged and dropped.
type Dispatcher struct {
	tempo Tempo
	log   *logrus.Entry
}

// NewDispatcher creates a Dispatcher driving tempo.
func NewDispatcher(tempo Tempo) *Dispatcher {
	return &Dispatcher{
		tempo: tempo,
		log:   logger.GetProjectLogger().WithField("component", "control"),
	}
}

// Dispatch implements osc.Dispatcher.
func (d *Dispatcher) Dispatch(packet osc.Packet) {
	switch packet := packet.(type) {
	case *osc.Message:
		if err := d.Handle(packet); err != nil {
			d.log.WithField("address", packet.Address).WithError(err).Warn("Ignoring OSC control message")
		}
	case *osc.Bundle:
		for _, message := range packet.Messages {
			d.Dispatch(message)
		}
		for _, bundle := range packet.Bundles {
			d.Dispatch(bundle)
		}
	}
}

// Handle applies a single control message.
func (d *Dispatcher) Handle(m *osc.Message) error {
	switch m.Address {
	case AddressTap:
		d.tempo.Tap()
	case AddressResync:
		d.tempo.Resync()
	case AddressBPM:
		bpm, err := floatArgument(m)
		if err != nil {
			return errors.Wrap(err, "reading tempo")
		}
		return errors.Wrap(d.tempo.SetBPM(bpm), "setting tempo")
	case AddressNudge:
		delta, err := floatArgument(m)
		if err != nil {
			return errors.Wrap(err, "reading nudge")
		}
		return errors.Wrap(d.tempo.Nudge(delta), "nudging tempo")
	default:
		return errors.Errorf("unknown address %s", m.Address)
	}
	return nil
}

// floatArgument reads the single numeric argument of m. Controllers differ in what they send, so
// integers and numeric strings are accepted too.
func floatArgument(m *osc.Message) (float64, error) {
	if expected, got := 1, len(m.Arguments); expected != got {
		return 0, errors.Errorf("expected %d argument(s), got %d", expected, got)
	}

	switch v := m.Arguments[0].(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, errors.Wrap(err, "parsing string argument")
	default:
		return 0, errors.Errorf("unsupported argument type %T", v)
	}
}

// maxPacketSize is the largest UDP datagram.
const maxPacketSize = 65535

// Serve receives control messages on conn until ctx is done. Datagrams that do not parse as OSC are
// logged and dropped; only a failing connection stops the input.
func Serve(ctx context.Context, conn net.PacketConn, tempo Tempo) error {
	log := logger.GetProjectLogger().WithField("addr", conn.LocalAddr().String())
	dispatcher := NewDispatcher(tempo)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	log.Info("OSC control input listening")
	buf := make([]byte, maxPacketSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("OSC control input shutdown")
				return nil
			}
			return errors.Wrap(err, "reading OSC control input")
		}

		packet, err := osc.ParsePacket(string(buf[:n]))
		if err != nil {
			log.WithField("from", from.String()).WithError(err).Warn("Ignoring malformed OSC packet")
			continue
		}
		if packet != nil {
			dispatcher.Dispatch(packet)
		}
	}
}

// ListenAndServe listens on the UDP address addr and serves control messages until ctx is done.
func ListenAndServe(ctx context.Context, addr string, tempo Tempo) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return errors.Wrap(err, "listening for OSC control input")
	}
	return Serve(ctx, conn, tempo)
}

// TapMessage builds a tap command.
func TapMessage() *osc.Message {
	return osc.NewMessage(AddressTap)
}

// BPMMessage builds a set tempo command.
func BPMMessage(bpm float64) *osc.Message {
	return osc.NewMessage(AddressBPM, float32(bpm))
}
