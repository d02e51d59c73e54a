package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nickysemenza/gola"
	"github.com/robmorgan/tapsync/effect"
	"github.com/robmorgan/tapsync/logger"
	"github.com/robmorgan/tapsync/scale"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// DMXSettings configures the beat flash channel.
type DMXSettings struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	OLAAddr  string        `json:"ola_addr" yaml:"ola_addr" split_words:"true"`
	Universe int           `json:"universe" yaml:"universe"`
	Channel  int           `json:"channel" yaml:"channel"`
	Tick     time.Duration `json:"tick" yaml:"tick"`
}

// Validate checks the channel fits in a universe and the tick is usable.
func (s DMXSettings) Validate() error {
	if s.Channel < 1 || s.Channel > 512 {
		return fmt.Errorf("dmx channel (%d) not in range 1..512", s.Channel)
	}
	if s.Universe < 0 {
		return fmt.Errorf("dmx universe (%d) must not be negative", s.Universe)
	}
	if s.Tick <= 0 {
		return fmt.Errorf("dmx tick (%s) must be positive", s.Tick)
	}
	return nil
}

// OLAClient is the interface for communicating with OLA
type OLAClient interface {
	SendDmx(universe int, values []byte) (status bool, err error)
	Close()
}

// DialOLA connects to the OLA daemon at addr.
func DialOLA(addr string) (OLAClient, error) {
	client, err := gola.New(addr)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// DMXFlasher drives a single DMX channel with a flash on every beat.
type DMXFlasher struct {
	client   OLAClient
	clock    clock.Clock
	flash    *effect.Flash
	universe int
	channel  int
	tick     time.Duration

	lock  sync.Mutex
	frame []byte
}

// NewDMXFlasher creates a flasher writing to the universe and channel in settings. A nil clock uses
// the real clock.
func NewDMXFlasher(client OLAClient, clk clock.Clock, settings DMXSettings) (*DMXFlasher, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &DMXFlasher{
		client:   client,
		clock:    clk,
		flash:    effect.NewFlash(),
		universe: settings.Universe,
		channel:  settings.Channel,
		tick:     settings.Tick,
		frame:    make([]byte, settings.Channel),
	}, nil
}

// Beat restarts the flash for a beat lasting interval.
func (d *DMXFlasher) Beat(interval time.Duration, downbeat bool) {
	d.flash.Trigger(d.clock.Now(), interval, downbeat)
}

// Level returns the DMX value the channel would be written with now.
func (d *DMXFlasher) Level() byte {
	return scale.ToDMX(d.flash.Level(d.clock.Now()))
}

// Run writes the flash level to OLA every tick until ctx is done. The channel is blacked out and the
// client closed on the way out.
func (d *DMXFlasher) Run(ctx context.Context) error {
	defer d.client.Close()

	log := logger.GetProjectLogger().WithFields(logrus.Fields{
		"universe": d.universe,
		"channel":  d.channel,
	})

	t := d.clock.NewTimer(d.tick)
	defer t.Stop()
	log.WithField("tick", d.tick).Info("DMX flash worker started")

	for {
		select {
		case <-ctx.Done():
			d.write(0, log)
			log.Info("DMX flash worker shutdown")
			return nil
		case <-t.C():
			d.write(d.Level(), log)
			t.Reset(d.tick)
		}
	}
}

func (d *DMXFlasher) write(level byte, log *logrus.Entry) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.frame[d.channel-1] = level
	if _, err := d.client.SendDmx(d.universe, d.frame); err != nil {
		log.WithError(err).Debug("DMX write failed")
	}
}
