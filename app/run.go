// Package app wires the tempo engine to its outputs and control surfaces.
package app

import (
	"context"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/tapsync/config"
	"github.com/robmorgan/tapsync/control"
	"github.com/robmorgan/tapsync/logger"
	"github.com/robmorgan/tapsync/output"
	"github.com/robmorgan/tapsync/server"
	"github.com/robmorgan/tapsync/tui"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

// Options selects what Run starts besides the tempo engine and the web server.
type Options struct {
	// Console shows the terminal tap console; quitting it stops everything.
	Console bool

	// Clock drives the metronome. Nil uses the real clock.
	Clock clock.Clock

	// NewSender creates the OSC output senders. Nil sends over UDP.
	NewSender output.SenderFactory
}

// Run starts the metronome, the web server, the OSC control input and the optional DMX flash
// worker and console, and blocks until ctx is done or one of them fails.
func Run(ctx context.Context, cfg config.Config, opts Options) error {
	log := logger.GetProjectLogger()

	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	hub := server.NewHub(server.DefaultQueueSize)
	outputs := output.NewOutputs(cfg.OutputSettings(), opts.NewSender)

	var controllerOpts []ControllerOption
	flasher := connectDMX(cfg.DMX, clk, log)
	if flasher != nil {
		controllerOpts = append(controllerOpts, WithDMXFlasher(flasher))
	}

	ctl := NewController(clk, cfg.InitialBPM, cfg.RoundWholeBPM, outputs, hub, controllerOpts...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	ctl.Start(ctx)
	g.Go(func() error {
		ctl.Wait()
		return nil
	})

	g.Go(func() error {
		srv := server.New(ctl, hub, cfg.FrontendDir)
		if err := srv.ListenAndServe(ctx, cfg.Addr()); err != nil {
			return errors.WithStackTraceAndPrefix(err, "running web server on %s", cfg.Addr())
		}
		return nil
	})

	if cfg.Control.Enabled {
		g.Go(func() error {
			if err := control.ListenAndServe(ctx, cfg.ControlAddr(), ctl); err != nil {
				return errors.WithStackTraceAndPrefix(err, "running OSC control input on %s", cfg.ControlAddr())
			}
			return nil
		})
	}

	if flasher != nil {
		g.Go(func() error {
			return flasher.Run(ctx)
		})
	}

	if opts.Console {
		g.Go(func() error {
			defer cancel()
			return tui.Run(ctx, ctl)
		})
	}

	log.WithFields(logrus.Fields{
		"addr":    cfg.Addr(),
		"control": cfg.Control.Enabled,
		"dmx":     flasher != nil,
	}).Info("tapsync started")

	err := g.Wait()
	log.Info("tapsync stopped")
	return err
}

// connectDMX sets up the DMX flash worker. A missing OLA daemon only disables the flash.
func connectDMX(settings output.DMXSettings, clk clock.Clock, log *logrus.Entry) *output.DMXFlasher {
	if !settings.Enabled {
		return nil
	}

	log.WithField("addr", settings.OLAAddr).Info("Connecting to OLA...")
	client, err := output.DialOLA(settings.OLAAddr)
	if err != nil {
		log.WithError(err).Error("could not connect to OLA, DMX flash disabled")
		return nil
	}

	flasher, err := output.NewDMXFlasher(client, clk, settings)
	if err != nil {
		client.Close()
		log.WithError(err).Error("invalid DMX settings, DMX flash disabled")
		return nil
	}
	return flasher
}
