package cmd

import (
	"strconv"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
	"github.com/robmorgan/tapsync/control"
	"github.com/spf13/cobra"
)

var (
	tempoHost string
	tempoPort int
	tempoTap  bool
)

// tempoCmd represents the tempo command
var tempoCmd = &cobra.Command{
	Use:   "tempo [bpm]",
	Short: "Change the tempo of a running tapsync",
	Long: `Change the tempo of a running tapsync through its OSC control input, either to an
explicit BPM or by sending a single tap with --tap.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, err := tempoMessage(args, tempoTap)
		if err != nil {
			return err
		}
		client := osc.NewClient(tempoHost, tempoPort)
		return errors.Wrapf(client.Send(message), "sending %s", message.Address)
	},
}

func init() {
	rootCmd.AddCommand(tempoCmd)
	flags := tempoCmd.Flags()
	flags.StringVar(&tempoHost, "host", "127.0.0.1", "host of the tapsync OSC control input")
	flags.IntVarP(&tempoPort, "port", "p", 9100, "port of the tapsync OSC control input")
	flags.BoolVar(&tempoTap, "tap", false, "send a tap instead of a tempo")
}

// tempoMessage builds the control message for the command line.
func tempoMessage(args []string, tap bool) (*osc.Message, error) {
	switch {
	case tap && len(args) > 0:
		return nil, errors.New("give either a tempo or --tap, not both")
	case tap:
		return control.TapMessage(), nil
	case len(args) == 0:
		return nil, errors.New("expected a tempo in BPM or --tap")
	}

	bpm, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, errors.Wrap(err, "parsing tempo")
	}
	return control.BPMMessage(bpm), nil
}
