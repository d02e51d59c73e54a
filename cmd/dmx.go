package cmd

import (
	"fmt"

	"github.com/nickysemenza/gola"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// dmxCmd represents the dmx command
var dmxCmd = &cobra.Command{
	Use:   "dmx",
	Short: "Print the current level of the DMX flash channel",
	Long: `Read the configured universe back from the OLA daemon and print the level of the beat
flash channel, to check the DMX output without a fixture attached.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.DMX.Validate(); err != nil {
			return err
		}

		client, err := gola.New(cfg.DMX.OLAAddr)
		if err != nil {
			return errors.Wrapf(err, "connecting to OLA at %s", cfg.DMX.OLAAddr)
		}
		defer client.Close()

		reply, err := client.GetDmx(cfg.DMX.Universe)
		if err != nil {
			return errors.Wrapf(err, "reading universe %d", cfg.DMX.Universe)
		}

		var level byte
		if cfg.DMX.Channel <= len(reply.Data) {
			level = reply.Data[cfg.DMX.Channel-1]
		}
		fmt.Fprintf(cmd.OutOrStdout(), "universe %d channel %d: %d\n", cfg.DMX.Universe, cfg.DMX.Channel, level)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dmxCmd)
}
