package cmd

import (
	"io"
	"os"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/tapsync/app"
	"github.com/robmorgan/tapsync/logger"
	"github.com/spf13/cobra"
)

var (
	consoleServe   serveFlags
	consoleLogFile string
)

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the tempo engine with a terminal tap console",
	Long: `Run everything serve runs and show a terminal console for tapping, nudging and resyncing.
Logs are written to --log-file while the console owns the terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		consoleServe.apply(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		var out io.Writer = io.Discard
		if consoleLogFile != "" {
			f, err := os.OpenFile(consoleLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return errors.WithStackTraceAndPrefix(err, "opening log file %s", consoleLogFile)
			}
			defer f.Close()
			out = f
		}
		logger.SetOutput(out)
		defer logger.SetOutput(os.Stderr)

		ctx, stop := signalContext()
		defer stop()
		return app.Run(ctx, cfg, app.Options{Console: true})
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleServe.register(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleLogFile, "log-file", "", "append logs to this file instead of discarding them")
}
