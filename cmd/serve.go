package cmd

import (
	"github.com/robmorgan/tapsync/app"
	"github.com/robmorgan/tapsync/config"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	host string
	port int
	bpm  float64
}

var serve serveFlags

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tempo engine with the web interface",
	Long: `Run the tempo engine, the web interface and WebSocket API, the OSC control input and the
optional DMX beat flash until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		serve.apply(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()
		return app.Run(ctx, cfg, app.Options{})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serve.register(serveCmd)
}

func (f *serveFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.host, "host", "", "web server listen host, overrides the config")
	flags.IntVarP(&f.port, "port", "p", 0, "web server listen port, overrides the config")
	flags.Float64VarP(&f.bpm, "bpm", "t", 0, "initial tempo in BPM, overrides the config")
}

// apply copies the flags the user set over the loaded config.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("bpm") {
		cfg.InitialBPM = f.bpm
	}
}
