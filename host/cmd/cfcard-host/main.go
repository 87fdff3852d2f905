// Command cfcard-host works with CF card images through the driver stack
// the firmware runs, and follows the firmware's diagnostics on its UART.
package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"cfcard/config"
)

// options are shared by all commands.
type options struct {
	configPath string
	logLevel   string
	imagePath  string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "cfcard-host",
		Short: "Host tools for the CF card / PATA driver",
		Long: `cfcard-host drives a disk image through the same layers the firmware
uses: a simulated PATA drive, the PATA register protocol, the SD card
emulation and an SD host talking to it over SPI.

Examples:
  cfcard-host sim create --image cf.img --sectors 4096
  cfcard-host sim info --image cf.img
  cfcard-host sim read --image cf.img 0
  cfcard-host sim write --image cf.img 2048 boot.bin
  cfcard-host monitor /dev/ttyACM0`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newSimCmd(opts), newMonitorCmd(opts))
	return root
}

// load reads the configuration and routes logging to stderr.
func (o *options) load(stderr io.Writer) error {
	cfg := config.Default()
	if o.configPath != "" {
		c, err := config.LoadFile(o.configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.imagePath != "" {
		cfg.Image.Path = o.imagePath
	}
	cfg.Log.Apply(stderr)
	o.cfg = cfg
	return nil
}
