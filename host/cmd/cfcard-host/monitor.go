package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"cfcard/host/serial"
)

func newMonitorCmd(opts *options) *cobra.Command {
	var baud int
	cmd := &cobra.Command{
		Use:   "monitor [device]",
		Short: "Print the firmware diagnostics",
		Long: `Print the log lines the firmware writes to its UART until interrupted.
The device defaults to serial.device from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := serial.FromConfig(opts.cfg.Serial)
			if len(args) == 1 {
				cfg.Device = args[0]
			}
			if baud > 0 {
				cfg.Baud = baud
			}

			port, err := serial.Open(cfg)
			if err != nil {
				return err
			}
			defer port.Close()
			if err := port.Flush(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			err = serial.Monitor(ctx, port, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&baud, "baud", 0, "baud rate (default from config)")
	return cmd
}
