package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pmiettinen/libsbp/internal/protocol/stream"
	"github.com/spf13/cobra"
)

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Decode a stream and print one line per frame",
		Long: `Decode a stream and print one line per frame.

Known messages are printed with their fields. Unknown msg_types are printed
raw unless the unknown policy is "drop". Corrupt frames are logged and
skipped; the stream keeps going.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stopMetrics, err := a.startMetrics("sbp-dump")
			if err != nil {
				return err
			}
			defer stopMetrics()

			src, err := openSource(ctx, a.cfg.Input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer src.Close()

			out := newPrinter(cmd.OutOrStdout(), a.cfg.Output)
			err = a.scanSource(ctx, src, "dump", func(res stream.Result) error {
				return out.emit(res.Frame, res.Message)
			})
			if ferr := out.Flush(); err == nil {
				err = ferr
			}
			return err
		},
	}
}
