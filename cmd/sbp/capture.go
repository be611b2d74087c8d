package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pmiettinen/libsbp/internal/capture"
	"github.com/pmiettinen/libsbp/internal/logging"
	"github.com/pmiettinen/libsbp/internal/observability"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/protocol/stream"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
)

const recordBatch = 64

var errNoCaptureDir = errors.New("capture dir not set (use --capture-dir or [capture] dir)")

func (a *app) openStore() (*capture.Store, error) {
	if a.cfg.Capture.Dir == "" {
		return nil, errNoCaptureDir
	}
	return capture.Open(a.cfg.Capture.Dir, capture.Options{Sync: a.cfg.Capture.Sync})
}

func newRecordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Capture every intact frame of a stream into a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stopMetrics, err := a.startMetrics("sbp-record")
			if err != nil {
				return err
			}
			defer stopMetrics()

			id, err := store.NewSession()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.String())

			src, err := openSource(ctx, a.cfg.Input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer src.Close()

			total := 0
			pending := make([]frame.Frame, 0, recordBatch)
			flush := func() error {
				if len(pending) == 0 {
					return nil
				}
				if _, err := store.AppendBatch(id, pending); err != nil {
					return err
				}
				observability.RecordCapture(id.String(), len(pending))
				total += len(pending)
				pending = pending[:0]
				return nil
			}
			err = a.scanSource(ctx, src, "record", func(res stream.Result) error {
				pending = append(pending, res.Frame)
				if len(pending) == recordBatch {
					return flush()
				}
				return nil
			})
			if ferr := flush(); err == nil {
				err = ferr
			}
			logger := logging.Component("record")
			logger.Info().Str("session", id.String()).Int("frames", total).Msg("capture finished")
			return err
		},
	}
}

func newReplayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <session>",
		Short: "Print or re-emit the frames of a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ksuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("session id: %w", err)
			}
			raw, _ := cmd.Flags().GetBool("raw")

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := newPrinter(cmd.OutOrStdout(), a.cfg.Output)
			err = store.Replay(cmd.Context(), id, func(_ uint64, f frame.Frame) error {
				if raw {
					_, err := out.w.Write(f.Bytes())
					return err
				}
				return out.emitFrame(a.reg, f)
			})
			if ferr := out.Flush(); err == nil {
				err = ferr
			}
			return err
		},
	}
	cmd.Flags().Bool("raw", false, "write wire bytes instead of decoded lines")
	return cmd
}

func newSessionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.Sessions()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tCREATED\tFRAMES")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", s.ID, s.Created.Format(time.RFC3339), s.Frames)
			}
			return tw.Flush()
		},
	}
}
