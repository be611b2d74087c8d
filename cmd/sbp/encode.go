package main

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/pmiettinen/libsbp/internal/protocol/message"
	"github.com/spf13/cobra"
)

// maxLine fits the JSON projection of the largest possible frame.
const maxLine = 64 * 1024

func newEncodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "Turn JSON lines on stdin into framed bytes on stdout",
		Long: `Turn JSON lines on stdin into framed bytes on stdout.

Each line is a projection as printed by "sbp dump". Known messages are
re-encoded from their fields; raw frames need a payload. Lines without a
sender use --sender.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewScanner(cmd.InOrStdin())
			in.Buffer(make([]byte, 0, 4096), maxLine)
			out := bufio.NewWriter(cmd.OutOrStdout())

			n := 0
			for in.Scan() {
				n++
				line := bytes.TrimSpace(in.Bytes())
				if len(line) == 0 {
					continue
				}
				f, err := message.ImportWithSender(a.reg, line, a.cfg.Sender)
				if err != nil {
					return fmt.Errorf("line %d: %w", n, err)
				}
				if _, err := out.Write(f.Bytes()); err != nil {
					return err
				}
			}
			if err := in.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return out.Flush()
		},
	}
}
