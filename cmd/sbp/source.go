package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pmiettinen/libsbp/internal/config"
	"github.com/pmiettinen/libsbp/internal/logging"
	"github.com/pmiettinen/libsbp/internal/observability"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/protocol/stream"
	"github.com/pmiettinen/libsbp/internal/transport"
	"github.com/rs/zerolog"
)

func openSource(ctx context.Context, in config.InputConfig, stdin io.Reader) (io.ReadCloser, error) {
	switch in.Kind {
	case config.InputFile:
		f, err := os.Open(in.Path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		return f, nil
	case config.InputTCP:
		rc := transport.DefaultRedialConfig()
		if in.Reconnect {
			r, err := transport.Redial(ctx, in.Addr, rc)
			if err != nil {
				return nil, err
			}
			return r, nil
		}
		return transport.DialTCP(ctx, in.Addr, rc.DialTimeout)
	default:
		return io.NopCloser(stdin), nil
	}
}

// scanSource runs a stream reader over src and hands every intact frame to
// fn. Frames whose payload did not decode are passed raw. CRC failures are
// logged and skipped.
func (a *app) scanSource(ctx context.Context, src io.Reader, name string, fn func(stream.Result) error) error {
	logger := logging.Component(name)
	rd := stream.NewReader(a.reg, stream.Config{Observer: observability.NewStreamMetrics(name), Logger: &logger})
	sc := stream.NewScanner(src, rd, a.cfg.Input.ReadSize)
	defer func() { logStats(logger, rd.Stats()) }()

	for {
		res, err := sc.Scan(ctx)
		var decodeErr *stream.DecodeError
		switch {
		case err == nil:
			if err := fn(res); err != nil {
				return err
			}
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			logger.Warn().Err(err).Msg("input ended inside a frame")
			return nil
		case errors.Is(err, frame.ErrCRCMismatch):
			logger.Warn().Err(err).Msg("dropped corrupt frame")
		case errors.As(err, &decodeErr):
			logger.Warn().Err(err).Msg("payload did not match its descriptor, passing raw frame")
			if err := fn(stream.Result{Offset: decodeErr.Offset, Frame: decodeErr.Frame}); err != nil {
				return err
			}
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

func logStats(logger zerolog.Logger, s stream.Stats) {
	logger.Info().
		Uint64("messages", s.Messages).
		Uint64("unknown", s.Unknown).
		Uint64("crc_errors", s.CRCErrors).
		Uint64("decode_errors", s.DecodeErrors).
		Uint64("skipped_bytes", s.Skipped).
		Msg("stream finished")
}
