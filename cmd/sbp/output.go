package main

import (
	"bufio"
	"errors"
	"io"

	"github.com/pmiettinen/libsbp/internal/config"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/protocol/message"
	"github.com/pmiettinen/libsbp/internal/protocol/schema"
	"github.com/rs/zerolog/log"
)

// printer writes one line per frame.
type printer struct {
	w       *bufio.Writer
	format  string
	unknown string
}

func newPrinter(w io.Writer, out config.OutputConfig) *printer {
	return &printer{w: bufio.NewWriter(w), format: out.Format, unknown: out.Unknown}
}

// emit prints m, or f raw when m is nil.
func (p *printer) emit(f frame.Frame, m *message.Message) error {
	if m == nil && p.unknown == config.UnknownDrop {
		return nil
	}
	if p.format == config.FormatText {
		if m != nil {
			_, _ = p.w.WriteString(m.String())
		} else {
			_, _ = p.w.WriteString(f.String())
		}
		return p.w.WriteByte('\n')
	}

	var data []byte
	var err error
	if m != nil {
		data, err = m.MarshalJSON()
		if errors.Is(err, message.ErrUnrepresentable) {
			log.Debug().Err(err).Uint16("msg_type", f.MsgType()).Msg("printing raw projection")
			data, err = message.MarshalFrameJSON(f)
		}
	} else {
		data, err = message.MarshalFrameJSON(f)
	}
	if err != nil {
		return err
	}
	_, _ = p.w.Write(data)
	return p.w.WriteByte('\n')
}

// emitFrame decodes f against reg when possible and prints it.
func (p *printer) emitFrame(reg *schema.Registry, f frame.Frame) error {
	desc, ok := reg.Lookup(f.MsgType())
	if !ok {
		return p.emit(f, nil)
	}
	m, err := message.Decode(f, desc)
	if err != nil {
		log.Warn().Err(err).Msg("payload did not match its descriptor, printing raw frame")
		return p.emit(f, nil)
	}
	return p.emit(f, m)
}

func (p *printer) Flush() error { return p.w.Flush() }
