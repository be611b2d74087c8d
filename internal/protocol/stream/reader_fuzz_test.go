//go:build fuzz

package stream

import (
	"errors"
	"testing"

	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/sbp"
)

// FuzzReaderNeverStalls feeds arbitrary noise followed by a valid frame. The
// reader must always make progress, and must find the trailing frame unless
// a frame that passed the checksum inside the noise overlaps it.
func FuzzReaderNeverStalls(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x55})
	f.Add([]byte{0x55, 0x00, 0x09, 0x42, 0x00, 0x11})
	f.Add([]byte{0x00, 0x55, 0x55, 0x01})

	reg, err := sbp.NewRegistry()
	if err != nil {
		f.Fatalf("registry: %v", err)
	}
	tail, err := sbp.Encode(sbp.Heartbeat{Flags: 0xA5A5A5A5}, sbp.DefaultSender)
	if err != nil {
		f.Fatalf("encode: %v", err)
	}

	f.Fuzz(func(t *testing.T, noise []byte) {
		r := NewReader(reg, Config{})
		r.Feed(noise)
		r.Feed(tail.Bytes())
		// Pad so no false preamble in the noise can hold the tail hostage.
		r.Feed(make([]byte, frame.MaxFrameLen))
		tailAt := int64(len(noise))
		found, swallowed := false, false
		for steps := 0; steps <= len(noise)+2*frame.MaxFrameLen; steps++ {
			before := r.Offset()
			res, err := r.Next()
			if errors.Is(err, ErrNeedMore) {
				break
			}
			if r.Offset() <= before {
				t.Fatalf("no progress at offset %d", before)
			}
			at, fr := res.Offset, res.Frame
			var de *DecodeError
			if errors.As(err, &de) {
				at, fr = de.Offset, de.Frame
			} else if err != nil {
				continue
			}
			if at == tailAt && fr.Equal(tail) {
				found = true
			} else if at <= tailAt && tailAt < at+int64(fr.WireSize()) {
				swallowed = true
			}
		}
		if !found && !swallowed {
			t.Fatalf("trailing frame not found after %d noise bytes", len(noise))
		}
	})
}
