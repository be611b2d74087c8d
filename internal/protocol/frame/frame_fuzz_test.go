//go:build fuzz

package frame

import (
	"bytes"
	"errors"
	"testing"
)

func FuzzDecode(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{Preamble})
	f.Add(mustEncode(f, 0x0900, 0x42, []byte{1, 2, 3}))
	f.Add(mustEncode(f, 0xFFFF, 0, nil))

	f.Fuzz(func(t *testing.T, buf []byte) {
		fr, n, err := Decode(buf)
		if err != nil {
			if n != 0 {
				t.Fatalf("error %v consumed %d bytes", err, n)
			}
			if !errors.Is(err, ErrTruncated) && !errors.Is(err, ErrBadPreamble) && !errors.Is(err, ErrCRCMismatch) {
				t.Fatalf("unexpected error class %v", err)
			}
			return
		}
		if n > len(buf) || n != fr.WireSize() {
			t.Fatalf("consumed %d of %d, wire size %d", n, len(buf), fr.WireSize())
		}
		if !bytes.Equal(fr.Bytes(), buf[:n]) {
			t.Fatalf("re-encode differs:\n got %x\nwant %x", fr.Bytes(), buf[:n])
		}
	})
}

func FuzzRoundTrip(f *testing.F) {
	f.Add(uint16(0x0900), uint16(0x42), []byte{0xE8, 0x03})
	f.Add(uint16(0), uint16(0), []byte{})

	f.Fuzz(func(t *testing.T, msgType, sender uint16, payload []byte) {
		if len(payload) > MaxPayload {
			payload = payload[:MaxPayload]
		}
		wire, err := Encode(msgType, sender, payload)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		fr, n, err := Decode(wire)
		if err != nil || n != len(wire) {
			t.Fatalf("decode: n=%d err=%v", n, err)
		}
		if fr.MsgType() != msgType || fr.Sender() != sender || !bytes.Equal(fr.Payload(), payload) {
			t.Fatalf("round trip mismatch: %s", fr)
		}
	})
}

func mustEncode(f *testing.F, msgType, sender uint16, payload []byte) []byte {
	f.Helper()
	b, err := Encode(msgType, sender, payload)
	if err != nil {
		f.Fatalf("encode: %v", err)
	}
	return b
}
