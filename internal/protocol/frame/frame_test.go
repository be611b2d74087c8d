package frame

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/pmiettinen/libsbp/internal/testutil/testlog"
)

// imuRawFrame is MSG_IMU_RAW (0x0900) from sender 0x42 with tow=1000,
// tow_f=5, acc=(-100,0,200), gyr=(1,2,3).
const imuRawFrame = "550009420011e8030000059cff0000c8000100020003004e8f"

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	return b
}

func TestCRC16Xmodem(t *testing.T) {
	testlog.Start(t)
	if got := CRC16([]byte("123456789")); got != 0x31C3 {
		t.Fatalf("crc16(123456789)=0x%04X want 0x31C3", got)
	}
	if got := CRC16(nil); got != 0 {
		t.Fatalf("crc16(nil)=0x%04X want 0", got)
	}
	split := UpdateCRC(CRC16([]byte("1234")), []byte("56789"))
	if split != 0x31C3 {
		t.Fatalf("incremental crc=0x%04X", split)
	}
}

func TestEncodeGoldenImuRaw(t *testing.T) {
	testlog.Start(t)
	want := mustHex(t, imuRawFrame)
	payload := want[HeaderLen : len(want)-CRCLen]
	got, err := Encode(0x0900, 0x42, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("encode mismatch:\n got %x\nwant %x", got, want)
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	for _, size := range []int{0, 1, 17, MaxPayload} {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 7)
		}
		wire, err := Encode(0xFF02, 0x1234, payload)
		if err != nil {
			t.Fatalf("encode %d: %v", size, err)
		}
		f, n, err := Decode(wire)
		if err != nil {
			t.Fatalf("decode %d: %v", size, err)
		}
		if n != len(wire) || n != f.WireSize() {
			t.Fatalf("consumed %d of %d", n, len(wire))
		}
		if f.MsgType() != 0xFF02 || f.Sender() != 0x1234 || int(f.Length()) != size {
			t.Fatalf("header mismatch: %s", f)
		}
		if !bytes.Equal(f.Payload(), payload) {
			t.Fatalf("payload mismatch at size %d", size)
		}
		if f.CRC() != CRC16(wire[1:len(wire)-CRCLen]) {
			t.Fatalf("crc does not cover header and payload")
		}
		if !bytes.Equal(f.Bytes(), wire) {
			t.Fatalf("re-encode mismatch at size %d", size)
		}
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	testlog.Start(t)
	_, err := Encode(1, 1, make([]byte, MaxPayload+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeTruncatedEveryPrefix(t *testing.T) {
	testlog.Start(t)
	wire := mustHex(t, imuRawFrame)
	for i := 0; i < len(wire); i++ {
		_, n, err := Decode(wire[:i])
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("prefix %d: expected ErrTruncated, got %v", i, err)
		}
		if n != 0 {
			t.Fatalf("prefix %d consumed %d", i, n)
		}
	}
}

func TestDecodeCRCMismatchCarriesBytes(t *testing.T) {
	testlog.Start(t)
	wire := mustHex(t, imuRawFrame)
	wire[9] ^= 0x01
	_, _, err := Decode(wire)
	if !errors.Is(err, ErrCRCMismatch) {
		t.Fatalf("expected ErrCRCMismatch, got %v", err)
	}
	var crcErr *CRCError
	if !errors.As(err, &crcErr) {
		t.Fatalf("expected *CRCError, got %T", err)
	}
	if !bytes.Equal(crcErr.Raw, wire) || crcErr.Received != 0x8F4E {
		t.Fatalf("unexpected crc error: %+v", crcErr)
	}
}

func TestDecodeBadPreamble(t *testing.T) {
	testlog.Start(t)
	_, _, err := Decode([]byte{0x00, 0x55})
	if !errors.Is(err, ErrBadPreamble) {
		t.Fatalf("expected ErrBadPreamble, got %v", err)
	}
}

func TestFramePayloadIsCopied(t *testing.T) {
	testlog.Start(t)
	src := []byte{1, 2, 3}
	f, err := New(1, 2, src)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	src[0] = 9
	p := f.Payload()
	p[1] = 9
	if !bytes.Equal(f.Payload(), []byte{1, 2, 3}) {
		t.Fatalf("frame payload mutated: %v", f.Payload())
	}
}

func TestReadWriteFrame(t *testing.T) {
	testlog.Start(t)
	in, err := New(0xFFFF, 0x42, []byte{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFrame(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 2; i++ {
		out, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !out.Equal(in) {
			t.Fatalf("read %d: got %s want %s", i, out, in)
		}
	}
	if _, err := ReadFrame(&buf); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadFrameShort(t *testing.T) {
	testlog.Start(t)
	wire := mustHex(t, imuRawFrame)
	_, err := ReadFrame(bytes.NewReader(wire[:10]))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	_, err = ReadFrame(bytes.NewReader(wire[:3]))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for short header, got %v", err)
	}
}

func TestNeedLen(t *testing.T) {
	testlog.Start(t)
	wire := mustHex(t, imuRawFrame)
	if NeedLen(wire[:5]) != 0 {
		t.Fatalf("expected 0 for partial header")
	}
	if got := NeedLen(wire[:6]); got != len(wire) {
		t.Fatalf("NeedLen=%d want %d", got, len(wire))
	}
}
