package stream

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/protocol/schema"
	"github.com/pmiettinen/libsbp/internal/sbp"
	"github.com/pmiettinen/libsbp/internal/testutil/testlog"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := sbp.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func imuFrame(t *testing.T, tow uint32) frame.Frame {
	t.Helper()
	f, err := sbp.Encode(sbp.ImuRaw{Tow: tow, TowF: 5, AccX: -100, AccZ: 200, GyrX: 1, GyrY: 2, GyrZ: 3}, sbp.DefaultSender)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return f
}

// drain calls Next until ErrNeedMore and returns results and errors in order.
func drain(t *testing.T, r *Reader) ([]Result, []error) {
	t.Helper()
	var results []Result
	var errs []error
	for i := 0; i < 10000; i++ {
		res, err := r.Next()
		if errors.Is(err, ErrNeedMore) {
			return results, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	t.Fatalf("reader did not settle")
	return nil, nil
}

type countingObserver struct {
	messages, unknown, crc, decode, skipped int
}

func (o *countingObserver) OnMessage(uint16)     { o.messages++ }
func (o *countingObserver) OnUnknown(uint16)     { o.unknown++ }
func (o *countingObserver) OnCRCError()          { o.crc++ }
func (o *countingObserver) OnDecodeError(uint16) { o.decode++ }
func (o *countingObserver) OnSkipped(n int)      { o.skipped += n }

func TestReaderDecodesKnownMessage(t *testing.T) {
	testlog.Start(t)
	r := NewReader(testRegistry(t), Config{})
	f := imuFrame(t, 1000)
	r.Feed(f.Bytes())
	res, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !res.Known() || res.Consumed != f.WireSize() || res.Offset != 0 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	view, err := sbp.ImuRawFromMessage(res.Message)
	if err != nil || view.Tow != 1000 || view.AccX != -100 {
		t.Fatalf("view %+v, %v", view, err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrNeedMore) || !errors.Is(err, frame.ErrTruncated) {
		t.Fatalf("expected need more, got %v", err)
	}
	if r.Buffered() != 0 || r.Offset() != int64(f.WireSize()) {
		t.Fatalf("buffered=%d offset=%d", r.Buffered(), r.Offset())
	}
}

func TestReaderCorruptionRecovery(t *testing.T) {
	testlog.Start(t)
	obs := &countingObserver{}
	r := NewReader(testRegistry(t), Config{Observer: obs})
	bad := imuFrame(t, 1).Bytes()
	bad[9] ^= 0x40
	good := imuFrame(t, 2)
	r.Feed(append(bad, good.Bytes()...))

	_, err := r.Next()
	var crcErr *frame.CRCError
	if !errors.As(err, &crcErr) {
		t.Fatalf("expected crc error, got %v", err)
	}
	if crcErr.Offset != 0 || !bytes.Equal(crcErr.Raw, bad) {
		t.Fatalf("crc error context offset=%d raw=%x", crcErr.Offset, crcErr.Raw)
	}
	if r.State() != StateSeekingPreamble || r.Offset() != 1 {
		t.Fatalf("after crc: state=%s offset=%d", r.State(), r.Offset())
	}

	results, errs := drain(t, r)
	if len(results) != 1 {
		t.Fatalf("expected one recovered frame, got %d (errs %v)", len(results), errs)
	}
	got := results[0]
	if got.Offset != int64(len(bad)) || !got.Frame.Equal(good) {
		t.Fatalf("recovered wrong frame at %d", got.Offset)
	}
	view, _ := sbp.ImuRawFromMessage(got.Message)
	if view.Tow != 2 {
		t.Fatalf("tow %d", view.Tow)
	}
	if obs.crc < 1 || obs.messages != 1 || uint64(obs.skipped) != r.Stats().Skipped {
		t.Fatalf("observer %+v stats %+v", obs, r.Stats())
	}
	if got.Skipped != len(bad) {
		t.Fatalf("skipped %d, want %d", got.Skipped, len(bad))
	}
}

func TestReaderByteAtATime(t *testing.T) {
	testlog.Start(t)
	r := NewReader(testRegistry(t), Config{})
	wire := imuFrame(t, 1000).Bytes()
	wantStates := map[int]State{
		1:                            StateReadingHeader,
		frame.HeaderLen:              StateReadingPayload,
		len(wire) - frame.CRCLen:     StateReadingCRC,
		len(wire) - frame.CRCLen + 1: StateReadingCRC,
	}
	for i, b := range wire {
		r.Feed([]byte{b})
		res, err := r.Next()
		if i < len(wire)-1 {
			if !errors.Is(err, ErrNeedMore) {
				t.Fatalf("byte %d: expected need more, got %+v %v", i, res, err)
			}
			if want, ok := wantStates[i+1]; ok && r.State() != want {
				t.Fatalf("after %d bytes: state %s want %s", i+1, r.State(), want)
			}
			continue
		}
		if err != nil || !res.Known() {
			t.Fatalf("final byte: %+v %v", res, err)
		}
	}
}

func TestReaderArbitraryChunks(t *testing.T) {
	testlog.Start(t)
	var wire []byte
	for tow := uint32(0); tow < 20; tow++ {
		wire = append(wire, imuFrame(t, tow).Bytes()...)
	}
	for _, size := range []int{1, 2, 3, 7, 24, 25, 26, 100, len(wire)} {
		r := NewReader(testRegistry(t), Config{})
		var got []uint32
		for off := 0; off < len(wire); off += size {
			end := min(off+size, len(wire))
			r.Feed(wire[off:end])
			results, errs := drain(t, r)
			if len(errs) > 0 {
				t.Fatalf("chunk %d: %v", size, errs)
			}
			for _, res := range results {
				v, _ := sbp.ImuRawFromMessage(res.Message)
				got = append(got, v.Tow)
			}
		}
		if len(got) != 20 {
			t.Fatalf("chunk %d: got %d frames", size, len(got))
		}
		for i, tow := range got {
			if tow != uint32(i) {
				t.Fatalf("chunk %d: frame %d tow %d", size, i, tow)
			}
		}
	}
}

func TestReaderUnknownPassthrough(t *testing.T) {
	testlog.Start(t)
	obs := &countingObserver{}
	r := NewReader(testRegistry(t), Config{Observer: obs})
	payload := []byte{0xDE, 0xAD, 0x55, 0x00, 0xBE, 0xEF}
	f, err := frame.New(0x1234, 9, payload)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	r.Feed(f.Bytes())
	res, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if res.Known() || res.Frame.MsgType() != 0x1234 || !bytes.Equal(res.Frame.Payload(), payload) {
		t.Fatalf("unexpected passthrough %+v", res)
	}
	if obs.unknown != 1 || r.Stats().Unknown != 1 {
		t.Fatalf("unknown not counted")
	}
}

func TestReaderSkipsNoise(t *testing.T) {
	testlog.Start(t)
	r := NewReader(testRegistry(t), Config{})
	noise := []byte{0x00, 0xFF, 0x13, 0x37}
	f := imuFrame(t, 9)
	r.Feed(noise)
	if _, err := r.Next(); !errors.Is(err, ErrNeedMore) {
		t.Fatalf("noise alone: %v", err)
	}
	if r.Buffered() != 0 || r.State() != StateSeekingPreamble {
		t.Fatalf("noise should be dropped")
	}
	r.Feed(f.Bytes())
	res, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if res.Skipped != len(noise) || res.Offset != int64(len(noise)) || res.Consumed != f.WireSize() {
		t.Fatalf("unexpected bookkeeping %+v", res)
	}
}

func TestReaderDecodeErrorReportsSkipped(t *testing.T) {
	testlog.Start(t)
	r := NewReader(testRegistry(t), Config{})
	noise := []byte{0x01, 0x02, 0x03, 0x04}
	short, _ := frame.New(sbp.MsgImuRaw, 1, []byte{1, 2, 3})
	r.Feed(append(noise, short.Bytes()...))

	res, err := r.Next()
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if res.Skipped != len(noise) || res.Offset != int64(len(noise)) || res.Consumed != len(noise)+short.WireSize() {
		t.Fatalf("unexpected bookkeeping %+v", res)
	}
}

func TestReaderDecodeErrorKeepsGoing(t *testing.T) {
	testlog.Start(t)
	obs := &countingObserver{}
	r := NewReader(testRegistry(t), Config{Observer: obs})
	short, _ := frame.New(sbp.MsgImuRaw, 1, []byte{1, 2, 3})
	good := imuFrame(t, 4)
	r.Feed(append(short.Bytes(), good.Bytes()...))

	_, err := r.Next()
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if !de.Frame.Equal(short) || de.Offset != 0 {
		t.Fatalf("decode error context %+v", de)
	}
	res, err := r.Next()
	if err != nil || !res.Frame.Equal(good) {
		t.Fatalf("next after decode error: %v", err)
	}
	if obs.decode != 1 || obs.messages != 1 {
		t.Fatalf("observer %+v", obs)
	}
}

func TestReaderFalsePreambleInNoise(t *testing.T) {
	testlog.Start(t)
	r := NewReader(testRegistry(t), Config{})
	// A stray preamble whose announced header fails the crc.
	noise := []byte{0x55, 0x00, 0x09, 0x42, 0x00, 0x00, 0x12, 0x34}
	f := imuFrame(t, 77)
	r.Feed(append(noise, f.Bytes()...))
	results, errs := drain(t, r)
	if len(results) != 1 || !results[0].Frame.Equal(f) {
		t.Fatalf("results %d errs %v", len(results), errs)
	}
	if len(errs) == 0 || !errors.Is(errs[0], frame.ErrCRCMismatch) {
		t.Fatalf("expected a crc error first, got %v", errs)
	}
}

func TestReaderChecksumCollisionSwallowsFollowingFrame(t *testing.T) {
	testlog.Start(t)
	r := NewReader(testRegistry(t), Config{})
	// The preamble at offset 16 announces an 85 byte payload whose crc
	// happens to match, so the frame after the noise is payload.
	noise := []byte("0000000000UUUUUUU9UUUUUUUU")
	tail, err := sbp.Encode(sbp.Heartbeat{Flags: 0xA5A5A5A5}, sbp.DefaultSender)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r.Feed(noise)
	r.Feed(tail.Bytes())
	r.Feed(make([]byte, frame.MaxFrameLen))

	results, errs := drain(t, r)
	if len(errs) != 6 {
		t.Fatalf("expected 6 crc errors before the false frame, got %v", errs)
	}
	if len(results) != 1 {
		t.Fatalf("expected only the false frame, got %d results", len(results))
	}
	got := results[0]
	if got.Offset != 16 || got.Frame.MsgType() != 0x5539 || got.Frame.WireSize() != 93 || got.Known() {
		t.Fatalf("unexpected frame %s at %d", got.Frame, got.Offset)
	}
	tailAt := int64(len(noise))
	if tailAt >= got.Offset+int64(got.Frame.WireSize()) {
		t.Fatalf("false frame does not cover the tail")
	}
	if want := tailAt + int64(tail.WireSize()+frame.MaxFrameLen); r.Offset() != want {
		t.Fatalf("offset %d want %d", r.Offset(), want)
	}
}
