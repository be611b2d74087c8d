package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/pmiettinen/libsbp/internal/sbp"
	"github.com/pmiettinen/libsbp/internal/testutil/testlog"
	"github.com/segmentio/ksuid"
)

func openMem(t *testing.T, fs vfs.FS) *Store {
	t.Helper()
	s, err := Open("capture", Options{FS: fs})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func heartbeat(t *testing.T, flags uint32) frame.Frame {
	t.Helper()
	f, err := sbp.Encode(sbp.Heartbeat{Flags: flags}, sbp.DefaultSender)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return f
}

func replayAll(t *testing.T, s *Store, id ksuid.KSUID) []frame.Frame {
	t.Helper()
	var out []frame.Frame
	err := s.Replay(context.Background(), id, func(seq uint64, f frame.Frame) error {
		if seq != uint64(len(out)) {
			t.Fatalf("seq %d at position %d", seq, len(out))
		}
		out = append(out, f)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	return out
}

func TestAppendReplayInOrder(t *testing.T) {
	testlog.Start(t)
	s := openMem(t, vfs.NewMem())
	defer s.Close()

	id, err := s.NewSession()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	var want []frame.Frame
	for i := uint32(0); i < 300; i++ {
		f := heartbeat(t, i)
		seq, err := s.Append(id, f)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if seq != uint64(i) {
			t.Fatalf("seq %d want %d", seq, i)
		}
		want = append(want, f)
	}
	got := replayAll(t, s, id)
	if len(got) != len(want) {
		t.Fatalf("replayed %d frames", len(got))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("frame %d differs", i)
		}
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	testlog.Start(t)
	s := openMem(t, vfs.NewMem())
	defer s.Close()

	a, _ := s.NewSession()
	b, _ := s.NewSession()
	if _, err := s.AppendBatch(a, []frame.Frame{heartbeat(t, 1), heartbeat(t, 2)}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if _, err := s.Append(b, heartbeat(t, 3)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if n := len(replayAll(t, s, a)); n != 2 {
		t.Fatalf("session a has %d frames", n)
	}
	if n := len(replayAll(t, s, b)); n != 1 {
		t.Fatalf("session b has %d frames", n)
	}

	sessions, err := s.Sessions()
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	frames := map[ksuid.KSUID]uint64{}
	for _, sess := range sessions {
		frames[sess.ID] = sess.Frames
		if sess.Created.IsZero() {
			t.Fatalf("session %s has no creation time", sess.ID)
		}
	}
	if len(sessions) != 2 || frames[a] != 2 || frames[b] != 1 {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
}

func TestReopenResumesSequence(t *testing.T) {
	testlog.Start(t)
	fs := vfs.NewMem()
	s := openMem(t, fs)
	id, _ := s.NewSession()
	if _, err := s.AppendBatch(id, []frame.Frame{heartbeat(t, 1), heartbeat(t, 2), heartbeat(t, 3)}); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.Append(id, heartbeat(t, 4)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	s = openMem(t, fs)
	defer s.Close()
	seq, err := s.Append(id, heartbeat(t, 4))
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if seq != 3 {
		t.Fatalf("seq %d want 3", seq)
	}
	if n := len(replayAll(t, s, id)); n != 4 {
		t.Fatalf("replayed %d frames", n)
	}
}

func TestUnknownSession(t *testing.T) {
	testlog.Start(t)
	s := openMem(t, vfs.NewMem())
	defer s.Close()
	stranger := ksuid.New()
	if _, err := s.Append(stranger, heartbeat(t, 1)); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("append: expected ErrUnknownSession, got %v", err)
	}
	err := s.Replay(context.Background(), stranger, func(uint64, frame.Frame) error { return nil })
	if !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("replay: expected ErrUnknownSession, got %v", err)
	}
}

func TestReplayStops(t *testing.T) {
	testlog.Start(t)
	s := openMem(t, vfs.NewMem())
	defer s.Close()
	id, _ := s.NewSession()
	if _, err := s.AppendBatch(id, []frame.Frame{heartbeat(t, 1), heartbeat(t, 2)}); err != nil {
		t.Fatalf("batch: %v", err)
	}

	stop := errors.New("stop")
	calls := 0
	err := s.Replay(context.Background(), id, func(uint64, frame.Frame) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Replay(ctx, id, func(uint64, frame.Frame) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
