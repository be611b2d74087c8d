// Package capture persists raw frames in a pebble store, grouped into
// sessions, so a recorded stream can be replayed byte for byte.
package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pmiettinen/libsbp/internal/protocol/frame"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

// Key layout:
//
//	's' session            -> empty marker
//	'f' session seq(BE u64) -> frame wire bytes
const (
	prefixSession byte = 's'
	prefixFrame   byte = 'f'
	seqLen             = 8
)

var (
	ErrUnknownSession = errors.New("capture: unknown session")
	ErrCorruptRecord  = errors.New("capture: corrupt frame record")
	ErrClosed         = errors.New("capture: store closed")
)

type Options struct {
	// Sync makes every write durable before it returns.
	Sync bool
	// FS overrides the filesystem, e.g. vfs.NewMem() in tests.
	FS vfs.FS
}

// Session describes one recorded stream.
type Session struct {
	ID      ksuid.KSUID
	Created time.Time
	Frames  uint64
}

// Store is safe for concurrent use.
type Store struct {
	db    *pebble.DB
	write *pebble.WriteOptions

	mu   sync.Mutex
	next map[ksuid.KSUID]uint64
}

func Open(dir string, opts Options) (*Store, error) {
	popts := &pebble.Options{}
	if opts.FS != nil {
		popts.FS = opts.FS
	}
	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", dir, err)
	}
	write := pebble.NoSync
	if opts.Sync {
		write = pebble.Sync
	}
	return &Store{db: db, write: write, next: make(map[ksuid.KSUID]uint64)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// NewSession starts a session. Its id sorts by creation time.
func (s *Store) NewSession() (ksuid.KSUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ksuid.Nil, ErrClosed
	}
	id := ksuid.New()
	if err := s.db.Set(sessionKey(id), nil, s.write); err != nil {
		return ksuid.Nil, fmt.Errorf("capture: new session: %w", err)
	}
	s.next[id] = 0
	log.Debug().Str("session", id.String()).Msg("capture session started")
	return id, nil
}

// Append stores f at the end of session and returns its sequence number.
func (s *Store) Append(session ksuid.KSUID, f frame.Frame) (uint64, error) {
	seq, err := s.AppendBatch(session, []frame.Frame{f})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// AppendBatch stores frames in one atomic write and returns the sequence
// number of the first.
func (s *Store) AppendBatch(session ksuid.KSUID, frames []frame.Frame) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	first, err := s.nextSeq(session)
	if err != nil {
		return 0, err
	}
	if len(frames) == 0 {
		return first, nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for i, f := range frames {
		if err := b.Set(frameKey(session, first+uint64(i)), f.Bytes(), nil); err != nil {
			return 0, fmt.Errorf("capture: append: %w", err)
		}
	}
	if err := b.Commit(s.write); err != nil {
		return 0, fmt.Errorf("capture: append: %w", err)
	}
	s.next[session] = first + uint64(len(frames))
	return first, nil
}

// nextSeq is called with mu held.
func (s *Store) nextSeq(session ksuid.KSUID) (uint64, error) {
	if seq, ok := s.next[session]; ok {
		return seq, nil
	}
	if err := s.checkSession(session); err != nil {
		return 0, err
	}
	n, err := s.countFrames(session)
	if err != nil {
		return 0, err
	}
	s.next[session] = n
	return n, nil
}

func (s *Store) checkSession(session ksuid.KSUID) error {
	_, closer, err := s.db.Get(sessionKey(session))
	if errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownSession, session)
	}
	if err != nil {
		return fmt.Errorf("capture: lookup session: %w", err)
	}
	return closer.Close()
}

// countFrames returns one past the last stored sequence number.
func (s *Store) countFrames(session ksuid.KSUID) (uint64, error) {
	lower, upper := frameBounds(session)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, fmt.Errorf("capture: iterate: %w", err)
	}
	defer it.Close()
	if !it.Last() {
		return 0, it.Error()
	}
	return binary.BigEndian.Uint64(it.Key()[len(lower):]) + 1, nil
}

// Replay calls fn for every frame of session in append order. ctx is checked
// between frames; an error from fn stops the replay and is returned.
func (s *Store) Replay(ctx context.Context, session ksuid.KSUID, fn func(seq uint64, f frame.Frame) error) error {
	s.mu.Lock()
	if s.db == nil {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.checkSession(session); err != nil {
		s.mu.Unlock()
		return err
	}
	lower, upper := frameBounds(session)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("capture: iterate: %w", err)
	}
	defer it.Close()

	for valid := it.First(); valid; valid = it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := it.Key()
		if len(key) != len(lower)+seqLen {
			return fmt.Errorf("%w: key %x", ErrCorruptRecord, key)
		}
		seq := binary.BigEndian.Uint64(key[len(lower):])
		f, n, err := frame.Decode(it.Value())
		if err != nil {
			return fmt.Errorf("%w: seq %d: %v", ErrCorruptRecord, seq, err)
		}
		if n != len(it.Value()) {
			return fmt.Errorf("%w: seq %d has %d trailing bytes", ErrCorruptRecord, seq, len(it.Value())-n)
		}
		if err := fn(seq, f); err != nil {
			return err
		}
	}
	return it.Error()
}

// Sessions lists every session, oldest first.
func (s *Store) Sessions() ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{prefixSession},
		UpperBound: []byte{prefixSession + 1},
	})
	if err != nil {
		return nil, fmt.Errorf("capture: iterate: %w", err)
	}
	defer it.Close()

	var out []Session
	for valid := it.First(); valid; valid = it.Next() {
		id, err := ksuid.FromBytes(it.Key()[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: session key %x", ErrCorruptRecord, it.Key())
		}
		n, ok := s.next[id]
		if !ok {
			if n, err = s.countFrames(id); err != nil {
				return nil, err
			}
		}
		out = append(out, Session{ID: id, Created: id.Time(), Frames: n})
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func sessionKey(id ksuid.KSUID) []byte {
	return append([]byte{prefixSession}, id.Bytes()...)
}

func frameKey(id ksuid.KSUID, seq uint64) []byte {
	key := make([]byte, 0, 1+len(id)+seqLen)
	key = append(key, prefixFrame)
	key = append(key, id.Bytes()...)
	return binary.BigEndian.AppendUint64(key, seq)
}

// frameBounds returns the key range holding every frame of id.
func frameBounds(id ksuid.KSUID) (lower, upper []byte) {
	lower = append([]byte{prefixFrame}, id.Bytes()...)
	upper = bytes.Clone(lower)
	upper = append(upper, bytes.Repeat([]byte{0xFF}, seqLen+1)...)
	return lower, upper
}
