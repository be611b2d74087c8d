// Package transport supplies byte streams from the network to the frame
// reader. Framing stays in package stream; a reconnect here just splices
// streams, and the reader resynchronizes across the seam.
package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pmiettinen/libsbp/internal/logging"
	"github.com/rs/zerolog"
)

var ErrGaveUp = errors.New("transport: gave up redialing")

type RedialConfig struct {
	DialTimeout time.Duration
	// MaxAttempts bounds consecutive failed dials. 0 means no limit.
	MaxAttempts int
	Backoff     BackoffConfig
}

func DefaultRedialConfig() RedialConfig {
	return RedialConfig{
		DialTimeout: 5 * time.Second,
		Backoff:     DefaultBackoff(),
	}
}

// DialTCP connects once. Cancelling ctx closes the connection, which
// unblocks a pending Read.
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return conn, nil
}

// Redialer is an io.ReadCloser over a TCP source that reconnects with
// backoff whenever the connection drops. It ends only when ctx is done,
// Close is called, or MaxAttempts dials fail in a row.
type Redialer struct {
	ctx  context.Context
	addr string
	cfg  RedialConfig
	rng  *rand.Rand
	log  zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
	dials  int
}

// Redial connects to addr, retrying per cfg until the first connection
// succeeds.
func Redial(ctx context.Context, addr string, cfg RedialConfig) (*Redialer, error) {
	r := &Redialer{
		ctx:  ctx,
		addr: addr,
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		log:  logging.Component("transport").With().Str("addr", addr).Logger(),
	}
	conn, err := r.dial()
	if err != nil {
		return nil, err
	}
	r.conn, r.dials = conn, 1
	go func() {
		<-ctx.Done()
		_ = r.Close()
	}()
	return r, nil
}

func (r *Redialer) Read(p []byte) (int, error) {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return 0, net.ErrClosed
		}
		conn := r.conn
		r.mu.Unlock()

		if conn == nil {
			next, err := r.dial()
			if err != nil {
				return 0, err
			}
			if !r.swap(next) {
				_ = next.Close()
				return 0, net.ErrClosed
			}
			conn = next
		}

		n, err := conn.Read(p)
		if err == nil {
			return n, nil
		}
		if r.ctx.Err() != nil {
			return n, r.ctx.Err()
		}
		r.log.Warn().Err(err).Msg("input connection lost, redialing")
		_ = conn.Close()
		r.swap(nil)
		if n > 0 {
			return n, nil
		}
	}
}

// Dials returns how many connections have been established.
func (r *Redialer) Dials() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

func (r *Redialer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// swap installs conn unless the redialer was closed meanwhile.
func (r *Redialer) swap(conn net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.conn = conn
	if conn != nil {
		r.dials++
	}
	return true
}

func (r *Redialer) dial() (net.Conn, error) {
	var last error
	for attempt := 1; r.cfg.MaxAttempts == 0 || attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			t := time.NewTimer(NextDelay(r.cfg.Backoff, attempt-1, r.rng))
			select {
			case <-r.ctx.Done():
				t.Stop()
				return nil, r.ctx.Err()
			case <-t.C:
			}
		}
		d := net.Dialer{Timeout: r.cfg.DialTimeout}
		conn, err := d.DialContext(r.ctx, "tcp", r.addr)
		if err == nil {
			r.log.Debug().Int("attempt", attempt).Msg("input connected")
			return conn, nil
		}
		if r.ctx.Err() != nil {
			return nil, r.ctx.Err()
		}
		last = err
		r.log.Debug().Err(err).Int("attempt", attempt).Msg("dial failed")
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrGaveUp, r.addr, r.cfg.MaxAttempts, last)
}
