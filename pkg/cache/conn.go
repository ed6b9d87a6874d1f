package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/user-service/pkg/backoff"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is returned internally when no connection could be
// established within the configured attempts.
var ErrUnavailable = errors.New("cache store unavailable")

// Conn is the subset of the go-redis client used by the cache.
// *redis.Client satisfies it.
type Conn interface {
	redis.Scripter

	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// DialFunc creates a connection for the given options. The connection is
// not expected to be usable until it answers a PING.
type DialFunc func(opts *redis.Options) Conn

func dialRedis(opts *redis.Options) Conn {
	return redis.NewClient(opts)
}

// lease is one connection handed out by a slot. A detached lease is no
// longer reachable from its slot and is closed once the last user releases
// it.
type lease struct {
	conn     Conn
	refs     int
	detached bool
}

// slot owns at most one live connection. It moves between absent (current
// is nil) and active; creation is shared by concurrent callers.
type slot struct {
	name        string
	opts        *redis.Options
	dial        DialFunc
	reconnect   backoff.Policy
	maxAttempts int
	logger      zerolog.Logger

	mu      sync.Mutex
	current *lease
	gen     uint64 // bumped by close; a connect started earlier must not install
	group   singleflight.Group
}

// acquire returns the active lease, connecting first if the slot is absent.
// Every successful acquire must be paired with release.
func (s *slot) acquire(ctx context.Context) (*lease, error) {
	for {
		s.mu.Lock()
		if l := s.current; l != nil {
			l.refs++
			s.mu.Unlock()
			return l, nil
		}
		s.mu.Unlock()

		// The dial outlives a single caller's cancellation since other
		// callers may be waiting on it.
		v, err, _ := s.group.Do(s.name, func() (any, error) {
			return s.connect(context.WithoutCancel(ctx))
		})
		if err != nil {
			return nil, err
		}

		l := v.(*lease)
		s.mu.Lock()
		if !l.detached {
			l.refs++
			s.mu.Unlock()
			return l, nil
		}
		s.mu.Unlock()

		// Released and closed by another reader before we got to it.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// release hands a lease back. With closeAfter set, or when err signals a
// demoted primary, the lease is detached so the next caller reconnects.
func (s *slot) release(l *lease, closeAfter bool, err error) {
	if isReadOnly(err) {
		s.logger.Error().Err(err).Str("slot", s.name).Msg("Reconnect on error")
		closeAfter = true
	}

	s.mu.Lock()
	if closeAfter {
		s.detachLocked(l)
	}
	l.refs--
	shouldClose := l.detached && l.refs == 0
	s.mu.Unlock()

	if shouldClose {
		s.closeConn(l.conn)
	}
}

// close detaches the active lease. It is closed immediately when idle,
// otherwise by its last user.
func (s *slot) close() bool {
	s.mu.Lock()
	s.gen++
	l := s.current
	if l == nil {
		s.mu.Unlock()
		return false
	}
	s.detachLocked(l)
	shouldClose := l.refs == 0
	s.mu.Unlock()

	if shouldClose {
		s.closeConn(l.conn)
	}
	return true
}

func (s *slot) detachLocked(l *lease) {
	l.detached = true
	if s.current == l {
		s.current = nil
	}
}

func (s *slot) closeConn(conn Conn) {
	ConnectionsClosed.WithLabelValues(s.name).Inc()
	if err := conn.Close(); err != nil {
		s.logger.Warn().Err(err).Str("slot", s.name).Msg("Closing cache connection failed")
		return
	}
	s.logger.Debug().Str("slot", s.name).Msg("Cache connection closed")
}

// connect dials until the store answers a PING or the attempts run out.
// On success the new lease becomes the slot's current one, unless the slot
// was closed while dialing.
func (s *slot) connect(ctx context.Context) (*lease, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	s.logger.Info().
		Str("slot", s.name).
		Str("addr", s.opts.Addr).
		Msg("Cache connection is absent, creating a new connection")

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		conn := s.dial(s.opts)
		err := conn.Ping(ctx).Err()
		if err == nil {
			ConnectionsOpened.WithLabelValues(s.name, "success").Inc()

			s.mu.Lock()
			if s.gen != gen {
				s.mu.Unlock()
				s.closeConn(conn)
				return nil, fmt.Errorf("%w: slot closed while connecting", ErrUnavailable)
			}
			if existing := s.current; existing != nil {
				// Lost a race with a flight that finished first.
				s.mu.Unlock()
				_ = conn.Close()
				return existing, nil
			}
			l := &lease{conn: conn}
			s.current = l
			s.mu.Unlock()
			return l, nil
		}

		ConnectionsOpened.WithLabelValues(s.name, "failure").Inc()
		_ = conn.Close()
		lastErr = err

		if attempt == s.maxAttempts {
			break
		}

		delay := s.reconnect.Delay(attempt)
		s.logger.Warn().
			Err(err).
			Str("slot", s.name).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Cache connection failed, retrying")

		if sleepErr := backoff.Sleep(ctx, delay); sleepErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, sleepErr)
		}
	}

	s.logger.Error().
		Err(lastErr).
		Str("slot", s.name).
		Str("addr", s.opts.Addr).
		Int("attempts", s.maxAttempts).
		Msg("Too many attempts to reconnect, check the server status")
	return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, s.opts.Addr, lastErr)
}

func isReadOnly(err error) bool {
	return err != nil && strings.Contains(err.Error(), "READONLY")
}
