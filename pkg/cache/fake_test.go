package cache

import (
	"context"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeStore is an in-memory keyspace shared by every fakeConn of a dialer.
type fakeStore struct {
	mu   sync.Mutex
	data map[string]fakeEntry
}

type fakeEntry struct {
	value   string
	expires time.Time
}

func (s *fakeStore) lookupLocked(key string) (fakeEntry, bool) {
	e, ok := s.data[key]
	if !ok {
		return fakeEntry{}, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(s.data, key)
		return fakeEntry{}, false
	}
	return e, true
}

// fakeDialer hands out fakeConns and records what happened to them.
type fakeDialer struct {
	mu      sync.Mutex
	store   *fakeStore
	conns   []*fakeConn
	addrs   []string
	pingErr error
	cmdErr  error

	// pingGate, when set, blocks every Ping until it is closed. pingStarted
	// is signalled as a Ping begins.
	pingGate    chan struct{}
	pingStarted chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{store: &fakeStore{data: make(map[string]fakeEntry)}}
}

func (d *fakeDialer) dial(opts *redis.Options) Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeConn{
		store:       d.store,
		pingErr:     d.pingErr,
		cmdErr:      d.cmdErr,
		pingGate:    d.pingGate,
		pingStarted: d.pingStarted,
	}
	d.conns = append(d.conns, c)
	d.addrs = append(d.addrs, opts.Addr)
	return c
}

func (d *fakeDialer) setCmdErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmdErr = err
	for _, c := range d.conns {
		c.cmdErr = err
	}
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.conns {
		if c.closed.Load() {
			n++
		}
	}
	return n
}

func (d *fakeDialer) raw(key string) (string, bool) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	e, ok := d.store.lookupLocked(key)
	return e.value, ok
}

// fakeConn implements Conn on top of fakeStore.
type fakeConn struct {
	store       *fakeStore
	pingErr     error
	cmdErr      error
	pingGate    chan struct{}
	pingStarted chan struct{}
	closed      atomic.Bool
}

func (c *fakeConn) Get(_ context.Context, key string) *redis.StringCmd {
	if c.cmdErr != nil {
		return redis.NewStringResult("", c.cmdErr)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	e, ok := c.store.lookupLocked(key)
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(e.value, nil)
}

func (c *fakeConn) GetDel(_ context.Context, key string) *redis.StringCmd {
	if c.cmdErr != nil {
		return redis.NewStringResult("", c.cmdErr)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	e, ok := c.store.lookupLocked(key)
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(c.store.data, key)
	return redis.NewStringResult(e.value, nil)
}

func (c *fakeConn) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if c.cmdErr != nil {
		return redis.NewStatusResult("", c.cmdErr)
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	e := fakeEntry{value: s}
	if expiration > 0 {
		e.expires = time.Now().Add(expiration)
	}
	c.store.mu.Lock()
	c.store.data[key] = e
	c.store.mu.Unlock()
	return redis.NewStatusResult("OK", nil)
}

func (c *fakeConn) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if c.cmdErr != nil {
		return redis.NewIntResult(0, c.cmdErr)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := c.store.lookupLocked(key); ok {
			delete(c.store.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (c *fakeConn) TTL(_ context.Context, key string) *redis.DurationCmd {
	if c.cmdErr != nil {
		return redis.NewDurationResult(0, c.cmdErr)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	e, ok := c.store.lookupLocked(key)
	switch {
	case !ok:
		return redis.NewDurationResult(-2, nil)
	case e.expires.IsZero():
		return redis.NewDurationResult(-1, nil)
	}
	return redis.NewDurationResult(time.Until(e.expires).Truncate(time.Second), nil)
}

func (c *fakeConn) Ping(context.Context) *redis.StatusCmd {
	if c.pingStarted != nil {
		select {
		case c.pingStarted <- struct{}{}:
		default:
		}
	}
	if c.pingGate != nil {
		<-c.pingGate
	}
	if c.pingErr != nil {
		return redis.NewStatusResult("", c.pingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// deleteMatching stands in for the Lua script: ARGV[1] is the pattern.
func (c *fakeConn) deleteMatching(args []interface{}) *redis.Cmd {
	if c.cmdErr != nil {
		return redis.NewCmdResult(nil, c.cmdErr)
	}
	pattern, _ := args[0].(string)
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var n int64
	for key := range c.store.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.store.data, key)
			n++
		}
	}
	return redis.NewCmdResult(n, nil)
}

func (c *fakeConn) Eval(_ context.Context, _ string, _ []string, args ...interface{}) *redis.Cmd {
	return c.deleteMatching(args)
}

func (c *fakeConn) EvalSha(_ context.Context, _ string, _ []string, args ...interface{}) *redis.Cmd {
	return c.deleteMatching(args)
}

func (c *fakeConn) EvalRO(_ context.Context, _ string, _ []string, args ...interface{}) *redis.Cmd {
	return c.deleteMatching(args)
}

func (c *fakeConn) EvalShaRO(_ context.Context, _ string, _ []string, args ...interface{}) *redis.Cmd {
	return c.deleteMatching(args)
}

func (c *fakeConn) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (c *fakeConn) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}
