// Package query is an in-memory polling cache. Each live key has one poller
// that fetches immediately and then on a fixed interval for as long as at
// least one observer is attached.
package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tradezone-dashboard/internal/metrics"
)

// FetchFunc loads the data for one key.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Options configure a watched query.
type Options struct {
	// Interval between refetches. Zero fetches once and then only on
	// invalidation.
	Interval time.Duration
	// Disabled observers never fetch and always report an empty state.
	Disabled bool
}

// State is a snapshot of one query.
type State struct {
	Data       interface{}
	Err        error
	HasData    bool
	IsFetching bool
	UpdatedAt  time.Time
}

// IsLoading reports a first fetch that has not completed yet.
func (s State) IsLoading() bool {
	return s.IsFetching && !s.HasData && s.Err == nil
}

type entry struct {
	key       Key
	fetch     FetchFunc
	interval  time.Duration
	state     State
	observers map[*Observer]struct{}
	refetch   chan struct{}
	cancel    context.CancelFunc
}

// Client owns every live query.
type Client struct {
	ctx       context.Context
	logger    *zap.Logger
	group     singleflight.Group
	mu        sync.Mutex
	entries   map[string]*entry
	listeners map[int]func(Key, State)
	nextID    int
}

// NewClient creates a cache whose fetches run under ctx. Cancelling ctx stops
// every poller.
func NewClient(ctx context.Context, logger *zap.Logger) *Client {
	return &Client{
		ctx:       ctx,
		logger:    logger,
		entries:   make(map[string]*entry),
		listeners: make(map[int]func(Key, State)),
	}
}

// Watch attaches an observer to key. The first observer of a key starts its
// poller; later observers share it, along with the fetch function and
// interval of the first.
func (c *Client) Watch(key Key, fetch FetchFunc, opts Options) *Observer {
	o := &Observer{client: c, key: key, updates: make(chan struct{}, 1)}
	if opts.Disabled {
		o.closed = true
		return o
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := key.id()
	e, ok := c.entries[id]
	if !ok {
		ctx, cancel := context.WithCancel(c.ctx)
		e = &entry{
			key:       key,
			fetch:     fetch,
			interval:  opts.Interval,
			observers: make(map[*Observer]struct{}),
			refetch:   make(chan struct{}, 1),
			cancel:    cancel,
		}
		c.entries[id] = e
		metrics.ActiveQueries.Inc()
		c.logger.Debug("Query started", zap.String("key", id), zap.Duration("interval", opts.Interval))
		go c.poll(ctx, e)
	}
	e.observers[o] = struct{}{}
	o.entry = e
	return o
}

func (c *Client) poll(ctx context.Context, e *entry) {
	c.run(e)

	var tick <-chan time.Time
	if e.interval > 0 {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			c.run(e)
		case <-e.refetch:
			c.run(e)
		}
	}
}

// run fetches e once. Concurrent runs for the same key share one call.
func (c *Client) run(e *entry) State {
	id := e.key.id()

	c.update(e, func(s *State) { s.IsFetching = true })

	v, err, shared := c.group.Do(id, func() (interface{}, error) {
		return e.fetch(c.ctx)
	})

	result := "ok"
	if err != nil {
		result = "error"
	}
	if !shared {
		metrics.QueryFetchesTotal.WithLabelValues(e.key.Head(), result).Inc()
	}

	return c.update(e, func(s *State) {
		s.IsFetching = false
		if err != nil {
			c.logger.Warn("Query fetch failed", zap.String("key", id), zap.Error(err))
			s.Err = err
			return
		}
		s.Data = v
		s.HasData = true
		s.Err = nil
		s.UpdatedAt = time.Now()
	})
}

func (c *Client) update(e *entry, fn func(*State)) State {
	c.mu.Lock()
	fn(&e.state)
	state := e.state
	observers := make([]*Observer, 0, len(e.observers))
	for o := range e.observers {
		observers = append(observers, o)
	}
	listeners := make([]func(Key, State), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, o := range observers {
		o.notify()
	}
	for _, l := range listeners {
		l(e.key, state)
	}
	return state
}

// Invalidate schedules an immediate refetch of every live key that starts
// with prefix.
func (c *Client) Invalidate(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		c.logger.Debug("Query invalidated", zap.String("key", e.key.String()))
		select {
		case e.refetch <- struct{}{}:
		default:
		}
	}
}

// InvalidateAll schedules a refetch of every live key.
func (c *Client) InvalidateAll() {
	c.Invalidate(nil)
}

// Refetch fetches key now and returns the resulting state. It reports false
// when the key has no observers.
func (c *Client) Refetch(key Key) (State, bool) {
	c.mu.Lock()
	e, ok := c.entries[key.id()]
	c.mu.Unlock()
	if !ok {
		return State{}, false
	}
	return c.run(e), true
}

// Peek returns the cached state of key without fetching.
func (c *Client) Peek(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// Keys lists the live keys.
func (c *Client) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.key)
	}
	return keys
}

// OnUpdate registers fn to be called after every state change of any key.
// It returns a function that removes fn.
func (c *Client) OnUpdate(fn func(Key, State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) detach(o *Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := o.entry
	delete(e.observers, o)
	if len(e.observers) > 0 {
		return
	}

	id := e.key.id()
	if c.entries[id] == e {
		delete(c.entries, id)
		metrics.ActiveQueries.Dec()
	}
	// In-flight fetches run under the client context and finish on their own.
	e.cancel()
	c.logger.Debug("Query stopped", zap.String("key", id))
}
