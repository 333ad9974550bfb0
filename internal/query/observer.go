package query

import (
	"context"
	"sync"
)

// Observer is one subscription to a key.
type Observer struct {
	client  *Client
	key     Key
	entry   *entry
	updates chan struct{}
	once    sync.Once
	closed  bool
}

// Key returns the observed key.
func (o *Observer) Key() Key {
	return o.key
}

// State returns the latest snapshot. Disabled or closed observers report an
// empty state.
func (o *Observer) State() State {
	if o.entry == nil {
		return State{}
	}
	o.client.mu.Lock()
	defer o.client.mu.Unlock()
	return o.entry.state
}

// Updates signals that the state changed. Signals coalesce; read State after
// receiving one.
func (o *Observer) Updates() <-chan struct{} {
	return o.updates
}

func (o *Observer) notify() {
	select {
	case o.updates <- struct{}{}:
	default:
	}
}

// Close detaches the observer. Closing the last observer of a key stops its
// poller.
func (o *Observer) Close() {
	if o.closed || o.entry == nil {
		return
	}
	o.once.Do(func() { o.client.detach(o) })
}

// TypedState is State with typed data.
type TypedState[T any] struct {
	Data       T
	Err        error
	HasData    bool
	IsFetching bool
}

// IsLoading reports a first fetch that has not completed yet.
func (s TypedState[T]) IsLoading() bool {
	return s.IsFetching && !s.HasData && s.Err == nil
}

// Typed is an Observer whose data has a known type.
type Typed[T any] struct {
	*Observer
}

// Watch is the typed form of Client.Watch.
func Watch[T any](c *Client, key Key, fetch func(ctx context.Context) (T, error), opts Options) *Typed[T] {
	o := c.Watch(key, func(ctx context.Context) (interface{}, error) {
		return fetch(ctx)
	}, opts)
	return &Typed[T]{Observer: o}
}

// State returns the latest typed snapshot.
func (t *Typed[T]) State() TypedState[T] {
	return Cast[T](t.Observer.State())
}

// Cast converts an untyped snapshot. Data of another type reads as zero.
func Cast[T any](s State) TypedState[T] {
	ts := TypedState[T]{Err: s.Err, IsFetching: s.IsFetching}
	if v, ok := s.Data.(T); ok && s.HasData {
		ts.Data = v
		ts.HasData = true
	}
	return ts
}
