package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradezone-dashboard/internal/autherr"
	"tradezone-dashboard/internal/restclient"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) TradingUserID(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func newResolver(source Source) (*Resolver, *autherr.Handler, *time.Time) {
	errs := autherr.NewHandler(5*time.Second, zap.NewNop())
	r := NewResolver(source, errs, 5*time.Minute, zap.NewNop())
	clock := time.Date(2024, 10, 16, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return r, errs, &clock
}

func TestResolve_CachesWithinTTL(t *testing.T) {
	source := new(MockSource)
	source.On("TradingUserID", mock.Anything).Return(int64(42), nil).Once()
	r, _, clock := newResolver(source)

	id, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	*clock = clock.Add(4 * time.Minute)
	id, err = r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	source.AssertNumberOfCalls(t, "TradingUserID", 1)
}

func TestResolve_RefetchesAfterExpiry(t *testing.T) {
	source := new(MockSource)
	source.On("TradingUserID", mock.Anything).Return(int64(42), nil).Once()
	source.On("TradingUserID", mock.Anything).Return(int64(43), nil).Once()
	r, _, clock := newResolver(source)

	_, err := r.Resolve(context.Background())
	require.NoError(t, err)

	*clock = clock.Add(5 * time.Minute)
	id, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(43), id)
	source.AssertExpectations(t)
}

func TestResolve_ClearForcesFetch(t *testing.T) {
	source := new(MockSource)
	source.On("TradingUserID", mock.Anything).Return(int64(42), nil).Twice()
	r, _, _ := newResolver(source)

	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	r.Clear()
	_, err = r.Resolve(context.Background())
	require.NoError(t, err)

	source.AssertNumberOfCalls(t, "TradingUserID", 2)
}

func TestResolve_FailureIsCategorized(t *testing.T) {
	tests := []struct {
		name     string
		id       int64
		err      error
		category autherr.Category
	}{
		{"NotFound", 0, &restclient.StatusError{StatusCode: 404}, autherr.MappingFailed},
		{"Unauthorized", 0, &restclient.StatusError{StatusCode: 401}, autherr.UserNotFound},
		{"Network", 0, &restclient.NetworkError{Err: errors.New("refused")}, autherr.AuthAPIDown},
		{"ZeroID", 0, nil, autherr.MappingFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := new(MockSource)
			source.On("TradingUserID", mock.Anything).Return(tt.id, tt.err)
			r, errs, _ := newResolver(source)

			var notified *autherr.Error
			errs.OnError(func(e *autherr.Error) { notified = e })

			id, err := r.Resolve(context.Background())

			assert.Zero(t, id)
			ae, ok := autherr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.category, ae.Category)
			require.NotNil(t, notified)
			assert.Equal(t, tt.category, notified.Category)
		})
	}
}

type slowSource struct {
	calls int32
	gate  chan struct{}
}

func (s *slowSource) TradingUserID(ctx context.Context) (int64, error) {
	atomic.AddInt32(&s.calls, 1)
	<-s.gate
	return 9, nil
}

func TestResolve_ConcurrentCallersShareFetch(t *testing.T) {
	source := &slowSource{gate: make(chan struct{})}
	r := NewResolver(source, autherr.NewHandler(time.Second, zap.NewNop()), time.Minute, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Resolve(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, int64(9), id)
		}()
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&source.calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&source.calls))
}

func TestResolve_ClearDuringFetchDiscardsResult(t *testing.T) {
	source := &slowSource{gate: make(chan struct{})}
	r := NewResolver(source, autherr.NewHandler(time.Second, zap.NewNop()), time.Minute, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		id, err := r.Resolve(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, int64(9), id)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&source.calls) == 1 }, time.Second, 5*time.Millisecond)
	r.Clear()
	close(source.gate)
	<-done

	r.mu.Lock()
	cached := r.cachedID
	r.mu.Unlock()
	assert.Zero(t, cached)

	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&source.calls))
}
