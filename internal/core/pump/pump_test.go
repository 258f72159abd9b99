package pump

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-punchnet/tests/testutil"
)

type recorder struct {
	mu    sync.Mutex
	calls []time.Time
	order *[]string
	name  string
}

func (r *recorder) Poll(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, now)
	if r.order != nil {
		*r.order = append(*r.order, r.name)
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestStep_PostedBeforePollers(t *testing.T) {
	p := New(clock.NewMock(), time.Second)

	var order []string
	p.Add(&recorder{name: "a", order: &order})
	p.Add(&recorder{name: "b", order: &order})
	require.NoError(t, p.Post(func(time.Time) { order = append(order, "posted") }))

	now := time.Unix(100, 0)
	p.Step(now)
	assert.Equal(t, []string{"posted", "a", "b"}, order)

	p.Step(now)
	assert.Equal(t, []string{"posted", "a", "b", "a", "b"}, order, "操作只执行一次")
}

func TestRun_TicksWithClock(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock, 100*time.Millisecond)
	rec := &recorder{}
	p.Add(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	testutil.Eventually(t, 2*time.Second, func() bool {
		mock.Add(100 * time.Millisecond)
		return rec.count() >= 3
	}, "应随时钟轮询")

	rec.mu.Lock()
	first := rec.calls[0]
	rec.mu.Unlock()
	assert.False(t, first.IsZero())

	cancel()
	require.NoError(t, <-done)
}

func TestRun_PostWakesImmediately(t *testing.T) {
	p := New(clock.NewMock(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	var ran atomic.Bool
	require.NoError(t, p.Post(func(time.Time) { ran.Store(true) }))
	testutil.Eventually(t, 2*time.Second, ran.Load, "Post 应立即执行")
}

func TestDo(t *testing.T) {
	p := New(clock.NewMock(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	boom := errors.New("boom")
	assert.ErrorIs(t, p.Do(ctx, func(time.Time) error { return boom }), boom)
	assert.NoError(t, p.Do(ctx, func(time.Time) error { return nil }))
}

func TestDo_ContextCancelled(t *testing.T) {
	p := New(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran bool
	err := p.Do(ctx, func(time.Time) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, p.Clock())

	p.Step(time.Unix(1, 0))
	assert.False(t, ran, "已取消的操作不再执行")
}

func TestDo_InLoopRunsInline(t *testing.T) {
	p := New(clock.NewMock(), time.Hour)

	var inner error
	var innerRan bool
	p.Add(PollerFunc(func(time.Time) {
		assert.True(t, p.InLoop())
		inner = p.Do(context.Background(), func(time.Time) error {
			innerRan = true
			return nil
		})
	}))

	assert.False(t, p.InLoop())
	p.Step(time.Unix(1, 0))
	assert.NoError(t, inner)
	assert.True(t, innerRan, "驱动协程上的 Do 直接执行")
	assert.False(t, p.InLoop())
}

func TestDo_InLoopFromPosted(t *testing.T) {
	p := New(clock.NewMock(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	var calls []string
	err := p.Do(ctx, func(time.Time) error {
		calls = append(calls, "outer")
		return p.Do(context.Background(), func(time.Time) error {
			calls = append(calls, "inner")
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestDo_AfterRunReturns(t *testing.T) {
	p := New(clock.NewMock(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	require.NoError(t, p.Do(context.Background(), func(time.Time) error { return nil }))

	cancel()
	require.NoError(t, <-done)

	err := p.Do(context.Background(), func(time.Time) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, p.Post(func(time.Time) {}), ErrStopped)
	assert.ErrorIs(t, p.Run(context.Background()), ErrStopped, "关闭后不能再次运行")
}

func TestClose_AbortsQueued(t *testing.T) {
	p := New(clock.NewMock(), time.Hour)

	var ran atomic.Bool
	result := make(chan error, 1)
	go func() {
		result <- p.Do(context.Background(), func(time.Time) error {
			ran.Store(true)
			return nil
		})
	}()

	testutil.Eventually(t, 2*time.Second, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.posted) == 1
	}, "操作应已排队")

	p.close()
	assert.ErrorIs(t, <-result, ErrStopped)
	assert.False(t, ran.Load())
}

func TestGoroutineID(t *testing.T) {
	id := goroutineID()
	assert.Positive(t, id)
	assert.Equal(t, id, goroutineID())

	other := make(chan int64, 1)
	go func() { other <- goroutineID() }()
	assert.NotEqual(t, id, <-other)
}

func TestPollerFunc(t *testing.T) {
	var got time.Time
	PollerFunc(func(now time.Time) { got = now }).Poll(time.Unix(5, 0))
	assert.Equal(t, time.Unix(5, 0), got)
}
