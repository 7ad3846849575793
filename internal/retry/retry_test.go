package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func testPolicy(rs *recordingSleep) Policy {
	return Policy{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, Sleep: rs.sleep}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	rs := &recordingSleep{}
	calls := 0
	v, err := Do(context.Background(), testPolicy(rs), "op", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rs.delays)
}

func TestDo_RecoversAfterTransientFailures(t *testing.T) {
	rs := &recordingSleep{}
	calls := 0
	v, err := Do(context.Background(), testPolicy(rs), "op", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("unavailable")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rs.delays)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	rs := &recordingSleep{}
	sentinel := errors.New("rate limited")
	calls := 0
	_, err := Do(context.Background(), testPolicy(rs), "classify", func(ctx context.Context) (int, error) {
		calls++
		return 0, sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "classify")
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
	}, rs.delays)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	rs := &recordingSleep{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, testPolicy(rs), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentErrorIsNotRetried(t *testing.T) {
	rs := &recordingSleep{}
	sentinel := errors.New("not found")
	calls := 0
	_, err := Do(context.Background(), testPolicy(rs), "download", func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(sentinel)
	})
	assert.Same(t, sentinel, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rs.delays)
}

func TestDo_PermanentAfterTransient(t *testing.T) {
	rs := &recordingSleep{}
	sentinel := errors.New("precondition failed")
	calls := 0
	err := Run(context.Background(), testPolicy(rs), "upload", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("503")
		}
		return Permanent(sentinel)
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
	assert.Len(t, rs.delays, 1)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestRun(t *testing.T) {
	rs := &recordingSleep{}
	calls := 0
	err := Run(context.Background(), testPolicy(rs), "upload", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestContextSleep(t *testing.T) {
	require.NoError(t, ContextSleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ContextSleep(ctx, time.Hour), context.Canceled)
}
