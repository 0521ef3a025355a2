package quota

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aiRequest(principal string) Request {
	return Request{Principal: principal, PrincipalID: principal, Path: "/ai/complete", Method: "POST"}
}

func TestDualWindow_MinuteExhaustedLeavesHourUntouched(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	e := newTestEngine(t, store, clock)
	ai := NewDualWindow(e, CategoryAIMinute, CategoryAIHour)
	ctx := context.Background()

	// free: 2 per minute, 3 per hour
	for i := 0; i < 2; i++ {
		d, err := ai.Check(ctx, aiRequest("u1"))
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	clock.Advance(15 * time.Second)
	d, err := ai.Check(ctx, aiRequest("u1"))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CategoryAIMinute, d.Category)
	assert.Equal(t, 45*time.Second, d.RetryAfter)
	assert.Equal(t, int64(2), d.Limit)

	hour, ok, err := store.Get(ctx, BucketKey(CategoryAIHour, "u1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), hour.Count, "rejected request must not count toward the hour window")

	minute, _, err := store.Get(ctx, BucketKey(CategoryAIMinute, "u1"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), minute.Count, "rejected request is not counted at all")

	require.NotNil(t, d.Minute)
	require.NotNil(t, d.Hour)
	assert.Equal(t, int64(0), d.Minute.Remaining)
	assert.Equal(t, int64(1), d.Hour.Remaining)

	v := e.Recorder().Recent(1)
	require.Len(t, v, 1)
	assert.Equal(t, int64(3), v[0].ObservedCount)
	assert.Equal(t, int64(1), v[0].ExceedBy)
}

func TestDualWindow_HourExhausted(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	e := newTestEngine(t, store, clock)
	ai := NewDualWindow(e, CategoryAIMinute, CategoryAIHour)
	ctx := context.Background()
	start := clock.Now()

	admitted := 0
	for i := 0; i < 3; i++ {
		d, err := ai.Check(ctx, aiRequest("u1"))
		require.NoError(t, err)
		if d.Allowed {
			admitted++
		}
		clock.Advance(time.Minute)
	}
	assert.Equal(t, 3, admitted)

	d, err := ai.Check(ctx, aiRequest("u1"))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, CategoryAIHour, d.Category)
	assert.Equal(t, start.Add(time.Hour), d.ResetAt)
	assert.Equal(t, 57*time.Minute, d.RetryAfter)

	minute, ok, err := store.Get(ctx, BucketKey(CategoryAIMinute, "u1"))
	require.NoError(t, err)
	assert.False(t, ok, "minute window was not incremented by the hour rejection")
	assert.Zero(t, minute.Count)
}

func TestDualWindow_AdmitSetsBothWindows(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, NewMemoryStore(clock), clock, WithTierLookup(StaticTier(TierPro)))
	ai := NewDualWindow(e, CategoryAIMinute, CategoryAIHour)

	d, err := ai.Check(context.Background(), aiRequest("u1"))
	require.NoError(t, err)
	require.True(t, d.Allowed)
	assert.Equal(t, TierPro, d.Tier)

	require.NotNil(t, d.Minute)
	require.NotNil(t, d.Hour)
	assert.Equal(t, int64(10), d.Minute.Limit)
	assert.Equal(t, int64(9), d.Minute.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), d.Minute.ResetAt)
	assert.Equal(t, int64(100), d.Hour.Limit)
	assert.Equal(t, int64(99), d.Hour.Remaining)
	assert.Equal(t, clock.Now().Add(time.Hour), d.Hour.ResetAt)

	// the tighter window is reported at the top level
	assert.Equal(t, int64(10), d.Limit)
	assert.Equal(t, int64(9), d.Remaining)
}

func TestDualWindow_Unlimited(t *testing.T) {
	clock := clockwork.NewFakeClock()
	spy := &spyStore{MemoryStore: NewMemoryStore(clock)}
	e := newTestEngine(t, spy, clock, WithTierLookup(StaticTier(TierUnlimited)))
	ai := NewDualWindow(e, CategoryAIMinute, CategoryAIHour)

	for i := 0; i < 100; i++ {
		d, err := ai.Check(context.Background(), aiRequest("u1"))
		require.NoError(t, err)
		require.True(t, d.Allowed)
		assert.Equal(t, Unlimited, d.Limit)
		assert.Equal(t, Unlimited, d.Minute.Limit)
	}
	assert.Zero(t, spy.increments.Load())
	assert.Zero(t, spy.gets.Load())
}

func TestDualWindow_FailOpen(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, failingStore{}, clock)
	ai := NewDualWindow(e, CategoryAIMinute, CategoryAIHour)

	d, err := ai.Check(context.Background(), aiRequest("u1"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.FailOpen)
}

func TestDualWindow_UnknownCategory(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, NewMemoryStore(clock), clock)
	ai := NewDualWindow(e, CategoryAIMinute, "ai_day")

	_, err := ai.Check(context.Background(), aiRequest("u1"))
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestDualWindow_Reset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	e := newTestEngine(t, store, clock)
	ai := NewDualWindow(e, CategoryAIMinute, CategoryAIHour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := ai.Check(ctx, aiRequest("u1"))
		require.NoError(t, err)
	}
	require.NoError(t, ai.Reset(ctx, "u1"))
	assert.Equal(t, 0, store.Len())

	d, err := ai.Check(ctx, aiRequest("u1"))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
