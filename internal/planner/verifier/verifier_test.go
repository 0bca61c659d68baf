package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakeClock(start int64) (Clock, *int64) {
	t := start
	return func() int64 { return t }, &t
}

func noSleep(time.Duration) {}

func TestRejectsMethodOnlyKeyWithoutPolling(t *testing.T) {
	called := false
	fetch := func(ctx context.Context, key string) (StatusSnapshot, error) {
		called = true
		return StatusSnapshot{}, nil
	}
	v := New(fetch, nil, noSleep)
	result := v.Wait(context.Background(), "com.example.Foo#bar", Options{MaxRetries: 3, Timeout: time.Second, PollInterval: time.Millisecond})
	require.Equal(t, OutcomeLineKeyRequired, result.Outcome)
	require.False(t, called)
}

func TestAcceptsLineKeyShape(t *testing.T) {
	clock, _ := fakeClock(1000)
	fetch := func(ctx context.Context, key string) (StatusSnapshot, error) {
		return StatusSnapshot{Count: 1, LastHitEpochMs: 1000}, nil
	}
	v := New(fetch, clock, noSleep)
	result := v.Wait(context.Background(), "com.example.Foo#bar:42", Options{MaxRetries: 1, Timeout: time.Second, PollInterval: time.Millisecond})
	require.Equal(t, OutcomeSuccess, result.Outcome)
}

func TestBaselineAlreadyInlineReturnsImmediateSuccess(t *testing.T) {
	clock, tick := fakeClock(5000)
	v := New(func(ctx context.Context, key string) (StatusSnapshot, error) {
		return StatusSnapshot{Count: 3, LastHitEpochMs: 5000}, nil
	}, clock, noSleep)
	v.RecordReset("k#m:1")
	*tick = 5001
	result := v.Wait(context.Background(), "k#m:1", Options{MaxRetries: 1, Timeout: time.Second, PollInterval: time.Millisecond})
	require.Equal(t, OutcomeSuccess, result.Outcome)
	require.Equal(t, 1, result.Attempts)
}

func TestStaleHitBeforeResetIsNotSuccess(t *testing.T) {
	key := "k#m:1"
	clock, tick := fakeClock(1000)
	v := New(nil, clock, noSleep)
	v.RecordReset(key) // lastResetEpoch = 1000

	pollCount := 0
	v.fetch = func(ctx context.Context, k string) (StatusSnapshot, error) {
		pollCount++
		if pollCount == 1 {
			// baseline: stale hit predates the reset
			return StatusSnapshot{Count: 5, LastHitEpochMs: 500}, nil
		}
		*tick += 10
		return StatusSnapshot{Count: 5, LastHitEpochMs: 500}, nil
	}
	result := v.Wait(context.Background(), key, Options{MaxRetries: 1, Timeout: 30 * time.Millisecond, PollInterval: time.Millisecond})
	require.Equal(t, OutcomeTimeout, result.Outcome)
}

func TestInlineHitDuringPollSucceeds(t *testing.T) {
	key := "k#m:1"
	clock, tick := fakeClock(1000)
	v := New(nil, clock, noSleep)
	v.RecordReset(key)

	poll := 0
	v.fetch = func(ctx context.Context, k string) (StatusSnapshot, error) {
		poll++
		*tick += 5
		if poll == 1 {
			return StatusSnapshot{Count: 2, LastHitEpochMs: 900}, nil // baseline, stale
		}
		return StatusSnapshot{Count: 3, LastHitEpochMs: *tick}, nil // fresh inline hit
	}
	result := v.Wait(context.Background(), key, Options{MaxRetries: 2, Timeout: 50 * time.Millisecond, PollInterval: time.Millisecond})
	require.Equal(t, OutcomeSuccess, result.Outcome)
}

func TestTimeoutIncludesStaleCandidateWhenOneWasObserved(t *testing.T) {
	key := "k#m:1"
	clock, tick := fakeClock(1000)
	v := New(nil, clock, noSleep)
	v.RecordReset(key)

	poll := 0
	v.fetch = func(ctx context.Context, k string) (StatusSnapshot, error) {
		poll++
		*tick += 5
		if poll == 1 {
			return StatusSnapshot{Count: 1, LastHitEpochMs: 999}, nil
		}
		// delta > 0 but still older than inlineStart(1000) -> stale, never inline
		return StatusSnapshot{Count: 2, LastHitEpochMs: 999}, nil
	}
	result := v.Wait(context.Background(), key, Options{MaxRetries: 1, Timeout: 20 * time.Millisecond, PollInterval: time.Millisecond})
	require.Equal(t, OutcomeTimeout, result.Outcome)
	require.NotNil(t, result.StaleCandidate)
	require.Equal(t, uint64(2), result.StaleCandidate.Count)
}

func TestFirstEverWaitWithNoPriorResetAcceptsFreshHit(t *testing.T) {
	key := "k#m:1"
	clock, tick := fakeClock(2000)
	v := New(nil, clock, noSleep)

	poll := 0
	v.fetch = func(ctx context.Context, k string) (StatusSnapshot, error) {
		poll++
		if poll == 1 {
			return StatusSnapshot{Count: 0, LastHitEpochMs: 0}, nil
		}
		*tick += 5
		return StatusSnapshot{Count: 1, LastHitEpochMs: *tick}, nil
	}
	result := v.Wait(context.Background(), key, Options{MaxRetries: 1, Timeout: 30 * time.Millisecond, PollInterval: time.Millisecond})
	require.Equal(t, OutcomeSuccess, result.Outcome)
}

func TestEachWaitAttemptGetsAUniqueCorrelationID(t *testing.T) {
	v := New(func(ctx context.Context, key string) (StatusSnapshot, error) {
		return StatusSnapshot{}, nil
	}, nil, noSleep)
	r1 := v.Wait(context.Background(), "k#m:1", Options{MaxRetries: 1, Timeout: time.Millisecond, PollInterval: time.Millisecond})
	r2 := v.Wait(context.Background(), "k#m:1", Options{MaxRetries: 1, Timeout: time.Millisecond, PollInterval: time.Millisecond})
	require.NotEmpty(t, r1.WaitAttemptID)
	require.NotEqual(t, r1.WaitAttemptID, r2.WaitAttemptID)
}
