package hittable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() int64 {
	return func() int64 { return ms }
}

func TestHitIncrementsCountAndTimestamp(t *testing.T) {
	tbl := New(fixedClock(1000))

	tbl.Hit("com.acme.Foo", "bar")
	require.EqualValues(t, 1, tbl.Count("com.acme.Foo#bar"))
	require.EqualValues(t, 1000, tbl.LastHitEpochMs("com.acme.Foo#bar"))

	tbl.Hit("com.acme.Foo", "bar")
	require.EqualValues(t, 2, tbl.Count("com.acme.Foo#bar"))
}

func TestHitLineIgnoresNonPositiveLines(t *testing.T) {
	tbl := New(fixedClock(1))

	tbl.HitLine("com.acme.Foo", "bar", 0)
	tbl.HitLine("com.acme.Foo", "bar", -5)
	require.Zero(t, tbl.Count("com.acme.Foo#bar:0"))
	require.Zero(t, tbl.Count("com.acme.Foo#bar:-5"))

	tbl.HitLine("com.acme.Foo", "bar", 10)
	require.EqualValues(t, 1, tbl.Count("com.acme.Foo#bar:10"))
}

func TestMethodAndLineKeysAreDistinctNamespaces(t *testing.T) {
	tbl := New(fixedClock(5))
	tbl.Hit("C", "m")
	tbl.HitLine("C", "m", 10)

	require.EqualValues(t, 1, tbl.Count("C#m"))
	require.EqualValues(t, 1, tbl.Count("C#m:10"))
}

func TestGetOnAbsentKeyReturnsZero(t *testing.T) {
	tbl := New(fixedClock(1))
	snap := tbl.Get("nope#nope")
	require.Zero(t, snap.Count)
	require.Zero(t, snap.LastHitEpochMs)
}

func TestResetIsIdempotentAndCreatesEntry(t *testing.T) {
	tbl := New(fixedClock(42))
	tbl.Reset("fresh#key")
	require.EqualValues(t, 0, tbl.Count("fresh#key"))
	require.EqualValues(t, 0, tbl.LastHitEpochMs("fresh#key"))

	tbl.Hit("fresh", "key")
	tbl.Reset("fresh#key")
	tbl.Reset("fresh#key")
	require.EqualValues(t, 0, tbl.Count("fresh#key"))
	require.EqualValues(t, 0, tbl.LastHitEpochMs("fresh#key"))
}

func TestConcurrentHitsAreCountedExactly(t *testing.T) {
	tbl := New(fixedClock(1))
	const n = 500
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tbl.Hit("Concurrent", "method")
		}()
	}
	wg.Wait()
	require.EqualValues(t, n, tbl.Count("Concurrent#method"))
}

func TestKeyBuilders(t *testing.T) {
	require.Equal(t, "a.b.C#m", MethodKey("a.b.C", "m"))
	require.Equal(t, "a.b.C#m:41", LineKey("a.b.C", "m", 41))
}
