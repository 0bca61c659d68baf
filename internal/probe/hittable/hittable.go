// Package hittable implements the concurrent hit counter map shared between
// instrumented application code and the control-plane HTTP server.
package hittable

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is a single probe key's hit record. Count only increases until a
// Reset; LastHitEpochMs is non-decreasing modulo wall-clock skew.
type Entry struct {
	count          uint64
	lastHitEpochMs int64
}

// Snapshot is a point-in-time read of an Entry.
type Snapshot struct {
	Count          uint64
	LastHitEpochMs int64
}

// Table is a concurrent mapping from probe key to hit record. All writers
// use atomic operations on per-key entries so the advice code called from
// instrumented application threads never blocks on a lock.
type Table struct {
	entries sync.Map // string -> *Entry
	nowMs   func() int64
}

// New returns an empty Table using the given clock, or time.Now-based wall
// clock in milliseconds when clock is nil.
func New(nowMs func() int64) *Table {
	if nowMs == nil {
		nowMs = defaultNowMs
	}
	return &Table{nowMs: nowMs}
}

func (t *Table) getOrCreate(key string) *Entry {
	if v, ok := t.entries.Load(key); ok {
		return v.(*Entry)
	}
	e, _ := t.entries.LoadOrStore(key, &Entry{})
	return e.(*Entry)
}

// Hit increments the method-level key "class#method".
func (t *Table) Hit(class, method string) {
	t.hitKey(MethodKey(class, method))
}

// HitLine increments the line-level key "class#method:line" when line > 0;
// otherwise it is a no-op per spec.
func (t *Table) HitLine(class, method string, line int) {
	if line <= 0 {
		return
	}
	t.hitKey(LineKey(class, method, line))
}

func (t *Table) hitKey(key string) {
	e := t.getOrCreate(key)
	atomic.AddUint64(&e.count, 1)
	atomic.StoreInt64(&e.lastHitEpochMs, t.nowMs())
}

// Get returns the current snapshot for key, or the zero Snapshot when
// absent.
func (t *Table) Get(key string) Snapshot {
	v, ok := t.entries.Load(key)
	if !ok {
		return Snapshot{}
	}
	e := v.(*Entry)
	return Snapshot{
		Count:          atomic.LoadUint64(&e.count),
		LastHitEpochMs: atomic.LoadInt64(&e.lastHitEpochMs),
	}
}

// Count returns 0 when key is absent.
func (t *Table) Count(key string) uint64 { return t.Get(key).Count }

// LastHitEpochMs returns 0 when key is absent.
func (t *Table) LastHitEpochMs(key string) int64 { return t.Get(key).LastHitEpochMs }

// Reset zeroes count and last-hit for key, creating the entry if absent so
// subsequent reads are authoritative.
func (t *Table) Reset(key string) {
	e := t.getOrCreate(key)
	atomic.StoreUint64(&e.count, 0)
	atomic.StoreInt64(&e.lastHitEpochMs, 0)
}

// MethodKey builds the method-level probe key "class#method".
func MethodKey(class, method string) string {
	return class + "#" + method
}

// LineKey builds the line-level probe key "class#method:line".
func LineKey(class, method string, line int) string {
	return MethodKey(class, method) + ":" + strconv.Itoa(line)
}

func defaultNowMs() int64 {
	return time.Now().UnixMilli()
}
