// Package proberuntime holds the process-wide, lock-free-readable runtime
// configuration consulted by instrumented application code. It is the
// single point of truth for whether the process is observing or actuating,
// and for which key is currently targeted.
package proberuntime

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rcourtman/reprod-probe/internal/probe/hittable"
)

// Mode is the probe-side runtime mode. It is deliberately a distinct type
// from the planner-side execution-plan mode (natural/actuated): the two
// state machines coincide semantically today but are not required to.
type Mode string

const (
	ModeObserve Mode = "observe"
	ModeActuate Mode = "actuate"
)

// Config is the tuple advice code consults on every hit and every
// conditional jump. It is replaced as a whole so readers never observe a
// partially-applied update.
type Config struct {
	Mode                 Mode
	ActuatorID           string
	ActuateTargetKey     string
	ActuateReturnBoolean bool
}

// normalize enforces the defensive-clear invariant: leaving actuate mode
// clears the actuator id, target key, and forced boolean.
func (c Config) normalize() Config {
	if c.Mode != ModeActuate {
		c.ActuatorID = ""
		c.ActuateTargetKey = ""
		c.ActuateReturnBoolean = false
	}
	return c
}

// Runtime is the single process-wide instance. Reads are lock-free atomic
// pointer loads; Configure does a total atomic pointer swap.
type Runtime struct {
	hits   *hittable.Table
	config atomic.Pointer[Config]
}

// New creates a Runtime in observe mode, backed by table.
func New(table *hittable.Table) *Runtime {
	r := &Runtime{hits: table}
	r.config.Store(&Config{Mode: ModeObserve})
	return r
}

// Hits exposes the backing hit table for the control plane.
func (r *Runtime) Hits() *hittable.Table { return r.hits }

// Snapshot returns the currently published configuration.
func (r *Runtime) Snapshot() Config {
	return *r.config.Load()
}

// Configure atomically replaces all four configuration fields. A mode other
// than actuate clears the dependent fields regardless of what the caller
// passed, per the defensive-normalization invariant. An empty actuatorId in
// actuate mode is filled in with a generated id so every actuation is
// attributable in logs.
func (r *Runtime) Configure(mode Mode, actuatorID, targetKey string, forcedBool bool) Config {
	cfg := Config{
		Mode:                 mode,
		ActuatorID:           actuatorID,
		ActuateTargetKey:     targetKey,
		ActuateReturnBoolean: forcedBool,
	}.normalize()
	if cfg.Mode == ModeActuate && cfg.ActuatorID == "" {
		cfg.ActuatorID = uuid.NewString()
	}
	r.config.Store(&cfg)
	return cfg
}

// HitByClassMethod increments the method-level key. Called from
// instrumented method-entry advice.
func (r *Runtime) HitByClassMethod(class, method string) {
	r.hits.Hit(class, method)
}

// HitLineByClassMethod increments the line-level key when line > 0.
// Called from the instrumented line visitor, before the original line's
// instructions execute.
func (r *Runtime) HitLineByClassMethod(class, method string, line int) {
	r.hits.HitLine(class, method, line)
}

// GetCount returns 0 when key is absent.
func (r *Runtime) GetCount(key string) uint64 { return r.hits.Count(key) }

// GetLastHitEpochMs returns 0 when key is absent.
func (r *Runtime) GetLastHitEpochMs(key string) int64 { return r.hits.LastHitEpochMs(key) }

// Reset zeroes the hit record for key.
func (r *Runtime) Reset(key string) { r.hits.Reset(key) }

// ShouldActuateBooleanReturn is queried from boolean-return exit advice. It
// is true iff the runtime is actuating and the target key is exactly
// class#method.
func (r *Runtime) ShouldActuateBooleanReturn(class, method string) bool {
	cfg := r.Snapshot()
	if cfg.Mode != ModeActuate {
		return false
	}
	return cfg.ActuateTargetKey == hittable.MethodKey(class, method)
}

// OverrideBooleanReturn is consulted by boolean-return exit advice: it
// returns the forced value when actuation targets class#method, otherwise
// it passes original through unchanged.
func (r *Runtime) OverrideBooleanReturn(class, method string, original bool) bool {
	if !r.ShouldActuateBooleanReturn(class, method) {
		return original
	}
	return r.Snapshot().ActuateReturnBoolean
}

// BranchDecision returns -1 (use the original conditional), 1 (force the
// jump taken), or 0 (force fallthrough). It returns -1 unless the runtime
// is actuating, a target key is set, and that key is exactly
// class#method:line.
func (r *Runtime) BranchDecision(class, method string, line int) int {
	cfg := r.Snapshot()
	if cfg.Mode != ModeActuate || cfg.ActuateTargetKey == "" {
		return -1
	}
	if cfg.ActuateTargetKey != hittable.LineKey(class, method, line) {
		return -1
	}
	if cfg.ActuateReturnBoolean {
		return 1
	}
	return 0
}
