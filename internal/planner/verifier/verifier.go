// Package verifier polls the control plane's status endpoint until a hit
// is observed that is provably caused by the current reproduction attempt,
// rather than by unrelated prior traffic against the same probe key.
package verifier

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// StatusSnapshot is the subset of a control-plane status response the
// verifier needs.
type StatusSnapshot struct {
	Count          uint64
	LastHitEpochMs int64
}

// Fetcher retrieves the current status snapshot for key. Implemented by the
// planner's control-plane HTTP client; kept as a function type so tests can
// supply a fake without standing up a server.
type Fetcher func(ctx context.Context, key string) (StatusSnapshot, error)

// Clock returns the current epoch in milliseconds. Exists so tests can
// drive a deterministic fake clock instead of wall time.
type Clock func() int64

// Outcome classifies how a Wait call concluded.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeLineKeyRequired Outcome = "line_key_required"
)

// Result is the full outcome of one Wait call.
type Result struct {
	Outcome        Outcome
	Key            string
	Attempts       int
	WaitAttemptID  string
	Snapshot       StatusSnapshot
	StaleCandidate *StatusSnapshot
}

// Options bounds the polling algorithm described in §4.10.
type Options struct {
	MaxRetries   int
	PollInterval time.Duration
	Timeout      time.Duration
}

// lineKeyPattern matches "…#…:<digits>" — a line-level probe key. Strict
// line mode rejects any key that doesn't match this shape.
var lineKeyPattern = regexp.MustCompile(`^.+#[^:]+:\d+$`)

// ErrLineKeyRequired is returned by RequireLineKey for a method-only key.
var ErrLineKeyRequired = errors.New("line_key_required")

// RequireLineKey enforces strict line mode. Wait and the tool surface's
// probe_status and probe_reset operations refuse method-only keys with it;
// the execution-plan builder uses it to annotate its reset-baseline step.
func RequireLineKey(key string) error {
	if !lineKeyPattern.MatchString(key) {
		return ErrLineKeyRequired
	}
	return nil
}

// Verifier tracks the last successful reset time per probe key so that a
// hit observed during Wait can be attributed to the current reproduction
// window rather than to traffic that predates it.
type Verifier struct {
	mu             sync.Mutex
	lastResetEpoch map[string]int64
	clock          Clock
	fetch          Fetcher
	sleep          func(time.Duration)
}

// New builds a Verifier. clock defaults to time.Now; sleep defaults to
// time.Sleep — both overridable for deterministic tests.
func New(fetch Fetcher, clock Clock, sleep func(time.Duration)) *Verifier {
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Verifier{
		lastResetEpoch: make(map[string]int64),
		clock:          clock,
		fetch:          fetch,
		sleep:          sleep,
	}
}

// RecordReset marks key as freshly reset at the current clock time. Call
// this whenever a reset-baseline step succeeds.
func (v *Verifier) RecordReset(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastResetEpoch[key] = v.clock()
}

func (v *Verifier) inlineStart(key string, waitStart int64) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if epoch, ok := v.lastResetEpoch[key]; ok {
		return epoch
	}
	return waitStart
}

// Wait implements the §4.10 algorithm: up to opts.MaxRetries attempts,
// each capturing a baseline then polling until either an inline hit is
// observed or the attempt's own timeout elapses.
func (v *Verifier) Wait(ctx context.Context, key string, opts Options) Result {
	id := ulid.Make().String()
	if err := RequireLineKey(key); err != nil {
		return Result{Outcome: OutcomeLineKeyRequired, Key: key, WaitAttemptID: id}
	}

	var staleCandidate *StatusSnapshot

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		waitStart := v.clock()
		inlineStart := v.inlineStart(key, waitStart)

		baseline, err := v.fetch(ctx, key)
		if err != nil {
			continue
		}
		if baseline.Count > 0 && baseline.LastHitEpochMs >= inlineStart {
			return Result{
				Outcome:       OutcomeSuccess,
				Key:           key,
				Attempts:      attempt,
				WaitAttemptID: id,
				Snapshot:      baseline,
			}
		}

		deadline := waitStart + opts.Timeout.Milliseconds()
		for v.clock() < deadline {
			select {
			case <-ctx.Done():
				return Result{Outcome: OutcomeTimeout, Key: key, Attempts: attempt, WaitAttemptID: id, StaleCandidate: staleCandidate}
			default:
			}

			v.sleep(opts.PollInterval)

			current, err := v.fetch(ctx, key)
			if err != nil {
				continue
			}
			delta := int64(current.Count) - int64(baseline.Count)
			if delta > 0 && current.LastHitEpochMs >= inlineStart {
				return Result{
					Outcome:       OutcomeSuccess,
					Key:           key,
					Attempts:      attempt,
					WaitAttemptID: id,
					Snapshot:      current,
				}
			}
			if delta > 0 {
				snap := current
				staleCandidate = &snap
			}
		}
	}

	return Result{
		Outcome:        OutcomeTimeout,
		Key:            key,
		Attempts:       opts.MaxRetries,
		WaitAttemptID:  id,
		StaleCandidate: staleCandidate,
	}
}
