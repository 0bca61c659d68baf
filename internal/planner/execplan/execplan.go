// Package execplan composes the deterministic two-mode execution plan
// described in §4.9: given an inferred target, an optional request
// candidate, and an auth resolution, it produces either an ordered list
// of natural-mode steps or an ordered list of actuated-mode steps — never
// both — plus the reasoning text explaining why that mode was chosen.
package execplan

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rcourtman/reprod-probe/internal/planner/authresolve"
	"github.com/rcourtman/reprod-probe/internal/planner/redact"
	"github.com/rcourtman/reprod-probe/internal/planner/requestinfer"
	"github.com/rcourtman/reprod-probe/internal/planner/verifier"
)

// Mode is the plan-level reproduction strategy. It is a distinct type
// from proberuntime.Mode: the two state machines coincide semantically
// today but are kept separate per the design notes' open question.
type Mode string

const (
	ModeNatural  Mode = "natural"
	ModeActuated Mode = "actuated"
)

// Phase is the lifecycle stage a single step belongs to.
type Phase string

const (
	PhasePrepare Phase = "prepare"
	PhaseExecute Phase = "execute"
	PhaseVerify  Phase = "verify"
	PhaseCleanup Phase = "cleanup"
)

// Step is one ordered instruction in a plan's step list.
type Step struct {
	Phase       Phase
	Title       string
	Instruction string
}

// Plan is the full §4.9 output. Exactly one of NaturalSteps/ActuatedSteps
// is populated, matching Mode.
type Plan struct {
	Mode          Mode
	ModeReason    string
	NaturalSteps  []Step
	ActuatedSteps []Step
}

// recipeGenerateFallbackActuator is the fixed actuator id the spec assigns
// to actuated-mode plans built by recipe_generate.
const recipeGenerateFallbackActuator = "recipe_generate_fallback"

// Input bundles the state-machine inputs listed in §4.9: the requested
// mode (empty means "choose automatically"), the inferred target key and
// file/line, an optional request candidate, the resolved auth decision,
// and ForceTaken — which branch outcome an actuated plan should force.
type Input struct {
	RequestedMode Mode // "", ModeNatural, or ModeActuated
	TargetKey     string
	TargetFile    string
	LineHint      *int
	ForceTaken    bool
	HasCandidate  bool
	Candidate     requestinfer.Candidate
	Auth          authresolve.Result
}

// Build runs the §4.9 state machine to completion.
func Build(in Input) Plan {
	mode := resolveMode(in)
	switch mode {
	case ModeActuated:
		return buildActuated(in)
	default:
		return buildNatural(in)
	}
}

// resolveMode applies the explicit requestedMode override, or — when the
// caller left it unset — falls back to actuated mode whenever no request
// candidate was resolved, matching the "actuated fallback" scenario.
func resolveMode(in Input) Mode {
	switch in.RequestedMode {
	case ModeNatural, ModeActuated:
		return in.RequestedMode
	default:
		if in.HasCandidate {
			return ModeNatural
		}
		return ModeActuated
	}
}

func authPending(auth authresolve.Result) bool {
	return auth.Status == authresolve.StatusNeedsUserInput
}

func buildNatural(in Input) Plan {
	if !in.HasCandidate {
		var steps []Step
		if authPending(in.Auth) {
			steps = append(steps, authResolveStep(in.Auth))
		}
		steps = append(steps,
			Step{
				Phase:       PhasePrepare,
				Title:       "natural path unavailable",
				Instruction: fmt.Sprintf("no controller or OpenAPI route was resolved that invokes %s; a natural HTTP request cannot be constructed", in.TargetKey),
			},
			Step{
				Phase:       PhaseVerify,
				Title:       "report limitation",
				Instruction: "no natural reproduction is available for this target; request actuated mode explicitly to force the branch instead",
			},
		)
		return Plan{
			Mode:         ModeNatural,
			ModeReason:   fmt.Sprintf("no controller or OpenAPI route resolves to %s (§4.7 no-route policy); natural reproduction is unavailable", in.TargetKey),
			NaturalSteps: steps,
		}
	}

	var steps []Step
	if authPending(in.Auth) {
		steps = append(steps, authResolveStep(in.Auth))
	}

	lineKeyErr := verifier.RequireLineKey(in.TargetKey)
	resetInstruction := fmt.Sprintf("reset the baseline hit count for %s via POST /__probe/reset", in.TargetKey)
	if lineKeyErr != nil {
		resetInstruction += "; strict line mode requires a line-level key (class#method:line) — supply a line hint to target_infer before relying on reset/verify"
	}
	steps = append(steps, Step{
		Phase:       PhasePrepare,
		Title:       "reset-baseline",
		Instruction: resetInstruction,
	})

	steps = append(steps, Step{
		Phase:       PhaseExecute,
		Title:       "execute natural request",
		Instruction: formatExecuteInstruction(in.Candidate, in.Auth),
	})

	steps = append(steps, Step{
		Phase:       PhaseVerify,
		Title:       "verify inline hit",
		Instruction: fmt.Sprintf("poll GET /__probe/status?key=%s until a hit timestamped after the reset is observed", in.TargetKey),
	})

	return Plan{
		Mode:         ModeNatural,
		ModeReason:   fmt.Sprintf("a request candidate was resolved for %s; exercising it naturally avoids forcing program state", in.TargetKey),
		NaturalSteps: steps,
	}
}

func buildActuated(in Input) Plan {
	if in.TargetKey == "" {
		return Plan{
			Mode:       ModeActuated,
			ModeReason: "actuated mode requires an inferred target key; none was inferred, so no actuated steps can be emitted",
		}
	}

	reason := fmt.Sprintf("actuation is required for %s", in.TargetKey)
	if !in.HasCandidate {
		reason = fmt.Sprintf("no natural request candidate was resolved for %s; actuation is required to force the branch directly", in.TargetKey)
	}

	outcome := "forced-fallthrough"
	if in.ForceTaken {
		outcome = "forced-taken"
	}

	steps := []Step{
		{
			Phase: PhasePrepare,
			Title: "arm actuator",
			Instruction: fmt.Sprintf(
				"POST /__probe/actuate {mode:%q, actuatorId:%q, targetKey:%q, returnBoolean:%v} to force the branch at %s %s",
				"actuate", recipeGenerateFallbackActuator, in.TargetKey, in.ForceTaken, in.TargetKey, outcome,
			),
		},
		{
			Phase:       PhaseVerify,
			Title:       "verify forced hit",
			Instruction: fmt.Sprintf("trigger the reachable path and poll GET /__probe/status?key=%s for an inline hit", in.TargetKey),
		},
		{
			Phase:       PhaseCleanup,
			Title:       "disarm actuator",
			Instruction: "POST /__probe/actuate {mode:\"observe\"} to return the runtime to passive observation",
		},
	}

	return Plan{
		Mode:          ModeActuated,
		ModeReason:    reason,
		ActuatedSteps: steps,
	}
}

func authResolveStep(auth authresolve.Result) Step {
	instruction := fmt.Sprintf("auth is required (strategy=%s) and no credentials were supplied; missing: %v", auth.Strategy, auth.Missing)
	if auth.LoginHint != nil {
		instruction += fmt.Sprintf("; a likely login endpoint was found: %s %s", auth.LoginHint.Method, auth.LoginHint.Path)
	}
	return Step{
		Phase:       PhasePrepare,
		Title:       "resolve-auth",
		Instruction: instruction,
	}
}

func formatExecuteInstruction(cand requestinfer.Candidate, auth authresolve.Result) string {
	url := cand.FullURLHint
	if url == "" {
		url = cand.Path
	}
	instruction := fmt.Sprintf("%s %s", cand.Method, url)
	if len(auth.RequestHeaders) > 0 {
		instruction += fmt.Sprintf(" headers=%v", redact.Headers(auth.RequestHeaders))
	}
	if len(cand.BodyTemplate) > 0 {
		instruction += fmt.Sprintf(" body=%v", cand.BodyTemplate)
	}
	return instruction
}

// NewCorrelationID generates a step-correlation id for callers that want
// to tag a generated plan for logging, the way execution-plan ids are
// threaded through the rest of the planner's diagnostics.
func NewCorrelationID() string {
	return uuid.NewString()
}
