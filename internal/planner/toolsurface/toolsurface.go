// Package toolsurface is the operation façade described in §6.3: nine
// named operations a tool-protocol transport would dispatch to. This
// package implements every operation's logic; wiring it to an actual
// stdio/JSON-RPC transport, schema validation, and template-based human
// rendering are the explicitly out-of-scope collaborators named in §1 —
// callers (e.g. a cobra CLI, a future MCP server) supply those and call
// straight into the functions below.
package toolsurface

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rcourtman/reprod-probe/internal/planner/authresolve"
	"github.com/rcourtman/reprod-probe/internal/planner/execplan"
	"github.com/rcourtman/reprod-probe/internal/planner/openapi"
	"github.com/rcourtman/reprod-probe/internal/planner/probeclient"
	"github.com/rcourtman/reprod-probe/internal/planner/projects"
	"github.com/rcourtman/reprod-probe/internal/planner/requestinfer"
	"github.com/rcourtman/reprod-probe/internal/planner/sourceindex"
	"github.com/rcourtman/reprod-probe/internal/planner/targetinfer"
	"github.com/rcourtman/reprod-probe/internal/planner/verifier"
	"github.com/rs/zerolog"
)

// Status values a report or result carries, per §7's error-kind catalog.
const (
	StatusOK                 = "ok"
	StatusTargetNotInferred  = "target_not_inferred"
	StatusUnreachableNatural = "unreachable_natural"
	StatusActuatedBlocked    = "actuated_blocked"
)

// Executor bundles the planner-side dependencies every operation needs:
// a source-tree root provider, an OpenAPI/project-aware request inferer,
// an auth resolver, the verifier, and an HTTP client to the target
// process's control plane. A single Executor instance is reused across
// calls within one planner invocation (§5: "no shared mutable state
// between concurrent planner invocations" — callers construct one
// Executor per invocation rather than sharing one across requests).
type Executor struct {
	Logger   zerolog.Logger
	Probe    *probeclient.Client
	Verifier *verifier.Verifier
	Roots    projects.RootProvider
}

// NewExecutor wires an Executor against a running control plane at
// probeBaseURL and a root provider for source discovery.
func NewExecutor(logger zerolog.Logger, probeBaseURL string, roots projects.RootProvider) *Executor {
	client := probeclient.New(probeBaseURL)
	return &Executor{
		Logger:   logger,
		Probe:    client,
		Verifier: verifier.New(client.Fetch, nil, nil),
		Roots:    roots,
	}
}

// PingResult is debug_ping's trivial liveness payload.
type PingResult struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	EpochMs   int64  `json:"epochMs"`
	ToolCount int    `json:"toolCount"`
}

// DebugPing answers a bare liveness check, the operation SPEC_FULL adds
// for completeness alongside the eight spec-narrated operations.
func (e *Executor) DebugPing() PingResult {
	return PingResult{OK: true, Message: "pong", EpochMs: time.Now().UnixMilli(), ToolCount: toolCount}
}

const toolCount = 9

// ProjectsDiscoverResult is projects_discover's output: the candidate
// project roots the rest of the planner should search.
type ProjectsDiscoverResult struct {
	Roots []string `json:"roots"`
}

// ProjectsDiscover returns e.Roots' candidate list, deduplicated. The
// Maven/Gradle walk that would normally populate a richer RootProvider is
// out of scope (§1); this operation is complete as long as some
// RootProvider is wired in.
func (e *Executor) ProjectsDiscover() ProjectsDiscoverResult {
	if e.Roots == nil {
		return ProjectsDiscoverResult{}
	}
	return ProjectsDiscoverResult{Roots: e.Roots.Roots()}
}

// DiagnoseResult is probe_diagnose's output: whether the control plane at
// Probe.BaseURL answers, surfaced as the "transport unreachable" error
// kind with a remediation hint when it does not.
type DiagnoseResult struct {
	Reachable   bool   `json:"reachable"`
	BaseURL     string `json:"baseUrl"`
	Remediation string `json:"remediation,omitempty"`
}

// ProbeDiagnose issues a harmless status probe against a sentinel key to
// confirm the control plane is reachable before the caller invests in a
// full target-infer/recipe-generate round trip.
func (e *Executor) ProbeDiagnose(ctx context.Context) DiagnoseResult {
	_, err := e.Probe.Status(ctx, "reprodprobe.diagnose#ping")
	if err != nil {
		return DiagnoseResult{
			Reachable:   false,
			BaseURL:     e.Probe.BaseURL,
			Remediation: fmt.Sprintf("could not reach %s — the target process's probe agent is likely not running, or is bound to a different host/port", e.Probe.BaseURL),
		}
	}
	return DiagnoseResult{Reachable: true, BaseURL: e.Probe.BaseURL}
}

// TargetInferRequest is target_infer's input.
type TargetInferRequest struct {
	ClassHint     string
	MethodHint    string
	LineHint      *int
	ProjectRoot   string
	WorkspaceRoot string
	TopN          int
}

// TargetInferResult is target_infer's output.
type TargetInferResult struct {
	Targets []targetinfer.Target `json:"targets"`
}

// TargetInfer builds a source index over req's search roots and scores it
// against the supplied hints (§4.6).
func (e *Executor) TargetInfer(req TargetInferRequest) (TargetInferResult, error) {
	idx, err := e.buildIndex(req.ProjectRoot, req.WorkspaceRoot)
	if err != nil {
		return TargetInferResult{}, err
	}
	topN := req.TopN
	if topN <= 0 {
		topN = 5
	}
	targets := targetinfer.Infer(idx, targetinfer.Hints{
		ClassHint:  req.ClassHint,
		MethodHint: req.MethodHint,
		LineHint:   req.LineHint,
	}, topN)
	return TargetInferResult{Targets: targets}, nil
}

func (e *Executor) buildIndex(projectRoot, workspaceRoot string) (*sourceindex.Index, error) {
	merged := &sourceindex.Index{}
	for _, root := range projects.SearchRoots(projectRoot, workspaceRoot) {
		idx, err := sourceindex.Build(root, nil, e.Logger)
		if err != nil {
			return nil, fmt.Errorf("indexing %s: %w", root, err)
		}
		merged.Files = append(merged.Files, idx.Files...)
	}
	return merged, nil
}

// collectControllerFiles walks roots for files whose name suggests a
// controller (§4.7 step 1), reading each one's text, capped at the
// package's maxControllerFiles by requestinfer.Infer itself.
func collectControllerFiles(roots []string) ([]requestinfer.ControllerFile, error) {
	var out []requestinfer.ControllerFile
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // per §4.5, per-file read failures are skipped, not fatal
			}
			if d.IsDir() {
				return nil
			}
			if !strings.HasSuffix(path, ".java") || !requestinfer.IsControllerFile(path) {
				return nil
			}
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return nil
			}
			out = append(out, requestinfer.ControllerFile{Path: path, Text: string(data)})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RecipeGenerateRequest is recipe_generate's input: the same coarse hints
// as target_infer, plus the credentials and mode override the execution
// plan builder needs.
type RecipeGenerateRequest struct {
	ClassHint         string
	MethodHint        string
	LineHint          *int
	ProjectRoot       string
	WorkspaceRoot     string
	Credentials       authresolve.Credentials
	DiscoverLoginHint bool
	RequestedMode     execplan.Mode
	ForceTaken        bool
}

// RecipeGenerateResult is recipe_generate's output: the inferred target
// (if any), the resolved request candidates, the auth resolution, and the
// composed execution plan, or a status explaining why generation stopped
// short.
type RecipeGenerateResult struct {
	Status            string                   `json:"status"`
	Target            *targetinfer.Target      `json:"target,omitempty"`
	RequestCandidates []requestinfer.Candidate `json:"requestCandidates"`
	Auth              authresolve.Result       `json:"auth"`
	ExecutionPlan     execplan.Plan            `json:"executionPlan"`
	NextAction        string                   `json:"nextAction,omitempty"`
}

// RecipeGenerate runs the full planner pipeline described in §2's data
// flow: target inference, request-candidate inference, auth resolution,
// then the execution-plan builder.
func (e *Executor) RecipeGenerate(req RecipeGenerateRequest) (RecipeGenerateResult, error) {
	idx, err := e.buildIndex(req.ProjectRoot, req.WorkspaceRoot)
	if err != nil {
		return RecipeGenerateResult{}, err
	}

	targets := targetinfer.Infer(idx, targetinfer.Hints{
		ClassHint:  req.ClassHint,
		MethodHint: req.MethodHint,
		LineHint:   req.LineHint,
	}, 1)
	if len(targets) == 0 {
		return RecipeGenerateResult{
			Status:     StatusTargetNotInferred,
			NextAction: "supply a more specific class/method hint, or a line hint closer to the intended code path",
		}, nil
	}
	target := targets[0]

	roots := projects.SearchRoots(req.ProjectRoot, req.WorkspaceRoot)
	controllerFiles, err := collectControllerFiles(roots)
	if err != nil {
		return RecipeGenerateResult{}, err
	}

	doc, _, hasOpenAPI := openapi.Find(req.ProjectRoot)
	candidate, hasCandidate := requestinfer.Infer(target, controllerFiles, idx, doc, hasOpenAPI)

	var candidates []requestinfer.Candidate
	var auth authresolve.Result
	if hasCandidate {
		candidates = []requestinfer.Candidate{candidate}
		controllerSource := ""
		for _, cf := range controllerFiles {
			if strings.Contains(cf.Text, candidate.Path) {
				controllerSource = cf.Text
				break
			}
		}
		auth = authresolve.Resolve(req.ProjectRoot, candidate.Path, controllerSource, req.Credentials, req.DiscoverLoginHint)
	}

	plan := execplan.Build(execplan.Input{
		RequestedMode: req.RequestedMode,
		TargetKey:     target.Key,
		TargetFile:    target.File,
		LineHint:      req.LineHint,
		ForceTaken:    req.ForceTaken,
		HasCandidate:  hasCandidate,
		Candidate:     candidate,
		Auth:          auth,
	})

	status := StatusOK
	nextAction := ""
	switch {
	case plan.Mode == execplan.ModeActuated && target.Key == "":
		status = StatusActuatedBlocked
		nextAction = "infer a target with a line hint before requesting actuated mode"
	case plan.Mode == execplan.ModeNatural && !hasCandidate:
		status = StatusUnreachableNatural
		nextAction = "confirm actuated mode explicitly, or supply a controller hint so a route can be resolved"
	}

	return RecipeGenerateResult{
		Status:            status,
		Target:            &target,
		RequestCandidates: candidates,
		Auth:              auth,
		ExecutionPlan:     plan,
		NextAction:        nextAction,
	}, nil
}

// ProbeStatusRequest/Result wrap GET /__probe/status (§6.2), enforcing
// strict line mode before any network call is made.
type ProbeStatusRequest struct {
	Key string
}

type ProbeStatusResult struct {
	Status   string             `json:"status"`
	Snapshot probeclient.Status `json:"snapshot,omitempty"`
}

func (e *Executor) ProbeStatus(ctx context.Context, req ProbeStatusRequest) (ProbeStatusResult, error) {
	if err := verifier.RequireLineKey(req.Key); err != nil {
		return ProbeStatusResult{Status: string(verifier.OutcomeLineKeyRequired)}, nil
	}
	st, err := e.Probe.Status(ctx, req.Key)
	if err != nil {
		return ProbeStatusResult{}, err
	}
	return ProbeStatusResult{Status: StatusOK, Snapshot: st}, nil
}

// ProbeResetRequest/Result wrap POST /__probe/reset, recording the reset
// epoch in the verifier on success so a subsequent probe_wait_hit call can
// distinguish an inline hit from stale traffic.
type ProbeResetRequest struct {
	Key string
}

type ProbeResetResult struct {
	Status string `json:"status"`
	Key    string `json:"key"`
}

func (e *Executor) ProbeReset(ctx context.Context, req ProbeResetRequest) (ProbeResetResult, error) {
	if err := verifier.RequireLineKey(req.Key); err != nil {
		return ProbeResetResult{Status: string(verifier.OutcomeLineKeyRequired), Key: req.Key}, nil
	}
	if err := e.Probe.Reset(ctx, req.Key); err != nil {
		return ProbeResetResult{}, err
	}
	e.Verifier.RecordReset(req.Key)
	return ProbeResetResult{Status: StatusOK, Key: req.Key}, nil
}

// ProbeWaitHitRequest/Result wrap the §4.10 polling algorithm.
type ProbeWaitHitRequest struct {
	Key          string
	MaxRetries   int
	PollInterval time.Duration
	Timeout      time.Duration
}

// ProbeWaitHit runs the verifier's Wait algorithm to completion.
func (e *Executor) ProbeWaitHit(ctx context.Context, req ProbeWaitHitRequest) verifier.Result {
	opts := verifier.Options{
		MaxRetries:   req.MaxRetries,
		PollInterval: req.PollInterval,
		Timeout:      req.Timeout,
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return e.Verifier.Wait(ctx, req.Key, opts)
}

// ProbeActuateRequest/Result wrap POST /__probe/actuate.
type ProbeActuateRequest struct {
	Mode          *string
	ActuatorID    *string
	TargetKey     *string
	ReturnBoolean *bool
}

func (e *Executor) ProbeActuate(ctx context.Context, req ProbeActuateRequest) (probeclient.Status, error) {
	return e.Probe.Actuate(ctx, probeclient.ActuateRequest{
		Mode:          req.Mode,
		ActuatorID:    req.ActuatorID,
		TargetKey:     req.TargetKey,
		ReturnBoolean: req.ReturnBoolean,
	})
}
