// Command probe-agent is a demo host process: it wires up the probe
// runtime, class filter, bytecode instrumenter (over its abstract
// instruction model), and control-plane HTTP server the way a real
// in-process Java agent would, then drives a simulated instrumented
// method so the counters and control plane have something to show.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rcourtman/reprod-probe/internal/probe/classfilter"
	"github.com/rcourtman/reprod-probe/internal/probe/controlplane"
	"github.com/rcourtman/reprod-probe/internal/probe/hittable"
	"github.com/rcourtman/reprod-probe/internal/probe/instrument"
	"github.com/rcourtman/reprod-probe/internal/probe/proberuntime"
	"github.com/rcourtman/reprod-probe/internal/probe/startupargs"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var osExit = os.Exit

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	argsFlag := fs.String("args", os.Getenv("PROBE_AGENT_ARGS"), "opaque ';'-separated key=value startup argument string")
	simulateFlag := fs.Bool("simulate", true, "drive a simulated instrumented method so counters move")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			osExit(0)
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		osExit(1)
		return
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := run(context.Background(), logger, *argsFlag, *simulateFlag); err != nil {
		logger.Error().Err(err).Msg("probe-agent terminated with error")
		osExit(1)
	}
}

func run(ctx context.Context, logger zerolog.Logger, rawArgs string, simulate bool) error {
	cfg := startupargs.Load(rawArgs, os.Getenv, nil)

	include := cfg.Include
	if len(include) == 0 {
		if pattern, ok := classfilter.DefaultInclude(os.Args[0]); ok {
			include = []string{pattern}
			logger.Info().Str("include", pattern).Msg("inferred default include pattern")
		}
	}
	exclude := cfg.Exclude
	if len(exclude) == 0 {
		exclude = []string{classfilter.DefaultExclude()}
	}
	filter := classfilter.New(include, exclude)

	table := hittable.New(nil)
	runtime := proberuntime.New(table)
	if cfg.Mode == proberuntime.ModeActuate {
		runtime.Configure(proberuntime.ModeActuate, cfg.ActuatorID, cfg.ActuateTarget, cfg.ActuateReturnBoolean)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	addr := strings.TrimSpace(cfg.Host) + ":" + strings.TrimSpace(cfg.Port)
	cp := controlplane.New(runtime, logger)
	g.Go(func() error {
		return cp.Start(ctx, addr)
	})

	if simulate {
		ins := instrument.New(filter, runtime, runtime)
		g.Go(func() error {
			return driveSimulatedMethod(ctx, logger, ins)
		})
	}

	logger.Info().
		Str("addr", addr).
		Str("mode", string(cfg.Mode)).
		Strs("include", include).
		Strs("exclude", exclude).
		Msg("probe-agent started")

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("probe-agent terminated: %w", err)
	}
	logger.Info().Msg("probe-agent stopped")
	return nil
}

// demoMethod models a small controller-adjacent method with one branch, so
// the simulated feed exercises both the entry-advice and branch-advice
// paths the instrumenter installs.
var demoMethod = instrument.Method{
	Class:          "demo.OrderService",
	Name:           "isEligibleForDiscount",
	ReturnsBoolean: true,
	Body: []instrument.Instruction{
		instrument.Line(42),
		instrument.Push(true),
		instrument.CondJump(instrument.OpIfNe, true, "reject"),
		instrument.Return(true),
		instrument.Label("reject"),
		instrument.Return(false),
	},
}

func driveSimulatedMethod(ctx context.Context, logger zerolog.Logger, ins *instrument.Instrumenter) error {
	if !ins.Accepts(demoMethod.Class) {
		logger.Warn().Str("class", demoMethod.Class).Msg("simulated class rejected by class filter; no hits will be recorded")
		<-ctx.Done()
		return nil
	}

	instrumented := ins.Instrument(demoMethod)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			trace, err := instrument.ExecuteWithRuntime(demoMethod.Class, instrumented, nil, ins.Hitter, ins.Decider)
			if err != nil {
				logger.Error().Err(err).Msg("simulated execution failed")
				continue
			}
			logger.Debug().
				Bool("returned", trace.ReturnedValue).
				Int("branches", len(trace.BranchResults)).
				Msg("simulated method executed")
		}
	}
}
