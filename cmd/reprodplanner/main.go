// Command reprodplanner is a CLI surface over the planner operations
// described in §6.3. Tool-protocol dispatch, schema validation, and
// file-descriptor transport to a controlling agent are out of scope per
// §1 — this binary is the "external collaborator, interface-only" stand-in
// for that transport: each subcommand marshals its result to JSON on
// stdout the way a tool-call response body would.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rcourtman/reprod-probe/internal/planner/authresolve"
	"github.com/rcourtman/reprod-probe/internal/planner/execplan"
	"github.com/rcourtman/reprod-probe/internal/planner/projects"
	"github.com/rcourtman/reprod-probe/internal/planner/toolsurface"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"

	probeBaseURL  string
	projectRoot   string
	workspaceRoot string
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	rootCmd := &cobra.Command{
		Use:   "reprodplanner",
		Short: "External reproducibility planner for the reprod-probe agent",
	}
	rootCmd.PersistentFlags().StringVar(&probeBaseURL, "probe-url", envOr("PROBE_BASE_URL", "http://127.0.0.1:9191"), "base URL of the target process's control plane")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", envOr("PROJECT_ROOT", "."), "project root to search for source and controllers")
	rootCmd.PersistentFlags().StringVar(&workspaceRoot, "workspace-root", os.Getenv("WORKSPACE_ROOT"), "workspace root used as a last-resort search root")

	rootCmd.AddCommand(
		versionCmd(),
		debugPingCmd(logger),
		projectsDiscoverCmd(logger),
		probeDiagnoseCmd(logger),
		targetInferCmd(logger),
		recipeGenerateCmd(logger),
		probeStatusCmd(logger),
		probeResetCmd(logger),
		probeWaitHitCmd(logger),
		probeActuateCmd(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func executor(logger zerolog.Logger) *toolsurface.Executor {
	return toolsurface.NewExecutor(logger, probeBaseURL, projects.StaticRoots{projectRoot})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("reprodplanner " + Version)
		},
	}
}

func debugPingCmd(logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "debug-ping",
		Short: "Liveness check over the tool façade",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(executor(logger).DebugPing())
		},
	}
}

func projectsDiscoverCmd(logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "projects-discover",
		Short: "List candidate project roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(executor(logger).ProjectsDiscover())
		},
	}
}

func probeDiagnoseCmd(logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "probe-diagnose",
		Short: "Confirm the target process's control plane is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(executor(logger).ProbeDiagnose(cmd.Context()))
		},
	}
}

func targetInferCmd(logger zerolog.Logger) *cobra.Command {
	var classHint, methodHint string
	var lineHint int
	var topN int
	c := &cobra.Command{
		Use:   "target-infer",
		Short: "Infer a probe target from coarse textual hints",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := toolsurface.TargetInferRequest{
				ClassHint:     classHint,
				MethodHint:    methodHint,
				ProjectRoot:   projectRoot,
				WorkspaceRoot: workspaceRoot,
				TopN:          topN,
			}
			if lineHint > 0 {
				req.LineHint = &lineHint
			}
			result, err := executor(logger).TargetInfer(req)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	c.Flags().StringVar(&classHint, "class", "", "class name hint")
	c.Flags().StringVar(&methodHint, "method", "", "method name hint")
	c.Flags().IntVar(&lineHint, "line", 0, "source line hint (1-based, 0 = none)")
	c.Flags().IntVar(&topN, "top", 5, "max candidates to return")
	return c
}

func recipeGenerateCmd(logger zerolog.Logger) *cobra.Command {
	var classHint, methodHint, mode, username, password, authToken string
	var lineHint int
	var forceTaken, discoverLoginHint bool
	c := &cobra.Command{
		Use:   "recipe-generate",
		Short: "Compose a full execution plan for a reproduction attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := toolsurface.RecipeGenerateRequest{
				ClassHint:     classHint,
				MethodHint:    methodHint,
				ProjectRoot:   projectRoot,
				WorkspaceRoot: workspaceRoot,
				Credentials: authresolve.Credentials{
					Username:  username,
					Password:  password,
					AuthToken: authToken,
				},
				DiscoverLoginHint: discoverLoginHint,
				RequestedMode:     execplan.Mode(mode),
				ForceTaken:        forceTaken,
			}
			if lineHint > 0 {
				req.LineHint = &lineHint
			}
			result, err := executor(logger).RecipeGenerate(req)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	c.Flags().StringVar(&classHint, "class", "", "class name hint")
	c.Flags().StringVar(&methodHint, "method", "", "method name hint")
	c.Flags().IntVar(&lineHint, "line", 0, "source line hint (1-based, 0 = none)")
	c.Flags().StringVar(&mode, "mode", "", "requested mode: natural, actuated, or empty for automatic")
	c.Flags().BoolVar(&forceTaken, "force-taken", false, "in actuated mode, force the branch taken rather than fallthrough")
	c.Flags().StringVar(&username, "username", "", "basic-auth username")
	c.Flags().StringVar(&password, "password", "", "basic-auth password")
	c.Flags().StringVar(&authToken, "auth-token", "", "bearer/cookie token")
	c.Flags().BoolVar(&discoverLoginHint, "discover-login-hint", true, "search the OpenAPI document for a likely login endpoint")
	return c
}

func probeStatusCmd(logger zerolog.Logger) *cobra.Command {
	var key string
	c := &cobra.Command{
		Use:   "probe-status",
		Short: "Fetch the current hit count and last-hit time for a probe key",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := executor(logger).ProbeStatus(cmd.Context(), toolsurface.ProbeStatusRequest{Key: key})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	c.Flags().StringVar(&key, "key", "", "probe key")
	_ = c.MarkFlagRequired("key")
	return c
}

func probeResetCmd(logger zerolog.Logger) *cobra.Command {
	var key string
	c := &cobra.Command{
		Use:   "probe-reset",
		Short: "Reset a probe key's hit count and record the reset epoch",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := executor(logger).ProbeReset(cmd.Context(), toolsurface.ProbeResetRequest{Key: key})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	c.Flags().StringVar(&key, "key", "", "probe key")
	_ = c.MarkFlagRequired("key")
	return c
}

func probeWaitHitCmd(logger zerolog.Logger) *cobra.Command {
	var key string
	var maxRetries int
	var pollIntervalMs, timeoutMs int
	c := &cobra.Command{
		Use:   "probe-wait-hit",
		Short: "Poll until an inline hit is observed, or time out",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := executor(logger).ProbeWaitHit(cmd.Context(), toolsurface.ProbeWaitHitRequest{
				Key:          key,
				MaxRetries:   maxRetries,
				PollInterval: time.Duration(pollIntervalMs) * time.Millisecond,
				Timeout:      time.Duration(timeoutMs) * time.Millisecond,
			})
			return printJSON(result)
		},
	}
	c.Flags().StringVar(&key, "key", "", "probe key")
	c.Flags().IntVar(&maxRetries, "max-retries", 3, "maximum wait attempts")
	c.Flags().IntVar(&pollIntervalMs, "poll-interval-ms", 250, "poll interval in milliseconds")
	c.Flags().IntVar(&timeoutMs, "timeout-ms", 5000, "per-attempt timeout in milliseconds")
	_ = c.MarkFlagRequired("key")
	return c
}

func probeActuateCmd(logger zerolog.Logger) *cobra.Command {
	var mode, actuatorID, targetKey string
	var returnBoolean bool
	c := &cobra.Command{
		Use:   "probe-actuate",
		Short: "Arm or disarm actuation on the target process",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := toolsurface.ProbeActuateRequest{}
			if cmd.Flags().Changed("mode") {
				req.Mode = &mode
			}
			if cmd.Flags().Changed("actuator-id") {
				req.ActuatorID = &actuatorID
			}
			if cmd.Flags().Changed("target-key") {
				req.TargetKey = &targetKey
			}
			if cmd.Flags().Changed("return-boolean") {
				req.ReturnBoolean = &returnBoolean
			}
			result, err := executor(logger).ProbeActuate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	c.Flags().StringVar(&mode, "mode", "", "observe or actuate")
	c.Flags().StringVar(&actuatorID, "actuator-id", "", "free-form actuator identifier")
	c.Flags().StringVar(&targetKey, "target-key", "", "probe key to act upon")
	c.Flags().BoolVar(&returnBoolean, "return-boolean", false, "forced boolean return/branch outcome")
	return c
}
