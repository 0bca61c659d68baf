// Package startupargs parses the in-process agent's single opaque
// startup-argument string and layers it beneath environment variables and
// system properties, exactly as described for the agent's launch contract.
package startupargs

import (
	"strconv"
	"strings"

	"github.com/rcourtman/reprod-probe/internal/probe/proberuntime"
)

// Config is the fully resolved set of startup settings, after the
// args < env < system-property precedence chain has been applied.
type Config struct {
	Host                 string
	Port                 string
	Mode                 proberuntime.Mode
	ActuatorID           string
	ActuateTarget        string
	ActuateReturnBoolean bool
	Include              []string
	Exclude              []string
}

const (
	defaultHost = "127.0.0.1"
	defaultPort = "9191"
)

// envKeys maps each recognized startup key to the environment variable that
// can override it.
var envKeys = map[string]string{
	"host":                  "PROBE_HOST",
	"port":                  "PROBE_PORT",
	"mode":                  "PROBE_MODE",
	"probemode":             "PROBE_MODE",
	"actuatorid":            "PROBE_ACTUATOR_ID",
	"actuatetarget":         "PROBE_ACTUATE_TARGET",
	"actuatereturnboolean":  "PROBE_ACTUATE_RETURN_BOOLEAN",
	"include":               "PROBE_INCLUDE",
	"exclude":               "PROBE_EXCLUDE",
}

// sysPropKeys maps each recognized startup key to the system-property-style
// name (the JVM analogue of a `-Dprobe.host=...` flag, supplied here as a
// plain lookup map since the host process is what actually parses its own
// `-D` flags).
var sysPropKeys = map[string]string{
	"host":                 "probe.host",
	"port":                 "probe.port",
	"mode":                 "probe.mode",
	"probemode":            "probe.mode",
	"actuatorid":           "probe.actuatorId",
	"actuatetarget":        "probe.actuateTarget",
	"actuatereturnboolean": "probe.actuateReturnBoolean",
	"include":              "probe.include",
	"exclude":              "probe.exclude",
}

// parseArgString splits the `;`-separated `key=value` startup string into a
// lower-cased-key lookup map. Malformed entries (no `=`) are skipped.
func parseArgString(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// resolve applies the args < env < system-property precedence for one
// logical key, returning "" when none of the three sources set it.
func resolve(key string, args map[string]string, getenv func(string) string, sysProps map[string]string) string {
	value := args[key]
	if envKey, ok := envKeys[key]; ok {
		if v := strings.TrimSpace(getenv(envKey)); v != "" {
			value = v
		}
	}
	if sysPropKey, ok := sysPropKeys[key]; ok {
		if v := strings.TrimSpace(sysProps[sysPropKey]); v != "" {
			value = v
		}
	}
	return value
}

// Load parses raw (the agent's opaque startup-argument string) and resolves
// every recognized key through the args < env < system-property chain.
// getenv and sysProps may be nil-safe zero values (an always-empty function
// and a nil map behave as "this source sets nothing").
func Load(raw string, getenv func(string) string, sysProps map[string]string) Config {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	args := parseArgString(raw)

	cfg := Config{
		Host: defaultHost,
		Port: defaultPort,
		Mode: proberuntime.ModeObserve,
	}

	if v := resolve("host", args, getenv, sysProps); v != "" {
		cfg.Host = v
	}
	if v := resolve("port", args, getenv, sysProps); v != "" {
		cfg.Port = v
	}

	mode := resolve("mode", args, getenv, sysProps)
	if mode == "" {
		mode = resolve("probemode", args, getenv, sysProps)
	}
	if strings.EqualFold(mode, string(proberuntime.ModeActuate)) {
		cfg.Mode = proberuntime.ModeActuate
	}

	cfg.ActuatorID = resolve("actuatorid", args, getenv, sysProps)
	cfg.ActuateTarget = resolve("actuatetarget", args, getenv, sysProps)

	if v := resolve("actuatereturnboolean", args, getenv, sysProps); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ActuateReturnBoolean = b
		}
	}

	cfg.Include = splitCSV(resolve("include", args, getenv, sysProps))
	cfg.Exclude = splitCSV(resolve("exclude", args, getenv, sysProps))

	return cfg
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
