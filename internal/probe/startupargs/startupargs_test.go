package startupargs

import (
	"testing"

	"github.com/rcourtman/reprod-probe/internal/probe/proberuntime"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load("", nil, nil)
	require.Equal(t, "127.0.0.1", cfg.Host)
	require.Equal(t, "9191", cfg.Port)
	require.Equal(t, proberuntime.ModeObserve, cfg.Mode)
	require.Empty(t, cfg.ActuatorID)
}

func TestLoadParsesArgString(t *testing.T) {
	cfg := Load("host=0.0.0.0;port=9000;mode=actuate;actuateTarget=c.C#m:10;actuateReturnBoolean=true;include=a.**,b.**;exclude=c.internal.**", nil, nil)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, proberuntime.ModeActuate, cfg.Mode)
	require.Equal(t, "c.C#m:10", cfg.ActuateTarget)
	require.True(t, cfg.ActuateReturnBoolean)
	require.Equal(t, []string{"a.**", "b.**"}, cfg.Include)
	require.Equal(t, []string{"c.internal.**"}, cfg.Exclude)
}

func TestLoadIsCaseInsensitiveOnKeys(t *testing.T) {
	cfg := Load("HOST=10.0.0.1;PROBEMODE=actuate", nil, nil)
	require.Equal(t, "10.0.0.1", cfg.Host)
	require.Equal(t, proberuntime.ModeActuate, cfg.Mode)
}

func TestEnvOverridesArgs(t *testing.T) {
	getenv := func(k string) string {
		if k == "PROBE_HOST" {
			return "env-host"
		}
		return ""
	}
	cfg := Load("host=arg-host", getenv, nil)
	require.Equal(t, "env-host", cfg.Host)
}

func TestSystemPropertyOverridesEnvAndArgs(t *testing.T) {
	getenv := func(k string) string {
		if k == "PROBE_HOST" {
			return "env-host"
		}
		return ""
	}
	sysProps := map[string]string{"probe.host": "sysprop-host"}
	cfg := Load("host=arg-host", getenv, sysProps)
	require.Equal(t, "sysprop-host", cfg.Host)
}

func TestMalformedEntriesAreSkipped(t *testing.T) {
	cfg := Load("garbage;;host=ok;=novalue", nil, nil)
	require.Equal(t, "ok", cfg.Host)
}

func TestInvalidBooleanLeavesDefault(t *testing.T) {
	cfg := Load("actuateReturnBoolean=notabool", nil, nil)
	require.False(t, cfg.ActuateReturnBoolean)
}
