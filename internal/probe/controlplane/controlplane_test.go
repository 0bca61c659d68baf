package controlplane

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rcourtman/reprod-probe/internal/probe/hittable"
	"github.com/rcourtman/reprod-probe/internal/probe/proberuntime"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServer() (*Server, *proberuntime.Runtime) {
	rt := proberuntime.New(hittable.New(nil))
	return New(rt, zerolog.Nop()), rt
}

func TestStatusMissingKeyReturns400(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/__probe/status", nil)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "missing_key", body["error"])
}

func TestStatusWrongMethodReturns405(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/__probe/status?key=c.C%23m", nil)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusReturnsHitCountAndConfig(t *testing.T) {
	s, rt := newTestServer()
	rt.HitByClassMethod("c.C", "m")
	rt.HitByClassMethod("c.C", "m")

	req := httptest.NewRequest(http.MethodGet, "/__probe/status?key=c.C%23m", nil)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, uint64(2), body.HitCount)
	require.Equal(t, proberuntime.ModeObserve, body.Mode)
}

func TestResetAcceptsQueryOrJSONBody(t *testing.T) {
	s, rt := newTestServer()
	rt.HitByClassMethod("c.C", "m")

	req := httptest.NewRequest(http.MethodPost, "/__probe/reset?key=c.C%23m", nil)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(0), rt.GetCount("c.C#m"))

	rt.HitByClassMethod("c.D", "n")
	payload, _ := json.Marshal(map[string]string{"key": "c.D#n"})
	req = httptest.NewRequest(http.MethodPost, "/__probe/reset", bytes.NewReader(payload))
	rec = httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(0), rt.GetCount("c.D#n"))
}

func TestResetMissingKeyReturns400(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/__probe/reset", nil)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActuatePartialOverrideInheritsCurrentState(t *testing.T) {
	s, rt := newTestServer()
	rt.Configure(proberuntime.ModeActuate, "actor-1", "c.C#m:10", true)

	payload, _ := json.Marshal(map[string]any{"returnBoolean": false})
	req := httptest.NewRequest(http.MethodPost, "/__probe/actuate", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, proberuntime.ModeActuate, body.Mode)
	require.Equal(t, "actor-1", body.ActuatorID)
	require.Equal(t, "c.C#m:10", body.ActuateTargetKey)
	require.False(t, body.ActuateReturnBoolean)
}

func TestActuateLeavingActuateModeClearsDependentFields(t *testing.T) {
	s, rt := newTestServer()
	rt.Configure(proberuntime.ModeActuate, "actor-1", "c.C#m:10", true)

	payload, _ := json.Marshal(map[string]any{"mode": "observe"})
	req := httptest.NewRequest(http.MethodPost, "/__probe/actuate", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, proberuntime.ModeObserve, body.Mode)
	require.Empty(t, body.ActuatorID)
	require.Empty(t, body.ActuateTargetKey)
	require.False(t, body.ActuateReturnBoolean)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s, rt := newTestServer()
	rt.Reset("c.C#m")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "probe_reset_total")
}
