// Package controlplane serves the three small JSON endpoints the external
// agent uses to read and steer the probe runtime, plus a Prometheus
// /metrics endpoint for ambient observability.
package controlplane

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcourtman/reprod-probe/internal/probe/proberuntime"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"
)

// maxBacklog bounds the number of in-flight requests the listener accepts
// concurrently. The advice code this server answers to runs on application
// threads, not this server's own goroutines, so there is no risk of
// starving instrumentation by bounding the control plane this tightly.
const maxBacklog = 16

// Server is the thread-per-request (bounded) control-plane HTTP server.
type Server struct {
	runtime  *proberuntime.Runtime
	logger   zerolog.Logger
	httpSrv  *http.Server
	registry *prometheus.Registry

	resetCounter   prometheus.Counter
	actuateCounter prometheus.Counter
	statusCounter  prometheus.Counter
}

// New builds a Server bound to rt. Call Start to begin listening.
func New(rt *proberuntime.Runtime, logger zerolog.Logger) *Server {
	registry := prometheus.NewRegistry()

	s := &Server{
		runtime:  rt,
		logger:   logger,
		registry: registry,
		resetCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "probe_reset_total",
			Help: "Number of successful /__probe/reset calls.",
		}),
		actuateCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "probe_actuate_total",
			Help: "Number of /__probe/actuate calls.",
		}),
		statusCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "probe_status_total",
			Help: "Number of /__probe/status calls.",
		}),
	}
	registry.MustRegister(s.resetCounter, s.actuateCounter, s.statusCounter)
	return s
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/__probe/status", s.handleStatus)
	mux.HandleFunc("/__probe/reset", s.handleReset)
	mux.HandleFunc("/__probe/actuate", s.handleActuate)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Handler exposes the control plane's routes as an http.Handler, for
// embedding in a test server or a caller-supplied listener.
func (s *Server) Handler() http.Handler {
	return s.mux()
}

// Start binds addr and serves until ctx is cancelled. It blocks, mirroring
// the teacher's ListenAndServe-then-ErrServerClosed shutdown shape.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln = netutil.LimitListener(ln, maxBacklog)

	s.httpSrv = &http.Server{
		Handler:        s.mux(),
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", addr).Msg("control plane listening")
	if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type statusResponse struct {
	Key                  string            `json:"key"`
	HitCount             uint64            `json:"hitCount"`
	LastHitEpochMs       int64             `json:"lastHitEpochMs"`
	Mode                 proberuntime.Mode `json:"mode"`
	ActuatorID           string            `json:"actuatorId"`
	ActuateTargetKey     string            `json:"actuateTargetKey"`
	ActuateReturnBoolean bool              `json:"actuateReturnBoolean"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func extractKey(r *http.Request, body map[string]any) string {
	if k := r.URL.Query().Get("key"); k != "" {
		return k
	}
	if body != nil {
		if k, ok := body["key"].(string); ok {
			return k
		}
	}
	return ""
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_key"})
		return
	}
	s.statusCounter.Inc()

	cfg := s.runtime.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Key:                  key,
		HitCount:             s.runtime.GetCount(key),
		LastHitEpochMs:       s.runtime.GetLastHitEpochMs(key),
		Mode:                 cfg.Mode,
		ActuatorID:           cfg.ActuatorID,
		ActuateTargetKey:     cfg.ActuateTargetKey,
		ActuateReturnBoolean: cfg.ActuateReturnBoolean,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	key := extractKey(r, body)
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_key"})
		return
	}
	s.runtime.Reset(key)
	s.resetCounter.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "key": key})
}

type actuateRequest struct {
	Mode          *string `json:"mode"`
	ActuatorID    *string `json:"actuatorId"`
	TargetKey     *string `json:"targetKey"`
	ReturnBoolean *bool   `json:"returnBoolean"`
}

func (s *Server) handleActuate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body actuateRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	current := s.runtime.Snapshot()
	mode := current.Mode
	if body.Mode != nil {
		mode = proberuntime.Mode(*body.Mode)
	}
	actuatorID := current.ActuatorID
	if body.ActuatorID != nil {
		actuatorID = *body.ActuatorID
	}
	targetKey := current.ActuateTargetKey
	if body.TargetKey != nil {
		targetKey = *body.TargetKey
	}
	returnBool := current.ActuateReturnBoolean
	if body.ReturnBoolean != nil {
		returnBool = *body.ReturnBoolean
	}

	cfg := s.runtime.Configure(mode, actuatorID, targetKey, returnBool)
	s.actuateCounter.Inc()
	writeJSON(w, http.StatusOK, statusResponse{
		Mode:                 cfg.Mode,
		ActuatorID:           cfg.ActuatorID,
		ActuateTargetKey:     cfg.ActuateTargetKey,
		ActuateReturnBoolean: cfg.ActuateReturnBoolean,
	})
}
