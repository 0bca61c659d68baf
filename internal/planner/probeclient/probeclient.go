// Package probeclient is the planner-side HTTP client for the in-process
// agent's control plane (§6.2). Every call carries an upper-bounded
// timeout, per §5's cancellation model, and a failed dial is reported as
// the "transport unreachable" error kind with an explicit remediation
// string rather than retried silently.
package probeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rcourtman/reprod-probe/internal/planner/verifier"
	"github.com/rcourtman/reprod-probe/internal/probe/proberuntime"
)

// DefaultTimeout bounds every outbound call this client makes, matching
// §5's "every outbound HTTP call in the planner carries an upper-bounded
// timeout".
const DefaultTimeout = 5 * time.Second

// Status mirrors the control plane's /__probe/status response shape.
type Status struct {
	Key                  string            `json:"key"`
	HitCount             uint64            `json:"hitCount"`
	LastHitEpochMs       int64             `json:"lastHitEpochMs"`
	Mode                 proberuntime.Mode `json:"mode"`
	ActuatorID           string            `json:"actuatorId"`
	ActuateTargetKey     string            `json:"actuateTargetKey"`
	ActuateReturnBoolean bool              `json:"actuateReturnBoolean"`
}

// ActuateRequest mirrors the POST /__probe/actuate body; nil fields
// inherit the runtime's current configuration, per §6.2.
type ActuateRequest struct {
	Mode          *string `json:"mode,omitempty"`
	ActuatorID    *string `json:"actuatorId,omitempty"`
	TargetKey     *string `json:"targetKey,omitempty"`
	ReturnBoolean *bool   `json:"returnBoolean,omitempty"`
}

// ErrUnreachable is wrapped around every transport-level failure so
// callers can detect "likely wrong port" style conditions distinctly from
// a well-formed error response.
type ErrUnreachable struct {
	BaseURL string
	Err     error
}

func (e *ErrUnreachable) Error() string {
	return fmt.Sprintf("probe endpoint %s unreachable (check host/port): %v", e.BaseURL, e.Err)
}

func (e *ErrUnreachable) Unwrap() error { return e.Err }

// Client talks to one control-plane base URL (e.g. "http://127.0.0.1:9191").
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a Client with DefaultTimeout applied to every request.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Status fetches GET /__probe/status?key=<key>.
func (c *Client) Status(ctx context.Context, key string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/__probe/status?key="+urlEscape(key), nil)
	if err != nil {
		return Status{}, err
	}
	var out Status
	if err := c.do(req, &out); err != nil {
		return Status{}, err
	}
	return out, nil
}

// Fetch adapts Status to the verifier.Fetcher function type.
func (c *Client) Fetch(ctx context.Context, key string) (verifier.StatusSnapshot, error) {
	st, err := c.Status(ctx, key)
	if err != nil {
		return verifier.StatusSnapshot{}, err
	}
	return verifier.StatusSnapshot{Count: st.HitCount, LastHitEpochMs: st.LastHitEpochMs}, nil
}

// Reset calls POST /__probe/reset with the given key.
func (c *Client) Reset(ctx context.Context, key string) error {
	body, _ := json.Marshal(map[string]string{"key": key})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/__probe/reset", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// Actuate calls POST /__probe/actuate with a partial override body and
// returns the effective runtime configuration it echoes.
func (c *Client) Actuate(ctx context.Context, in ActuateRequest) (Status, error) {
	body, _ := json.Marshal(in)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/__probe/actuate", bytes.NewReader(body))
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var out Status
	if err := c.do(req, &out); err != nil {
		return Status{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &ErrUnreachable{BaseURL: c.BaseURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading probe response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("probe endpoint returned %d: %s", resp.StatusCode, string(data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding probe response: %w", err)
	}
	return nil
}

func urlEscape(s string) string {
	// Probe keys are restricted to "fqcn#method[:line]" — '#' and ' ' are
	// the only characters that need escaping for a query value here.
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '#':
			b.WriteString("%23")
		case ' ':
			b.WriteString("%20")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
