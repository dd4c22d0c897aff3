// Package integration exercises the fully wired gateway against a mock
// application server: real router, real protocol clients, real transport,
// with only the ERP side simulated.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/internal/forms"
	"github.com/varnlund/gridlink/internal/gateway"
	"github.com/varnlund/gridlink/internal/ionapi"
	"github.com/varnlund/gridlink/internal/mi"
	"github.com/varnlund/gridlink/internal/transport"
	"github.com/varnlund/gridlink/model"
)

// Harness wires a complete gateway over a mock application server and
// exposes the pieces tests need to steer and assert.
type Harness struct {
	t      *testing.T
	server *httptest.Server

	ERP   *MockERP
	Forms *forms.Client
	Cfg   *config.Config
}

// HarnessOption adjusts the harness configuration before wiring.
type HarnessOption func(*config.Config)

// WithAuthSecretEnv enables inbound authentication using the named
// environment variable as the HS256 secret source.
func WithAuthSecretEnv(envVar string) HarnessOption {
	return func(cfg *config.Config) {
		cfg.Gateway.AuthSecretEnv = envVar
	}
}

// WithIonBase points the ION proxy at a fixed gateway address instead of
// resolving it through the environment context.
func WithIonBase(baseURL string) HarnessOption {
	return func(cfg *config.Config) {
		cfg.Ion.DevelopmentURL = baseURL
	}
}

// WithBreaker tightens the circuit breaker for resilience tests.
func WithBreaker(failureThreshold int, timeout time.Duration) HarnessOption {
	return func(cfg *config.Config) {
		cfg.ERP.CircuitBreaker.FailureThreshold = failureThreshold
		cfg.ERP.CircuitBreaker.Timeout = timeout
	}
}

// NewHarness starts a mock application server and a gateway pointed at it.
func NewHarness(t *testing.T, opts ...HarnessOption) *Harness {
	t.Helper()

	erp := NewMockERP(t)

	cfg := config.Defaults()
	cfg.ERP.BaseURL = erp.URL()
	cfg.ERP.Timeout = 5 * time.Second
	for _, opt := range opts {
		opt(cfg)
	}

	executor := transport.NewHTTPExecutor(cfg.ERP, nil)
	identity := forms.IdentityFunc(func(context.Context) (*model.Identity, error) {
		return &model.Identity{User: "TESTUSER", Context: map[string]string{"LANC": "GB"}}, nil
	})
	formsClient := forms.NewClient(cfg.ERP, executor, identity, nil, nil)
	miClient := mi.NewClient(cfg.ERP, executor, formsClient, nil, nil)
	broker := ionapi.NewBroker(cfg.ERP, cfg.Ion, executor, formsClient, nil, nil)

	router := gateway.NewRouter(gateway.Dependencies{
		Config: cfg,
		Forms:  formsClient,
		MI:     miClient,
		Ion:    broker,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &Harness{
		t:      t,
		server: server,
		ERP:    erp,
		Forms:  formsClient,
		Cfg:    cfg,
	}
}

// URL returns the gateway's base URL.
func (h *Harness) URL() string { return h.server.URL }

// Response bundles a completed gateway call for assertion.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON unmarshals the response body into dst.
func (r *Response) JSON(t *testing.T, dst any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, dst); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, r.Body)
	}
}

// Get performs a GET against the gateway.
func (h *Harness) Get(path string, headers ...string) *Response {
	return h.do("GET", path, nil, headers...)
}

// PostJSON performs a JSON POST against the gateway.
func (h *Harness) PostJSON(path string, body any, headers ...string) *Response {
	h.t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		h.t.Fatalf("marshaling request body: %v", err)
	}
	return h.do("POST", path, data, append(headers, "Content-Type", "application/json")...)
}

// do issues one request. headers are alternating name/value pairs.
func (h *Harness) do(method, path string, body []byte, headers ...string) *Response {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		h.t.Fatalf("building request: %v", err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := h.server.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("reading response body: %v", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
}
