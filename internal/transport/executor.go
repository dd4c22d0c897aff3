// Package transport defines the HTTP executor capability the protocol
// clients consume, and provides the production implementation over
// net/http. The clients never construct a transport connection themselves.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/internal/observability"
	"github.com/varnlund/gridlink/model"
)

// Request is one HTTP exchange to perform.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Response is the raw result of an executed request.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// IsSuccess reports whether the status is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// Executor performs HTTP exchanges on behalf of the protocol clients.
// Implementations own connection pooling, hard network timeouts, and any
// infrastructure-level protection; the clients treat a returned error as a
// transport failure.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// HTTPExecutor is the production Executor over net/http with a pooled
// transport and a circuit breaker protecting the application server.
type HTTPExecutor struct {
	client  *http.Client
	breaker *CircuitBreaker
	metrics *observability.Metrics
}

// NewHTTPExecutor creates an executor with the given transport settings.
// metrics may be nil.
func NewHTTPExecutor(cfg config.ERPConfig, metrics *observability.Metrics) *HTTPExecutor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	cb := cfg.CircuitBreaker
	return &HTTPExecutor{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		breaker: NewCircuitBreaker(cb.FailureThreshold, cb.SuccessThreshold, cb.Timeout),
		metrics: metrics,
	}
}

// Execute performs a single HTTP request with circuit breaker protection.
// Non-2xx statuses are returned as responses, not errors; only network and
// breaker failures produce an error.
func (e *HTTPExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := e.breaker.Allow(); err != nil {
		e.publishBreakerState()
		return nil, model.NewBackendUnavailableError()
	}

	ctx, span := observability.StartSpan(ctx, "transport.execute",
		attribute.String("http.method", req.Method),
	)
	resp, err := e.executeOnce(ctx, req)
	observability.EndSpan(span, err)
	e.publishBreakerState()
	return resp, err
}

func (e *HTTPExecutor) executeOnce(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, model.NewTransportError(0, "building request: "+err.Error())
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(sanitizeHeader(k), sanitizeHeader(v))
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		e.breaker.RecordFailure()
		if isConnectionError(err) {
			return nil, model.NewBackendUnavailableError()
		}
		if ctx.Err() != nil {
			return nil, model.NewBackendTimeoutError()
		}
		return nil, model.NewTransportError(0, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB limit
	if err != nil {
		e.breaker.RecordFailure()
		return nil, model.NewTransportError(resp.StatusCode, "reading response: "+err.Error())
	}

	// 4xx are not infrastructure failures; only 5xx trips the breaker.
	if resp.StatusCode >= 500 {
		e.breaker.RecordFailure()
	} else {
		e.breaker.RecordSuccess()
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    respBody,
	}, nil
}

func (e *HTTPExecutor) publishBreakerState() {
	e.metrics.SetBreakerState(int(e.breaker.State()))
}

// sanitizeHeader strips newlines and carriage returns to prevent header
// injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
