package ionapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/internal/transport"
	"github.com/varnlund/gridlink/model"
)

const tokenURL = "https://erp.example.com/grid/rest/security/sessions/oauth"

type fakeExecutor struct {
	mu       sync.Mutex
	requests []*transport.Request
	handler  func(*transport.Request) (*transport.Response, error)
}

func (f *fakeExecutor) Execute(_ context.Context, req *transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.handler(req)
}

func (f *fakeExecutor) recorded() []*transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*transport.Request(nil), f.requests...)
}

func (f *fakeExecutor) countURL(substr string) int {
	n := 0
	for _, req := range f.recorded() {
		if strings.Contains(req.URL, substr) {
			n++
		}
	}
	return n
}

type staticEnv model.EnvironmentContext

func (s *staticEnv) GetEnvironmentContext(context.Context) (*model.EnvironmentContext, error) {
	env := model.EnvironmentContext(*s)
	return &env, nil
}

func newTestBroker(exec transport.Executor, env EnvironmentSource, retry *bool) *Broker {
	erpCfg := config.ERPConfig{BaseURL: "https://erp.example.com"}
	ionCfg := config.IonConfig{
		TokenPath: "/grid/rest/security/sessions/oauth",
		Platform:  "gridlink",
		Retry:     retry,
	}
	return NewBroker(erpCfg, ionCfg, exec, env, nil, nil)
}

func TestGetContext_resolvesAndCaches(t *testing.T) {
	exec := &fakeExecutor{handler: func(req *transport.Request) (*transport.Response, error) {
		require.Equal(t, "POST", req.Method)
		require.Equal(t, tokenURL, req.URL)
		return &transport.Response{Status: 200, Body: []byte("opaque-token\n")}, nil
	}}
	env := &staticEnv{IonAPIURL: "https://ion.example.com/TENANT/"}
	b := newTestBroker(exec, env, nil)

	ctx, err := b.GetContext(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "https://ion.example.com/TENANT", ctx.BaseURL)
	assert.Equal(t, "opaque-token", ctx.Token)

	_, err = b.GetContext(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, exec.countURL("/oauth"), "cached context should not refetch")

	_, err = b.GetContext(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, exec.countURL("/oauth"), "refresh must refetch")
}

func TestGetContext_singleFlight(t *testing.T) {
	release := make(chan struct{})
	exec := &fakeExecutor{}
	exec.handler = func(*transport.Request) (*transport.Response, error) {
		<-release
		return &transport.Response{Status: 200, Body: []byte("tok")}, nil
	}
	b := newTestBroker(exec, &staticEnv{IonAPIURL: "https://ion.example.com"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.GetContext(context.Background(), false)
			assert.NoError(t, err)
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		waiting := len(b.waiters)
		b.mu.Unlock()
		if waiting == 5 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, 1, exec.countURL("/oauth"))
}

func TestGetContext_developmentOverrides(t *testing.T) {
	exec := &fakeExecutor{handler: func(req *transport.Request) (*transport.Response, error) {
		t.Errorf("unexpected request: %s", req.URL)
		return nil, nil
	}}
	erpCfg := config.ERPConfig{BaseURL: "https://erp.example.com"}
	ionCfg := config.IonConfig{
		TokenPath:      "/grid/rest/security/sessions/oauth",
		Platform:       "gridlink",
		DevelopmentURL: "http://localhost:9000/",
	}
	b := NewBroker(erpCfg, ionCfg, exec, nil, nil, nil)
	b.SetDevelopmentToken("dev-token")

	ctx, err := b.GetContext(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", ctx.BaseURL)
	assert.Equal(t, "dev-token", ctx.Token)
}

func TestGetContext_noBaseURL(t *testing.T) {
	exec := &fakeExecutor{handler: func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{Status: 200, Body: []byte("tok")}, nil
	}}
	b := newTestBroker(exec, &staticEnv{}, nil)

	_, err := b.GetContext(context.Background(), false)
	require.Error(t, err)
	ee, ok := err.(*model.ErrorEnvelope)
	require.True(t, ok)
	assert.Equal(t, model.ErrTokenError, ee.Code)
}

func TestGetContext_tokenEndpointFailure(t *testing.T) {
	exec := &fakeExecutor{handler: func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{Status: 503}, nil
	}}
	b := newTestBroker(exec, &staticEnv{IonAPIURL: "https://ion.example.com"}, nil)

	_, err := b.GetContext(context.Background(), false)
	require.Error(t, err)
	ee, ok := err.(*model.ErrorEnvelope)
	require.True(t, ok)
	assert.Equal(t, model.ErrTokenError, ee.Code)
}

func TestExecute_headers(t *testing.T) {
	exec := &fakeExecutor{handler: func(req *transport.Request) (*transport.Response, error) {
		if strings.Contains(req.URL, "/oauth") {
			return &transport.Response{Status: 200, Body: []byte("tok-1")}, nil
		}
		return &transport.Response{Status: 200, Body: []byte(`{"ok":true}`)}, nil
	}}
	b := newTestBroker(exec, &staticEnv{IonAPIURL: "https://ion.example.com"}, nil)

	resp, err := b.Execute(context.Background(), &model.IonRequest{
		Method: "GET",
		URL:    "M3/m3api-rest/execute",
		Source: "webapp",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.False(t, resp.IsRetry)

	reqs := exec.recorded()
	api := reqs[len(reqs)-1]
	assert.Equal(t, "https://ion.example.com/M3/m3api-rest/execute", api.URL)
	assert.Equal(t, "Bearer tok-1", api.Headers["Authorization"])
	assert.Equal(t, "gridlink", api.Headers["x-infor-ionapi-platform"])
	assert.Equal(t, "webapp", api.Headers["x-infor-ionapi-source"])
}

func TestExecute_sourceRequired(t *testing.T) {
	b := newTestBroker(&fakeExecutor{handler: func(*transport.Request) (*transport.Response, error) {
		t.Error("validation error should not reach the wire")
		return nil, nil
	}}, &staticEnv{IonAPIURL: "https://ion.example.com"}, nil)

	_, err := b.Execute(context.Background(), &model.IonRequest{URL: "/x"})
	require.Error(t, err)
	ee, ok := err.(*model.ErrorEnvelope)
	require.True(t, ok)
	assert.Equal(t, model.ErrValidationError, ee.Code)
}

func TestExecute_retriesOnceOn401(t *testing.T) {
	tokens := []string{"stale", "fresh"}
	var apiCalls int
	var mu sync.Mutex

	exec := &fakeExecutor{}
	exec.handler = func(req *transport.Request) (*transport.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		if strings.Contains(req.URL, "/oauth") {
			tok := tokens[0]
			if len(tokens) > 1 {
				tokens = tokens[1:]
			}
			return &transport.Response{Status: 200, Body: []byte(tok)}, nil
		}
		apiCalls++
		if req.Headers["Authorization"] != "Bearer fresh" {
			return &transport.Response{Status: 401}, nil
		}
		return &transport.Response{Status: 200, Body: []byte("ok")}, nil
	}
	b := newTestBroker(exec, &staticEnv{IonAPIURL: "https://ion.example.com"}, nil)

	resp, err := b.Execute(context.Background(), &model.IonRequest{URL: "/x", Source: "webapp"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.True(t, resp.IsRetry)
	assert.Equal(t, 2, apiCalls)
}

func TestExecute_noSecondRetry(t *testing.T) {
	var apiCalls int
	var mu sync.Mutex
	exec := &fakeExecutor{}
	exec.handler = func(req *transport.Request) (*transport.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		if strings.Contains(req.URL, "/oauth") {
			return &transport.Response{Status: 200, Body: []byte("tok")}, nil
		}
		apiCalls++
		return &transport.Response{Status: 401}, nil
	}
	b := newTestBroker(exec, &staticEnv{IonAPIURL: "https://ion.example.com"}, nil)

	resp, err := b.Execute(context.Background(), &model.IonRequest{URL: "/x", Source: "webapp"})
	require.NoError(t, err)
	assert.Equal(t, 401, resp.Status)
	assert.True(t, resp.IsRetry)
	assert.Equal(t, 2, apiCalls, "exactly one transparent retry")
}

func TestExecute_retryDisabledPerRequest(t *testing.T) {
	var apiCalls int
	var mu sync.Mutex
	exec := &fakeExecutor{}
	exec.handler = func(req *transport.Request) (*transport.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		if strings.Contains(req.URL, "/oauth") {
			return &transport.Response{Status: 200, Body: []byte("tok")}, nil
		}
		apiCalls++
		return &transport.Response{Status: 401}, nil
	}
	b := newTestBroker(exec, &staticEnv{IonAPIURL: "https://ion.example.com"}, nil)

	noRetry := false
	resp, err := b.Execute(context.Background(), &model.IonRequest{URL: "/x", Source: "webapp", Retry: &noRetry})
	require.NoError(t, err)
	assert.Equal(t, 401, resp.Status)
	assert.False(t, resp.IsRetry)
	assert.Equal(t, 1, apiCalls)
}

func TestTokenAlive(t *testing.T) {
	assert.False(t, tokenAlive(""))
	assert.True(t, tokenAlive("opaque-non-jwt-token"))

	expired := signedToken(t, time.Now().Add(-time.Hour))
	assert.False(t, tokenAlive(expired))

	closeToExpiry := signedToken(t, time.Now().Add(10*time.Second))
	assert.False(t, tokenAlive(closeToExpiry), "tokens inside the margin count as dead")

	fresh := signedToken(t, time.Now().Add(time.Hour))
	assert.True(t, tokenAlive(fresh))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}
