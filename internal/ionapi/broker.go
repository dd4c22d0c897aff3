// Package ionapi brokers OAuth tokens for the ION API gateway and executes
// requests against it, refreshing the token transparently on a 401.
package ionapi

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/internal/observability"
	"github.com/varnlund/gridlink/internal/transport"
	"github.com/varnlund/gridlink/model"
)

// Request headers the gateway requires on every call.
const (
	headerAuthorization = "Authorization"
	headerPlatform      = "x-infor-ionapi-platform"
	headerSource        = "x-infor-ionapi-source"
)

// expiryMargin keeps us from presenting a token about to lapse mid-flight.
const expiryMargin = 30 * time.Second

// EnvironmentSource resolves the ION base URL from the signed-on session.
type EnvironmentSource interface {
	GetEnvironmentContext(ctx context.Context) (*model.EnvironmentContext, error)
}

// Broker holds the cached ION client context and hands out fresh bearer
// tokens. Safe for concurrent use; at most one token fetch runs at a time
// and concurrent callers wait for its outcome.
type Broker struct {
	exec       transport.Executor
	tokenURL   string
	platform   string
	devBaseURL string
	retry      bool
	env        EnvironmentSource
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu         sync.Mutex
	current    *model.IonAPIContext
	devToken   string
	refreshing bool
	waiters    []chan refreshResult
}

type refreshResult struct {
	ctx *model.IonAPIContext
	err error
}

// NewBroker creates a broker. env resolves the ION base URL when no
// development URL is configured; logger and metrics may be nil.
func NewBroker(erpCfg config.ERPConfig, ionCfg config.IonConfig, exec transport.Executor, env EnvironmentSource, logger *zap.Logger, metrics *observability.Metrics) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		exec:       exec,
		tokenURL:   strings.TrimRight(erpCfg.BaseURL, "/") + ionCfg.TokenPath,
		platform:   ionCfg.Platform,
		devBaseURL: ionCfg.DevelopmentURL,
		retry:      ionCfg.RetryEnabled(),
		env:        env,
		logger:     logger,
		metrics:    metrics,
	}
}

// SetDevelopmentToken installs a fixed token for local development. It
// replaces the cached context token and suppresses fetching.
func (b *Broker) SetDevelopmentToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devToken = token
	if b.current != nil {
		b.current.Token = token
	}
}

// GetContext returns the ION client context, fetching a token when none is
// cached, the cached one has expired, or refresh is set.
func (b *Broker) GetContext(ctx context.Context, refresh bool) (*model.IonAPIContext, error) {
	b.mu.Lock()
	if b.current != nil && !refresh && tokenAlive(b.current.Token) {
		cached := *b.current
		b.mu.Unlock()
		return &cached, nil
	}
	done := make(chan refreshResult, 1)
	b.waiters = append(b.waiters, done)
	start := !b.refreshing
	if start {
		b.refreshing = true
	}
	b.mu.Unlock()

	if start {
		go b.refresh(context.WithoutCancel(ctx))
	}

	select {
	case res := <-done:
		return res.ctx, res.err
	case <-ctx.Done():
		return nil, model.NewTokenError("token fetch interrupted: " + ctx.Err().Error())
	}
}

// refresh resolves the base URL, fetches one token, and wakes every waiter
// with a copy of the outcome.
func (b *Broker) refresh(ctx context.Context) {
	ionCtx, err := b.buildContext(ctx)

	b.mu.Lock()
	if err == nil {
		b.current = ionCtx
	}
	waiters := b.waiters
	b.waiters = nil
	b.refreshing = false
	b.mu.Unlock()

	status := "ok"
	if err != nil {
		status = "error"
		b.logger.Warn("ion token refresh failed", zap.Error(err))
	} else {
		b.logger.Debug("ion token refreshed",
			zap.String("baseUrl", ionCtx.BaseURL),
			zap.String("token", observability.RedactToken(ionCtx.Token)))
	}
	b.metrics.RecordIONTokenRefresh(status)

	for _, w := range waiters {
		if err != nil {
			w <- refreshResult{err: err}
			continue
		}
		copied := *ionCtx
		w <- refreshResult{ctx: &copied}
	}
}

func (b *Broker) buildContext(ctx context.Context) (*model.IonAPIContext, error) {
	baseURL, err := b.resolveBaseURL(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	devToken := b.devToken
	b.mu.Unlock()
	if devToken != "" {
		return &model.IonAPIContext{BaseURL: baseURL, Token: devToken}, nil
	}

	token, err := b.fetchToken(ctx)
	if err != nil {
		return nil, err
	}
	return &model.IonAPIContext{BaseURL: baseURL, Token: token}, nil
}

// resolveBaseURL prefers the configured development URL and otherwise asks
// the environment for the tenant's ION address.
func (b *Broker) resolveBaseURL(ctx context.Context) (string, error) {
	if b.devBaseURL != "" {
		return strings.TrimRight(b.devBaseURL, "/"), nil
	}
	if b.env == nil {
		return "", model.NewTokenError("no ION base URL configured and no environment source available")
	}
	env, err := b.env.GetEnvironmentContext(ctx)
	if err != nil {
		return "", err
	}
	if env.IonAPIURL == "" {
		return "", model.NewTokenError("environment does not expose an ION API URL")
	}
	return strings.TrimRight(env.IonAPIURL, "/"), nil
}

func (b *Broker) fetchToken(ctx context.Context) (string, error) {
	resp, err := b.exec.Execute(ctx, &transport.Request{
		Method: "POST",
		URL:    b.tokenURL,
	})
	if err != nil {
		return "", model.NewTokenError("token endpoint unreachable: " + err.Error())
	}
	if !resp.IsSuccess() {
		return "", model.NewTokenError("token endpoint returned status " + strconv.Itoa(resp.Status))
	}
	token := strings.TrimSpace(string(resp.Body))
	if token == "" {
		return "", model.NewTokenError("token endpoint returned an empty token")
	}
	return token, nil
}

// tokenAlive reports whether the token's exp claim, if present and
// readable, lies safely in the future. Unparseable tokens count as alive
// and get weeded out by the 401 retry path instead.
func tokenAlive(token string) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return time.Until(exp.Time) > expiryMargin
}
