package mi

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/varnlund/gridlink/internal/transport"
	"github.com/varnlund/gridlink/model"
)

// csrfPath is the token endpoint relative to the MI base.
const csrfPath = "/csrf"

// ensureToken returns a usable security token, fetching a fresh one when
// the cached token has aged out. An empty token with a nil error means the
// server does not issue tokens and requests proceed without one.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.tokenStatus == 404 {
		// The endpoint does not exist on this server. Permanent; never retried.
		c.mu.Unlock()
		return "", nil
	}
	if c.token != "" && time.Since(c.tokenAt) < tokenMaxAge {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	done := make(chan error, 1)
	c.waiters = append(c.waiters, done)
	startRefresh := !c.refreshing
	if startRefresh {
		c.refreshing = true
	}
	c.mu.Unlock()

	if startRefresh {
		go c.refreshToken(context.WithoutCancel(ctx))
	}

	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
	case <-ctx.Done():
		return "", model.NewTokenError("security token fetch interrupted: " + ctx.Err().Error())
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	return token, nil
}

// refreshToken fetches one token and wakes every waiter with the outcome.
func (c *Client) refreshToken(ctx context.Context) {
	resp, err := c.exec.Execute(ctx, &transport.Request{
		Method: "GET",
		URL:    c.baseURL + csrfPath,
	})

	var refreshErr error
	c.mu.Lock()
	switch {
	case err != nil:
		c.token = ""
		refreshErr = model.NewTokenError("security token fetch failed: " + err.Error())
	case resp.Status == 404:
		c.token = ""
		c.tokenStatus = 404
	case resp.IsSuccess():
		c.token = strings.TrimSpace(string(resp.Body))
		c.tokenAt = time.Now()
		c.tokenStatus = resp.Status
	default:
		c.token = ""
		refreshErr = model.NewTokenError("security token endpoint returned status " + strconv.Itoa(resp.Status))
	}
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	disabled := c.tokenStatus == 404
	c.mu.Unlock()

	status := "ok"
	if refreshErr != nil {
		status = "error"
		c.logger.Warn("security token refresh failed", zap.Error(refreshErr))
	} else if disabled {
		status = "disabled"
		c.logger.Info("security token endpoint missing, tokens disabled")
	}
	c.metrics.RecordCSRFRefresh(status)

	for _, w := range waiters {
		w <- refreshErr
	}
}
