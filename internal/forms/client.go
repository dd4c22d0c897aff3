package forms

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/internal/observability"
	"github.com/varnlund/gridlink/internal/transport"
	"github.com/varnlund/gridlink/model"
)

// Form protocol commands.
const (
	commandLogon    = "LOGON"
	commandQuit     = "QUIT"
	commandRun      = "RUN"
	commandFunction = "FNC"

	commandValueBookmark = "BOOKMARK"
	commandValueSearch   = "SEARCH"
)

// IdentitySource delivers the ambient user identity used for logon. The
// concrete transport (host-window messaging, SSO cookie, static config) is
// outside the client's concern; a source that cannot produce an identity
// before ctx expires returns an error.
type IdentitySource interface {
	Identity(ctx context.Context) (*model.Identity, error)
}

// IdentityFunc adapts a function to the IdentitySource interface.
type IdentityFunc func(ctx context.Context) (*model.Identity, error)

// Identity implements IdentitySource.
func (f IdentityFunc) Identity(ctx context.Context) (*model.Identity, error) {
	return f(ctx)
}

type sessionState int

const (
	stateNoSession sessionState = iota
	stateLoggingOn
	stateHasSession
)

type pendingResult struct {
	resp *model.FormResponse
	err  error
}

// pendingRequest is a Form request queued while no session exists. The
// done channel is buffered so an abandoned caller never blocks the drain.
type pendingRequest struct {
	req  *model.FormRequest
	done chan pendingResult
}

// Client is the Form protocol session client. It serializes logon, queues
// requests issued before a session exists, and replays them in strict FIFO
// order once logon succeeds. All exported methods are safe for concurrent
// use.
type Client struct {
	exec     transport.Executor
	formURL  string
	identity IdentitySource
	logger   *zap.Logger
	metrics  *observability.Metrics

	decoder      *Decoder
	translations *TranslationCache

	mu           sync.Mutex
	state        sessionState
	sessionID    string
	instanceID   string
	user         *model.Identity
	userCtx      *model.UserContext
	pending      []*pendingRequest
	logonWaiters []chan error

	envMu       sync.Mutex
	env         *model.EnvironmentContext
	envInFlight bool
	envWaiters  []chan pendingResult
}

// NewClient creates a Form client. logger and metrics may be nil.
func NewClient(cfg config.ERPConfig, exec transport.Executor, identity IdentitySource, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		exec:         exec,
		formURL:      strings.TrimRight(cfg.BaseURL, "/") + cfg.FormPath,
		identity:     identity,
		logger:       logger,
		metrics:      metrics,
		decoder:      NewDecoder(),
		translations: NewTranslationCache(metrics),
		userCtx:      &model.UserContext{},
	}
}

// UserContext returns a copy of the ambient user context.
func (c *Client) UserContext() *model.UserContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userCtx.Clone()
}

// UpdateUserContext merges fields and the principal user into the ambient
// user context.
func (c *Client) UpdateUserContext(fields map[string]string, principalUser string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userCtx.UpdateUserContext(fields, principalUser)
}

// ExecuteCommand runs one Form command through the session.
func (c *Client) ExecuteCommand(ctx context.Context, commandType, commandValue string) (*model.FormResponse, error) {
	if commandType == "" {
		return nil, model.NewValidationError(model.FieldError{Field: "commandType", Message: "command type is required"})
	}
	return c.ExecuteWithSession(ctx, &model.FormRequest{
		CommandType:  commandType,
		CommandValue: commandValue,
		Resolve:      true,
	})
}

// ExecuteRequest runs a caller-built Form request through the session.
func (c *Client) ExecuteRequest(ctx context.Context, req *model.FormRequest) (*model.FormResponse, error) {
	if req == nil || req.CommandType == "" {
		return nil, model.NewValidationError(model.FieldError{Field: "commandType", Message: "command type is required"})
	}
	return c.ExecuteWithSession(ctx, req)
}

// ExecuteBookmark opens the program/panel the bookmark describes.
func (c *Client) ExecuteBookmark(ctx context.Context, bm *model.Bookmark) (*model.FormResponse, error) {
	if bm == nil || bm.Program == "" {
		return nil, model.NewValidationError(model.FieldError{Field: "program", Message: "bookmark program is required"})
	}
	params := EncodeBookmarkParams(bm, c.UserContext())
	return c.ExecuteWithSession(ctx, &model.FormRequest{
		CommandType:  commandRun,
		CommandValue: commandValueBookmark,
		Params:       params,
		Resolve:      true,
	})
}

// ExecuteSearch runs a Form search. Program and query are mandatory.
func (c *Client) ExecuteSearch(ctx context.Context, sr *model.SearchRequest) (*model.FormResponse, error) {
	var details []model.FieldError
	if sr == nil || sr.Program == "" {
		details = append(details, model.FieldError{Field: "program", Message: "search program is required"})
	}
	if sr == nil || sr.Query == "" {
		details = append(details, model.FieldError{Field: "query", Message: "search query is required"})
	}
	if len(details) > 0 {
		return nil, model.NewValidationError(details...)
	}
	return c.ExecuteWithSession(ctx, &model.FormRequest{
		CommandType:  commandRun,
		CommandValue: commandValueSearch,
		Params:       EncodeSearchParams(sr),
		Resolve:      true,
	})
}

// ExecuteWithSession dispatches immediately when a session exists;
// otherwise it queues the request in submission order and triggers logon
// if none is in flight. Once a request is queued it cannot be cancelled;
// a caller that stops waiting abandons the eventual result.
func (c *Client) ExecuteWithSession(ctx context.Context, req *model.FormRequest) (*model.FormResponse, error) {
	c.mu.Lock()
	if c.state == stateHasSession {
		c.mu.Unlock()
		return c.dispatch(ctx, req)
	}

	p := &pendingRequest{req: req, done: make(chan pendingResult, 1)}
	c.pending = append(c.pending, p)
	depth := len(c.pending)
	startLogon := c.state == stateNoSession
	if startLogon {
		c.state = stateLoggingOn
	}
	c.mu.Unlock()

	c.metrics.SetPendingQueueDepth(depth)
	if startLogon {
		go c.runLogon(context.WithoutCancel(ctx))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-p.done:
		return r.resp, r.err
	}
}

// Logon establishes a session. It succeeds trivially when a session
// already exists, and coalesces onto an in-flight logon otherwise.
func (c *Client) Logon(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateHasSession {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan error, 1)
	c.logonWaiters = append(c.logonWaiters, ch)
	start := c.state == stateNoSession
	if start {
		c.state = stateLoggingOn
	}
	c.mu.Unlock()

	if start {
		go c.runLogon(context.WithoutCancel(ctx))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-ch:
		return err
	}
}

// Logoff issues a QUIT command. The session state flips to NoSession
// immediately, without waiting for server confirmation.
func (c *Client) Logoff(ctx context.Context) error {
	c.mu.Lock()
	sid, iid := c.sessionID, c.instanceID
	c.state = stateNoSession
	c.sessionID = ""
	c.instanceID = ""
	c.mu.Unlock()

	if sid == "" {
		return nil
	}
	_, err := c.send(ctx, &model.FormRequest{CommandType: commandQuit}, sid, iid)
	return err
}

// Translate resolves a batch of language constants through the
// per-language cache, issuing at most one server request for the misses.
func (c *Client) Translate(ctx context.Context, req *model.TranslationRequest) (*model.TranslationResponse, error) {
	return c.translations.Translate(ctx, req, c.ExecuteWithSession)
}

// GetEnvironmentContext resolves the backend environment through the Form
// protocol. The result is memoized; concurrent callers share one in-flight
// lookup.
func (c *Client) GetEnvironmentContext(ctx context.Context) (*model.EnvironmentContext, error) {
	c.envMu.Lock()
	if c.env != nil {
		env := *c.env
		c.envMu.Unlock()
		return &env, nil
	}
	ch := make(chan pendingResult, 1)
	c.envWaiters = append(c.envWaiters, ch)
	start := !c.envInFlight
	if start {
		c.envInFlight = true
	}
	c.envMu.Unlock()

	if start {
		go c.runEnvironmentLookup(context.WithoutCancel(ctx))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return environmentFromResponse(r.resp), nil
	}
}

func (c *Client) runEnvironmentLookup(ctx context.Context) {
	resp, err := c.ExecuteCommand(ctx, commandFunction, "EXPORT_ENVIRONMENT")

	c.envMu.Lock()
	if err == nil {
		env := environmentFromResponse(resp)
		c.env = env
	}
	waiters := c.envWaiters
	c.envWaiters = nil
	c.envInFlight = false
	c.envMu.Unlock()

	for _, ch := range waiters {
		ch <- pendingResult{resp: resp, err: err}
	}
}

func environmentFromResponse(resp *model.FormResponse) *model.EnvironmentContext {
	env := &model.EnvironmentContext{}
	if resp == nil {
		return env
	}
	env.IonAPIURL = resp.UserData["IonApiUrl"]
	env.IsMultiTenant = strings.EqualFold(resp.UserData["MultiTenant"], "true")
	env.Version = resp.UserData["Version"]
	return env
}

// runLogon obtains the ambient identity, issues the LOGON command, and on
// success drains the pending queue strictly in FIFO order, one request in
// flight at a time. On failure every queued request and logon waiter is
// rejected with the same error.
func (c *Client) runLogon(ctx context.Context) {
	err := c.performLogon(ctx)

	if err != nil {
		c.metrics.RecordLogon("error")
		c.failLogon(err)
		return
	}
	c.metrics.RecordLogon("ok")

	c.mu.Lock()
	waiters := c.logonWaiters
	c.logonWaiters = nil
	c.mu.Unlock()
	for _, ch := range waiters {
		ch <- nil
	}

	c.drainPending(ctx)
}

func (c *Client) performLogon(ctx context.Context) error {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()

	if user == nil {
		id, err := c.identity.Identity(ctx)
		if err != nil {
			return model.NewTokenError("obtaining user identity: " + err.Error())
		}
		c.mu.Lock()
		c.user = id
		c.mu.Unlock()
		user = id
	}

	req := &model.FormRequest{CommandType: commandLogon, Resolve: true, Params: map[string]string{}}
	if user.User != "" {
		req.Params["USID"] = user.User
	}
	for k, v := range user.Context {
		req.Params[k] = v
	}

	resp, err := c.send(ctx, req, "", "")
	if err != nil {
		return err
	}
	if resp.SessionID == "" {
		msg := resp.Message
		if msg == "" {
			msg = "logon rejected by server"
		}
		return model.NewBusinessError(msg)
	}

	c.mu.Lock()
	c.state = stateHasSession
	c.sessionID = resp.SessionID
	c.instanceID = resp.InstanceID
	c.userCtx.UpdateUserContext(resp.UserData, resp.PrincipalUser)
	c.mu.Unlock()

	c.logger.Info("form session established",
		zap.String("session_id", resp.SessionID),
		zap.String("principal", resp.PrincipalUser),
	)
	return nil
}

func (c *Client) failLogon(err error) {
	c.mu.Lock()
	c.state = stateNoSession
	waiters := c.logonWaiters
	c.logonWaiters = nil
	queued := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.metrics.SetPendingQueueDepth(0)
	c.logger.Error("form logon failed", zap.Error(err), zap.Int("rejected", len(queued)))
	for _, ch := range waiters {
		ch <- err
	}
	for _, p := range queued {
		p.done <- pendingResult{err: err}
	}
}

func (c *Client) drainPending(ctx context.Context) {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		p := c.pending[0]
		c.pending = c.pending[1:]
		depth := len(c.pending)
		c.mu.Unlock()

		c.metrics.SetPendingQueueDepth(depth)
		resp, err := c.dispatch(ctx, p.req)
		p.done <- pendingResult{resp: resp, err: err}
	}
}

// dispatch sends one request through the established session.
func (c *Client) dispatch(ctx context.Context, req *model.FormRequest) (*model.FormResponse, error) {
	c.mu.Lock()
	sid, iid := c.sessionID, c.instanceID
	c.mu.Unlock()
	return c.send(ctx, req, sid, iid)
}

// send performs the protocol POST and decodes the reply. Responses that
// carry a session or instance id update the cached ids; the session id
// persists until an explicit logoff.
func (c *Client) send(ctx context.Context, req *model.FormRequest, sid, iid string) (*model.FormResponse, error) {
	values := url.Values{}
	values.Set("CMDTP", req.CommandType)
	if req.CommandValue != "" {
		values.Set("CMDVAL", req.CommandValue)
	}
	if sid != "" {
		values.Set("SID", sid)
	}
	if iid != "" {
		values.Set("IID", iid)
	}
	values.Set("RID", uuid.NewString())
	for k, v := range req.Params {
		values.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.exec.Execute(ctx, &transport.Request{
		Method: "POST",
		URL:    c.formURL,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		},
		Body: values.Encode(),
	})
	if err != nil {
		c.metrics.RecordFormRequest(req.CommandType, "error", time.Since(start))
		return nil, err
	}
	if !httpResp.IsSuccess() {
		c.metrics.RecordFormRequest(req.CommandType, "error", time.Since(start))
		return nil, model.NewTransportError(httpResp.Status, "form request failed")
	}
	c.metrics.RecordFormRequest(req.CommandType, "ok", time.Since(start))

	if !req.Resolve {
		return &model.FormResponse{}, nil
	}

	resp, err := c.decoder.Decode(string(httpResp.Body))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if resp.SessionID != "" {
		c.sessionID = resp.SessionID
	}
	if resp.InstanceID != "" {
		c.instanceID = resp.InstanceID
	}
	c.mu.Unlock()

	return resp, nil
}
