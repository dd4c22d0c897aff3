package forms

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/internal/transport"
	"github.com/varnlund/gridlink/model"
)

const logonReply = `<Root>
  <SessionData><SID>sess-1</SID><IID>inst-1</IID><User>TESTUSER</User><Lng>GB</Lng></SessionData>
  <UserData><Company>350</Company><CurrentCompany>350</CurrentCompany></UserData>
</Root>`

// fakeExecutor records every request and answers through a handler func.
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

func commandOf(t *testing.T, req *transport.Request) url.Values {
	t.Helper()
	values, err := url.ParseQuery(req.Body)
	if err != nil {
		t.Fatalf("parsing request body: %v", err)
	}
	return values
}

func newTestClient(exec transport.Executor) *Client {
	cfg := config.ERPConfig{BaseURL: "https://erp.example.com", FormPath: "/mne/servlet/MvxMCSvt"}
	identity := IdentityFunc(func(context.Context) (*model.Identity, error) {
		return &model.Identity{User: "TESTUSER", Context: map[string]string{"LANC": "GB"}}, nil
	})
	return NewClient(cfg, exec, identity, nil, nil)
}

func okResponse(body string) *transport.Response {
	return &transport.Response{Status: 200, Body: []byte(body)}
}

func TestClient_logonThenDispatch(t *testing.T) {
	exec := &fakeExecutor{handler: func(req *transport.Request) (*transport.Response, error) {
		return okResponse(logonReply), nil
	}}
	c := newTestClient(exec)

	resp, err := c.ExecuteCommand(context.Background(), "RUN", "MMS200")
	if err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", resp.SessionID)
	}

	reqs := exec.recorded()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want logon plus command", len(reqs))
	}
	logon := commandOf(t, reqs[0])
	if logon.Get("CMDTP") != "LOGON" || logon.Get("USID") != "TESTUSER" || logon.Get("LANC") != "GB" {
		t.Errorf("logon params = %v", logon)
	}
	cmd := commandOf(t, reqs[1])
	if cmd.Get("CMDTP") != "RUN" || cmd.Get("CMDVAL") != "MMS200" {
		t.Errorf("command params = %v", cmd)
	}
	if cmd.Get("SID") != "sess-1" || cmd.Get("IID") != "inst-1" {
		t.Errorf("session ids not forwarded: %v", cmd)
	}
	if cmd.Get("RID") == "" {
		t.Error("request id missing")
	}

	if uc := c.UserContext(); uc.CurrentCompany != "350" || uc.Principal != "TESTUSER" {
		t.Errorf("user context = %+v", uc)
	}
}

func TestClient_pendingFIFO(t *testing.T) {
	release := make(chan struct{})
	exec := &fakeExecutor{}
	exec.handler = func(req *transport.Request) (*transport.Response, error) {
		values, _ := url.ParseQuery(req.Body)
		if values.Get("CMDTP") == "LOGON" {
			<-release
			return okResponse(logonReply), nil
		}
		// Echo the command value back so the caller can be identified.
		return okResponse(`<Root><SessionData><SID>sess-1</SID></SessionData>
            <ControlData><Msg>` + values.Get("CMDVAL") + `</Msg></ControlData></Root>`), nil
	}
	c := newTestClient(exec)

	var wg sync.WaitGroup
	results := make([]*model.FormResponse, 3)
	for i, cmdVal := range []string{"FIRST", "SECOND", "THIRD"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.ExecuteCommand(context.Background(), "RUN", cmdVal)
			if err != nil {
				t.Errorf("%s: %v", cmdVal, err)
				return
			}
			results[i] = resp
		}()
		// Wait for this call to join the queue before issuing the next, so
		// submission order is deterministic.
		waitFor(t, func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return len(c.pending) == i+1
		})
	}

	close(release)
	wg.Wait()

	for i, want := range []string{"FIRST", "SECOND", "THIRD"} {
		if results[i] == nil || results[i].Message != want {
			t.Errorf("result %d = %+v, want message %q", i, results[i], want)
		}
	}

	reqs := exec.recorded()
	if len(reqs) != 4 {
		t.Fatalf("requests = %d, want 1 logon + 3 commands", len(reqs))
	}
	for i, want := range []string{"FIRST", "SECOND", "THIRD"} {
		got := commandOf(t, reqs[i+1]).Get("CMDVAL")
		if got != want {
			t.Errorf("wire order %d = %q, want %q", i, got, want)
		}
	}
}

func TestClient_logonFailureRejectsQueued(t *testing.T) {
	release := make(chan struct{})
	exec := &fakeExecutor{}
	exec.handler = func(req *transport.Request) (*transport.Response, error) {
		<-release
		return nil, model.NewBackendUnavailableError()
	}
	c := newTestClient(exec)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.ExecuteCommand(context.Background(), "RUN", "X")
		}()
		waitFor(t, func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return len(c.pending) == i+1
		})
	}

	close(release)
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			t.Fatalf("call %d: expected error", i)
		}
		ee, ok := err.(*model.ErrorEnvelope)
		if !ok || ee.Code != model.ErrBackendUnavailable {
			t.Errorf("call %d: error = %v", i, err)
		}
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != stateNoSession {
		t.Errorf("state = %d, want no session after failure", state)
	}
}

func TestClient_logonRejectedByServer(t *testing.T) {
	exec := &fakeExecutor{handler: func(*transport.Request) (*transport.Response, error) {
		return okResponse(`<Root><Result>8</Result><Message>User not authorized</Message></Root>`), nil
	}}
	c := newTestClient(exec)

	_, err := c.ExecuteCommand(context.Background(), "RUN", "X")
	if err == nil {
		t.Fatal("expected error")
	}
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok || ee.Code != model.ErrBusinessError {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(ee.Message, "User not authorized") {
		t.Errorf("message = %q", ee.Message)
	}
}

func TestClient_logonCoalesces(t *testing.T) {
	release := make(chan struct{})
	exec := &fakeExecutor{}
	exec.handler = func(*transport.Request) (*transport.Response, error) {
		<-release
		return okResponse(logonReply), nil
	}
	c := newTestClient(exec)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Logon(context.Background()); err != nil {
				t.Errorf("Logon: %v", err)
			}
		}()
	}
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.logonWaiters) == 5
	})

	close(release)
	wg.Wait()

	if n := len(exec.recorded()); n != 1 {
		t.Errorf("logon requests = %d, want 1", n)
	}

	// An established session makes further logons trivial.
	if err := c.Logon(context.Background()); err != nil {
		t.Errorf("repeat Logon: %v", err)
	}
	if n := len(exec.recorded()); n != 1 {
		t.Errorf("requests after repeat = %d, want still 1", n)
	}
}

func TestClient_logoff(t *testing.T) {
	exec := &fakeExecutor{handler: func(*transport.Request) (*transport.Response, error) {
		return okResponse(logonReply), nil
	}}
	c := newTestClient(exec)

	if err := c.Logon(context.Background()); err != nil {
		t.Fatalf("Logon: %v", err)
	}
	if err := c.Logoff(context.Background()); err != nil {
		t.Fatalf("Logoff: %v", err)
	}

	reqs := exec.recorded()
	quit := commandOf(t, reqs[len(reqs)-1])
	if quit.Get("CMDTP") != "QUIT" || quit.Get("SID") != "sess-1" {
		t.Errorf("quit = %v", quit)
	}

	c.mu.Lock()
	state, sid := c.state, c.sessionID
	c.mu.Unlock()
	if state != stateNoSession || sid != "" {
		t.Errorf("state = %d sid = %q after logoff", state, sid)
	}

	// Logoff without a session is a no-op.
	before := len(exec.recorded())
	if err := c.Logoff(context.Background()); err != nil {
		t.Fatalf("second Logoff: %v", err)
	}
	if len(exec.recorded()) != before {
		t.Error("logoff without session hit the wire")
	}
}

func TestClient_environmentMemoized(t *testing.T) {
	exec := &fakeExecutor{}
	exec.handler = func(req *transport.Request) (*transport.Response, error) {
		values, _ := url.ParseQuery(req.Body)
		if values.Get("CMDTP") == "LOGON" {
			return okResponse(logonReply), nil
		}
		if values.Get("CMDVAL") != "EXPORT_ENVIRONMENT" {
			t.Errorf("unexpected command: %v", values)
		}
		return okResponse(`<Root><SessionData><SID>sess-1</SID></SessionData>
          <UserData>
            <IonApiUrl>https://ion.example.com/TENANT</IonApiUrl>
            <MultiTenant>true</MultiTenant>
            <Version>16.7</Version>
          </UserData></Root>`), nil
	}
	c := newTestClient(exec)

	env, err := c.GetEnvironmentContext(context.Background())
	if err != nil {
		t.Fatalf("GetEnvironmentContext: %v", err)
	}
	if env.IonAPIURL != "https://ion.example.com/TENANT" || !env.IsMultiTenant || env.Version != "16.7" {
		t.Errorf("env = %+v", env)
	}

	before := len(exec.recorded())
	if _, err := c.GetEnvironmentContext(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(exec.recorded()) != before {
		t.Error("memoized environment hit the wire again")
	}
}

func TestClient_validation(t *testing.T) {
	c := newTestClient(&fakeExecutor{handler: func(*transport.Request) (*transport.Response, error) {
		t.Error("validation error should not reach the wire")
		return nil, errors.New("unreachable")
	}})

	cases := []func() error{
		func() error { _, err := c.ExecuteCommand(context.Background(), "", ""); return err },
		func() error { _, err := c.ExecuteRequest(context.Background(), nil); return err },
		func() error { _, err := c.ExecuteBookmark(context.Background(), &model.Bookmark{}); return err },
		func() error { _, err := c.ExecuteSearch(context.Background(), &model.SearchRequest{}); return err },
	}
	for i, call := range cases {
		err := call()
		ee, ok := err.(*model.ErrorEnvelope)
		if !ok || ee.Code != model.ErrValidationError {
			t.Errorf("case %d: error = %v", i, err)
		}
	}
}

func TestClient_transportErrorStatus(t *testing.T) {
	exec := &fakeExecutor{handler: func(req *transport.Request) (*transport.Response, error) {
		values, _ := url.ParseQuery(req.Body)
		if values.Get("CMDTP") == "LOGON" {
			return okResponse(logonReply), nil
		}
		return &transport.Response{Status: 500, Body: []byte("boom")}, nil
	}}
	c := newTestClient(exec)

	_, err := c.ExecuteCommand(context.Background(), "RUN", "X")
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok || ee.Code != model.ErrTransportError {
		t.Fatalf("error = %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
