package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// MockERP simulates the legacy application server: the Form servlet, the
// MI REST endpoint with its security token, and the OAuth token endpoint.
// All received requests are recorded for later assertion.
type MockERP struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.Mutex
	formStatus   int
	formReplies  map[string][]string
	miReplies    map[string][]*miReply
	csrfToken    string
	csrfStatus   int
	oauthToken   string
	oauthStatus  int
	formRequests []url.Values
	miRequests   []*http.Request
}

type miReply struct {
	status int
	body   string
}

// NewMockERP starts a mock application server. By default logons succeed,
// the security token endpoint serves a fixed token, and the OAuth endpoint
// serves a fixed bearer token.
func NewMockERP(t *testing.T) *MockERP {
	t.Helper()
	m := &MockERP{
		t:           t,
		formReplies: make(map[string][]string),
		miReplies:   make(map[string][]*miReply),
		csrfToken:   "erp-csrf-token",
		csrfStatus:  200,
		oauthToken:  "erp-oauth-token",
		oauthStatus: 200,
	}
	m.OnForm("LOGON", defaultLogonReply)
	m.server = httptest.NewServer(http.HandlerFunc(m.serveHTTP))
	t.Cleanup(m.server.Close)
	return m
}

// URL returns the mock server's base URL.
func (m *MockERP) URL() string { return m.server.URL }

const defaultLogonReply = `<?xml version="1.0" encoding="UTF-8"?>
<Root>
  <SessionData>
    <SID>sess-1</SID>
    <IID>inst-1</IID>
    <User>TESTUSER</User>
  </SessionData>
  <UserData>
    <Company>350</Company>
    <Division>AAA</Division>
    <Language>GB</Language>
  </UserData>
</Root>`

// OnForm queues replies for a Form protocol command. Replies are consumed
// in order; the last one repeats.
func (m *MockERP) OnForm(commandType string, replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.formReplies[commandType] = replies
}

// OnMI queues a reply for an MI program/transaction pair.
func (m *MockERP) OnMI(program, transaction string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := program + "/" + transaction
	m.miReplies[key] = append(m.miReplies[key], &miReply{status: status, body: body})
}

// SetFormStatus makes the Form servlet answer with a fixed HTTP status.
// Zero restores normal replies.
func (m *MockERP) SetFormStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.formStatus = status
}

// SetCSRF overrides the security token endpoint behavior.
func (m *MockERP) SetCSRF(status int, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.csrfStatus = status
	m.csrfToken = token
}

// SetOAuth overrides the OAuth token endpoint behavior.
func (m *MockERP) SetOAuth(status int, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oauthStatus = status
	m.oauthToken = token
}

// FormRequests returns the decoded bodies of all Form protocol posts.
func (m *MockERP) FormRequests() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.formRequests...)
}

// FormCommands returns the CMDTP sequence received so far.
func (m *MockERP) FormCommands() []string {
	var out []string
	for _, v := range m.FormRequests() {
		out = append(out, v.Get("CMDTP"))
	}
	return out
}

// MIRequests returns all requests received on the MI endpoint.
func (m *MockERP) MIRequests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.miRequests...)
}

func (m *MockERP) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/mne/servlet/MvxMCSvt"):
		m.serveForm(w, r)
	case r.URL.Path == "/m3api-rest/csrf":
		m.serveCSRF(w)
	case strings.HasPrefix(r.URL.Path, "/m3api-rest/execute/"):
		m.serveMI(w, r)
	case r.URL.Path == "/grid/rest/security/sessions/oauth":
		m.serveOAuth(w)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockERP) serveForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.formRequests = append(m.formRequests, r.PostForm)
	if m.formStatus != 0 {
		status := m.formStatus
		m.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	cmd := r.PostForm.Get("CMDTP")
	replies := m.formReplies[cmd]
	var reply string
	switch {
	case len(replies) == 0:
		reply = fmt.Sprintf(`<Root><ControlData><Msg>no reply configured for %s</Msg></ControlData></Root>`, cmd)
	case len(replies) == 1:
		reply = replies[0]
	default:
		reply = replies[0]
		m.formReplies[cmd] = replies[1:]
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(reply))
}

func (m *MockERP) serveCSRF(w http.ResponseWriter) {
	m.mu.Lock()
	status, token := m.csrfStatus, m.csrfToken
	m.mu.Unlock()
	w.WriteHeader(status)
	if status == 200 {
		w.Write([]byte(token))
	}
}

func (m *MockERP) serveMI(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.miRequests = append(m.miRequests, r.Clone(r.Context()))
	// Path: /m3api-rest/execute/{program}/{transaction};matrix params.
	rest := strings.TrimPrefix(r.URL.Path, "/m3api-rest/execute/")
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		rest = rest[:i]
	}
	replies := m.miReplies[rest]
	var reply *miReply
	switch {
	case len(replies) == 0:
		reply = &miReply{status: 404, body: `{"Message":"no reply configured"}`}
	case len(replies) == 1:
		reply = replies[0]
	default:
		reply = replies[0]
		m.miReplies[rest] = replies[1:]
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.status)
	w.Write([]byte(reply.body))
}

func (m *MockERP) serveOAuth(w http.ResponseWriter) {
	m.mu.Lock()
	status, token := m.oauthStatus, m.oauthToken
	m.mu.Unlock()
	w.WriteHeader(status)
	if status == 200 {
		w.Write([]byte(token))
	}
}
