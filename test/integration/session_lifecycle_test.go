package integration

import (
	"net/http"
	"testing"

	"github.com/varnlund/gridlink/model"
)

const panelReply = `<?xml version="1.0" encoding="UTF-8"?>
<Root>
  <SessionData>
    <SID>sess-1</SID>
    <IID>inst-1</IID>
  </SessionData>
  <ControlData>
    <Msg>MMS001 Item. Open</Msg>
  </ControlData>
  <Panel name="MMS001B0">
    <PHead>MMS001/B1</PHead>
    <ObjList>
      <EFld name="W1ITNO" top="4" left="10" width="15" acc="W">AXC001</EFld>
    </ObjList>
  </Panel>
</Root>`

func TestSessionLifecycle(t *testing.T) {
	h := NewHarness(t)
	h.ERP.OnForm("RUN", panelReply)

	// The first command triggers a transparent logon.
	resp := h.PostJSON("/api/form/command", map[string]string{
		"commandType":  "RUN",
		"commandValue": "MMS001",
	})
	if resp.Status != http.StatusOK {
		t.Fatalf("command status = %d: %s", resp.Status, resp.Body)
	}

	var form model.FormResponse
	resp.JSON(t, &form)
	if form.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", form.SessionID)
	}
	if len(form.Panels) != 1 || form.Panels[0].Name != "MMS001B0" {
		t.Fatalf("panels = %+v", form.Panels)
	}
	if got := form.Panels[0].ControlValue("W1ITNO"); got != "AXC001" {
		t.Errorf("W1ITNO = %q", got)
	}

	if got := h.ERP.FormCommands(); len(got) != 2 || got[0] != "LOGON" || got[1] != "RUN" {
		t.Fatalf("wire commands = %v, want [LOGON RUN]", got)
	}
	logon := h.ERP.FormRequests()[0]
	if logon.Get("USID") != "TESTUSER" || logon.Get("LANC") != "GB" {
		t.Errorf("logon params = %v", logon)
	}
	run := h.ERP.FormRequests()[1]
	if run.Get("SID") != "sess-1" || run.Get("IID") != "inst-1" {
		t.Errorf("command session params = %v", run)
	}

	// The logon reply's user data is visible through the context endpoint.
	ucResp := h.Get("/api/form/usercontext")
	var uc model.UserContext
	ucResp.JSON(t, &uc)
	if uc.Company != "350" || uc.Division != "AAA" || uc.Language != "GB" {
		t.Errorf("user context = %+v", uc)
	}

	// A second command reuses the session without another logon.
	h.PostJSON("/api/form/command", map[string]string{"commandType": "RUN", "commandValue": "MMS001"})
	if got := h.ERP.FormCommands(); len(got) != 3 {
		t.Fatalf("wire commands after reuse = %v", got)
	}

	// Logoff quits the backend session; the next command logs on again.
	offResp := h.PostJSON("/api/form/logoff", nil)
	if offResp.Status != http.StatusOK {
		t.Fatalf("logoff status = %d", offResp.Status)
	}
	if got := h.ERP.FormCommands(); got[len(got)-1] != "QUIT" {
		t.Fatalf("wire commands after logoff = %v", got)
	}

	h.PostJSON("/api/form/command", map[string]string{"commandType": "RUN", "commandValue": "MMS001"})
	got := h.ERP.FormCommands()
	if got[len(got)-2] != "LOGON" || got[len(got)-1] != "RUN" {
		t.Fatalf("wire commands after re-logon = %v", got)
	}
}

func TestLogonFailureSurfacesBusinessError(t *testing.T) {
	h := NewHarness(t)
	h.ERP.OnForm("LOGON", `<Root><ControlData><Msg>User not authorized</Msg></ControlData></Root>`)

	resp := h.PostJSON("/api/form/command", map[string]string{"commandType": "RUN", "commandValue": "MMS001"})
	if resp.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", resp.Status, resp.Body)
	}
	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	resp.JSON(t, &body)
	if body.Error == nil || body.Error.Code != model.ErrBusinessError {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestEnvironmentEndpoint(t *testing.T) {
	h := NewHarness(t)
	h.ERP.OnForm("FNC", `<Root>
  <SessionData><SID>sess-1</SID></SessionData>
  <UserData>
    <IonApiUrl>https://ion.example.com/ACME</IonApiUrl>
    <MultiTenant>true</MultiTenant>
    <Version>15.1.4</Version>
  </UserData>
</Root>`)

	resp := h.Get("/api/form/environment")
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Status, resp.Body)
	}
	var env model.EnvironmentContext
	resp.JSON(t, &env)
	if env.IonAPIURL != "https://ion.example.com/ACME" || !env.IsMultiTenant || env.Version != "15.1.4" {
		t.Errorf("environment = %+v", env)
	}

	// The result is memoized; a second call stays off the wire.
	before := len(h.ERP.FormRequests())
	h.Get("/api/form/environment")
	if after := len(h.ERP.FormRequests()); after != before {
		t.Errorf("wire requests grew from %d to %d", before, after)
	}
}
