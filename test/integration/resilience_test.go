package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/varnlund/gridlink/model"
)

func commandBody() map[string]string {
	return map[string]string{"commandType": "RUN", "commandValue": "MMS001"}
}

func TestBackendErrorSurfaced(t *testing.T) {
	h := NewHarness(t)
	h.ERP.SetFormStatus(http.StatusInternalServerError)

	resp := h.PostJSON("/api/form/command", commandBody())
	if resp.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want the backend status passed through", resp.Status)
	}
	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	resp.JSON(t, &body)
	if body.Error == nil || body.Error.Code != model.ErrTransportError {
		t.Errorf("error = %+v, want TRANSPORT_ERROR", body.Error)
	}
}

func TestBackendDownSurfacedAsUnavailable(t *testing.T) {
	h := NewHarness(t)
	h.ERP.server.Close()

	resp := h.PostJSON("/api/form/command", commandBody())
	if resp.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", resp.Status, resp.Body)
	}
	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	resp.JSON(t, &body)
	if body.Error == nil || body.Error.Code != model.ErrBackendUnavailable {
		t.Errorf("error = %+v, want BACKEND_UNAVAILABLE", body.Error)
	}
}

func TestBreakerShedsLoadAndRecovers(t *testing.T) {
	h := NewHarness(t, WithBreaker(2, 50*time.Millisecond))
	h.ERP.SetFormStatus(http.StatusInternalServerError)

	// Two consecutive 5xx replies trip the breaker.
	h.PostJSON("/api/form/command", commandBody())
	h.PostJSON("/api/form/command", commandBody())
	wireBefore := len(h.ERP.FormRequests())

	resp := h.PostJSON("/api/form/command", commandBody())
	if resp.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 while the breaker is open", resp.Status)
	}
	if got := len(h.ERP.FormRequests()); got != wireBefore {
		t.Errorf("wire requests grew from %d to %d while open", wireBefore, got)
	}

	// After the open interval the probe goes through and the gateway heals.
	h.ERP.SetFormStatus(0)
	h.ERP.OnForm("RUN", panelReply)
	time.Sleep(80 * time.Millisecond)

	resp = h.PostJSON("/api/form/command", commandBody())
	if resp.Status != http.StatusOK {
		t.Fatalf("status after recovery = %d: %s", resp.Status, resp.Body)
	}
}
