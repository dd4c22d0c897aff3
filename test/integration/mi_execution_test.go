package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/varnlund/gridlink/model"
)

const itemReply = `{
	"Program": "MMS200MI",
	"Transaction": "GetItmBasic",
	"Metadata": {
		"Field": [
			{"@name": "ITNO", "@type": "S", "@length": 15, "@description": "Item number"},
			{"@name": "GRWE", "@type": "N", "@length": 12}
		]
	},
	"MIRecord": [
		{"NameValue": [
			{"Name": "ITNO", "Value": "AXC001  "},
			{"Name": "GRWE", "Value": "12,5"}
		]}
	]
}`

func TestMIExecution(t *testing.T) {
	h := NewHarness(t)
	h.ERP.OnMI("MMS200MI", "GetItmBasic", 200, itemReply)

	resp := h.Get("/api/mi/MMS200MI/GetItmBasic?ITNO=AXC001&_typed=true&_maxrecs=1")
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Status, resp.Body)
	}

	var mir model.MIResponse
	resp.JSON(t, &mir)
	if len(mir.Items) != 1 {
		t.Fatalf("items = %+v", mir.Items)
	}
	rec := mir.Items[0]
	if rec.Fields["ITNO"] != "AXC001  " {
		t.Errorf("raw ITNO = %q, want untrimmed text", rec.Fields["ITNO"])
	}
	if got, ok := rec.Typed["ITNO"].(string); !ok || got != "AXC001" {
		t.Errorf("typed ITNO = %v", rec.Typed["ITNO"])
	}
	if rec.NumberValue("GRWE") != 12.5 {
		t.Errorf("typed GRWE = %v, want 12.5", rec.Typed["GRWE"])
	}

	reqs := h.ERP.MIRequests()
	if len(reqs) != 1 {
		t.Fatalf("MI wire requests = %d, want 1", len(reqs))
	}
	wire := reqs[0]
	if got := wire.Header.Get("fnd-csrf-token"); got != "erp-csrf-token" {
		t.Errorf("security token header = %q", got)
	}
	if !strings.Contains(wire.URL.Path, ";maxrecs=1;") {
		t.Errorf("wire path = %s, want maxrecs=1", wire.URL.Path)
	}
	if got := wire.URL.Query().Get("ITNO"); got != "AXC001" {
		t.Errorf("wire ITNO = %q", got)
	}
}

func TestMIBusinessError(t *testing.T) {
	h := NewHarness(t)
	h.ERP.OnMI("MMS200MI", "GetItmBasic", 200, `{
		"Program": "MMS200MI",
		"Transaction": "GetItmBasic",
		"Message": "Item AXC009 does not exist",
		"@code": "CPF9898",
		"@type": "error"
	}`)

	resp := h.Get("/api/mi/MMS200MI/GetItmBasic?ITNO=AXC009")
	if resp.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", resp.Status, resp.Body)
	}
	var mir model.MIResponse
	resp.JSON(t, &mir)
	if mir.ErrorCode != "CPF9898" || mir.ErrorMessage == "" {
		t.Errorf("error fields = %q/%q", mir.ErrorCode, mir.ErrorMessage)
	}
}

func TestMICSRFDisabledByServer(t *testing.T) {
	h := NewHarness(t)
	h.ERP.SetCSRF(404, "")
	h.ERP.OnMI("MMS200MI", "GetItmBasic", 200, itemReply)

	resp := h.Get("/api/mi/MMS200MI/GetItmBasic?ITNO=AXC001")
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Status, resp.Body)
	}
	wire := h.ERP.MIRequests()[0]
	if got := wire.Header.Get("fnd-csrf-token"); got != "" {
		t.Errorf("token header = %q, want none after a 404 from the token endpoint", got)
	}
}
