package forms

import (
	"testing"

	"github.com/varnlund/gridlink/model"
)

func labelAt(name, text string, top, left, width int, addInfo bool) *model.Control {
	return &model.Control{
		Kind:             model.KindLabel,
		Name:             name,
		Value:            text,
		Position:         model.Position{Top: top, Left: left, Width: width},
		IsAdditionalInfo: addInfo,
	}
}

func fieldAt(name string, top, left, width int) *model.Control {
	return &model.Control{
		Kind:     model.KindTextBox,
		Name:     name,
		Position: model.Position{Top: top, Left: left, Width: width},
	}
}

func panelWith(controls ...*model.Control) *model.Panel {
	panel := &model.Panel{Controls: make(map[string]*model.Control)}
	for _, c := range controls {
		panel.ControlList = append(panel.ControlList, c)
		if c.Name != "" {
			if _, taken := panel.Controls[c.Name]; !taken {
				panel.Controls[c.Name] = c
			}
		}
	}
	return panel
}

func TestControlInfo_sameRowLabel(t *testing.T) {
	lbl := labelAt("LBL1", "Item", 4, 1, 8, false)
	fld := fieldAt("WWITNO", 4, 11, 16)
	panel := panelWith(lbl, fld)

	info := ControlInfo(panel, "WWITNO")
	if info == nil || info.Label != lbl {
		t.Fatalf("info = %+v", info)
	}
}

func TestControlInfo_nearestLabelWins(t *testing.T) {
	far := labelAt("FAR", "Far", 4, 1, 6, false)    // right edge 7, gap 4
	near := labelAt("NEAR", "Near", 4, 8, 2, false) // right edge 10, gap 1
	fld := fieldAt("WWITNO", 4, 11, 16)
	panel := panelWith(far, near, fld)

	info := ControlInfo(panel, "WWITNO")
	if info.Label != near {
		t.Errorf("label = %+v, want nearest", info.Label)
	}
}

func TestControlInfo_gapTooWide(t *testing.T) {
	lbl := labelAt("LBL1", "Item", 4, 1, 5, false) // right edge 6, gap 5
	fld := fieldAt("WWITNO", 4, 11, 16)
	panel := panelWith(lbl, fld)

	info := ControlInfo(panel, "WWITNO")
	if info.Label != nil {
		t.Errorf("label = %+v, want none at gap limit", info.Label)
	}
}

func TestControlInfo_labelRowAbove(t *testing.T) {
	above := labelAt("ABOVE", "Item", 3, 11, 8, false)
	addInfo := labelAt("EXTRA", "extra", 3, 11, 8, true)
	fld := fieldAt("WWITNO", 4, 11, 16)

	info := ControlInfo(panelWith(above, fld), "WWITNO")
	if info.Label != above {
		t.Errorf("label = %+v, want row above", info.Label)
	}

	// Additional-info labels never act as row-above labels.
	info = ControlInfo(panelWith(addInfo, fld), "WWITNO")
	if info.Label != nil {
		t.Errorf("label = %+v, want none", info.Label)
	}
}

func TestControlInfo_additionalInfo(t *testing.T) {
	fld := fieldAt("WWITNO", 4, 11, 16) // right edge 27
	within := labelAt("UNIT", "pcs", 4, 28, 3, true)
	beyond := labelAt("FARUNIT", "each", 4, 30, 4, true)

	info := ControlInfo(panelWith(fld, within), "WWITNO")
	if info.AdditionalInfo != within {
		t.Errorf("additional info = %+v", info.AdditionalInfo)
	}

	info = ControlInfo(panelWith(fld, beyond), "WWITNO")
	if info.AdditionalInfo != nil {
		t.Errorf("additional info = %+v, want none past span", info.AdditionalInfo)
	}
}

func TestControlInfo_unknownControl(t *testing.T) {
	if info := ControlInfo(panelWith(), "MISSING"); info != nil {
		t.Errorf("info = %+v, want nil", info)
	}
}
