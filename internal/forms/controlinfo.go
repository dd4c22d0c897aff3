package forms

import "github.com/varnlund/gridlink/model"

// labelGapLimit is the widest gap, in grid columns, between a label's
// right edge and a control's left edge that still associates the two.
const labelGapLimit = 5

// additionalInfoSpan is how far right of a control's right edge an
// additional-info label may start.
const additionalInfoSpan = 2

// ControlInfo builds the control/label/additional-info triple for the
// named control. Label association is heuristic: the protocol carries no
// explicit link, so it is reconstructed from grid geometry on demand.
func ControlInfo(panel *model.Panel, name string) *model.ControlInfo {
	control := panel.Control(name)
	if control == nil {
		return nil
	}
	return &model.ControlInfo{
		Control:        control,
		Label:          associatedLabel(panel, control),
		AdditionalInfo: additionalInfoLabel(panel, control),
	}
}

// associatedLabel finds the label describing a control. First pass: labels
// on the same row strictly left of the control whose right edge lies
// within labelGapLimit columns of the control's left edge; the nearest one
// wins. Second pass: a non-additional-info label exactly one row above at
// the same left column.
func associatedLabel(panel *model.Panel, control *model.Control) *model.Control {
	var best *model.Control
	bestGap := labelGapLimit
	for _, c := range panel.ControlList {
		if c.Kind != model.KindLabel || c.Position.Top != control.Position.Top {
			continue
		}
		right := c.Position.Right()
		if right > control.Position.Left {
			continue
		}
		gap := control.Position.Left - right
		if gap < bestGap {
			best = c
			bestGap = gap
		}
	}
	if best != nil {
		return best
	}

	for _, c := range panel.ControlList {
		if c.Kind != model.KindLabel || c.IsAdditionalInfo {
			continue
		}
		if c.Position.Top == control.Position.Top-1 && c.Position.Left == control.Position.Left {
			return c
		}
	}
	return nil
}

// additionalInfoLabel finds a label flagged as additional info on the same
// row whose left edge lies within [right, right+additionalInfoSpan] of the
// control's right edge.
func additionalInfoLabel(panel *model.Panel, control *model.Control) *model.Control {
	right := control.Position.Right()
	for _, c := range panel.ControlList {
		if c.Kind != model.KindLabel || !c.IsAdditionalInfo {
			continue
		}
		if c.Position.Top != control.Position.Top {
			continue
		}
		if c.Position.Left >= right && c.Position.Left <= right+additionalInfoSpan {
			return c
		}
	}
	return nil
}
