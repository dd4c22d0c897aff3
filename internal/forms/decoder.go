package forms

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/varnlund/gridlink/model"
)

// Decoder turns Form protocol markup into FormResponse values. The control
// id counter is monotonically increasing for the life of one Decoder and
// is never reset, so repeated decodes of the same document differ only in
// assigned ids.
//
// Decoding is best effort: absent optional nodes yield absent or default
// fields. The only error condition is outer markup the XML parser rejects.
type Decoder struct {
	nextID int
}

// NewDecoder creates a new Decoder with a fresh id counter.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// elementDecoders maps panel object-list element names to their decode
// functions. Element kinds not in this table are skipped without error so
// newer servers can add kinds without breaking older clients.
var elementDecoders = map[string]func(*Decoder, *model.Element, *model.Panel){
	"Cap":         (*Decoder).decodeLabel,
	"EFld":        (*Decoder).decodeTextBox,
	"ChkBox":      (*Decoder).decodeCheckBox,
	"CmbBox":      (*Decoder).decodeComboBox,
	"Btn":         (*Decoder).decodeButton,
	"GrpBox":      (*Decoder).decodeGroupBox,
	"List":        (*Decoder).decodeList,
	"BasicOpts":   (*Decoder).decodeBasicOptions,
	"RelatedOpts": (*Decoder).decodeRelatedOptions,
	"PSeq":        (*Decoder).decodeSortingOrder,
}

// Decode parses and decodes one server reply. A document with no root
// element yields a response with default fields, never an error.
func (d *Decoder) Decode(markup string) (*model.FormResponse, error) {
	root, err := ParseMarkup(markup)
	if err != nil {
		return nil, err
	}

	resp := &model.FormResponse{}
	if root == nil {
		return resp, nil
	}
	resp.Document = root

	if sd := root.Child("SessionData"); sd != nil {
		resp.SessionID = strings.TrimSpace(sd.ChildText("SID"))
		// The instance id is only present on stateful replies.
		if iid := sd.Child("IID"); iid != nil {
			resp.InstanceID = strings.TrimSpace(iid.Text)
		}
		resp.PrincipalUser = strings.TrimSpace(sd.ChildText("User"))
		resp.Result = atoiDefault(sd.ChildText("Result"), 0)
		resp.Language = strings.TrimSpace(sd.ChildText("Lng"))
	} else {
		// Session-less replies carry result and message on the root.
		resp.Result = atoiDefault(root.ChildText("Result"), 0)
		resp.Message = strings.TrimSpace(root.ChildText("Message"))
	}

	if cd := root.Child("ControlData"); cd != nil {
		if msg := strings.TrimSpace(cd.ChildText("Msg")); msg != "" {
			resp.Message = msg
			resp.MessageID = strings.TrimSpace(cd.ChildText("MsgID"))
			resp.MessageLevel = strings.TrimSpace(cd.ChildText("MsgLvl"))
		}
		if dlg := cd.Child("OpenDialog"); dlg != nil {
			resp.IsDialog = true
			resp.DialogType = dlg.Attr("type")
		}
	}

	if ud := root.Child("UserData"); ud != nil {
		resp.UserData = make(map[string]string, len(ud.Children))
		for _, c := range ud.Children {
			resp.UserData[c.Name] = strings.TrimSpace(c.Text)
		}
	}

	for _, pe := range root.Select("Panel") {
		resp.Panels = append(resp.Panels, d.decodePanel(pe))
	}
	if len(resp.Panels) > 0 {
		resp.Panel = resp.Panels[0]
	}

	return resp, nil
}

// decodePanel walks the panel's object list in document order and builds
// every control the element table recognizes.
func (d *Decoder) decodePanel(pe *model.Element) *model.Panel {
	panel := &model.Panel{
		Name:        pe.Attr("name"),
		Header:      strings.TrimSpace(pe.ChildText("PHead")),
		Description: strings.TrimSpace(pe.ChildText("PDesc")),
		Controls:    make(map[string]*model.Control),
	}

	objList := pe.Child("ObjList")
	if objList == nil {
		return panel
	}
	for _, obj := range objList.Children {
		if decode, ok := elementDecoders[obj.Name]; ok {
			decode(d, obj, panel)
		}
	}
	return panel
}

// decorate runs the shared per-element decoration: id assignment, access
// flags, position, and constraint.
func (d *Decoder) decorate(e *model.Element, c *model.Control) {
	d.nextID++
	c.ID = d.nextID
	decodeAccess(e, c)
	c.Position = decodePosition(e)
	c.Constraint = decodeConstraint(e)
	c.TabIndex = e.IntAttr("tab", 0)
	c.FieldHelp = e.Attr("help")
}

// addControl appends the control to the panel's list and, when it has a
// name not already taken, to the name-indexed map. The first control wins
// a name; later duplicates remain reachable through the list only.
func addControl(panel *model.Panel, c *model.Control) {
	panel.ControlList = append(panel.ControlList, c)
	if c.Name == "" {
		return
	}
	if _, taken := panel.Controls[c.Name]; !taken {
		panel.Controls[c.Name] = c
	}
}

// syntheticName builds the positional fallback name for captions and group
// boxes that arrive without a usable id.
func syntheticName(prefix string, pos model.Position) string {
	return fmt.Sprintf("%s_L%dT%d", prefix, pos.Left, pos.Top)
}

// captionName applies the caption naming rule: an absent id, an id shorter
// than two characters, or an id colliding with an already-seen name falls
// back to the synthetic positional name.
func captionName(panel *model.Panel, id string, prefix string, pos model.Position) string {
	if len(id) < 2 {
		return syntheticName(prefix, pos)
	}
	if _, taken := panel.Controls[id]; taken {
		return syntheticName(prefix, pos)
	}
	return id
}

func (d *Decoder) decodeLabel(e *model.Element, panel *model.Panel) {
	c := &model.Control{Kind: model.KindLabel}
	d.decorate(e, c)
	c.Value = strings.TrimRight(e.Text, " \n\t")
	c.IsAdditionalInfo = e.Attr("addInfo") == "1"
	c.IsEmphasized = e.Attr("emp") == "1"
	c.Name = captionName(panel, e.Attr("id"), "LBL", c.Position)
	addControl(panel, c)
}

func (d *Decoder) decodeTextBox(e *model.Element, panel *model.Panel) {
	c := &model.Control{Kind: model.KindTextBox}
	d.decorate(e, c)
	c.Name = e.Attr("name")
	c.Value = strings.TrimRight(e.Text, " \n\t")
	c.IsDate = isDateField(e)
	c.ReferenceFile = e.Attr("refFile")
	addControl(panel, c)
}

func (d *Decoder) decodeCheckBox(e *model.Element, panel *model.Panel) {
	c := &model.Control{Kind: model.KindCheckBox}
	d.decorate(e, c)
	c.Name = e.Attr("name")
	c.Value = e.Attr("val")
	c.IsChecked = e.Attr("val") == "1"
	addControl(panel, c)
}

func (d *Decoder) decodeComboBox(e *model.Element, panel *model.Panel) {
	c := &model.Control{Kind: model.KindComboBox}
	d.decorate(e, c)
	c.Name = e.Attr("name")
	for _, opt := range e.Select("CBVal") {
		sel := opt.Attr("sel") == "1"
		c.Options = append(c.Options, model.SelectOption{
			Value:    opt.Attr("val"),
			Text:     strings.TrimSpace(opt.Text),
			Selected: sel,
		})
		if sel {
			c.Value = opt.Attr("val")
		}
	}
	addControl(panel, c)
}

func (d *Decoder) decodeButton(e *model.Element, panel *model.Panel) {
	c := &model.Control{Kind: model.KindButton}
	d.decorate(e, c)
	c.Name = e.Attr("name")
	c.Value = strings.TrimSpace(e.Attr("val"))
	c.Command = e.Attr("cmd")
	c.CommandValue = e.Attr("cmdVal")
	addControl(panel, c)
}

func (d *Decoder) decodeGroupBox(e *model.Element, panel *model.Panel) {
	c := &model.Control{Kind: model.KindGroupBox}
	d.decorate(e, c)
	c.Value = strings.TrimSpace(e.Text)
	c.Name = captionName(panel, e.Attr("id"), "GRP", c.Position)
	addControl(panel, c)
}

// decodeBasicOptions collects the panel's basic option lines. The last
// parsed option is popped and re-appended only when its value is not the
// sentinel "0"; that sentinel marks a related option in the source
// protocol, so it moves to the related list instead.
func (d *Decoder) decodeBasicOptions(e *model.Element, panel *model.Panel) {
	var opts []model.PanelOption
	for _, oe := range e.Select("POpt") {
		opts = append(opts, model.PanelOption{
			Value: oe.Attr("val"),
			Text:  strings.TrimSpace(oe.Text),
		})
	}
	if len(opts) > 0 {
		last := opts[len(opts)-1]
		opts = opts[:len(opts)-1]
		if last.Value != "0" {
			opts = append(opts, last)
		} else {
			panel.RelatedOptions = append(panel.RelatedOptions, last)
		}
	}
	panel.BasicOptions = append(panel.BasicOptions, opts...)
}

func (d *Decoder) decodeRelatedOptions(e *model.Element, panel *model.Panel) {
	for _, oe := range e.Select("POpt") {
		panel.RelatedOptions = append(panel.RelatedOptions, model.PanelOption{
			Value: oe.Attr("val"),
			Text:  strings.TrimSpace(oe.Text),
		})
	}
}

func (d *Decoder) decodeSortingOrder(e *model.Element, panel *model.Panel) {
	panel.SortingOrder = strings.TrimSpace(e.Text)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
