package model

// PanelOption is a basic or related option line of a panel.
type PanelOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Panel is one screen or dialog panel. Controls and ControlList refer to
// the same control instances: the map gives name lookup, the slice keeps
// decode order. Name is unique within the map.
type Panel struct {
	Name        string `json:"name"`
	Header      string `json:"header,omitempty"`
	Description string `json:"description,omitempty"`

	Controls    map[string]*Control `json:"controls"`
	ControlList []*Control          `json:"controlList"`

	// List is the panel's tabular control, nil when the panel has none.
	List *List `json:"list,omitempty"`

	BasicOptions   []PanelOption `json:"basicOptions,omitempty"`
	RelatedOptions []PanelOption `json:"relatedOptions,omitempty"`
	SortingOrder   string        `json:"sortingOrder,omitempty"`
}

// Control returns the named control, or nil when the panel has no control
// with that name.
func (p *Panel) Control(name string) *Control {
	if p == nil || p.Controls == nil {
		return nil
	}
	return p.Controls[name]
}

// ControlValue returns the value of the named control, or "" when absent.
func (p *Panel) ControlValue(name string) string {
	if c := p.Control(name); c != nil {
		return c.Value
	}
	return ""
}

// FormResponse is one decoded server reply. Panels holds every decoded
// panel in document order; Panel caches the first one. An empty Panels
// slice means the reply carried no panel data.
type FormResponse struct {
	SessionID  string `json:"sessionId,omitempty"`
	InstanceID string `json:"instanceId,omitempty"`
	Result     int    `json:"result"`

	Message      string `json:"message,omitempty"`
	MessageID    string `json:"messageId,omitempty"`
	MessageLevel string `json:"messageLevel,omitempty"`

	IsDialog   bool   `json:"isDialog,omitempty"`
	DialogType string `json:"dialogType,omitempty"`

	Panels []*Panel `json:"panels"`
	Panel  *Panel   `json:"panel,omitempty"`

	Language      string            `json:"language,omitempty"`
	PrincipalUser string            `json:"principalUser,omitempty"`
	UserData      map[string]string `json:"userData,omitempty"`

	// Document is the parsed markup root, retained so callers can read
	// protocol extensions the decoder does not model.
	Document *Element `json:"-"`
}

// HasPanel reports whether the response carries at least one panel.
func (r *FormResponse) HasPanel() bool {
	return len(r.Panels) > 0
}
