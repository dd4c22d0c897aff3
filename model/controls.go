package model

// ControlKind identifies the closed set of control variants the Form
// protocol can describe. Unknown element kinds are skipped during decode,
// so no "other" kind exists.
type ControlKind int

const (
	KindLabel ControlKind = iota
	KindTextBox
	KindCheckBox
	KindComboBox
	KindButton
	KindGroupBox
	KindList
)

// String returns the lower-case kind name.
func (k ControlKind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindTextBox:
		return "textbox"
	case KindCheckBox:
		return "checkbox"
	case KindComboBox:
		return "combobox"
	case KindButton:
		return "button"
	case KindGroupBox:
		return "groupbox"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Position is a 1-indexed grid placement. Zero values mean the attribute
// was absent from the markup.
type Position struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right returns the first grid column to the right of the element.
func (p Position) Right() int {
	return p.Left + p.Width
}

// Constraint is an input validation rule attached to an editable control.
// MaxDecimals is only meaningful when IsNumeric is set.
type Constraint struct {
	IsNumeric   bool `json:"isNumeric"`
	IsUpper     bool `json:"isUpper"`
	MaxLength   int  `json:"maxLength"`
	MaxDecimals int  `json:"maxDecimals"`
}

// SelectOption is one entry of a combo box.
type SelectOption struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Selected bool   `json:"selected,omitempty"`
}

// Control is one interactive or display element of a panel. The Kind field
// selects the variant; fields that do not apply to a variant are left at
// their zero value. ID is decoder-assigned and monotonically increasing
// within one decoder instance.
type Control struct {
	ID         int         `json:"id"`
	Kind       ControlKind `json:"kind"`
	Name       string      `json:"name"`
	Value      string      `json:"value,omitempty"`
	FieldHelp  string      `json:"fieldHelp,omitempty"`
	Position   Position    `json:"position"`
	Constraint Constraint  `json:"constraint"`
	TabIndex   int         `json:"tabIndex,omitempty"`

	IsEnabled      bool `json:"isEnabled"`
	IsVisible      bool `json:"isVisible"`
	IsReadDisabled bool `json:"isReadDisabled,omitempty"`

	// Entry fields.
	IsDate        bool   `json:"isDate,omitempty"`
	ReferenceFile string `json:"referenceFile,omitempty"`

	// Labels.
	IsAdditionalInfo bool `json:"isAdditionalInfo,omitempty"`
	IsEmphasized     bool `json:"isEmphasized,omitempty"`

	// Check boxes.
	IsChecked bool `json:"isChecked,omitempty"`

	// Combo boxes.
	Options []SelectOption `json:"options,omitempty"`

	// Buttons.
	Command      string `json:"command,omitempty"`
	CommandValue string `json:"commandValue,omitempty"`
}

// ControlInfo pairs a control with its associated label and, when present,
// the additional-info label placed to its right. Built on demand by the
// Form client, not at decode time.
type ControlInfo struct {
	Control        *Control `json:"control"`
	Label          *Control `json:"label,omitempty"`
	AdditionalInfo *Control `json:"additionalInfo,omitempty"`
}
