package model

import "time"

// MI field metadata types.
const (
	MITypeString  = "S"
	MITypeNumeric = "N"
	MITypeDate    = "D"
)

// MIFieldInfo describes one output field of an MI transaction, taken from
// the response metadata block.
type MIFieldInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Length      int    `json:"length"`
	Description string `json:"description,omitempty"`
}

// MIRequest describes one MI transaction call.
type MIRequest struct {
	Program     string            `json:"program"`
	Transaction string            `json:"transaction"`
	// Record holds the input fields sent as query parameters.
	Record map[string]string `json:"record,omitempty"`
	// OutputFields restricts the returned columns when non-empty.
	OutputFields []string `json:"outputFields,omitempty"`

	// MaxReturnedRecords defaults to 100 when zero. A negative value
	// requests an unbounded result.
	MaxReturnedRecords int `json:"maxReturnedRecords,omitempty"`
	// IncludeEmptyValues inverts the server's default of excluding empty
	// output fields.
	IncludeEmptyValues bool `json:"includeEmptyValues,omitempty"`
	// IncludeMetadata requests the per-field type metadata block.
	IncludeMetadata bool `json:"includeMetadata,omitempty"`
	// TypedOutput converts field text into numbers and dates according to
	// the metadata types. Implies IncludeMetadata.
	TypedOutput bool `json:"typedOutput,omitempty"`

	// Company and Division override the cached user-context values.
	Company  string `json:"company,omitempty"`
	Division string `json:"division,omitempty"`

	// DisableCSRF bypasses the security token for this single request.
	DisableCSRF bool `json:"disableCsrf,omitempty"`
}

// MIRecord is one decoded output record. Fields always holds the raw text
// values; Typed is populated only when typed output was requested, and
// Metadata only when metadata was requested.
type MIRecord struct {
	Fields   map[string]string       `json:"fields"`
	Typed    map[string]any          `json:"typed,omitempty"`
	Metadata map[string]*MIFieldInfo `json:"-"`
}

// NumberValue returns the typed numeric value of the named field. Missing
// or untyped fields return zero.
func (r *MIRecord) NumberValue(name string) float64 {
	if v, ok := r.Typed[name].(float64); ok {
		return v
	}
	return 0
}

// DateValue returns the typed date value of the named field, or the zero
// time when the field is absent or empty.
func (r *MIRecord) DateValue(name string) time.Time {
	if v, ok := r.Typed[name].(time.Time); ok {
		return v
	}
	return time.Time{}
}

// MIResponse is the decoded reply of one MI transaction call.
type MIResponse struct {
	Program     string `json:"program,omitempty"`
	Transaction string `json:"transaction,omitempty"`

	Items    []*MIRecord             `json:"items"`
	Metadata map[string]*MIFieldInfo `json:"metadata,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorField   string `json:"errorField,omitempty"`
	ErrorType    string `json:"errorType,omitempty"`

	// Tag carries the caller's correlation value through unchanged.
	Tag any `json:"tag,omitempty"`
}

// HasError reports whether any business-error indicator is set.
func (r *MIResponse) HasError() bool {
	return r.ErrorMessage != "" || r.ErrorCode != ""
}
