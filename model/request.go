package model

// FormRequest is one raw Form protocol request: a command plus url-encoded
// parameters. The session client fills in SID/IID/RID before dispatch.
type FormRequest struct {
	CommandType  string            `json:"commandType"`
	CommandValue string            `json:"commandValue,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
	// Resolve controls whether the reply markup is decoded into a
	// FormResponse; raw passthrough requests set it to false.
	Resolve bool `json:"-"`
}

// Bookmark is a declarative description of a Form program/panel/keys to
// open without manual navigation. Exactly one of {KeyNames + Values, Keys}
// drives the key parameter; ParameterNames/Parameters and
// FieldNames/Fields follow the same pattern.
type Bookmark struct {
	Program string `json:"program"`
	Table   string `json:"table,omitempty"`
	Panel   string `json:"panel,omitempty"`

	// KeyNames is a comma-separated field-name list resolved against
	// Values; Keys is the pre-encoded alternative.
	KeyNames string `json:"keyNames,omitempty"`
	Keys     string `json:"keys,omitempty"`

	ParameterNames string `json:"parameterNames,omitempty"`
	Parameters     string `json:"parameters,omitempty"`

	FieldNames string `json:"fieldNames,omitempty"`
	Fields     string `json:"fields,omitempty"`

	Values map[string]string `json:"values,omitempty"`

	StartPanel        string `json:"startPanel,omitempty"`
	IncludeStartPanel bool   `json:"includeStartPanel,omitempty"`
	RequirePanel      bool   `json:"requirePanel,omitempty"`
	SuppressConfirm   bool   `json:"suppressConfirm,omitempty"`
	Option            string `json:"option,omitempty"`
	SortingOrder      string `json:"sortingOrder,omitempty"`
	View              string `json:"view,omitempty"`
	Source            string `json:"source,omitempty"`
	IsStateless       bool   `json:"isStateless,omitempty"`

	// InformationCategory enables the customized-list extension; when set,
	// NumberOfFilters is appended as well, defaulting to zero.
	InformationCategory string `json:"informationCategory,omitempty"`
	NumberOfFilters     int    `json:"numberOfFilters,omitempty"`
}

// SearchRequest describes a Form protocol search. Program and Query are
// mandatory.
type SearchRequest struct {
	Program      string   `json:"program"`
	Query        string   `json:"query"`
	SortingOrder string   `json:"sortingOrder,omitempty"`
	View         string   `json:"view,omitempty"`
	Filters      []string `json:"filters,omitempty"`
	StartPanel   string   `json:"startPanel,omitempty"`
}

// TranslationItem is one language-constant lookup. File is optional; the
// server resolves unqualified keys against its default constant file.
type TranslationItem struct {
	Key  string `json:"key"`
	File string `json:"file,omitempty"`
	// Text is filled in on response.
	Text string `json:"text,omitempty"`
	// Target is an optional caller tag carried through untouched.
	Target string `json:"target,omitempty"`
}

// TranslationRequest is a batch of constant lookups in one language.
type TranslationRequest struct {
	Language string             `json:"language,omitempty"`
	Items    []*TranslationItem `json:"items"`
}

// TranslationResponse carries the resolved batch. Items are the same
// instances the caller supplied, with Text filled in.
type TranslationResponse struct {
	Language string             `json:"language,omitempty"`
	Items    []*TranslationItem `json:"items"`
}
