package model

// UserContext carries the ambient identity and tenancy values for one
// client instance: who is logged on, which company/division their session
// currently points at, and where the cloud gateway lives. It is mutated
// only by UpdateUserContext after a logon reply.
type UserContext struct {
	Principal       string `json:"principal,omitempty"`
	Company         string `json:"company,omitempty"`
	CurrentCompany  string `json:"currentCompany,omitempty"`
	Division        string `json:"division,omitempty"`
	CurrentDivision string `json:"currentDivision,omitempty"`
	Language        string `json:"language,omitempty"`
	DateFormat      string `json:"dateFormat,omitempty"`
	Tenant          string `json:"tenant,omitempty"`
	IonAPIURL       string `json:"ionApiUrl,omitempty"`
	ERPVersion      string `json:"erpVersion,omitempty"`
}

// Clone returns a copy so readers never observe concurrent mutation.
func (uc *UserContext) Clone() *UserContext {
	if uc == nil {
		return nil
	}
	c := *uc
	return &c
}

// UpdateUserContext merges the given key/value fields (from a logon reply's
// user-data block) and the principal user into the context. Unknown keys
// are ignored.
func (uc *UserContext) UpdateUserContext(fields map[string]string, principalUser string) {
	if principalUser != "" {
		uc.Principal = principalUser
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		switch key {
		case "Company", "CONO":
			uc.Company = value
			if uc.CurrentCompany == "" {
				uc.CurrentCompany = value
			}
		case "CurrentCompany":
			uc.CurrentCompany = value
		case "Division", "DIVI":
			uc.Division = value
			if uc.CurrentDivision == "" {
				uc.CurrentDivision = value
			}
		case "CurrentDivision":
			uc.CurrentDivision = value
		case "Language", "LANC":
			uc.Language = value
		case "DateFormat", "DTFM":
			uc.DateFormat = value
		case "Tenant":
			uc.Tenant = value
		case "IonApiUrl":
			uc.IonAPIURL = value
		case "Version":
			uc.ERPVersion = value
		}
	}
}

// Identity is the ambient user identity delivered by the identity source
// collaborator before logon.
type Identity struct {
	User    string            `json:"user"`
	Context map[string]string `json:"context,omitempty"`
}

// EnvironmentContext describes the backend environment, resolved through
// the Form protocol on demand.
type EnvironmentContext struct {
	IonAPIURL     string `json:"ionApiUrl,omitempty"`
	IsMultiTenant bool   `json:"isMultiTenant"`
	Version       string `json:"version,omitempty"`
}
