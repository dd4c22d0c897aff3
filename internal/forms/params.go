package forms

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/varnlund/gridlink/model"
)

// Bookmark parameter names of the Form wire format.
const (
	paramProgram           = "BM_PROGRAM"
	paramTable             = "BM_TABLE_NAME"
	paramPanel             = "BM_PANEL"
	paramKeys              = "BM_KEY_FIELDS"
	paramParameters        = "BM_PARAMETERS"
	paramFields            = "BM_START_PANEL_FIELDS"
	paramStartPanel        = "BM_START_PANEL"
	paramIncludeStartPanel = "BM_INCLUDE_START_PANEL"
	paramRequirePanel      = "BM_REQUIRE_PANEL"
	paramSuppressConfirm   = "BM_SUPPRESS_CONFIRM"
	paramOption            = "BM_OPTION"
	paramSortingOrder      = "BM_SORTING_ORDER"
	paramView              = "BM_VIEW"
	paramSource            = "BM_SOURCE"
	paramStateless         = "BM_STATELESS"

	// Customized-list extension, appended to the key string.
	keyInformationCategory = "INFORMATION_CATEGORY"
	keyNumberOfFilters     = "NUMBER_OF_FILTERS"
)

// EncodeBookmarkParams flattens a bookmark description into the wire
// parameter map. Exactly one of {KeyNames + Values, Keys} drives the key
// parameter; ParameterNames/Parameters and FieldNames/Fields follow the
// same pattern. uc supplies the company/division fallback for reference
// key fields and may be nil.
func EncodeBookmarkParams(bm *model.Bookmark, uc *model.UserContext) map[string]string {
	params := map[string]string{
		paramProgram: bm.Program,
	}
	if bm.Table != "" {
		params[paramTable] = bm.Table
	}
	if bm.Panel != "" {
		params[paramPanel] = bm.Panel
	}

	keys := bm.Keys
	if keys == "" && bm.KeyNames != "" {
		keys = EncodeValueList(bm.KeyNames, bm.Values, true, uc)
	}
	if bm.InformationCategory != "" {
		pairs := []string{
			keyInformationCategory, encodeParamValue(bm.InformationCategory),
			keyNumberOfFilters, strconv.Itoa(bm.NumberOfFilters),
		}
		ext := strings.Join(pairs, ",")
		if keys == "" {
			keys = ext
		} else {
			keys += "," + ext
		}
	}
	if keys != "" {
		params[paramKeys] = keys
	}

	parameters := bm.Parameters
	if parameters == "" && bm.ParameterNames != "" {
		parameters = EncodeValueList(bm.ParameterNames, bm.Values, false, nil)
	}
	if parameters != "" {
		params[paramParameters] = parameters
	}

	fields := bm.Fields
	if fields == "" && bm.FieldNames != "" {
		fields = EncodeValueList(bm.FieldNames, bm.Values, false, nil)
	}
	if fields != "" {
		params[paramFields] = fields
	}

	if bm.StartPanel != "" {
		params[paramStartPanel] = bm.StartPanel
	}
	if bm.IncludeStartPanel {
		params[paramIncludeStartPanel] = "True"
	}
	if bm.RequirePanel {
		params[paramRequirePanel] = "True"
	}
	if bm.SuppressConfirm {
		params[paramSuppressConfirm] = "True"
	}
	if bm.Option != "" {
		params[paramOption] = bm.Option
	}
	if bm.SortingOrder != "" {
		params[paramSortingOrder] = bm.SortingOrder
	}
	if bm.View != "" {
		params[paramView] = bm.View
	}
	if bm.Source != "" {
		params[paramSource] = bm.Source
	}
	if bm.IsStateless {
		params[paramStateless] = "True"
	}

	return params
}

// EncodeValueList resolves a comma-separated field-name list against the
// value map and returns name,URL-encoded-value pairs joined by commas.
//
// Key lists apply the reference-field fallback chain on a missing or empty
// value: first the name with its first two characters stripped (the server
// convention for reference fields, e.g. WWFACI resolves through FACI),
// then the ambient company/division when the stripped name is CONO or
// DIVI. Non-key lists substitute a single space without any fallback; the
// server requires the space for optional fields.
func EncodeValueList(names string, values map[string]string, isKeys bool, uc *model.UserContext) string {
	var parts []string
	for _, raw := range strings.Split(names, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		value := values[name]
		if value == "" && isKeys && len(name) > 2 {
			stripped := name[2:]
			value = values[stripped]
			if value == "" && uc != nil {
				switch stripped {
				case "CONO":
					value = uc.CurrentCompany
				case "DIVI":
					value = uc.CurrentDivision
				}
			}
		}
		if value == "" {
			value = " "
		}
		parts = append(parts, name, encodeParamValue(value))
	}
	return strings.Join(parts, ",")
}

// encodeParamValue URL-encodes one value the way the server expects:
// spaces become %20, never +.
func encodeParamValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// EncodeSearchParams flattens a search description into the wire parameter
// map. Program and Query must already be validated by the caller.
func EncodeSearchParams(sr *model.SearchRequest) map[string]string {
	params := map[string]string{
		"SEARCH_PROGRAM": sr.Program,
		"SEARCH_QUERY":   sr.Query,
	}
	if sr.SortingOrder != "" {
		params["SEARCH_SORTING_ORDER"] = sr.SortingOrder
	}
	if sr.View != "" {
		params["SEARCH_VIEW"] = sr.View
	}
	if len(sr.Filters) > 0 {
		params["SEARCH_FILTER_FIELDS"] = strings.Join(sr.Filters, ",")
	}
	if sr.StartPanel != "" {
		params["SEARCH_START_PANEL"] = sr.StartPanel
	}
	return params
}
