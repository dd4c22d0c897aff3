package mi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/varnlund/gridlink/model"
)

// dateLayout is the wire format for date fields.
const dateLayout = "20060102"

type wireResponse struct {
	Program     string        `json:"Program"`
	Transaction string        `json:"Transaction"`
	Message     string        `json:"Message"`
	ErrorCode   string        `json:"@code"`
	ErrorField  string        `json:"@field"`
	ErrorType   string        `json:"@type"`
	Metadata    *wireMetadata `json:"Metadata"`
	Records     []wireRecord  `json:"MIRecord"`
}

type wireRecord struct {
	NameValue []wireNameValue `json:"NameValue"`
}

type wireNameValue struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type wireMetadata struct {
	Fields []wireField `json:"Field"`
}

type wireField struct {
	Name        string `json:"@name"`
	Type        string `json:"@type"`
	Length      int    `json:"@length"`
	Description string `json:"@description"`
}

// decodeResponse turns a raw reply body into records. A body the server
// produced but that does not parse yields a response still carrying the raw
// text so callers can log it.
func decodeResponse(body []byte, req *model.MIRequest) (*model.MIResponse, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		resp := &model.MIResponse{ErrorMessage: string(body)}
		return resp, model.NewMalformedResponseError("transaction reply is not valid JSON: " + err.Error())
	}

	resp := &model.MIResponse{
		ErrorCode:  wire.ErrorCode,
		ErrorField: wire.ErrorField,
		ErrorType:  wire.ErrorType,
	}
	if wire.Message != "" {
		resp.ErrorMessage = cleanMessage(wire.Message, wire.ErrorCode, wire.ErrorField)
	}

	metadata := decodeMetadata(wire.Metadata)
	if req.IncludeMetadata {
		resp.Metadata = metadata
	}

	for _, rec := range wire.Records {
		item := &model.MIRecord{Fields: make(map[string]string, len(rec.NameValue))}
		if req.IncludeMetadata {
			item.Metadata = metadata
		}
		if req.TypedOutput {
			item.Typed = make(map[string]any, len(rec.NameValue))
		}
		for _, nv := range rec.NameValue {
			name := strings.TrimSpace(nv.Name)
			if name == "" {
				continue
			}
			item.Fields[name] = nv.Value
			if req.TypedOutput {
				setTyped(item.Typed, name, nv.Value, metadata[name])
			}
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}

func decodeMetadata(wire *wireMetadata) map[string]*model.MIFieldInfo {
	if wire == nil || len(wire.Fields) == 0 {
		return nil
	}
	metadata := make(map[string]*model.MIFieldInfo, len(wire.Fields))
	for _, f := range wire.Fields {
		if f.Name == "" {
			continue
		}
		metadata[f.Name] = &model.MIFieldInfo{
			Name:        f.Name,
			Type:        f.Type,
			Length:      f.Length,
			Description: f.Description,
		}
	}
	return metadata
}

// setTyped stores the field value converted per its declared type. Fields
// without metadata fall back to trimmed text. Empty dates stay absent.
func setTyped(typed map[string]any, name, value string, info *model.MIFieldInfo) {
	trimmed := strings.TrimSpace(value)
	if info == nil {
		typed[name] = trimmed
		return
	}
	switch info.Type {
	case model.MITypeNumeric:
		if trimmed == "" {
			typed[name] = float64(0)
			return
		}
		n, err := strconv.ParseFloat(strings.Replace(trimmed, ",", ".", 1), 64)
		if err != nil {
			typed[name] = float64(0)
			return
		}
		typed[name] = n
	case model.MITypeDate:
		if trimmed == "" {
			return
		}
		t, err := time.Parse(dateLayout, trimmed)
		if err != nil {
			return
		}
		typed[name] = t
	default:
		typed[name] = trimmed
	}
}

// cleanMessage strips the structured code and field from the free-text
// message the server embeds them in, leaving just the human sentence.
func cleanMessage(msg, code, field string) string {
	for _, token := range []string{code, field} {
		if token == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, token, "")
	}
	msg = strings.Join(strings.Fields(msg), " ")
	return strings.TrimLeft(msg, ":- ")
}
