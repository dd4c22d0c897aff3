// Package forms implements the interactive Form protocol: markup decoding
// into the protocol data model, bookmark/search parameter encoding, the
// per-language translation cache, and the session client that orchestrates
// logon and request replay.
package forms

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/varnlund/gridlink/model"
)

// ParseMarkup parses a Form protocol reply into a generic element tree.
// Namespaces are discarded; the protocol addresses elements by local name
// only. A document without a root element returns (nil, nil) so the
// decoder can produce a default response; anything the XML parser rejects
// outright is a malformed-response error.
func ParseMarkup(markup string) (*model.Element, error) {
	dec := xml.NewDecoder(strings.NewReader(markup))
	// The server emits whatever encoding the session negotiated; pass
	// non-UTF-8 byte streams through untouched.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var root *model.Element
	var stack []*model.Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, model.NewMalformedResponseError("parsing markup: " + err.Error())
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &model.Element{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					el.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, model.NewMalformedResponseError("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, model.NewMalformedResponseError("unbalanced end element")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if len(stack) != 0 {
		return nil, model.NewMalformedResponseError("unterminated element")
	}
	return root, nil
}

// Access flag characters of the acc attribute.
//
//	W  write enabled
//	H  hidden
//	R  read disabled (value withheld from protected readers)
const (
	accWrite        = "W"
	accHidden       = "H"
	accReadDisabled = "R"
)

// decodeAccess derives the three access flags from an element's acc
// attribute. An absent attribute means visible but not editable.
func decodeAccess(e *model.Element, c *model.Control) {
	acc := e.Attr("acc")
	c.IsEnabled = strings.Contains(acc, accWrite)
	c.IsVisible = !strings.Contains(acc, accHidden)
	c.IsReadDisabled = strings.Contains(acc, accReadDisabled)
}

// decodePosition extracts the 1-indexed grid placement.
func decodePosition(e *model.Element) model.Position {
	return model.Position{
		Top:    e.IntAttr("top", 0),
		Left:   e.IntAttr("left", 0),
		Width:  e.IntAttr("width", 0),
		Height: e.IntAttr("height", 0),
	}
}

// decodeConstraint extracts the input validation rule. The type attribute
// packs flag characters: N numeric, U upper case, D date.
func decodeConstraint(e *model.Element) model.Constraint {
	typ := e.Attr("type")
	return model.Constraint{
		IsNumeric:   strings.Contains(typ, "N"),
		IsUpper:     strings.Contains(typ, "U"),
		MaxLength:   e.IntAttr("maxL", 0),
		MaxDecimals: e.IntAttr("maxD", 0),
	}
}

// isDateField reports whether the packed type attribute marks a date entry
// field.
func isDateField(e *model.Element) bool {
	return strings.Contains(e.Attr("type"), "D")
}
