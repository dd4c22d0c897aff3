package model

import "strconv"

// Element is a generic node in a parsed markup document. The Form protocol
// is positional and attribute-heavy, so the decoder walks this tree rather
// than unmarshalling into fixed structs. Lookups are by local name; the
// server never uses namespaces.
type Element struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Element
}

// Attr returns the value of the named attribute, or "" if absent.
func (e *Element) Attr(name string) string {
	if e == nil || e.Attrs == nil {
		return ""
	}
	return e.Attrs[name]
}

// IntAttr returns the named attribute parsed as an integer, or def when the
// attribute is absent or not numeric.
func (e *Element) IntAttr(name string, def int) int {
	v := e.Attr(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Child returns the first child element with the given name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildText returns the text content of the first child with the given
// name, or "" if no such child exists.
func (e *Element) ChildText(name string) string {
	if c := e.Child(name); c != nil {
		return c.Text
	}
	return ""
}

// Select returns all child elements with the given name, in document order.
func (e *Element) Select(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
