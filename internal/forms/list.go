package forms

import (
	"strings"

	"github.com/varnlund/gridlink/model"
)

// decodeList decodes a List node: column definitions first, then optional
// sub-columns, then rows.
func (d *Decoder) decodeList(e *model.Element, panel *model.Panel) {
	list := &model.List{}
	list.Control.Kind = model.KindList
	d.decorate(e, &list.Control)
	list.Control.Name = e.Attr("name")
	list.IsScrollToEnd = e.Attr("scrollEnd") == "1"

	if cols := e.Child("LCols"); cols != nil {
		for _, ce := range cols.Select("LCol") {
			list.Columns = append(list.Columns, d.decodeListColumn(ce))
		}
	}
	if subs := e.Child("LSubCols"); subs != nil {
		for _, ce := range subs.Select("LCol") {
			list.SubColumns = append(list.SubColumns, d.decodeListColumn(ce))
		}
	}
	if rows := e.Child("LRows"); rows != nil {
		for _, re := range rows.Select("LR") {
			row, ok := decodeListRow(re)
			if ok {
				list.Rows = append(list.Rows, row)
			}
		}
	}

	panel.List = list
	addControl(panel, &list.Control)
}

// decodeListColumn decodes one column definition. A column may embed a
// position-field control describing the editable cell template; the
// column's own field help overrides the embedded control's when both are
// present.
func (d *Decoder) decodeListColumn(ce *model.Element) model.ListColumn {
	col := model.ListColumn{
		Name:       ce.Attr("name"),
		Header:     strings.TrimSpace(ce.ChildText("LCHead")),
		Category:   ce.Attr("cat"),
		Width:      ce.IntAttr("width", 0),
		FieldHelp:  ce.Attr("help"),
		Constraint: decodeConstraint(ce),
	}

	if pf := ce.Child("EFld"); pf != nil {
		c := &model.Control{Kind: model.KindTextBox}
		d.decorate(pf, c)
		c.Name = pf.Attr("name")
		c.IsDate = isDateField(pf)
		if col.FieldHelp != "" {
			c.FieldHelp = col.FieldHelp
		}
		widenNumericEntry(c, col)
		col.PositionField = c
		col.IsEditable = c.IsEnabled
	}

	return col
}

// widenNumericEntry widens an editable numeric cell's max length over the
// column's constraint: one extra character for the sign, two when the
// column carries decimals (sign plus separator).
func widenNumericEntry(c *model.Control, col model.ListColumn) {
	if !c.Constraint.IsNumeric {
		return
	}
	width := 1
	if col.Constraint.MaxDecimals > 0 {
		width = 2
	}
	c.Constraint.MaxLength = col.Constraint.MaxLength + width
}

// decodeListRow decodes one data row. The row index is the 1-based numeric
// suffix of the row name minus one; rows without a non-negative derived
// index are dropped.
func decodeListRow(re *model.Element) (model.ListRow, bool) {
	name := re.Attr("name")
	index := rowIndex(name)
	if index < 0 {
		return model.ListRow{}, false
	}

	row := model.ListRow{
		Name:        name,
		Index:       index,
		IsSelected:  re.Attr("sel") == "1",
		IsProtected: re.Attr("prot") == "1",
	}
	for _, cell := range re.Select("LC") {
		row.Cells = append(row.Cells, model.ListCell{
			Text:       strings.TrimRight(cell.Text, " \n\t"),
			IsEnabled:  strings.Contains(cell.Attr("acc"), accWrite),
			IsEmphasis: cell.Attr("emp") == "1",
		})
	}
	return row, true
}

// rowIndex extracts the trailing digits of a row name and returns that
// value minus one, or -1 when the name carries no numeric suffix.
func rowIndex(name string) int {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return -1
	}
	return atoiDefault(name[i:], 0) - 1
}
