package model

// Column category codes carried in the markup. The category determines how
// a cell value is interpreted for sorting and typed access.
const (
	ColumnCategoryString  = "S"
	ColumnCategoryNumeric = "N"
	ColumnCategoryDate    = "D"
	ColumnCategoryBoolean = "B"
)

// ListColumn is one column definition of a List control. A column may carry
// an embedded position-field control describing the editable cell template.
type ListColumn struct {
	Name       string     `json:"name"`
	Header     string     `json:"header,omitempty"`
	Category   string     `json:"category,omitempty"`
	Width      int        `json:"width,omitempty"`
	FieldHelp  string     `json:"fieldHelp,omitempty"`
	Constraint Constraint `json:"constraint"`
	IsEditable bool       `json:"isEditable,omitempty"`
	// PositionField is the embedded entry-field template, nil for
	// display-only columns.
	PositionField *Control `json:"positionField,omitempty"`
}

// IsNumeric reports whether cell values in this column are numbers.
func (c *ListColumn) IsNumeric() bool {
	return c.Category == ColumnCategoryNumeric || c.Constraint.IsNumeric
}

// IsDate reports whether cell values in this column are dates.
func (c *ListColumn) IsDate() bool {
	return c.Category == ColumnCategoryDate
}

// IsBoolean reports whether cell values in this column are flags.
func (c *ListColumn) IsBoolean() bool {
	return c.Category == ColumnCategoryBoolean
}

// ListCell is one cell of a list row.
type ListCell struct {
	Text       string `json:"text"`
	IsEnabled  bool   `json:"isEnabled,omitempty"`
	IsEmphasis bool   `json:"isEmphasis,omitempty"`
}

// ListRow is one data row. Index is derived from the 1-based numeric suffix
// of the row name, minus one; rows whose derived index is negative are
// dropped during decode.
type ListRow struct {
	Name        string     `json:"name"`
	Index       int        `json:"index"`
	Cells       []ListCell `json:"cells"`
	IsSelected  bool       `json:"isSelected,omitempty"`
	IsProtected bool       `json:"isProtected,omitempty"`
}

// List is the tabular control variant: ordered column definitions, optional
// sub-columns, and ordered rows.
type List struct {
	Control    Control      `json:"control"`
	Columns    []ListColumn `json:"columns"`
	SubColumns []ListColumn `json:"subColumns,omitempty"`
	Rows       []ListRow    `json:"rows"`
	// IsScrollToEnd indicates that the server positioned the list at its
	// final page.
	IsScrollToEnd bool `json:"isScrollToEnd,omitempty"`
}

// Column returns the column definition with the given name, or nil.
func (l *List) Column(name string) *ListColumn {
	for i := range l.Columns {
		if l.Columns[i].Name == name {
			return &l.Columns[i]
		}
	}
	return nil
}

// Cell returns the cell at the given row for the named column, or nil when
// either the column or the row is out of range.
func (l *List) Cell(row int, column string) *ListCell {
	if row < 0 || row >= len(l.Rows) {
		return nil
	}
	for i := range l.Columns {
		if l.Columns[i].Name == column {
			cells := l.Rows[row].Cells
			if i < len(cells) {
				return &cells[i]
			}
			return nil
		}
	}
	return nil
}
