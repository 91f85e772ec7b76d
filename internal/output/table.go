package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Table is a list of rows under named columns. In text mode it renders as
// aligned columns; as JSON it is an array of objects keyed by column name.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given column names.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// RenderText implements TextRenderer.
func (t *Table) RenderText(w io.Writer) error {
	if len(t.headers) == 0 {
		return nil
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}

	lines := append([][]string{t.headers, rule}, t.rows...)
	for _, cells := range lines {
		if err := writeRow(w, cells, widths); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, cells []string, widths []int) error {
	var sb strings.Builder
	for i, cell := range cells {
		if i == len(cells)-1 {
			sb.WriteString(cell)
			break
		}
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+2))
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	return err
}

// MarshalJSON renders the rows as objects keyed by column name.
func (t *Table) MarshalJSON() ([]byte, error) {
	out := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		obj := make(map[string]string, len(t.headers))
		for i, h := range t.headers {
			obj[strings.ToLower(h)] = row[i]
		}
		out = append(out, obj)
	}
	return json.Marshal(out)
}

// Fields is an ordered list of labelled values rendered one per line.
type Fields []Field

// Field is one labelled value.
type Field struct {
	Label string
	Value string
}

// MarshalJSON renders the fields as an object keyed by label.
func (fs Fields) MarshalJSON() ([]byte, error) {
	obj := make(map[string]string, len(fs))
	for _, f := range fs {
		obj[f.Label] = f.Value
	}
	return json.Marshal(obj)
}

// RenderText implements TextRenderer.
func (fs Fields) RenderText(w io.Writer) error {
	width := 0
	for _, f := range fs {
		width = max(width, utf8.RuneCountInString(f.Label))
	}
	for _, f := range fs {
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(f.Label))
		if _, err := fmt.Fprintf(w, "%s:%s %s\n", f.Label, pad, f.Value); err != nil {
			return err
		}
	}
	return nil
}
