package sheet

import "fmt"

// Grid is the dense projection of a Document used by the rendering surface.
// Cells[r][c] is row r's value for Headers[c].
type Grid struct {
	Headers []string  `json:"headers"`
	Cells   [][]Value `json:"cells"`
}

// ToGrid materializes the document as a dense rectangle. Missing values are
// rendered as the empty string.
func ToGrid(d *Document) Grid {
	g := Grid{
		Headers: append([]string(nil), d.Headers...),
		Cells:   make([][]Value, len(d.Rows)),
	}
	for r, row := range d.Rows {
		cells := make([]Value, len(d.Headers))
		for c, h := range d.Headers {
			cells[c] = row[h]
		}
		g.Cells[r] = cells
	}
	return g
}

// FromGrid rebuilds a Document from a grid pulled off the rendering surface.
// Columns are matched by position: header text at position c becomes the
// label of column c. Ragged rows are padded with empty values or truncated.
func FromGrid(g Grid) (*Document, error) {
	headers := append([]string(nil), g.Headers...)
	if len(headers) == 0 {
		headers = []string{autoLabel(1)}
	}
	rows := make([]Row, len(g.Cells))
	for r, cells := range g.Cells {
		row := make(Row, len(headers))
		for c := range headers {
			label := headers[c]
			if label == "" {
				label = autoLabel(c + 1)
			}
			if c < len(cells) {
				row[label] = cells[c]
			}
		}
		rows[r] = row
	}
	d, err := NewDocument(headers, rows)
	if err != nil {
		return nil, fmt.Errorf("reconcile grid: %w", err)
	}
	return d, nil
}

// Strings renders the grid, header row first, as text cells.
func (g Grid) Strings() [][]string {
	out := make([][]string, 0, len(g.Cells)+1)
	out = append(out, append([]string(nil), g.Headers...))
	for _, cells := range g.Cells {
		line := make([]string, len(g.Headers))
		for c := range line {
			if c < len(cells) {
				line[c] = cells[c].String()
			}
		}
		out = append(out, line)
	}
	return out
}
