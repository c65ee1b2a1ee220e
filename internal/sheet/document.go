package sheet

import (
	"fmt"
	"strconv"

	"github.com/mohae/deepcopy"
)

// Row maps header labels to cell values. Keys of removed headers may still be
// present in the map; only labels in the current header sequence are read.
type Row map[string]Value

// Document is the canonical tabular store: an ordered header sequence and an
// ordered list of label-keyed rows.
type Document struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// NewDocument normalizes loaded data into a Document. Every row ends up with
// exactly the header keys, absent ones defaulting to the empty string. Empty
// labels become "Column N" by position and an empty header list becomes a
// single "Column 1".
func NewDocument(headers []string, rows []Row) (*Document, error) {
	labels, err := normalizeHeaders(headers)
	if err != nil {
		return nil, err
	}
	d := &Document{Headers: labels}
	d.Rows = make([]Row, 0, len(rows))
	for _, src := range rows {
		row := make(Row, len(d.Headers))
		for _, h := range d.Headers {
			row[h] = src[h]
		}
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

// CheckHeaders reports whether headers would be accepted as a header row:
// after empty labels are replaced by position, every label must be unique.
func CheckHeaders(headers []string) error {
	_, err := normalizeHeaders(headers)
	return err
}

func normalizeHeaders(headers []string) ([]string, error) {
	if len(headers) == 0 {
		return []string{autoLabel(1)}, nil
	}
	out := make([]string, 0, len(headers))
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		if h == "" {
			h = autoLabel(i + 1)
		}
		if seen[h] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateHeader, h)
		}
		seen[h] = true
		out = append(out, h)
	}
	return out, nil
}

func autoLabel(n int) string {
	return "Column " + strconv.Itoa(n)
}

func (d *Document) RowCount() int { return len(d.Rows) }
func (d *Document) ColCount() int { return len(d.Headers) }

// ColumnIndex returns the position of a header label.
func (d *Document) ColumnIndex(label string) (int, bool) {
	for i, h := range d.Headers {
		if h == label {
			return i, true
		}
	}
	return -1, false
}

func (d *Document) hasHeader(label string) bool {
	_, ok := d.ColumnIndex(label)
	return ok
}

func (d *Document) checkRow(row int) error {
	if row < 0 || row >= len(d.Rows) {
		return fmt.Errorf("%w: row %d of %d", ErrOutOfRange, row, len(d.Rows))
	}
	return nil
}

// Label returns the header label of column col.
func (d *Document) Label(col int) (string, error) {
	if col < 0 || col >= len(d.Headers) {
		return "", fmt.Errorf("%w: column %d of %d", ErrInvalidColumn, col, len(d.Headers))
	}
	return d.Headers[col], nil
}

// GetCell reads row's value for label.
func (d *Document) GetCell(row int, label string) (Value, error) {
	if err := d.checkRow(row); err != nil {
		return Value{}, err
	}
	if !d.hasHeader(label) {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidColumn, label)
	}
	return d.Rows[row][label], nil
}

// Get reads the value at a coordinate.
func (d *Document) Get(c Coord) (Value, error) {
	label, err := d.Label(c.Col)
	if err != nil {
		return Value{}, err
	}
	return d.GetCell(c.Row, label)
}

// SetCell writes row's value for label and returns the previous value.
func (d *Document) SetCell(row int, label string, v Value) (Value, error) {
	if err := d.checkRow(row); err != nil {
		return Value{}, err
	}
	if !d.hasHeader(label) {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidColumn, label)
	}
	prev := d.Rows[row][label]
	d.Rows[row][label] = v
	return prev, nil
}

func (d *Document) emptyRow() Row {
	row := make(Row, len(d.Headers))
	for _, h := range d.Headers {
		row[h] = Value{}
	}
	return row
}

// insertRow places row at index at. A nil row is filled with empty values.
func (d *Document) insertRow(at int, row Row) {
	if row == nil {
		row = d.emptyRow()
	}
	d.Rows = append(d.Rows, nil)
	copy(d.Rows[at+1:], d.Rows[at:])
	d.Rows[at] = row
}

// removeRow deletes row index and returns its values in header order.
func (d *Document) removeRow(index int) []Value {
	row := d.Rows[index]
	values := make([]Value, len(d.Headers))
	for c, h := range d.Headers {
		values[c] = row[h]
	}
	d.Rows = append(d.Rows[:index], d.Rows[index+1:]...)
	return values
}

// rowOf keys values by the current headers, position for position.
func (d *Document) rowOf(values []Value) Row {
	row := d.emptyRow()
	for c, h := range d.Headers {
		if c < len(values) {
			row[h] = values[c]
		}
	}
	return row
}

// freeLabel returns label, or a fresh "Column N" when label is taken.
func (d *Document) freeLabel(label string) string {
	if label == "" || d.hasHeader(label) {
		return d.nextAutoLabel()
	}
	return label
}

// nextAutoLabel returns "Column N" with N one past the header count, bumped
// further while it collides with an existing label.
func (d *Document) nextAutoLabel() string {
	for n := len(d.Headers) + 1; ; n++ {
		if label := autoLabel(n); !d.hasHeader(label) {
			return label
		}
	}
}

// insertColumn places label at position at. values holds one value per row;
// nil fills the column with empty strings.
func (d *Document) insertColumn(at int, label string, values []Value) {
	d.Headers = append(d.Headers, "")
	copy(d.Headers[at+1:], d.Headers[at:])
	d.Headers[at] = label
	for i, row := range d.Rows {
		var v Value
		if values != nil {
			v = values[i]
		}
		row[label] = v
	}
}

func (d *Document) removeColumn(index int) (string, []Value) {
	label := d.Headers[index]
	values := make([]Value, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[label]
		delete(row, label)
	}
	d.Headers = append(d.Headers[:index], d.Headers[index+1:]...)
	return label, values
}

// Records returns the rows restricted to the current headers, ready to be
// sent to the persistence endpoint.
func (d *Document) Records() []map[string]Value {
	out := make([]map[string]Value, len(d.Rows))
	for i, row := range d.Rows {
		rec := make(map[string]Value, len(d.Headers))
		for _, h := range d.Headers {
			rec[h] = row[h]
		}
		out[i] = rec
	}
	return out
}

// Clone returns a deep copy detached from later edits.
func (d *Document) Clone() *Document {
	return deepcopy.Copy(d).(*Document)
}

// Equal reports whether both documents have the same headers and the same
// readable row values.
func (d *Document) Equal(o *Document) bool {
	if len(d.Headers) != len(o.Headers) || len(d.Rows) != len(o.Rows) {
		return false
	}
	for i := range d.Headers {
		if d.Headers[i] != o.Headers[i] {
			return false
		}
	}
	for i := range d.Rows {
		for _, h := range d.Headers {
			if d.Rows[i][h] != o.Rows[i][h] {
				return false
			}
		}
	}
	return true
}
