package sheet

import "fmt"

// Coord addresses a data cell. Row excludes the header row; Col indexes into
// the header sequence. Both are zero-based.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Rect is a rectangle of cells anchored at its top-left coordinate.
type Rect struct {
	Row  int `json:"row"`
	Col  int `json:"col"`
	Rows int `json:"rowspan"`
	Cols int `json:"colspan"`
}

// Span builds the rectangle covering two corner coordinates in any order.
func Span(a, b Coord) Rect {
	if a.Row > b.Row {
		a.Row, b.Row = b.Row, a.Row
	}
	if a.Col > b.Col {
		a.Col, b.Col = b.Col, a.Col
	}
	return Rect{Row: a.Row, Col: a.Col, Rows: b.Row - a.Row + 1, Cols: b.Col - a.Col + 1}
}

// Anchor is the top-left coordinate of the rectangle.
func (r Rect) Anchor() Coord { return Coord{Row: r.Row, Col: r.Col} }

func (r Rect) lastRow() int { return r.Row + r.Rows - 1 }
func (r Rect) lastCol() int { return r.Col + r.Cols - 1 }

func (r Rect) Contains(c Coord) bool {
	return c.Row >= r.Row && c.Row <= r.lastRow() && c.Col >= r.Col && c.Col <= r.lastCol()
}

func (r Rect) Overlaps(o Rect) bool {
	return r.Row <= o.lastRow() && o.Row <= r.lastRow() && r.Col <= o.lastCol() && o.Col <= r.lastCol()
}

// Each visits every coordinate of the rectangle row by row.
func (r Rect) Each(fn func(Coord)) {
	for row := r.Row; row <= r.lastRow(); row++ {
		for col := r.Col; col <= r.lastCol(); col++ {
			fn(Coord{Row: row, Col: col})
		}
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d@%s", r.Rows, r.Cols, r.Anchor())
}
