package sheet

import (
	"math"
	"strconv"
)

// Selection tracks the active cell and the formula bar text shown for it.
// It is either idle (no active cell) or selected. Formula bar edits stay
// local until Commit, which writes through the same path as a grid edit.
type Selection struct {
	sheet   *Sheet
	active  *Coord
	text    string
	editing bool
}

func NewSelection(s *Sheet) *Selection {
	return &Selection{sheet: s}
}

// Active returns the active coordinate, if any.
func (sel *Selection) Active() (Coord, bool) {
	if sel.active == nil {
		return Coord{}, false
	}
	return *sel.active, true
}

// Text is the current formula bar text.
func (sel *Selection) Text() string { return sel.text }

// Editing reports whether the formula bar holds uncommitted text.
func (sel *Selection) Editing() bool { return sel.editing }

// Select makes c the active cell and loads its value into the formula bar.
// Uncommitted formula bar text for the previous cell is discarded.
func (sel *Selection) Select(c Coord) (string, error) {
	v, err := sel.sheet.GetCell(c)
	if err != nil {
		return sel.text, err
	}
	sel.active = &c
	sel.text = v.String()
	sel.editing = false
	return sel.text, nil
}

// Edit replaces the formula bar text without touching the document. It is
// ignored while idle.
func (sel *Selection) Edit(text string) {
	if sel.active == nil {
		return
	}
	sel.text = text
	sel.editing = true
}

// Commit writes the formula bar text into the active cell. A numeric cell
// stays numeric while the text still parses as a number.
func (sel *Selection) Commit() error {
	if sel.active == nil || !sel.editing {
		return nil
	}
	cur, err := sel.sheet.GetCell(*sel.active)
	if err != nil {
		return err
	}
	if cur.String() != sel.text {
		v := Text(sel.text)
		if n, err := strconv.ParseFloat(sel.text, 64); cur.Numeric && err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
			v = Number(n)
		}
		if _, err := sel.sheet.SetCellAt(*sel.active, v); err != nil {
			return err
		}
	}
	sel.editing = false
	return nil
}

// Clear returns to idle, dropping any uncommitted text.
func (sel *Selection) Clear() {
	sel.active = nil
	sel.text = ""
	sel.editing = false
}

// Refresh reloads the formula bar from the document after a mutation. An
// active cell that no longer exists returns the selection to idle. Text being
// edited is left alone.
func (sel *Selection) Refresh() {
	if sel.active == nil || sel.editing {
		return
	}
	v, err := sel.sheet.GetCell(*sel.active)
	if err != nil {
		sel.Clear()
		return
	}
	sel.text = v.String()
}
