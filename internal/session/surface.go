package session

import "shared-spreadsheet-editor/internal/sheet"

// Surface is the rendering grid the session drives. The session never reaches
// past these capabilities; undo and redo are served by the sheet history
// rather than by the surface.
type Surface interface {
	// LoadData replaces the whole grid.
	LoadData(g sheet.Grid)
	// Data returns the grid as currently displayed, including header text the
	// user edited in place.
	Data() sheet.Grid
	Cell(c sheet.Coord) (sheet.Value, bool)
	SetCell(c sheet.Coord, v sheet.Value)
	Selection() []sheet.Rect
	CellMeta(c sheet.Coord) sheet.Style
	SetCellMeta(c sheet.Coord, s sheet.Style)
	// Alter applies a structural edit to the displayed grid.
	Alter(op sheet.StructOp, index int, label string)
	// SetMerges replaces the merged regions.
	SetMerges(regions []sheet.Rect)
	// Render redraws after programmatic changes.
	Render()
}

// Observer is implemented by surfaces that track user actions themselves
// (selection, in-place cell and header edits). The session hands every event
// to the observer before acting on it.
type Observer interface {
	Observe(ev Event)
}

// Outbox delivers messages to the connected client.
type Outbox interface {
	Send(m Message)
}
