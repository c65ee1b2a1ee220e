package session

import (
	"slices"

	"shared-spreadsheet-editor/internal/sheet"
)

// Mirror is the server-side image of the browser grid. It tracks what the
// client displays and pushes RENDER snapshots through its outbox.
type Mirror struct {
	out       Outbox
	grid      sheet.Grid
	meta      map[sheet.Coord]sheet.Style
	merges    []sheet.Rect
	selection []sheet.Rect
}

func NewMirror(out Outbox) *Mirror {
	return &Mirror{out: out, meta: make(map[sheet.Coord]sheet.Style)}
}

type renderPayload struct {
	Headers []string            `json:"headers"`
	Rows    [][]sheet.Value     `json:"rows"`
	Meta    []sheet.FormatEntry `json:"meta"`
	Merges  []sheet.Rect        `json:"merges"`
}

func copyGrid(g sheet.Grid) sheet.Grid {
	out := sheet.Grid{Headers: slices.Clone(g.Headers), Cells: make([][]sheet.Value, len(g.Cells))}
	for i, row := range g.Cells {
		out.Cells[i] = slices.Clone(row)
	}
	return out
}

func (m *Mirror) LoadData(g sheet.Grid) { m.grid = copyGrid(g) }

func (m *Mirror) Data() sheet.Grid { return copyGrid(m.grid) }

func (m *Mirror) inBounds(c sheet.Coord) bool {
	return c.Row >= 0 && c.Row < len(m.grid.Cells) && c.Col >= 0 && c.Col < len(m.grid.Headers)
}

func (m *Mirror) Cell(c sheet.Coord) (sheet.Value, bool) {
	if !m.inBounds(c) || c.Col >= len(m.grid.Cells[c.Row]) {
		return sheet.Value{}, false
	}
	return m.grid.Cells[c.Row][c.Col], true
}

func (m *Mirror) SetCell(c sheet.Coord, v sheet.Value) {
	if m.inBounds(c) && c.Col < len(m.grid.Cells[c.Row]) {
		m.grid.Cells[c.Row][c.Col] = v
	}
}

func (m *Mirror) Selection() []sheet.Rect { return slices.Clone(m.selection) }

func (m *Mirror) CellMeta(c sheet.Coord) sheet.Style { return m.meta[c] }

func (m *Mirror) SetCellMeta(c sheet.Coord, s sheet.Style) {
	if s.IsZero() {
		delete(m.meta, c)
		return
	}
	m.meta[c] = s
}

func (m *Mirror) SetMerges(regions []sheet.Rect) { m.merges = slices.Clone(regions) }

func (m *Mirror) Alter(op sheet.StructOp, index int, label string) {
	switch op {
	case sheet.OpInsertRow:
		if index < 0 || index > len(m.grid.Cells) {
			return
		}
		m.grid.Cells = slices.Insert(m.grid.Cells, index, make([]sheet.Value, len(m.grid.Headers)))
	case sheet.OpDeleteRow:
		if index < 0 || index >= len(m.grid.Cells) {
			return
		}
		m.grid.Cells = slices.Delete(m.grid.Cells, index, index+1)
	case sheet.OpInsertColumn:
		if index < 0 || index > len(m.grid.Headers) {
			return
		}
		m.grid.Headers = slices.Insert(m.grid.Headers, index, label)
		for i, row := range m.grid.Cells {
			if index <= len(row) {
				m.grid.Cells[i] = slices.Insert(row, index, sheet.Value{})
			}
		}
	case sheet.OpDeleteColumn:
		if index < 0 || index >= len(m.grid.Headers) {
			return
		}
		m.grid.Headers = slices.Delete(m.grid.Headers, index, index+1)
		for i, row := range m.grid.Cells {
			if index < len(row) {
				m.grid.Cells[i] = slices.Delete(row, index, index+1)
			}
		}
	}
}

// Observe records the client-side effect of a user action: the selection
// moves, and cell or header text typed into the grid is shown immediately.
func (m *Mirror) Observe(ev Event) {
	switch ev.Kind {
	case EvSelect:
		m.selection = slices.Clone(ev.Ranges)
	case EvCellEdit:
		m.SetCell(ev.Coord, ev.Value)
	case EvHeaderRename:
		if ev.Index != nil && *ev.Index >= 0 && *ev.Index < len(m.grid.Headers) {
			m.grid.Headers[*ev.Index] = ev.Label
		}
	}
}

func (m *Mirror) Render() {
	p := renderPayload{
		Headers: m.grid.Headers,
		Rows:    m.grid.Cells,
		Meta:    make([]sheet.FormatEntry, 0, len(m.meta)),
		Merges:  m.merges,
	}
	for c, s := range m.meta {
		p.Meta = append(p.Meta, sheet.FormatEntry{Coord: c, Style: s})
	}
	slices.SortFunc(p.Meta, func(a, b sheet.FormatEntry) int {
		if a.Coord.Row != b.Coord.Row {
			return a.Coord.Row - b.Coord.Row
		}
		return a.Coord.Col - b.Coord.Col
	})
	if p.Merges == nil {
		p.Merges = []sheet.Rect{}
	}
	m.out.Send(newMessage(TypeRender, p))
}
