package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shared-spreadsheet-editor/internal/sheet"
)

func TestMirror_Alter(t *testing.T) {
	m := NewMirror(&recorder{})
	m.LoadData(sheet.Grid{Headers: []string{"A", "B"}, Cells: [][]sheet.Value{{sheet.Text("1"), sheet.Text("2")}}})

	m.Alter(sheet.OpInsertColumn, 1, "New")
	m.Alter(sheet.OpInsertRow, 0, "")
	assert.Equal(t, sheet.Grid{
		Headers: []string{"A", "New", "B"},
		Cells:   [][]sheet.Value{{{}, {}, {}}, {sheet.Text("1"), {}, sheet.Text("2")}},
	}, m.Data())

	m.Alter(sheet.OpDeleteColumn, 0, "")
	m.Alter(sheet.OpDeleteRow, 0, "")
	m.Alter(sheet.OpDeleteRow, 7, "")
	assert.Equal(t, sheet.Grid{
		Headers: []string{"New", "B"},
		Cells:   [][]sheet.Value{{{}, sheet.Text("2")}},
	}, m.Data())
}

func TestMirror_ObserveAndRender(t *testing.T) {
	out := &recorder{}
	m := NewMirror(out)
	m.LoadData(sheet.Grid{Headers: []string{"A"}, Cells: [][]sheet.Value{{sheet.Text("x")}}})

	col := 0
	m.Observe(Event{Kind: EvHeaderRename, Index: &col, Label: "Renamed"})
	m.Observe(Event{Kind: EvCellEdit, Coord: sheet.Coord{Row: 0, Col: 0}, Value: sheet.Text("y")})
	m.Observe(Event{Kind: EvCellEdit, Coord: sheet.Coord{Row: 3, Col: 0}, Value: sheet.Text("ignored")})
	m.Observe(Event{Kind: EvSelect, Ranges: []sheet.Rect{{Rows: 1, Cols: 1}}})
	m.SetCellMeta(sheet.Coord{}, sheet.Style{Bold: true})

	assert.Equal(t, []string{"Renamed"}, m.Data().Headers)
	v, ok := m.Cell(sheet.Coord{})
	require.True(t, ok)
	assert.Equal(t, sheet.Text("y"), v)
	assert.Len(t, m.Selection(), 1)

	m.Render()
	r, ok := out.last(TypeRender)
	require.True(t, ok)
	p := payload[renderPayload](t, r)
	assert.Equal(t, []sheet.FormatEntry{{Style: sheet.Style{Bold: true}}}, p.Meta)

	m.SetCellMeta(sheet.Coord{}, sheet.Style{})
	assert.True(t, m.CellMeta(sheet.Coord{}).IsZero())
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		want    Event
		wantErr bool
	}{
		{"select cell", newMessage("SELECT", map[string]int{"row": 1, "col": 2}),
			Event{Kind: EvSelect, Coord: sheet.Coord{Row: 1, Col: 2}, Ranges: []sheet.Rect{{Row: 1, Col: 2, Rows: 1, Cols: 1}}}, false},
		{"select without coordinate", newMessage("SELECT", nil), Event{}, true},
		{"alignment", newMessage("SET_ALIGNMENT", map[string]string{"align": "center"}),
			Event{Kind: EvSetAlignment, Align: sheet.AlignCenter}, false},
		{"bad alignment", newMessage("SET_ALIGNMENT", map[string]string{"align": "justify"}), Event{}, true},
		{"download default", newMessage("DOWNLOAD", nil), Event{Kind: EvDownload, Format: "csv"}, false},
		{"numeric cell", newMessage("UPDATE_CELL", map[string]any{"row": 0, "col": 0, "value": 2.5}),
			Event{Kind: EvCellEdit, Value: sheet.Number(2.5)}, false},
		{"unknown", newMessage("RESIZE_COL", nil), Event{}, true},
		{"bad payload", Message{Type: "INSERT_ROW", Payload: []byte(`"x"`)}, Event{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent(tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
