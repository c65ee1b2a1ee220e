package sheet

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGrid_Dense(t *testing.T) {
	doc := &Document{
		Headers: []string{"Name", "Age"},
		Rows:    []Row{{"Name": Text("Ann")}, {"Age": Number(7)}},
	}
	g := ToGrid(doc)

	assert.Equal(t, []string{"Name", "Age"}, g.Headers)
	assert.Equal(t, [][]Value{{Text("Ann"), {}}, {{}, Number(7)}}, g.Cells)
	assert.Equal(t, [][]string{{"Name", "Age"}, {"Ann", ""}, {"", "7"}}, g.Strings())
}

func TestFromGrid_RoundTrip(t *testing.T) {
	s := newTestSheet(t, []string{"Name", "Age"}, []string{"Ann", "30"}, []string{"Bob", ""})

	back, err := FromGrid(ToGrid(s.Document()))
	require.NoError(t, err)
	assert.True(t, back.Equal(s.Document()))
}

func TestFromGrid_HeaderEditRenamesByPosition(t *testing.T) {
	s := newTestSheet(t, []string{"Name", "Age"}, []string{"Ann", "30"})
	require.NoError(t, s.ToggleStyle(Rect{Row: 0, Col: 1, Rows: 1, Cols: 1}, Bold))

	g := s.Grid()
	g.Headers[1] = "Years"
	require.NoError(t, s.Reconcile(g))

	assert.Equal(t, []string{"Name", "Years"}, s.Document().Headers)
	v, err := s.Document().GetCell(0, "Years")
	require.NoError(t, err)
	assert.Equal(t, Text("30"), v)
	assert.True(t, s.Formats().Get(Coord{Row: 0, Col: 1}).Bold, "formats are index keyed and survive a rename")
	assert.True(t, s.History().CanUndo(), "same shape keeps history")
}

func TestFromGrid_Ragged(t *testing.T) {
	d, err := FromGrid(Grid{
		Headers: []string{"A", "B"},
		Cells:   [][]Value{{Text("1")}, {Text("2"), Text("3"), Text("4")}},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]Value{{Text("1"), {}}, {Text("2"), Text("3")}}, ToGrid(d).Cells)

	_, err = FromGrid(Grid{Headers: []string{"A", "A"}})
	assert.ErrorIs(t, err, ErrDuplicateHeader)
}

func TestSerializeCSV_Quoting(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "abc", "abc"},
		{"empty", "", ""},
		{"comma", "a,b", `"a,b"`},
		{"quote", `He said "hi"`, `"He said ""hi"""`},
		{"newline", "line1\nline2", "\"line1\nline2\""},
		{"carriage return counts as a line break", "a\rb", "\"a\rb\""},
		{"leading space stays bare", " x", " x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SerializeCSV([][]string{{tt.in}}))
		})
	}
}

func TestSerializeCSV_ParsesBack(t *testing.T) {
	rows := [][]string{
		{"Name", "Note", "Empty"},
		{"a,b", `He said "hi"`, ""},
		{"multi\nline", "plain", ""},
	}
	out := SerializeCSV(rows)
	assert.False(t, strings.HasSuffix(out, "\n"))

	parsed, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, rows, parsed)
}

func TestGridCSV_NoNullTokens(t *testing.T) {
	doc := &Document{Headers: []string{"A", "B"}, Rows: []Row{{"A": Number(1.5)}}}
	assert.Equal(t, "A,B\n1.5,", string(ToGrid(doc).CSV()))
}
