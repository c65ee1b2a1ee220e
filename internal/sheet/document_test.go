package sheet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSheet builds a sheet from string rows.
//
//	headers: Name, Age
//	rows:    Ann 30 / Bob 41 / ...
func newTestSheet(t *testing.T, headers []string, rows ...[]string) *Sheet {
	t.Helper()
	var rs []Row
	for _, cells := range rows {
		row := Row{}
		for i, v := range cells {
			row[headers[i]] = Text(v)
		}
		rs = append(rs, row)
	}
	doc, err := NewDocument(headers, rs)
	require.NoError(t, err)
	return New(doc)
}

func TestNewDocument_NormalizesRows(t *testing.T) {
	doc, err := NewDocument([]string{"Name", "Age"}, []Row{
		{"Name": Text("Ann")},
		{"Age": Number(30), "Extra": Text("ignored")},
	})
	require.NoError(t, err)

	assert.Equal(t, Row{"Name": Text("Ann"), "Age": Value{}}, doc.Rows[0])
	assert.Equal(t, Row{"Name": Value{}, "Age": Number(30)}, doc.Rows[1])
}

func TestNewDocument_HeaderFloor(t *testing.T) {
	doc, err := NewDocument(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Column 1"}, doc.Headers)

	doc, err = NewDocument([]string{"A", ""}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "Column 2"}, doc.Headers)

	_, err = NewDocument([]string{"A", "A"}, nil)
	assert.ErrorIs(t, err, ErrDuplicateHeader)
}

func TestDocument_SetCell(t *testing.T) {
	s := newTestSheet(t, []string{"Name", "Age"}, []string{"Ann", "30"})

	prev, err := s.SetCell(0, "Name", Text("Anna"))
	require.NoError(t, err)
	assert.Equal(t, Text("Ann"), prev)

	_, err = s.SetCell(1, "Name", Text("x"))
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = s.SetCell(-1, "Name", Text("x"))
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = s.SetCell(0, "Missing", Text("x"))
	assert.ErrorIs(t, err, ErrInvalidColumn)

	undo, _ := s.History().Len()
	assert.Equal(t, 1, undo)
}

func TestDocument_SetCellSameValueRecordsNothing(t *testing.T) {
	s := newTestSheet(t, []string{"Name"}, []string{"Ann"})
	var changes int
	s.SetChangeHook(func(Change) { changes++ })

	_, err := s.SetCell(0, "Name", Text("Ann"))
	require.NoError(t, err)

	assert.False(t, s.History().CanUndo())
	assert.Zero(t, changes)
}

func TestDocument_StaleKeysAreNeverRead(t *testing.T) {
	s := newTestSheet(t, []string{"A", "B"}, []string{"1", "2"})
	require.NoError(t, s.DeleteColumn(1))

	_, err := s.GetCell(Coord{Row: 0, Col: 1})
	assert.ErrorIs(t, err, ErrInvalidColumn)
	_, err = s.Document().GetCell(0, "B")
	assert.ErrorIs(t, err, ErrInvalidColumn)

	recs := s.Document().Records()
	assert.Equal(t, []map[string]Value{{"A": Text("1")}}, recs)
}

func TestDocument_CloneIsDetached(t *testing.T) {
	s := newTestSheet(t, []string{"Name"}, []string{"Ann"})
	snap := s.Document().Clone()

	_, err := s.SetCell(0, "Name", Text("Bob"))
	require.NoError(t, err)

	assert.Equal(t, Text("Ann"), snap.Rows[0]["Name"])
	assert.False(t, snap.Equal(s.Document()))
}

func TestValue_JSON(t *testing.T) {
	var row map[string]Value
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":12.5,"c":null,"d":true}`), &row))

	assert.Equal(t, Text("x"), row["a"])
	assert.Equal(t, Number(12.5), row["b"])
	assert.Equal(t, Value{}, row["c"])
	assert.Equal(t, Text("true"), row["d"])

	out, err := json.Marshal(map[string]Value{"n": Number(3), "s": Text("")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3,"s":""}`, string(out))
}
