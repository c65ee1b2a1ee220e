package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cell(r, c int) Rect { return Rect{Row: r, Col: c, Rows: 1, Cols: 1} }

func TestInsertRow_ShiftsFormatsAndMerges(t *testing.T) {
	s := newTestSheet(t, []string{"A", "B", "C"},
		[]string{"0", "", ""}, []string{"1", "", ""}, []string{"2", "", ""}, []string{"3", "", ""})
	require.NoError(t, s.ToggleStyle(cell(0, 0), Bold))
	require.NoError(t, s.ToggleStyle(cell(2, 1), Italic))
	require.NoError(t, s.Merge(Rect{Row: 0, Col: 1, Rows: 1, Cols: 2}))
	require.NoError(t, s.Merge(Rect{Row: 2, Col: 2, Rows: 2, Cols: 1}))

	require.NoError(t, s.InsertRow(2))

	assert.Equal(t, 5, s.Document().RowCount())
	assert.Equal(t, Row{"A": {}, "B": {}, "C": {}}, s.Document().Rows[2])
	assert.True(t, s.Formats().Get(Coord{0, 0}).Bold, "row < k untouched")
	assert.False(t, s.Formats().Get(Coord{2, 1}).Italic)
	assert.True(t, s.Formats().Get(Coord{3, 1}).Italic, "row >= k moved down one")
	assert.Equal(t, []Rect{
		{Row: 0, Col: 1, Rows: 1, Cols: 2},
		{Row: 3, Col: 2, Rows: 2, Cols: 1},
	}, s.Merges().Regions())
}

func TestDeleteRow_InverseOfInsert(t *testing.T) {
	s := newTestSheet(t, []string{"A", "B"}, []string{"0", ""}, []string{"1", ""}, []string{"2", ""})
	require.NoError(t, s.ToggleStyle(cell(0, 0), Bold))
	require.NoError(t, s.ToggleStyle(cell(2, 1), Italic))
	require.NoError(t, s.Merge(Rect{Row: 2, Col: 0, Rows: 1, Cols: 2}))
	formats := s.Formats().Entries()
	merges := s.Merges().Regions()

	require.NoError(t, s.InsertRow(1))
	require.NoError(t, s.DeleteRow(1))

	assert.Equal(t, formats, s.Formats().Entries())
	assert.Equal(t, merges, s.Merges().Regions())
}

func TestDeleteRow_DropsEntriesAndUnmergesCutRegions(t *testing.T) {
	s := newTestSheet(t, []string{"A", "B"}, []string{"0", ""}, []string{"1", ""}, []string{"2", ""})
	require.NoError(t, s.ToggleStyle(cell(1, 0), Bold))
	require.NoError(t, s.ToggleStyle(cell(2, 0), Italic))
	require.NoError(t, s.Merge(Rect{Row: 0, Col: 0, Rows: 2, Cols: 1}))

	require.NoError(t, s.DeleteRow(1))

	assert.Equal(t, []FormatEntry{{Coord: Coord{1, 0}, Style: Style{Italic: true}}}, s.Formats().Entries())
	assert.Zero(t, s.Merges().Len())
}

func TestInsertRow_InsideRegionGrowsIt(t *testing.T) {
	s := newTestSheet(t, []string{"A"}, []string{"0"}, []string{"1"}, []string{"2"})
	require.NoError(t, s.Merge(Rect{Row: 0, Col: 0, Rows: 3, Cols: 1}))

	require.NoError(t, s.InsertRow(1))
	assert.Equal(t, []Rect{{Row: 0, Col: 0, Rows: 4, Cols: 1}}, s.Merges().Regions())

	ok, err := s.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []Rect{{Row: 0, Col: 0, Rows: 3, Cols: 1}}, s.Merges().Regions())
}

func TestStructuralErrors(t *testing.T) {
	s := newTestSheet(t, []string{"A"})
	var editErr *EditError

	err := s.DeleteRow(0)
	require.ErrorAs(t, err, &editErr)
	assert.ErrorIs(t, err, ErrNoRows)
	assert.Equal(t, string(OpDeleteRow), editErr.Op)

	assert.ErrorIs(t, s.InsertRow(2), ErrOutOfRange)
	assert.ErrorIs(t, s.InsertRow(-1), ErrOutOfRange)
	assert.ErrorIs(t, s.DeleteColumn(3), ErrInvalidColumn)
	_, err = s.InsertColumn(5, "")
	assert.ErrorIs(t, err, ErrInvalidColumn)
	_, err = s.InsertColumn(0, "A")
	assert.ErrorIs(t, err, ErrDuplicateHeader)

	require.NoError(t, s.InsertRow(0))
	assert.ErrorIs(t, s.DeleteRow(1), ErrOutOfRange)
	assert.Equal(t, 1, s.Document().RowCount(), "failed commands leave the document intact")
}

func TestInsertColumn_AutoLabel(t *testing.T) {
	s := newTestSheet(t, []string{"A", "B"}, []string{"1", "2"})

	label, err := s.AppendColumn()
	require.NoError(t, err)
	// N is header count + 1 (two headers give "Column 3"), not the "Column 2"
	// one worked example lists for the same input.
	assert.Equal(t, "Column 3", label)

	require.NoError(t, s.DeleteColumn(0))
	label, err = s.InsertColumn(0, "")
	require.NoError(t, err)
	assert.Equal(t, "Column 4", label, "bumped past the existing Column 3")
	assert.Equal(t, []string{"Column 4", "B", "Column 3"}, s.Document().Headers)
	assert.Equal(t, Row{"Column 4": {}, "B": Text("2"), "Column 3": {}}, s.Document().Rows[0])
}

func TestInsertColumn_ShiftsColumnKeyedEntries(t *testing.T) {
	s := newTestSheet(t, []string{"A", "B"}, []string{"1", "2"}, []string{"3", "4"})
	require.NoError(t, s.ToggleStyle(cell(0, 0), Bold))
	require.NoError(t, s.ToggleStyle(cell(0, 1), Italic))
	require.NoError(t, s.Merge(Rect{Row: 0, Col: 1, Rows: 2, Cols: 1}))

	_, err := s.InsertColumn(1, "New")
	require.NoError(t, err)

	assert.Equal(t, []FormatEntry{
		{Coord: Coord{0, 0}, Style: Style{Bold: true}},
		{Coord: Coord{0, 2}, Style: Style{Italic: true}},
	}, s.Formats().Entries())
	assert.Equal(t, []Rect{{Row: 0, Col: 2, Rows: 2, Cols: 1}}, s.Merges().Regions())

	require.NoError(t, s.DeleteColumn(1))
	assert.Equal(t, []FormatEntry{
		{Coord: Coord{0, 0}, Style: Style{Bold: true}},
		{Coord: Coord{0, 1}, Style: Style{Italic: true}},
	}, s.Formats().Entries())
	assert.Equal(t, []Rect{{Row: 0, Col: 1, Rows: 2, Cols: 1}}, s.Merges().Regions())
}

func TestEndToEndScenario(t *testing.T) {
	s := newTestSheet(t, []string{"Name", "Age"}, []string{"Ann", "30"})

	label, err := s.AppendColumn()
	require.NoError(t, err)
	// N is header count + 1 (two headers give "Column 3"), not the "Column 2"
	// one worked example lists for the same input.
	assert.Equal(t, "Column 3", label)
	assert.Equal(t, []string{"Name", "Age", "Column 3"}, s.Document().Headers)
	assert.Equal(t, Value{}, s.Document().Rows[0]["Column 3"])

	require.NoError(t, s.DeleteRow(0))
	assert.Zero(t, s.Document().RowCount())

	for i := 0; i < 5; i++ {
		require.NoError(t, s.DeleteColumn(s.Document().ColCount()-1))
		require.NotEmpty(t, s.Document().Headers)
	}
	assert.Equal(t, []string{"Column 1"}, s.Document().Headers)
	assert.Zero(t, s.Document().RowCount())
}

func TestDeleteLastColumn_UndoRestoresOriginal(t *testing.T) {
	s := newTestSheet(t, []string{"Only"}, []string{"x"}, []string{"y"})
	require.NoError(t, s.ToggleStyle(cell(1, 0), Bold))
	before := s.Document().Clone()

	require.NoError(t, s.DeleteColumn(0))
	assert.Equal(t, []string{"Column 1"}, s.Document().Headers)
	assert.Equal(t, Row{"Column 1": {}}, s.Document().Rows[0])
	assert.Zero(t, s.Formats().Len())

	_, err := s.Undo()
	require.NoError(t, err)
	assert.True(t, before.Equal(s.Document()))
	assert.True(t, s.Formats().Get(Coord{1, 0}).Bold)

	_, err = s.Redo()
	require.NoError(t, err)
	assert.Equal(t, []string{"Column 1"}, s.Document().Headers)
}
