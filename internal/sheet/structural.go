package sheet

import "fmt"

// InsertRow inserts an empty row at index at, in [0, RowCount]. Format
// entries and merge regions at or below at move down by one.
func (s *Sheet) InsertRow(at int) error {
	if at < 0 || at > s.doc.RowCount() {
		return editErr(string(OpInsertRow), at, fmt.Errorf("%w: row %d of %d", ErrOutOfRange, at, s.doc.RowCount()))
	}
	grown := s.insertRow(at, nil)
	s.history.Push(&StructuralPatch{Op: OpInsertRow, Index: at, Grown: grown})
	s.changed(ShapeChanged)
	return nil
}

// DeleteRow removes row index. Entries on the removed row are dropped and
// those below it move up by one. Merge regions covering the row are unmerged.
func (s *Sheet) DeleteRow(index int) error {
	if s.doc.RowCount() == 0 {
		return editErr(string(OpDeleteRow), index, ErrNoRows)
	}
	if err := s.doc.checkRow(index); err != nil {
		return editErr(string(OpDeleteRow), index, err)
	}
	cells, formats, removed := s.deleteRow(index)
	s.history.Push(&StructuralPatch{Op: OpDeleteRow, Index: index, Cells: cells, Formats: formats, Removed: removed})
	s.changed(ShapeChanged)
	return nil
}

// InsertColumn inserts a column at index at, in [0, ColCount]. An empty
// label is replaced by "Column N" where N is the header count plus one.
// It returns the label used.
func (s *Sheet) InsertColumn(at int, label string) (string, error) {
	if at < 0 || at > s.doc.ColCount() {
		return "", editErr(string(OpInsertColumn), at, fmt.Errorf("%w: column %d of %d", ErrInvalidColumn, at, s.doc.ColCount()))
	}
	if label == "" {
		label = s.doc.nextAutoLabel()
	} else if s.doc.hasHeader(label) {
		return "", editErr(string(OpInsertColumn), at, fmt.Errorf("%w: %q", ErrDuplicateHeader, label))
	}
	grown := s.insertColumn(at, label, nil)
	s.history.Push(&StructuralPatch{Op: OpInsertColumn, Index: at, Label: label, Grown: grown})
	s.changed(ShapeChanged)
	return label, nil
}

// AppendColumn inserts an auto-labelled column after the last one.
func (s *Sheet) AppendColumn() (string, error) {
	return s.InsertColumn(s.doc.ColCount(), "")
}

// DeleteColumn removes column index. Removing the only column leaves a
// single empty "Column 1" in its place.
func (s *Sheet) DeleteColumn(index int) error {
	if index < 0 || index >= s.doc.ColCount() {
		return editErr(string(OpDeleteColumn), index, fmt.Errorf("%w: column %d of %d", ErrInvalidColumn, index, s.doc.ColCount()))
	}
	label, values, formats, removed, substituted := s.deleteColumn(index)
	s.history.Push(&StructuralPatch{
		Op:          OpDeleteColumn,
		Index:       index,
		Label:       label,
		Values:      values,
		Formats:     formats,
		Removed:     removed,
		Substituted: substituted,
	})
	s.changed(ShapeChanged)
	return nil
}

func (s *Sheet) insertRow(at int, row Row) []Rect {
	s.doc.insertRow(at, row)
	s.formats.insertRow(at)
	return s.merges.insertRow(at)
}

func (s *Sheet) deleteRow(index int) ([]Value, []FormatEntry, []Rect) {
	cells := s.doc.removeRow(index)
	formats := s.formats.deleteRow(index)
	removed := s.merges.deleteRow(index)
	return cells, formats, removed
}

func (s *Sheet) insertColumn(at int, label string, values []Value) []Rect {
	s.doc.insertColumn(at, label, values)
	s.formats.insertColumn(at)
	return s.merges.insertColumn(at)
}

func (s *Sheet) deleteColumn(index int) (string, []Value, []FormatEntry, []Rect, bool) {
	label, values := s.doc.removeColumn(index)
	formats := s.formats.deleteColumn(index)
	removed := s.merges.deleteColumn(index)
	substituted := false
	if s.doc.ColCount() == 0 {
		s.doc.insertColumn(0, autoLabel(1), nil)
		substituted = true
	}
	return label, values, formats, removed, substituted
}
