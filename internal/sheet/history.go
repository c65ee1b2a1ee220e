package sheet

// EntryKind tags a history entry.
type EntryKind string

const (
	KindValue      EntryKind = "value"
	KindStructural EntryKind = "structural"
	KindStyle      EntryKind = "style"
	KindMerge      EntryKind = "merge"
)

// Entry is one reversible edit.
type Entry interface {
	Kind() EntryKind
	revert(s *Sheet) error
	apply(s *Sheet) error
}

// History is the linear undo/redo stack. Pushing a new entry discards the
// redo tail.
type History struct {
	undo      []Entry
	redo      []Entry
	limit     int
	replaying bool
}

// NewHistory returns a history keeping at most limit undo entries. A limit
// of zero keeps everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Push records e. Pushes issued while an undo or redo is being applied are
// ignored so replays never record themselves.
func (h *History) Push(e Entry) {
	if h.replaying {
		return
	}
	h.undo = append(h.undo, e)
	h.redo = nil
	if h.limit > 0 && len(h.undo) > h.limit {
		h.undo = append([]Entry(nil), h.undo[len(h.undo)-h.limit:]...)
	}
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Len returns the undo and redo stack depths.
func (h *History) Len() (undo, redo int) { return len(h.undo), len(h.redo) }

func (h *History) Clear() {
	h.undo, h.redo = nil, nil
}

// Undo pops the most recent entry and applies its inverse to s. It reports
// false when there is nothing to undo. A failed inverse leaves the entry on
// the undo stack.
func (h *History) Undo(s *Sheet) (Entry, bool, error) {
	if len(h.undo) == 0 {
		return nil, false, nil
	}
	e := h.undo[len(h.undo)-1]
	h.replaying = true
	err := e.revert(s)
	h.replaying = false
	if err != nil {
		return e, true, err
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, e)
	return e, true, nil
}

// Redo pops the redo tail and reapplies it forward.
func (h *History) Redo(s *Sheet) (Entry, bool, error) {
	if len(h.redo) == 0 {
		return nil, false, nil
	}
	e := h.redo[len(h.redo)-1]
	h.replaying = true
	err := e.apply(s)
	h.replaying = false
	if err != nil {
		return e, true, err
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, e)
	return e, true, nil
}

// ValuePatch records a single cell write.
type ValuePatch struct {
	Coord Coord
	Old   Value
	New   Value
}

func (p *ValuePatch) Kind() EntryKind { return KindValue }

func (p *ValuePatch) revert(s *Sheet) error {
	_, err := s.writeCell(p.Coord, p.Old)
	return err
}

func (p *ValuePatch) apply(s *Sheet) error {
	_, err := s.writeCell(p.Coord, p.New)
	return err
}

// StructOp names a structural edit.
type StructOp string

const (
	OpInsertRow    StructOp = "insert_row"
	OpDeleteRow    StructOp = "delete_row"
	OpInsertColumn StructOp = "insert_column"
	OpDeleteColumn StructOp = "delete_column"
)

// StructuralPatch records a structural edit together with everything it
// displaced, so the edit can be reversed exactly. Content is kept by
// position so that header renames between the edit and its replay do not
// detach it.
type StructuralPatch struct {
	Op    StructOp
	Index int
	// Label is the inserted or removed header. A replay that finds it taken
	// by a renamed header uses a fresh "Column N" and records it here.
	Label string
	// Cells is the content of a deleted row in column order.
	Cells []Value
	// Values is the content of a deleted column, one value per row.
	Values []Value
	// Formats are the entries dropped with the deleted row or column.
	Formats []FormatEntry
	// Removed are merge regions unmerged because the deletion cut them.
	Removed []Rect
	// Grown are the original extents of regions widened by an insertion.
	Grown []Rect
	// Substituted is set when deleting the last header put "Column 1" in
	// its place.
	Substituted bool
}

func (p *StructuralPatch) Kind() EntryKind { return KindStructural }

func (p *StructuralPatch) apply(s *Sheet) error {
	switch p.Op {
	case OpInsertRow:
		s.insertRow(p.Index, nil)
	case OpDeleteRow:
		s.deleteRow(p.Index)
	case OpInsertColumn:
		p.Label = s.doc.freeLabel(p.Label)
		s.insertColumn(p.Index, p.Label, nil)
	case OpDeleteColumn:
		s.deleteColumn(p.Index)
	}
	return nil
}

func (p *StructuralPatch) revert(s *Sheet) error {
	switch p.Op {
	case OpInsertRow:
		if err := s.doc.checkRow(p.Index); err != nil {
			return editErr("undo "+string(p.Op), p.Index, err)
		}
		s.deleteRow(p.Index)
		s.merges.restore(p.Grown)
	case OpDeleteRow:
		s.insertRow(p.Index, s.doc.rowOf(p.Cells))
		s.formats.restore(p.Formats)
		s.merges.restore(p.Removed)
	case OpInsertColumn:
		if p.Index >= s.doc.ColCount() {
			return editErr("undo "+string(p.Op), p.Index, ErrInvalidColumn)
		}
		s.deleteColumn(p.Index)
		s.merges.restore(p.Grown)
	case OpDeleteColumn:
		if p.Substituted {
			s.doc.removeColumn(0)
		}
		p.Label = s.doc.freeLabel(p.Label)
		s.insertColumn(p.Index, p.Label, p.Values)
		s.formats.restore(p.Formats)
		s.merges.restore(p.Removed)
	}
	return nil
}

// StylePatch records a formatting change over a rectangle.
type StylePatch struct {
	Rect   Rect
	Before []FormatEntry
	After  []FormatEntry
}

func (p *StylePatch) Kind() EntryKind { return KindStyle }

func (p *StylePatch) revert(s *Sheet) error {
	s.formats.restore(p.Before)
	return nil
}

func (p *StylePatch) apply(s *Sheet) error {
	s.formats.restore(p.After)
	return nil
}

// MergePatch records a merge (Merged) or an unmerge of Region.
type MergePatch struct {
	Region Rect
	Merged bool
}

func (p *MergePatch) Kind() EntryKind { return KindMerge }

func (p *MergePatch) revert(s *Sheet) error {
	return p.toggle(s, !p.Merged)
}

func (p *MergePatch) apply(s *Sheet) error {
	return p.toggle(s, p.Merged)
}

func (p *MergePatch) toggle(s *Sheet, merge bool) error {
	if merge {
		return s.merges.Merge(p.Region)
	}
	_, err := s.merges.Unmerge(p.Region.Anchor())
	return err
}
