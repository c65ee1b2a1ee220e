package sheet

import "fmt"

// ChangeKind tells observers what a mutation touched.
type ChangeKind int

const (
	// ValueChanged and ShapeChanged alter the document and must be persisted.
	ValueChanged ChangeKind = iota
	ShapeChanged
	// StyleChanged and MergeChanged only alter presentation metadata.
	StyleChanged
	MergeChanged
)

// Persisted reports whether the change alters data sent to the persistence
// endpoint.
func (k ChangeKind) Persisted() bool {
	return k == ValueChanged || k == ShapeChanged
}

// Change describes a completed mutation. Replay is set for undo and redo.
type Change struct {
	Kind   ChangeKind
	Replay bool
}

// Sheet ties the document to its formatting registry, merge table and edit
// history. Every mutation goes through a Sheet so that structural edits keep
// the coordinate-keyed metadata in lockstep and each user-visible mutation
// records exactly one history entry.
//
// A Sheet is not safe for concurrent use; it lives on its session's event
// loop.
type Sheet struct {
	doc      *Document
	formats  *FormatRegistry
	merges   *MergeTable
	history  *History
	onChange func(Change)
}

// Option configures a Sheet.
type Option func(*Sheet)

// WithHistoryLimit caps the undo stack depth.
func WithHistoryLimit(n int) Option {
	return func(s *Sheet) { s.history = NewHistory(n) }
}

// WithChangeHook registers fn to run after every completed mutation.
func WithChangeHook(fn func(Change)) Option {
	return func(s *Sheet) { s.onChange = fn }
}

func New(doc *Document, opts ...Option) *Sheet {
	s := &Sheet{
		doc:     doc,
		formats: NewFormatRegistry(),
		merges:  NewMergeTable(),
		history: NewHistory(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sheet) Document() *Document { return s.doc }
func (s *Sheet) Formats() *FormatRegistry { return s.formats }
func (s *Sheet) Merges() *MergeTable { return s.merges }
func (s *Sheet) History() *History { return s.history }
func (s *Sheet) Grid() Grid { return ToGrid(s.doc) }
func (s *Sheet) SetChangeHook(fn func(Change)) { s.onChange = fn }

func (s *Sheet) changed(kind ChangeKind) {
	if s.onChange != nil {
		s.onChange(Change{Kind: kind, Replay: s.history.replaying})
	}
}

func (s *Sheet) GetCell(c Coord) (Value, error) {
	return s.doc.Get(c)
}

// SetCell writes row's value for label and returns the previous value.
// Writing the value a cell already holds is a no-op and records nothing.
// Cells inside a merged region are writable at any coordinate.
func (s *Sheet) SetCell(row int, label string, v Value) (Value, error) {
	col, ok := s.doc.ColumnIndex(label)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrInvalidColumn, label)
	}
	return s.SetCellAt(Coord{Row: row, Col: col}, v)
}

// SetCellAt is SetCell addressed by coordinate.
func (s *Sheet) SetCellAt(c Coord, v Value) (Value, error) {
	prev, err := s.doc.Get(c)
	if err != nil {
		return Value{}, err
	}
	if prev == v {
		return prev, nil
	}
	if _, err := s.writeCell(c, v); err != nil {
		return Value{}, err
	}
	s.history.Push(&ValuePatch{Coord: c, Old: prev, New: v})
	return prev, nil
}

func (s *Sheet) writeCell(c Coord, v Value) (Value, error) {
	label, err := s.doc.Label(c.Col)
	if err != nil {
		return Value{}, err
	}
	prev, err := s.doc.SetCell(c.Row, label, v)
	if err != nil {
		return Value{}, err
	}
	s.changed(ValueChanged)
	return prev, nil
}

func (s *Sheet) checkRect(r Rect) error {
	if r.Rows < 1 || r.Cols < 1 || r.Row < 0 || r.Col < 0 ||
		r.lastRow() >= s.doc.RowCount() || r.lastCol() >= s.doc.ColCount() {
		return fmt.Errorf("%w: %s outside %dx%d", ErrOutOfRange, r, s.doc.RowCount(), s.doc.ColCount())
	}
	return nil
}

// ToggleStyle flips bold or italic per cell of r.
func (s *Sheet) ToggleStyle(r Rect, name StyleName) error {
	if err := s.checkRect(r); err != nil {
		return editErr("toggle "+string(name), r.Row, err)
	}
	before := s.formats.capture(r)
	if err := s.formats.Toggle(r, name); err != nil {
		return editErr("toggle "+string(name), r.Row, err)
	}
	s.history.Push(&StylePatch{Rect: r, Before: before, After: s.formats.capture(r)})
	s.changed(StyleChanged)
	return nil
}

// SetAlignment sets exactly one alignment on every cell of r.
func (s *Sheet) SetAlignment(r Rect, a Alignment) error {
	if err := s.checkRect(r); err != nil {
		return editErr("align", r.Row, err)
	}
	before := s.formats.capture(r)
	s.formats.SetAlignment(r, a)
	s.history.Push(&StylePatch{Rect: r, Before: before, After: s.formats.capture(r)})
	s.changed(StyleChanged)
	return nil
}

// Merge collapses r into one region anchored at its top-left cell.
func (s *Sheet) Merge(r Rect) error {
	if err := s.checkRect(r); err != nil {
		return editErr("merge", r.Row, err)
	}
	if err := s.merges.Merge(r); err != nil {
		return editErr("merge", r.Row, err)
	}
	s.history.Push(&MergePatch{Region: r, Merged: true})
	s.changed(MergeChanged)
	return nil
}

// Unmerge dissolves the region anchored at anchor.
func (s *Sheet) Unmerge(anchor Coord) error {
	r, err := s.merges.Unmerge(anchor)
	if err != nil {
		return editErr("unmerge", anchor.Row, err)
	}
	s.history.Push(&MergePatch{Region: r, Merged: false})
	s.changed(MergeChanged)
	return nil
}

// Undo reverts the most recent entry. It reports false when the history is
// empty.
func (s *Sheet) Undo() (bool, error) {
	e, ok, err := s.history.Undo(s)
	if ok && err == nil {
		s.replayed(e)
	}
	return ok, err
}

// Redo reapplies the most recently undone entry.
func (s *Sheet) Redo() (bool, error) {
	e, ok, err := s.history.Redo(s)
	if ok && err == nil {
		s.replayed(e)
	}
	return ok, err
}

// replayed notifies observers of replayed entries whose primitives do not
// notify on their own.
func (s *Sheet) replayed(e Entry) {
	switch e.Kind() {
	case KindStyle:
		s.onReplay(StyleChanged)
	case KindMerge:
		s.onReplay(MergeChanged)
	case KindStructural:
		s.onReplay(ShapeChanged)
	}
}

func (s *Sheet) onReplay(kind ChangeKind) {
	if s.onChange != nil {
		s.onChange(Change{Kind: kind, Replay: true})
	}
}

// Reconcile replaces the document with one rebuilt from a grid read off the
// rendering surface. Header text edits on the surface become renames by
// position. A reconciliation that changes the document's shape invalidates
// the coordinate-based history, which is then cleared.
func (s *Sheet) Reconcile(g Grid) error {
	d, err := FromGrid(g)
	if err != nil {
		return err
	}
	if d.RowCount() != s.doc.RowCount() || d.ColCount() != s.doc.ColCount() {
		s.history.Clear()
	}
	s.doc = d
	return nil
}
