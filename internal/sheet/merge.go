package sheet

import (
	"fmt"
	"sort"
)

// MergeTable is the set of merged regions. Regions never overlap.
type MergeTable struct {
	regions []Rect
}

func NewMergeTable() *MergeTable {
	return &MergeTable{}
}

// Regions returns the regions ordered by anchor.
func (m *MergeTable) Regions() []Rect {
	out := append([]Rect(nil), m.regions...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func (m *MergeTable) Len() int { return len(m.regions) }

// At returns the region covering c.
func (m *MergeTable) At(c Coord) (Rect, bool) {
	for _, r := range m.regions {
		if r.Contains(c) {
			return r, true
		}
	}
	return Rect{}, false
}

// Merge adds r. It fails with ErrOverlap when r intersects an existing region.
func (m *MergeTable) Merge(r Rect) error {
	if r.Rows < 1 || r.Cols < 1 || r.Row < 0 || r.Col < 0 || r.Rows*r.Cols < 2 {
		return fmt.Errorf("%w: %s", ErrInvalidRegion, r)
	}
	for _, existing := range m.regions {
		if existing.Overlaps(r) {
			return fmt.Errorf("%w: %s intersects %s", ErrOverlap, r, existing)
		}
	}
	m.regions = append(m.regions, r)
	return nil
}

// Unmerge removes the region anchored at anchor.
func (m *MergeTable) Unmerge(anchor Coord) (Rect, error) {
	for i, r := range m.regions {
		if r.Anchor() == anchor {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			return r, nil
		}
	}
	return Rect{}, fmt.Errorf("%w: %s", ErrNotMerged, anchor)
}

func (m *MergeTable) restore(regions []Rect) {
	m.regions = append(m.regions, regions...)
}

func (m *MergeTable) remove(r Rect) {
	for i, existing := range m.regions {
		if existing == r {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			return
		}
	}
}

// insertRow shifts regions at or below at down by one. Regions that span the
// insertion point grow by one row; their original extent is returned.
func (m *MergeTable) insertRow(at int) []Rect {
	var grown []Rect
	for i, r := range m.regions {
		switch {
		case r.Row >= at:
			m.regions[i].Row++
		case r.lastRow() >= at:
			grown = append(grown, r)
			m.regions[i].Rows++
		}
	}
	return grown
}

// deleteRow shifts regions below index up by one. Regions covering the
// deleted row are unmerged and returned.
func (m *MergeTable) deleteRow(index int) []Rect {
	var removed []Rect
	kept := m.regions[:0]
	for _, r := range m.regions {
		switch {
		case r.Row > index:
			r.Row--
		case r.lastRow() >= index:
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	m.regions = kept
	return removed
}

func (m *MergeTable) insertColumn(at int) []Rect {
	var grown []Rect
	for i, r := range m.regions {
		switch {
		case r.Col >= at:
			m.regions[i].Col++
		case r.lastCol() >= at:
			grown = append(grown, r)
			m.regions[i].Cols++
		}
	}
	return grown
}

func (m *MergeTable) deleteColumn(index int) []Rect {
	var removed []Rect
	kept := m.regions[:0]
	for _, r := range m.regions {
		switch {
		case r.Col > index:
			r.Col--
		case r.lastCol() >= index:
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	m.regions = kept
	return removed
}
