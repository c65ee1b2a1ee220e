package sheet

import (
	"fmt"
	"sort"
)

type Alignment string

const (
	AlignNone   Alignment = ""
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

func ParseAlignment(s string) (Alignment, error) {
	switch a := Alignment(s); a {
	case AlignNone, AlignLeft, AlignCenter, AlignRight:
		return a, nil
	case "none":
		return AlignNone, nil
	}
	return AlignNone, fmt.Errorf("unknown alignment %q", s)
}

// StyleName selects a toggleable style flag.
type StyleName string

const (
	Bold   StyleName = "bold"
	Italic StyleName = "italic"
)

// Style is the per-cell style set. The zero Style is the default.
type Style struct {
	Bold   bool      `json:"bold,omitempty"`
	Italic bool      `json:"italic,omitempty"`
	Align  Alignment `json:"align,omitempty"`
}

// IsZero reports whether s is the default style.
func (s Style) IsZero() bool { return s == Style{} }

// FormatEntry is one stored style annotation.
type FormatEntry struct {
	Coord Coord `json:"coord"`
	Style Style `json:"style"`
}

// FormatRegistry holds sparse per-cell style annotations keyed by coordinate.
// A coordinate without an entry has the default style.
type FormatRegistry struct {
	entries map[Coord]Style
}

func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{entries: make(map[Coord]Style)}
}

func (f *FormatRegistry) Get(c Coord) Style {
	return f.entries[c]
}

func (f *FormatRegistry) set(c Coord, s Style) {
	if s.IsZero() {
		delete(f.entries, c)
		return
	}
	f.entries[c] = s
}

func (f *FormatRegistry) Len() int { return len(f.entries) }

// Entries lists all annotations in row-major order.
func (f *FormatRegistry) Entries() []FormatEntry {
	out := make([]FormatEntry, 0, len(f.entries))
	for c, s := range f.entries {
		out = append(out, FormatEntry{Coord: c, Style: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coord.Row != out[j].Coord.Row {
			return out[i].Coord.Row < out[j].Coord.Row
		}
		return out[i].Coord.Col < out[j].Coord.Col
	})
	return out
}

// capture returns the style of every cell in r, default styles included.
func (f *FormatRegistry) capture(r Rect) []FormatEntry {
	var out []FormatEntry
	r.Each(func(c Coord) {
		out = append(out, FormatEntry{Coord: c, Style: f.entries[c]})
	})
	return out
}

func (f *FormatRegistry) restore(entries []FormatEntry) {
	for _, e := range entries {
		f.set(e.Coord, e.Style)
	}
}

// Toggle flips the named flag independently in every cell of r, so a
// rectangle with mixed states stays mixed.
func (f *FormatRegistry) Toggle(r Rect, name StyleName) error {
	if name != Bold && name != Italic {
		return fmt.Errorf("unknown style %q", name)
	}
	r.Each(func(c Coord) {
		s := f.entries[c]
		switch name {
		case Bold:
			s.Bold = !s.Bold
		case Italic:
			s.Italic = !s.Italic
		}
		f.set(c, s)
	})
	return nil
}

// SetAlignment replaces the alignment of every cell in r.
func (f *FormatRegistry) SetAlignment(r Rect, a Alignment) {
	r.Each(func(c Coord) {
		s := f.entries[c]
		s.Align = a
		f.set(c, s)
	})
}

// remap rebuilds the registry through fn. Entries for which fn reports false
// are dropped and returned.
func (f *FormatRegistry) remap(fn func(Coord) (Coord, bool)) []FormatEntry {
	var dropped []FormatEntry
	next := make(map[Coord]Style, len(f.entries))
	for c, s := range f.entries {
		if nc, ok := fn(c); ok {
			next[nc] = s
		} else {
			dropped = append(dropped, FormatEntry{Coord: c, Style: s})
		}
	}
	f.entries = next
	return dropped
}

func (f *FormatRegistry) insertRow(at int) {
	f.remap(func(c Coord) (Coord, bool) {
		if c.Row >= at {
			c.Row++
		}
		return c, true
	})
}

func (f *FormatRegistry) deleteRow(index int) []FormatEntry {
	return f.remap(func(c Coord) (Coord, bool) {
		switch {
		case c.Row == index:
			return c, false
		case c.Row > index:
			c.Row--
		}
		return c, true
	})
}

func (f *FormatRegistry) insertColumn(at int) {
	f.remap(func(c Coord) (Coord, bool) {
		if c.Col >= at {
			c.Col++
		}
		return c, true
	})
}

func (f *FormatRegistry) deleteColumn(index int) []FormatEntry {
	return f.remap(func(c Coord) (Coord, bool) {
		switch {
		case c.Col == index:
			return c, false
		case c.Col > index:
			c.Col--
		}
		return c, true
	})
}
