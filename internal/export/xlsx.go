// Package export encodes a sheet as an Excel workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"shared-spreadsheet-editor/internal/sheet"
)

// SheetName is the worksheet written by XLSX.
const SheetName = "Sheet1"

// Content types for downloads.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// XLSX writes the grid to a single worksheet: the header labels on the first
// row, data below. Format entries and merge regions are translated with the
// header row offset applied.
func XLSX(g sheet.Grid, formats []sheet.FormatEntry, merges []sheet.Rect) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for c, h := range g.Headers {
		if err := setCell(f, 0, c, h); err != nil {
			return nil, err
		}
	}
	for r, row := range g.Cells {
		for c, v := range row {
			if v.IsEmpty() {
				continue
			}
			var val any = v.Str
			if v.Numeric {
				val = v.Num
			}
			if err := setCell(f, r+1, c, val); err != nil {
				return nil, err
			}
		}
	}

	styles := map[sheet.Style]int{}
	for _, e := range formats {
		id, ok := styles[e.Style]
		if !ok {
			var err error
			if id, err = f.NewStyle(cellStyle(e.Style)); err != nil {
				return nil, fmt.Errorf("export: style %v: %w", e.Style, err)
			}
			styles[e.Style] = id
		}
		name, err := cellName(e.Coord.Row+1, e.Coord.Col)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(SheetName, name, name, id); err != nil {
			return nil, fmt.Errorf("export: style %s: %w", name, err)
		}
	}

	for _, m := range merges {
		from, err := cellName(m.Row+1, m.Col)
		if err != nil {
			return nil, err
		}
		to, err := cellName(m.Row+m.Rows, m.Col+m.Cols-1)
		if err != nil {
			return nil, err
		}
		if err := f.MergeCell(SheetName, from, to); err != nil {
			return nil, fmt.Errorf("export: merge %s: %w", m, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: write: %w", err)
	}
	return buf.Bytes(), nil
}

func cellStyle(s sheet.Style) *excelize.Style {
	st := &excelize.Style{}
	if s.Bold || s.Italic {
		st.Font = &excelize.Font{Bold: s.Bold, Italic: s.Italic}
	}
	if s.Align != sheet.AlignNone {
		st.Alignment = &excelize.Alignment{Horizontal: string(s.Align)}
	}
	return st
}

// cellName converts a zero-based worksheet row/column to an A1 reference.
func cellName(row, col int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "", fmt.Errorf("export: cell (%d,%d): %w", row, col, err)
	}
	return name, nil
}

func setCell(f *excelize.File, row, col int, v any) error {
	name, err := cellName(row, col)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, name, v); err != nil {
		return fmt.Errorf("export: set %s: %w", name, err)
	}
	return nil
}

// Encode renders a grid in the named download format, csv or xlsx.
func Encode(g sheet.Grid, formats []sheet.FormatEntry, merges []sheet.Rect, format string) ([]byte, string, error) {
	switch format {
	case "csv":
		return g.CSV(), ContentTypeCSV, nil
	case "xlsx":
		b, err := XLSX(g, formats, merges)
		return b, ContentTypeXLSX, err
	}
	return nil, "", fmt.Errorf("export: unsupported format %q", format)
}
