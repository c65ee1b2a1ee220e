package sheet

import "strings"

// SerializeCSV encodes rows of text cells. Lines are joined by "\n" and cells
// by ",". A cell is quoted, with inner quotes doubled, only when it contains
// a comma, a double quote or a line break (LF or a bare CR).
func SerializeCSV(rows [][]string) string {
	var b strings.Builder
	for r, row := range rows {
		if r > 0 {
			b.WriteByte('\n')
		}
		for c, cell := range row {
			if c > 0 {
				b.WriteByte(',')
			}
			b.WriteString(csvField(cell))
		}
	}
	return b.String()
}

func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CSV encodes the grid with its header row first.
func (g Grid) CSV() []byte {
	return []byte(SerializeCSV(g.Strings()))
}
