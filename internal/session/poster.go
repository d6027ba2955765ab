package session

import (
	"strings"

	"github.com/hinshun/vt10x"
)

const (
	defaultCols = 80
	defaultRows = 24
)

// RenderScreen replays payloads into a virtual terminal of the given size and
// returns the resulting screen as plain text, one line per row with trailing
// blanks trimmed.
func RenderScreen(payloads []string, cols, rows int) string {
	if cols <= 0 {
		cols = defaultCols
	}
	if rows <= 0 {
		rows = defaultRows
	}

	vt := vt10x.New(vt10x.WithSize(cols, rows))
	for _, p := range payloads {
		vt.Write([]byte(p))
	}

	lines := make([]string, rows)
	var line strings.Builder
	for y := 0; y < rows; y++ {
		line.Reset()
		for x := 0; x < cols; x++ {
			ch := vt.Cell(x, y).Char
			if ch == 0 {
				ch = ' '
			}
			line.WriteRune(ch)
		}
		lines[y] = strings.TrimRight(line.String(), " ")
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}
