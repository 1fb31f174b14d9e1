package search

import (
	"bufio"
	"strings"
)

// FlattenTables rewrites markdown table rows in text as standalone facts:
// header separators are dropped and the cells of each row are joined with
// single spaces. Text without tables is returned unchanged.
func FlattenTables(text string) string {
	if !strings.Contains(text, "|") {
		return text
	}

	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	sawTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		// table row: "| ... |"
		if len(line) > 1 && strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			sawTable = true
			raw := strings.Trim(line, "|")
			cols := strings.Split(raw, "|")

			allSep := true
			cleaned := make([]string, 0, len(cols))
			for _, c := range cols {
				cell := strings.TrimSpace(c)
				if cell != "" {
					cleaned = append(cleaned, cell)
				}
				tmp := strings.ReplaceAll(cell, ":", "")
				tmp = strings.ReplaceAll(tmp, "-", "")
				if strings.TrimSpace(tmp) != "" {
					allSep = false
				}
			}
			if allSep || len(cleaned) == 0 {
				continue
			}
			b.WriteString(strings.Join(cleaned, " "))
			b.WriteByte('\n')
			continue
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}
	if sc.Err() != nil || !sawTable {
		return text
	}
	return strings.TrimRight(b.String(), "\n")
}
