package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders spreadsheets such as menus and price lists. The first row of
// each sheet is treated as a header, and each later row becomes "Header: value; ..." so
// a chunk keeps its column meaning.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		header := rows[0]
		if len(rows) == 1 {
			b.WriteString(strings.Join(header, " "))
			b.WriteByte('\n')
			continue
		}
		for _, row := range rows[1:] {
			var cells []string
			for i, cell := range row {
				if cell = strings.TrimSpace(cell); cell == "" {
					continue
				}
				if i < len(header) && strings.TrimSpace(header[i]) != "" {
					cell = strings.TrimSpace(header[i]) + ": " + cell
				}
				cells = append(cells, cell)
			}
			if len(cells) > 0 {
				b.WriteString(strings.Join(cells, "; "))
				b.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
