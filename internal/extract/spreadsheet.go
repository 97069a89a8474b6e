package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractSpreadsheet enumerates non-empty cells of the active sheet. The text
// blob renders one "Cell {ref}: {value}" line per cell; the structured list
// keeps grid coordinates for the answer-cell localization pass.
func (e *Extractor) extractSpreadsheet(path string) (string, []Cell, string) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		e.logger.Printf("open spreadsheet %s: %v", path, err)
		return "", nil, ""
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		e.logger.Printf("no active sheet in %s", path)
		return "", nil, ""
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		e.logger.Printf("read rows of %s in %s: %v", sheet, path, err)
		return "", nil, sheet
	}

	var lines []string
	var cells []Cell
	for ri, row := range rows {
		for ci, value := range row {
			if strings.TrimSpace(value) == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				continue
			}
			cells = append(cells, Cell{
				Reference: ref,
				Value:     value,
				Row:       ri + 1,
				Column:    ci + 1,
			})
			lines = append(lines, fmt.Sprintf("Cell %s: %s", ref, value))
		}
	}
	return strings.Join(lines, "\n"), cells, sheet
}
