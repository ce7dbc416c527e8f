package solar

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raterudder/energysync/pkg/types"
	"github.com/xuri/excelize/v2"
)

// Column headers of a solar estimate sheet.
const (
	ColumnDay   = "Day"
	ColumnMonth = "Month"
	ColumnHour  = "Hour"
	ColumnValue = "AC System Output (W)"
)

// DefaultHeaderRow is the 1-based row the column headers are on. The rows
// above it are the estimate's summary.
const DefaultHeaderRow = 32

// Sheet is the data rows of one worksheet.
type Sheet struct {
	Name string
	Rows []types.SolarRow
}

// ReadSheets returns the rows below headerRow of every sheet in the workbook.
// Cells are kept as raw text; blank rows are dropped.
func ReadSheets(path string, headerRow int) ([]Sheet, error) {
	if headerRow < 1 {
		return nil, fmt.Errorf("invalid header row %d", headerRow)
	}
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	sheets, err := readSheets(workbook, headerRow)
	if closeErr := workbook.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close workbook: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}
	return sheets, nil
}

func readSheets(workbook *excelize.File, headerRow int) ([]Sheet, error) {
	names := workbook.GetSheetList()
	if len(names) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		rows, err := workbook.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("get rows for %s: %w", name, err)
		}
		sheet, err := parseSheet(name, rows, headerRow)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

func parseSheet(name string, rows [][]string, headerRow int) (Sheet, error) {
	if len(rows) < headerRow {
		return Sheet{}, fmt.Errorf("sheet %s: header row %d not found", name, headerRow)
	}
	header := rows[headerRow-1]
	cols := map[string]int{}
	for _, want := range []string{ColumnDay, ColumnMonth, ColumnHour, ColumnValue} {
		idx := -1
		for i, cell := range header {
			if strings.TrimSpace(cell) == want {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Sheet{}, fmt.Errorf("sheet %s: column %q not found in row %d", name, want, headerRow)
		}
		cols[want] = idx
	}

	cell := func(row []string, col string) string {
		i := cols[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	sheet := Sheet{Name: name}
	for i := headerRow; i < len(rows); i++ {
		row := types.SolarRow{
			Sheet: name,
			Row:   i + 1,
			Month: cell(rows[i], ColumnMonth),
			Day:   cell(rows[i], ColumnDay),
			Hour:  cell(rows[i], ColumnHour),
			Value: cell(rows[i], ColumnValue),
		}
		if row.Month == "" && row.Day == "" && row.Hour == "" && row.Value == "" {
			continue
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}
