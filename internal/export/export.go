// Package export renders itemized analytics tables as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"stocktrail/internal/analytics"
)

// ContentType is the MIME type of the workbooks written by WriteTable.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Filename returns the download name for a table exported at t.
func Filename(table analytics.Table, t time.Time) string {
	return fmt.Sprintf("inventory-%s-%s.xlsx", table.Kind, t.Format("20060102"))
}

// SheetName is the title of the single worksheet for a table.
func SheetName(table analytics.Table) string {
	return string(table.Kind)
}

// WriteTable writes table as a one-sheet workbook: a bold header row, one
// row per record and, when the table has totals, a trailing "Total" row.
func WriteTable(w io.Writer, table analytics.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(table)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return err
	}

	for c, col := range table.Columns {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheet, cell, col.Label); err != nil {
			return err
		}
	}
	if len(table.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(table.Columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return err
		}
	}

	rowNo := 2
	for _, row := range table.Rows {
		for c, col := range table.Columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowNo)
			if err := f.SetCellValue(sheet, cell, row.Value(col.Key)); err != nil {
				return err
			}
			if col.Key == analytics.ColDate {
				if err := f.SetCellStyle(sheet, cell, cell, dateStyle); err != nil {
					return err
				}
			}
		}
		rowNo++
	}

	if table.Footer != nil {
		for c, col := range table.Columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowNo)
			var value any
			switch {
			case c == 0:
				value = "Total"
			default:
				total, ok := table.Footer[col.Key]
				if !ok {
					continue
				}
				value = total
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, cell, cell, bold); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
