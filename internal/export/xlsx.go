// Package export writes the forecast grid to spreadsheets.
package export

import (
	"fmt"
	"io"
	"log"

	"github.com/xuri/excelize/v2"

	"github.com/lox/firecast/internal/morecast"
)

const SheetName = "Forecast"

// WriteRows writes rows as an xlsx workbook with a station and date column
// followed by one column per grid column. Unknown values are left empty.
func WriteRows(w io.Writer, rows []morecast.Row, columns []morecast.Column) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("export: close workbook: %v", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headers := []any{"Station", "Date"}
	for _, c := range columns {
		headers = append(headers, c.Header())
	}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, r := range rows {
		line := i + 2
		if err := setCell(f, 1, line, r.StationName); err != nil {
			return err
		}
		if err := setCell(f, 2, line, r.ForDate.Format("2006-01-02")); err != nil {
			return err
		}
		for j, c := range columns {
			v := morecast.CellValue(r, c)
			if !v.Valid {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+3, line)
			if err != nil {
				return err
			}
			if err := f.SetCellFloat(SheetName, cell, v.Float64, c.Parameter.Precision(), 64); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      1,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return fmt.Errorf("freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, cell, v); err != nil {
		return fmt.Errorf("write %s: %w", cell, err)
	}
	return nil
}
