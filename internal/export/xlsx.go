// Package export renders the roster as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/heysubinoy/rollbook/pkg/roster"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the roster is written to.
const SheetName = "Students"

var header = []interface{}{"Name", "Roll Number", "Grade"}

// WriteXLSX writes records to w as an .xlsx workbook with a header row
// followed by one row per record, in order.
func WriteXLSX(w io.Writer, records []roster.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.Name(), r.RollNumber(), r.Grade()}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	return f.Write(w)
}
