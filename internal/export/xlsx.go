package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/formscan/internal/aggregate"
	"github.com/jackzampolin/formscan/internal/fsutil"
)

// SheetName is the worksheet holding the rows.
const SheetName = "Rows"

// WriteXLSX writes the table as a workbook with one header row and one row
// per record. Null cells are left empty.
func WriteXLSX(path string, t *aggregate.Table) error {
	if t == nil {
		t = &aggregate.Table{}
	}
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1"; rename it rather than adding a second sheet.
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	cols := header(t)
	for i, h := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}
	for r := range t.Rows {
		flat := t.Flat(r)
		for c, name := range cols {
			v := flat[name]
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("xlsx cell %s: %w", cell, err)
			}
		}
	}
	if len(cols) > 0 {
		last, _ := excelize.ColumnNumberToName(len(cols))
		_ = f.SetColWidth(SheetName, "A", last, 16)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	if err := fsutil.WriteAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
