package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes records to a single-sheet workbook. Strings, numbers and
// booleans become typed cells; nulls are left blank and nested values are
// written as JSON text.
func WriteXLSX(w io.Writer, sheet string, records []Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheet); err != nil {
		return fmt.Errorf("export: xlsx sheet: %w", err)
	}

	if len(records) > 0 {
		keys := records[0].Keys()
		header := make([]interface{}, len(keys))
		for i, k := range keys {
			header[i] = k
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return fmt.Errorf("export: xlsx header: %w", err)
		}
		for i, rec := range records {
			byKey := make(map[string]json.RawMessage, len(rec))
			for _, fld := range rec {
				byKey[fld.Key] = fld.Value
			}
			row := make([]interface{}, len(keys))
			for j, k := range keys {
				row[j] = cellValue(byKey[k])
			}
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return fmt.Errorf("export: xlsx cell: %w", err)
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("export: xlsx row %d: %w", i+1, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write xlsx: %w", err)
	}
	return nil
}

func cellValue(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	switch t := v.(type) {
	case nil:
		return nil
	case string, float64, bool:
		return t
	default:
		return string(raw)
	}
}
