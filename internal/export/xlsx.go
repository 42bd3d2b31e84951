package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"labtable/internal/domain"
	"labtable/internal/experiment"
)

const metaSheet = "Meta"

// WriteXLSX writes p as a workbook: a Meta sheet with one row per meta field
// and one sheet per table. Every value column is followed by its confidence.
func WriteXLSX(w io.Writer, s *domain.Schema, p domain.Payload) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", metaSheet); err != nil {
		return fmt.Errorf("export: renaming sheet: %w", err)
	}
	if err := writeMeta(f, s, p); err != nil {
		return err
	}
	for _, t := range s.Tables {
		if err := writeTable(f, t, p.Tables[t.ID]); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: writing workbook: %w", err)
	}
	return nil
}

func writeMeta(f *excelize.File, s *domain.Schema, p domain.Payload) error {
	header := []any{"Field", "Value", "Confidence"}
	if err := f.SetSheetRow(metaSheet, "A1", &header); err != nil {
		return fmt.Errorf("export: meta header: %w", err)
	}
	for i, field := range s.MetaFields {
		cell := p.Meta[field.ID]
		row := []any{fieldLabel(field), cellValue(cell.Value), confidenceValue(cell.Confidence)}
		if err := f.SetSheetRow(metaSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("export: meta row %s: %w", field.ID, err)
		}
	}
	return nil
}

func writeTable(f *excelize.File, t domain.SchemaTable, table domain.Table) error {
	sheet := sheetName(t)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("export: sheet %s: %w", sheet, err)
	}

	header := make([]any, 0, 1+2*len(t.Columns))
	header = append(header, "#")
	for _, c := range t.Columns {
		header = append(header, fieldLabel(c), c.Name+" confidence")
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: %s header: %w", t.ID, err)
	}

	for i, r := range table.Rows {
		row := make([]any, 0, len(header))
		row = append(row, i+1)
		for _, c := range t.Columns {
			cell := r[c.ID]
			row = append(row, cellValue(cell.Value), confidenceValue(cell.Confidence))
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("export: %s row %d: %w", t.ID, i, err)
		}
	}
	return nil
}

// sheetName keeps within Excel's 31 character limit.
func sheetName(t domain.SchemaTable) string {
	name := t.ID
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// cellValue keeps numeric readings numeric so the workbook can be charted.
func cellValue(v any) any {
	if v == nil {
		return nil
	}
	if n, ok := experiment.ToNumber(v); ok {
		if _, isString := v.(string); !isString {
			return n
		}
	}
	return cellText(v)
}

func confidenceValue(c *float64) any {
	if c == nil {
		return nil
	}
	return *c
}
