package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"labtable/internal/domain"
)

// BOM is written first so that Excel on Windows reads the file as UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes one table of p in long form: one line per cell with the
// row number, column label, value and confidence.
func WriteCSV(w io.Writer, s *domain.Schema, p domain.Payload, tableID string) error {
	var table *domain.SchemaTable
	for i := range s.Tables {
		if s.Tables[i].ID == tableID {
			table = &s.Tables[i]
			break
		}
	}
	if table == nil {
		return fmt.Errorf("export: table %q: %w", tableID, domain.ErrNotFound)
	}

	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Row", "Column", "Value", "Confidence"}); err != nil {
		return err
	}
	for i, r := range p.Tables[tableID].Rows {
		for _, c := range table.Columns {
			cell := r[c.ID]
			rec := []string{fmt.Sprint(i + 1), fieldLabel(c), cellText(cell.Value), confidenceText(cell.Confidence)}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
