// Package export renders artifact payloads as spreadsheets.
package export

import (
	"encoding/json"
	"fmt"
	"strconv"

	"labtable/internal/domain"
)

func fieldLabel(f domain.SchemaField) string {
	name := f.Name
	if name == "" {
		name = f.ID
	}
	if f.Unit != "" {
		return fmt.Sprintf("%s (%s)", name, f.Unit)
	}
	return name
}

// cellText formats an extracted value for a text cell. Absent values are empty.
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func confidenceText(c *float64) string {
	if c == nil {
		return ""
	}
	return strconv.FormatFloat(*c, 'f', -1, 64)
}
