package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ConfidenceCell is an extracted value with the model's confidence in it.
// A nil Value is an absent value; a nil Confidence is an absent confidence.
type ConfidenceCell struct {
	Value      any      `json:"value"`
	Confidence *float64 `json:"confidence"`
}

// Row maps a column id to its cell.
type Row map[string]ConfidenceCell

// Table holds the fixed number of rows declared by its schema table.
type Table struct {
	Rows []Row `json:"rows"`
}

// Payload is a schema-shaped extraction result.
type Payload struct {
	ExpID           string                    `json:"exp_id"`
	SchemaVersion   int                       `json:"schema_version"`
	Meta            map[string]ConfidenceCell `json:"meta"`
	Tables          map[string]Table          `json:"tables"`
	UncertainFields []string                  `json:"uncertain_fields"`
}

// Value implements driver.Valuer so a payload can be stored in a JSONB column.
func (p Payload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner for JSONB columns.
func (p *Payload) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		return errors.New("payload: NULL column")
	default:
		return fmt.Errorf("payload: unsupported column type %T", src)
	}
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	return dec.Decode(p)
}

// ImageKeyPrefix is the object-store namespace owned by accountID.
func ImageKeyPrefix(accountID string) string {
	return "u/" + url.PathEscape(accountID) + "/"
}

// ImageKeyBelongsTo reports whether key lives inside accountID's namespace.
func ImageKeyBelongsTo(key, accountID string) bool {
	prefix := ImageKeyPrefix(accountID)
	return len(key) > len(prefix) && strings.HasPrefix(key, prefix)
}
