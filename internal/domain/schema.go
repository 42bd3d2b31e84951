package domain

import "fmt"

// SchemaField declares one scalar metadata field or one table column.
type SchemaField struct {
	ID   string     `yaml:"id" json:"id"`
	Name string     `yaml:"name" json:"name"`
	Unit string     `yaml:"unit,omitempty" json:"unit,omitempty"`
	Type ColumnType `yaml:"type" json:"type"`
}

// SchemaTable declares a table with a fixed number of rows.
type SchemaTable struct {
	ID      string        `yaml:"id" json:"id"`
	Title   string        `yaml:"title" json:"title"`
	Rows    int           `yaml:"rows" json:"rows"`
	Columns []SchemaField `yaml:"columns" json:"columns"`
}

// Schema pins the payload shape of one experiment kind at one version.
type Schema struct {
	ExpID      string        `yaml:"exp_id" json:"exp_id"`
	Name       string        `yaml:"name" json:"name"`
	Version    int           `yaml:"version" json:"version"`
	MetaFields []SchemaField `yaml:"meta_fields" json:"meta_fields"`
	Tables     []SchemaTable `yaml:"tables" json:"tables"`
}

// MaxTableRows bounds the declared row count of a schema table.
const MaxTableRows = 500

// Validate checks that ids are present and unique and that every table is usable.
func (s *Schema) Validate() error {
	if s.ExpID == "" {
		return fmt.Errorf("schema: exp_id is required")
	}
	if s.Version <= 0 {
		return fmt.Errorf("schema %s: version must be positive", s.ExpID)
	}
	if err := validateFields(s.ExpID, "meta", s.MetaFields); err != nil {
		return err
	}
	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if t.ID == "" {
			return fmt.Errorf("schema %s: table id is required", s.ExpID)
		}
		if seen[t.ID] {
			return fmt.Errorf("schema %s: duplicate table %q", s.ExpID, t.ID)
		}
		seen[t.ID] = true
		if t.Rows <= 0 || t.Rows > MaxTableRows {
			return fmt.Errorf("schema %s: table %q rows must be in 1..%d", s.ExpID, t.ID, MaxTableRows)
		}
		if len(t.Columns) == 0 {
			return fmt.Errorf("schema %s: table %q has no columns", s.ExpID, t.ID)
		}
		if err := validateFields(s.ExpID, "table "+t.ID, t.Columns); err != nil {
			return err
		}
	}
	return nil
}

func validateFields(expID, scope string, fields []SchemaField) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.ID == "" {
			return fmt.Errorf("schema %s: %s field id is required", expID, scope)
		}
		if seen[f.ID] {
			return fmt.Errorf("schema %s: %s duplicate field %q", expID, scope, f.ID)
		}
		seen[f.ID] = true
		if !f.Type.IsValid() {
			return fmt.Errorf("schema %s: %s field %q has invalid type %q", expID, scope, f.ID, f.Type)
		}
	}
	return nil
}
