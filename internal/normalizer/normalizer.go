// Package normalizer maps untrusted extraction candidates onto the fixed shape
// declared by an experiment schema.
//
// Iteration is always driven by the schema skeleton, never by the keys of the
// candidate, so the output has exactly the schema's fields, tables, rows and
// columns whatever the candidate contains.
package normalizer

import (
	"bytes"
	"encoding/json"
	"math"

	"labtable/internal/domain"
)

// Skeleton returns the empty payload for s: every meta field and every cell of
// every table present with an absent value and zero confidence.
func Skeleton(s *domain.Schema) domain.Payload {
	p := domain.Payload{
		ExpID:           s.ExpID,
		SchemaVersion:   s.Version,
		Meta:            make(map[string]domain.ConfidenceCell, len(s.MetaFields)),
		Tables:          make(map[string]domain.Table, len(s.Tables)),
		UncertainFields: []string{},
	}
	for _, f := range s.MetaFields {
		p.Meta[f.ID] = emptyCell()
	}
	for _, t := range s.Tables {
		rows := make([]domain.Row, t.Rows)
		for i := range rows {
			row := make(domain.Row, len(t.Columns))
			for _, c := range t.Columns {
				row[c.ID] = emptyCell()
			}
			rows[i] = row
		}
		p.Tables[t.ID] = domain.Table{Rows: rows}
	}
	return p
}

// Normalize decodes candidate and maps it onto the skeleton of s. A candidate
// that is not valid JSON normalizes to the bare skeleton.
func Normalize(s *domain.Schema, candidate []byte) domain.Payload {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(candidate))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		doc = nil
	}
	return NormalizeDocument(s, doc)
}

// NormalizePayload re-normalizes an already decoded payload, for example one
// edited by a client.
func NormalizePayload(s *domain.Schema, p domain.Payload) (domain.Payload, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return domain.Payload{}, err
	}
	return Normalize(s, b), nil
}

// NormalizeDocument maps a generic decoded JSON document onto the skeleton of s.
func NormalizeDocument(s *domain.Schema, doc any) domain.Payload {
	out := Skeleton(s)
	root, ok := doc.(map[string]any)
	if !ok {
		return out
	}

	candMeta, _ := root["meta"].(map[string]any)
	for id := range out.Meta {
		out.Meta[id] = copyCell(candMeta[id])
	}

	candTables, _ := root["tables"].(map[string]any)
	for tableID, table := range out.Tables {
		candRows := tableRows(candTables[tableID])
		for i, row := range table.Rows {
			var candRow map[string]any
			if i < len(candRows) {
				candRow, _ = candRows[i].(map[string]any)
			}
			for colID := range row {
				row[colID] = copyCell(candRow[colID])
			}
		}
	}

	if list, ok := root["uncertain_fields"].([]any); ok {
		for _, item := range list {
			if field, ok := item.(string); ok {
				out.UncertainFields = append(out.UncertainFields, field)
			}
		}
	}
	return out
}

func tableRows(v any) []any {
	t, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	rows, _ := t["rows"].([]any)
	return rows
}

func copyCell(v any) domain.ConfidenceCell {
	cell, ok := v.(map[string]any)
	if !ok {
		return emptyCell()
	}
	out := emptyCell()
	out.Value = cell["value"]
	if c, ok := confidence(cell["confidence"]); ok {
		out.Confidence = &c
	}
	return out
}

// confidence accepts finite JSON numbers only and clamps them into [0,1].
func confidence(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return Clamp(f), true
}

// Clamp limits a confidence to [0,1].
func Clamp(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

func emptyCell() domain.ConfidenceCell {
	zero := 0.0
	return domain.ConfidenceCell{Confidence: &zero}
}
