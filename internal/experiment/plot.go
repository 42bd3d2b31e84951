package experiment

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"labtable/internal/domain"
)

// Point is one (x, y) sample of a plot series.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is the data behind one chart.
type Series struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	XLabel string  `json:"x_label"`
	YLabel string  `json:"y_label"`
	Points []Point `json:"points"`
}

// Series derives the chart data of every plot from p. Rows where either
// coordinate is not a number are skipped.
func (e *Experiment) Series(p domain.Payload) []Series {
	out := make([]Series, 0, len(e.Plots))
	for _, ps := range e.Plots {
		s := Series{
			ID:     ps.ID,
			Title:  ps.Title,
			XLabel: e.columnLabel(ps.Table, ps.X),
			YLabel: e.columnLabel(ps.Table, ps.Y),
			Points: []Point{},
		}
		for _, row := range p.Tables[ps.Table].Rows {
			x, okX := ToNumber(row[ps.X].Value)
			y, okY := ToNumber(row[ps.Y].Value)
			if okX && okY {
				s.Points = append(s.Points, Point{X: x, Y: y})
			}
		}
		out = append(out, s)
	}
	return out
}

func (e *Experiment) columnLabel(tableID, colID string) string {
	for _, t := range e.Tables {
		if t.ID != tableID {
			continue
		}
		for _, c := range t.Columns {
			if c.ID != colID {
				continue
			}
			name := c.Name
			if name == "" {
				name = c.ID
			}
			if c.Unit != "" {
				return name + " (" + c.Unit + ")"
			}
			return name
		}
	}
	return colID
}

// ToNumber converts a cell value to a finite float. Numeric strings are accepted
// because edited cells arrive as text.
func ToNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
