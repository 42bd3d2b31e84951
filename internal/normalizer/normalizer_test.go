package normalizer_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtable/internal/domain"
	"labtable/internal/normalizer"
)

func testSchema() *domain.Schema {
	return &domain.Schema{
		ExpID:   "hall",
		Name:    "Hall effect",
		Version: 2,
		MetaFields: []domain.SchemaField{
			{ID: "date", Name: "Date", Type: domain.ColumnString},
			{ID: "thickness_mm", Name: "Thickness", Unit: "mm", Type: domain.ColumnNumber},
		},
		Tables: []domain.SchemaTable{
			{
				ID: "uh_vs_b", Title: "U_H vs B", Rows: 3,
				Columns: []domain.SchemaField{
					{ID: "B_mT", Type: domain.ColumnNumber},
					{ID: "U_H_mV", Type: domain.ColumnNumber},
				},
			},
		},
	}
}

func conf(t *testing.T, c domain.ConfidenceCell) float64 {
	t.Helper()
	require.NotNil(t, c.Confidence)
	return *c.Confidence
}

func TestSkeleton_Shape(t *testing.T) {
	p := normalizer.Skeleton(testSchema())

	assert.Equal(t, "hall", p.ExpID)
	assert.Equal(t, 2, p.SchemaVersion)
	assert.Len(t, p.Meta, 2)
	require.Contains(t, p.Tables, "uh_vs_b")
	assert.Len(t, p.Tables["uh_vs_b"].Rows, 3)
	for _, row := range p.Tables["uh_vs_b"].Rows {
		assert.Len(t, row, 2)
		for _, cell := range row {
			assert.Nil(t, cell.Value)
			assert.Equal(t, 0.0, conf(t, cell))
		}
	}
	assert.NotNil(t, p.UncertainFields)
	assert.Empty(t, p.UncertainFields)
}

func TestSkeleton_CellsDoNotShareConfidence(t *testing.T) {
	p := normalizer.Skeleton(testSchema())
	*p.Meta["date"].Confidence = 0.7
	assert.Equal(t, 0.0, conf(t, p.Meta["thickness_mm"]))
}

func TestNormalize_ClampsMetaConfidence(t *testing.T) {
	s := &domain.Schema{
		ExpID: "hall", Version: 1,
		MetaFields: []domain.SchemaField{{ID: "date", Type: domain.ColumnString}},
	}
	p := normalizer.Normalize(s, []byte(`{"meta":{"date":{"value":"2024-01-01","confidence":2}}}`))

	assert.Equal(t, "2024-01-01", p.Meta["date"].Value)
	assert.Equal(t, 1.0, conf(t, p.Meta["date"]))
}

func TestNormalize_ConfidenceInputs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"negative clamps to zero", `-5`, 0},
		{"above one clamps to one", `1.5`, 1},
		{"in range kept", `0.42`, 0.42},
		{"string ignored", `"x"`, 0},
		{"numeric string ignored", `"0.9"`, 0},
		{"null ignored", `null`, 0},
		{"bool ignored", `true`, 0},
		{"overflow ignored", `1e400`, 0},
		{"object ignored", `{"v":1}`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := `{"meta":{"date":{"value":"d","confidence":` + tc.raw + `}}}`
			p := normalizer.Normalize(testSchema(), []byte(doc))
			assert.InDelta(t, tc.want, conf(t, p.Meta["date"]), 1e-12)
		})
	}
}

func TestNormalize_ValueCopiedUnchanged(t *testing.T) {
	doc := `{"tables":{"uh_vs_b":{"rows":[
		{"B_mT":{"value":"12.5","confidence":0.8},"U_H_mV":{"value":3.25,"confidence":0.6}},
		{"B_mT":{"value":[1,2],"confidence":0.1}}
	]}}}`
	p := normalizer.Normalize(testSchema(), []byte(doc))

	rows := p.Tables["uh_vs_b"].Rows
	assert.Equal(t, "12.5", rows[0]["B_mT"].Value)
	assert.Equal(t, json.Number("3.25"), rows[0]["U_H_mV"].Value)
	assert.Equal(t, []any{json.Number("1"), json.Number("2")}, rows[1]["B_mT"].Value)
	assert.Nil(t, rows[1]["U_H_mV"].Value)
	assert.Nil(t, rows[2]["B_mT"].Value)
}

func TestNormalize_DropsUnknownKeys(t *testing.T) {
	doc := `{
		"exp_id":"evil","schema_version":99,
		"meta":{"date":{"value":"x","confidence":0.5},"injected":{"value":"y","confidence":1}},
		"tables":{"uh_vs_b":{"rows":[{"B_mT":{"value":1},"extra_col":{"value":2}},{},{},{},{}]},"other":{"rows":[]}},
		"uncertain_fields":["meta.date",3,null,"tables.uh_vs_b.rows.0.B_mT"],
		"admin":true
	}`
	p := normalizer.Normalize(testSchema(), []byte(doc))

	assert.Equal(t, "hall", p.ExpID)
	assert.Equal(t, 2, p.SchemaVersion)
	assert.NotContains(t, p.Meta, "injected")
	assert.NotContains(t, p.Tables, "other")
	assert.Len(t, p.Tables["uh_vs_b"].Rows, 3)
	assert.NotContains(t, p.Tables["uh_vs_b"].Rows[0], "extra_col")
	assert.Equal(t, []string{"meta.date", "tables.uh_vs_b.rows.0.B_mT"}, p.UncertainFields)
}

func TestNormalize_MalformedCandidates(t *testing.T) {
	skeleton := normalizer.Skeleton(testSchema())
	inputs := []string{
		``, `null`, `[]`, `[1,2,3]`, `"text"`, `42`, `{}`, `{not json`,
		`{"meta":null,"tables":null}`,
		`{"meta":[],"tables":[]}`,
		`{"meta":{"date":"2024-01-01"}}`,
		`{"tables":{"uh_vs_b":[{"B_mT":{"value":1}}]}}`,
		`{"tables":{"uh_vs_b":{"rows":"nope"}}}`,
		`{"uncertain_fields":"meta.date"}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, skeleton, normalizer.Normalize(testSchema(), []byte(in)))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	doc := `{"meta":{"date":{"value":"2024-01-01","confidence":0.75},"thickness_mm":{"value":0.5,"confidence":-1}},
		"tables":{"uh_vs_b":{"rows":[{"B_mT":{"value":100,"confidence":0.9}}]}},
		"uncertain_fields":["meta.thickness_mm"]}`
	s := testSchema()

	once := normalizer.Normalize(s, []byte(doc))
	twice, err := normalizer.NormalizePayload(s, once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, normalizer.Clamp(-0.1))
	assert.Equal(t, 1.0, normalizer.Clamp(7))
	assert.Equal(t, 0.3, normalizer.Clamp(0.3))
}
