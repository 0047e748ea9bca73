package profile

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yassinexng/datawise/internal/table"
)

func numbers(name string, vals ...any) *table.Column {
	c := &table.Column{Name: name, Type: table.Numeric}
	for _, v := range vals {
		switch x := v.(type) {
		case nil:
			c.Values = append(c.Values, table.Missing)
		case int:
			c.Values = append(c.Values, table.Number(float64(x)))
		case float64:
			c.Values = append(c.Values, table.Number(x))
		}
	}
	return c
}

func TestOutliers_TukeyRule(t *testing.T) {
	s := Numeric([]float64{1, 2, 3, 4, 5, 100}, 1.5)
	assert.Equal(t, 1, s.Outliers)
	assert.InDelta(t, 2.25, float64(s.Q1), 1e-12)
	assert.InDelta(t, 4.75, float64(s.Q3), 1e-12)
	assert.InDelta(t, 3.5, float64(s.Median), 1e-12)
}

func TestOutliers_DegenerateBoundsAreNotSpecialCased(t *testing.T) {
	s := Numeric([]float64{5, 5, 5, 5, 6}, 1.5)
	assert.Equal(t, float64(0), float64(s.IQR))
	assert.Equal(t, 1, s.Outliers)

	short := Numeric([]float64{1, 9}, 1.5)
	assert.Equal(t, 0, short.Outliers)
}

func TestCompute_EndToEnd(t *testing.T) {
	tbl := table.MustNew(
		numbers("A", 1, 2, 3, nil),
		numbers("B", 4, 5, 6, 7),
		&table.Column{Name: "C", Type: table.Text, Values: []table.Value{
			table.String("x"), table.String("y"), table.String("x"), table.Missing,
		}},
	)
	p := Compute(tbl, DefaultOptions())
	assert.Equal(t, 4, p.Rows)
	assert.Equal(t, 3, p.Cols)

	a, ok := p.Column("A")
	require.True(t, ok)
	require.NotNil(t, a.Numeric)
	assert.Equal(t, 3, a.Numeric.Count)
	assert.Equal(t, 2.0, float64(a.Numeric.Mean))
	assert.Equal(t, 1.0, float64(a.Numeric.Min))
	assert.Equal(t, 3.0, float64(a.Numeric.Max))
	assert.Equal(t, 1.0, float64(a.Numeric.Std))
	assert.Equal(t, 1, a.Missing)

	c, _ := p.Column("C")
	require.NotNil(t, c.Categorical)
	assert.Nil(t, c.Numeric)
	assert.Equal(t, 3, c.Categorical.Count)
	assert.Equal(t, 2, c.Categorical.Unique)
	assert.Equal(t, "x", c.Categorical.Top)
	assert.Equal(t, 2, c.Categorical.Freq)
	assert.Equal(t, 1, c.Missing)
}

func TestCompute_NumericFamily(t *testing.T) {
	pct := numbers("rate", 10, 20)
	pct.Type = table.Percentage
	p := Compute(table.MustNew(pct), Options{})
	require.NotNil(t, p.Columns[0].Numeric)
	assert.Equal(t, 15.0, float64(p.Columns[0].Numeric.Mean))
}

func TestCompute_EmptyNumericColumnEncodesNulls(t *testing.T) {
	p := Compute(table.MustNew(numbers("e", nil, nil)), DefaultOptions())
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"mean":null`)
	assert.Contains(t, string(b), `"count":0`)
}

func TestReport_Sections(t *testing.T) {
	tbl := table.MustNew(numbers("A", 1, 2, 3, nil), numbers("B", 4, 5, 6, 7))
	p := Compute(tbl, DefaultOptions())
	out := Report(tbl, p, 2)
	for _, section := range []string{"Dataset head:", "Shape:\n(4, 2)", "Stats:", "Missing:", "Types:"} {
		assert.Contains(t, out, section)
	}
	head := out[:strings.Index(out, "Shape:")]
	assert.Equal(t, 5, strings.Count(head, "\n"))
	assert.Contains(t, out, "numeric")
}

func TestQuartiles_InterpolateAtNMinusOne(t *testing.T) {
	q1, med, q3 := Quartiles([]float64{4, 1, 3, 2})
	assert.InDelta(t, 1.75, q1, 1e-12)
	assert.InDelta(t, 2.5, med, 1e-12)
	assert.InDelta(t, 3.25, q3, 1e-12)
}
