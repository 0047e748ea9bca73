package transform

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/yassinexng/datawise/internal/table"
)

func numCol(name string, vals ...float64) *table.Column {
	c := &table.Column{Name: name, Type: table.Numeric}
	for _, v := range vals {
		c.Values = append(c.Values, table.Number(v))
	}
	return c
}

func textCol(name string, vals ...string) *table.Column {
	c := &table.Column{Name: name, Type: table.Text}
	for _, v := range vals {
		if v == "" {
			c.Values = append(c.Values, table.Missing)
			continue
		}
		c.Values = append(c.Values, table.String(v))
	}
	return c
}

func sample() *table.Table {
	nan := math.NaN()
	return table.MustNew(
		textCol("name", " alice ", "BOB", "carol smith", "", "BOB"),
		numCol("score", 10, 55.555, nan, 90, 55.555),
		textCol("city", "rome", "oslo", "", "lima", "oslo"),
	)
}

func run(t *testing.T, tbl *table.Table, program string) *table.Table {
	t.Helper()
	p, err := Parse(program)
	require.NoError(t, err)
	out, err := NewInterpreter(Options{}).Apply(context.Background(), tbl, p)
	require.NoError(t, err)
	return out
}

func strs(c *table.Column) []string {
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		out[i] = v.String()
	}
	return out
}

func TestParse_Forms(t *testing.T) {
	p, err := Parse("```json\n[{\"op\":\"trim\",\"column\":\"name\"}]\n```")
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, OpTrim, p.Steps[0].Op)

	p, err = Parse(`{"steps":[{"op":"sort","column":"score","descending":true}]}`)
	require.NoError(t, err)
	assert.True(t, p.Steps[0].Descending)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"no steps":      `[]`,
		"unknown op":    `[{"op":"explode","column":"a"}]`,
		"unknown field": `[{"op":"trim","column":"a","colour":"red"}]`,
		"missing field": `[{"op":"rename_column","column":"a"}]`,
		"bad type":      `[{"op":"cast","column":"a","type":"complex"}]`,
		"clip range":    `[{"op":"clip","column":"a","min":5,"max":1}]`,
		"bad expr":      `[{"op":"filter_rows","where":"score >"}]`,
		"statement":     `[{"op":"derive_column","column":"x","expr":"x = 1"}]`,
		"trailing":      `[{"op":"trim","column":"a"}] [1]`,
		"not json":      `drop the column please`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(in)
			var pe *ProgramError
			assert.True(t, errors.As(err, &pe), "got %v", err)
		})
	}
}

func TestApply_TextOps(t *testing.T) {
	out := run(t, sample(), `[
		{"op":"trim","column":"name"},
		{"op":"title_case","column":"name"},
		{"op":"uppercase","column":"city"}
	]`)
	name, _ := out.Column("name")
	assert.Equal(t, []string{"Alice", "Bob", "Carol Smith", "", "Bob"}, strs(name))
	city, _ := out.Column("city")
	assert.Equal(t, []string{"ROME", "OSLO", "", "LIMA", "OSLO"}, strs(city))

	out = run(t, sample(), `[{"op":"lowercase","column":"name"}]`)
	name, _ = out.Column("name")
	assert.Equal(t, "bob", name.Values[1].Str())
}

func TestApply_TextOpOnNumericFails(t *testing.T) {
	p, err := Parse(`[{"op":"trim","column":"score"}]`)
	require.NoError(t, err)
	_, err = NewInterpreter(Options{}).Apply(context.Background(), sample(), p)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 0, se.Step)
	assert.Equal(t, OpTrim, se.Op)
}

func TestApply_ColumnOps(t *testing.T) {
	out := run(t, sample(), `[
		{"op":"drop_columns","columns":["city"]},
		{"op":"rename_column","column":"score","to":"points"}
	]`)
	assert.Equal(t, []string{"name", "points"}, out.Names())

	p, err := Parse(`[{"op":"rename_column","column":"score","to":"city"}]`)
	require.NoError(t, err)
	_, err = NewInterpreter(Options{}).Apply(context.Background(), sample(), p)
	assert.Error(t, err)
}

func TestApply_MissingAndDuplicates(t *testing.T) {
	out := run(t, sample(), `[{"op":"drop_missing","columns":["score"]}]`)
	assert.Equal(t, 4, out.NumRows())

	out = run(t, sample(), `[{"op":"drop_missing"}]`)
	assert.Equal(t, 3, out.NumRows())

	out = run(t, sample(), `[{"op":"drop_duplicates"}]`)
	assert.Equal(t, 4, out.NumRows())

	out = run(t, sample(), `[{"op":"drop_duplicates","columns":["city"]}]`)
	assert.Equal(t, 4, out.NumRows())

	out = run(t, sample(), `[
		{"op":"fill_missing","column":"score","value":0},
		{"op":"fill_missing","column":"city","value":"unknown"}
	]`)
	score, _ := out.Column("score")
	assert.Equal(t, 0, score.MissingCount())
	assert.Equal(t, 0.0, score.Values[2].Float())
	city, _ := out.Column("city")
	assert.Equal(t, "unknown", city.Values[2].Str())
}

func TestApply_FillMissingTypeMismatch(t *testing.T) {
	p, err := Parse(`[{"op":"fill_missing","column":"score","value":"n/a"}]`)
	require.NoError(t, err)
	_, err = NewInterpreter(Options{}).Apply(context.Background(), sample(), p)
	assert.Error(t, err)
}

func TestApply_Replace(t *testing.T) {
	out := run(t, sample(), `[
		{"op":"replace","column":"city","from":"oslo","value":"bergen"},
		{"op":"replace","column":"score","from":"10","value":11}
	]`)
	city, _ := out.Column("city")
	assert.Equal(t, []string{"rome", "bergen", "", "lima", "bergen"}, strs(city))
	score, _ := out.Column("score")
	assert.Equal(t, 11.0, score.Values[0].Float())
}

func TestApply_NumericOps(t *testing.T) {
	out := run(t, sample(), `[
		{"op":"clip","column":"score","min":20,"max":80},
		{"op":"round","column":"score","digits":1}
	]`)
	score, _ := out.Column("score")
	assert.Equal(t, 20.0, score.Values[0].Float())
	assert.Equal(t, 55.6, score.Values[1].Float())
	assert.True(t, score.Values[2].IsMissing())
	assert.Equal(t, 80.0, score.Values[3].Float())
}

func TestApply_Cast(t *testing.T) {
	tbl := table.MustNew(textCol("when", "2024-01-05", "soon"), textCol("ok", "yes", "no"))
	out := run(t, tbl, `[
		{"op":"cast","column":"when","type":"datetime"},
		{"op":"cast","column":"ok","type":"boolean"}
	]`)
	when, _ := out.Column("when")
	assert.Equal(t, table.Datetime, when.Type)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), when.Values[0].Time())
	assert.True(t, when.Values[1].IsMissing())
	ok, _ := out.Column("ok")
	assert.Equal(t, table.Boolean, ok.Type)
	assert.True(t, ok.Values[0].Bool())
}

func TestApply_SortKeepsMissingLast(t *testing.T) {
	out := run(t, sample(), `[{"op":"sort","column":"score","descending":true}]`)
	score, _ := out.Column("score")
	assert.Equal(t, []string{"90", "55.555", "55.555", "10", ""}, strs(score))
	name, _ := out.Column("name")
	assert.Equal(t, []string{"", "BOB", "BOB", " alice ", "carol smith"}, strs(name))
}

func TestApply_FilterRows(t *testing.T) {
	out := run(t, sample(), `[{"op":"filter_rows","where":"score != None and score > 50"}]`)
	assert.Equal(t, 3, out.NumRows())

	out = run(t, sample(), `[{"op":"filter_rows","where":"row[\"city\"] == \"oslo\""}]`)
	assert.Equal(t, 2, out.NumRows())
}

func TestApply_DeriveColumn(t *testing.T) {
	out := run(t, sample(), `[
		{"op":"derive_column","column":"double","expr":"score * 2 if score != None else None"},
		{"op":"derive_column","column":"high","expr":"score != None and score > 50"},
		{"op":"derive_column","column":"label","expr":"city.upper() if city else 'none'"}
	]`)
	double, _ := out.Column("double")
	assert.Equal(t, table.Numeric, double.Type)
	assert.Equal(t, 20.0, double.Values[0].Float())
	assert.True(t, double.Values[2].IsMissing())

	high, _ := out.Column("high")
	assert.Equal(t, table.Boolean, high.Type)
	assert.Equal(t, []string{"false", "true", "false", "true", "true"}, strs(high))

	label, _ := out.Column("label")
	assert.Equal(t, table.Text, label.Type)
	assert.Equal(t, "none", label.Values[2].Str())
}

func TestApply_DeriveMixedKindsBecomesText(t *testing.T) {
	out := run(t, sample(), `[{"op":"derive_column","column":"mix","expr":"score if score != None else 'none'"}]`)
	mix, _ := out.Column("mix")
	assert.Equal(t, table.Text, mix.Type)
	assert.Equal(t, "10", mix.Values[0].Str())
	assert.Equal(t, "none", mix.Values[2].Str())
}

func TestApply_ExpressionBudget(t *testing.T) {
	p, err := Parse(`[{"op":"filter_rows","where":"len([i for i in range(100000)]) > 0"}]`)
	require.NoError(t, err)
	_, err = NewInterpreter(Options{MaxSteps: 1000}).Apply(context.Background(), sample(), p)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OpFilterRows, se.Op)
}

func TestApply_RuntimeErrorInExpression(t *testing.T) {
	p, err := Parse(`[{"op":"derive_column","column":"bad","expr":"city + 1"}]`)
	require.NoError(t, err)
	_, err = NewInterpreter(Options{}).Apply(context.Background(), sample(), p)
	assert.Error(t, err)
}

func TestApply_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := Parse(`[{"op":"trim","column":"name"}]`)
	require.NoError(t, err)
	_, err = NewInterpreter(Options{}).Apply(ctx, sample(), p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := sample()
	before := in.Clone()
	_ = run(t, in, `[
		{"op":"trim","column":"name"},
		{"op":"fill_missing","column":"score","value":1},
		{"op":"drop_duplicates"}
	]`)
	assert.True(t, before.Equal(in))

	p, err := Parse(`[{"op":"trim","column":"name"},{"op":"trim","column":"nope"}]`)
	require.NoError(t, err)
	_, err = NewInterpreter(Options{}).Apply(context.Background(), in, p)
	require.Error(t, err)
	assert.True(t, before.Equal(in))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Hello World-Wide 2nd", titleCase("hELLO world-wide 2ND"))
}

func TestRowEnvBindsColumns(t *testing.T) {
	tbl := table.MustNew(
		numCol("a", 1, math.NaN()),
		textCol("first name", "Ada", "Bo"),
		textCol("row", "r0", "r1"),
	)
	env, err := rowEnv(tbl, 1)
	require.NoError(t, err)

	assert.Equal(t, "None", env["a"].String(), "missing binds as None")
	assert.NotContains(t, env, "first name")

	row, ok := env["row"].(*starlark.Dict)
	require.True(t, ok, "the row dict wins over a column named row")
	v, found, err := row.Get(starlark.String("first name"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, starlark.String("Bo"), v)
	v, found, err = row.Get(starlark.String("row"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, starlark.String("r1"), v)

	assert.Error(t, row.SetKey(starlark.String("x"), starlark.None), "row is frozen")
}
