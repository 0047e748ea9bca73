package table

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_SourceTyping(t *testing.T) {
	in := "id,name,score,when\n1,alice,3.5,2024-01-01\n2,bob,NA,\n3, carol ,1e3,x\n"
	tbl, err := ReadCSV(strings.NewReader(in), ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, tbl.NumRows())
	require.Equal(t, []string{"id", "name", "score", "when"}, tbl.Names())

	id, _ := tbl.Column("id")
	assert.Equal(t, Numeric, id.Type)
	assert.Equal(t, []float64{1, 2, 3}, id.Floats())

	name, _ := tbl.Column("name")
	assert.Equal(t, Text, name.Type)
	assert.Equal(t, " carol ", name.Values[2].Str())

	score, _ := tbl.Column("score")
	assert.Equal(t, Numeric, score.Type)
	assert.True(t, score.Values[1].IsMissing())
	assert.Equal(t, 1000.0, score.Values[2].Float())

	when, _ := tbl.Column("when")
	assert.Equal(t, Text, when.Type)
	assert.Equal(t, 1, when.MissingCount())
}

func TestReadCSV_ShortRowsArePadded(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,b,c\n1,2\n"), ReadOptions{})
	require.NoError(t, err)
	c, _ := tbl.Column("c")
	assert.True(t, c.Values[0].IsMissing())
}

func TestReadCSV_ParseErrors(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"wide row":    "a,b\n1,2,3\n",
		"invalid utf": "a,b\n\xff\xfe,1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(in), ReadOptions{})
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
		})
	}
}

func TestReadCSV_Delimiter(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a;b\n1;x\n"), ReadOptions{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Names())
}

func TestHeaderNames(t *testing.T) {
	got := HeaderNames([]string{"a", "", "a", "a", " b "})
	assert.Equal(t, []string{"a", "Unnamed: 1", "a.1", "a.2", "b"}, got)
}

func TestCSVRoundTrip(t *testing.T) {
	when := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	tbl := MustNew(
		&Column{Name: "n", Type: Numeric, Values: []Value{Number(1.5), Missing, Number(-2)}},
		&Column{Name: "d", Type: Datetime, Values: []Value{Time(when), Missing, Time(when.Add(90 * time.Minute))}},
		&Column{Name: "s", Type: Text, Values: []Value{String("a,b"), String("x"), Missing}},
		&Column{Name: "b", Type: Boolean, Values: []Value{Bool(true), Bool(false), Missing}},
	)
	data, err := tbl.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "n,d,s,b\n1.5,2024-02-15,\"a,b\",true\n,,x,false\n-2,2024-02-15 01:30:00,,\n", string(data))

	back, err := ReadCSV(strings.NewReader(string(data)), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, tbl.Names(), back.Names())
	n, _ := back.Column("n")
	assert.Equal(t, []float64{1.5, -2}, n.Floats())
}

func TestNewRejectsBadColumns(t *testing.T) {
	_, err := New(
		&Column{Name: "a", Values: []Value{Number(1)}},
		&Column{Name: "a", Values: []Value{Number(2)}},
	)
	require.Error(t, err)

	_, err = New(
		&Column{Name: "a", Values: []Value{Number(1)}},
		&Column{Name: "b", Values: []Value{Number(1), Number(2)}},
	)
	require.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := MustNew(&Column{Name: "a", Type: Numeric, Values: []Value{Number(1), Number(2)}})
	cp := tbl.Clone()
	cp.Columns[0].Values[0] = Number(99)
	cp.Columns[0].Name = "z"
	assert.Equal(t, 1.0, tbl.Columns[0].Values[0].Float())
	assert.Equal(t, "a", tbl.Columns[0].Name)
	assert.False(t, tbl.Equal(cp))
}

func TestRowKey(t *testing.T) {
	tbl := MustNew(
		&Column{Name: "a", Values: []Value{String("1"), Number(1), Missing, Missing}},
		&Column{Name: "b", Values: []Value{String("x"), String("x"), Missing, Missing}},
	)
	assert.NotEqual(t, tbl.RowKey(0, nil), tbl.RowKey(1, nil))
	assert.Equal(t, tbl.RowKey(2, nil), tbl.RowKey(3, nil))
	assert.Equal(t, tbl.RowKey(0, []int{1}), tbl.RowKey(1, []int{1}))
}

func TestValueSemantics(t *testing.T) {
	assert.True(t, Number(math.NaN()).IsMissing())
	assert.True(t, Missing.Equal(Value{}))
	assert.False(t, Number(0).Equal(Missing))
	assert.Equal(t, "1e+21", Number(1e21).String())
	assert.Equal(t, "1234567", Number(1234567).String())
	assert.Equal(t, "inf", Number(math.Inf(1)).String())
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{
		"numeric": Numeric, "Float": Numeric, "date": Datetime, "bool": Boolean,
		"percentage": Percentage, "currency": Currency, "text": Text,
	} {
		got, err := ParseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseType("blob")
	assert.Error(t, err)
}

func TestHeadAndSelectRows(t *testing.T) {
	tbl := MustNew(
		&Column{Name: "a", Values: []Value{Number(1), Number(2), Number(3)}},
		&Column{Name: "b", Values: []Value{Number(4), Number(5), Number(6)}},
	)
	h := tbl.Head(2, 1)
	assert.Equal(t, 2, h.NumRows())
	assert.Equal(t, []string{"a"}, h.Names())

	cp := tbl.Clone()
	cp.SelectRows([]int{2, 0})
	assert.Equal(t, []float64{3, 1}, cp.Columns[0].Floats())
	assert.Equal(t, 3, tbl.NumRows())
}
