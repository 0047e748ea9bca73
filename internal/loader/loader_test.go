package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yassinexng/datawise/internal/loader"
	"github.com/yassinexng/datawise/internal/table"
)

func TestSniffDelimiter(t *testing.T) {
	cases := map[string]struct {
		in   string
		want rune
	}{
		"comma":           {"a,b,c\n1,2,3\n", ','},
		"semicolon":       {"a;b;c\n1,5;2;3\n", ';'},
		"tab":             {"a\tb\n1\t2\n", '\t'},
		"pipe":            {"a|b|c\n1|2|3\n", '|'},
		"quoted commas":   {"name;note\n\"x, y, z\";1\n", ';'},
		"single column":   {"a\n1\n2\n", ','},
		"empty":           {"", ','},
		"inconsistent":    {"a;b;c\n1;2\n", ';'},
		"bom then commas": {"\xef\xbb\xbfa,b\n1,2\n", ','},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, string(tc.want), string(loader.SniffDelimiter([]byte(tc.in))))
		})
	}
}

func TestLoadDelimited(t *testing.T) {
	tbl, err := loader.Load("sales.csv", []byte("region;units\nnorth;3\nsouth;NA\n"), loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "units"}, tbl.Names())
	assert.Equal(t, 2, tbl.NumRows())
	units, _ := tbl.Column("units")
	assert.Equal(t, table.Numeric, units.Type)
	assert.True(t, units.Values[1].IsMissing())

	tbl, err = loader.Load("x.TSV", []byte("a\tb\n1\t2\n"), loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Names())

	// forced delimiter wins over sniffing
	tbl, err = loader.Load("x.txt", []byte("a;b\n1;2\n"), loader.Options{Delimiter: ','})
	require.NoError(t, err)
	assert.Equal(t, []string{"a;b"}, tbl.Names())
}

func TestLoadMissingTokens(t *testing.T) {
	tbl, err := loader.Load("x.csv", []byte("a\n-\nNA\n"), loader.Options{MissingTokens: []string{"", "-"}})
	require.NoError(t, err)
	a, _ := tbl.Column("a")
	assert.True(t, a.Values[0].IsMissing())
	assert.Equal(t, "NA", a.Values[1].String())
}

func TestLoadUnsupported(t *testing.T) {
	_, err := loader.Load("notes.docx", []byte("x"), loader.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, loader.ErrUnsupported))
	assert.Contains(t, err.Error(), ".docx")
}

func TestLoadParseError(t *testing.T) {
	_, err := loader.Load("x.csv", []byte(""), loader.Options{})
	var pe *table.ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
}

func workbook(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"Orders": {
			{"id", "amount"},
			{1, 9.5},
			{2, "NA"},
		},
		"Notes": {
			{"note"},
			{"hello"},
		},
	}, "Orders", "Notes")

	tbl, err := loader.Load("book.xlsx", data, loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "amount"}, tbl.Names())
	assert.Equal(t, 2, tbl.NumRows())
	amount, _ := tbl.Column("amount")
	assert.Equal(t, table.Numeric, amount.Type)
	assert.InDelta(t, 9.5, amount.Values[0].Float(), 1e-9)
	assert.True(t, amount.Values[1].IsMissing())

	tbl, err = loader.Load("book.xlsx", data, loader.Options{Sheet: "Notes"})
	require.NoError(t, err)
	assert.Equal(t, []string{"note"}, tbl.Names())

	tbl, err = loader.Load("book.xlsx", data, loader.Options{SheetIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"note"}, tbl.Names())

	_, err = loader.Load("book.xlsx", data, loader.Options{Sheet: "Missing"})
	var pe *table.ParseError
	require.True(t, errors.As(err, &pe))

	_, err = loader.Load("book.xlsx", data, loader.Options{SheetIndex: 3})
	require.True(t, errors.As(err, &pe))
}

func TestLoadXLSXWideRows(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"S": {
			{"a"},
			{1, "extra"},
		},
	}, "S")
	tbl, err := loader.Load("w.xlsx", data, loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "Unnamed: 1"}, tbl.Names())
}

func TestLoadXLSXCorrupt(t *testing.T) {
	_, err := loader.Load("bad.xlsx", []byte("not a zip"), loader.Options{})
	var pe *table.ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(p, []byte("x,y\n1,2\n"), 0o644))
	tbl, err := loader.LoadFile(p, loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.NumRows())

	_, err = loader.LoadFile(filepath.Join(dir, "nope.csv"), loader.Options{})
	assert.Error(t, err)
}
