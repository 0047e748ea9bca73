package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMissingTokens are the cell contents treated as Missing on read.
var DefaultMissingTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// ParseError reports input that cannot be decoded into a rectangular table.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Msg)
	}
	return "parse error: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReadOptions controls delimited-text decoding.
type ReadOptions struct {
	// Delimiter between fields; 0 means ','.
	Delimiter rune
	// MissingTokens are exact cell contents read as Missing; nil means DefaultMissingTokens.
	MissingTokens []string
}

// ReadCSV decodes delimited text with a header row. Short rows are padded with
// Missing; rows wider than the header are a ParseError. Columns whose every
// present cell is a plain number are typed Numeric, all others Text.
func ReadCSV(r io.Reader, opt ReadOptions) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Msg: "read input", Err: err}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, &ParseError{Msg: "input is not valid UTF-8"}
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Msg: "no columns to parse"}
		}
		return nil, &ParseError{Line: 1, Msg: "read header", Err: err}
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Line: len(rows) + 2, Msg: "read row", Err: err}
		}
		rows = append(rows, rec)
	}
	return FromRecords(header, rows, opt.MissingTokens)
}

// FromRecords builds a table from a header and string rows, applying the same
// missing-token and source typing rules as ReadCSV. Used by non-CSV loaders.
func FromRecords(header []string, rows [][]string, missingTokens []string) (*Table, error) {
	if len(header) == 0 {
		return nil, &ParseError{Msg: "no columns to parse"}
	}
	if missingTokens == nil {
		missingTokens = DefaultMissingTokens
	}
	isMissing := make(map[string]bool, len(missingTokens))
	for _, m := range missingTokens {
		isMissing[m] = true
	}
	names := HeaderNames(header)
	raw := make([][]string, len(names))
	for i, rec := range rows {
		if len(rec) > len(names) {
			return nil, &ParseError{Line: i + 2, Msg: fmt.Sprintf("expected %d fields, saw %d", len(names), len(rec))}
		}
		for j := range names {
			cell := ""
			if j < len(rec) {
				cell = rec[j]
			}
			raw[j] = append(raw[j], cell)
		}
	}
	t := &Table{Columns: make([]*Column, len(names))}
	for j, name := range names {
		t.Columns[j] = sourceColumn(name, raw[j], isMissing)
	}
	return t, nil
}

// HeaderNames makes header names unique and non-empty: blanks become
// "Unnamed: <i>" and repeats get ".1", ".2", ... suffixes.
func HeaderNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for n := 1; seen[name]; n++ {
			name = fmt.Sprintf("%s.%d", base, n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

func sourceColumn(name string, cells []string, isMissing map[string]bool) *Column {
	vals := make([]Value, len(cells))
	numeric := true
	for i, s := range cells {
		if isMissing[s] {
			continue
		}
		f, ok := ParsePlainFloat(s)
		if !ok {
			numeric = false
			break
		}
		vals[i] = Number(f)
	}
	if numeric {
		return &Column{Name: name, Type: Numeric, Values: vals}
	}
	for i, s := range cells {
		if isMissing[s] {
			vals[i] = Missing
			continue
		}
		vals[i] = String(s)
	}
	return &Column{Name: name, Type: Text, Values: vals}
}

// ParsePlainFloat parses a decimal number with optional surrounding spaces.
// Hex literals and digit underscores are rejected. Overflow yields ±Inf.
func ParsePlainFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// WriteCSV encodes the table as comma-separated text with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Bytes encodes the table as CSV in memory.
func (t *Table) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
