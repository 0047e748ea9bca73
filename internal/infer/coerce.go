package infer

import (
	"strings"
	"time"

	"github.com/yassinexng/datawise/internal/table"
)

// timeLayouts are tried in order; month-first wins for ambiguous slash dates.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2/1/2006",
	"1-2-2006",
	"2-1-2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"2006-01",
	"Jan 2006",
	"January 2006",
}

// ParseTime parses a calendar date or timestamp in one of the accepted layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Coerce converts c to type t. Cells that cannot be converted become Missing.
// Coercing a column to the type it already has returns an unchanged copy.
func (in *Inferencer) Coerce(c *table.Column, t table.Type) *table.Column {
	out := &table.Column{Name: c.Name, Type: t, Values: make([]table.Value, len(c.Values))}
	for i, v := range c.Values {
		out.Values[i] = in.coerceValue(v, t)
	}
	return out
}

func (in *Inferencer) coerceValue(v table.Value, t table.Type) table.Value {
	switch v.Kind() {
	case table.KindMissing:
		return table.Missing
	case table.KindNumber:
		if t.IsNumeric() {
			return v
		}
	case table.KindTime:
		if t == table.Datetime {
			return v
		}
	case table.KindBool:
		if t == table.Boolean {
			return v
		}
	}
	raw := v.String()
	switch t {
	case table.Numeric:
		return parseNumber(stripSeparators(raw))
	case table.Percentage:
		return parseNumber(stripSeparators(strings.ReplaceAll(raw, "%", "")))
	case table.Currency:
		return parseNumber(strings.TrimSpace(currencyStripper.Replace(raw)))
	case table.Datetime:
		if ts, ok := ParseTime(raw); ok {
			return table.Time(ts)
		}
		return table.Missing
	case table.Boolean:
		if b, ok := in.opt.BoolVocabulary[strings.ToLower(strings.TrimSpace(raw))]; ok {
			return table.Bool(b)
		}
		return table.Missing
	}
	return table.String(strings.TrimSpace(raw))
}

var currencyStripper = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "")

func parseNumber(s string) table.Value {
	f, ok := table.ParsePlainFloat(s)
	if !ok {
		return table.Missing
	}
	return table.Number(f)
}
