// Package infer classifies raw text columns into semantic types and coerces
// them into typed cells.
package infer

import (
	"regexp"
	"strings"

	"github.com/yassinexng/datawise/internal/table"
)

// Options controls the inference thresholds.
type Options struct {
	// DateKeywords must appear in the lower-cased column name before a
	// column is considered for Datetime.
	DateKeywords []string
	// DateThreshold is the minimum share of values that must parse as dates.
	DateThreshold float64
	// NumericThreshold is the minimum share of values that must parse as numbers.
	NumericThreshold float64
	// PercentThreshold is the minimum share of values ending with "%".
	PercentThreshold float64
	// CurrencyThreshold is the minimum share of values shaped like amounts.
	CurrencyThreshold float64
	// BoolVocabulary maps lower-cased tokens to boolean values.
	BoolVocabulary map[string]bool
}

// DefaultOptions returns the standard inference thresholds.
func DefaultOptions() Options {
	return Options{
		DateKeywords:      []string{"date", "time", "year", "month", "day", "created", "updated", "timestamp", "born", "founded"},
		DateThreshold:     0.5,
		NumericThreshold:  0.7,
		PercentThreshold:  0.7,
		CurrencyThreshold: 0.7,
		BoolVocabulary: map[string]bool{
			"true": true, "false": false,
			"yes": true, "no": false,
			"1": true, "0": false,
		},
	}
}

// Rule is one link of the inference chain. Match sees the column name and
// its non-missing raw values.
type Rule struct {
	Type  table.Type
	Match func(name string, values []string) bool
}

// Rules returns the inference chain in evaluation order. The first matching
// rule decides the type; Text is the fallback when none match.
func Rules(opt Options) []Rule {
	return []Rule{
		{Type: table.Datetime, Match: func(name string, values []string) bool {
			return nameHasKeyword(name, opt.DateKeywords) && share(values, isDate) >= opt.DateThreshold
		}},
		{Type: table.Boolean, Match: func(_ string, values []string) bool {
			return looksBoolean(values, opt.BoolVocabulary)
		}},
		{Type: table.Numeric, Match: func(_ string, values []string) bool {
			return share(values, looksNumeric) >= opt.NumericThreshold
		}},
		{Type: table.Percentage, Match: func(_ string, values []string) bool {
			return share(values, looksPercent) >= opt.PercentThreshold
		}},
		{Type: table.Currency, Match: func(_ string, values []string) bool {
			return share(values, looksCurrency) >= opt.CurrencyThreshold
		}},
	}
}

// Inferencer runs the rule chain over columns.
type Inferencer struct {
	opt   Options
	rules []Rule
}

// New builds an Inferencer. Zero thresholds and empty vocabularies fall back
// to DefaultOptions.
func New(opt Options) *Inferencer {
	def := DefaultOptions()
	if len(opt.DateKeywords) == 0 {
		opt.DateKeywords = def.DateKeywords
	}
	if opt.DateThreshold <= 0 {
		opt.DateThreshold = def.DateThreshold
	}
	if opt.NumericThreshold <= 0 {
		opt.NumericThreshold = def.NumericThreshold
	}
	if opt.PercentThreshold <= 0 {
		opt.PercentThreshold = def.PercentThreshold
	}
	if opt.CurrencyThreshold <= 0 {
		opt.CurrencyThreshold = def.CurrencyThreshold
	}
	if len(opt.BoolVocabulary) == 0 {
		opt.BoolVocabulary = def.BoolVocabulary
	}
	return &Inferencer{opt: opt, rules: Rules(opt)}
}

// Infer returns the semantic type of c. Columns already holding typed cells
// keep their type.
func (in *Inferencer) Infer(c *table.Column) table.Type {
	values, typed := rawValues(c)
	if typed {
		return c.Type
	}
	if len(values) == 0 {
		return table.Text
	}
	for _, r := range in.rules {
		if r.Match(c.Name, values) {
			return r.Type
		}
	}
	return table.Text
}

// Normalize infers the type of c and returns a coerced copy.
func (in *Inferencer) Normalize(c *table.Column) *table.Column {
	return in.Coerce(c, in.Infer(c))
}

// rawValues collects the non-missing text cells of c. typed is true when
// the column is not a Text column or holds any non-text cell.
func rawValues(c *table.Column) (values []string, typed bool) {
	if c.Type != table.Text {
		return nil, true
	}
	values = make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		switch v.Kind() {
		case table.KindMissing:
		case table.KindString:
			values = append(values, v.Str())
		default:
			return nil, true
		}
	}
	return values, false
}

func nameHasKeyword(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func share(values []string, pred func(string) bool) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	return float64(n) / float64(len(values))
}

func looksBoolean(values []string, vocab map[string]bool) bool {
	seen := map[bool]bool{}
	for _, v := range values {
		b, ok := vocab[strings.ToLower(strings.TrimSpace(v))]
		if !ok {
			return false
		}
		seen[b] = true
	}
	return len(seen) <= 2
}

func isDate(s string) bool {
	_, ok := ParseTime(s)
	return ok
}

func looksNumeric(s string) bool {
	_, ok := table.ParsePlainFloat(stripSeparators(s))
	return ok
}

func looksPercent(s string) bool {
	return strings.HasSuffix(strings.TrimSpace(s), "%")
}

var currencyPattern = regexp.MustCompile(`^[$€£¥]?[\d,]+\.?\d*$`)

func looksCurrency(s string) bool {
	return currencyPattern.MatchString(strings.TrimSpace(s))
}

func stripSeparators(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer(",", "", " ", "").Replace(s)
}
