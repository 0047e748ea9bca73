// Package profile computes descriptive statistics and outlier counts over a
// typed table.
package profile

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/yassinexng/datawise/internal/jsonx"
	"github.com/yassinexng/datawise/internal/table"
)

// Options controls profiling.
type Options struct {
	// OutlierMultiplier is k in the Tukey fences [Q1-k*IQR, Q3+k*IQR].
	OutlierMultiplier float64
	// HeadRows is how many leading rows the text report shows.
	HeadRows int
}

// DefaultOptions returns the standard profiling settings.
func DefaultOptions() Options {
	return Options{OutlierMultiplier: 1.5, HeadRows: 5}
}

// Profile is a read-only snapshot of a table's shape and column statistics.
type Profile struct {
	Rows    int             `json:"rows"`
	Cols    int             `json:"columns"`
	Columns []ColumnProfile `json:"column_profiles"`
}

// ColumnProfile describes one column. Numeric is set for numeric-family
// columns, Categorical for all others.
type ColumnProfile struct {
	Name        string              `json:"name"`
	Type        table.Type          `json:"type"`
	Missing     int                 `json:"missing"`
	Numeric     *NumericSummary     `json:"numeric,omitempty"`
	Categorical *CategoricalSummary `json:"categorical,omitempty"`
}

// NumericSummary holds describe-style statistics over non-missing values.
type NumericSummary struct {
	Count    int         `json:"count"`
	Mean     jsonx.Float `json:"mean"`
	Std      jsonx.Float `json:"std"`
	Min      jsonx.Float `json:"min"`
	Q1       jsonx.Float `json:"q1"`
	Median   jsonx.Float `json:"median"`
	Q3       jsonx.Float `json:"q3"`
	Max      jsonx.Float `json:"max"`
	IQR      jsonx.Float `json:"iqr"`
	Lower    jsonx.Float `json:"lower_bound"`
	Upper    jsonx.Float `json:"upper_bound"`
	Outliers int         `json:"outliers"`
}

// CategoricalSummary reports value frequencies for non-numeric columns.
type CategoricalSummary struct {
	Count  int    `json:"count"`
	Unique int    `json:"unique"`
	Top    string `json:"top,omitempty"`
	Freq   int    `json:"freq"`
}

// Column returns the profile of the named column.
func (p *Profile) Column(name string) (*ColumnProfile, bool) {
	for i := range p.Columns {
		if p.Columns[i].Name == name {
			return &p.Columns[i], true
		}
	}
	return nil, false
}

// Compute profiles every column of t.
func Compute(t *table.Table, opt Options) *Profile {
	k := opt.OutlierMultiplier
	if k <= 0 {
		k = DefaultOptions().OutlierMultiplier
	}
	p := &Profile{Rows: t.NumRows(), Cols: t.NumCols(), Columns: make([]ColumnProfile, 0, t.NumCols())}
	for _, c := range t.Columns {
		cp := ColumnProfile{Name: c.Name, Type: c.Type, Missing: c.MissingCount()}
		if c.Type.IsNumeric() {
			cp.Numeric = Numeric(c.Floats(), k)
		} else {
			cp.Categorical = categorical(c)
		}
		p.Columns = append(p.Columns, cp)
	}
	return p
}

// Numeric summarizes values and counts outliers with multiplier k. Empty
// input yields a zero count and null statistics.
func Numeric(values []float64, k float64) *NumericSummary {
	nan := jsonx.Float(math.NaN())
	s := &NumericSummary{Count: len(values), Mean: nan, Std: nan, Min: nan, Q1: nan, Median: nan, Q3: nan, Max: nan, IQR: nan, Lower: nan, Upper: nan}
	if len(values) == 0 {
		return s
	}
	data := stats.Float64Data(values)
	if mean, err := stats.Mean(data); err == nil {
		s.Mean = jsonx.Float(mean)
	}
	if lo, err := stats.Min(data); err == nil {
		s.Min = jsonx.Float(lo)
	}
	if hi, err := stats.Max(data); err == nil {
		s.Max = jsonx.Float(hi)
	}
	if len(values) > 1 {
		if sd, err := stats.StandardDeviationSample(data); err == nil {
			s.Std = jsonx.Float(sd)
		}
	}

	q1, med, q3 := Quartiles(values)
	lower, upper, n := Outliers(values, q1, q3, k)
	s.Q1, s.Median, s.Q3 = jsonx.Float(q1), jsonx.Float(med), jsonx.Float(q3)
	s.IQR = jsonx.Float(q3 - q1)
	s.Lower, s.Upper = jsonx.Float(lower), jsonx.Float(upper)
	s.Outliers = n
	return s
}

// Outliers applies Tukey's rule: values strictly outside
// [q1-k*IQR, q3+k*IQR] are counted. Collapsed bounds are not special-cased.
func Outliers(values []float64, q1, q3, k float64) (lower, upper float64, count int) {
	iqr := q3 - q1
	lower = q1 - k*iqr
	upper = q3 + k*iqr
	for _, v := range values {
		if v < lower || v > upper {
			count++
		}
	}
	return lower, upper, count
}

// Quartiles returns Q1, median and Q3 with linear interpolation.
func Quartiles(values []float64) (q1, median, q3 float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return quantile(sorted, 0.25), quantile(sorted, 0.5), quantile(sorted, 0.75)
}

// quantile interpolates linearly between closest ranks at position q*(n-1).
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func categorical(c *table.Column) *CategoricalSummary {
	s := &CategoricalSummary{}
	counts := map[string]int{}
	var order []string
	for _, v := range c.Values {
		if v.IsMissing() {
			continue
		}
		s.Count++
		key := v.String()
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}
	s.Unique = len(order)
	for _, key := range order {
		if counts[key] > s.Freq {
			s.Top, s.Freq = key, counts[key]
		}
	}
	return s
}
