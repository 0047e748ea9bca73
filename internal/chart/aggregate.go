package chart

import (
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yassinexng/datawise/internal/jsonx"
	"github.com/yassinexng/datawise/internal/table"
)

// Options controls aggregation.
type Options struct {
	// Bins is the histogram bin count.
	Bins int
	// TopN caps the categories per bar chart.
	TopN int
	// ScatterMax caps the points per scatter chart.
	ScatterMax int
	// Seed drives scatter down-sampling.
	Seed int64
	// CorrelationDecimals rounds matrix entries; negative disables rounding.
	CorrelationDecimals int
}

// DefaultOptions returns the standard chart settings.
func DefaultOptions() Options {
	return Options{Bins: 10, TopN: 10, ScatterMax: 100, Seed: 42, CorrelationDecimals: 3}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Bins <= 0 {
		o.Bins = def.Bins
	}
	if o.TopN <= 0 {
		o.TopN = def.TopN
	}
	if o.ScatterMax <= 0 {
		o.ScatterMax = def.ScatterMax
	}
	return o
}

// Build produces, in order: one histogram or category bar per column in
// column order, one scatter per numeric pair (i<j), then the correlation
// matrix when at least two numeric columns exist.
func Build(t *table.Table, opt Options) []Spec {
	opt = opt.withDefaults()
	var out []Spec
	var numeric []*table.Column
	for _, c := range t.Columns {
		if c.Type.IsNumeric() {
			numeric = append(numeric, c)
			if h := NewHistogram(c, opt.Bins); h != nil {
				out = append(out, h)
			}
			continue
		}
		if bar := NewCategoryBar(c, opt.TopN); bar != nil {
			out = append(out, bar)
		}
	}
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			out = append(out, NewScatter(numeric[i], numeric[j], opt.ScatterMax, opt.Seed))
		}
	}
	if len(numeric) >= 2 {
		out = append(out, NewCorrelationMatrix(numeric, opt.CorrelationDecimals))
	}
	return out
}

// NewHistogram bins the finite values of c into equal-width bins. It returns
// nil when no finite values remain.
func NewHistogram(c *table.Column, bins int) *Histogram {
	var vals []float64
	for _, v := range c.Floats() {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)
	edges := binEdges(vals[0], vals[len(vals)-1], bins)
	// stat.Histogram bins are half-open; nudging the last divider past the
	// maximum closes the final bin.
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(dividers[bins], math.Inf(1))
	raw := stat.Histogram(nil, dividers, vals, nil)
	counts := make([]int, bins)
	for i, n := range raw {
		counts[i] = int(n)
	}
	labels := make([]string, bins)
	for i := 0; i < bins; i++ {
		labels[i] = pyFloat(round(edges[i], 2)) + "-" + pyFloat(round(edges[i+1], 2))
	}
	return &Histogram{Title: "Histogram of " + c.Name, BinLabels: labels, Counts: counts}
}

// binEdges spans [lo, hi] in bins equal steps; a zero-width range is
// widened by 0.5 on each side. The last edge is exactly hi.
func binEdges(lo, hi float64, bins int) []float64 {
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	edges := floats.Span(make([]float64, bins+1), lo, hi)
	if step := (hi - lo) / float64(bins); math.IsInf(step, 0) {
		// hi-lo overflowed; interpolate without forming the width.
		for i := range edges {
			f := float64(i) / float64(bins)
			edges[i] = lo*(1-f) + hi*f
		}
	}
	edges[bins] = hi
	return edges
}

// NewCategoryBar counts the most frequent non-missing values of c. Ties
// keep first-seen order. It returns nil when c has no values.
func NewCategoryBar(c *table.Column, topN int) *CategoryBar {
	counts := map[string]int{}
	var order []string
	for _, v := range c.Values {
		if v.IsMissing() {
			continue
		}
		label := v.String()
		if counts[label] == 0 {
			order = append(order, label)
		}
		counts[label]++
	}
	if len(order) == 0 {
		return nil
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > topN {
		order = order[:topN]
	}
	bar := &CategoryBar{Title: "Top categories in " + c.Name, Labels: order, Counts: make([]int, len(order))}
	for i, label := range order {
		bar.Counts[i] = counts[label]
	}
	return bar
}

// NewScatter pairs rows where both x and y are present. When more than limit
// rows qualify, a seeded sample of exactly limit rows is kept in row order.
func NewScatter(x, y *table.Column, limit int, seed int64) *Scatter {
	var rows []int
	for i := range x.Values {
		if !x.Values[i].IsMissing() && !y.Values[i].IsMissing() {
			rows = append(rows, i)
		}
	}
	if len(rows) > limit {
		rng := rand.New(rand.NewSource(seed))
		pick := rng.Perm(len(rows))[:limit]
		sort.Ints(pick)
		sampled := make([]int, limit)
		for k, p := range pick {
			sampled[k] = rows[p]
		}
		rows = sampled
	}
	s := &Scatter{Title: "Scatter: " + x.Name + " vs " + y.Name, XName: x.Name, YName: y.Name, Points: make([]Point, len(rows))}
	for k, i := range rows {
		s.Points[k] = Point{X: jsonx.Float(x.Values[i].Float()), Y: jsonx.Float(y.Values[i].Float())}
	}
	return s
}

// NewCorrelationMatrix computes Pearson correlations over pairwise-complete
// rows. The matrix is filled from its upper triangle, so it is symmetric;
// the diagonal is 1 unless the column is constant or too short.
func NewCorrelationMatrix(cols []*table.Column, decimals int) *CorrelationMatrix {
	n := len(cols)
	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := pearson(cols[i], cols[j])
			if i == j && !math.IsNaN(r) && !math.IsInf(r, 0) {
				r = 1
			}
			vals[i][j] = r
			vals[j][i] = r
		}
	}
	m := &CorrelationMatrix{Title: "Correlation Matrix", Labels: make([]string, n), Rows: make([]MatrixRow, n)}
	for i, c := range cols {
		m.Labels[i] = c.Name
		row := MatrixRow{Name: c.Name, Values: make([]jsonx.Float, n)}
		for j, r := range vals[i] {
			if decimals >= 0 {
				r = round(r, decimals)
			}
			row.Values[j] = jsonx.Float(r)
		}
		m.Rows[i] = row
	}
	return m
}

func pearson(a, b *table.Column) float64 {
	var xs, ys []float64
	for i := range a.Values {
		if a.Values[i].IsMissing() || b.Values[i].IsMissing() {
			continue
		}
		xs = append(xs, a.Values[i].Float())
		ys = append(ys, b.Values[i].Float())
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

// round rounds f to the given decimals through its decimal representation.
func round(f float64, decimals int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', decimals, 64), 64)
	if err != nil {
		return f
	}
	return r
}

// pyFloat prints the shortest round-tripping form, keeping a trailing ".0"
// on integral values and exponent form for very large or small magnitudes.
func pyFloat(f float64) string {
	a := math.Abs(f)
	if a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
