package profile

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/yassinexng/datawise/internal/jsonx"
	"github.com/yassinexng/datawise/internal/table"
)

// Report renders the text handed to the narrative summarizer: head rows,
// shape, describe-style statistics, missing counts and column types.
func Report(t *table.Table, p *Profile, headRows int) string {
	if headRows <= 0 {
		headRows = DefaultOptions().HeadRows
	}
	var b strings.Builder
	b.WriteString("Dataset head:\n")
	writeHead(&b, t, headRows)

	b.WriteString("\nShape:\n")
	b.WriteString(fmt.Sprintf("(%d, %d)\n", p.Rows, p.Cols))

	b.WriteString("\nStats:\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "column\tcount\tunique\ttop\tfreq\tmean\tstd\tmin\t25%\t50%\t75%\tmax\toutliers")
	for _, c := range p.Columns {
		switch {
		case c.Numeric != nil:
			n := c.Numeric
			fmt.Fprintf(tw, "%s\t%d\t\t\t\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				safeName(c.Name), n.Count, num(n.Mean), num(n.Std), num(n.Min),
				num(n.Q1), num(n.Median), num(n.Q3), num(n.Max), n.Outliers)
		case c.Categorical != nil:
			s := c.Categorical
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\t\t\t\t\t\t\t\t\n",
				safeName(c.Name), s.Count, s.Unique, safeVal(s.Top), s.Freq)
		}
	}
	_ = tw.Flush()

	b.WriteString("\nMissing:\n")
	tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, c := range p.Columns {
		fmt.Fprintf(tw, "%s\t%d\n", safeName(c.Name), c.Missing)
	}
	_ = tw.Flush()

	b.WriteString("\nTypes:\n")
	tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, c := range p.Columns {
		fmt.Fprintf(tw, "%s\t%s\n", safeName(c.Name), c.Type)
	}
	_ = tw.Flush()
	return b.String()
}

func writeHead(b *strings.Builder, t *table.Table, rows int) {
	head := t.Head(rows, -1)
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for i, name := range head.Names() {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, safeName(name))
	}
	fmt.Fprintln(tw)
	for i := 0; i < head.NumRows(); i++ {
		for j, v := range head.Row(i) {
			if j > 0 {
				fmt.Fprint(tw, "\t")
			}
			s := v.String()
			if v.IsMissing() {
				s = "NaN"
			}
			if r := []rune(s); len(r) > 80 {
				s = string(r[:77]) + "..."
			}
			fmt.Fprint(tw, safeVal(s))
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}

func num(f jsonx.Float) string {
	if !f.Finite() {
		return "NaN"
	}
	return fmt.Sprintf("%.4g", float64(f))
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return safeVal(s)
}

func safeVal(s string) string {
	return strings.NewReplacer("\n", " ", "\t", " ", "\r", " ").Replace(s)
}
