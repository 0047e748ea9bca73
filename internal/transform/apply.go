package transform

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/yassinexng/datawise/internal/infer"
	"github.com/yassinexng/datawise/internal/table"
)

// Options bounds expression evaluation.
type Options struct {
	// MaxSteps is the Starlark execution budget per step, across all rows.
	MaxSteps uint64
	// Timeout is the wall-clock budget per expression step.
	Timeout time.Duration
	// Infer configures cast and literal coercion.
	Infer infer.Options
}

// StepError reports a step that failed while being applied.
type StepError struct {
	Step int
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Interpreter applies programs to tables.
type Interpreter struct {
	maxSteps uint64
	timeout  time.Duration
	infer    *infer.Inferencer
}

// NewInterpreter returns an Interpreter; zero limits use the defaults.
func NewInterpreter(opt Options) *Interpreter {
	if opt.MaxSteps == 0 {
		opt.MaxSteps = defaultMaxSteps
	}
	if opt.Timeout <= 0 {
		opt.Timeout = defaultTimeout
	}
	return &Interpreter{maxSteps: opt.MaxSteps, timeout: opt.Timeout, infer: infer.New(opt.Infer)}
}

// Apply runs p against a copy of t. On any failure the copy is discarded and
// t is left untouched.
func (in *Interpreter) Apply(ctx context.Context, t *table.Table, p *Program) (*table.Table, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	work := t.Clone()
	for i, s := range p.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := in.applyStep(ctx, work, s); err != nil {
			return nil, &StepError{Step: i, Op: s.Op, Err: err}
		}
	}
	return work, nil
}

func (in *Interpreter) applyStep(ctx context.Context, t *table.Table, s Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	switch s.Op {
	case OpDropColumns:
		return t.DropColumns(s.Columns...)
	case OpRenameColumn:
		c, err := column(t, s.Column)
		if err != nil {
			return err
		}
		if s.To != s.Column && t.Index(s.To) >= 0 {
			return fmt.Errorf("column %q already exists", s.To)
		}
		c.Name = s.To
		return nil
	case OpDropMissing:
		return dropMissing(t, s.Columns)
	case OpFillMissing:
		return in.fillMissing(t, s)
	case OpReplace:
		return in.replace(t, s)
	case OpTrim:
		return mapText(t, s.Column, strings.TrimSpace)
	case OpLowercase:
		return mapText(t, s.Column, strings.ToLower)
	case OpUppercase:
		return mapText(t, s.Column, strings.ToUpper)
	case OpTitleCase:
		return mapText(t, s.Column, titleCase)
	case OpCast:
		c, err := column(t, s.Column)
		if err != nil {
			return err
		}
		typ, err := table.ParseType(s.Type)
		if err != nil {
			return err
		}
		return t.SetColumn(in.infer.Coerce(c, typ))
	case OpClip:
		return mapNumbers(t, s.Column, func(f float64) float64 {
			if s.Min != nil && f < *s.Min {
				return *s.Min
			}
			if s.Max != nil && f > *s.Max {
				return *s.Max
			}
			return f
		})
	case OpRound:
		scale := math.Pow(10, float64(s.Digits))
		return mapNumbers(t, s.Column, func(f float64) float64 {
			return math.RoundToEven(f*scale) / scale
		})
	case OpDropDuplicates:
		return dropDuplicates(t, s.Columns)
	case OpSort:
		return sortBy(t, s.Column, s.Descending)
	case OpFilterRows:
		return in.filterRows(ctx, t, s.Where)
	case OpDeriveColumn:
		return in.deriveColumn(ctx, t, s.Column, s.Expr)
	}
	return fmt.Errorf("unknown op %q", s.Op)
}

func column(t *table.Table, name string) (*table.Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	return c, nil
}

func dropMissing(t *table.Table, names []string) error {
	idx := make([]int, 0, len(names))
	for _, n := range names {
		i := t.Index(n)
		if i < 0 {
			return fmt.Errorf("unknown column %q", n)
		}
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		for i := range t.Columns {
			idx = append(idx, i)
		}
	}
	var keep []int
	for r := 0; r < t.NumRows(); r++ {
		ok := true
		for _, j := range idx {
			if t.Columns[j].Values[r].IsMissing() {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, r)
		}
	}
	t.SelectRows(keep)
	return nil
}

func dropDuplicates(t *table.Table, names []string) error {
	var idx []int
	for _, n := range names {
		i := t.Index(n)
		if i < 0 {
			return fmt.Errorf("unknown column %q", n)
		}
		idx = append(idx, i)
	}
	seen := map[string]bool{}
	var keep []int
	for r := 0; r < t.NumRows(); r++ {
		k := t.RowKey(r, idx)
		if seen[k] {
			continue
		}
		seen[k] = true
		keep = append(keep, r)
	}
	t.SelectRows(keep)
	return nil
}

// literal converts a JSON literal to a cell of the given column type.
func (in *Interpreter) literal(typ table.Type, v any) (table.Value, error) {
	switch x := v.(type) {
	case nil:
		return table.Missing, nil
	case float64:
		if typ.IsNumeric() {
			return table.Number(x), nil
		}
		if typ == table.Text {
			return table.String(table.FormatNumber(x)), nil
		}
	case bool:
		if typ == table.Boolean {
			return table.Bool(x), nil
		}
		if typ == table.Text {
			return table.String(fmt.Sprint(x)), nil
		}
	case string:
		if typ == table.Text {
			return table.String(x), nil
		}
		probe := &table.Column{Type: table.Text, Values: []table.Value{table.String(x)}}
		if out := in.infer.Coerce(probe, typ).Values[0]; !out.IsMissing() {
			return out, nil
		}
	default:
		return table.Missing, fmt.Errorf("unsupported literal %v", v)
	}
	return table.Missing, fmt.Errorf("literal %v does not fit a %s column", v, typ)
}

func (in *Interpreter) fillMissing(t *table.Table, s Step) error {
	c, err := column(t, s.Column)
	if err != nil {
		return err
	}
	fill, err := in.literal(c.Type, s.Value)
	if err != nil {
		return err
	}
	for i, v := range c.Values {
		if v.IsMissing() {
			c.Values[i] = fill
		}
	}
	return nil
}

func (in *Interpreter) replace(t *table.Table, s Step) error {
	c, err := column(t, s.Column)
	if err != nil {
		return err
	}
	repl, err := in.literal(c.Type, s.Value)
	if err != nil {
		return err
	}
	for i, v := range c.Values {
		if !v.IsMissing() && v.String() == s.From {
			c.Values[i] = repl
		}
	}
	return nil
}

func mapText(t *table.Table, name string, fn func(string) string) error {
	c, err := column(t, name)
	if err != nil {
		return err
	}
	if c.Type != table.Text {
		return fmt.Errorf("column %q is %s, not text", name, c.Type)
	}
	for i, v := range c.Values {
		if v.Kind() == table.KindString {
			c.Values[i] = table.String(fn(v.Str()))
		}
	}
	return nil
}

func mapNumbers(t *table.Table, name string, fn func(float64) float64) error {
	c, err := column(t, name)
	if err != nil {
		return err
	}
	if !c.Type.IsNumeric() {
		return fmt.Errorf("column %q is %s, not numeric", name, c.Type)
	}
	for i, v := range c.Values {
		if v.Kind() == table.KindNumber {
			c.Values[i] = table.Number(fn(v.Float()))
		}
	}
	return nil
}

func titleCase(s string) string {
	rs := []rune(strings.ToLower(s))
	start := true
	for i, r := range rs {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start {
				rs[i] = unicode.ToUpper(r)
			}
			start = false
			continue
		}
		start = true
	}
	return string(rs)
}

// sortBy orders rows by one column, stably, with Missing last.
func sortBy(t *table.Table, name string, desc bool) error {
	c, err := column(t, name)
	if err != nil {
		return err
	}
	rows := make([]int, t.NumRows())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		va, vb := c.Values[rows[a]], c.Values[rows[b]]
		if va.IsMissing() || vb.IsMissing() {
			return !va.IsMissing() && vb.IsMissing()
		}
		if desc {
			return less(vb, va)
		}
		return less(va, vb)
	})
	t.SelectRows(rows)
	return nil
}

func less(a, b table.Value) bool {
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	switch a.Kind() {
	case table.KindNumber:
		return a.Float() < b.Float()
	case table.KindTime:
		return a.Time().Before(b.Time())
	case table.KindBool:
		return !a.Bool() && b.Bool()
	}
	return a.Str() < b.Str()
}

func (in *Interpreter) filterRows(ctx context.Context, t *table.Table, where string) error {
	ev := newEvaluator("where", where, in.maxSteps)
	var keep []int
	err := runWithTimeout(ctx, ev.thread, in.timeout, func() error {
		for r := 0; r < t.NumRows(); r++ {
			v, err := ev.eval(t, r)
			if err != nil {
				return err
			}
			if v.Truth() {
				keep = append(keep, r)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.SelectRows(keep)
	return nil
}

func (in *Interpreter) deriveColumn(ctx context.Context, t *table.Table, name, expr string) error {
	ev := newEvaluator("expr", expr, in.maxSteps)
	vals := make([]table.Value, t.NumRows())
	err := runWithTimeout(ctx, ev.thread, in.timeout, func() error {
		for r := range vals {
			v, err := ev.eval(t, r)
			if err != nil {
				return err
			}
			if vals[r], err = fromStarlark(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return t.SetColumn(&table.Column{Name: name, Type: derivedType(vals), Values: vals})
}

// derivedType picks the column type for expression results; mixed kinds
// fall back to text.
func derivedType(vals []table.Value) table.Type {
	kind := table.KindMissing
	for _, v := range vals {
		if v.IsMissing() {
			continue
		}
		if kind == table.KindMissing {
			kind = v.Kind()
			continue
		}
		if v.Kind() != kind {
			for i, x := range vals {
				if !x.IsMissing() {
					vals[i] = table.String(x.String())
				}
			}
			return table.Text
		}
	}
	switch kind {
	case table.KindNumber:
		return table.Numeric
	case table.KindBool:
		return table.Boolean
	}
	return table.Text
}
