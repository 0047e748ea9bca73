// Package clean applies ordered cleaning operations to a table.
package clean

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yassinexng/datawise/internal/infer"
	"github.com/yassinexng/datawise/internal/table"
	"github.com/yassinexng/datawise/internal/transform"
)

// Operation identifiers.
const (
	NormalizeTypes   = "normalize_types"
	RemoveDuplicates = "remove_duplicates"
	FillMissing      = "fill_missing"
	Opaque           = "opaque"
)

// Placeholder fills missing non-numeric cells.
const Placeholder = "Unknown"

var aliases = map[string]string{
	"item1": NormalizeTypes,
	"item2": RemoveDuplicates,
	"item3": FillMissing,
}

// Operation is one cleaning step. Instruction is only used by Opaque.
type Operation struct {
	ID          string `json:"id"`
	Instruction string `json:"instruction,omitempty"`
}

// Canonical resolves aliases and case; unknown identifiers come back as given.
func (o Operation) Canonical() string {
	id := strings.ToLower(strings.TrimSpace(o.ID))
	if a, ok := aliases[id]; ok {
		return a
	}
	return id
}

// Planner turns a free-form instruction into a transformation program text.
type Planner interface {
	PlanTransform(ctx context.Context, columns []string, instruction string) (string, error)
}

// UnsupportedOperationError reports an operation identifier outside the known set.
type UnsupportedOperationError struct {
	Index int
	ID    string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported cleaning operation %q at position %d", e.ID, e.Index)
}

// TransformApplicationError reports an opaque step whose returned
// transformation could not be parsed or applied.
type TransformApplicationError struct {
	Instruction string
	Err         error
}

func (e *TransformApplicationError) Error() string {
	return fmt.Sprintf("failed to apply transformation for %q: %v", e.Instruction, e.Err)
}

func (e *TransformApplicationError) Unwrap() error { return e.Err }

// ErrNoPlanner is wrapped in a TransformApplicationError for an opaque step
// when no Planner is configured.
var ErrNoPlanner = errors.New("opaque operation requires a planner")

// StepReport describes the effect of one applied operation.
type StepReport struct {
	Op           string        `json:"op"`
	RowsBefore   int           `json:"rows_before"`
	RowsAfter    int           `json:"rows_after"`
	CellsChanged int           `json:"cells_changed"`
	TypeChanges  []string      `json:"type_changes,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Result is the outcome of a run: the table as of the last successful step
// and one report per applied step.
type Result struct {
	Table *table.Table
	Steps []StepReport
}

// Options configures a Pipeline.
type Options struct {
	Infer infer.Options
	// Transform bounds opaque steps; its Infer field is taken from Infer.
	Transform transform.Options
}

// Pipeline runs cleaning operations. It holds no per-run state and may be
// shared.
type Pipeline struct {
	infer   *infer.Inferencer
	interp  *transform.Interpreter
	planner Planner
	logger  *zap.Logger
}

// New builds a Pipeline. planner may be nil when no opaque steps are used.
func New(opt Options, planner Planner, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	opt.Transform.Infer = opt.Infer
	return &Pipeline{
		infer:   infer.New(opt.Infer),
		interp:  transform.NewInterpreter(opt.Transform),
		planner: planner,
		logger:  logger.Named("clean"),
	}
}

// Run applies ops in order to a copy of t. On error the Result still holds
// the table as of the last successful step.
func (p *Pipeline) Run(ctx context.Context, t *table.Table, ops []Operation) (*Result, error) {
	res := &Result{Table: t.Clone()}
	for i, op := range ops {
		id := op.Canonical()
		start := time.Now()
		before := res.Table
		var (
			next *table.Table
			err  error
		)
		switch id {
		case NormalizeTypes:
			next = p.normalizeTypes(before)
		case RemoveDuplicates:
			next = removeDuplicates(before)
		case FillMissing:
			next = fillMissing(before)
		case Opaque:
			next, err = p.opaque(ctx, before, op.Instruction)
		default:
			err = &UnsupportedOperationError{Index: i, ID: op.ID}
		}
		if err != nil {
			p.logger.Warn("cleaning step failed",
				zap.Int("index", i),
				zap.String("op", id),
				zap.Error(err),
			)
			return res, err
		}
		rep := diff(id, before, next)
		rep.Duration = time.Since(start)
		p.logger.Info("cleaning step applied",
			zap.Int("index", i),
			zap.String("op", id),
			zap.Int("rows_before", rep.RowsBefore),
			zap.Int("rows_after", rep.RowsAfter),
			zap.Int("cells_changed", rep.CellsChanged),
			zap.Strings("type_changes", rep.TypeChanges),
			zap.Duration("duration", rep.Duration),
		)
		res.Table = next
		res.Steps = append(res.Steps, rep)
	}
	return res, nil
}

func (p *Pipeline) normalizeTypes(t *table.Table) *table.Table {
	out := &table.Table{Columns: make([]*table.Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = p.infer.Normalize(c)
	}
	return out
}

// removeDuplicates keeps the first of every group of rows equal in all
// fields. Missing equals Missing.
func removeDuplicates(t *table.Table) *table.Table {
	out := t.Clone()
	seen := make(map[string]bool, t.NumRows())
	keep := make([]int, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		k := t.RowKey(i, nil)
		if seen[k] {
			continue
		}
		seen[k] = true
		keep = append(keep, i)
	}
	out.SelectRows(keep)
	return out
}

// fillMissing writes 0 into numeric columns and the placeholder into text,
// boolean, percentage and currency columns. Non-text columns that receive
// the placeholder become text. Datetime columns are left alone.
func fillMissing(t *table.Table) *table.Table {
	out := t.Clone()
	for i, c := range out.Columns {
		if c.MissingCount() == 0 {
			continue
		}
		switch c.Type {
		case table.Datetime:
			continue
		case table.Numeric:
			for j, v := range c.Values {
				if v.IsMissing() {
					c.Values[j] = table.Number(0)
				}
			}
		default:
			filled := &table.Column{Name: c.Name, Type: table.Text, Values: make([]table.Value, len(c.Values))}
			for j, v := range c.Values {
				if v.IsMissing() {
					filled.Values[j] = table.String(Placeholder)
					continue
				}
				filled.Values[j] = table.String(v.String())
			}
			out.Columns[i] = filled
		}
	}
	return out
}

func (p *Pipeline) opaque(ctx context.Context, t *table.Table, instruction string) (*table.Table, error) {
	if p.planner == nil {
		return nil, &TransformApplicationError{Instruction: instruction, Err: ErrNoPlanner}
	}
	text, err := p.planner.PlanTransform(ctx, t.Names(), instruction)
	if err != nil {
		return nil, err
	}
	prog, err := transform.Parse(text)
	if err != nil {
		return nil, &TransformApplicationError{Instruction: instruction, Err: err}
	}
	out, err := p.interp.Apply(ctx, t, prog)
	if err != nil {
		return nil, &TransformApplicationError{Instruction: instruction, Err: err}
	}
	p.logger.Debug("applied planned transformation",
		zap.String("instruction", instruction),
		zap.Int("steps", len(prog.Steps)),
	)
	return out, nil
}

func diff(op string, before, after *table.Table) StepReport {
	rep := StepReport{Op: op, RowsBefore: before.NumRows(), RowsAfter: after.NumRows()}
	for _, c := range after.Columns {
		prev, ok := before.Column(c.Name)
		if !ok {
			rep.CellsChanged += c.Len()
			continue
		}
		if prev.Type != c.Type {
			rep.TypeChanges = append(rep.TypeChanges, c.Name)
		}
		if prev.Len() != c.Len() {
			continue
		}
		for i, v := range c.Values {
			if !v.Equal(prev.Values[i]) {
				rep.CellsChanged++
			}
		}
	}
	return rep
}
