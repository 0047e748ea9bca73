// Package engine wires loading, profiling, charting and cleaning behind one
// configuration value.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yassinexng/datawise/internal/chart"
	"github.com/yassinexng/datawise/internal/clean"
	"github.com/yassinexng/datawise/internal/config"
	"github.com/yassinexng/datawise/internal/infer"
	"github.com/yassinexng/datawise/internal/loader"
	"github.com/yassinexng/datawise/internal/profile"
	"github.com/yassinexng/datawise/internal/table"
	"github.com/yassinexng/datawise/internal/transform"
)

// Preview and grid window sizes.
const (
	PreviewRows = 15
	GridRows    = 20
	WindowCols  = 5
)

// Engine is safe for concurrent use; every call works on its own copy.
type Engine struct {
	cfg    config.Engine
	infer  *infer.Inferencer
	logger *zap.Logger
}

// Analysis is everything the visualize view needs.
type Analysis struct {
	Table   *table.Table     `json:"-"`
	Profile *profile.Profile `json:"profile"`
	Report  string           `json:"report"`
	Charts  []chart.Spec     `json:"charts"`
	Preview [][]string       `json:"preview"`
}

// New builds an Engine from the engine block of the configuration.
func New(cfg config.Engine, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{cfg: cfg, logger: logger.Named("engine")}
	e.infer = infer.New(e.inferOptions())
	return e
}

func (e *Engine) inferOptions() infer.Options {
	opt := infer.DefaultOptions()
	if e.cfg.DateThreshold > 0 {
		opt.DateThreshold = e.cfg.DateThreshold
	}
	if e.cfg.NumericThreshold > 0 {
		opt.NumericThreshold = e.cfg.NumericThreshold
	}
	if e.cfg.PercentThreshold > 0 {
		opt.PercentThreshold = e.cfg.PercentThreshold
	}
	if e.cfg.CurrencyThreshold > 0 {
		opt.CurrencyThreshold = e.cfg.CurrencyThreshold
	}
	return opt
}

func (e *Engine) chartOptions() chart.Options {
	return chart.Options{
		Bins:                e.cfg.Bins,
		TopN:                e.cfg.TopN,
		ScatterMax:          e.cfg.ScatterMax,
		Seed:                e.cfg.Seed,
		CorrelationDecimals: e.cfg.CorrelationDecimals,
	}
}

// Load decodes an uploaded file; the format follows the name's extension.
func (e *Engine) Load(name string, data []byte) (*table.Table, error) {
	return e.LoadSheet(name, data, "")
}

// LoadSheet is Load with a workbook sheet selection.
func (e *Engine) LoadSheet(name string, data []byte, sheet string) (*table.Table, error) {
	return loader.Load(name, data, loader.Options{
		MissingTokens: e.cfg.MissingTokens,
		Sheet:         sheet,
		Logger:        e.logger,
	})
}

// Normalize returns a copy of t with every column inferred and coerced.
func (e *Engine) Normalize(t *table.Table) *table.Table {
	out := t.Clone()
	for j, c := range out.Columns {
		out.Columns[j] = e.infer.Normalize(c)
	}
	return out
}

// Describe normalizes t and returns the typed table, its profile and the
// text report.
func (e *Engine) Describe(t *table.Table) (*table.Table, *profile.Profile, string) {
	typed := e.Normalize(t)
	p := profile.Compute(typed, profile.Options{OutlierMultiplier: e.cfg.OutlierMultiplier, HeadRows: e.cfg.HeadRows})
	return typed, p, profile.Report(typed, p, e.cfg.HeadRows)
}

// Charts aggregates an already typed table.
func (e *Engine) Charts(typed *table.Table) []chart.Spec {
	return chart.Build(typed, e.chartOptions())
}

// Analyze runs Describe and Charts and adds the preview window.
func (e *Engine) Analyze(t *table.Table) *Analysis {
	start := time.Now()
	typed, p, report := e.Describe(t)
	a := &Analysis{
		Table:   typed,
		Profile: p,
		Report:  report,
		Charts:  e.Charts(typed),
		Preview: Preview(typed).Records(),
	}
	e.logger.Debug("analysis complete",
		zap.Int("rows", p.Rows),
		zap.Int("cols", p.Cols),
		zap.Int("charts", len(a.Charts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return a
}

// Clean runs ops over t. planner may be nil when no opaque operation is used.
func (e *Engine) Clean(ctx context.Context, t *table.Table, ops []clean.Operation, planner clean.Planner) (*clean.Result, error) {
	p := clean.New(clean.Options{
		Infer: e.inferOptions(),
		Transform: transform.Options{
			MaxSteps: e.cfg.ExprMaxSteps,
			Timeout:  time.Duration(e.cfg.ExprTimeoutMs) * time.Millisecond,
		},
	}, planner, e.logger)
	return p.Run(ctx, t, ops)
}

// Export encodes t as CSV with a header row.
func (e *Engine) Export(t *table.Table) ([]byte, error) {
	return t.Bytes()
}

// Preview is the first PreviewRows rows and WindowCols columns.
func Preview(t *table.Table) *table.Table { return t.Head(PreviewRows, WindowCols) }

// Grid is the first GridRows rows and WindowCols columns.
func Grid(t *table.Table) *table.Table { return t.Head(GridRows, WindowCols) }
