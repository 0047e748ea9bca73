package transform

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/yassinexng/datawise/internal/table"
)

const (
	defaultMaxSteps = uint64(2_000_000)
	defaultTimeout  = 5 * time.Second
	maxExprBytes    = 4 * 1024
)

// rowEnv binds a row as `row["name"]` and, for identifier-safe names, as
// bare variables.
func rowEnv(t *table.Table, i int) (starlark.StringDict, error) {
	row := starlark.NewDict(t.NumCols())
	env := starlark.StringDict{}
	for _, c := range t.Columns {
		v := toStarlark(c.Values[i])
		if err := row.SetKey(starlark.String(c.Name), v); err != nil {
			return nil, fmt.Errorf("bind column %q: %w", c.Name, err)
		}
		if isValidStarlarkIdent(c.Name) && c.Name != "row" {
			env[c.Name] = v
		}
	}
	row.Freeze()
	env["row"] = row
	return env, nil
}

func toStarlark(v table.Value) starlark.Value {
	switch v.Kind() {
	case table.KindNumber:
		return starlark.Float(v.Float())
	case table.KindTime:
		return starlark.String(table.FormatTime(v.Time()))
	case table.KindBool:
		return starlark.Bool(v.Bool())
	case table.KindString:
		return starlark.String(v.Str())
	}
	return starlark.None
}

func fromStarlark(v starlark.Value) (table.Value, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return table.Missing, nil
	case starlark.Bool:
		return table.Bool(bool(x)), nil
	case starlark.Int:
		return table.Number(float64(x.Float())), nil
	case starlark.Float:
		return table.Number(float64(x)), nil
	case starlark.String:
		return table.String(string(x)), nil
	}
	return table.Missing, fmt.Errorf("expression returned unsupported %s", v.Type())
}

// evaluator evaluates one expression per row on a single budgeted thread.
type evaluator struct {
	thread *starlark.Thread
	name   string
	expr   string
}

func newEvaluator(name, expr string, maxSteps uint64) *evaluator {
	thread := &starlark.Thread{Name: "transform-" + name}
	thread.SetMaxExecutionSteps(maxSteps)
	return &evaluator{thread: thread, name: "<" + name + ">", expr: expr}
}

func (e *evaluator) eval(t *table.Table, i int) (starlark.Value, error) {
	env, err := rowEnv(t, i)
	if err != nil {
		return nil, err
	}
	return starlark.EvalOptions(&syntax.FileOptions{}, e.thread, e.name, e.expr, env)
}

// runWithTimeout runs fn and cancels thread when the timeout elapses or ctx
// is done.
func runWithTimeout(ctx context.Context, thread *starlark.Thread, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("expression panicked: %v", r)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		thread.Cancel("expression timed out")
		<-done
		return fmt.Errorf("expression timed out after %s", timeout)
	case <-ctx.Done():
		thread.Cancel("context cancelled")
		<-done
		return ctx.Err()
	}
}

func isValidStarlarkIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
				return false
			}
			continue
		}
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return !syntaxKeywords[name]
}

var syntaxKeywords = map[string]bool{
	"and": true, "break": true, "continue": true, "def": true, "elif": true,
	"else": true, "for": true, "if": true, "in": true, "lambda": true,
	"load": true, "not": true, "or": true, "pass": true, "return": true,
	"while": true, "None": true, "True": true, "False": true,
}
