// Package transform applies externally proposed table transformations
// expressed in a closed vocabulary of JSON steps. Row-level expressions run
// in a sandboxed Starlark interpreter with step and time limits.
package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.starlark.net/syntax"

	"github.com/yassinexng/datawise/internal/table"
	"github.com/yassinexng/datawise/internal/utils"
)

// Step ops.
const (
	OpDropColumns    = "drop_columns"
	OpRenameColumn   = "rename_column"
	OpDropMissing    = "drop_missing"
	OpFillMissing    = "fill_missing"
	OpReplace        = "replace"
	OpTrim           = "trim"
	OpLowercase      = "lowercase"
	OpUppercase      = "uppercase"
	OpTitleCase      = "title_case"
	OpCast           = "cast"
	OpClip           = "clip"
	OpRound          = "round"
	OpDropDuplicates = "drop_duplicates"
	OpSort           = "sort"
	OpFilterRows     = "filter_rows"
	OpDeriveColumn   = "derive_column"
)

// Step is one operation of a Program. Only the fields relevant to Op are used.
type Step struct {
	Op         string   `json:"op"`
	Column     string   `json:"column,omitempty"`
	Columns    []string `json:"columns,omitempty"`
	To         string   `json:"to,omitempty"`
	From       string   `json:"from,omitempty"`
	Value      any      `json:"value,omitempty"`
	Type       string   `json:"type,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	Digits     int      `json:"digits,omitempty"`
	Descending bool     `json:"descending,omitempty"`
	Where      string   `json:"where,omitempty"`
	Expr       string   `json:"expr,omitempty"`
}

// Program is an ordered list of steps.
type Program struct {
	Steps []Step `json:"steps"`
}

// ProgramError reports a program that is malformed or uses unknown ops.
type ProgramError struct {
	Step int
	Op   string
	Msg  string
}

func (e *ProgramError) Error() string {
	if e.Op == "" {
		return "invalid transformation: " + e.Msg
	}
	return fmt.Sprintf("invalid transformation step %d (%s): %s", e.Step, e.Op, e.Msg)
}

// Vocabulary documents every op with its fields; it is shown to the
// collaborator that proposes programs.
var Vocabulary = []string{
	`{"op":"drop_columns","columns":[...]}`,
	`{"op":"rename_column","column":"old","to":"new"}`,
	`{"op":"drop_missing","columns":[...]}  (empty columns = any column)`,
	`{"op":"fill_missing","column":"c","value":<literal>}`,
	`{"op":"replace","column":"c","from":"text","value":<literal>}`,
	`{"op":"trim"|"lowercase"|"uppercase"|"title_case","column":"c"}`,
	`{"op":"cast","column":"c","type":"numeric|datetime|boolean|percentage|currency|text"}`,
	`{"op":"clip","column":"c","min":<number>,"max":<number>}`,
	`{"op":"round","column":"c","digits":<int>}`,
	`{"op":"drop_duplicates","columns":[...]}  (empty columns = all columns)`,
	`{"op":"sort","column":"c","descending":false}`,
	`{"op":"filter_rows","where":"<starlark expression over row>"}`,
	`{"op":"derive_column","column":"new","expr":"<starlark expression over row>"}`,
}

// Parse decodes a program from collaborator text. Code fences are stripped;
// the body may be a JSON array of steps or an object with a "steps" array.
// Unknown fields and ops are rejected.
func Parse(text string) (*Program, error) {
	body := utils.StripCodeFences(text)
	if body == "" {
		return nil, &ProgramError{Msg: "empty program"}
	}
	var steps []Step
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if strings.HasPrefix(body, "{") {
		var p Program
		if err := dec.Decode(&p); err != nil {
			return nil, &ProgramError{Msg: err.Error()}
		}
		steps = p.Steps
	} else if err := dec.Decode(&steps); err != nil {
		return nil, &ProgramError{Msg: err.Error()}
	}
	if dec.More() {
		return nil, &ProgramError{Msg: "trailing data after program"}
	}
	p := &Program{Steps: steps}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that every step is a known op with its required fields.
func (p *Program) Validate() error {
	if len(p.Steps) == 0 {
		return &ProgramError{Msg: "no steps"}
	}
	for i, s := range p.Steps {
		if err := s.validate(); err != "" {
			return &ProgramError{Step: i, Op: s.Op, Msg: err}
		}
	}
	return nil
}

func (s Step) validate() string {
	switch s.Op {
	case OpDropColumns:
		if len(s.Columns) == 0 {
			return "columns is required"
		}
	case OpRenameColumn:
		if s.Column == "" || strings.TrimSpace(s.To) == "" {
			return "column and to are required"
		}
	case OpDropMissing, OpDropDuplicates:
	case OpFillMissing:
		if s.Column == "" || s.Value == nil {
			return "column and value are required"
		}
	case OpReplace:
		if s.Column == "" {
			return "column is required"
		}
	case OpTrim, OpLowercase, OpUppercase, OpTitleCase, OpSort:
		if s.Column == "" {
			return "column is required"
		}
	case OpCast:
		if s.Column == "" {
			return "column is required"
		}
		if _, err := table.ParseType(s.Type); err != nil {
			return err.Error()
		}
	case OpClip:
		if s.Column == "" || (s.Min == nil && s.Max == nil) {
			return "column and at least one of min, max are required"
		}
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			return "min exceeds max"
		}
	case OpRound:
		if s.Column == "" {
			return "column is required"
		}
		if s.Digits < 0 || s.Digits > 15 {
			return "digits must be between 0 and 15"
		}
	case OpFilterRows:
		return checkExpr(s.Where, "where")
	case OpDeriveColumn:
		if strings.TrimSpace(s.Column) == "" {
			return "column is required"
		}
		return checkExpr(s.Expr, "expr")
	case "":
		return "op is required"
	default:
		return "unknown op"
	}
	return ""
}

func checkExpr(expr, field string) string {
	if strings.TrimSpace(expr) == "" {
		return field + " is required"
	}
	if len(expr) > maxExprBytes {
		return fmt.Sprintf("%s exceeds %d bytes", field, maxExprBytes)
	}
	if _, err := syntax.ParseExpr("<"+field+">", expr, 0); err != nil {
		return fmt.Sprintf("%s: %v", field, err)
	}
	return ""
}
