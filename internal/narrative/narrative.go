// Package narrative asks a chat model to describe profiles, suggest cleaning
// steps and plan transformations. Model output is treated as untrusted text.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yassinexng/datawise/internal/ai"
	"github.com/yassinexng/datawise/internal/transform"
	"github.com/yassinexng/datawise/internal/utils"
)

// Operation names used in CollaboratorFailure.
const (
	OpAsk         = "ask"
	OpInitialEDA  = "initial_eda"
	OpSuggestions = "suggestions"
	OpPlan        = "plan_transform"
)

// ParseFailureNotice is the placeholder used when a reply cannot be decoded.
const ParseFailureNotice = "Error parsing model response"

// InsufficientContext is the reply the model is told to give when the report
// does not answer the question.
const InsufficientContext = "Insufficient context."

// CollaboratorFailure reports a failed model call.
type CollaboratorFailure struct {
	Op          string
	RateLimited bool
	RetryAfter  time.Duration
	Err         error
}

func (e *CollaboratorFailure) Error() string {
	if e.RateLimited {
		if e.RetryAfter > 0 {
			return fmt.Sprintf("%s: rate limit reached, retry in %s: %v", e.Op, e.RetryAfter, e.Err)
		}
		return fmt.Sprintf("%s: rate limit reached, please wait a few minutes: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: model request failed: %v", e.Op, e.Err)
}

func (e *CollaboratorFailure) Unwrap() error { return e.Err }

// Options configures a Summarizer.
type Options struct {
	Model       string
	Temperature float64
	// MaxTokens caps each reply.
	MaxTokens int
	// ContextTokens overrides the model catalog's context window.
	ContextTokens int
}

// Summarizer wraps a chat runtime with the prompts used across the tool.
type Summarizer struct {
	rt     ai.Runtime
	opt    Options
	logger *zap.Logger
}

// New returns a Summarizer over rt.
func New(rt ai.Runtime, opt Options, logger *zap.Logger) *Summarizer {
	if opt.Model == "" {
		opt.Model = ai.DefaultModel
	}
	if opt.MaxTokens <= 0 {
		opt.MaxTokens = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{rt: rt, opt: opt, logger: logger.Named("narrative")}
}

// Finding is one decoded element of an exploratory summary.
type Finding map[string]any

// Suggestion is one proposed cleaning change.
type Suggestion struct {
	SuggestedChange string `json:"suggested_change"`
}

// Ask answers question strictly from report and returns the reply with code
// fences removed.
func (s *Summarizer) Ask(ctx context.Context, report, question string) (string, error) {
	prompt := "Role: Direct Data Scientist.\n" +
		"Task: Answer the Query relying EXCLUSIVELY on the Context.\n" +
		"Constraint: Zero hallucination. Output RAW JSON ONLY.\n" +
		"If the answer is absent from the context, reply exactly: \"" + InsufficientContext + "\"\n" +
		"<context> " + s.fit(report, question) + "</context>\n" +
		"<query> " + question + " </query>\n"
	return s.complete(ctx, OpAsk, prompt)
}

// InitialEDA asks for a compact JSON overview of report. Replies that do not
// decode as a JSON array fall back to a single error notice.
func (s *Summarizer) InitialEDA(ctx context.Context, report string) ([]Finding, error) {
	const question = "Return ONLY a JSON array. " +
		"Use AT MOST these keys: Statistics, Missing Values, Data Types. " +
		"For Statistics: include ONLY count, mean, min, max. " +
		"Do not include explanations. " +
		"Do not nest deeper than column -> metric -> value."
	text, err := s.Ask(ctx, report, question)
	if err != nil {
		var cf *CollaboratorFailure
		if errors.As(err, &cf) {
			cf.Op = OpInitialEDA
		}
		return nil, err
	}
	var out []Finding
	if err := decodeArray(text, &out); err != nil {
		s.logger.Warn("undecodable overview", zap.Error(err))
		return []Finding{{"error": ParseFailureNotice}}, nil
	}
	return out, nil
}

// Suggestions asks for practical cleaning steps. Undecodable replies fall
// back to a single notice.
func (s *Summarizer) Suggestions(ctx context.Context, report string) ([]Suggestion, error) {
	const tail = "\n\nSuggest practical data cleaning steps for this dataset.\n" +
		"Return ONLY a JSON array, nothing else, in this exact format:\n" +
		`[{"suggested_change": "your suggestion here"}]`
	prompt := "Here is a summary of a dataset:\n" + s.fit(report, tail) + tail
	text, err := s.complete(ctx, OpSuggestions, prompt)
	if err != nil {
		return nil, err
	}
	var out []Suggestion
	if err := decodeArray(text, &out); err != nil {
		s.logger.Warn("undecodable suggestions", zap.Error(err))
		return []Suggestion{{SuggestedChange: ParseFailureNotice}}, nil
	}
	return out, nil
}

// PlanTransform asks for a transformation program for instruction over a
// table with the given columns. The reply is returned as text; it is parsed
// and validated by the caller.
func (s *Summarizer) PlanTransform(ctx context.Context, columns []string, instruction string) (string, error) {
	cols, _ := json.Marshal(columns)
	var b strings.Builder
	b.WriteString("You transform a table with these columns: ")
	b.Write(cols)
	b.WriteString("\nApply this cleaning operation:\n- ")
	b.WriteString(instruction)
	b.WriteString("\nReturn ONLY a JSON array of steps. Each step is one of:\n")
	for _, v := range transform.Vocabulary {
		b.WriteString(v)
		b.WriteByte('\n')
	}
	b.WriteString("Expressions are Starlark; a row is available as row[\"column\"] and missing cells are None.\n")
	b.WriteString("No other ops, no code, no explanations, no markdown.")
	return s.complete(ctx, OpPlan, b.String())
}

func (s *Summarizer) complete(ctx context.Context, op, prompt string) (string, error) {
	start := time.Now()
	resp, err := s.rt.Chat(ctx, ai.ChatRequest{
		Model:       s.opt.Model,
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		MaxTokens:   s.opt.MaxTokens,
		Temperature: s.opt.Temperature,
	})
	if err != nil {
		f := &CollaboratorFailure{Op: op, Err: err}
		f.RetryAfter, f.RateLimited = ai.RateLimited(err)
		s.logger.Warn("model call failed", zap.String("op", op), zap.Bool("rate_limited", f.RateLimited), zap.Error(err))
		return "", f
	}
	s.logger.Info("model call completed",
		zap.String("op", op),
		zap.String("model", s.opt.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return utils.StripCodeFences(resp.Text()), nil
}

// fit truncates report so the prompt, the rest of the request and the reply
// fit the model's context window.
func (s *Summarizer) fit(report, rest string) string {
	budget := s.opt.ContextTokens
	if budget <= 0 {
		budget = ai.ContextTokens(s.opt.Model)
	}
	budget -= s.opt.MaxTokens + utils.CountTokens(rest) + 128
	if budget < 256 {
		budget = 256
	}
	return utils.TruncateToTokenLimit(report, budget)
}

// decodeArray decodes a JSON array, also accepting an object that wraps the
// array under a single key.
func decodeArray(text string, out any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return err
		}
		if len(wrapped) != 1 {
			return errors.New("expected a JSON array")
		}
		for _, v := range wrapped {
			text = string(v)
		}
	}
	return json.Unmarshal([]byte(text), out)
}
