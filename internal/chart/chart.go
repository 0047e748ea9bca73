// Package chart turns a typed table into chart-ready aggregates.
package chart

import (
	"encoding/json"

	"github.com/yassinexng/datawise/internal/jsonx"
)

// Spec is one chart payload. Every implementation encodes to
// {"type", "title", "labels", "data"}.
type Spec interface {
	json.Marshaler
	// Type is the wire tag: "bar", "scatter" or "matrix".
	Type() string
	// Heading is the chart title.
	Heading() string
}

type envelope struct {
	Type   string   `json:"type"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Data   any      `json:"data"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Histogram is an equal-width binning of a numeric column.
type Histogram struct {
	Title     string
	BinLabels []string
	Counts    []int
}

func (h *Histogram) Type() string    { return "bar" }
func (h *Histogram) Heading() string { return h.Title }

func (h *Histogram) MarshalJSON() ([]byte, error) {
	counts := h.Counts
	if counts == nil {
		counts = []int{}
	}
	return json.Marshal(envelope{Type: h.Type(), Title: h.Title, Labels: nonNil(h.BinLabels), Data: counts})
}

// CategoryBar holds the most frequent values of a non-numeric column.
type CategoryBar struct {
	Title  string
	Labels []string
	Counts []int
}

func (c *CategoryBar) Type() string    { return "bar" }
func (c *CategoryBar) Heading() string { return c.Title }

func (c *CategoryBar) MarshalJSON() ([]byte, error) {
	counts := c.Counts
	if counts == nil {
		counts = []int{}
	}
	return json.Marshal(envelope{Type: c.Type(), Title: c.Title, Labels: nonNil(c.Labels), Data: counts})
}

// Point is one scatter observation. Non-finite coordinates encode as null.
type Point struct {
	X jsonx.Float `json:"x"`
	Y jsonx.Float `json:"y"`
}

// Scatter pairs two numeric columns row by row.
type Scatter struct {
	Title  string
	XName  string
	YName  string
	Points []Point
}

func (s *Scatter) Type() string    { return "scatter" }
func (s *Scatter) Heading() string { return s.Title }

func (s *Scatter) MarshalJSON() ([]byte, error) {
	pts := s.Points
	if pts == nil {
		pts = []Point{}
	}
	return json.Marshal(envelope{Type: s.Type(), Title: s.Title, Labels: []string{}, Data: pts})
}

// MatrixRow is one column's correlations against every numeric column.
type MatrixRow struct {
	Name   string        `json:"name"`
	Values []jsonx.Float `json:"data"`
}

// CorrelationMatrix is the pairwise Pearson matrix of numeric columns.
type CorrelationMatrix struct {
	Title  string
	Labels []string
	Rows   []MatrixRow
}

func (m *CorrelationMatrix) Type() string    { return "matrix" }
func (m *CorrelationMatrix) Heading() string { return m.Title }

func (m *CorrelationMatrix) MarshalJSON() ([]byte, error) {
	rows := m.Rows
	if rows == nil {
		rows = []MatrixRow{}
	}
	return json.Marshal(envelope{Type: m.Type(), Title: m.Title, Labels: nonNil(m.Labels), Data: rows})
}

// At returns entry (i, j).
func (m *CorrelationMatrix) At(i, j int) jsonx.Float { return m.Rows[i].Values[j] }
