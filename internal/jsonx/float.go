// Package jsonx holds JSON helpers shared by the report types.
package jsonx

import (
	"math"
	"strconv"
)

// Float is a float64 that encodes NaN and ±Inf as JSON null.
type Float float64

// Finite reports whether f is neither NaN nor infinite.
func (f Float) Finite() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Finite() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(f), 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Floats converts a slice.
func Floats(in []float64) []Float {
	out := make([]Float, len(in))
	for i, v := range in {
		out[i] = Float(v)
	}
	return out
}
