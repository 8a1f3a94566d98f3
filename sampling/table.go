// Package sampling compresses one segment's telemetry into a bounded,
// mostly uniform series: index-stride downsampling, denser bursts around
// elevation change points, a hard point ceiling, and 3-decimal serialization.
// It also exposes Douglas-Peucker and SAX-style encoders as standalone tools.
package sampling

import (
	"fmt"
	"math"

	"github.com/lucasjlepore/fit-coach/telemetry"
)

// Serialized channel keys, in output order.
const (
	KeyElevation = "elev"
	KeyPower     = "p"
	KeyHeartRate = "hr"
	KeyCadence   = "cad"
	KeySpeed     = "speed"
)

// Column is one named value array of a Table.
type Column struct {
	Key    string
	Values []float64
}

// Table is a segment's time column plus value columns in output order.
// Every column has len(TimeS) values.
type Table struct {
	TimeS   []float64
	Columns []Column
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.TimeS)
}

// Column returns the values stored under key, or nil.
func (t Table) Column(key string) []float64 {
	for _, c := range t.Columns {
		if c.Key == key {
			return c.Values
		}
	}
	return nil
}

// Take returns a new table holding rows idx, in that order.
func (t Table) Take(idx []int) Table {
	out := Table{
		TimeS:   make([]float64, len(idx)),
		Columns: make([]Column, len(t.Columns)),
	}
	for j, i := range idx {
		out.TimeS[j] = t.TimeS[i]
	}
	for c, col := range t.Columns {
		vals := make([]float64, len(idx))
		for j, i := range idx {
			vals[j] = col.Values[i]
		}
		out.Columns[c] = Column{Key: col.Key, Values: vals}
	}
	return out
}

// TableFromSeries extracts the serialized channels of a segment view. Each
// channel is forward then backward filled inside the view, so a segment never
// borrows readings from outside its range; channels with no readings at all
// are dropped.
func TableFromSeries(seg *telemetry.Series) Table {
	tab := Table{TimeS: seg.TimeS}
	sources := []struct {
		key string
		ch  telemetry.Channel
	}{
		{KeyElevation, seg.Altitude},
		{KeyPower, seg.Power},
		{KeyHeartRate, seg.HeartRate},
		{KeyCadence, seg.Cadence},
		{KeySpeed, seg.Speed},
	}
	for _, src := range sources {
		if src.ch == nil {
			continue
		}
		filled := src.ch.FillForwardBackward()
		if !filled.Present() {
			continue
		}
		tab.Columns = append(tab.Columns, Column{Key: src.key, Values: filled})
	}
	return tab
}

// Stride converts a target frequency into an index stride, round(1/f) with a
// floor of 1. Non-positive or NaN frequencies are rejected.
func Stride(freqHz float64) (int, error) {
	if !(freqHz > 0) {
		return 0, fmt.Errorf("%w: frequency must be > 0, got %v", telemetry.ErrInvalidSampling, freqHz)
	}
	return max(int(math.RoundToEven(1/freqHz)), 1), nil
}

func strideIndices(n, step int) []int {
	idx := make([]int, 0, n/step+1)
	for i := 0; i < n; i += step {
		idx = append(idx, i)
	}
	return idx
}

// UniformDownsample keeps every Stride(freqHz)-th row by index. Irregular
// recordings therefore keep a fixed share of samples, not a fixed rate.
func UniformDownsample(t Table, freqHz float64) (Table, error) {
	step, err := Stride(freqHz)
	if err != nil {
		return Table{}, err
	}
	return t.Take(strideIndices(t.Len(), step)), nil
}

func round3(v float64) float64 {
	return math.RoundToEven(v*1000) / 1000
}
