package telemetry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Channel is one sensor column. NaN marks a missing reading at that index.
type Channel []float64

// Missing returns the marker stored for a missing reading.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is a missing reading.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

func (c Channel) slice(start, end int) Channel {
	if c == nil {
		return nil
	}
	return c[start:end]
}

// Present reports whether at least one reading is not missing.
func (c Channel) Present() bool {
	for _, v := range c {
		if !IsMissing(v) {
			return true
		}
	}
	return false
}

// Valid returns the non-missing readings in order.
func (c Channel) Valid() []float64 {
	out := make([]float64, 0, len(c))
	for _, v := range c {
		if !IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the mean of non-missing readings; ok is false when there are none.
func (c Channel) Mean() (float64, bool) {
	valid := c.Valid()
	if len(valid) == 0 {
		return 0, false
	}
	return stat.Mean(valid, nil), true
}

// Max returns the largest non-missing reading.
func (c Channel) Max() (float64, bool) {
	best := 0.0
	found := false
	for _, v := range c {
		if IsMissing(v) {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	return best, found
}

// StdDev returns the sample standard deviation (n-1) of non-missing readings.
// It needs at least two readings.
func (c Channel) StdDev() (float64, bool) {
	valid := c.Valid()
	if len(valid) < 2 {
		return 0, false
	}
	return stat.StdDev(valid, nil), true
}

// Last returns the last non-missing reading.
func (c Channel) Last() (float64, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if !IsMissing(c[i]) {
			return c[i], true
		}
	}
	return 0, false
}

// First returns the first non-missing reading.
func (c Channel) First() (float64, bool) {
	for _, v := range c {
		if !IsMissing(v) {
			return v, true
		}
	}
	return 0, false
}

// FillMissing returns a copy with missing readings replaced by v.
func (c Channel) FillMissing(v float64) Channel {
	if c == nil {
		return nil
	}
	out := make(Channel, len(c))
	for i, x := range c {
		if IsMissing(x) {
			out[i] = v
			continue
		}
		out[i] = x
	}
	return out
}

// FillForwardBackward returns a copy where each gap takes the previous reading
// and leading gaps take the first reading. An all-missing channel stays missing.
func (c Channel) FillForwardBackward() Channel {
	if c == nil {
		return nil
	}
	out := make(Channel, len(c))
	copy(out, c)
	last := math.NaN()
	for i, v := range out {
		if IsMissing(v) {
			out[i] = last
			continue
		}
		last = v
	}
	first, ok := out.First()
	if !ok {
		return out
	}
	for i := 0; i < len(out) && IsMissing(out[i]); i++ {
		out[i] = first
	}
	return out
}

// PositiveGain sums the positive differences between consecutive readings.
// Pairs with a missing side are skipped.
func (c Channel) PositiveGain() float64 {
	gain := 0.0
	for i := 1; i < len(c); i++ {
		if IsMissing(c[i]) || IsMissing(c[i-1]) {
			continue
		}
		if d := c[i] - c[i-1]; d > 0 {
			gain += d
		}
	}
	return gain
}

// Float returns a pointer to a copy of v. Optional metrics use nil for absent.
func Float(v float64) *float64 {
	out := v
	return &out
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FiniteOrNil returns nil for NaN or infinite values.
func FiniteOrNil(v float64) *float64 {
	if !IsFinite(v) {
		return nil
	}
	return Float(v)
}
