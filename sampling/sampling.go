package sampling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lucasjlepore/fit-coach/telemetry"
)

// ChangePointCurvature is the |second derivative| above which a uniform
// elevation sample is a change point.
const ChangePointCurvature = 0.5

// SerializedSegment is the compressed form of one segment. T holds whole
// seconds relative to the first kept row; every channel has len(T) values.
type SerializedSegment struct {
	DtS      int
	T        []int
	Channels []Column
}

// MarshalJSON writes a flat object with dt_s, t, then each channel key in
// column order.
func (s SerializedSegment) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeField := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	if err := writeField("dt_s", s.DtS); err != nil {
		return nil, err
	}
	t := s.T
	if t == nil {
		t = []int{}
	}
	if err := writeField("t", t); err != nil {
		return nil, err
	}
	for _, c := range s.Channels {
		vals := c.Values
		if vals == nil {
			vals = []float64{}
		}
		if err := writeField(c.Key, vals); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// gradient mirrors a central-difference gradient with one-sided differences
// at both ends. It needs at least two values.
func gradient(y []float64) []float64 {
	n := len(y)
	if n < 2 {
		return nil
	}
	g := make([]float64, n)
	g[0] = y[1] - y[0]
	g[n-1] = y[n-1] - y[n-2]
	for i := 1; i < n-1; i++ {
		g[i] = (y[i+1] - y[i-1]) / 2
	}
	return g
}

// ChangePoints returns the indices whose discrete second derivative exceeds
// ChangePointCurvature in magnitude.
func ChangePoints(values []float64) []int {
	g := gradient(values)
	if g == nil {
		return nil
	}
	g2 := gradient(g)
	var out []int
	for i, v := range g2 {
		if math.Abs(v) > ChangePointCurvature {
			out = append(out, i)
		}
	}
	return out
}

// BurstEnhance returns the original row indices to keep: every uniform row
// (stride step) plus denser rows around each change point. Change points are
// uniform indices. The burst half-width is extra uniform steps, where
// extra = max(round(burst window / median positive uniform dt), 1), and rows
// inside it are taken every round(1/burst freq) original rows. A non-positive
// burst frequency keeps every original row in the window.
func BurstEnhance(times []float64, step int, changePoints []int, cfg telemetry.SamplingConfig) []int {
	n := len(times)
	step = max(step, 1)
	uniform := strideIndices(n, step)
	if len(changePoints) == 0 || n == 0 {
		return uniform
	}

	uniformTimes := make([]float64, len(uniform))
	for j, i := range uniform {
		uniformTimes[j] = times[i]
	}
	approxStep := medianPositiveDelta(uniformTimes)
	extra := max(int(math.RoundToEven(cfg.BurstWindowS/approxStep)), 1)
	burstStride := 1
	if cfg.BurstFreqHz > 0 {
		burstStride = max(int(math.RoundToEven(1/cfg.BurstFreqHz)), 1)
	}

	keep := make(map[int]struct{}, len(uniform))
	for _, i := range uniform {
		keep[i] = struct{}{}
	}
	halfWidth := extra * step
	for _, cp := range changePoints {
		center := cp * step
		lo := max(center-halfWidth, 0)
		hi := min(center+halfWidth, n-1)
		for i := lo; i <= hi; i += burstStride {
			keep[i] = struct{}{}
		}
	}

	out := make([]int, 0, len(keep))
	for i := range keep {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func medianPositiveDelta(times []float64) float64 {
	var deltas []float64
	for i := 1; i < len(times); i++ {
		if d := times[i] - times[i-1]; d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 1
	}
	sort.Float64s(deltas)
	if len(deltas)%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, deltas, nil)
	}
	mid := len(deltas) / 2
	return stat.Mean(deltas[mid-1:mid+1], nil)
}

// CapToMaxPoints picks maxPoints evenly spaced positions across idx, always
// keeping the first and last. Positions are truncated toward zero, so gaps in
// the result can be uneven.
func CapToMaxPoints(idx []int, maxPoints int) []int {
	if maxPoints <= 0 || len(idx) <= maxPoints {
		return idx
	}
	out := make([]int, maxPoints)
	if maxPoints == 1 {
		out[0] = idx[0]
		return out
	}
	last := float64(len(idx) - 1)
	span := float64(maxPoints - 1)
	for i := range out {
		out[i] = idx[int(float64(i)*last/span)]
	}
	return out
}

// SerializeSegment compresses one segment table: uniform stride, bursts
// around elevation change points, the point ceiling, relative integer time
// and 3-decimal values. dt_s is the nominal round(1/f) period even where
// bursts or the ceiling made the spacing irregular.
func SerializeSegment(tab Table, cfg telemetry.SamplingConfig) (*SerializedSegment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	step, err := Stride(cfg.TargetFreqHz)
	if err != nil {
		return nil, err
	}
	out := &SerializedSegment{
		DtS: int(math.RoundToEven(1 / cfg.TargetFreqHz)),
		T:   []int{},
	}
	if tab.Len() == 0 {
		for _, c := range tab.Columns {
			out.Channels = append(out.Channels, Column{Key: c.Key, Values: []float64{}})
		}
		return out, nil
	}

	var changePoints []int
	if tab.Column(KeyElevation) != nil {
		uniform := tab.Take(strideIndices(tab.Len(), step))
		changePoints = ChangePoints(uniform.Column(KeyElevation))
	}
	idx := BurstEnhance(tab.TimeS, step, changePoints, cfg)
	idx = CapToMaxPoints(idx, cfg.MaxSegmentPoints)
	kept := tab.Take(idx)

	t0 := kept.TimeS[0]
	out.T = make([]int, kept.Len())
	for i, t := range kept.TimeS {
		out.T[i] = int(t - t0)
	}
	for _, c := range kept.Columns {
		vals := make([]float64, len(c.Values))
		for i, v := range c.Values {
			vals[i] = round3(v)
		}
		out.Channels = append(out.Channels, Column{Key: c.Key, Values: vals})
	}
	return out, nil
}
