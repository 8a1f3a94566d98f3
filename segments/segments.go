// Package segments finds climbs, sustained intervals and heart-rate drift
// anomalies in a telemetry series, summarizes each range, and picks the
// subset that gets compressed into the payload.
package segments

import (
	"fmt"

	"github.com/lucasjlepore/fit-coach/telemetry"
)

// Kind is the detector that produced a segment.
type Kind string

const (
	KindClimb    Kind = "climb"
	KindInterval Kind = "interval"
	KindAnomaly  Kind = "anomaly"
)

// Thresholds drive the run-length detectors.
type Thresholds struct {
	MinClimbGainM        float64 // accumulated gain to keep a climb
	IntervalFTPRatio     float64 // power / FTP above which a sample is active
	MinIntervalSamples   int     // an interval must span more samples than this
	AnomalyWindow        int     // rolling HR mean window, in samples
	AnomalyMinPeriods    int     // valid samples needed before the rolling mean exists
	AnomalyStdMultiplier float64 // drift threshold in standard deviations
}

// DefaultThresholds returns the detector settings used by the payload pipeline.
// MinIntervalSamples counts samples, not seconds, so the effective minimum
// interval length depends on the recording rate.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinClimbGainM:        50,
		IntervalFTPRatio:     0.9,
		MinIntervalSamples:   30,
		AnomalyWindow:        120,
		AnomalyMinPeriods:    60,
		AnomalyStdMultiplier: 2,
	}
}

// Segment is a contiguous sample range [Start, End) of a series.
type Segment struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Start int    `json:"start_idx"`
	End   int    `json:"end_idx"`
	Stats Stats  `json:"stats"`
}

// Extract returns the segment's samples as a view of series.
func (s Segment) Extract(series *telemetry.Series) *telemetry.Series {
	return series.Slice(s.Start, s.End)
}

// Stats summarizes one segment. Each optional value is present only when the
// channel it comes from has data in the range.
type Stats struct {
	DurationS  float64  `json:"duration_s"`
	LenKM      *float64 `json:"len_km,omitempty"`
	ElevGainM  *float64 `json:"elev_gain_m,omitempty"`
	VAM        *float64 `json:"vam,omitempty"`
	GradPct    *float64 `json:"grad_pct,omitempty"`
	PAvg       *float64 `json:"p_avg,omitempty"`
	PMax       *float64 `json:"p_max,omitempty"`
	HRAvg      *float64 `json:"hr_avg,omitempty"`
	CadenceAvg *float64 `json:"cadence_avg,omitempty"`
}

// Summarize computes stats for [start, end) of series. Climbs pass their
// gap-filled altitude so that gain matches what the detector accumulated;
// a nil altitude uses the series channel.
func Summarize(series *telemetry.Series, start, end int, altitude telemetry.Channel) Stats {
	seg := series.Slice(start, end)
	var stats Stats
	if seg.Len() == 0 {
		return stats
	}
	stats.DurationS = seg.Duration()

	if first, ok := seg.Distance.First(); ok {
		last, _ := seg.Distance.Last()
		stats.LenKM = telemetry.Float((last - first) / 1000.0)
	}

	alt := seg.Altitude
	if altitude != nil {
		alt = altitude[max(start, 0):min(end, len(altitude))]
	}
	if alt.Present() {
		gain := alt.PositiveGain()
		stats.ElevGainM = telemetry.Float(gain)

		vam := 0.0
		if stats.DurationS != 0 {
			vam = gain / (stats.DurationS / 3600.0)
		}
		stats.VAM = telemetry.Float(vam)

		grad := 0.0
		if stats.LenKM != nil && *stats.LenKM != 0 {
			grad = gain / (*stats.LenKM * 10)
		}
		stats.GradPct = telemetry.Float(grad)
	}

	if v, ok := seg.Power.Mean(); ok {
		stats.PAvg = telemetry.Float(v)
		mx, _ := seg.Power.Max()
		stats.PMax = telemetry.Float(mx)
	}
	if v, ok := seg.HeartRate.Mean(); ok {
		stats.HRAvg = telemetry.Float(v)
	}
	if v, ok := seg.Cadence.Mean(); ok {
		stats.CadenceAvg = telemetry.Float(v)
	}
	return stats
}

// Select applies the selection policy: the first policy.Climbs climbs (already
// ranked by gain), then the first intervals and anomalies in detection order.
func Select(climbs, intervals, anomalies []Segment, policy telemetry.SelectionPolicy) []Segment {
	out := make([]Segment, 0, policy.Climbs+policy.Intervals+policy.Anomalies)
	out = append(out, head(climbs, policy.Climbs)...)
	out = append(out, head(intervals, policy.Intervals)...)
	out = append(out, head(anomalies, policy.Anomalies)...)
	return out
}

func head(segs []Segment, n int) []Segment {
	if n <= 0 {
		return nil
	}
	if len(segs) > n {
		return segs[:n]
	}
	return segs
}

// Detect runs every detector with the default thresholds and returns the
// selected segments. Intervals run only when ftp is positive.
func Detect(series *telemetry.Series, ftp float64, policy telemetry.SelectionPolicy) ([]Segment, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("detect segments: %w", err)
	}
	th := DefaultThresholds()
	climbs := FindTopClimbs(series, policy.Climbs, th.MinClimbGainM)
	intervals := DetectIntervals(series, ftp, th)
	anomalies := DetectAnomalies(series, th)
	return Select(climbs, intervals, anomalies, policy), nil
}

func segmentName(kind Kind, ordinal int) string {
	switch kind {
	case KindClimb:
		return fmt.Sprintf("Climb-%d", ordinal)
	case KindInterval:
		return fmt.Sprintf("Interval-%d", ordinal)
	default:
		return fmt.Sprintf("HR-drift-%d", ordinal)
	}
}
