package segments

import (
	"math"
	"sort"

	"github.com/lucasjlepore/fit-coach/telemetry"
)

// FindTopClimbs walks the gap-filled altitude and accumulates gain while it
// keeps rising. A run closes on the first non-positive step and is kept when
// its gain reaches minGain; a run still rising at the last sample is dropped. Climbs are numbered in detection order, then
// ranked by gain and cut to count. Altitude and distance are both required.
func FindTopClimbs(series *telemetry.Series, count int, minGain float64) []Segment {
	if count <= 0 || !series.Altitude.Present() || !series.Distance.Present() {
		return nil
	}
	alt := series.Altitude.FillForwardBackward()

	var climbs []Segment
	start := -1
	gain := 0.0
	closeRun := func(end int) {
		if start >= 0 && gain >= minGain {
			climbs = append(climbs, Segment{
				Name:  segmentName(KindClimb, len(climbs)+1),
				Kind:  KindClimb,
				Start: start,
				End:   end,
				Stats: Summarize(series, start, end, alt),
			})
		}
		start = -1
		gain = 0
	}

	for i := 1; i < len(alt); i++ {
		delta := alt[i] - alt[i-1]
		if delta > 0 {
			if start < 0 {
				start = i - 1
			}
			gain += delta
			continue
		}
		closeRun(i)
	}

	sort.SliceStable(climbs, func(i, j int) bool {
		return gainOf(climbs[i]) > gainOf(climbs[j])
	})
	return head(climbs, count)
}

func gainOf(s Segment) float64 {
	if s.Stats.ElevGainM == nil {
		return 0
	}
	return *s.Stats.ElevGainM
}

// DetectIntervals finds runs where power / ftp exceeds th.IntervalFTPRatio
// for more than th.MinIntervalSamples samples. Missing power is inactive and
// a run still active at the last sample never closes, so it is not emitted.
func DetectIntervals(series *telemetry.Series, ftp float64, th Thresholds) []Segment {
	if ftp <= 0 || !series.Power.Present() {
		return nil
	}

	var intervals []Segment
	start := -1
	closeRun := func(end int) {
		if start >= 0 && end-start > th.MinIntervalSamples {
			intervals = append(intervals, Segment{
				Name:  segmentName(KindInterval, len(intervals)+1),
				Kind:  KindInterval,
				Start: start,
				End:   end,
				Stats: Summarize(series, start, end, nil),
			})
		}
		start = -1
	}

	for i, p := range series.Power {
		active := !telemetry.IsMissing(p) && p/ftp > th.IntervalFTPRatio
		switch {
		case active && start < 0:
			start = i
		case !active && start >= 0:
			closeRun(i)
		}
	}
	return intervals
}

// DetectAnomalies flags ranges where the rolling HR mean climbs unusually
// fast. The step-to-step change of the rolling mean opens an anomaly when it
// exceeds th.AnomalyStdMultiplier standard deviations of all changes and
// closes it once the change is no longer positive. Unclosed runs are dropped.
func DetectAnomalies(series *telemetry.Series, th Thresholds) []Segment {
	if !series.HeartRate.Present() {
		return nil
	}
	drift := rollingMeanDiff(series.HeartRate, th.AnomalyWindow, th.AnomalyMinPeriods)
	sd, ok := telemetry.Channel(drift).StdDev()
	if !ok {
		return nil
	}
	threshold := sd * th.AnomalyStdMultiplier

	var anomalies []Segment
	start := -1
	closeRun := func(end int) {
		if start >= 0 {
			anomalies = append(anomalies, Segment{
				Name:  segmentName(KindAnomaly, len(anomalies)+1),
				Kind:  KindAnomaly,
				Start: start,
				End:   end,
				Stats: Summarize(series, start, end, nil),
			})
		}
		start = -1
	}

	for i, v := range drift {
		switch {
		case v > threshold && start < 0:
			start = i
		case v <= 0 && start >= 0:
			closeRun(i)
		}
	}
	return anomalies
}

// rollingMeanDiff returns the first difference of a trailing rolling mean.
// Windows with fewer than minPeriods valid samples have no mean, and any
// difference touching one is 0.
func rollingMeanDiff(c telemetry.Channel, window, minPeriods int) []float64 {
	window = max(window, 1)
	means := make([]float64, len(c))
	sum := 0.0
	count := 0
	for i, v := range c {
		if !telemetry.IsMissing(v) {
			sum += v
			count++
		}
		if i >= window {
			if old := c[i-window]; !telemetry.IsMissing(old) {
				sum -= old
				count--
			}
		}
		if count >= minPeriods && count > 0 {
			means[i] = sum / float64(count)
		} else {
			means[i] = math.NaN()
		}
	}

	diff := make([]float64, len(c))
	for i := 1; i < len(means); i++ {
		d := means[i] - means[i-1]
		if telemetry.IsFinite(d) {
			diff[i] = d
		}
	}
	return diff
}
