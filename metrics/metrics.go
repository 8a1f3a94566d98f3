package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/lucasjlepore/fit-coach/telemetry"
)

var inf = math.Inf(1)

const secondsPerHour = 3600.0

// ComputeCoreMetrics derives the aggregate metric set for one activity. It
// fails only when the series is empty or malformed.
func ComputeCoreMetrics(series *telemetry.Series, ctx telemetry.AthleteContext) (*ActivityMetrics, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("compute core metrics: %w", err)
	}

	duration := series.Duration()
	hasPower := series.Power.Present()
	hasHR := series.HeartRate.Present()
	hasCadence := series.Cadence.Present()
	hasAltitude := series.Altitude.Present()

	out := &ActivityMetrics{
		Mode: ModeReduced,
		Meta: Meta{DurationS: duration},
		Modalities: Modalities{
			Power:   hasPower,
			Cadence: hasCadence,
			HR:      hasHR,
			GPS:     series.Lat.Present(),
		},
	}
	if d, ok := series.Distance.Last(); ok {
		out.Meta.DistanceKM = telemetry.Float(d / 1000.0)
	}
	if hasAltitude {
		out.Meta.ElevGainM = telemetry.Float(series.Altitude.PositiveGain())
	}

	var np *float64
	if hasPower {
		if v, ok := NormalizedPower(series.Power); ok {
			np = telemetry.Float(v)
		}
	}
	ftp, source := ResolveFTP(ctx, np)

	var ifValue, tss *float64
	if np != nil {
		ifValue = telemetry.Float(*np / ftp)
		tss = telemetry.Float(TrainingStressScore(duration, *np, ftp))
	}

	if hasPower {
		out.Mode = ModeFull
		out.Physio = &Physio{
			FTP:       ftp,
			FTPSource: source,
			NP:        np,
			IF:        ifValue,
			TSS:       tss,
			KJ:        telemetry.Float(WorkKJ(series)),
		}
		if np != nil {
			out.Physio.VI = telemetry.Float(VariabilityIndex(*np, series.Power))
		}
	}

	if hasHR {
		avg, _ := series.HeartRate.Mean()
		mx, _ := series.HeartRate.Max()
		out.HR = &HeartRate{Avg: avg, Max: mx}
		if hasPower {
			out.HR.DriftPct = telemetry.Float(HRDrift(series))
		}
	}

	if hasCadence {
		out.Cadence = CadenceStats(series.Cadence)
	}

	if hasPower {
		out.ZonesPct = PowerZones(series.Power, ftp)
	} else if lthr, ok := ctx.ConfiguredLTHR(); ok {
		out.ZonesPct = HRZones(series.HeartRate, lthr)
	}

	var trimp *float64
	if lthr, ok := ctx.ConfiguredLTHR(); ok {
		if v, ok := TRIMP(series, lthr); ok {
			trimp = telemetry.Float(v)
		}
	}
	if load := LoadBlock(ctx, tss, trimp); load != nil {
		out.Load = load
	}

	if hasAltitude {
		out.Terrain = &Terrain{VAMMain: VAM(series)}
		if !hasPower {
			out.Estimates = EstimateClimbPower(series, ctx)
		}
	}

	return out, nil
}

// NormalizedPower raises power (missing as 0) to the 4th power, takes a
// trailing 30-sample rolling mean, takes its 4th root, and averages the
// result. Windows that are not yet full produce no value, so fewer than 30
// samples yields ok=false.
func NormalizedPower(power telemetry.Channel) (float64, bool) {
	if len(power) < NPWindowSamples {
		return 0, false
	}
	filled := power.FillMissing(0)

	sum := 0.0
	for i := 0; i < NPWindowSamples; i++ {
		sum += math.Pow(filled[i], 4)
	}

	roots := make([]float64, 0, len(filled)-NPWindowSamples+1)
	for i := NPWindowSamples - 1; i < len(filled); i++ {
		if i >= NPWindowSamples {
			sum += math.Pow(filled[i], 4) - math.Pow(filled[i-NPWindowSamples], 4)
		}
		// Running sums can drift a hair below zero for all-zero windows.
		rolling := math.Max(sum/float64(NPWindowSamples), 0)
		roots = append(roots, math.Pow(rolling, 0.25))
	}
	return stat.Mean(roots, nil), true
}

// ResolveFTP applies the fallback chain: configured FTP, then NP, then 250 W.
// A zero NP or FTP counts as unavailable.
func ResolveFTP(ctx telemetry.AthleteContext, np *float64) (float64, FTPSource) {
	if ftp, ok := ctx.ConfiguredFTP(); ok {
		return ftp, FTPConfigured
	}
	if np != nil && *np > 0 {
		return *np, FTPNormalizedPower
	}
	return DefaultFTPWatts, FTPDefault
}

// TrainingStressScore is (duration x NP x IF) / (FTP x 3600) x 100.
func TrainingStressScore(durationS, np, ftp float64) float64 {
	if ftp <= 0 {
		return 0
	}
	intensity := np / ftp
	return (durationS * np * intensity) / (ftp * secondsPerHour) * 100.0
}

// WorkKJ sums power x dt, where dt is the non-negative time step from the
// previous sample (0 for the first), and converts to kJ.
func WorkKJ(series *telemetry.Series) float64 {
	if series.Power == nil {
		return 0
	}
	work := 0.0
	for i := 1; i < series.Len(); i++ {
		p := series.Power[i]
		if telemetry.IsMissing(p) {
			continue
		}
		dt := series.TimeS[i] - series.TimeS[i-1]
		if dt <= 0 {
			continue
		}
		work += p * dt
	}
	return work / 1000.0
}

// VariabilityIndex is NP / mean(power) with the denominator floored at 1.
func VariabilityIndex(np float64, power telemetry.Channel) float64 {
	mean, ok := power.Mean()
	if !ok {
		mean = 0
	}
	return np / math.Max(mean, 1)
}

// HRDrift compares the HR-to-power ratio of the two halves of the activity,
// split at the temporal midpoint. It returns the percent change from the
// first half to the second, or 0 when a half has no samples or no HR.
func HRDrift(series *telemetry.Series) float64 {
	n := series.Len()
	if n == 0 {
		return 0
	}
	halfway := series.TimeS[0] + series.Duration()/2

	split := n
	for i, t := range series.TimeS {
		if t > halfway {
			split = i
			break
		}
	}
	first := series.Slice(0, split)
	second := series.Slice(split, n)
	if first.Len() == 0 || second.Len() == 0 {
		return 0
	}

	r1, ok1 := hrPowerRatio(first)
	r2, ok2 := hrPowerRatio(second)
	if !ok1 || !ok2 || r1 == 0 {
		return 0
	}
	return (r2 - r1) / r1 * 100.0
}

func hrPowerRatio(s *telemetry.Series) (float64, bool) {
	hr, ok := s.HeartRate.Mean()
	if !ok {
		return 0, false
	}
	p, ok := s.Power.Mean()
	if !ok {
		p = 0
	}
	return hr / math.Max(p, 1), true
}

// CadenceStats returns avg, sample stdev and the share of all samples below
// LowCadenceRPM.
func CadenceStats(cadence telemetry.Channel) *Cadence {
	avg, ok := cadence.Mean()
	if !ok {
		return nil
	}
	out := &Cadence{Avg: avg}
	if sd, ok := cadence.StdDev(); ok {
		out.StdDev = telemetry.Float(sd)
	}
	low := 0
	for _, v := range cadence {
		if !telemetry.IsMissing(v) && v < LowCadenceRPM {
			low++
		}
	}
	out.LowRPMPct = float64(low) / float64(len(cadence)) * 100.0
	return out
}

// PowerZones returns the percentage of samples in each FTP-relative zone.
// Missing and negative power count as 0 W, so the zones cover every sample.
func PowerZones(power telemetry.Channel, ftp float64) map[string]float64 {
	if ftp <= 0 || len(power) == 0 {
		return nil
	}
	ratios := make([]float64, len(power))
	for i, p := range power {
		if telemetry.IsMissing(p) || p < 0 {
			p = 0
		}
		ratios[i] = p / ftp
	}
	return zoneShares(ratios, len(ratios), powerZoneBounds)
}

// HRZones returns the percentage of valid HR samples in each LTHR-relative zone.
func HRZones(hr telemetry.Channel, lthr float64) map[string]float64 {
	if lthr <= 0 {
		return nil
	}
	valid := hr.Valid()
	if len(valid) == 0 {
		return nil
	}
	ratios := make([]float64, len(valid))
	for i, v := range valid {
		ratios[i] = v / lthr
	}
	return zoneShares(ratios, len(ratios), hrZoneBounds)
}

func zoneShares(ratios []float64, total int, bounds []zoneBound) map[string]float64 {
	counts := make([]int, len(bounds))
	for _, r := range ratios {
		for i, z := range bounds {
			if r >= z.lo && r < z.hi {
				counts[i]++
				break
			}
		}
	}
	out := make(map[string]float64, len(bounds))
	for i, z := range bounds {
		out[z.name] = float64(counts[i]) / float64(total) * 100.0
	}
	return out
}

// VAM is total positive elevation gain per hour of elapsed time.
func VAM(series *telemetry.Series) float64 {
	hours := series.Duration() / secondsPerHour
	if hours <= 0 {
		return 0
	}
	return series.Altitude.PositiveGain() / hours
}

// EstimateClimbPower models the power needed to lift rider and bike plus
// rolling resistance, divided by drivetrain efficiency, averaged over samples.
// Without altitude the estimate is absent with low confidence.
func EstimateClimbPower(series *telemetry.Series, ctx telemetry.AthleteContext) *ClimbPowerEstimate {
	if !series.Altitude.Present() {
		return &ClimbPowerEstimate{Confidence: "low"}
	}
	mass := ctx.TotalMassKG()
	efficiency := math.Max(ctx.DrivetrainEfficiency, MinDrivetrainEfficiency)

	var powers []float64
	for i := 1; i < series.Len(); i++ {
		a0, a1 := series.Altitude[i-1], series.Altitude[i]
		if telemetry.IsMissing(a0) || telemetry.IsMissing(a1) {
			continue
		}
		dt := math.Max(series.TimeS[i]-series.TimeS[i-1], 1)
		vVert := math.Max(a1-a0, 0) / dt

		rolling := 0.0
		if series.Speed != nil {
			speed := series.Speed[i]
			if telemetry.IsMissing(speed) {
				continue
			}
			rolling = ctx.Crr * mass * Gravity * speed
		}
		powers = append(powers, (mass*Gravity*vVert+rolling)/efficiency)
	}

	est := &ClimbPowerEstimate{Confidence: "medium"}
	if len(powers) > 0 {
		est.PClimbEstW = telemetry.Float(stat.Mean(powers, nil))
	}
	return est
}

// TRIMP is duration in minutes x mean(max(HR/LTHR - 1, 0)) x 100.
func TRIMP(series *telemetry.Series, lthr float64) (float64, bool) {
	if lthr <= 0 {
		return 0, false
	}
	valid := series.HeartRate.Valid()
	if len(valid) == 0 {
		return 0, false
	}
	excess := make([]float64, len(valid))
	for i, hr := range valid {
		excess[i] = math.Max(hr/lthr-1, 0)
	}
	minutes := series.Duration() / 60.0
	return minutes * stat.Mean(excess, nil) * 100.0, true
}

// LoadBlock passes through configured ATL/CTL, derives TSB = CTL - ATL when
// TSB was not supplied, and adds TSS/TRIMP when known. Zero ATL or CTL counts
// as not configured. It returns nil when nothing is known.
func LoadBlock(ctx telemetry.AthleteContext, tss, trimp *float64) *Load {
	load := &Load{TSS: tss, TRIMP: trimp}
	if ctx.ATL != nil && *ctx.ATL != 0 {
		load.ATL = telemetry.Float(*ctx.ATL)
	}
	if ctx.CTL != nil && *ctx.CTL != 0 {
		load.CTL = telemetry.Float(*ctx.CTL)
	}
	switch {
	case ctx.TSB != nil:
		load.TSB = telemetry.Float(*ctx.TSB)
	case load.ATL != nil && load.CTL != nil:
		load.TSB = telemetry.Float(*load.CTL - *load.ATL)
	}
	if load.empty() {
		return nil
	}
	return load
}
