// Package metrics turns one activity's telemetry plus athlete context into
// aggregate training metrics. Every function is pure; a missing channel
// removes the metrics that depend on it instead of failing.
package metrics

// Mode tags how much of the metric set could be derived.
type Mode string

const (
	// ModeFull means power data exists.
	ModeFull Mode = "full"
	// ModeReduced means power is absent; HR zones and physics estimates stand in.
	ModeReduced Mode = "reduced"
)

// FTPSource names where the FTP used for FTP-relative metrics came from.
type FTPSource string

const (
	FTPConfigured      FTPSource = "configured"
	FTPNormalizedPower FTPSource = "normalized_power"
	FTPDefault         FTPSource = "default"
)

// Business rules that shape the output. Changing one changes results silently.
const (
	// DefaultFTPWatts is the last step of the FTP fallback chain.
	DefaultFTPWatts = 250.0

	// NPWindowSamples is the rolling window for normalized power.
	NPWindowSamples = 30

	// LowCadenceRPM is the cadence below which a sample counts as low-rpm.
	LowCadenceRPM = 75.0

	// Gravity is standard gravity in m/s^2.
	Gravity = 9.80665

	// MinDrivetrainEfficiency floors the efficiency divisor of the climb-power model.
	MinDrivetrainEfficiency = 0.5
)

// ActivityMetrics is the aggregate output for one activity. Optional blocks
// are nil when their source channel is absent.
type ActivityMetrics struct {
	Mode       Mode                `json:"mode"`
	Meta       Meta                `json:"meta"`
	Physio     *Physio             `json:"physio,omitempty"`
	HR         *HeartRate          `json:"hr,omitempty"`
	Cadence    *Cadence            `json:"cadence,omitempty"`
	ZonesPct   map[string]float64  `json:"zones_pct,omitempty"`
	Load       *Load               `json:"load,omitempty"`
	Terrain    *Terrain            `json:"terrain,omitempty"`
	Estimates  *ClimbPowerEstimate `json:"est,omitempty"`
	Modalities Modalities          `json:"modalities"`
}

// Meta holds whole-activity totals.
type Meta struct {
	DurationS  float64  `json:"duration_s"`
	DistanceKM *float64 `json:"distance_km,omitempty"`
	ElevGainM  *float64 `json:"elev_gain_m,omitempty"`
}

// Physio is the power-derived block, only populated in full mode.
type Physio struct {
	FTP       float64   `json:"ftp"`
	FTPSource FTPSource `json:"ftp_source"`
	NP        *float64  `json:"np,omitempty"`
	IF        *float64  `json:"if,omitempty"`
	TSS       *float64  `json:"tss,omitempty"`
	KJ        *float64  `json:"kJ,omitempty"`
	VI        *float64  `json:"vi,omitempty"`
}

// HeartRate summarizes the heart_rate channel.
type HeartRate struct {
	Avg      float64  `json:"avg"`
	Max      float64  `json:"max"`
	DriftPct *float64 `json:"drift_pct,omitempty"`
}

// Cadence summarizes the cadence channel.
type Cadence struct {
	Avg       float64  `json:"avg"`
	StdDev    *float64 `json:"stdev,omitempty"`
	LowRPMPct float64  `json:"low_rpm_pct"`
}

// Load holds training-load figures; each is present only when computable.
type Load struct {
	TSS   *float64 `json:"tss,omitempty"`
	TRIMP *float64 `json:"trimp,omitempty"`
	ATL   *float64 `json:"atl,omitempty"`
	CTL   *float64 `json:"ctl,omitempty"`
	TSB   *float64 `json:"tsb,omitempty"`
}

func (l *Load) empty() bool {
	return l.TSS == nil && l.TRIMP == nil && l.ATL == nil && l.CTL == nil && l.TSB == nil
}

// Terrain holds climbing-rate figures.
type Terrain struct {
	VAMMain float64 `json:"vam_main"`
}

// ClimbPowerEstimate is the physics-based power estimate used without a power meter.
type ClimbPowerEstimate struct {
	PClimbEstW *float64 `json:"p_climb_est_w,omitempty"`
	Confidence string   `json:"confidence"`
}

// Modalities records which sensors produced data.
type Modalities struct {
	Power   bool `json:"power"`
	Cadence bool `json:"cadence"`
	HR      bool `json:"hr"`
	GPS     bool `json:"gps"`
}

type zoneBound struct {
	name   string
	lo, hi float64
}

// Power zones as fractions of FTP; the last zone is open-ended.
var powerZoneBounds = []zoneBound{
	{name: "z1", lo: 0, hi: 0.55},
	{name: "z2", lo: 0.55, hi: 0.75},
	{name: "z3", lo: 0.75, hi: 0.9},
	{name: "z4", lo: 0.9, hi: 1.05},
	{name: "z5", lo: 1.05, hi: 1.2},
	{name: "z6", lo: 1.2, hi: inf},
}

// HR zones as fractions of LTHR. Samples at or above 1.1 x LTHR fall outside.
var hrZoneBounds = []zoneBound{
	{name: "z1", lo: 0, hi: 0.7},
	{name: "z2", lo: 0.7, hi: 0.8},
	{name: "z3", lo: 0.8, hi: 0.9},
	{name: "z4", lo: 0.9, hi: 1.0},
	{name: "z5", lo: 1.0, hi: 1.1},
}
