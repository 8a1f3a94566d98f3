// Package telemetry holds the column-oriented activity table shared by the
// metrics, segment and sampling packages, plus the athlete and sampling
// configuration they read.
package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySeries is returned when an operation needs at least one sample.
	ErrEmptySeries = errors.New("telemetry series has no samples")

	// ErrInvalidSeries is returned when channel lengths or timestamps are inconsistent.
	ErrInvalidSeries = errors.New("invalid telemetry series")

	// ErrInvalidSampling is returned for unusable sampling configuration.
	ErrInvalidSampling = errors.New("invalid sampling configuration")
)

// Channel names as they appear on a Series.
const (
	ChannelPower     = "power"
	ChannelHeartRate = "heart_rate"
	ChannelCadence   = "cadence"
	ChannelAltitude  = "altitude"
	ChannelDistance  = "distance"
	ChannelSpeed     = "speed"
	ChannelLat       = "lat"
	ChannelLon       = "lon"
)

// Series is one activity's time-aligned telemetry. TimeS holds elapsed
// seconds from the first sample and is non-decreasing. Every non-nil channel
// has len(TimeS) values; a nil channel means the sensor was absent.
//
// A Series is built once by the FIT adapter (or a test) and must not be
// mutated afterwards: analysis packages share it without copying.
type Series struct {
	TimeS     []float64
	Power     Channel
	HeartRate Channel
	Cadence   Channel
	Altitude  Channel
	Distance  Channel
	Speed     Channel
	Lat       Channel
	Lon       Channel
}

// Len returns the number of samples.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.TimeS)
}

// Duration returns last minus first elapsed time.
func (s *Series) Duration() float64 {
	if s.Len() == 0 {
		return 0
	}
	return s.TimeS[len(s.TimeS)-1] - s.TimeS[0]
}

// Channels returns every channel keyed by name, including nil ones.
func (s *Series) Channels() map[string]Channel {
	return map[string]Channel{
		ChannelPower:     s.Power,
		ChannelHeartRate: s.HeartRate,
		ChannelCadence:   s.Cadence,
		ChannelAltitude:  s.Altitude,
		ChannelDistance:  s.Distance,
		ChannelSpeed:     s.Speed,
		ChannelLat:       s.Lat,
		ChannelLon:       s.Lon,
	}
}

// Validate checks the alignment invariant and time ordering.
func (s *Series) Validate() error {
	n := s.Len()
	if n == 0 {
		return ErrEmptySeries
	}
	for name, ch := range s.Channels() {
		if ch != nil && len(ch) != n {
			return fmt.Errorf("%w: channel %s has %d values, want %d", ErrInvalidSeries, name, len(ch), n)
		}
	}
	for i := 1; i < n; i++ {
		if s.TimeS[i] < s.TimeS[i-1] {
			return fmt.Errorf("%w: time_s decreases at index %d", ErrInvalidSeries, i)
		}
	}
	return nil
}

// Slice returns a read-only view of samples [start, end). Channels share the
// backing arrays with s.
func (s *Series) Slice(start, end int) *Series {
	start = max(start, 0)
	end = min(end, s.Len())
	if end < start {
		end = start
	}
	return &Series{
		TimeS:     s.TimeS[start:end],
		Power:     s.Power.slice(start, end),
		HeartRate: s.HeartRate.slice(start, end),
		Cadence:   s.Cadence.slice(start, end),
		Altitude:  s.Altitude.slice(start, end),
		Distance:  s.Distance.slice(start, end),
		Speed:     s.Speed.slice(start, end),
		Lat:       s.Lat.slice(start, end),
		Lon:       s.Lon.slice(start, end),
	}
}

// AthleteContext is the per-athlete configuration read by the metrics engine.
// Optional values are nil when not configured.
type AthleteContext struct {
	FTP                  *float64 `json:"ftp,omitempty"`
	LTHR                 *float64 `json:"lthr,omitempty"`
	AthleteMassKG        float64  `json:"athlete_mass_kg"`
	BikeMassKG           float64  `json:"bike_mass_kg"`
	Crr                  float64  `json:"crr"`
	DrivetrainEfficiency float64  `json:"drivetrain_efficiency"`
	ATL                  *float64 `json:"atl,omitempty"`
	CTL                  *float64 `json:"ctl,omitempty"`
	TSB                  *float64 `json:"tsb,omitempty"`
	SleepHours           *float64 `json:"sleep_hours,omitempty"`
	RPE                  *int     `json:"rpe,omitempty"`
}

// DefaultAthleteContext returns the context used when nothing is configured.
func DefaultAthleteContext() AthleteContext {
	return AthleteContext{
		AthleteMassKG:        72.0,
		BikeMassKG:           8.0,
		Crr:                  0.004,
		DrivetrainEfficiency: 0.97,
	}
}

// TotalMassKG returns rider plus bike mass.
func (c AthleteContext) TotalMassKG() float64 {
	return c.AthleteMassKG + c.BikeMassKG
}

// ConfiguredFTP returns the configured FTP when it is set and positive.
func (c AthleteContext) ConfiguredFTP() (float64, bool) {
	if c.FTP == nil || *c.FTP <= 0 {
		return 0, false
	}
	return *c.FTP, true
}

// ConfiguredLTHR returns the configured LTHR when it is set and positive.
func (c AthleteContext) ConfiguredLTHR() (float64, bool) {
	if c.LTHR == nil || *c.LTHR <= 0 {
		return 0, false
	}
	return *c.LTHR, true
}

// SamplingConfig is the compression policy applied to each selected segment.
type SamplingConfig struct {
	TargetFreqHz           float64 `json:"target_freq_hz"`
	BurstFreqHz            float64 `json:"burst_freq_hz"`
	BurstWindowS           float64 `json:"burst_window_s"`
	DouglasPeuckerEpsilonM float64 `json:"douglas_peucker_epsilon_m"`
	SAXWindow              int     `json:"sax_window_s"`
	SAXCardinality         int     `json:"sax_cardinality"`
	MaxSegmentPoints       int     `json:"max_segment_points"`
}

// DefaultSamplingConfig returns 5 s uniform sampling with 1 Hz bursts.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		TargetFreqHz:           0.2,
		BurstFreqHz:            1.0,
		BurstWindowS:           30,
		DouglasPeuckerEpsilonM: 2.0,
		SAXWindow:              20,
		SAXCardinality:         12,
		MaxSegmentPoints:       400,
	}
}

// Validate rejects configurations the sampling engine cannot run with.
func (c SamplingConfig) Validate() error {
	if !(c.TargetFreqHz > 0) {
		return fmt.Errorf("%w: target frequency must be > 0, got %v", ErrInvalidSampling, c.TargetFreqHz)
	}
	if c.MaxSegmentPoints <= 0 {
		return fmt.Errorf("%w: max segment points must be > 0, got %d", ErrInvalidSampling, c.MaxSegmentPoints)
	}
	if c.BurstWindowS < 0 {
		return fmt.Errorf("%w: burst window must be >= 0, got %v", ErrInvalidSampling, c.BurstWindowS)
	}
	return nil
}

// SelectionPolicy controls how many detected segments of each kind are
// forwarded to compression.
type SelectionPolicy struct {
	Climbs    int `json:"climbs"`
	Intervals int `json:"intervals"`
	Anomalies int `json:"anomalies"`
}

// DefaultSelectionPolicy is top-3 climbs, first 2 intervals, first anomaly.
func DefaultSelectionPolicy() SelectionPolicy {
	return SelectionPolicy{Climbs: 3, Intervals: 2, Anomalies: 1}
}
