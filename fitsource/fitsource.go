// Package fitsource decodes FIT activity files into telemetry series.
package fitsource

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/tormoder/fit"

	"github.com/lucasjlepore/fit-coach/telemetry"
)

// ErrNoRecords is returned when a FIT activity has no timestamped records.
var ErrNoRecords = errors.New("FIT activity has no timestamped records")

// DecodeFile opens and decodes an activity FIT file.
func DecodeFile(path string) (*telemetry.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads an activity FIT stream and returns its records as a series.
// Records are ordered by timestamp and TimeS is measured from the first one.
// Channels without a single valid reading are left nil.
func Decode(r io.Reader) (*telemetry.Series, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}
	return FromRecords(activity.Records)
}

// FromRecords converts record messages into a series. Records without a
// usable timestamp cannot be placed on the timeline and are skipped.
func FromRecords(records []*fit.RecordMsg) (*telemetry.Series, error) {
	rows := make([]*fit.RecordMsg, 0, len(records))
	for _, rec := range records {
		if rec == nil || !validTime(rec.Timestamp) {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, ErrNoRecords
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	n := len(rows)
	s := &telemetry.Series{
		TimeS:     make([]float64, n),
		Power:     make(telemetry.Channel, n),
		HeartRate: make(telemetry.Channel, n),
		Cadence:   make(telemetry.Channel, n),
		Altitude:  make(telemetry.Channel, n),
		Distance:  make(telemetry.Channel, n),
		Speed:     make(telemetry.Channel, n),
		Lat:       make(telemetry.Channel, n),
		Lon:       make(telemetry.Channel, n),
	}
	start := rows[0].Timestamp
	for i, rec := range rows {
		s.TimeS[i] = rec.Timestamp.Sub(start).Seconds()
		s.Power[i] = extractPower(rec)
		s.HeartRate[i] = extractHeartRate(rec)
		s.Cadence[i] = extractCadence(rec)
		s.Altitude[i] = extractAltitude(rec)
		s.Distance[i] = nonNegativeOrMissing(rec.GetDistanceScaled())
		s.Speed[i] = extractSpeed(rec)
		s.Lat[i], s.Lon[i] = extractPosition(rec)
	}

	s.Power = dropIfEmpty(s.Power)
	s.HeartRate = dropIfEmpty(s.HeartRate)
	s.Cadence = dropIfEmpty(s.Cadence)
	s.Altitude = dropIfEmpty(s.Altitude)
	s.Distance = dropIfEmpty(s.Distance)
	s.Speed = dropIfEmpty(s.Speed)
	if !s.Lat.Present() || !s.Lon.Present() {
		s.Lat, s.Lon = nil, nil
	}
	return s, nil
}

func dropIfEmpty(c telemetry.Channel) telemetry.Channel {
	if !c.Present() {
		return nil
	}
	return c
}

func validTime(t time.Time) bool {
	return !t.IsZero() && !fit.IsBaseTime(t)
}

func extractPower(rec *fit.RecordMsg) float64 {
	if rec.Power == math.MaxUint16 {
		return telemetry.Missing()
	}
	return float64(rec.Power)
}

func extractHeartRate(rec *fit.RecordMsg) float64 {
	if rec.HeartRate == math.MaxUint8 {
		return telemetry.Missing()
	}
	return float64(rec.HeartRate)
}

func extractCadence(rec *fit.RecordMsg) float64 {
	if cad256 := rec.GetCadence256Scaled(); telemetry.IsFinite(cad256) && cad256 > 0 {
		return cad256
	}
	if rec.Cadence == math.MaxUint8 {
		return telemetry.Missing()
	}
	return float64(rec.Cadence)
}

func extractAltitude(rec *fit.RecordMsg) float64 {
	if alt := rec.GetEnhancedAltitudeScaled(); telemetry.IsFinite(alt) {
		return alt
	}
	if alt := rec.GetAltitudeScaled(); telemetry.IsFinite(alt) {
		return alt
	}
	return telemetry.Missing()
}

func extractSpeed(rec *fit.RecordMsg) float64 {
	if speed := rec.GetEnhancedSpeedScaled(); telemetry.IsFinite(speed) && speed >= 0 {
		return speed
	}
	return nonNegativeOrMissing(rec.GetSpeedScaled())
}

func extractPosition(rec *fit.RecordMsg) (float64, float64) {
	if rec.PositionLat.Invalid() || rec.PositionLong.Invalid() {
		return telemetry.Missing(), telemetry.Missing()
	}
	return rec.PositionLat.Degrees(), rec.PositionLong.Degrees()
}

func nonNegativeOrMissing(v float64) float64 {
	if !telemetry.IsFinite(v) || v < 0 {
		return telemetry.Missing()
	}
	return v
}
