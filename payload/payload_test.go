package payload

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lucasjlepore/fit-coach/metrics"
	"github.com/lucasjlepore/fit-coach/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hillRide is 20 minutes at 1 Hz: flat, a 100 m climb, then a descent, with
// one 100 s effort above threshold inside the climb.
func hillRide() *telemetry.Series {
	n := 1200
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
	alt := 0.0
	for i := 0; i < n; i++ {
		s.TimeS[i] = float64(i)
		switch {
		case i > 200 && i <= 600:
			alt += 0.25
		case i > 600 && alt > 0:
			alt -= 0.5
		}
		s.Altitude[i] = alt
		s.Power[i] = 180
		if i >= 300 && i < 400 {
			s.Power[i] = 300
		}
		s.HeartRate[i] = 150
		s.Cadence[i] = 90
		s.Distance[i] = float64(i) * 6
		s.Speed[i] = 6
		s.Lat[i] = 45.0
		s.Lon[i] = 7.0
	}
	return s
}

func TestBuildFullDocument(t *testing.T) {
	opts := DefaultOptions()
	opts.Athlete.FTP = telemetry.Float(250)
	opts.Athlete.SleepHours = telemetry.Float(7.5)

	doc, err := Build(context.Background(), hillRide(), opts)
	require.NoError(t, err)

	assert.Equal(t, metrics.ModeFull, doc.Mode)
	require.NotNil(t, doc.Physio)
	assert.Equal(t, 250.0, doc.Physio.FTP)
	assert.True(t, doc.Modalities.GPS)
	require.NotNil(t, doc.Context)
	assert.Nil(t, doc.Context.RPE)

	names := make([]string, len(doc.Segments))
	for i, seg := range doc.Segments {
		names[i] = seg.Name
		require.NotNil(t, seg.Series)
		assert.Equal(t, 5, seg.Series.DtS)
		assert.LessOrEqual(t, len(seg.Series.T), opts.Sampling.MaxSegmentPoints)
		for _, c := range seg.Series.Channels {
			assert.Len(t, c.Values, len(seg.Series.T))
		}
	}
	assert.Equal(t, []string{"Climb-1", "Interval-1"}, names)

	climb := doc.Segments[0]
	require.NotNil(t, climb.Stats.ElevGainM)
	assert.InDelta(t, 100.0, *climb.Stats.ElevGainM, 1e-6)
	keys := make([]string, len(climb.Series.Channels))
	for i, c := range climb.Series.Channels {
		keys[i] = c.Key
	}
	assert.Equal(t, []string{"elev", "p", "hr", "cad", "speed"}, keys)
}

func TestBuildJSONOmitsAbsentBlocks(t *testing.T) {
	s := hillRide()
	s.Power = nil
	s.Cadence = nil
	s.Lat, s.Lon = nil, nil

	doc, err := Build(context.Background(), s, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, metrics.ModeReduced, doc.Mode)

	raw, err := Marshal(doc)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, key := range []string{"mode", "meta", "modalities", "hr", "terrain", "est", "segments"} {
		assert.Contains(t, generic, key)
	}
	for _, key := range []string{"physio", "cadence", "context", "load", "zones_pct"} {
		assert.NotContains(t, generic, key)
	}

	segs, ok := generic["segments"].([]any)
	require.True(t, ok)
	require.Len(t, segs, 1)
	series := segs[0].(map[string]any)["series"].(map[string]any)
	assert.Contains(t, series, "elev")
	assert.NotContains(t, series, "p")
}

func TestBuildWithoutSegmentsEmitsEmptyList(t *testing.T) {
	s := &telemetry.Series{TimeS: []float64{0, 1, 2}, HeartRate: telemetry.Channel{120, 121, 122}}
	doc, err := Build(context.Background(), s, DefaultOptions())
	require.NoError(t, err)

	raw, err := Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"segments": []`)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(context.Background(), &telemetry.Series{}, DefaultOptions())
	assert.ErrorIs(t, err, telemetry.ErrEmptySeries)

	opts := DefaultOptions()
	opts.Sampling.TargetFreqHz = 0
	_, err = Build(context.Background(), hillRide(), opts)
	assert.ErrorIs(t, err, telemetry.ErrInvalidSampling)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Build(ctx, hillRide(), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
