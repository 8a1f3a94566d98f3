package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fit-coach/metrics"
	"github.com/lucasjlepore/fit-coach/payload"
	"github.com/lucasjlepore/fit-coach/sampling"
	"github.com/lucasjlepore/fit-coach/segments"
	"github.com/lucasjlepore/fit-coach/telemetry"
)

func init() {
	color.NoColor = true
}

func TestPrintMetrics(t *testing.T) {
	doc := &payload.Document{
		Mode: metrics.ModeFull,
		Meta: metrics.Meta{DurationS: 3600, DistanceKM: telemetry.Float(30.5)},
		Physio: &metrics.Physio{
			FTP:       250,
			FTPSource: metrics.FTPConfigured,
			NP:        telemetry.Float(210),
		},
		ZonesPct: map[string]float64{"z2": 60, "z1": 40},
	}

	var buf bytes.Buffer
	require.NoError(t, printMetrics(&buf, doc))
	out := buf.String()
	assert.Contains(t, out, "Mode: full")
	assert.Contains(t, out, "250 (configured)")
	assert.Contains(t, out, "30.50")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Z1")), bytes.Index(buf.Bytes(), []byte("Z2")))
}

func TestPrintSegmentsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSegments(&buf, &payload.Document{}, telemetry.DefaultSamplingConfig()))
	assert.Equal(t, "No segments selected.\n", buf.String())
}

func TestPrintSegments(t *testing.T) {
	doc := &payload.Document{Segments: []payload.Segment{{
		Name:  "Interval-1",
		Stats: segments.Stats{DurationS: 60, PAvg: telemetry.Float(300)},
		Series: &sampling.SerializedSegment{
			DtS:      5,
			T:        []int{0, 5, 10},
			Channels: []sampling.Column{{Key: sampling.KeyPower, Values: []float64{300, 310, 290}}},
		},
	}}}

	var buf bytes.Buffer
	require.NoError(t, printSegments(&buf, doc, telemetry.DefaultSamplingConfig()))
	out := buf.String()
	assert.Contains(t, out, "Interval-1")
	assert.Contains(t, out, "300")
}

func TestShapeSketch(t *testing.T) {
	cfg := telemetry.DefaultSamplingConfig()
	seg := &sampling.SerializedSegment{
		DtS: 5,
		T:   []int{0, 5, 10, 15, 20, 25, 30, 35},
		Channels: []sampling.Column{
			{Key: sampling.KeyHeartRate, Values: []float64{120, 120, 120, 120, 150, 150, 150, 150}},
		},
	}
	// SAX window 20 s at 5 s spacing is 4 rows per symbol.
	assert.Equal(t, "120 150", shapeSketch(seg, cfg))
	assert.Equal(t, "-", shapeSketch(nil, cfg))
	assert.Equal(t, "-", shapeSketch(&sampling.SerializedSegment{DtS: 5}, cfg))
}

func TestPrintProfile(t *testing.T) {
	s := &telemetry.Series{
		TimeS:    []float64{0, 1, 2, 3, 4},
		Distance: telemetry.Channel{0, 10, 20, 30, 40},
		Altitude: telemetry.Channel{100, 100.1, 100.2, 100.3, 100.4},
	}
	var buf bytes.Buffer
	require.NoError(t, printProfile(&buf, s, telemetry.DefaultSamplingConfig()))
	assert.Equal(t, "Elevation profile: 2 of 5 points kept at 2.0 m tolerance\n", buf.String())

	buf.Reset()
	require.NoError(t, printProfile(&buf, &telemetry.Series{TimeS: []float64{0}}, telemetry.DefaultSamplingConfig()))
	assert.Empty(t, buf.String())
}
