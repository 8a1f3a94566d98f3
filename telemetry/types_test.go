package telemetry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesValidate(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name    string
		series  *Series
		wantErr error
	}{
		{
			name:    "empty",
			series:  &Series{},
			wantErr: ErrEmptySeries,
		},
		{
			name:   "aligned with sparse values",
			series: &Series{TimeS: []float64{0, 1, 2}, Power: Channel{100, nan, 120}},
		},
		{
			name:    "length mismatch",
			series:  &Series{TimeS: []float64{0, 1, 2}, HeartRate: Channel{140, 141}},
			wantErr: ErrInvalidSeries,
		},
		{
			name:    "time goes backwards",
			series:  &Series{TimeS: []float64{0, 2, 1}},
			wantErr: ErrInvalidSeries,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.series.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSeriesSliceSharesAbsentChannels(t *testing.T) {
	s := &Series{
		TimeS:    []float64{0, 1, 2, 3, 4},
		Altitude: Channel{10, 11, 12, 13, 14},
	}
	sub := s.Slice(1, 4)
	require.Equal(t, 3, sub.Len())
	assert.Equal(t, Channel{11, 12, 13}, sub.Altitude)
	assert.Nil(t, sub.Power)
	assert.InDelta(t, 2.0, sub.Duration(), 1e-9)

	clamped := s.Slice(-3, 99)
	assert.Equal(t, 5, clamped.Len())
}

func TestChannelStatistics(t *testing.T) {
	nan := math.NaN()
	c := Channel{nan, 2, 4, nan, 6}

	assert.True(t, c.Present())
	assert.False(t, Channel{nan, nan}.Present())
	assert.False(t, Channel(nil).Present())

	mean, ok := c.Mean()
	require.True(t, ok)
	assert.InDelta(t, 4.0, mean, 1e-9)

	mx, ok := c.Max()
	require.True(t, ok)
	assert.Equal(t, 6.0, mx)

	sd, ok := c.StdDev()
	require.True(t, ok)
	assert.InDelta(t, 2.0, sd, 1e-9)

	_, ok = Channel{5}.StdDev()
	assert.False(t, ok)
	_, ok = Channel{nan, 5, nan}.StdDev()
	assert.False(t, ok, "one valid reading among missing ones")
	_, ok = Channel{nan, nan}.Mean()
	assert.False(t, ok)

	last, ok := Channel{1, 2, nan}.Last()
	require.True(t, ok)
	assert.Equal(t, 2.0, last)
}

func TestChannelFillForwardBackward(t *testing.T) {
	nan := math.NaN()
	filled := Channel{nan, nan, 3, nan, 5, nan}.FillForwardBackward()
	assert.Equal(t, Channel{3, 3, 3, 3, 5, 5}, filled)

	allMissing := Channel{nan, nan}.FillForwardBackward()
	assert.True(t, math.IsNaN(allMissing[0]))
	assert.True(t, math.IsNaN(allMissing[1]))
}

func TestChannelPositiveGainSkipsGaps(t *testing.T) {
	nan := math.NaN()
	c := Channel{100, 105, nan, 120, 110, 115}
	// 100->105 (+5), gap, 120->110 (-), 110->115 (+5)
	assert.InDelta(t, 10.0, c.PositiveGain(), 1e-9)
}

func TestSamplingConfigValidate(t *testing.T) {
	cfg := DefaultSamplingConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.TargetFreqHz = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSampling)

	bad = cfg
	bad.TargetFreqHz = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSampling)

	bad = cfg
	bad.MaxSegmentPoints = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSampling)

	dense := cfg
	dense.BurstFreqHz = 0
	assert.NoError(t, dense.Validate(), "non-positive burst frequency falls back to every row")
}

func TestAthleteContextConfiguredValues(t *testing.T) {
	ctx := DefaultAthleteContext()
	_, ok := ctx.ConfiguredFTP()
	assert.False(t, ok)

	ctx.FTP = Float(0)
	_, ok = ctx.ConfiguredFTP()
	assert.False(t, ok, "zero FTP counts as not configured")

	ctx.FTP = Float(260)
	ftp, ok := ctx.ConfiguredFTP()
	assert.True(t, ok)
	assert.Equal(t, 260.0, ftp)
	assert.InDelta(t, 80.0, ctx.TotalMassKG(), 1e-9)
}
