package fitsource

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"
)

type fixtureRow struct {
	offset   time.Duration
	power    uint16
	hr       uint8
	altitude float64
	distance float64
	withGPS  bool
}

func buildTestFIT(t *testing.T, rows []fixtureRow) []byte {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	require.NoError(t, err, "new fit file")

	activity, err := file.Activity()
	require.NoError(t, err, "activity accessor")

	start := time.Date(2026, 2, 26, 23, 0, 0, 0, time.UTC)
	for _, row := range rows {
		record := fit.NewRecordMsg()
		record.Timestamp = start.Add(row.offset)
		record.Power = row.power
		record.HeartRate = row.hr
		record.EnhancedAltitude = uint32((row.altitude + 500) * 5)
		record.Distance = uint32(row.distance * 100)
		if row.withGPS {
			record.PositionLat = fit.NewLatitudeDegrees(45.5)
			record.PositionLong = fit.NewLongitudeDegrees(7.25)
		}
		activity.Records = append(activity.Records, record)
	}

	var buf bytes.Buffer
	require.NoError(t, fit.Encode(&buf, file, binary.LittleEndian), "encode fit")
	return buf.Bytes()
}

func TestDecodeSortsAndRebasesTime(t *testing.T) {
	data := buildTestFIT(t, []fixtureRow{
		{offset: 2 * time.Second, power: 220, hr: 140, altitude: 101, distance: 20},
		{offset: 0, power: 200, hr: 138, altitude: 100, distance: 0},
		{offset: 1 * time.Second, power: 0xFFFF, hr: 139, altitude: 100.4, distance: 10},
	})

	s, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Equal(t, []float64{0, 1, 2}, s.TimeS)
	require.NotNil(t, s.Power)
	assert.Equal(t, 200.0, s.Power[0])
	assert.True(t, math.IsNaN(s.Power[1]), "0xFFFF power is missing")
	assert.Equal(t, 220.0, s.Power[2])
	assert.Equal(t, 139.0, s.HeartRate[1])
	assert.InDelta(t, 100.4, s.Altitude[1], 0.2)
	assert.InDelta(t, 20.0, s.Distance[2], 1e-6)

	assert.Nil(t, s.Cadence, "cadence never recorded")
	assert.Nil(t, s.Speed)
	assert.Nil(t, s.Lat)
	assert.Nil(t, s.Lon)
}

func TestDecodeGPSDegrees(t *testing.T) {
	data := buildTestFIT(t, []fixtureRow{
		{offset: 0, power: 180, hr: 120, withGPS: true},
		{offset: time.Second, power: 185, hr: 121, withGPS: true},
	})

	s, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.NotNil(t, s.Lat)
	assert.InDelta(t, 45.5, s.Lat[0], 1e-6)
	assert.InDelta(t, 7.25, s.Lon[1], 1e-6)
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ride.fit")
	data := buildTestFIT(t, []fixtureRow{{offset: 0, power: 150, hr: 110}})
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.fit"))
	assert.Error(t, err)
}

func TestFromRecordsWithoutTimestamps(t *testing.T) {
	rec := fit.NewRecordMsg()
	_, err := FromRecords([]*fit.RecordMsg{rec, nil})
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not a fit file")))
	assert.Error(t, err)
}
