package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"

	"github.com/lucasjlepore/fit-coach/payload"
	"github.com/lucasjlepore/fit-coach/telemetry"
)

func rampRide(n int) *telemetry.Series {
	s := &telemetry.Series{
		TimeS:     make([]float64, n),
		Power:     make(telemetry.Channel, n),
		HeartRate: make(telemetry.Channel, n),
		Altitude:  make(telemetry.Channel, n),
		Distance:  make(telemetry.Channel, n),
	}
	for i := 0; i < n; i++ {
		s.TimeS[i] = float64(i)
		s.Power[i] = 200
		s.HeartRate[i] = 140
		s.Altitude[i] = float64(i) * 0.1
		s.Distance[i] = float64(i) * 5
	}
	s.Power[3] = math.NaN()
	return s
}

func writeTestFIT(t *testing.T, dir string, n int) string {
	t.Helper()

	file, err := fit.NewFile(fit.FileTypeActivity, fit.NewHeader(fit.V20, true))
	require.NoError(t, err)
	activity, err := file.Activity()
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		record := fit.NewRecordMsg()
		record.Timestamp = start.Add(time.Duration(i) * time.Second)
		record.Power = 210
		record.HeartRate = 142
		record.EnhancedAltitude = uint32((100.0 + 500) * 5)
		record.Distance = uint32(i * 500)
		activity.Records = append(activity.Records, record)
	}

	var buf bytes.Buffer
	require.NoError(t, fit.Encode(&buf, file, binary.LittleEndian))
	path := filepath.Join(dir, "ride.fit")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestRunSeriesWritesAllOutputs(t *testing.T) {
	out := t.TempDir()
	opts := Options{OutDir: out, Format: "CSV", Payload: payload.DefaultOptions()}
	opts.Payload.Athlete.FTP = telemetry.Float(250)

	res, err := RunSeries(context.Background(), rampRide(120), opts)
	require.NoError(t, err)
	require.NotNil(t, res.Document)

	assert.Equal(t, filepath.Join(out, "canonical_samples.csv"), res.CanonicalSamplesPath)
	assert.Equal(t, 120, res.Samples)

	raw, err := os.ReadFile(res.PayloadPath)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "full", doc["mode"])
	assert.Contains(t, doc, "segments")
	assert.FileExists(t, res.ManifestPath)

	notes, err := os.ReadFile(res.SummaryPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(notes), "Session: full mode"))

	f, err := os.Open(res.CanonicalSamplesPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 121)
	assert.Equal(t, canonicalHeader, rows[0])
	assert.Equal(t, "", rows[4][2], "missing power stays empty")
	assert.Equal(t, "false", rows[4][10])
	assert.Equal(t, "200", rows[1][2])
	assert.Equal(t, "", rows[1][4], "absent cadence channel")
}

func TestRunSeriesRefusesNonEmptyDir(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "keep.txt"), []byte("x"), 0o644))

	_, err := RunSeries(context.Background(), rampRide(60), Options{OutDir: out, Format: FormatCSV, Payload: payload.DefaultOptions()})
	require.ErrorIs(t, err, ErrOutputNotEmpty)

	res, err := RunSeries(context.Background(), rampRide(60), Options{OutDir: out, Format: FormatCSV, Overwrite: true, Payload: payload.DefaultOptions()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "canonical_samples.csv"), res.CanonicalSamplesPath)
}

func TestRunSeriesPropagatesPayloadErrors(t *testing.T) {
	opts := Options{OutDir: t.TempDir(), Payload: payload.DefaultOptions()}
	opts.Payload.Sampling.TargetFreqHz = 0

	_, err := RunSeries(context.Background(), rampRide(60), opts)
	require.ErrorIs(t, err, telemetry.ErrInvalidSampling)

	_, err = RunSeries(context.Background(), &telemetry.Series{}, Options{OutDir: t.TempDir(), Payload: payload.DefaultOptions()})
	require.ErrorIs(t, err, telemetry.ErrEmptySeries)
}

func TestRunBytes(t *testing.T) {
	dir := t.TempDir()
	fitData, err := os.ReadFile(writeTestFIT(t, dir, 45))
	require.NoError(t, err)

	res, err := RunBytes(context.Background(), "upload.fit", fitData, Options{Format: FormatCSV, Payload: payload.DefaultOptions()})
	require.NoError(t, err)
	assert.Len(t, res.Files, 4)
	assert.Contains(t, res.Files, "canonical_samples.csv")
	assert.Equal(t, "upload.fit", res.Manifest.Source.Name)
	assert.Equal(t, string(res.Document.Mode), res.Manifest.Mode)
	assert.True(t, bytes.HasPrefix(res.Files[SummaryFileName], []byte("Session: ")))

	_, err = RunBytes(context.Background(), "empty.fit", nil, Options{})
	require.ErrorContains(t, err, "fit data is required")
}

func TestExportWritesOnlyCanonical(t *testing.T) {
	dir := t.TempDir()
	fitPath := writeTestFIT(t, dir, 30)
	out := filepath.Join(dir, "export")

	res, err := Export(Options{FitPath: fitPath, OutDir: out, Format: FormatCSV})
	require.NoError(t, err)
	assert.Empty(t, res.PayloadPath)
	assert.Equal(t, 30, res.Samples)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "canonical_samples.csv", entries[0].Name())
}

func TestValidateOptions(t *testing.T) {
	_, err := Run(context.Background(), Options{OutDir: t.TempDir()})
	require.ErrorContains(t, err, "fit path is required")

	_, err = Run(context.Background(), Options{FitPath: "x.fit"})
	require.ErrorContains(t, err, "output directory is required")

	_, err = Export(Options{FitPath: "x.fit", OutDir: t.TempDir(), Format: "xlsx"})
	require.ErrorContains(t, err, "unsupported format")
}
