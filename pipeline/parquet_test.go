//go:build !js

package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fit-coach/payload"
)

func TestRunFromFITFile(t *testing.T) {
	dir := t.TempDir()
	fitPath := writeTestFIT(t, dir, 90)
	out := filepath.Join(dir, "out")

	res, err := Run(context.Background(), Options{FitPath: fitPath, OutDir: out, Payload: payload.DefaultOptions()})
	require.NoError(t, err)
	assert.Equal(t, 90, res.Samples)
	assert.FileExists(t, res.PayloadPath)
	assert.FileExists(t, res.SummaryPath)

	fitData, err := os.ReadFile(fitPath)
	require.NoError(t, err)
	sum := sha256.Sum256(fitData)

	rawManifest, err := os.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(rawManifest, &manifest))
	assert.Equal(t, ManifestFormatVersion, manifest.FormatVersion)
	assert.Equal(t, hex.EncodeToString(sum[:]), manifest.Source.SHA256)
	assert.Equal(t, int64(len(fitData)), manifest.Source.SizeBytes)
	assert.Equal(t, "ride.fit", manifest.Source.Name)
	assert.NotNil(t, manifest.Source.FileID)
	assert.Equal(t, 90, manifest.Samples)
	assert.Equal(t, []string{"canonical_samples.parquet", "manifest.json", "payload.json", "training_summary.md"}, manifest.Files)

	data, err := os.ReadFile(res.CanonicalSamplesPath)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

func TestEncodeCanonicalParquet(t *testing.T) {
	samples := BuildCanonicalSamples(rampRide(10))
	require.Len(t, samples, 10)
	assert.Nil(t, samples[3].PowerW)
	assert.False(t, samples[3].ValidPower)
	assert.True(t, samples[2].ValidHR)

	var buf bytes.Buffer
	require.NoError(t, EncodeCanonical(&buf, FormatParquet, samples))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PAR1")))
}

func TestCanonicalParquetRowMarksMissingAsNaN(t *testing.T) {
	samples := BuildCanonicalSamples(rampRide(5))

	row := samples[3].parquetRow()
	assert.Equal(t, int64(3), row.RecordIndex)
	assert.True(t, math.IsNaN(row.PowerW))
	assert.False(t, row.ValidPower)
	assert.True(t, math.IsNaN(row.CadenceRPM), "absent channel")
	assert.Equal(t, 140.0, row.HRBPM)
	assert.True(t, row.ValidHR)
}
