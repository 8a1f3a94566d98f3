// Package pipeline runs the end-to-end flow: decode a FIT file, build the
// coaching payload, and write it next to the canonical sample table, the
// plain-text notes and a manifest.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tormoder/fit"

	fitcoach "github.com/lucasjlepore/fit-coach"
	"github.com/lucasjlepore/fit-coach/fitsource"
	"github.com/lucasjlepore/fit-coach/payload"
	"github.com/lucasjlepore/fit-coach/telemetry"
)

// Output file names inside OutDir.
const (
	PayloadFileName  = "payload.json"
	SummaryFileName  = "training_summary.md"
	ManifestFileName = "manifest.json"
	canonicalBase    = "canonical_samples"
)

// ErrOutputNotEmpty is returned when OutDir has files and Overwrite is false.
var ErrOutputNotEmpty = errors.New("output directory is not empty")

// ErrParquetUnsupported is returned when parquet output is requested on a
// platform without a parquet writer (js/wasm).
var ErrParquetUnsupported = errors.New("parquet output is not supported on this platform")

// Run decodes the FIT file and writes payload.json, training_summary.md,
// manifest.json and the canonical sample table.
func Run(ctx context.Context, opts Options) (*Result, error) {
	format, err := validate(opts)
	if err != nil {
		return nil, err
	}
	opts.Format = format
	data, err := os.ReadFile(opts.FitPath)
	if err != nil {
		return nil, fmt.Errorf("read fit file: %w", err)
	}
	series, err := fitsource.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return runToDir(ctx, series, opts, describeSource(opts.FitPath, data))
}

// RunSeries is Run for an already decoded series; FitPath is ignored and the
// manifest carries no source details.
func RunSeries(ctx context.Context, series *telemetry.Series, opts Options) (*Result, error) {
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	opts.Format = format
	return runToDir(ctx, series, opts, SourceInfo{})
}

// RunBytes runs the pipeline on in-memory FIT data and returns every
// artifact keyed by file name. OutDir and Overwrite are ignored.
func RunBytes(ctx context.Context, sourceName string, data []byte, opts Options) (*BytesResult, error) {
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fit data is required")
	}
	opts.Format = format
	series, err := fitsource.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return buildArtifacts(ctx, series, opts, describeSource(sourceName, data))
}

// Export writes only the canonical sample table for the FIT file.
func Export(opts Options) (*Result, error) {
	format, err := validate(opts)
	if err != nil {
		return nil, err
	}
	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}
	series, err := fitsource.DecodeFile(opts.FitPath)
	if err != nil {
		return nil, err
	}
	samples := BuildCanonicalSamples(series)
	path := filepath.Join(opts.OutDir, canonicalFileName(format))
	if err := writeCanonical(path, format, samples); err != nil {
		return nil, fmt.Errorf("write canonical %s: %w", format, err)
	}
	loggerOrDiscard(opts.Logger).Info("canonical samples exported", "path", path, "rows", len(samples))
	return &Result{OutputDir: opts.OutDir, CanonicalSamplesPath: path, Samples: len(samples)}, nil
}

func runToDir(ctx context.Context, series *telemetry.Series, opts Options, source SourceInfo) (*Result, error) {
	logger := loggerOrDiscard(opts.Logger)
	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}
	built, err := buildArtifacts(ctx, series, opts, source)
	if err != nil {
		return nil, err
	}
	for _, name := range built.Manifest.Files {
		path := filepath.Join(opts.OutDir, name)
		if err := os.WriteFile(path, built.Files[name], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		logger.Debug("artifact written", "path", path, "bytes", len(built.Files[name]))
	}
	logger.Info("pipeline complete", "out", opts.OutDir, "segments", len(built.Document.Segments))

	return &Result{
		OutputDir:            opts.OutDir,
		PayloadPath:          filepath.Join(opts.OutDir, PayloadFileName),
		SummaryPath:          filepath.Join(opts.OutDir, SummaryFileName),
		ManifestPath:         filepath.Join(opts.OutDir, ManifestFileName),
		CanonicalSamplesPath: filepath.Join(opts.OutDir, canonicalFileName(opts.Format)),
		Samples:              built.Manifest.Samples,
		Document:             built.Document,
	}, nil
}

func buildArtifacts(ctx context.Context, series *telemetry.Series, opts Options, source SourceInfo) (*BytesResult, error) {
	payloadOpts := opts.Payload
	if payloadOpts.Logger == nil {
		payloadOpts.Logger = loggerOrDiscard(opts.Logger)
	}
	doc, err := payload.Build(ctx, series, payloadOpts)
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte, 4)
	if files[PayloadFileName], err = payload.Marshal(doc); err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	files[SummaryFileName] = []byte(fitcoach.BuildTrainingNotes(doc) + "\n")

	samples := BuildCanonicalSamples(series)
	var canonical bytes.Buffer
	if err := EncodeCanonical(&canonical, opts.Format, samples); err != nil {
		return nil, fmt.Errorf("encode canonical %s: %w", opts.Format, err)
	}
	files[canonicalFileName(opts.Format)] = canonical.Bytes()

	manifest := Manifest{
		FormatVersion: ManifestFormatVersion,
		GeneratedAt:   time.Now().UTC(),
		Source:        source,
		Samples:       len(samples),
		Mode:          string(doc.Mode),
		Segments:      make([]string, 0, len(doc.Segments)),
	}
	for _, seg := range doc.Segments {
		manifest.Segments = append(manifest.Segments, seg.Name)
	}
	for name := range files {
		manifest.Files = append(manifest.Files, name)
	}
	manifest.Files = append(manifest.Files, ManifestFileName)
	sort.Strings(manifest.Files)

	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	files[ManifestFileName] = append(raw, '\n')

	return &BytesResult{Files: files, Document: doc, Manifest: manifest}, nil
}

func describeSource(path string, data []byte) SourceInfo {
	sum := sha256.Sum256(data)
	info := SourceInfo{
		SHA256:    hex.EncodeToString(sum[:]),
		SizeBytes: int64(len(data)),
		FileID:    projectFileID(data),
	}
	if path != "" {
		info.Path = path
		info.Name = filepath.Base(path)
	}
	return info
}

func projectFileID(data []byte) *FileIDInfo {
	_, id, err := fit.DecodeHeaderAndFileID(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	info := &FileIDInfo{
		Type:         fmt.Sprint(id.Type),
		Manufacturer: fmt.Sprint(id.Manufacturer),
		Product:      fmt.Sprint(id.GetProduct()),
		SerialNumber: id.SerialNumber,
	}
	if !id.TimeCreated.IsZero() && !fit.IsBaseTime(id.TimeCreated) {
		info.TimeCreated = id.TimeCreated.UTC().Format(time.RFC3339)
	}
	return info
}

func validate(opts Options) (string, error) {
	if strings.TrimSpace(opts.FitPath) == "" {
		return "", fmt.Errorf("fit path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return "", fmt.Errorf("output directory is required")
	}
	return normalizeFormat(opts.Format)
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatParquet
	}
	if format != FormatParquet && format != FormatCSV {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	return format, nil
}

func canonicalFileName(format string) string {
	return canonicalBase + "." + format
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("%w: %s (set overwrite to allow)", ErrOutputNotEmpty, path)
	}
	return nil
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}

// BuildCanonicalSamples flattens a series into rows; missing readings become nil.
func BuildCanonicalSamples(series *telemetry.Series) []CanonicalSample {
	samples := make([]CanonicalSample, series.Len())
	at := func(c telemetry.Channel, i int) *float64 {
		if c == nil || telemetry.IsMissing(c[i]) {
			return nil
		}
		return floatPtr(c[i])
	}
	for i := range samples {
		s := CanonicalSample{
			RecordIndex: i,
			ElapsedS:    series.TimeS[i],
			PowerW:      at(series.Power, i),
			HRBPM:       at(series.HeartRate, i),
			CadenceRPM:  at(series.Cadence, i),
			SpeedMPS:    at(series.Speed, i),
			DistanceM:   at(series.Distance, i),
			AltitudeM:   at(series.Altitude, i),
			LatDeg:      at(series.Lat, i),
			LonDeg:      at(series.Lon, i),
		}
		s.ValidPower = s.PowerW != nil
		s.ValidHR = s.HRBPM != nil
		s.ValidCadence = s.CadenceRPM != nil
		samples[i] = s
	}
	return samples
}

func writeCanonical(path, format string, samples []CanonicalSample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeCanonical(f, format, samples); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// EncodeCanonical writes samples to w as parquet or CSV.
func EncodeCanonical(w io.Writer, format string, samples []CanonicalSample) error {
	format, err := normalizeFormat(format)
	if err != nil {
		return err
	}
	if format == FormatCSV {
		return encodeCanonicalCSV(w, samples)
	}
	data, err := marshalCanonicalParquet(samples)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func encodeCanonicalCSV(out io.Writer, samples []CanonicalSample) error {
	w := csv.NewWriter(out)
	if err := w.Write(canonicalHeader); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.Itoa(s.RecordIndex),
			formatFloat(s.ElapsedS),
			formatFloatPtr(s.PowerW),
			formatFloatPtr(s.HRBPM),
			formatFloatPtr(s.CadenceRPM),
			formatFloatPtr(s.SpeedMPS),
			formatFloatPtr(s.DistanceM),
			formatFloatPtr(s.AltitudeM),
			formatFloatPtr(s.LatDeg),
			formatFloatPtr(s.LonDeg),
			strconv.FormatBool(s.ValidPower),
			strconv.FormatBool(s.ValidHR),
			strconv.FormatBool(s.ValidCadence),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func floatPtr(v float64) *float64 {
	out := v
	return &out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
