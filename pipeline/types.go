package pipeline

import (
	"log/slog"
	"time"

	"github.com/lucasjlepore/fit-coach/payload"
)

// ManifestFormatVersion identifies the manifest.json schema.
const ManifestFormatVersion = "fitcoach_payload_v1"

// Canonical sample formats.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// Options configures the fitcoach pipeline.
type Options struct {
	FitPath   string
	OutDir    string
	Format    string // parquet|csv
	Overwrite bool
	Payload   payload.Options
	Logger    *slog.Logger
}

// Result returns generated output paths and the assembled document.
type Result struct {
	OutputDir            string            `json:"output_dir"`
	PayloadPath          string            `json:"payload_path,omitempty"`
	SummaryPath          string            `json:"summary_path,omitempty"`
	ManifestPath         string            `json:"manifest_path,omitempty"`
	CanonicalSamplesPath string            `json:"canonical_samples_path"`
	Samples              int               `json:"samples"`
	Document             *payload.Document `json:"-"`
}

// BytesResult holds in-memory artifacts keyed by file name.
type BytesResult struct {
	Files    map[string][]byte
	Document *payload.Document
	Manifest Manifest
}

// Manifest describes one run and lists the files it produced.
type Manifest struct {
	FormatVersion string     `json:"format_version"`
	GeneratedAt   time.Time  `json:"generated_at"`
	Source        SourceInfo `json:"source"`
	Samples       int        `json:"samples"`
	Mode          string     `json:"mode"`
	Segments      []string   `json:"segments"`
	Files         []string   `json:"files"`
}

// SourceInfo identifies the FIT file a run was built from.
type SourceInfo struct {
	Path      string      `json:"source_file,omitempty"`
	Name      string      `json:"source_file_name,omitempty"`
	SHA256    string      `json:"source_sha256,omitempty"`
	SizeBytes int64       `json:"source_size_bytes,omitempty"`
	FileID    *FileIDInfo `json:"file_id,omitempty"`
}

// FileIDInfo is a convenience projection from the file_id message.
type FileIDInfo struct {
	Type         string `json:"type"`
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`
	SerialNumber uint32 `json:"serial_number"`
	TimeCreated  string `json:"time_created,omitempty"`
}

// CanonicalSample is one row of the decoded telemetry table.
type CanonicalSample struct {
	RecordIndex  int      `json:"record_index"`
	ElapsedS     float64  `json:"elapsed_s"`
	PowerW       *float64 `json:"power_w,omitempty"`
	HRBPM        *float64 `json:"hr_bpm,omitempty"`
	CadenceRPM   *float64 `json:"cadence_rpm,omitempty"`
	SpeedMPS     *float64 `json:"speed_mps,omitempty"`
	DistanceM    *float64 `json:"distance_m,omitempty"`
	AltitudeM    *float64 `json:"altitude_m,omitempty"`
	LatDeg       *float64 `json:"lat_deg,omitempty"`
	LonDeg       *float64 `json:"lon_deg,omitempty"`
	ValidPower   bool     `json:"valid_power"`
	ValidHR      bool     `json:"valid_hr"`
	ValidCadence bool     `json:"valid_cadence"`
}

var canonicalHeader = []string{
	"record_index", "elapsed_s", "power_w", "hr_bpm", "cadence_rpm", "speed_mps", "distance_m", "altitude_m", "lat_deg", "lon_deg",
	"valid_power", "valid_hr", "valid_cadence",
}
