// Package config resolves fitcoach settings from defaults, an optional YAML
// file, an optional .env file, FITCOACH_* environment variables and bound
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lucasjlepore/fit-coach/payload"
	"github.com/lucasjlepore/fit-coach/pipeline"
	"github.com/lucasjlepore/fit-coach/telemetry"
)

// ErrInvalidConfig is returned when a resolved value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix is prepended to every key when reading the environment.
const EnvPrefix = "FITCOACH"

// Keys shared by the config file, the environment and CLI flags.
const (
	KeyFTP                  = "ftp"
	KeyLTHR                 = "lthr"
	KeyAthleteMassKG        = "athlete-mass-kg"
	KeyBikeMassKG           = "bike-mass-kg"
	KeyCrr                  = "crr"
	KeyDrivetrainEfficiency = "drivetrain-efficiency"
	KeyATL                  = "atl"
	KeyCTL                  = "ctl"
	KeyTSB                  = "tsb"
	KeySleepHours           = "sleep-hours"
	KeyRPE                  = "rpe"
	KeyTargetFreqHz         = "target-freq-hz"
	KeyBurstFreqHz          = "burst-freq-hz"
	KeyBurstWindowS         = "burst-window-s"
	KeyDPEpsilonM           = "dp-epsilon-m"
	KeySAXWindow            = "sax-window"
	KeySAXCardinality       = "sax-cardinality"
	KeyMaxSegmentPoints     = "max-segment-points"
	KeyClimbs               = "climbs"
	KeyIntervals            = "intervals"
	KeyAnomalies            = "anomalies"
	KeyWorkers              = "workers"
	KeyFormat               = "format"
	KeyOverwrite            = "overwrite"
	KeyVerbose              = "verbose"
)

// optionalKeys are left nil unless some source actually supplies them.
var optionalKeys = []string{KeyFTP, KeyLTHR, KeyATL, KeyCTL, KeyTSB, KeySleepHours, KeyRPE}

var allKeys = []string{
	KeyFTP, KeyLTHR, KeyAthleteMassKG, KeyBikeMassKG, KeyCrr, KeyDrivetrainEfficiency,
	KeyATL, KeyCTL, KeyTSB, KeySleepHours, KeyRPE,
	KeyTargetFreqHz, KeyBurstFreqHz, KeyBurstWindowS, KeyDPEpsilonM, KeySAXWindow, KeySAXCardinality, KeyMaxSegmentPoints,
	KeyClimbs, KeyIntervals, KeyAnomalies,
	KeyWorkers, KeyFormat, KeyOverwrite, KeyVerbose,
}

// RawInput holds the unvalidated values from every source. Viper unmarshals into it.
type RawInput struct {
	FTP                  *float64 `mapstructure:"ftp"`
	LTHR                 *float64 `mapstructure:"lthr"`
	AthleteMassKG        float64  `mapstructure:"athlete-mass-kg"`
	BikeMassKG           float64  `mapstructure:"bike-mass-kg"`
	Crr                  float64  `mapstructure:"crr"`
	DrivetrainEfficiency float64  `mapstructure:"drivetrain-efficiency"`
	ATL                  *float64 `mapstructure:"atl"`
	CTL                  *float64 `mapstructure:"ctl"`
	TSB                  *float64 `mapstructure:"tsb"`
	SleepHours           *float64 `mapstructure:"sleep-hours"`
	RPE                  *int     `mapstructure:"rpe"`

	TargetFreqHz     float64 `mapstructure:"target-freq-hz"`
	BurstFreqHz      float64 `mapstructure:"burst-freq-hz"`
	BurstWindowS     float64 `mapstructure:"burst-window-s"`
	DPEpsilonM       float64 `mapstructure:"dp-epsilon-m"`
	SAXWindow        int     `mapstructure:"sax-window"`
	SAXCardinality   int     `mapstructure:"sax-cardinality"`
	MaxSegmentPoints int     `mapstructure:"max-segment-points"`

	Climbs    int `mapstructure:"climbs"`
	Intervals int `mapstructure:"intervals"`
	Anomalies int `mapstructure:"anomalies"`

	Workers   int    `mapstructure:"workers"`
	Format    string `mapstructure:"format"`
	Overwrite bool   `mapstructure:"overwrite"`
	Verbose   bool   `mapstructure:"verbose"`
}

// Config is the validated configuration.
type Config struct {
	Athlete   telemetry.AthleteContext
	Sampling  telemetry.SamplingConfig
	Selection telemetry.SelectionPolicy
	Workers   int
	Format    string
	Overwrite bool
	Verbose   bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	athlete := telemetry.DefaultAthleteContext()
	sampling := telemetry.DefaultSamplingConfig()
	selection := telemetry.DefaultSelectionPolicy()

	v.SetDefault(KeyAthleteMassKG, athlete.AthleteMassKG)
	v.SetDefault(KeyBikeMassKG, athlete.BikeMassKG)
	v.SetDefault(KeyCrr, athlete.Crr)
	v.SetDefault(KeyDrivetrainEfficiency, athlete.DrivetrainEfficiency)
	v.SetDefault(KeyTargetFreqHz, sampling.TargetFreqHz)
	v.SetDefault(KeyBurstFreqHz, sampling.BurstFreqHz)
	v.SetDefault(KeyBurstWindowS, sampling.BurstWindowS)
	v.SetDefault(KeyDPEpsilonM, sampling.DouglasPeuckerEpsilonM)
	v.SetDefault(KeySAXWindow, sampling.SAXWindow)
	v.SetDefault(KeySAXCardinality, sampling.SAXCardinality)
	v.SetDefault(KeyMaxSegmentPoints, sampling.MaxSegmentPoints)
	v.SetDefault(KeyClimbs, selection.Climbs)
	v.SetDefault(KeyIntervals, selection.Intervals)
	v.SetDefault(KeyAnomalies, selection.Anomalies)
	v.SetDefault(KeyWorkers, runtime.GOMAXPROCS(0))
	v.SetDefault(KeyFormat, pipeline.FormatParquet)
	v.SetDefault(KeyOverwrite, false)
	v.SetDefault(KeyVerbose, false)
}

// Load reads every source into a RawInput. configFile and envFile may be
// empty: the config file is then searched as .fitcoach.yaml in . and $HOME,
// and the env file defaults to .env. Missing files are not errors.
func Load(v *viper.Viper, configFile, envFile string) (*RawInput, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".fitcoach")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range allKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	input := &RawInput{}
	if err := v.Unmarshal(input); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// Bound flags report their zero defaults through Unmarshal; only keep
	// optional values that a source really set.
	for _, key := range optionalKeys {
		if !v.IsSet(key) {
			input.clear(key)
		}
	}
	return input, nil
}

func (r *RawInput) clear(key string) {
	switch key {
	case KeyFTP:
		r.FTP = nil
	case KeyLTHR:
		r.LTHR = nil
	case KeyATL:
		r.ATL = nil
	case KeyCTL:
		r.CTL = nil
	case KeyTSB:
		r.TSB = nil
	case KeySleepHours:
		r.SleepHours = nil
	case KeyRPE:
		r.RPE = nil
	}
}

// ProcessAndValidate checks input and populates cfg.
func ProcessAndValidate(cfg *Config, input *RawInput) error {
	if input == nil {
		return fmt.Errorf("%w: no input", ErrInvalidConfig)
	}

	if input.AthleteMassKG <= 0 || input.BikeMassKG < 0 {
		return fmt.Errorf("%w: masses must be positive (athlete %v kg, bike %v kg)", ErrInvalidConfig, input.AthleteMassKG, input.BikeMassKG)
	}
	if input.Crr < 0 {
		return fmt.Errorf("%w: crr must be >= 0, got %v", ErrInvalidConfig, input.Crr)
	}
	if input.DrivetrainEfficiency <= 0 || input.DrivetrainEfficiency > 1 {
		return fmt.Errorf("%w: drivetrain efficiency must be in (0, 1], got %v", ErrInvalidConfig, input.DrivetrainEfficiency)
	}
	for name, p := range map[string]*float64{KeyFTP: input.FTP, KeyLTHR: input.LTHR, KeyATL: input.ATL, KeyCTL: input.CTL, KeySleepHours: input.SleepHours} {
		if p != nil && *p < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %v", ErrInvalidConfig, name, *p)
		}
	}
	if input.RPE != nil && (*input.RPE < 1 || *input.RPE > 10) {
		return fmt.Errorf("%w: rpe must be between 1 and 10, got %d", ErrInvalidConfig, *input.RPE)
	}

	sampling := telemetry.SamplingConfig{
		TargetFreqHz:           input.TargetFreqHz,
		BurstFreqHz:            input.BurstFreqHz,
		BurstWindowS:           input.BurstWindowS,
		DouglasPeuckerEpsilonM: input.DPEpsilonM,
		SAXWindow:              input.SAXWindow,
		SAXCardinality:         input.SAXCardinality,
		MaxSegmentPoints:       input.MaxSegmentPoints,
	}
	if err := sampling.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if sampling.DouglasPeuckerEpsilonM < 0 {
		return fmt.Errorf("%w: dp epsilon must be >= 0, got %v", ErrInvalidConfig, sampling.DouglasPeuckerEpsilonM)
	}
	if sampling.SAXWindow < 1 || sampling.SAXCardinality < 2 {
		return fmt.Errorf("%w: sax window must be >= 1 and cardinality >= 2", ErrInvalidConfig)
	}

	if input.Climbs < 0 || input.Intervals < 0 || input.Anomalies < 0 {
		return fmt.Errorf("%w: selection counts must be >= 0", ErrInvalidConfig)
	}
	if input.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, input.Workers)
	}

	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = pipeline.FormatParquet
	}
	if format != pipeline.FormatParquet && format != pipeline.FormatCSV {
		return fmt.Errorf("%w: format must be parquet or csv, got %q", ErrInvalidConfig, input.Format)
	}

	cfg.Athlete = telemetry.AthleteContext{
		FTP:                  input.FTP,
		LTHR:                 input.LTHR,
		AthleteMassKG:        input.AthleteMassKG,
		BikeMassKG:           input.BikeMassKG,
		Crr:                  input.Crr,
		DrivetrainEfficiency: input.DrivetrainEfficiency,
		ATL:                  input.ATL,
		CTL:                  input.CTL,
		TSB:                  input.TSB,
		SleepHours:           input.SleepHours,
		RPE:                  input.RPE,
	}
	cfg.Sampling = sampling
	cfg.Selection = telemetry.SelectionPolicy{Climbs: input.Climbs, Intervals: input.Intervals, Anomalies: input.Anomalies}
	cfg.Workers = input.Workers
	cfg.Format = format
	cfg.Overwrite = input.Overwrite
	cfg.Verbose = input.Verbose
	return nil
}

// PayloadOptions converts cfg into payload build options.
func (c *Config) PayloadOptions(logger *slog.Logger) payload.Options {
	return payload.Options{
		Athlete:   c.Athlete,
		Sampling:  c.Sampling,
		Selection: c.Selection,
		Workers:   c.Workers,
		Logger:    logger,
	}
}

// PipelineOptions converts cfg into pipeline options for one FIT file.
func (c *Config) PipelineOptions(fitPath, outDir string, logger *slog.Logger) pipeline.Options {
	return pipeline.Options{
		FitPath:   fitPath,
		OutDir:    outDir,
		Format:    c.Format,
		Overwrite: c.Overwrite,
		Payload:   c.PayloadOptions(logger),
		Logger:    logger,
	}
}
