package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lucasjlepore/fit-coach/config"
)

// Set by the linker at release time.
var version = "dev"

var (
	v      = viper.New()
	cfg    = &config.Config{}
	logger = slog.New(slog.DiscardHandler)
)

var rootCmd = &cobra.Command{
	Use:           "fitcoach",
	Short:         "Turn a cycling FIT file into a compact coaching payload.",
	Long:          `fitcoach computes ride metrics, picks the climbs, intervals and HR drift episodes worth discussing, and compresses them into a payload for an LLM coach.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// sharedSetup resolves configuration for every subcommand.
func sharedSetup(_ *cobra.Command, _ []string) error {
	input, err := config.Load(v, v.GetString("config"), v.GetString("env-file"))
	if err != nil {
		return err
	}
	if err := config.ProcessAndValidate(cfg, input); err != nil {
		return err
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config file (default .fitcoach.yaml in . or $HOME)")
	pf.String("env-file", "", "Path to .env file (default .env)")
	pf.Float64(config.KeyFTP, 0, "Functional threshold power in watts")
	pf.Float64(config.KeyLTHR, 0, "Lactate threshold heart rate in bpm")
	pf.Float64(config.KeyAthleteMassKG, 0, "Rider mass in kg")
	pf.Float64(config.KeyBikeMassKG, 0, "Bike mass in kg")
	pf.Float64(config.KeyCrr, 0, "Rolling resistance coefficient")
	pf.Float64(config.KeyDrivetrainEfficiency, 0, "Drivetrain efficiency (0-1]")
	pf.Float64(config.KeyATL, 0, "Acute training load before this ride")
	pf.Float64(config.KeyCTL, 0, "Chronic training load before this ride")
	pf.Float64(config.KeyTSB, 0, "Training stress balance override")
	pf.Float64(config.KeySleepHours, 0, "Hours slept the night before")
	pf.Int(config.KeyRPE, 0, "Session RPE 1-10")
	pf.Float64(config.KeyTargetFreqHz, 0, "Uniform segment sampling frequency in Hz")
	pf.Float64(config.KeyBurstFreqHz, 0, "Sampling frequency inside burst windows in Hz")
	pf.Float64(config.KeyBurstWindowS, 0, "Burst window length in seconds")
	pf.Int(config.KeyMaxSegmentPoints, 0, "Maximum points per segment series")
	pf.Int(config.KeyClimbs, 0, "Number of climbs to keep")
	pf.Int(config.KeyIntervals, 0, "Number of intervals to keep")
	pf.Int(config.KeyAnomalies, 0, "Number of HR drift episodes to keep")
	pf.Int(config.KeyWorkers, 0, "Concurrent segment compressors (default GOMAXPROCS)")
	pf.BoolP(config.KeyVerbose, "v", false, "Debug logging")
	if err := v.BindPFlags(pf); err != nil {
		panic(fmt.Errorf("failed to bind root flags: %w", err))
	}

	for _, c := range []*cobra.Command{payloadCmd, exportCmd} {
		c.Flags().String("out", "", "Output directory")
		c.Flags().String(config.KeyFormat, "parquet", "Canonical sample format: parquet or csv")
		c.Flags().Bool(config.KeyOverwrite, false, "Allow writing into a non-empty directory")
	}
	metricsCmd.Flags().Bool("json", false, "Print the payload JSON instead of tables")

	for _, c := range []*cobra.Command{payloadCmd, metricsCmd, exportCmd} {
		c.PreRunE = func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return sharedSetup(cmd, args)
		}
		rootCmd.AddCommand(c)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		_, _ = color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
