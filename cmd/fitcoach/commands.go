package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasjlepore/fit-coach/fitsource"
	"github.com/lucasjlepore/fit-coach/payload"
	"github.com/lucasjlepore/fit-coach/pipeline"
)

var payloadCmd = &cobra.Command{
	Use:   "payload <file.fit>",
	Short: "Write payload.json, training_summary.md and canonical samples for a ride.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := pipeline.Run(cmd.Context(), cfg.PipelineOptions(args[0], v.GetString("out"), logger))
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file.fit>",
	Short: "Write only the canonical sample table for a ride.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		res, err := pipeline.Export(cfg.PipelineOptions(args[0], v.GetString("out"), logger))
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <file.fit>",
	Short: "Print ride metrics and selected segments.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		series, err := fitsource.DecodeFile(args[0])
		if err != nil {
			return err
		}
		doc, err := payload.Build(cmd.Context(), series, cfg.PayloadOptions(logger))
		if err != nil {
			return err
		}
		if v.GetBool("json") {
			raw, err := payload.Marshal(doc)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(raw)
			return err
		}
		if err := printMetrics(os.Stdout, doc); err != nil {
			return err
		}
		if err := printSegments(os.Stdout, doc, cfg.Sampling); err != nil {
			return err
		}
		return printProfile(os.Stdout, series, cfg.Sampling)
	},
}

func printResult(res *pipeline.Result) error {
	ok := successColor.Sprint("done")
	if _, err := fmt.Fprintf(os.Stdout, "%s %d samples -> %s\n", ok, res.Samples, res.OutputDir); err != nil {
		return err
	}
	for _, p := range []string{res.PayloadPath, res.SummaryPath, res.CanonicalSamplesPath} {
		if p == "" {
			continue
		}
		if _, err := fmt.Fprintf(os.Stdout, "  %s\n", p); err != nil {
			return err
		}
	}
	return nil
}
