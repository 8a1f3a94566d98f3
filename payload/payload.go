// Package payload assembles the coaching document: aggregate metrics, the
// athlete context pass-through, and the selected segments with their
// compressed series.
package payload

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/lucasjlepore/fit-coach/metrics"
	"github.com/lucasjlepore/fit-coach/sampling"
	"github.com/lucasjlepore/fit-coach/segments"
	"github.com/lucasjlepore/fit-coach/telemetry"
)

// Document is the structured input handed to the LLM client. Optional
// blocks are omitted from JSON when their source data is absent.
type Document struct {
	Mode       metrics.Mode                `json:"mode"`
	Meta       metrics.Meta                `json:"meta"`
	Modalities metrics.Modalities          `json:"modalities"`
	Physio     *metrics.Physio             `json:"physio,omitempty"`
	HR         *metrics.HeartRate          `json:"hr,omitempty"`
	Cadence    *metrics.Cadence            `json:"cadence,omitempty"`
	ZonesPct   map[string]float64          `json:"zones_pct,omitempty"`
	Load       *metrics.Load               `json:"load,omitempty"`
	Terrain    *metrics.Terrain            `json:"terrain,omitempty"`
	Est        *metrics.ClimbPowerEstimate `json:"est,omitempty"`
	Context    *Context                    `json:"context,omitempty"`
	Segments   []Segment                   `json:"segments"`
}

// Context carries subjective athlete inputs through unchanged.
type Context struct {
	SleepH *float64 `json:"sleep_h,omitempty"`
	RPE    *int     `json:"rpe,omitempty"`
}

// Segment is one selected segment with its stats and compressed series.
type Segment struct {
	Name   string                      `json:"name"`
	Stats  segments.Stats              `json:"stats"`
	Series *sampling.SerializedSegment `json:"series"`
}

// Options configures Build. Start from DefaultOptions and override fields.
type Options struct {
	Athlete   telemetry.AthleteContext
	Sampling  telemetry.SamplingConfig
	Selection telemetry.SelectionPolicy
	// Workers bounds concurrent segment compression; <= 0 uses GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// DefaultOptions returns the defaults for every option.
func DefaultOptions() Options {
	return Options{
		Athlete:   telemetry.DefaultAthleteContext(),
		Sampling:  telemetry.DefaultSamplingConfig(),
		Selection: telemetry.DefaultSelectionPolicy(),
	}
}

// Build computes metrics, detects and selects segments, and compresses each
// selected segment. Segments are compressed concurrently; each writes only
// its own slot, so the output order follows selection order. Any error
// aborts the whole document.
func Build(ctx context.Context, series *telemetry.Series, opts Options) (*Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := opts.Sampling.Validate(); err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	m, err := metrics.ComputeCoreMetrics(series, opts.Athlete)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	intervalFTP, _ := opts.Athlete.ConfiguredFTP()
	selected, err := segments.Detect(series, intervalFTP, opts.Selection)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	logger.Debug("segments selected", "count", len(selected), "mode", m.Mode)

	compressed, err := compressSegments(ctx, series, selected, opts)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	doc := &Document{
		Mode:       m.Mode,
		Meta:       m.Meta,
		Modalities: m.Modalities,
		Physio:     m.Physio,
		HR:         m.HR,
		Cadence:    m.Cadence,
		ZonesPct:   m.ZonesPct,
		Load:       m.Load,
		Terrain:    m.Terrain,
		Est:        m.Estimates,
		Context:    contextBlock(opts.Athlete),
		Segments:   compressed,
	}
	logger.Info("payload built", "mode", doc.Mode, "segments", len(doc.Segments), "duration_s", doc.Meta.DurationS)
	return doc, nil
}

func compressSegments(ctx context.Context, series *telemetry.Series, selected []segments.Segment, opts Options) ([]Segment, error) {
	out := make([]Segment, len(selected))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seg := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tab := sampling.TableFromSeries(seg.Extract(series))
			serialized, err := sampling.SerializeSegment(tab, opts.Sampling)
			if err != nil {
				return fmt.Errorf("compress %s: %w", seg.Name, err)
			}
			out[i] = Segment{Name: seg.Name, Stats: seg.Stats, Series: serialized}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func contextBlock(a telemetry.AthleteContext) *Context {
	if a.SleepHours == nil && a.RPE == nil {
		return nil
	}
	return &Context{SleepH: a.SleepHours, RPE: a.RPE}
}

// Marshal renders the document as indented JSON with a trailing newline.
func Marshal(doc *Document) ([]byte, error) {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
