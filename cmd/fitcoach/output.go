package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/lucasjlepore/fit-coach/metrics"
	"github.com/lucasjlepore/fit-coach/payload"
	"github.com/lucasjlepore/fit-coach/sampling"
	"github.com/lucasjlepore/fit-coach/telemetry"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	fullColor    = color.New(color.FgCyan, color.Bold)
	reducedColor = color.New(color.FgYellow)
)

const missing = "-"

func fmtPtr(v *float64, prec int) string {
	if v == nil {
		return missing
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func fmtFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func modeLabel(m metrics.Mode) string {
	if m == metrics.ModeFull {
		return fullColor.Sprint(string(m))
	}
	return reducedColor.Sprint(string(m))
}

func renderTable(w io.Writer, headers []string, data [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// printMetrics renders the aggregate metrics and zone distribution.
func printMetrics(w io.Writer, doc *payload.Document) error {
	if _, err := fmt.Fprintf(w, "Mode: %s\n", modeLabel(doc.Mode)); err != nil {
		return err
	}

	rows := [][]string{
		{"Duration (s)", fmtFloat(doc.Meta.DurationS, 0)},
		{"Distance (km)", fmtPtr(doc.Meta.DistanceKM, 2)},
		{"Elevation gain (m)", fmtPtr(doc.Meta.ElevGainM, 0)},
	}
	if p := doc.Physio; p != nil {
		rows = append(rows,
			[]string{"FTP (W)", fmt.Sprintf("%s (%s)", fmtFloat(p.FTP, 0), p.FTPSource)},
			[]string{"NP (W)", fmtPtr(p.NP, 1)},
			[]string{"IF", fmtPtr(p.IF, 3)},
			[]string{"TSS", fmtPtr(p.TSS, 1)},
			[]string{"Work (kJ)", fmtPtr(p.KJ, 1)},
			[]string{"VI", fmtPtr(p.VI, 3)},
		)
	}
	if hr := doc.HR; hr != nil {
		rows = append(rows,
			[]string{"HR avg/max (bpm)", fmt.Sprintf("%s / %s", fmtFloat(hr.Avg, 0), fmtFloat(hr.Max, 0))},
			[]string{"HR drift (%)", fmtPtr(hr.DriftPct, 2)},
		)
	}
	if c := doc.Cadence; c != nil {
		rows = append(rows,
			[]string{"Cadence avg (rpm)", fmtFloat(c.Avg, 1)},
			[]string{"Cadence stdev", fmtPtr(c.StdDev, 1)},
			[]string{"Low cadence (%)", fmtFloat(c.LowRPMPct, 1)},
		)
	}
	if l := doc.Load; l != nil {
		rows = append(rows,
			[]string{"TRIMP", fmtPtr(l.TRIMP, 1)},
			[]string{"ATL / CTL / TSB", fmt.Sprintf("%s / %s / %s", fmtPtr(l.ATL, 1), fmtPtr(l.CTL, 1), fmtPtr(l.TSB, 1))},
		)
	}
	if t := doc.Terrain; t != nil {
		rows = append(rows, []string{"VAM (m/h)", fmtFloat(t.VAMMain, 0)})
	}
	if e := doc.Est; e != nil {
		rows = append(rows, []string{"Est. climb power (W)", fmt.Sprintf("%s (%s)", fmtPtr(e.PClimbEstW, 0), e.Confidence)})
	}
	if err := renderTable(w, []string{"Metric", "Value"}, rows); err != nil {
		return err
	}

	if len(doc.ZonesPct) == 0 {
		return nil
	}
	keys := make([]string, 0, len(doc.ZonesPct))
	for k := range doc.ZonesPct {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	zones := make([][]string, 0, len(keys))
	for _, k := range keys {
		zones = append(zones, []string{strings.ToUpper(k), fmtFloat(doc.ZonesPct[k], 1)})
	}
	return renderTable(w, []string{"Zone", "Time (%)"}, zones)
}

// printSegments renders one row per selected segment, including the number
// of compressed points and a SAX sketch of the segment's power or HR.
func printSegments(w io.Writer, doc *payload.Document, cfg telemetry.SamplingConfig) error {
	if len(doc.Segments) == 0 {
		_, err := fmt.Fprintln(w, "No segments selected.")
		return err
	}
	data := make([][]string, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		points := 0
		if seg.Series != nil {
			points = len(seg.Series.T)
		}
		data = append(data, []string{
			seg.Name,
			fmtFloat(seg.Stats.DurationS, 0),
			fmtPtr(seg.Stats.LenKM, 2),
			fmtPtr(seg.Stats.ElevGainM, 0),
			fmtPtr(seg.Stats.GradPct, 1),
			fmtPtr(seg.Stats.PAvg, 0),
			fmtPtr(seg.Stats.HRAvg, 0),
			strconv.Itoa(points),
			shapeSketch(seg.Series, cfg),
		})
	}
	return renderTable(w, []string{"Segment", "Dur (s)", "Km", "Gain (m)", "Grad (%)", "P avg", "HR avg", "Points", "Shape"}, data)
}

func shapeSketch(s *sampling.SerializedSegment, cfg telemetry.SamplingConfig) string {
	if s == nil {
		return missing
	}
	var values []float64
	for _, key := range []string{sampling.KeyPower, sampling.KeyHeartRate} {
		for _, c := range s.Channels {
			if c.Key == key {
				values = c.Values
				break
			}
		}
		if values != nil {
			break
		}
	}
	// Compressed rows are already at the target rate; scale the window to match.
	window := max(cfg.SAXWindow/max(s.DtS, 1), 1)
	symbols := sampling.SAXEncode(values, window, cfg.SAXCardinality)
	if len(symbols) == 0 {
		return missing
	}
	parts := make([]string, len(symbols))
	for i, sym := range symbols {
		parts[i] = fmtFloat(sym, 0)
	}
	return strings.Join(parts, " ")
}

// printProfile reports how far the elevation profile simplifies.
func printProfile(w io.Writer, series *telemetry.Series, cfg telemetry.SamplingConfig) error {
	if series.Distance == nil || series.Altitude == nil {
		return nil
	}
	points := sampling.SimplifyProfile(series.Distance, series.Altitude.FillForwardBackward(), cfg.DouglasPeuckerEpsilonM)
	_, err := fmt.Fprintf(w, "Elevation profile: %d of %d points kept at %.1f m tolerance\n", len(points), series.Len(), cfg.DouglasPeuckerEpsilonM)
	return err
}
