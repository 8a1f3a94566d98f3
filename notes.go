// Package fitcoach renders a coaching payload as plain-text training notes.
package fitcoach

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lucasjlepore/fit-coach/metrics"
	"github.com/lucasjlepore/fit-coach/payload"
)

// BuildTrainingNotes turns a payload document into a readable training summary.
func BuildTrainingNotes(doc *payload.Document) string {
	if doc == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Session: %s mode (%s)\n", doc.Mode, modalityList(doc.Modalities))
	fmt.Fprintf(&b, "Duration %s", formatDuration(doc.Meta.DurationS))
	if doc.Meta.DistanceKM != nil {
		fmt.Fprintf(&b, " | Distance %.1f km", *doc.Meta.DistanceKM)
	}
	if doc.Meta.ElevGainM != nil {
		fmt.Fprintf(&b, " | Elevation +%.0f m", *doc.Meta.ElevGainM)
	}
	b.WriteByte('\n')

	if p := doc.Physio; p != nil {
		if p.NP != nil {
			fmt.Fprintf(&b, "Power %.0f NP W | Work %.0f kJ | VI %.2f\n", *p.NP, deref(p.KJ), deref(p.VI))
			fmt.Fprintf(&b, "Load IF %.2f | TSS %.0f | FTP %.0f W (%s)\n", deref(p.IF), deref(p.TSS), p.FTP, p.FTPSource)
		} else {
			fmt.Fprintf(&b, "Power recorded but too short for NP | Work %.0f kJ\n", deref(p.KJ))
		}
	}
	if hr := doc.HR; hr != nil {
		fmt.Fprintf(&b, "HR %.0f avg / %.0f max bpm", hr.Avg, hr.Max)
		if hr.DriftPct != nil {
			fmt.Fprintf(&b, " | HR:power drift %+.1f%%", *hr.DriftPct)
		}
		b.WriteByte('\n')
	}
	if c := doc.Cadence; c != nil {
		fmt.Fprintf(&b, "Cadence %.0f avg rpm | %.1f%% below %.0f rpm\n", c.Avg, c.LowRPMPct, metrics.LowCadenceRPM)
	}
	if l := doc.Load; l != nil {
		var parts []string
		if l.TRIMP != nil {
			parts = append(parts, fmt.Sprintf("TRIMP %.0f", *l.TRIMP))
		}
		if l.ATL != nil {
			parts = append(parts, fmt.Sprintf("ATL %.0f", *l.ATL))
		}
		if l.CTL != nil {
			parts = append(parts, fmt.Sprintf("CTL %.0f", *l.CTL))
		}
		if l.TSB != nil {
			parts = append(parts, fmt.Sprintf("TSB %+.0f", *l.TSB))
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, "Training load: %s\n", strings.Join(parts, " | "))
		}
	}
	if t := doc.Terrain; t != nil {
		fmt.Fprintf(&b, "VAM %.0f m/h\n", t.VAMMain)
	}
	if e := doc.Est; e != nil && e.PClimbEstW != nil {
		fmt.Fprintf(&b, "Estimated climbing power %.0f W (%s confidence)\n", *e.PClimbEstW, e.Confidence)
	}
	if ctx := doc.Context; ctx != nil {
		if ctx.SleepH != nil {
			fmt.Fprintf(&b, "Sleep %.1f h\n", *ctx.SleepH)
		}
		if ctx.RPE != nil {
			fmt.Fprintf(&b, "RPE %d/10\n", *ctx.RPE)
		}
	}

	if len(doc.ZonesPct) > 0 {
		label := "Power"
		if doc.Mode == metrics.ModeReduced {
			label = "Heart Rate"
		}
		fmt.Fprintf(&b, "\n%s Zone Distribution\n", label)
		keys := make([]string, 0, len(doc.ZonesPct))
		for k := range doc.ZonesPct {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if doc.ZonesPct[k] <= 0 {
				continue
			}
			fmt.Fprintf(&b, "- %s: %.1f%%\n", strings.ToUpper(k), doc.ZonesPct[k])
		}
	}

	b.WriteString("\nKey Segments\n")
	if len(doc.Segments) == 0 {
		b.WriteString("- No climbs, sustained intervals or HR drift episodes were detected.\n")
	}
	for _, seg := range doc.Segments {
		fmt.Fprintf(&b, "- %s: %s", seg.Name, formatDuration(seg.Stats.DurationS))
		if seg.Stats.ElevGainM != nil {
			fmt.Fprintf(&b, ", +%.0f m", *seg.Stats.ElevGainM)
		}
		if seg.Stats.GradPct != nil && *seg.Stats.GradPct > 0 {
			fmt.Fprintf(&b, " at %.1f%%", *seg.Stats.GradPct)
		}
		if seg.Stats.PAvg != nil {
			fmt.Fprintf(&b, ", %.0f W avg", *seg.Stats.PAvg)
		}
		if seg.Stats.HRAvg != nil {
			fmt.Fprintf(&b, ", %.0f bpm", *seg.Stats.HRAvg)
		}
		b.WriteString(".\n")
	}

	b.WriteString("\nCoaching Notes\n")
	b.WriteString("- ")
	b.WriteString(coachingAssessment(doc))
	b.WriteString("\n- ")
	b.WriteString(nextSessionSuggestion(doc))
	b.WriteByte('\n')

	return strings.TrimSpace(b.String())
}

func coachingAssessment(doc *payload.Document) string {
	intensity := 0.0
	if doc.Physio != nil {
		intensity = deref(doc.Physio.IF)
	}
	drift := 0.0
	if doc.HR != nil {
		drift = deref(doc.HR.DriftPct)
	}
	switch {
	case intensity >= 0.9:
		return "High-intensity load for this duration; prioritize sleep and fueling to absorb the session."
	case drift > 5:
		return "Heart rate climbed relative to power in the second half; aerobic durability or hydration limited this ride."
	case doc.Mode == metrics.ModeReduced:
		return "No power data, so load is judged from heart rate and terrain only."
	default:
		return "Aerobic load appears manageable and supports base development."
	}
}

func nextSessionSuggestion(doc *payload.Document) string {
	if doc.Load != nil && doc.Load.TSB != nil && *doc.Load.TSB < -20 {
		return "Form is deeply negative; schedule an easy Z1-Z2 day before the next quality session."
	}
	if doc.Physio != nil && deref(doc.Physio.IF) >= 1.0 {
		return "Follow with an easier endurance day (Z1-Z2) to consolidate adaptations."
	}
	return "Maintain consistent endurance volume and revisit harder efforts once HR stability improves."
}

func modalityList(m metrics.Modalities) string {
	var present []string
	if m.Power {
		present = append(present, "power")
	}
	if m.HR {
		present = append(present, "hr")
	}
	if m.Cadence {
		present = append(present, "cadence")
	}
	if m.GPS {
		present = append(present, "gps")
	}
	if len(present) == 0 {
		return "no sensors"
	}
	return strings.Join(present, ", ")
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
