package session

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// renderSummary formats the human-readable summary file.
func renderSummary(s Snapshot) string {
	var b strings.Builder
	b.WriteString("PatchScope Experiment Summary\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")
	fmt.Fprintf(&b, "Session ID: %s\n", s.SessionID)
	fmt.Fprintf(&b, "Experiment: %s\n", s.ExperimentName)
	fmt.Fprintf(&b, "Environment: %s\n", s.Environment)
	fmt.Fprintf(&b, "Start Time: %s\n", s.StartTime.Format(time.RFC3339))

	if m := s.ModelInfo; m != nil {
		b.WriteString("\nModel Information:\n")
		fmt.Fprintf(&b, "  Name: %s\n", m.Name)
		fmt.Fprintf(&b, "  Structure: %s\n", orUnknown(m.Structure))
		fmt.Fprintf(&b, "  Layers: %d\n", m.Layers)
		fmt.Fprintf(&b, "  Hidden size: %d\n", m.Hidden)
		fmt.Fprintf(&b, "  Device: %s\n", orUnknown(m.Device))
	}

	st := s.Stats
	b.WriteString("\nExperiment Statistics:\n")
	fmt.Fprintf(&b, "  Total patch attempts: %d\n", st.Results)
	fmt.Fprintf(&b, "  Successful patches: %d\n", st.Applied)
	if st.Results > 0 {
		fmt.Fprintf(&b, "  Success rate: %.1f%%\n", st.SuccessRate())
	}
	if st.Skipped > 0 || st.Rejected > 0 {
		fmt.Fprintf(&b, "  Skipped (no marker): %d\n", st.Skipped)
		fmt.Fprintf(&b, "  Rejected (layer out of range): %d\n", st.Rejected)
	}

	if len(s.Analyses) > 0 {
		b.WriteString("\nAnalysis Results:\n")
		for _, a := range s.Analyses {
			fmt.Fprintf(&b, "  %s (%s):\n", a.SourcePrompt, a.Experiment)
			fmt.Fprintf(&b, "    Strong matches: %d\n", a.Summary.StrongCount)
			fmt.Fprintf(&b, "    Partial matches: %d\n", a.Summary.PartialCount)
		}
	}

	if s.Summary != nil {
		b.WriteString("\nKey Findings:\n")
		keys := make([]string, 0, len(s.Summary.KeyFindings))
		for k := range s.Summary.KeyFindings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, s.Summary.KeyFindings[k])
		}
	}

	if h := s.Reproducibility; h != nil {
		fmt.Fprintf(&b, "\nReproducibility hash (%s): %s\n", h.Algorithm, h.Hash)
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
