package analysis

import (
	"fmt"
	"io"
	"strings"

	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

// weakShown limits the weak matches listed by WriteSummary.
const weakShown = 5

// Truncate shortens s to maxLen runes, appending "..." when cut. A
// non-positive maxLen disables truncation.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// ResultLine formats a result as "E xx→I yy: text".
func ResultLine(r *patchscope.Result, maxLen int) string {
	return fmt.Sprintf("E%2d→I%2d: %s", r.ExtractLayer, r.InjectLayer, Truncate(r.NewTokens, maxLen))
}

// WriteSummary prints the bucketed results of a.
func WriteSummary(w io.Writer, a *Analysis, maxLen int) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nANALYSIS: Knowledge of '%s'\n%s\n", rule, a.Entity, rule)
	if a.Empty() {
		fmt.Fprintln(w, "No results to analyze")
		return
	}
	s := a.Summary
	fmt.Fprintf(w, "Total experiments: %d\n", s.TotalExperiments)
	fmt.Fprintf(w, "Successful patches: %d\n", s.SuccessfulPatches)
	fmt.Fprintf(w, "Expected keywords: %s\n", strings.Join(s.ExpectedKeywords, ", "))

	fmt.Fprintf(w, "\nSTRONG MATCHES (%d results):\n", len(a.Strong))
	for _, r := range a.Strong {
		fmt.Fprintf(w, "  %s\n", ResultLine(r, maxLen))
	}
	fmt.Fprintf(w, "\nPARTIAL MATCHES (%d results):\n", len(a.Partial))
	for _, r := range a.Partial {
		fmt.Fprintf(w, "  %s\n", ResultLine(r, maxLen))
	}
	if len(a.Weak) > 0 {
		fmt.Fprintf(w, "\nWEAK/UNCLEAR MATCHES (%d results):\n", len(a.Weak))
		for _, r := range a.Weak[:min(weakShown, len(a.Weak))] {
			fmt.Fprintf(w, "  %s\n", ResultLine(r, maxLen))
		}
		if len(a.Weak) > weakShown {
			fmt.Fprintf(w, "   ... and %d more\n", len(a.Weak)-weakShown)
		}
	}
	if len(a.Failed) > 0 {
		fmt.Fprintf(w, "\nFAILED PATCHES: %d\n", len(a.Failed))
	}
}

// WriteHotspots prints a hotspot ranking.
func WriteHotspots(w io.Writer, h *Hotspots) {
	fmt.Fprintf(w, "\nKNOWLEDGE HOTSPOT ANALYSIS\n%s\n", strings.Repeat("=", 40))
	if h.Empty {
		fmt.Fprintln(w, h.Message)
		return
	}
	fmt.Fprintln(w, "Best extraction layers:")
	for _, lc := range h.BestExtract {
		fmt.Fprintf(w, "   Layer %2d: %d strong matches\n", lc.Layer, lc.Count)
	}
	fmt.Fprintln(w, "\nBest injection layers:")
	for _, lc := range h.BestInject {
		fmt.Fprintf(w, "   Layer %2d: %d strong matches\n", lc.Layer, lc.Count)
	}
	fmt.Fprintln(w, "\nTop layer pairs:")
	for _, pc := range h.BestPairs {
		fmt.Fprintf(w, "   E%2d→I%2d: %d strong matches\n", pc.Pair.Extract, pc.Pair.Inject, pc.Count)
	}
	if h.ExtractRange != nil && h.InjectRange != nil {
		fmt.Fprintln(w, "\nLayer ranges:")
		fmt.Fprintf(w, "   Extraction: %d to %d\n", h.ExtractRange.Min, h.ExtractRange.Max)
		fmt.Fprintf(w, "   Injection: %d to %d\n", h.InjectRange.Min, h.InjectRange.Max)
	}
}

// WriteComparison prints a cross-entity comparison.
func WriteComparison(w io.Writer, cs []Comparison) {
	fmt.Fprintf(w, "\nCROSS-PROMPT COMPARISON\n%s\n", strings.Repeat("=", 50))
	for _, c := range cs {
		label := c.Label
		if label == "" {
			label = c.Entity
		}
		fmt.Fprintf(w, "\n%s:\n", label)
		fmt.Fprintf(w, "  Strong matches: %d/%d (%.1f%%)\n", c.Strong, c.Successful, c.StrongRate)
		if c.BestPair != nil {
			fmt.Fprintf(w, "  Best pair: E%d→I%d (%d matches)\n",
				c.BestPair.Pair.Extract, c.BestPair.Pair.Inject, c.BestPair.Count)
		}
	}
}

// WriteInsights prints the headline findings.
func WriteInsights(w io.Writer, in Insights) {
	fmt.Fprintln(w, "Key insights:")
	if in.BestResult == nil && in.MostConsistent == nil {
		fmt.Fprintln(w, "- No strong matches found")
		return
	}
	if r := in.BestResult; r != nil {
		fmt.Fprintf(w, "- Best single result: E%d→I%d: '%s'\n", r.ExtractLayer, r.InjectLayer, r.NewTokens)
	}
	if p := in.MostConsistent; p != nil {
		fmt.Fprintf(w, "- Most consistent layer pair: E%d→I%d (%d successes)\n", p.Pair.Extract, p.Pair.Inject, p.Count)
	}
}
