package analysis

import (
	"unicode/utf8"

	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

// EntityResults are the results produced for one source entity. Label
// names the group when it is not the entity itself, e.g. a template
// category.
type EntityResults struct {
	Entity  string               `json:"entity"`
	Label   string               `json:"label,omitempty"`
	Results []*patchscope.Result `json:"results"`
}

// Comparison summarizes one entity of a multi-prompt experiment.
type Comparison struct {
	Entity     string     `json:"entity"`
	Label      string     `json:"label"`
	Strong     int        `json:"strong_match_count"`
	Successful int        `json:"successful_patches"`
	StrongRate float64    `json:"strong_rate_percent"`
	BestPair   *PairCount `json:"best_pair,omitempty"`
}

// Compare analyzes each entity's results independently, in input order.
// StrongRate is strong over max(successful, 1), as a percentage.
func (z *Analyzer) Compare(groups []EntityResults) []Comparison {
	out := make([]Comparison, 0, len(groups))
	for _, g := range groups {
		a := z.Analyze(g.Results, g.Entity)
		label := g.Label
		if label == "" {
			label = g.Entity
		}
		c := Comparison{
			Entity:     g.Entity,
			Label:      label,
			Strong:     a.Summary.StrongCount,
			Successful: a.Summary.SuccessfulPatches,
			StrongRate: float64(a.Summary.StrongCount) / float64(max(a.Summary.SuccessfulPatches, 1)) * 100,
		}
		if best, ok := FindHotspots(a).BestPair(); ok {
			c.BestPair = &best
		}
		out = append(out, c)
	}
	return out
}

// Insights are the headline findings of a study.
type Insights struct {
	// BestResult is the strong match with the longest continuation.
	BestResult *patchscope.Result `json:"best_result,omitempty"`
	// MostConsistent is the pair with the most strong matches.
	MostConsistent *PairCount `json:"most_consistent_pair,omitempty"`
}

// FindInsights picks the headline findings from an analysis and its
// hotspots. Ties on length keep the earliest result.
func FindInsights(a *Analysis, h *Hotspots) Insights {
	var in Insights
	if a != nil {
		for _, r := range a.Strong {
			if in.BestResult == nil || utf8.RuneCountInString(r.NewTokens) > utf8.RuneCountInString(in.BestResult.NewTokens) {
				in.BestResult = r
			}
		}
	}
	if best, ok := h.BestPair(); ok {
		in.MostConsistent = &best
	}
	return in
}
