// Package analysis classifies patching results by keyword evidence and
// aggregates the layers that most often produce strong matches.
package analysis

import (
	"strings"

	"github.com/r3d91ll/patchscope/pkg/config"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

// Bucket is the classification of one result.
type Bucket string

const (
	BucketStrong  Bucket = "strong"
	BucketPartial Bucket = "partial"
	BucketWeak    Bucket = "weak"
	BucketFailed  Bucket = "failed"
)

// Thresholds are the minimum keyword counts for strong and partial matches.
type Thresholds struct {
	Strong  int
	Partial int
}

// DefaultThresholds match two keywords for strong and one for partial.
var DefaultThresholds = Thresholds{Strong: 2, Partial: 1}

// Summary holds the counts of one analysis.
type Summary struct {
	TotalExperiments  int      `json:"total_experiments"`
	SuccessfulPatches int      `json:"successful_patches"`
	StrongCount       int      `json:"strong_match_count"`
	PartialCount      int      `json:"partial_match_count"`
	WeakCount         int      `json:"weak_match_count"`
	FailedCount       int      `json:"failed_patch_count"`
	ExpectedKeywords  []string `json:"expected_keywords"`
}

// Analysis is the bucketed view of a result collection.
type Analysis struct {
	Entity  string               `json:"entity"`
	Strong  []*patchscope.Result `json:"strong_matches"`
	Partial []*patchscope.Result `json:"partial_matches"`
	Weak    []*patchscope.Result `json:"weak_matches"`
	Failed  []*patchscope.Result `json:"failed_patches"`
	Summary Summary              `json:"summary"`
}

// Empty reports whether the analysis covered no results.
func (a *Analysis) Empty() bool { return a.Summary.TotalExperiments == 0 }

// MatchCount returns how many keywords occur in text, ignoring case.
func MatchCount(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

// Classify buckets a single result.
func Classify(r *patchscope.Result, keywords []string, th Thresholds) Bucket {
	if !r.PatchApplied {
		return BucketFailed
	}
	switch n := MatchCount(r.NewTokens, keywords); {
	case n >= th.Strong:
		return BucketStrong
	case n >= th.Partial:
		return BucketPartial
	default:
		return BucketWeak
	}
}

// Analyze buckets every result. Input order is preserved within buckets and
// results are not modified.
func Analyze(results []*patchscope.Result, entity string, keywords []string, th Thresholds) *Analysis {
	a := &Analysis{Entity: entity}
	for _, r := range results {
		switch Classify(r, keywords, th) {
		case BucketStrong:
			a.Strong = append(a.Strong, r)
		case BucketPartial:
			a.Partial = append(a.Partial, r)
		case BucketWeak:
			a.Weak = append(a.Weak, r)
		case BucketFailed:
			a.Failed = append(a.Failed, r)
		}
	}
	a.Summary = Summary{
		TotalExperiments:  len(results),
		SuccessfulPatches: len(results) - len(a.Failed),
		StrongCount:       len(a.Strong),
		PartialCount:      len(a.Partial),
		WeakCount:         len(a.Weak),
		FailedCount:       len(a.Failed),
		ExpectedKeywords:  append([]string(nil), keywords...),
	}
	return a
}

// Analyzer binds keyword lookup and thresholds from configuration.
type Analyzer struct {
	cfg *config.Config
	th  Thresholds
}

// NewAnalyzer returns an Analyzer for cfg.
func NewAnalyzer(cfg *config.Config) *Analyzer {
	return &Analyzer{
		cfg: cfg,
		th: Thresholds{
			Strong:  cfg.Analysis.StrongThreshold,
			Partial: cfg.Analysis.PartialThreshold,
		},
	}
}

// Thresholds returns the configured thresholds.
func (z *Analyzer) Thresholds() Thresholds { return z.th }

// Keywords returns the expected keywords for entity.
func (z *Analyzer) Keywords(entity string) []string {
	return append([]string(nil), z.cfg.Keywords(entity)...)
}

// Analyze classifies results produced for entity.
func (z *Analyzer) Analyze(results []*patchscope.Result, entity string) *Analysis {
	return Analyze(results, entity, z.Keywords(entity), z.th)
}
