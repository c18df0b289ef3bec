package experiment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/r3d91ll/patchscope/pkg/analysis"
	"github.com/r3d91ll/patchscope/pkg/config"
	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
	"github.com/r3d91ll/patchscope/pkg/sweep"
)

// Experiment mode names.
const (
	ModeQuick         = "quick"
	ModeTargeted      = "targeted"
	ModeSweep         = "sweep"
	ModeMulti         = "multi"
	ModeTemplate      = "patchscope"
	ModeTemplates     = "templates"
	ModeComprehensive = "comprehensive"
)

// Modes lists every mode in CLI order.
var Modes = []string{ModeQuick, ModeTargeted, ModeSweep, ModeComprehensive, ModeMulti, ModeTemplate, ModeTemplates}

// MultiRun is the outcome of a multi-entity or multi-template experiment.
type MultiRun struct {
	Name        string                `json:"name"`
	Target      string                `json:"target,omitempty"`
	Runs        []*Run                `json:"runs"`
	Comparisons []analysis.Comparison `json:"comparisons"`
}

// Results returns every result of every run, in run order.
func (m *MultiRun) Results() []*patchscope.Result {
	var out []*patchscope.Result
	for _, r := range m.Runs {
		out = append(out, r.Results...)
	}
	return out
}

// Study is the outcome of the comprehensive study.
type Study struct {
	Targeted *Run `json:"targeted"`
	// Sweep is nil when the targeted phase found no strong match.
	Sweep    *Run              `json:"sweep,omitempty"`
	Multi    *MultiRun         `json:"multi"`
	Insights analysis.Insights `json:"insights"`
}

// -----------------------------------------------------------------------------
// Single-target modes
// -----------------------------------------------------------------------------

// Quick patches the fixed quick-test pairs on the standard target.
func (r *Runner) Quick(ctx context.Context, entity string) (*Run, error) {
	entity = orDefault(entity, DefaultEntity)
	target := r.cfg.StandardTarget()
	started := r.begin(ModeQuick, entity, target)

	fmt.Fprintf(r.out, "\nQUICK FUNCTIONALITY TEST\n%s\n", strings.Repeat("=", 30))
	fmt.Fprintf(r.out, "Testing: '%s' → '%s'\n", entity, analysis.Truncate(target, 50))

	run, err := r.Execute(ctx, ModeQuick, entity, requests(entity, target, sweep.Quick(r.cfg.Layers), nil))
	for _, res := range run.Results {
		fmt.Fprintf(r.out, "  %s\n", analysis.ResultLine(res, r.cfg.Analysis.OutputMaxLength))
	}
	applied := run.Applied()
	fmt.Fprintf(r.out, "\nQuick Test Summary:\n  Success rate: %d/%d (%.1f%%)\n",
		applied, run.Planned, percent(applied, run.Planned))

	r.finish(ModeQuick, started, map[string]any{
		"success_rate":       fmt.Sprintf("%d/%d", applied, run.Planned),
		"successful_patches": applied,
	})
	return run, err
}

// Targeted patches every (extract, inject) pair of a layer subset.
func (r *Runner) Targeted(ctx context.Context, entity, subset string) (*Run, error) {
	entity = orDefault(entity, DefaultEntity)
	started := r.begin(ModeTargeted, entity, r.cfg.StandardTarget())
	run, err := r.targeted(ctx, entity, r.cfg.StandardTarget(), subset)
	if run == nil {
		return nil, err
	}
	r.report(run)
	r.finish(ModeTargeted, started, runData(run, map[string]any{"layer_subset": subset, "target_template": config.CategoryStandard}))
	return run, err
}

func (r *Runner) targeted(ctx context.Context, entity, target, subset string) (*Run, error) {
	if subset == "" {
		subset = sweep.SubsetTargeted
	}
	set, err := sweep.Subset(r.cfg.Layers, subset)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(r.out, "\nTARGETED EXPERIMENT: %s LAYERS\n", strings.ToUpper(set.Name))
	fmt.Fprintf(r.out, "Source: '%s'\nTarget: '%s'\nTesting layers: %v\n", entity, target, set.Layers)
	return r.Execute(ctx, ModeTargeted, entity, requests(entity, target, sweep.Grid(set), nil))
}

// Sweep patches the strategic pair set, thinned to at most maxPairs. A
// non-positive maxPairs uses sweep.max_combinations.
func (r *Runner) Sweep(ctx context.Context, entity string, maxPairs int) (*Run, error) {
	entity = orDefault(entity, DefaultEntity)
	started := r.begin(ModeSweep, entity, r.cfg.StandardTarget())
	run, err := r.sweep(ctx, entity, r.cfg.StandardTarget(), maxPairs)
	if run == nil {
		return nil, err
	}
	r.report(run)
	r.finish(ModeSweep, started, runData(run, map[string]any{"experiment_type": "strategic_sweep"}))
	return run, err
}

func (r *Runner) sweep(ctx context.Context, entity, target string, maxPairs int) (*Run, error) {
	if maxPairs <= 0 {
		maxPairs = r.cfg.Sweep.MaxCombinations
	}
	pairs := sweep.Capped(r.engine.NumLayers(), sweep.AnchorsFrom(r.cfg.Layers), maxPairs)
	if len(pairs) == 0 {
		return nil, perrors.New(perrors.ErrSweepEmpty, perrors.CategorySweep, "strategic sweep produced no layer pairs").
			WithContext("total_layers", fmt.Sprint(r.engine.NumLayers()))
	}
	fmt.Fprintf(r.out, "\nSWEEP EXPERIMENT\nSource: '%s'\nTarget: '%s'\nTesting %d layer combinations\n",
		entity, target, len(pairs))
	return r.Execute(ctx, ModeSweep, entity, requests(entity, target, pairs, nil))
}

// Template runs the targeted grid over the first n templates of a
// category. Unknown categories fall back to the standard templates. A
// non-positive n uses sweep.templates_per_category.
func (r *Runner) Template(ctx context.Context, entity, category string, n int) (*Run, error) {
	entity = orDefault(entity, DefaultEntity)
	started := r.begin(ModeTemplate, entity, "")
	run, err := r.template(ctx, entity, category, n)
	if run == nil {
		return nil, err
	}
	r.report(run)
	r.finish(ModeTemplate, started, runData(run, map[string]any{"template_type": category}))
	return run, err
}

func (r *Runner) template(ctx context.Context, entity, category string, n int) (*Run, error) {
	resolved := category
	if _, ok := r.cfg.Prompts.Templates[category]; !ok {
		r.log.Warn("unknown template category, using standard", zap.String("category", category))
		resolved = config.CategoryStandard
	}
	if n <= 0 {
		n = r.cfg.Sweep.TemplatesPerCategory
	}
	templates := r.cfg.Templates(resolved)
	templates = templates[:min(n, len(templates))]

	set, err := sweep.Subset(r.cfg.Layers, sweep.SubsetTargeted)
	if err != nil {
		return nil, err
	}
	grid := sweep.Grid(set)

	fmt.Fprintf(r.out, "\nPATCHSCOPE EXPERIMENT: %s TEMPLATES\nSource: '%s'\nTesting %d templates on layers %v\n",
		strings.ToUpper(resolved), entity, len(templates), set.Layers)

	var reqs []patchscope.Request
	for i, t := range templates {
		reqs = append(reqs, requests(entity, t, grid, &patchscope.TemplateRef{Category: resolved, Index: i})...)
	}
	run, err := r.Execute(ctx, ModeTemplate, entity, reqs)
	if run != nil {
		run.Target = ""
	}
	return run, err
}

// -----------------------------------------------------------------------------
// Comparison modes
// -----------------------------------------------------------------------------

// Multi samples n source entities and one standard target template, runs
// kind (targeted or sweep) for each entity and compares them. A
// non-positive n uses sweep.multi_prompt_count.
func (r *Runner) Multi(ctx context.Context, n int, kind string) (*MultiRun, error) {
	started := r.begin(ModeMulti, "", "")
	m, err := r.multi(ctx, n, kind)
	if m == nil {
		return nil, err
	}
	data := map[string]any{"entities": len(m.Runs), "total_results": len(m.Results())}
	r.finish(ModeMulti, started, data)
	return m, err
}

func (r *Runner) multi(ctx context.Context, n int, kind string) (*MultiRun, error) {
	if kind == "" {
		kind = ModeTargeted
	}
	if kind != ModeTargeted && kind != ModeSweep {
		return nil, perrors.UnknownStrategy(kind).
			WithContext("kind", "multi-prompt experiment").
			WithSuggestion("Use one of: targeted, sweep")
	}
	if n <= 0 {
		n = r.cfg.Sweep.MultiPromptCount
	}
	sources := r.chooser.Sample(r.cfg.Prompts.Sources, n)
	target := r.chooser.Choice(r.cfg.Templates(config.CategoryStandard))

	fmt.Fprintf(r.out, "\nMULTI-PROMPT EXPERIMENT (%s)\nTesting %d source prompts\nTarget template: '%s'\n",
		strings.ToUpper(kind), len(sources), target)

	m := &MultiRun{Name: ModeMulti, Target: target}
	var groups []analysis.EntityResults
	for i, entity := range sources {
		fmt.Fprintf(r.out, "\n--- Prompt %d/%d: %s ---\n", i+1, len(sources), entity)
		var run *Run
		var err error
		if kind == ModeSweep {
			run, err = r.sweep(ctx, entity, target, 0)
		} else {
			run, err = r.targeted(ctx, entity, target, sweep.SubsetTargeted)
		}
		if run != nil {
			m.Runs = append(m.Runs, run)
			groups = append(groups, analysis.EntityResults{Entity: entity, Results: run.Results})
			s := run.Analysis.Summary
			fmt.Fprintf(r.out, "Quick results: %d strong matches, %d partial matches\n", s.StrongCount, s.PartialCount)
		}
		if err != nil {
			m.Comparisons = r.analyzer.Compare(groups)
			return m, err
		}
	}
	m.Comparisons = r.analyzer.Compare(groups)
	analysis.WriteComparison(r.out, m.Comparisons)
	return m, nil
}

// MultiTemplate runs Template for every configured category and compares
// the categories.
func (r *Runner) MultiTemplate(ctx context.Context, entity string) (*MultiRun, error) {
	entity = orDefault(entity, DefaultTemplateEntity)
	started := r.begin(ModeTemplates, entity, "")

	m := &MultiRun{Name: ModeTemplates}
	var groups []analysis.EntityResults
	var runErr error
	for _, cat := range r.cfg.Categories() {
		run, err := r.template(ctx, entity, cat, 0)
		if run != nil {
			m.Runs = append(m.Runs, run)
			groups = append(groups, analysis.EntityResults{Entity: entity, Label: cat, Results: run.Results})
		}
		if err != nil {
			runErr = err
			break
		}
	}
	m.Comparisons = r.analyzer.Compare(groups)
	analysis.WriteComparison(r.out, m.Comparisons)

	r.finish(ModeTemplates, started, map[string]any{
		"template_types": r.cfg.Categories(),
		"total_results":  len(m.Results()),
	})
	return m, runErr
}

// Comprehensive runs the full study: a targeted pass, a capped sweep when
// the targeted pass found strong matches, a multi-prompt comparison and
// the key insights of the targeted pass.
func (r *Runner) Comprehensive(ctx context.Context) (*Study, error) {
	entity := DefaultEntity
	target := r.cfg.StandardTarget()
	started := r.begin(ModeComprehensive, entity, target)
	study := &Study{}

	fmt.Fprintf(r.out, "\nCOMPREHENSIVE PATCHSCOPE STUDY\n%s\n", strings.Repeat("=", 50))

	fmt.Fprintln(r.out, "\nPhase 1: Quick targeted test")
	run, err := r.targeted(ctx, entity, target, sweep.SubsetTargeted)
	if run == nil {
		return nil, err
	}
	study.Targeted = run
	analysis.WriteSummary(r.out, run.Analysis, r.cfg.Analysis.OutputMaxLength)
	if err != nil {
		return study, err
	}

	fmt.Fprintln(r.out, "\nPhase 2: Strategic sweep")
	analysis.WriteHotspots(r.out, run.Hotspots)
	if len(run.Analysis.Strong) > 0 {
		sw, err := r.sweep(ctx, entity, target, r.cfg.Sweep.ComprehensiveCombinations)
		study.Sweep = sw
		if sw != nil {
			fmt.Fprintln(r.out, "\nSweep results:")
			analysis.WriteSummary(r.out, sw.Analysis, r.cfg.Analysis.OutputMaxLength)
		}
		if err != nil {
			return study, err
		}
	}

	fmt.Fprintln(r.out, "\nPhase 3: Multi-prompt comparison")
	study.Multi, err = r.multi(ctx, r.cfg.Sweep.MultiPromptCount, ModeTargeted)
	if err != nil {
		return study, err
	}

	study.Insights = analysis.FindInsights(run.Analysis, run.Hotspots)
	fmt.Fprintf(r.out, "\n%s\nCOMPREHENSIVE STUDY COMPLETE!\n", strings.Repeat("=", 60))
	analysis.WriteInsights(r.out, study.Insights)

	data := runData(run, map[string]any{"swept": study.Sweep != nil})
	if p := study.Insights.MostConsistent; p != nil {
		data["most_consistent_pair"] = p.Pair.String()
	}
	r.finish(ModeComprehensive, started, data)
	return study, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (r *Runner) begin(mode, entity, target string) time.Time {
	started := r.now()
	r.log.Info("experiment started", zap.String("mode", mode), zap.String("entity", entity))
	r.emit(Event{
		Type:       EventExperimentStart,
		Time:       started,
		Experiment: mode,
		Entity:     entity,
		Message:    fmt.Sprintf("Starting %s experiment", strings.ToUpper(mode)),
		Data:       map[string]any{"source_prompt": entity, "target_prompt": target, "seed": r.chooser.Seed()},
	})
	return started
}

func (r *Runner) finish(mode string, started time.Time, data map[string]any) {
	elapsed := r.now().Sub(started)
	data["duration_seconds"] = elapsed.Seconds()
	r.emit(Event{
		Type:       EventExperimentComplete,
		Experiment: mode,
		Message:    fmt.Sprintf("%s experiment completed in %.2fs", strings.ToUpper(mode), elapsed.Seconds()),
		Data:       data,
	})
}

func (r *Runner) report(run *Run) {
	analysis.WriteSummary(r.out, run.Analysis, r.cfg.Analysis.OutputMaxLength)
	analysis.WriteHotspots(r.out, run.Hotspots)
}

func runData(run *Run, extra map[string]any) map[string]any {
	data := map[string]any{
		"total_results":  len(run.Results),
		"strong_matches": run.Analysis.Summary.StrongCount,
		"skipped":        run.Tally.Skipped,
		"rejected":       run.Tally.Rejected,
		"failed":         run.Tally.Failed,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
