package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/r3d91ll/patchscope/pkg/analysis"
	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/help"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
	"github.com/r3d91ll/patchscope/pkg/sweep"
)

// modePatch names single-pair runs started from the console.
const modePatch = "patch"

func usage(name string) string {
	if cmd, ok := help.GetCommand(name); ok {
		return cmd.Usage
	}
	return name
}

// handlePatch handles /patch <extract> <inject> [entity].
func (s *Shell) handlePatch(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return perrors.CommandMissingArgs("/patch", usage("/patch"))
	}
	total := s.runner.Engine().NumLayers()
	extract, err := s.layerArg("extract", args[0], total)
	if err != nil {
		return err
	}
	inject, err := s.layerArg("inject", args[1], total)
	if err != nil {
		return err
	}
	entity := s.entity
	if len(args) > 2 {
		entity = strings.Join(args[2:], " ")
	}

	req := patchscope.Request{SourcePrompt: entity, TargetPrompt: s.target, ExtractLayer: extract, InjectLayer: inject}
	run, err := s.runner.Execute(ctx, modePatch, entity, []patchscope.Request{req})
	s.collect(run)
	if err != nil {
		return err
	}
	if run.Tally.Skipped > 0 {
		return perrors.MarkerNotFound(s.target, s.runner.Engine().Marker())
	}

	z := s.runner.Analyzer()
	keywords := z.Keywords(entity)
	for _, res := range run.Results {
		fmt.Fprintf(s.out, "%s\n", analysis.ResultLine(res, s.cfg.Analysis.OutputMaxLength))
		if res.Error != "" {
			fmt.Fprintf(s.out, "  failed: %s\n", res.Error)
			continue
		}
		fmt.Fprintf(s.out, "  match: %s (%d/%d keywords)  source token: %q\n",
			analysis.Classify(res, keywords, z.Thresholds()),
			analysis.MatchCount(res.NewTokens, keywords), len(keywords), res.SourceToken)
		fmt.Fprintf(s.out, "  norm: source %.3f, hidden %.3f → %.3f  (%.0fms)\n",
			res.SourceReprNorm, res.NormBefore, res.NormAfter, res.DurationMS)
	}
	return nil
}

func (s *Shell) layerArg(role, arg string, total int) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, perrors.CommandInvalidArg(arg, role+" layer index")
	}
	if n < 0 || n >= total {
		return 0, perrors.InvalidLayer(role, n, total)
	}
	return n, nil
}

// handleSweep handles /sweep [max_pairs].
func (s *Shell) handleSweep(ctx context.Context, args []string) error {
	maxPairs := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return perrors.CommandInvalidArg(args[0], "positive number of layer pairs")
		}
		maxPairs = n
	}
	run, err := s.runner.Sweep(ctx, s.entity, maxPairs)
	s.collect(run)
	return err
}

// handleTargeted handles /targeted [subset].
func (s *Shell) handleTargeted(ctx context.Context, args []string) error {
	subset := sweep.SubsetTargeted
	if len(args) > 0 {
		subset = args[0]
	}
	run, err := s.runner.Targeted(ctx, s.entity, subset)
	s.collect(run)
	return err
}

// current returns the analysis of the current entity's pool, reusing the
// previous one while no new results arrived.
func (s *Shell) current() *analysis.Analysis {
	if s.last == nil || s.last.Entity != s.entity {
		s.last = s.runner.Analyzer().Analyze(s.results[s.entity], s.entity)
	}
	return s.last
}

func (s *Shell) handleAnalyze() {
	analysis.WriteSummary(s.out, s.current(), s.cfg.Analysis.OutputMaxLength)
}

func (s *Shell) handleHotspots() {
	a := s.current()
	if len(a.Strong) == 0 {
		fmt.Fprintf(s.out, "No strong matches for '%s' yet. Run /sweep or /targeted first.\n", s.entity)
		return
	}
	analysis.WriteHotspots(s.out, analysis.FindHotspots(a))
}

// handleEntity handles /entity [name].
func (s *Shell) handleEntity(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "Entity: %s (%d results collected)\n", s.entity, len(s.results[s.entity]))
		fmt.Fprintf(s.out, "Keywords: %s\n", strings.Join(s.runner.Analyzer().Keywords(s.entity), ", "))
		return
	}
	s.entity = strings.Join(args, " ")
	s.last = nil
	fmt.Fprintf(s.out, "Entity set to: %s\n", s.entity)
}

// handleTemplate handles /template [category [n] | literal text].
func (s *Shell) handleTemplate(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "Template: %s\n\nCategories:\n", s.target)
		for _, c := range s.cfg.Categories() {
			fmt.Fprintf(s.out, "  %-12s %d templates\n", c, len(s.cfg.Templates(c)))
		}
		return nil
	}

	if templates, ok := s.cfg.Prompts.Templates[args[0]]; ok {
		n := 1
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil {
				return perrors.CommandInvalidArg(args[1], "template number")
			}
			n = v
		}
		if n < 1 || n > len(templates) {
			return perrors.ValidationOutOfRange("template number", n, 1, len(templates))
		}
		s.target = templates[n-1]
	} else {
		text := strings.Join(args, " ")
		if marker := s.runner.Engine().Marker(); !strings.Contains(text, marker) {
			return perrors.MarkerNotFound(text, marker)
		}
		s.target = text
	}
	fmt.Fprintf(s.out, "Template set to: %s\n", s.target)
	return nil
}

// handleLayers prints model depth and the configured subsets.
func (s *Shell) handleLayers() {
	info := s.runner.Engine().Model().Info()
	fmt.Fprintf(s.out, "Model: %s\n  Layers: %d (0-%d)\n  Hidden size: %d\n", info.Name, info.Layers, info.Layers-1, info.Hidden)
	fmt.Fprintln(s.out, "Subsets:")
	for _, name := range sweep.SubsetNames {
		set, err := sweep.Subset(s.cfg.Layers, name)
		if err != nil {
			continue
		}
		fmt.Fprintf(s.out, "  %-9s %v\n", name, set.Layers)
	}
	a := sweep.AnchorsFrom(s.cfg.Layers)
	fmt.Fprintf(s.out, "Sweep anchors: early %v, mid %v, late %v\n", a.Early, a.Mid, a.Late)
	if info.Layers != s.cfg.Layers.Total {
		fmt.Fprintf(s.out, "Note: configured for %d layers; out-of-range pairs are rejected.\n", s.cfg.Layers.Total)
	}
}

// handleClear discards the current entity's results after confirmation.
func (s *Shell) handleClear() error {
	n := len(s.results[s.entity])
	if n == 0 {
		fmt.Fprintln(s.out, "Nothing to clear.")
		return nil
	}
	ok, err := s.prompter.Confirm(fmt.Sprintf("Discard %d results for '%s'?", n, s.entity))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(s.out, "Kept.")
		return nil
	}
	delete(s.results, s.entity)
	s.last = nil
	fmt.Fprintf(s.out, "Cleared %d results.\n", n)
	return nil
}
