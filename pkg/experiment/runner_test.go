package experiment

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/r3d91ll/patchscope/pkg/analysis"
	"github.com/r3d91ll/patchscope/pkg/config"
	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/model"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Prompts.Templates = map[string][]string{
		config.CategoryStandard:   {"Tell me about ?", "Who was ? exactly"},
		config.CategoryPatchscope: {"Syria: country. Paris: city. ?", "Einstein: physicist. ?", "Rome: city. ?"},
	}
	return cfg
}

type harness struct {
	model  *oracleModel
	runner *Runner
	sink   *recorder
	out    *bytes.Buffer
	bars   []*fakeProgress
}

func newHarness(t *testing.T, layers int, reply func(string, int, int) string) *harness {
	t.Helper()
	h := &harness{model: newOracleModel(layers, reply), sink: &recorder{}, out: &bytes.Buffer{}}
	engine := patchscope.NewEngine(h.model, patchscope.Options{ModelName: "oracle", Logger: zaptest.NewLogger(t)})
	h.runner = NewRunner(engine, testConfig(), Options{
		Sink: h.sink,
		Out:  h.out,
		Seed: 42,
		Progress: func(total int, _ string) Progress {
			p := &fakeProgress{total: total}
			h.bars = append(h.bars, p)
			return p
		},
		Logger: zaptest.NewLogger(t),
	})
	return h
}

func req(source, target string, e, i int) patchscope.Request {
	return patchscope.Request{SourcePrompt: source, TargetPrompt: target, ExtractLayer: e, InjectLayer: i}
}

// -----------------------------------------------------------------------------
// Execute
// -----------------------------------------------------------------------------

func TestExecute_ErrorPolicy(t *testing.T) {
	h := newHarness(t, 28, washingtonOracle)
	boom := errors.New("device lost")
	h.model.fail[patchscope.Pair{Extract: 7, Inject: 7}] = boom

	run, err := h.runner.Execute(context.Background(), "policy", "George Washington", []patchscope.Request{
		req("George Washington", "Tell me about ?", 14, 21),
		req("George Washington", "no marker here", 2, 2),
		req("George Washington", "Tell me about ?", 40, 2),
		req("George Washington", "Tell me about ?", 7, 7),
	})
	require.NoError(t, err)

	assert.Equal(t, Tally{Executed: 1, Skipped: 1, Rejected: 1, Failed: 1}, run.Tally)
	assert.Equal(t, 4, run.Tally.Total())
	require.Len(t, run.Results, 2, "skipped and rejected requests leave no result")

	ok, failed := run.Results[0], run.Results[1]
	assert.True(t, ok.PatchApplied)
	assert.Equal(t, "the first president of the united states", ok.NewTokens)
	assert.False(t, failed.PatchApplied)
	assert.Contains(t, failed.Error, "device lost")

	assert.Equal(t, []EventType{
		EventPhaseStart,
		EventPatchSuccess,
		EventPatchSkipped,
		EventPatchRejected,
		EventPatchFailed,
		EventAnalysisComplete,
		EventHotspotAnalysis,
	}, h.sink.types())
	assert.Equal(t, analysis.BucketStrong, h.sink.events[1].Bucket)
	assert.Equal(t, analysis.BucketFailed, h.sink.events[4].Bucket)
	assert.Equal(t, 40, h.sink.events[3].Request.ExtractLayer)

	assert.Len(t, run.Analysis.Strong, 1)
	assert.Len(t, run.Analysis.Failed, 1)
	assert.Empty(t, h.model.hooks, "every interception is removed")

	require.Len(t, h.bars, 1)
	assert.Equal(t, 4, h.bars[0].increments)
	assert.Equal(t, 1, h.bars[0].completes)
}

func TestExecute_ExtractionFailureRecorded(t *testing.T) {
	h := newHarness(t, 28, washingtonOracle)
	run, err := h.runner.Execute(context.Background(), "empty", "x", []patchscope.Request{
		req("   ", "Tell me about ?", 2, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, Tally{Failed: 1}, run.Tally)
	require.Len(t, run.Results, 1)
	assert.Equal(t, patchscope.NotFound, run.Results[0].PatchPosition)
	assert.NotEmpty(t, run.Results[0].Error)
	assert.Empty(t, h.bars, "single requests run without a progress bar")
}

func TestExecute_CancellationStopsIssuing(t *testing.T) {
	h := newHarness(t, 28, washingtonOracle)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.sink.onEv = func(e Event) {
		if e.Type == EventPatchSuccess {
			cancel()
		}
	}

	run, err := h.runner.Execute(ctx, "cancel", "George Washington", []patchscope.Request{
		req("George Washington", "Tell me about ?", 14, 21),
		req("George Washington", "Tell me about ?", 2, 2),
		req("George Washington", "Tell me about ?", 7, 7),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, run.Tally.Executed)
	assert.Len(t, run.Results, 1, "results produced before cancellation stay")
	assert.Equal(t, 1, h.model.generates)
	assert.Equal(t, 1, h.sink.count(EventAnalysisComplete))
	require.Len(t, h.bars, 1)
	assert.Equal(t, 1, h.bars[0].fails)
}

func TestAnnounceModel(t *testing.T) {
	h := newHarness(t, 6, silentOracle)
	h.runner.AnnounceModel()
	require.Len(t, h.sink.events, 1)
	e := h.sink.events[0]
	assert.Equal(t, EventModelLoaded, e.Type)
	info, ok := e.Data["model_info"].(model.Info)
	require.True(t, ok)
	assert.Equal(t, 6, info.Layers)
	assert.False(t, e.Time.IsZero())
}

// -----------------------------------------------------------------------------
// Modes
// -----------------------------------------------------------------------------

func TestQuick(t *testing.T) {
	h := newHarness(t, 28, washingtonOracle)
	run, err := h.runner.Quick(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "George Washington", run.Entity)
	assert.Equal(t, 4, run.Planned)
	assert.Equal(t, 4, run.Applied())
	assert.Contains(t, h.out.String(), "Success rate: 4/4 (100.0%)")
	assert.Contains(t, h.out.String(), "E14→I21: the first president")

	types := h.sink.types()
	assert.Equal(t, EventExperimentStart, types[0])
	assert.Equal(t, EventExperimentComplete, types[len(types)-1])
	last := h.sink.events[len(h.sink.events)-1]
	assert.Equal(t, "4/4", last.Data["success_rate"])
}

func TestTargeted(t *testing.T) {
	h := newHarness(t, 28, washingtonOracle)
	run, err := h.runner.Targeted(context.Background(), "", "targeted")
	require.NoError(t, err)

	assert.Equal(t, 25, run.Planned)
	assert.Equal(t, Tally{Executed: 25}, run.Tally)
	assert.Equal(t, "Tell me about ?", run.Target)
	require.Len(t, run.Analysis.Strong, 1)
	best, ok := run.Hotspots.BestPair()
	require.True(t, ok)
	assert.Equal(t, patchscope.Pair{Extract: 14, Inject: 21}, best.Pair)

	out := h.out.String()
	assert.Contains(t, out, "TARGETED EXPERIMENT: TARGETED LAYERS")
	assert.Contains(t, out, "Testing layers: [2 7 14 21 26]")
	assert.Contains(t, out, "KNOWLEDGE HOTSPOT ANALYSIS")
}

func TestTargeted_Subsets(t *testing.T) {
	h := newHarness(t, 28, silentOracle)
	run, err := h.runner.Targeted(context.Background(), "Marie Curie", "late")
	require.NoError(t, err)
	assert.Equal(t, 16, run.Planned, "late subset is every other late layer")

	_, err = h.runner.Targeted(context.Background(), "", "upper")
	assert.True(t, perrors.IsCode(err, perrors.ErrUnknownStrategy))
}

func TestTargeted_SmallModelRejectsOutOfRangeLayers(t *testing.T) {
	h := newHarness(t, 12, silentOracle)
	run, err := h.runner.Targeted(context.Background(), "", "targeted")
	require.NoError(t, err)
	// Layers 2 and 7 fit a 12-layer model; 14, 21 and 26 do not.
	assert.Equal(t, Tally{Executed: 4, Rejected: 21}, run.Tally)
}

func TestSweep(t *testing.T) {
	h := newHarness(t, 28, washingtonOracle)
	run, err := h.runner.Sweep(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, run.Planned)
	assert.Contains(t, h.out.String(), "Testing 10 layer combinations")

	run, err = h.runner.Sweep(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, 50, run.Planned, "defaults to sweep.max_combinations")
}

func TestSweep_NoLayers(t *testing.T) {
	h := newHarness(t, 0, silentOracle)
	run, err := h.runner.Sweep(context.Background(), "", 10)
	assert.Nil(t, run)
	assert.True(t, perrors.IsCode(err, perrors.ErrSweepEmpty))
}

func TestTemplate(t *testing.T) {
	h := newHarness(t, 28, silentOracle)
	run, err := h.runner.Template(context.Background(), "Albert Einstein", config.CategoryPatchscope, 2)
	require.NoError(t, err)
	assert.Equal(t, 50, run.Planned)
	require.Len(t, run.Results, 50)
	assert.Equal(t, &patchscope.TemplateRef{Category: config.CategoryPatchscope, Index: 0}, run.Results[0].Template)
	assert.Equal(t, &patchscope.TemplateRef{Category: config.CategoryPatchscope, Index: 1}, run.Results[49].Template)
	assert.Empty(t, run.Target)

	run, err = h.runner.Template(context.Background(), "", "bogus", 0)
	require.NoError(t, err)
	assert.Equal(t, config.CategoryStandard, run.Results[0].Template.Category, "unknown categories fall back to standard")
	assert.Equal(t, 50, run.Planned, "both standard templates")
}

func TestMulti(t *testing.T) {
	h := newHarness(t, 28, washingtonOracle)
	m, err := h.runner.Multi(context.Background(), 3, "")
	require.NoError(t, err)
	require.Len(t, m.Runs, 3)
	require.Len(t, m.Comparisons, 3)
	for i, r := range m.Runs {
		assert.Equal(t, r.Entity, m.Comparisons[i].Entity)
		assert.Equal(t, m.Target, r.Target)
	}
	assert.Len(t, m.Results(), 75)
	assert.Contains(t, h.out.String(), "CROSS-PROMPT COMPARISON")

	again := newHarness(t, 28, washingtonOracle)
	m2, err := again.runner.Multi(context.Background(), 3, ModeTargeted)
	require.NoError(t, err)
	assert.Equal(t, m.Target, m2.Target, "same seed, same target")
	for i := range m.Runs {
		assert.Equal(t, m.Runs[i].Entity, m2.Runs[i].Entity)
	}

	_, err = h.runner.Multi(context.Background(), 3, "grid")
	assert.True(t, perrors.IsCode(err, perrors.ErrUnknownStrategy))
}

func TestMultiTemplate(t *testing.T) {
	h := newHarness(t, 28, silentOracle)
	m, err := h.runner.MultiTemplate(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, m.Comparisons, 2)
	assert.Equal(t, config.CategoryPatchscope, m.Comparisons[0].Label)
	assert.Equal(t, config.CategoryStandard, m.Comparisons[1].Label)
	assert.Equal(t, DefaultTemplateEntity, m.Comparisons[0].Entity)
	assert.Equal(t, 75, m.Runs[0].Planned, "three patchscope templates")
	assert.Equal(t, 50, m.Runs[1].Planned, "two standard templates")
}

func TestComprehensive(t *testing.T) {
	h := newHarness(t, 28, washingtonOracle)
	study, err := h.runner.Comprehensive(context.Background())
	require.NoError(t, err)

	require.NotNil(t, study.Targeted)
	require.NotNil(t, study.Sweep, "strong matches trigger the sweep phase")
	assert.Equal(t, 30, study.Sweep.Planned)
	require.NotNil(t, study.Multi)
	assert.Len(t, study.Multi.Runs, 3)

	require.NotNil(t, study.Insights.BestResult)
	assert.Equal(t, 14, study.Insights.BestResult.ExtractLayer)
	require.NotNil(t, study.Insights.MostConsistent)
	assert.Equal(t, patchscope.Pair{Extract: 14, Inject: 21}, study.Insights.MostConsistent.Pair)

	out := h.out.String()
	assert.Contains(t, out, "Phase 1: Quick targeted test")
	assert.Contains(t, out, "COMPREHENSIVE STUDY COMPLETE!")
	assert.Contains(t, out, "Most consistent layer pair: E14→I21")
}

func TestComprehensive_NoStrongSkipsSweep(t *testing.T) {
	h := newHarness(t, 28, silentOracle)
	study, err := h.runner.Comprehensive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, study.Sweep)
	assert.Nil(t, study.Insights.BestResult)
	assert.Contains(t, h.out.String(), analysis.NoStrongMatches)
}
