// Package experiment orchestrates patching studies: it turns an experiment
// mode into a request stream, drives the engine over it, applies the
// per-request error policy and reports progress, events and analyses.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/r3d91ll/patchscope/pkg/analysis"
	"github.com/r3d91ll/patchscope/pkg/config"
	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
	"github.com/r3d91ll/patchscope/pkg/sweep"
)

// Default source entities used when a mode is invoked without one.
const (
	DefaultEntity         = "George Washington"
	DefaultTemplateEntity = "Albert Einstein"
)

// Progress reports request completion. *spinner.ProgressBar implements it.
type Progress interface {
	Start()
	Increment()
	Complete(message string)
	Fail(message string)
}

// ProgressFactory creates a Progress for a run of total requests.
type ProgressFactory func(total int, message string) Progress

// Options configures a Runner.
type Options struct {
	// Sink receives run events. Defaults to Discard.
	Sink Sink
	// Out receives human-readable reports. Defaults to io.Discard.
	Out io.Writer
	// Progress, when set, is used for every run with more than one request.
	Progress ProgressFactory
	// Seed seeds the entity and template chooser.
	Seed   uint64
	Logger *zap.Logger
}

// Runner executes experiment modes against one engine.
type Runner struct {
	engine   *patchscope.Engine
	cfg      *config.Config
	analyzer *analysis.Analyzer
	chooser  *sweep.Chooser
	sink     Sink
	out      io.Writer
	progress ProgressFactory
	log      *zap.Logger
	now      func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(engine *patchscope.Engine, cfg *config.Config, opts Options) *Runner {
	if opts.Sink == nil {
		opts.Sink = Discard
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{
		engine:   engine,
		cfg:      cfg,
		analyzer: analysis.NewAnalyzer(cfg),
		chooser:  sweep.NewChooser(opts.Seed),
		sink:     opts.Sink,
		out:      opts.Out,
		progress: opts.Progress,
		log:      opts.Logger,
		now:      time.Now,
	}
}

// Analyzer returns the analyzer used to classify results.
func (r *Runner) Analyzer() *analysis.Analyzer { return r.analyzer }

// Engine returns the underlying engine.
func (r *Runner) Engine() *patchscope.Engine { return r.engine }

// Seed returns the chooser seed.
func (r *Runner) Seed() uint64 { return r.chooser.Seed() }

// Tally counts request outcomes of a run.
type Tally struct {
	// Executed requests produced a result without error.
	Executed int `json:"executed"`
	// Skipped requests had no marker in the target prompt.
	Skipped int `json:"skipped"`
	// Rejected requests named a layer outside the model.
	Rejected int `json:"rejected"`
	// Failed requests errored during extraction or patched generation.
	Failed int `json:"failed"`
}

// Total is the number of requests that reached a verdict.
func (t Tally) Total() int { return t.Executed + t.Skipped + t.Rejected + t.Failed }

// Run is the outcome of executing one request stream.
type Run struct {
	Name     string               `json:"name"`
	Entity   string               `json:"entity"`
	Target   string               `json:"target,omitempty"`
	Planned  int                  `json:"planned"`
	Results  []*patchscope.Result `json:"results"`
	Tally    Tally                `json:"tally"`
	Analysis *analysis.Analysis   `json:"analysis"`
	Hotspots *analysis.Hotspots   `json:"hotspots"`
	Started  time.Time            `json:"started"`
	Finished time.Time            `json:"finished"`
}

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Applied counts results whose patch was applied.
func (r *Run) Applied() int {
	n := 0
	for _, res := range r.Results {
		if res.PatchApplied {
			n++
		}
	}
	return n
}

// AnnounceModel emits MODEL_LOADED with the engine's model description.
func (r *Runner) AnnounceModel() {
	info := r.engine.Model().Info()
	r.emit(Event{
		Type:    EventModelLoaded,
		Message: fmt.Sprintf("Model loaded: %s (%d layers)", info.Name, info.Layers),
		Data:    map[string]any{"model_info": info},
	})
}

// Execute runs reqs in order. Per-request failures never abort the run:
// a missing marker is skipped, an out-of-range layer is rejected and any
// other error is recorded as a failed result. Cancellation of ctx stops
// issuing requests; the partial run is returned together with ctx.Err().
func (r *Runner) Execute(ctx context.Context, name, entity string, reqs []patchscope.Request) (*Run, error) {
	run := &Run{Name: name, Entity: entity, Planned: len(reqs), Started: r.now()}
	if len(reqs) > 0 {
		run.Target = reqs[0].TargetPrompt
	}
	keywords := r.analyzer.Keywords(entity)
	r.emit(Event{
		Type:       EventPhaseStart,
		Experiment: name,
		Entity:     entity,
		Message:    fmt.Sprintf("Starting %s: %d layer combinations", name, len(reqs)),
		Data:       map[string]any{"requests": len(reqs), "target": run.Target},
	})

	var bar Progress
	if r.progress != nil && len(reqs) > 1 {
		bar = r.progress(len(reqs), fmt.Sprintf("%s: %s", name, entity))
		bar.Start()
	}

	var stopErr error
	for i := range reqs {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		if err := r.execOne(ctx, run, &reqs[i], keywords); err != nil {
			stopErr = err
			break
		}
		if bar != nil {
			bar.Increment()
		}
	}
	run.Finished = r.now()

	run.Analysis = r.analyzer.Analyze(run.Results, entity)
	run.Hotspots = analysis.FindHotspots(run.Analysis)
	r.emit(Event{
		Type:       EventAnalysisComplete,
		Experiment: name,
		Entity:     entity,
		Message: fmt.Sprintf("Analysis for '%s': %d strong, %d partial matches",
			entity, run.Analysis.Summary.StrongCount, run.Analysis.Summary.PartialCount),
		Analysis: run.Analysis,
	})
	r.emit(Event{
		Type:       EventHotspotAnalysis,
		Experiment: name,
		Entity:     entity,
		Message:    hotspotMessage(run.Hotspots),
		Hotspots:   run.Hotspots,
	})

	r.log.Info("run finished",
		zap.String("experiment", name),
		zap.String("entity", entity),
		zap.Int("executed", run.Tally.Executed),
		zap.Int("skipped", run.Tally.Skipped),
		zap.Int("rejected", run.Tally.Rejected),
		zap.Int("failed", run.Tally.Failed),
		zap.Int("strong", run.Analysis.Summary.StrongCount),
		zap.Duration("elapsed", run.Duration()))

	if bar != nil {
		if stopErr != nil {
			bar.Fail(fmt.Sprintf("stopped after %d/%d requests", run.Tally.Total(), len(reqs)))
		} else {
			bar.Complete(fmt.Sprintf("%d/%d patches applied", run.Applied(), len(reqs)))
		}
	}
	return run, stopErr
}

// execOne runs a single request and files its outcome. It returns an
// error only when the context ended the run.
func (r *Runner) execOne(ctx context.Context, run *Run, req *patchscope.Request, keywords []string) error {
	res, err := r.engine.RunPatch(ctx, *req)
	switch {
	case err == nil:
		run.Tally.Executed++
		run.Results = append(run.Results, res)
		typ := EventPatchSuccess
		if !res.PatchApplied {
			typ = EventPatchFailed
		}
		r.emitResult(typ, run, res, keywords)
		return nil

	case isContextErr(err):
		return err

	case perrors.IsCode(err, perrors.ErrMarkerNotFound):
		run.Tally.Skipped++
		r.log.Warn("request skipped", zap.Stringer("pair", req.Pair()), zap.Error(err))
		r.emitRequest(EventPatchSkipped, run, req, err)
		return nil

	case perrors.IsCode(err, perrors.ErrLayerOutOfRange):
		run.Tally.Rejected++
		r.log.Warn("request rejected", zap.Stringer("pair", req.Pair()), zap.Error(err))
		r.emitRequest(EventPatchRejected, run, req, err)
		return nil

	default:
		run.Tally.Failed++
		if res == nil {
			res = failedResult(req, err)
		}
		run.Results = append(run.Results, res)
		r.log.Warn("request failed", zap.Stringer("pair", req.Pair()), zap.Error(err))
		r.emitResult(EventPatchFailed, run, res, keywords)
		return nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// failedResult records a request that produced no engine result, such as
// an extraction failure.
func failedResult(req *patchscope.Request, err error) *patchscope.Result {
	return &patchscope.Result{
		ExtractLayer:  req.ExtractLayer,
		InjectLayer:   req.InjectLayer,
		SourcePrompt:  req.SourcePrompt,
		TargetPrompt:  req.TargetPrompt,
		PatchPosition: patchscope.NotFound,
		Template:      req.Template,
		Error:         err.Error(),
	}
}

func (r *Runner) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	r.sink.Record(e)
}

func (r *Runner) emitResult(typ EventType, run *Run, res *patchscope.Result, keywords []string) {
	msg := fmt.Sprintf("E%d→I%d: %s", res.ExtractLayer, res.InjectLayer, analysis.Truncate(res.NewTokens, 50))
	if res.Error != "" {
		msg = fmt.Sprintf("E%d→I%d: %s", res.ExtractLayer, res.InjectLayer, res.Error)
	}
	r.emit(Event{
		Type:       typ,
		Experiment: run.Name,
		Entity:     run.Entity,
		Message:    msg,
		Result:     res,
		Bucket:     analysis.Classify(res, keywords, r.analyzer.Thresholds()),
	})
}

func (r *Runner) emitRequest(typ EventType, run *Run, req *patchscope.Request, err error) {
	r.emit(Event{
		Type:       typ,
		Experiment: run.Name,
		Entity:     run.Entity,
		Message:    fmt.Sprintf("E%d→I%d: %v", req.ExtractLayer, req.InjectLayer, err),
		Request:    req,
		Data:       map[string]any{"error": err.Error()},
	})
}

func hotspotMessage(h *analysis.Hotspots) string {
	if h.Empty {
		return h.Message
	}
	best, _ := h.BestPair()
	return fmt.Sprintf("Found %d hotspot pairs, best E%d→I%d (%d)",
		len(h.BestPairs), best.Pair.Extract, best.Pair.Inject, best.Count)
}

// requests expands pairs into requests against a single target.
func requests(entity, target string, pairs []patchscope.Pair, tmpl *patchscope.TemplateRef) []patchscope.Request {
	reqs := make([]patchscope.Request, 0, len(pairs))
	for _, p := range pairs {
		req := patchscope.Request{
			SourcePrompt: entity,
			TargetPrompt: target,
			ExtractLayer: p.Extract,
			InjectLayer:  p.Inject,
		}
		if tmpl != nil {
			ref := *tmpl
			req.Template = &ref
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func orDefault(entity, def string) string {
	if entity == "" {
		return def
	}
	return entity
}
