// Package patchscope extracts hidden-state vectors from a source prompt and
// substitutes them into the forward pass of a target prompt at the marker
// position, then reads what the model generates.
package patchscope

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/model"
)

// DefaultMaxNewTokens is the greedy generation budget for patched runs.
const DefaultMaxNewTokens = 15

// Options configures an Engine.
type Options struct {
	// ModelName keys cache entries. Defaults to the model's Info().Name.
	ModelName    string
	MaxNewTokens int
	Marker       string
	Cache        Cache
	Logger       *zap.Logger
}

// Engine runs patching operations against one model. An Engine must not be
// used concurrently: a model holds at most one interception per layer.
type Engine struct {
	model model.Model
	tok   model.Tokenizer
	opts  Options
	name  string
	log   *zap.Logger
}

// NewEngine returns an Engine for m.
func NewEngine(m model.Model, opts Options) *Engine {
	if opts.MaxNewTokens <= 0 {
		opts.MaxNewTokens = DefaultMaxNewTokens
	}
	if opts.Marker == "" {
		opts.Marker = DefaultMarker
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	name := opts.ModelName
	if name == "" {
		name = m.Info().Name
	}
	return &Engine{model: m, tok: m.Tokenizer(), opts: opts, name: name, log: opts.Logger}
}

// Model returns the engine's model.
func (e *Engine) Model() model.Model { return e.model }

// Marker returns the placeholder token patched in target prompts.
func (e *Engine) Marker() string { return e.opts.Marker }

// NumLayers returns the model's block count.
func (e *Engine) NumLayers() int { return e.model.NumLayers() }

// Generate continues prompt without any interception.
func (e *Engine) Generate(ctx context.Context, prompt string) (Generation, error) {
	return Generate(ctx, e.model, prompt, e.opts.MaxNewTokens)
}

// RunPatch extracts the source vector at req.ExtractLayer and substitutes it
// for the marker's row in the output of req.InjectLayer while generating
// from req.TargetPrompt.
//
// Invalid layers and a missing marker return an error with no result. A
// failure during generation returns both a result with PatchApplied false
// and a PatchExecution error. The interception is always removed before
// RunPatch returns.
func (e *Engine) RunPatch(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	n := e.model.NumLayers()
	if req.ExtractLayer < 0 || req.ExtractLayer >= n {
		return nil, perrors.InvalidLayer("extract", req.ExtractLayer, n)
	}
	if req.InjectLayer < 0 || req.InjectLayer >= n {
		return nil, perrors.InvalidLayer("inject", req.InjectLayer, n)
	}

	source, err := e.Extract(ctx, req.SourcePrompt, req.ExtractLayer)
	if err != nil {
		return nil, err
	}

	ids := e.tok.Encode(req.TargetPrompt)
	pos := FindMarkerIDs(e.tok, ids, e.opts.Marker)
	if pos == NotFound {
		return nil, perrors.MarkerNotFound(req.TargetPrompt, e.opts.Marker)
	}

	res := &Result{
		ExtractLayer:   req.ExtractLayer,
		InjectLayer:    req.InjectLayer,
		SourcePrompt:   req.SourcePrompt,
		TargetPrompt:   req.TargetPrompt,
		SourceToken:    source.SourceToken(),
		PatchPosition:  pos,
		SourceReprNorm: source.Norm(),
		Template:       req.Template,
	}
	log := e.log.With(zap.Int("extract", req.ExtractLayer), zap.Int("inject", req.InjectLayer))

	gen, iv, err := e.generatePatched(ctx, source, req.InjectLayer, pos, ids, req.TargetPrompt, log)
	res.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	if iv != nil {
		res.NormBefore, res.NormAfter = iv.Norms()
	}
	if err != nil {
		res.Error = err.Error()
		log.Warn("patch failed", zap.Error(err))
		return res, perrors.PatchExecution(req.ExtractLayer, req.InjectLayer, err)
	}

	res.PatchApplied = iv.Applied()
	res.GeneratedText = gen.Text
	res.NewTokens = gen.NewTokens
	log.Debug("patch complete",
		zap.Int("position", pos),
		zap.Bool("applied", res.PatchApplied),
		zap.String("new_tokens", res.NewTokens))
	return res, nil
}

// generatePatched arms an intervention, generates, and disarms. Panics in
// the model are reported as errors.
func (e *Engine) generatePatched(ctx context.Context, source ActivationVector, layer, pos int, ids []int, prompt string, log *zap.Logger) (gen Generation, iv *Intervention, err error) {
	iv = NewIntervention(source, layer, pos, log)
	if err := iv.Arm(e.model); err != nil {
		return Generation{}, iv, err
	}
	defer iv.Disarm()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()

	gen, err = generateIDs(ctx, e.model, ids, prompt, e.opts.MaxNewTokens)
	if err != nil {
		return Generation{}, iv, err
	}
	if ierr := iv.Err(); ierr != nil {
		return Generation{}, iv, ierr
	}
	return gen, iv, nil
}
