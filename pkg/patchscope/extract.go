package patchscope

import (
	"context"

	"go.uber.org/zap"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/model"
)

// Cache stores extracted vectors so that repeated (prompt, layer) lookups
// skip the forward pass.
type Cache interface {
	Lookup(modelName, prompt string, layer int) (values []float64, token string, ok bool)
	Store(modelName, prompt string, layer int, values []float64, token string)
}

// Extract runs one forward pass over prompt and returns the output of block
// layer at the last position. Hidden state 0 is the embedding output, so
// block layer is hidden state layer+1.
func (e *Engine) Extract(ctx context.Context, prompt string, layer int) (ActivationVector, error) {
	if prompt == "" {
		return ActivationVector{}, perrors.EmptyPrompt(prompt)
	}
	if layer < 0 || layer >= e.model.NumLayers() {
		return ActivationVector{}, perrors.InvalidLayer("extract", layer, e.model.NumLayers())
	}
	if e.opts.Cache != nil {
		if values, token, ok := e.opts.Cache.Lookup(e.name, prompt, layer); ok {
			return NewActivationVector(values, prompt, layer, token), nil
		}
	}

	ids := e.tok.Encode(prompt)
	if len(ids) == 0 {
		return ActivationVector{}, perrors.EmptyPrompt(prompt)
	}
	out, err := e.model.Forward(ctx, ids, model.ForwardOptions{OutputHiddenStates: true})
	if err != nil {
		return ActivationVector{}, perrors.ModelWrap(err, perrors.ErrForwardFailed, "extraction forward pass failed").
			WithInt("layer", layer)
	}
	if layer+1 >= len(out.HiddenStates) {
		return ActivationVector{}, perrors.InvalidLayer("extract", layer, len(out.HiddenStates)-1)
	}
	h := out.HiddenStates[layer+1]
	if h.Seq == 0 {
		return ActivationVector{}, perrors.EmptyPrompt(prompt)
	}
	last := ids[len(ids)-1]
	token := e.tok.Decode([]int{last}, false)
	vec := NewActivationVector(h.Row(h.Seq-1), prompt, layer, token)

	if e.opts.Cache != nil {
		e.opts.Cache.Store(e.name, prompt, layer, vec.values, token)
	}
	e.log.Debug("extracted",
		zap.Int("layer", layer),
		zap.String("token", token),
		zap.Float64("norm", vec.Norm()))
	return vec, nil
}
