// Package model defines the capability patchscope needs from a sequence
// model: structural queries, forward evaluation with hidden-state capture,
// bounded greedy generation and transient per-layer interception.
package model

import (
	"context"
)

// Tensor is a row-major [Seq x Dim] matrix of hidden states for a single
// sequence.
type Tensor struct {
	Seq  int
	Dim  int
	Data []float64
}

// NewTensor allocates a zeroed tensor.
func NewTensor(seq, dim int) *Tensor {
	return &Tensor{Seq: seq, Dim: dim, Data: make([]float64, seq*dim)}
}

// Row returns row i. The returned slice aliases the tensor.
func (t *Tensor) Row(i int) []float64 {
	return t.Data[i*t.Dim : (i+1)*t.Dim]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{Seq: t.Seq, Dim: t.Dim, Data: make([]float64, len(t.Data))}
	copy(c.Data, t.Data)
	return c
}

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	// Encode tokenizes text, including any special prefix tokens the model
	// expects.
	Encode(text string) []int
	// Decode renders ids back into text.
	Decode(ids []int, skipSpecial bool) string
	// IDToToken returns the raw vocabulary piece for id, including
	// byte-level or sentencepiece space prefixes.
	IDToToken(id int) string
	// EOS returns the end-of-sequence id.
	EOS() int
}

// LayerInfo describes one transformation block.
type LayerInfo struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
}

// Info is the static description of a loaded model.
type Info struct {
	Name       string `json:"name"`
	Provider   string `json:"provider"`
	Identifier string `json:"identifier"`
	Structure  string `json:"structure_type"`
	DType      string `json:"dtype"`
	Decode     string `json:"decode,omitempty"`
	Layers     int    `json:"total_layers"`
	Hidden     int    `json:"hidden_size"`
	Vocab      int    `json:"vocab_size"`
	Device     string `json:"device"`
}

// ForwardOptions controls a forward evaluation.
type ForwardOptions struct {
	// OutputHiddenStates requests the per-layer hidden states.
	OutputHiddenStates bool
}

// ForwardOutput is the result of a forward evaluation.
type ForwardOutput struct {
	// HiddenStates has NumLayers()+1 entries when requested. Index 0 is the
	// embedding output, index i+1 the output of block i.
	HiddenStates []*Tensor
	// Logits are the next-token scores at the last position.
	Logits []float64
}

// GenerateOptions bounds a greedy generation.
type GenerateOptions struct {
	MaxNewTokens int
}

// InterceptFunc observes, and may modify in place, the output of a block.
// It is invoked once per forward evaluation of that block.
type InterceptFunc func(hidden *Tensor)

// Interception is a registered InterceptFunc. Remove is idempotent.
type Interception interface {
	Remove()
}

// Model is the uniform adapter over a sequence model.
type Model interface {
	Info() Info
	NumLayers() int
	HiddenSize() int
	Layer(i int) (LayerInfo, error)
	Tokenizer() Tokenizer

	// Forward evaluates ids in inference mode.
	Forward(ctx context.Context, ids []int, opts ForwardOptions) (*ForwardOutput, error)

	// Generate decodes greedily from ids and returns the full sequence
	// (prompt followed by new tokens), stopping at EOS or the budget.
	Generate(ctx context.Context, ids []int, opts GenerateOptions) ([]int, error)

	// Intercept registers fn on the output of block layer.
	Intercept(layer int, fn InterceptFunc) (Interception, error)
}
