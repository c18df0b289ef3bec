package patchscope

import (
	"context"
	"strings"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/model"
)

// wordTokenizer splits on whitespace and marks every word after the first
// with a byte-level space prefix. Its vocabulary grows on demand.
type wordTokenizer struct {
	pieces []string
	index  map[string]int
}

func newWordTokenizer() *wordTokenizer {
	t := &wordTokenizer{index: map[string]int{}}
	t.id("</s>")
	return t
}

func (t *wordTokenizer) id(piece string) int {
	if id, ok := t.index[piece]; ok {
		return id
	}
	t.index[piece] = len(t.pieces)
	t.pieces = append(t.pieces, piece)
	return len(t.pieces) - 1
}

func (t *wordTokenizer) Encode(text string) []int {
	var ids []int
	for i, w := range strings.Fields(text) {
		if i > 0 {
			w = "Ġ" + w
		}
		ids = append(ids, t.id(w))
	}
	return ids
}

func (t *wordTokenizer) Decode(ids []int, skipSpecial bool) string {
	var b strings.Builder
	for _, id := range ids {
		if id == t.EOS() && skipSpecial {
			continue
		}
		p := t.IDToToken(id)
		if rest, ok := strings.CutPrefix(p, "Ġ"); ok {
			b.WriteString(" ")
			p = rest
		}
		b.WriteString(p)
	}
	return b.String()
}

func (t *wordTokenizer) IDToToken(id int) string {
	if id < 0 || id >= len(t.pieces) {
		return ""
	}
	return t.pieces[id]
}

func (t *wordTokenizer) EOS() int { return 0 }

// sliceTokenizer reports a fixed piece per id; Encode returns every id.
type sliceTokenizer []string

func (s sliceTokenizer) Encode(string) []int {
	ids := make([]int, len(s))
	for i := range ids {
		ids[i] = i
	}
	return ids
}
func (s sliceTokenizer) Decode([]int, bool) string { return "" }
func (s sliceTokenizer) IDToToken(id int) string  { return s[id] }
func (s sliceTokenizer) EOS() int                 { return -1 }

// scriptedModel emits a fixed continuation. Every generation step
// re-evaluates the full sequence, so an interception sees one call per step
// with a growing sequence length. Block l writes (l+1)*1000 + t*10 + k.
type scriptedModel struct {
	layers, dim int
	tok         *wordTokenizer
	script      []string
	failAt      int
	failErr     error
	panicAt     int

	hooks    map[int]model.InterceptFunc
	seen     map[int][]*model.Tensor
	forwards int
}

func newScriptedModel(layers, dim int, script ...string) *scriptedModel {
	return &scriptedModel{
		layers:  layers,
		dim:     dim,
		tok:     newWordTokenizer(),
		script:  script,
		failAt:  -1,
		panicAt: -1,
		hooks:   map[int]model.InterceptFunc{},
		seen:    map[int][]*model.Tensor{},
	}
}

type fakeInterception struct {
	m     *scriptedModel
	layer int
}

func (f fakeInterception) Remove() { delete(f.m.hooks, f.layer) }

func (m *scriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "fake", Layers: m.layers, Hidden: m.dim}
}
func (m *scriptedModel) NumLayers() int             { return m.layers }
func (m *scriptedModel) HiddenSize() int            { return m.dim }
func (m *scriptedModel) Tokenizer() model.Tokenizer { return m.tok }

func (m *scriptedModel) Layer(i int) (model.LayerInfo, error) {
	if i < 0 || i >= m.layers {
		return model.LayerInfo{}, perrors.InvalidLayer("layer", i, m.layers)
	}
	return model.LayerInfo{Index: i, Kind: "scripted"}, nil
}

func (m *scriptedModel) Intercept(layer int, fn model.InterceptFunc) (model.Interception, error) {
	if layer < 0 || layer >= m.layers {
		return nil, perrors.InvalidLayer("inject", layer, m.layers)
	}
	if _, busy := m.hooks[layer]; busy {
		return nil, perrors.InterceptionBusy(layer)
	}
	m.hooks[layer] = fn
	return fakeInterception{m: m, layer: layer}, nil
}

func (m *scriptedModel) blockOutput(l, seq int) *model.Tensor {
	out := model.NewTensor(seq, m.dim)
	for t := 0; t < seq; t++ {
		for k, row := 0, out.Row(t); k < m.dim; k++ {
			row[k] = float64((l+1)*1000 + t*10 + k)
		}
	}
	return out
}

func (m *scriptedModel) run(seq int) []*model.Tensor {
	states := []*model.Tensor{m.blockOutput(-1, seq)}
	for l := 0; l < m.layers; l++ {
		out := m.blockOutput(l, seq)
		if fn, ok := m.hooks[l]; ok {
			fn(out)
			m.seen[l] = append(m.seen[l], out.Clone())
		}
		states = append(states, out)
	}
	return states
}

func (m *scriptedModel) Forward(ctx context.Context, ids []int, opts model.ForwardOptions) (*model.ForwardOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.forwards++
	states := m.run(len(ids))
	if !opts.OutputHiddenStates {
		states = nil
	}
	return &model.ForwardOutput{HiddenStates: states}, nil
}

func (m *scriptedModel) Generate(ctx context.Context, ids []int, opts model.GenerateOptions) ([]int, error) {
	seq := append([]int(nil), ids...)
	for step := 0; step < opts.MaxNewTokens && step < len(m.script); step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.run(len(seq))
		if step == m.panicAt {
			panic("scripted panic")
		}
		if step == m.failAt {
			return nil, m.failErr
		}
		seq = append(seq, m.tok.id("Ġ"+m.script[step]))
	}
	return seq, nil
}

// countingCache is an in-memory Cache that records hits.
type countingCache struct {
	entries map[string][]float64
	tokens  map[string]string
	hits    int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: map[string][]float64{}, tokens: map[string]string{}}
}

func cacheKey(modelName, prompt string, layer int) string {
	return modelName + "\x00" + prompt + "\x00" + string(rune('0'+layer))
}

func (c *countingCache) Lookup(modelName, prompt string, layer int) ([]float64, string, bool) {
	k := cacheKey(modelName, prompt, layer)
	v, ok := c.entries[k]
	if ok {
		c.hits++
	}
	return v, c.tokens[k], ok
}

func (c *countingCache) Store(modelName, prompt string, layer int, values []float64, token string) {
	k := cacheKey(modelName, prompt, layer)
	c.entries[k] = append([]float64(nil), values...)
	c.tokens[k] = token
}
