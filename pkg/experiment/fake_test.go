package experiment

import (
	"context"
	"strings"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/model"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

// wordTokenizer splits on whitespace; words after the first carry a
// byte-level space prefix.
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

// unpatched fills rows that no interception touched.
const unpatched = -1000

// oracleModel answers according to reply. The hidden state of block l is
// filled with l, so a patched row reveals which layer it was extracted
// from and the reply can depend on the (extract, inject) pair.
type oracleModel struct {
	layers, dim int
	tok         *wordTokenizer
	reply       func(source string, extract, inject int) string
	fail        map[patchscope.Pair]error

	hooks      map[int]model.InterceptFunc
	lastSource string
	generates  int
}

func newOracleModel(layers int, reply func(source string, extract, inject int) string) *oracleModel {
	return &oracleModel{
		layers: layers,
		dim:    4,
		tok:    newWordTokenizer(),
		reply:  reply,
		fail:   map[patchscope.Pair]error{},
		hooks:  map[int]model.InterceptFunc{},
	}
}

type oracleInterception struct {
	m     *oracleModel
	layer int
}

func (o oracleInterception) Remove() { delete(o.m.hooks, o.layer) }

func (m *oracleModel) Info() model.Info {
	return model.Info{Name: "oracle", Provider: "fake", Layers: m.layers, Hidden: m.dim}
}
func (m *oracleModel) NumLayers() int             { return m.layers }
func (m *oracleModel) HiddenSize() int            { return m.dim }
func (m *oracleModel) Tokenizer() model.Tokenizer { return m.tok }

func (m *oracleModel) Layer(i int) (model.LayerInfo, error) {
	if i < 0 || i >= m.layers {
		return model.LayerInfo{}, perrors.InvalidLayer("query", i, m.layers)
	}
	return model.LayerInfo{Index: i, Kind: "oracle"}, nil
}

func (m *oracleModel) Intercept(layer int, fn model.InterceptFunc) (model.Interception, error) {
	if layer < 0 || layer >= m.layers {
		return nil, perrors.InvalidLayer("intercept", layer, m.layers)
	}
	if _, busy := m.hooks[layer]; busy {
		return nil, perrors.InterceptionBusy(layer)
	}
	m.hooks[layer] = fn
	return oracleInterception{m: m, layer: layer}, nil
}

func filled(seq, dim int, v float64) *model.Tensor {
	t := model.NewTensor(seq, dim)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

func (m *oracleModel) Forward(ctx context.Context, ids []int, opts model.ForwardOptions) (*model.ForwardOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.lastSource = m.tok.Decode(ids, true)
	out := &model.ForwardOutput{}
	if opts.OutputHiddenStates {
		for s := 0; s <= m.layers; s++ {
			out.HiddenStates = append(out.HiddenStates, filled(len(ids), m.dim, float64(s-1)))
		}
	}
	return out, nil
}

func (m *oracleModel) Generate(ctx context.Context, ids []int, opts model.GenerateOptions) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.generates++
	extract, inject := -1, -1
	for layer, fn := range m.hooks {
		h := filled(len(ids), m.dim, unpatched)
		fn(h)
		for r := 0; r < h.Seq; r++ {
			if v := h.Row(r)[0]; v != unpatched {
				extract, inject = int(v), layer
			}
		}
	}
	if err, ok := m.fail[patchscope.Pair{Extract: extract, Inject: inject}]; ok {
		return nil, err
	}
	seq := append([]int(nil), ids...)
	for i, w := range strings.Fields(m.reply(m.lastSource, extract, inject)) {
		if i >= opts.MaxNewTokens {
			break
		}
		seq = append(seq, m.tok.id("Ġ"+w))
	}
	return seq, nil
}

// washingtonOracle answers strongly only for George Washington at E14→I21.
func washingtonOracle(source string, extract, inject int) string {
	if source == "George Washington" && extract == 14 && inject == 21 {
		return "the first president of the united states"
	}
	return "nothing much"
}

func silentOracle(string, int, int) string { return "nothing much" }

// recorder collects events.
type recorder struct {
	events []Event
	onEv   func(Event)
}

func (r *recorder) Record(e Event) {
	r.events = append(r.events, e)
	if r.onEv != nil {
		r.onEv(e)
	}
}

func (r *recorder) types() []EventType {
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) count(t EventType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// fakeProgress counts calls.
type fakeProgress struct {
	total                               int
	starts, increments, completes, fails int
}

func (p *fakeProgress) Start()          { p.starts++ }
func (p *fakeProgress) Increment()      { p.increments++ }
func (p *fakeProgress) Complete(string) { p.completes++ }
func (p *fakeProgress) Fail(string)     { p.fails++ }
