// Package reference implements a deterministic in-process causal model.
//
// Each block mixes a position's normalized state with the causal mean of
// all normalized states up to that position and adds the result back to
// the residual stream:
//
//	y_t = x_t + a * tanh(W * rms(x_t) + U * mean_{s<=t} rms(x_s))
//
// Logits are computed against the tied embedding matrix. Weights are drawn
// from a seeded generator, so a given identifier always yields the same
// model.
package reference

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/model"
)

// Decode strategies.
const (
	// DecodeRecompute re-evaluates the whole sequence for every new token.
	DecodeRecompute = "recompute"
	// DecodeCached evaluates the prompt once and then one position per
	// step against running per-block state.
	DecodeCached = "cached"
)

const (
	residualScale = 0.5
	rmsEpsilon    = 1e-6
	blockKind     = "residual_causal_mix"
)

// Options configures New.
type Options struct {
	Name       string
	Identifier string
	Layers     int
	Hidden     int
	Seed       uint64
	Decode     string
	Style      string
	Logger     *zap.Logger
}

type block struct {
	w *mat.Dense
	u *mat.Dense
}

// Model is the reference model. It is safe for sequential use; Intercept
// and Remove may be called from any goroutine.
type Model struct {
	opts   Options
	tok    *Tokenizer
	embed  *mat.Dense
	blocks []block
	log    *zap.Logger

	mu    sync.Mutex
	hooks map[int]*interception
}

var _ model.Model = (*Model)(nil)

// New builds a model with deterministic weights.
func New(opts Options) (*Model, error) {
	if opts.Layers < 1 {
		return nil, perrors.ValidationOutOfRange("layers", opts.Layers, 1, math.MaxInt32)
	}
	if opts.Hidden < 2 {
		return nil, perrors.ValidationOutOfRange("hidden", opts.Hidden, 2, math.MaxInt32)
	}
	switch opts.Decode {
	case "":
		opts.Decode = DecodeCached
	case DecodeCached, DecodeRecompute:
	default:
		return nil, perrors.UnknownStrategy(opts.Decode).WithContext("kind", "decode")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	tok, err := NewTokenizer(opts.Style)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(opts.Seed, uint64(opts.Layers)<<32|uint64(opts.Hidden)))
	d := opts.Hidden
	m := &Model{
		opts:  opts,
		tok:   tok,
		embed: randomDense(rng, tok.Size(), d, 1),
		log:   opts.Logger,
		hooks: make(map[int]*interception),
	}
	std := 1 / math.Sqrt(float64(d))
	for i := 0; i < opts.Layers; i++ {
		m.blocks = append(m.blocks, block{
			w: randomDense(rng, d, d, std),
			u: randomDense(rng, d, d, std),
		})
	}
	return m, nil
}

func randomDense(rng *rand.Rand, r, c int, std float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return mat.NewDense(r, c, data)
}

// Info describes the model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:       m.opts.Name,
		Provider:   ProviderName,
		Identifier: m.opts.Identifier,
		Structure:  "reference.blocks",
		DType:      "float64",
		Decode:     m.opts.Decode,
		Layers:     len(m.blocks),
		Hidden:     m.opts.Hidden,
		Vocab:      m.tok.Size(),
		Device:     "cpu",
	}
}

func (m *Model) NumLayers() int             { return len(m.blocks) }
func (m *Model) HiddenSize() int            { return m.opts.Hidden }
func (m *Model) Tokenizer() model.Tokenizer { return m.tok }

// Layer returns the structural description of block i.
func (m *Model) Layer(i int) (model.LayerInfo, error) {
	if i < 0 || i >= len(m.blocks) {
		return model.LayerInfo{}, perrors.InvalidLayer("layer", i, len(m.blocks))
	}
	return model.LayerInfo{Index: i, Kind: blockKind}, nil
}

// -----------------------------------------------------------------------------
// Interception
// -----------------------------------------------------------------------------

type interception struct {
	m     *Model
	layer int
	fn    model.InterceptFunc
	once  sync.Once
}

func (ic *interception) Remove() {
	ic.once.Do(func() {
		ic.m.mu.Lock()
		defer ic.m.mu.Unlock()
		if ic.m.hooks[ic.layer] == ic {
			delete(ic.m.hooks, ic.layer)
		}
	})
}

// Intercept registers fn on block layer. A layer holds at most one
// interception at a time.
func (m *Model) Intercept(layer int, fn model.InterceptFunc) (model.Interception, error) {
	if layer < 0 || layer >= len(m.blocks) {
		return nil, perrors.InvalidLayer("inject", layer, len(m.blocks))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.hooks[layer]; busy {
		return nil, perrors.InterceptionBusy(layer)
	}
	ic := &interception{m: m, layer: layer, fn: fn}
	m.hooks[layer] = ic
	return ic, nil
}

// ActiveInterceptions returns the number of registered interceptions.
func (m *Model) ActiveInterceptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hooks)
}

func (m *Model) hook(layer int) model.InterceptFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ic, ok := m.hooks[layer]; ok {
		return ic.fn
	}
	return nil
}

// -----------------------------------------------------------------------------
// Evaluation
// -----------------------------------------------------------------------------

// state carries, per block, the running sum of normalized inputs and the
// number of positions seen.
type state struct {
	sums  [][]float64
	count int
}

func (m *Model) newState() *state {
	s := &state{sums: make([][]float64, len(m.blocks))}
	for i := range s.sums {
		s.sums[i] = make([]float64, m.opts.Hidden)
	}
	return s
}

func (m *Model) embedIDs(ids []int) (*model.Tensor, error) {
	x := model.NewTensor(len(ids), m.opts.Hidden)
	for t, id := range ids {
		if id < 0 || id >= m.tok.Size() {
			return nil, perrors.Newf(perrors.ErrForwardFailed, perrors.CategoryModel, "token id %d out of vocabulary", id)
		}
		copy(x.Row(t), m.embed.RawRowView(id))
	}
	return x, nil
}

// evaluate runs ids through every block, appending positions to st. When
// capture is non-nil it receives the embedding and every block output.
func (m *Model) evaluate(ids []int, st *state, capture *[]*model.Tensor) ([]float64, error) {
	x, err := m.embedIDs(ids)
	if err != nil {
		return nil, err
	}
	if capture != nil {
		*capture = append(*capture, x.Clone())
	}

	d := m.opts.Hidden
	norm := make([]float64, d)
	mean := make([]float64, d)
	var a, b mat.VecDense
	for l, blk := range m.blocks {
		out := model.NewTensor(x.Seq, d)
		sum := st.sums[l]
		for t := 0; t < x.Seq; t++ {
			row := x.Row(t)
			rmsNorm(norm, row)
			floats.Add(sum, norm)
			floats.ScaleTo(mean, 1/float64(st.count+t+1), sum)

			a.MulVec(blk.w, mat.NewVecDense(d, norm))
			b.MulVec(blk.u, mat.NewVecDense(d, mean))
			o := out.Row(t)
			for k := 0; k < d; k++ {
				o[k] = row[k] + residualScale*math.Tanh(a.AtVec(k)+b.AtVec(k))
			}
		}
		if fn := m.hook(l); fn != nil {
			fn(out)
		}
		if capture != nil {
			*capture = append(*capture, out.Clone())
		}
		x = out
	}
	st.count += x.Seq
	return m.logits(x.Row(x.Seq - 1)), nil
}

func (m *Model) logits(last []float64) []float64 {
	norm := make([]float64, len(last))
	rmsNorm(norm, last)
	var z mat.VecDense
	z.MulVec(m.embed, mat.NewVecDense(len(norm), norm))
	out := make([]float64, z.Len())
	for id := range out {
		if m.tok.Generatable(id) {
			out[id] = z.AtVec(id)
		} else {
			out[id] = math.Inf(-1)
		}
	}
	return out
}

func rmsNorm(dst, x []float64) {
	r := math.Sqrt(floats.Dot(x, x)/float64(len(x)) + rmsEpsilon)
	floats.ScaleTo(dst, 1/r, x)
}

// Forward evaluates ids once.
func (m *Model) Forward(ctx context.Context, ids []int, opts model.ForwardOptions) (*model.ForwardOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, perrors.EmptyPrompt("")
	}
	var capture *[]*model.Tensor
	var states []*model.Tensor
	if opts.OutputHiddenStates {
		capture = &states
	}
	logits, err := m.evaluate(ids, m.newState(), capture)
	if err != nil {
		return nil, err
	}
	return &model.ForwardOutput{HiddenStates: states, Logits: logits}, nil
}

// Generate decodes greedily with the configured strategy.
func (m *Model) Generate(ctx context.Context, ids []int, opts model.GenerateOptions) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, perrors.EmptyPrompt("")
	}
	seq := append([]int(nil), ids...)
	if opts.MaxNewTokens <= 0 {
		return seq, nil
	}

	st := m.newState()
	logits, err := m.evaluate(seq, st, nil)
	if err != nil {
		return nil, err
	}
	for step := 0; ; step++ {
		next := argmax(logits)
		seq = append(seq, next)
		m.log.Debug("decode step", zap.Int("step", step), zap.Int("token", next))
		if next == m.tok.EOS() || step+1 >= opts.MaxNewTokens {
			return seq, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.opts.Decode == DecodeRecompute {
			logits, err = m.evaluate(seq, m.newState(), nil)
		} else {
			logits, err = m.evaluate(seq[len(seq)-1:], st, nil)
		}
		if err != nil {
			return nil, err
		}
	}
}

// argmax returns the lowest index of the maximum value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
