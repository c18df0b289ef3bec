package patchscope

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/model"
	"github.com/r3d91ll/patchscope/pkg/model/reference"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	scriptedSource = "Albert Einstein"
	scriptedTarget = "The entity ? is"
)

func row(l, t, dim int) []float64 {
	out := make([]float64, dim)
	for k := range out {
		out[k] = float64((l+1)*1000 + t*10 + k)
	}
	return out
}

// -----------------------------------------------------------------------------
// Marker location
// -----------------------------------------------------------------------------

func TestFindMarkerIDs(t *testing.T) {
	tests := []struct {
		name   string
		pieces []string
		marker string
		want   int
	}{
		{"bare", []string{"<s>", "Who", "?"}, "?", 2},
		{"byte level prefix", []string{"<s>", "Who", "Ġ?"}, "?", 2},
		{"sentencepiece prefix", []string{"<s>", "▁Who", "▁?"}, "?", 2},
		{"surrounding whitespace", []string{"a", " ? "}, "?", 1},
		{"first occurrence", []string{"?", "Ġ?"}, "?", 0},
		{"case insensitive", []string{"a", "ĠX"}, "x", 1},
		{"marker trimmed", []string{"a", "Ġ?"}, " ? ", 1},
		{"absent", []string{"a", "b", "?:"}, "?", NotFound},
		{"empty marker", []string{"a", ""}, "", NotFound},
		{"no tokens", nil, "?", NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := sliceTokenizer(tt.pieces)
			assert.Equal(t, tt.want, FindMarkerIDs(tok, tok.Encode(""), tt.marker))
		})
	}
}

func TestFindMarker_ReferenceTokenizer(t *testing.T) {
	for _, style := range []string{reference.StyleByteLevel, reference.StyleSentencePiece} {
		tok, err := reference.NewTokenizer(style)
		require.NoError(t, err)

		text := "Describe the following entity in one sentence: ?:"
		pos := FindMarker(tok, text, "?")
		require.NotEqual(t, NotFound, pos, style)
		assert.Equal(t, "?", normalizePiece(tok.IDToToken(tok.Encode(text)[pos])))

		assert.Equal(t, NotFound, FindMarker(tok, "No placeholder at all.", "?"), style)
	}
}

// -----------------------------------------------------------------------------
// Vectors and generation helpers
// -----------------------------------------------------------------------------

func TestActivationVector_Immutable(t *testing.T) {
	src := []float64{3, 4}
	v := NewActivationVector(src, "p", 2, "tok")
	src[0] = 100

	got := v.Values()
	assert.Equal(t, []float64{3, 4}, got)
	got[1] = 100
	assert.Equal(t, []float64{3, 4}, v.Values())
	assert.InDelta(t, 5.0, v.Norm(), 1e-12)
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, "p", v.Prompt())
	assert.Equal(t, 2, v.Layer())
	assert.Equal(t, "tok", v.SourceToken())
	assert.Zero(t, ActivationVector{}.Norm())
}

func TestSuffix(t *testing.T) {
	tests := []struct {
		text, prompt, want string
	}{
		{"Q: ? A: George Washington was", "Q: ? A:", "George Washington was"},
		{"Q: ? A:", "Q: ? A:", ""},
		{"Q:", "Q: ? A:", ""},
		{"Q: ? A:   \n", "Q: ? A:", ""},
		{"abcdef", "abc", "def"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Suffix(tt.text, tt.prompt), "%q", tt.text)
	}
}

// -----------------------------------------------------------------------------
// Intervention state machine
// -----------------------------------------------------------------------------

func TestIntervention_Lifecycle(t *testing.T) {
	m := newScriptedModel(3, 2)
	iv := NewIntervention(NewActivationVector([]float64{7, 8}, "s", 0, ""), 1, 4, nil)
	assert.Equal(t, StateIdle, iv.State())

	require.NoError(t, iv.Arm(m))
	assert.Equal(t, StateArmed, iv.State())
	err := iv.Arm(m)
	assert.True(t, perrors.IsCode(err, perrors.ErrInterventionState))

	short := m.blockOutput(1, 4)
	iv.intercept(short)
	assert.Equal(t, StateArmed, iv.State(), "sequence not longer than position")
	assert.False(t, iv.Applied())

	long := m.blockOutput(1, 5)
	iv.intercept(long)
	assert.Equal(t, StateFired, iv.State())
	assert.True(t, iv.Applied())
	assert.Equal(t, []float64{7, 8}, long.Row(4))
	assert.Equal(t, row(1, 3, 2), long.Row(3), "other rows untouched")

	again := m.blockOutput(1, 6)
	iv.intercept(again)
	assert.Equal(t, row(1, 4, 2), again.Row(4), "fires at most once")
	assert.Equal(t, 3, iv.Invocations())

	before, after := iv.Norms()
	assert.Greater(t, before, after)
	assert.InDelta(t, 10.6301, after, 1e-4)

	iv.Disarm()
	iv.Disarm()
	assert.Equal(t, StateDisarmed, iv.State())
	assert.True(t, iv.Applied())
	assert.Empty(t, m.hooks)
}

func TestIntervention_DisarmedNeverFires(t *testing.T) {
	m := newScriptedModel(2, 2)
	iv := NewIntervention(NewActivationVector([]float64{1, 1}, "s", 0, ""), 0, 0, nil)
	require.NoError(t, iv.Arm(m))
	iv.Disarm()

	out := m.blockOutput(0, 3)
	iv.intercept(out)
	assert.False(t, iv.Applied())
	assert.Equal(t, row(0, 0, 2), out.Row(0))
}

func TestIntervention_InvalidLayer(t *testing.T) {
	m := newScriptedModel(2, 2)
	for _, l := range []int{-1, 2} {
		iv := NewIntervention(NewActivationVector([]float64{1, 1}, "s", 0, ""), l, 0, nil)
		err := iv.Arm(m)
		assert.True(t, perrors.IsCode(err, perrors.ErrLayerOutOfRange), "layer %d", l)
		assert.Equal(t, StateIdle, iv.State())
	}
	assert.Empty(t, m.hooks)
}

func TestIntervention_DimensionMismatch(t *testing.T) {
	m := newScriptedModel(2, 3)
	iv := NewIntervention(NewActivationVector([]float64{1, 1}, "s", 0, ""), 0, 0, nil)
	require.NoError(t, iv.Arm(m))
	defer iv.Disarm()

	out := m.blockOutput(0, 2)
	iv.intercept(out)
	assert.Error(t, iv.Err())
	assert.False(t, iv.Applied())
	assert.Equal(t, row(0, 0, 3), out.Row(0))
}

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

func TestExtract_LastPositionOfBlockOutput(t *testing.T) {
	m := newScriptedModel(4, 3)
	e := NewEngine(m, Options{})

	v, err := e.Extract(context.Background(), scriptedSource, 1)
	require.NoError(t, err)
	assert.Equal(t, row(1, 1, 3), v.Values(), "block 1 is hidden state 2")
	assert.Equal(t, " Einstein", v.SourceToken())
	assert.Equal(t, 1, v.Layer())

	for _, l := range []int{-1, 4} {
		_, err := e.Extract(context.Background(), scriptedSource, l)
		assert.True(t, perrors.IsCode(err, perrors.ErrLayerOutOfRange), "layer %d", l)
	}
	_, err = e.Extract(context.Background(), "", 0)
	assert.True(t, perrors.IsCode(err, perrors.ErrEmptyPrompt))
}

func TestExtract_PromptWithNoTokens(t *testing.T) {
	m := newScriptedModel(4, 3, "one")
	e := NewEngine(m, Options{})

	require.NotPanics(t, func() {
		_, err := e.Extract(context.Background(), "   ", 2)
		assert.True(t, perrors.IsCode(err, perrors.ErrEmptyPrompt))
	})

	require.NotPanics(t, func() {
		res, err := e.RunPatch(context.Background(), Request{
			SourcePrompt: "\t\n",
			TargetPrompt: "Tell me about ?",
			ExtractLayer: 1,
			InjectLayer:  1,
		})
		assert.Nil(t, res)
		assert.True(t, perrors.IsCode(err, perrors.ErrEmptyPrompt))
	})
}

func TestRunPatch_AppliesOnceAndTearsDown(t *testing.T) {
	m := newScriptedModel(4, 3, "one", "two", "three")
	e := NewEngine(m, Options{})

	res, err := e.RunPatch(context.Background(), Request{
		SourcePrompt: scriptedSource,
		TargetPrompt: scriptedTarget,
		ExtractLayer: 1,
		InjectLayer:  2,
		Template:     &TemplateRef{Category: "standard", Index: 0},
	})
	require.NoError(t, err)

	assert.True(t, res.PatchApplied)
	assert.Equal(t, 2, res.PatchPosition)
	assert.Equal(t, "The entity ? is one two three", res.GeneratedText)
	assert.Equal(t, "one two three", res.NewTokens)
	assert.Equal(t, Pair{Extract: 1, Inject: 2}, res.Pair())
	assert.Equal(t, "standard", res.Template.Category)
	assert.Empty(t, res.Error)
	assert.Greater(t, res.SourceReprNorm, 0.0)
	assert.Empty(t, m.hooks, "interception removed")

	calls := m.seen[2]
	require.Len(t, calls, 3, "one block invocation per generation step")
	assert.Equal(t, row(1, 1, 3), calls[0].Row(2), "first call is patched")
	assert.Equal(t, row(2, 2, 3), calls[1].Row(2), "later calls are not")
	assert.Equal(t, row(2, 2, 3), calls[2].Row(2))
}

func TestRunPatch_RejectsBadLayersBeforeWork(t *testing.T) {
	m := newScriptedModel(4, 3, "x")
	e := NewEngine(m, Options{})

	for _, req := range []Request{
		{SourcePrompt: scriptedSource, TargetPrompt: scriptedTarget, ExtractLayer: 4, InjectLayer: 0},
		{SourcePrompt: scriptedSource, TargetPrompt: scriptedTarget, ExtractLayer: 0, InjectLayer: -1},
	} {
		res, err := e.RunPatch(context.Background(), req)
		assert.Nil(t, res)
		assert.True(t, perrors.IsCode(err, perrors.ErrLayerOutOfRange))
	}
	assert.Zero(t, m.forwards)
	assert.Empty(t, m.hooks)
}

func TestRunPatch_MarkerMissing(t *testing.T) {
	m := newScriptedModel(4, 3, "x")
	e := NewEngine(m, Options{})

	res, err := e.RunPatch(context.Background(), Request{
		SourcePrompt: scriptedSource, TargetPrompt: "no placeholder here", ExtractLayer: 0, InjectLayer: 0,
	})
	assert.Nil(t, res)
	assert.True(t, perrors.IsCode(err, perrors.ErrMarkerNotFound))
	assert.Empty(t, m.hooks)
	assert.Empty(t, m.seen)
}

func TestRunPatch_CustomMarker(t *testing.T) {
	m := newScriptedModel(4, 3, "x")
	e := NewEngine(m, Options{Marker: "X"})
	assert.Equal(t, "X", e.Marker())

	res, err := e.RunPatch(context.Background(), Request{
		SourcePrompt: scriptedSource, TargetPrompt: "about x here", ExtractLayer: 0, InjectLayer: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PatchPosition)
}

func TestRunPatch_GenerationFailure(t *testing.T) {
	deviceLost := errors.New("device lost")
	m := newScriptedModel(4, 3, "one", "two", "three")
	m.failAt = 1
	m.failErr = deviceLost
	e := NewEngine(m, Options{})

	res, err := e.RunPatch(context.Background(), Request{
		SourcePrompt: scriptedSource, TargetPrompt: scriptedTarget, ExtractLayer: 0, InjectLayer: 3,
	})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, perrors.IsCode(err, perrors.ErrPatchExecution))
	assert.ErrorIs(t, err, deviceLost)
	assert.False(t, res.PatchApplied)
	assert.Contains(t, res.Error, "device lost")
	assert.Empty(t, res.NewTokens)
	assert.Empty(t, m.hooks, "interception removed on failure")
}

func TestRunPatch_ModelPanic(t *testing.T) {
	m := newScriptedModel(4, 3, "one")
	m.panicAt = 0
	e := NewEngine(m, Options{})

	res, err := e.RunPatch(context.Background(), Request{
		SourcePrompt: scriptedSource, TargetPrompt: scriptedTarget, ExtractLayer: 0, InjectLayer: 1,
	})
	require.NotNil(t, res)
	assert.True(t, perrors.IsCode(err, perrors.ErrPatchExecution))
	assert.Contains(t, res.Error, "scripted panic")
	assert.False(t, res.PatchApplied)
	assert.Empty(t, m.hooks)
}

func TestRunPatch_BusyLayer(t *testing.T) {
	m := newScriptedModel(4, 3, "one")
	other, err := m.Intercept(1, func(*model.Tensor) {})
	require.NoError(t, err)
	defer other.Remove()
	e := NewEngine(m, Options{})

	res, err := e.RunPatch(context.Background(), Request{
		SourcePrompt: scriptedSource, TargetPrompt: scriptedTarget, ExtractLayer: 0, InjectLayer: 1,
	})
	require.NotNil(t, res)
	assert.True(t, perrors.IsCode(err, perrors.ErrPatchExecution))
	assert.ErrorIs(t, err, perrors.New(perrors.ErrInterceptionBusy, perrors.CategoryModel, ""))
	assert.Len(t, m.hooks, 1, "a failed arm leaves other interceptions alone")
}

func TestRunPatch_UsesCache(t *testing.T) {
	m := newScriptedModel(4, 3, "one")
	cache := newCountingCache()
	e := NewEngine(m, Options{Cache: cache})
	req := Request{SourcePrompt: scriptedSource, TargetPrompt: scriptedTarget, ExtractLayer: 2, InjectLayer: 1}

	first, err := e.RunPatch(context.Background(), req)
	require.NoError(t, err)
	second, err := e.RunPatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, m.forwards)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.SourceToken, second.SourceToken)
	assert.Equal(t, first.SourceReprNorm, second.SourceReprNorm)
}

func TestRunPatch_Cancelled(t *testing.T) {
	m := newScriptedModel(4, 3, "one")
	e := NewEngine(m, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RunPatch(ctx, Request{
		SourcePrompt: scriptedSource, TargetPrompt: scriptedTarget, ExtractLayer: 0, InjectLayer: 1,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.hooks)
}

func TestRunPatch_ReferenceModel(t *testing.T) {
	for _, decode := range []string{reference.DecodeCached, reference.DecodeRecompute} {
		t.Run(decode, func(t *testing.T) {
			m, err := reference.New(reference.Options{
				Name: "ref", Identifier: "reference/6x16", Layers: 6, Hidden: 16, Seed: 3, Decode: decode,
			})
			require.NoError(t, err)
			e := NewEngine(m, Options{})

			target := "Describe the following entity in one sentence: ?:"
			res, err := e.RunPatch(context.Background(), Request{
				SourcePrompt: "George Washington", TargetPrompt: target, ExtractLayer: 1, InjectLayer: 3,
			})
			require.NoError(t, err)

			assert.True(t, res.PatchApplied)
			assert.Equal(t, FindMarker(m.Tokenizer(), target, "?"), res.PatchPosition)
			assert.True(t, strings.HasPrefix(res.GeneratedText, target))
			assert.Equal(t, Suffix(res.GeneratedText, target), res.NewTokens)
			assert.NotEmpty(t, res.SourceToken)
			assert.Zero(t, m.ActiveInterceptions())

			v, err := e.Extract(context.Background(), "George Washington", 1)
			require.NoError(t, err)
			out, err := m.Forward(context.Background(), m.Tokenizer().Encode("George Washington"),
				model.ForwardOptions{OutputHiddenStates: true})
			require.NoError(t, err)
			h := out.HiddenStates[2]
			assert.Equal(t, h.Row(h.Seq-1), v.Values())
		})
	}
}
