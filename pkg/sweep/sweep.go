// Package sweep produces sets of (extract, inject) layer pairs.
//
// Every generator is pure: the same configuration always yields the same
// slice in the same order.
package sweep

import (
	"sort"

	"github.com/r3d91ll/patchscope/pkg/config"
	perrors "github.com/r3d91ll/patchscope/pkg/errors"
	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

// Named layer subsets.
const (
	SubsetTargeted = "targeted"
	SubsetEarly    = "early"
	SubsetMid      = "mid"
	SubsetLate     = "late"
)

// SubsetNames lists the subsets Subset accepts.
var SubsetNames = []string{SubsetTargeted, SubsetEarly, SubsetMid, SubsetLate}

// LayerSet is a named, static subset of layer indices.
type LayerSet struct {
	Name   string
	Layers []int
}

// Subset resolves a named subset from the layer configuration. The early,
// mid and late ranges are thinned to every second layer.
func Subset(layers config.LayersConfig, name string) (LayerSet, error) {
	var src []int
	switch name {
	case SubsetTargeted:
		return LayerSet{Name: name, Layers: append([]int(nil), layers.Targeted...)}, nil
	case SubsetEarly:
		src = layers.Early
	case SubsetMid:
		src = layers.Mid
	case SubsetLate:
		src = layers.Late
	default:
		return LayerSet{}, perrors.UnknownStrategy(name).
			WithContext("kind", "layer subset").
			WithSuggestion("Use one of: targeted, early, mid, late")
	}
	return LayerSet{Name: name, Layers: everyOther(src)}, nil
}

func everyOther(in []int) []int {
	out := make([]int, 0, (len(in)+1)/2)
	for i := 0; i < len(in); i += 2 {
		out = append(out, in[i])
	}
	return out
}

// Grid returns the Cartesian product of set with itself, extract-major.
func Grid(set LayerSet) []patchscope.Pair {
	pairs := make([]patchscope.Pair, 0, len(set.Layers)*len(set.Layers))
	for _, e := range set.Layers {
		for _, i := range set.Layers {
			pairs = append(pairs, patchscope.Pair{Extract: e, Inject: i})
		}
	}
	return pairs
}

// Quick returns the fixed pairs of the quick test.
func Quick(layers config.LayersConfig) []patchscope.Pair {
	pairs := make([]patchscope.Pair, 0, len(layers.QuickPairs))
	for _, p := range layers.QuickPairs {
		pairs = append(pairs, patchscope.Pair{Extract: p[0], Inject: p[1]})
	}
	return pairs
}

// Anchors are the extraction layers the strategic sweep fans out from.
type Anchors struct {
	Early []int
	Mid   []int
	Late  []int
}

// AnchorsFrom reads the strategic anchors from the layer configuration.
func AnchorsFrom(layers config.LayersConfig) Anchors {
	return Anchors{Early: layers.EarlyAnchors, Mid: layers.MidAnchors, Late: layers.LateAnchors}
}

// Strategic returns the deduplicated union of:
//   - diagonal pairs every max(1, total/10) layers
//   - early anchors injected forward into [e, min(e+15, total)) step 3
//   - mid anchors injected into [max(0, m-10), min(m+10, total)) step 3
//   - late anchors injected backward into [max(0, l-15), l) step 3
//
// Anchors outside [0, total) are ignored. The result is sorted by
// (extract, inject).
func Strategic(total int, a Anchors) []patchscope.Pair {
	if total < 1 {
		return nil
	}
	set := make(map[patchscope.Pair]struct{})
	add := func(e, i int) { set[patchscope.Pair{Extract: e, Inject: i}] = struct{}{} }

	step := max(1, total/10)
	for l := 0; l < total; l += step {
		add(l, l)
	}
	fan := func(anchors []int, lo, hi func(int) int) {
		for _, e := range anchors {
			if e < 0 || e >= total {
				continue
			}
			for i := lo(e); i < hi(e); i += 3 {
				add(e, i)
			}
		}
	}
	fan(a.Early,
		func(e int) int { return e },
		func(e int) int { return min(e+15, total) })
	fan(a.Mid,
		func(m int) int { return max(0, m-10) },
		func(m int) int { return min(m+10, total) })
	fan(a.Late,
		func(l int) int { return max(0, l-15) },
		func(l int) int { return l })

	pairs := make([]patchscope.Pair, 0, len(set))
	for p := range set {
		pairs = append(pairs, p)
	}
	sortPairs(pairs)
	return pairs
}

func sortPairs(pairs []patchscope.Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Extract != pairs[j].Extract {
			return pairs[i].Extract < pairs[j].Extract
		}
		return pairs[i].Inject < pairs[j].Inject
	})
}

// Diverse returns at most k pairs spread across the extract+inject spectrum.
// When len(pairs) <= k the input is returned as a copy. Otherwise the pairs
// are stably sorted by layer sum and k evenly spaced indices are taken.
func Diverse(pairs []patchscope.Pair, k int) []patchscope.Pair {
	if k <= 0 {
		return nil
	}
	sorted := append([]patchscope.Pair(nil), pairs...)
	if len(sorted) <= k {
		return sorted
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Extract+sorted[i].Inject < sorted[j].Extract+sorted[j].Inject
	})
	out := make([]patchscope.Pair, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, sorted[i*len(sorted)/k])
	}
	return out
}

// Capped is Strategic followed by Diverse.
func Capped(total int, a Anchors, k int) []patchscope.Pair {
	return Diverse(Strategic(total, a), k)
}
