package analysis

import (
	"sort"

	"github.com/r3d91ll/patchscope/pkg/patchscope"
)

// Hotspot list sizes.
const (
	TopLayers = 5
	TopPairs  = 10
)

// NoStrongMatches is the message of an empty Hotspots.
const NoStrongMatches = "No strong matches found"

// LayerCount is a layer with its number of strong matches.
type LayerCount struct {
	Layer int `json:"layer"`
	Count int `json:"count"`
}

// PairCount is a layer pair with its number of strong matches.
type PairCount struct {
	Pair  patchscope.Pair `json:"pair"`
	Count int             `json:"count"`
}

// Range is an inclusive layer interval.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Hotspots ranks the layers that produced strong matches. When Empty is set
// every other field is zero and Message explains why.
type Hotspots struct {
	Empty        bool         `json:"empty"`
	Message      string       `json:"message,omitempty"`
	BestExtract  []LayerCount `json:"best_extract_layers,omitempty"`
	BestInject   []LayerCount `json:"best_inject_layers,omitempty"`
	BestPairs    []PairCount  `json:"best_layer_pairs,omitempty"`
	ExtractRange *Range       `json:"extract_range,omitempty"`
	InjectRange  *Range       `json:"inject_range,omitempty"`
}

// counter tallies keys and remembers first-seen order.
type counter[K comparable] struct {
	order  []K
	counts map[K]int
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{counts: make(map[K]int)}
}

func (c *counter[K]) add(k K) {
	if _, ok := c.counts[k]; !ok {
		c.order = append(c.order, k)
	}
	c.counts[k]++
}

// top returns at most n keys by descending count, ties in first-seen order.
func (c *counter[K]) top(n int) []K {
	keys := append([]K(nil), c.order...)
	sort.SliceStable(keys, func(i, j int) bool { return c.counts[keys[i]] > c.counts[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// FindHotspots aggregates the strong bucket of a.
func FindHotspots(a *Analysis) *Hotspots {
	if a == nil || len(a.Strong) == 0 {
		return &Hotspots{Empty: true, Message: NoStrongMatches}
	}

	extract := newCounter[int]()
	inject := newCounter[int]()
	pairs := newCounter[patchscope.Pair]()
	first := a.Strong[0]
	er := Range{Min: first.ExtractLayer, Max: first.ExtractLayer}
	ir := Range{Min: first.InjectLayer, Max: first.InjectLayer}
	for _, r := range a.Strong {
		extract.add(r.ExtractLayer)
		inject.add(r.InjectLayer)
		pairs.add(r.Pair())
		er.Min, er.Max = min(er.Min, r.ExtractLayer), max(er.Max, r.ExtractLayer)
		ir.Min, ir.Max = min(ir.Min, r.InjectLayer), max(ir.Max, r.InjectLayer)
	}

	h := &Hotspots{ExtractRange: &er, InjectRange: &ir}
	for _, l := range extract.top(TopLayers) {
		h.BestExtract = append(h.BestExtract, LayerCount{Layer: l, Count: extract.counts[l]})
	}
	for _, l := range inject.top(TopLayers) {
		h.BestInject = append(h.BestInject, LayerCount{Layer: l, Count: inject.counts[l]})
	}
	for _, p := range pairs.top(TopPairs) {
		h.BestPairs = append(h.BestPairs, PairCount{Pair: p, Count: pairs.counts[p]})
	}
	return h
}

// BestPair returns the top pair, if any.
func (h *Hotspots) BestPair() (PairCount, bool) {
	if h == nil || len(h.BestPairs) == 0 {
		return PairCount{}, false
	}
	return h.BestPairs[0], true
}
