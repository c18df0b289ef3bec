package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/r3d91ll/patchscope/pkg/config"
)

func baseBuilder() *HashBuilder {
	start := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	end := time.Date(2024, 6, 15, 11, 45, 0, 0, time.UTC)
	return NewHashBuilder().
		WithToolVersion("1.0.0").
		WithModel("reference-28").
		WithExperiment("targeted").
		WithSeed(42).
		WithRequestCount(25).
		WithTimeRange(start, &end)
}

// TestHashDeterminism verifies that identical inputs produce the same hash.
func TestHashDeterminism(t *testing.T) {
	h1 := baseBuilder().WithParameter("a", "1").WithParameter("b", "2").Build()
	h2 := baseBuilder().WithParameter("b", "2").WithParameter("a", "1").Build()

	if h1.Hash != h2.Hash {
		t.Errorf("parameter insertion order changed the hash: %s vs %s", h1.Hash, h2.Hash)
	}
	if len(h1.Hash) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(h1.Hash))
	}
	if h1.Algorithm != HashAlgorithm {
		t.Errorf("Algorithm = %q, want %q", h1.Algorithm, HashAlgorithm)
	}
}

func TestHashSensitivity(t *testing.T) {
	base := baseBuilder().Build().Hash
	variants := map[string]*HashBuilder{
		"seed":       baseBuilder().WithSeed(43),
		"model":      baseBuilder().WithModel("reference-small"),
		"experiment": baseBuilder().WithExperiment("sweep"),
		"requests":   baseBuilder().WithRequestCount(26),
		"parameter":  baseBuilder().WithParameter("x", "y"),
		"no end":     baseBuilder().WithTimeRange(time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC), nil),
	}
	for name, b := range variants {
		if b.Build().Hash == base {
			t.Errorf("changing %s did not change the hash", name)
		}
	}
}

func TestShortHashAndVerify(t *testing.T) {
	h := baseBuilder().Build()
	if got := h.ShortHash(); got != h.Hash[:8] {
		t.Errorf("ShortHash() = %q", got)
	}
	if !h.Verify() {
		t.Error("Verify() = false for an untouched hash")
	}
	h.Config.Seed = 7
	if h.Verify() {
		t.Error("Verify() = true after modifying the config")
	}
	if (&RunHash{Hash: "abc"}).ShortHash() != "abc" {
		t.Error("short hashes should be returned whole")
	}
	if (&RunHash{Hash: "abc"}).Verify() {
		t.Error("Verify() without config should be false")
	}
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default()
	params := ConfigParameters(cfg)
	if params["layers.targeted"] != "2 7 14 21 26" {
		t.Errorf("layers.targeted = %q", params["layers.targeted"])
	}
	if params["analysis.strong_threshold"] != "2" {
		t.Errorf("analysis.strong_threshold = %q", params["analysis.strong_threshold"])
	}

	h1 := baseBuilder().WithConfig(cfg).Build()
	cfg.Analysis.StrongThreshold = 3
	h2 := baseBuilder().WithConfig(cfg).Build()
	if h1.Hash == h2.Hash {
		t.Error("threshold change did not change the hash")
	}
}

func TestToJSON(t *testing.T) {
	h := baseBuilder().Build()
	s, err := h.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var back RunHash
	if err := json.Unmarshal([]byte(s), &back); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if back.Hash != h.Hash || back.Config.Seed != 42 {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if !back.Verify() {
		t.Error("decoded hash should verify")
	}
}
