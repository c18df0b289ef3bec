package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/r3d91ll/patchscope/pkg/config"
)

// HashAlgorithm identifies the hashing algorithm used for run hashes.
const HashAlgorithm = "SHA-256"

// RunConfig holds the parameters that determine a run's outcome.
type RunConfig struct {
	ToolVersion  string            `json:"tool_version"`
	Model        string            `json:"model"`
	Experiment   string            `json:"experiment"`
	Seed         uint64            `json:"seed"`
	RequestCount int               `json:"request_count"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	Parameters   map[string]string `json:"parameters,omitempty"`
}

// RunHash is a computed hash with the configuration it covers.
type RunHash struct {
	Hash       string     `json:"hash"`
	Algorithm  string     `json:"algorithm"`
	ComputedAt time.Time  `json:"computed_at"`
	Config     *RunConfig `json:"config"`
}

// HashBuilder constructs run hashes.
type HashBuilder struct {
	config *RunConfig
}

// NewHashBuilder creates an empty HashBuilder.
func NewHashBuilder() *HashBuilder {
	return &HashBuilder{config: &RunConfig{Parameters: make(map[string]string)}}
}

func (hb *HashBuilder) WithToolVersion(version string) *HashBuilder {
	hb.config.ToolVersion = version
	return hb
}

func (hb *HashBuilder) WithModel(model string) *HashBuilder {
	hb.config.Model = model
	return hb
}

func (hb *HashBuilder) WithExperiment(name string) *HashBuilder {
	hb.config.Experiment = name
	return hb
}

func (hb *HashBuilder) WithSeed(seed uint64) *HashBuilder {
	hb.config.Seed = seed
	return hb
}

func (hb *HashBuilder) WithRequestCount(n int) *HashBuilder {
	hb.config.RequestCount = n
	return hb
}

// WithTimeRange sets the start and optional end time.
func (hb *HashBuilder) WithTimeRange(start time.Time, end *time.Time) *HashBuilder {
	hb.config.StartTime = start
	hb.config.EndTime = end
	return hb
}

// WithParameter adds a parameter. Keys are sorted during hashing.
func (hb *HashBuilder) WithParameter(key, value string) *HashBuilder {
	hb.config.Parameters[key] = value
	return hb
}

// WithParameters adds several parameters.
func (hb *HashBuilder) WithParameters(params map[string]string) *HashBuilder {
	for k, v := range params {
		hb.config.Parameters[k] = v
	}
	return hb
}

// WithConfig adds every outcome-relevant setting of cfg as parameters.
func (hb *HashBuilder) WithConfig(cfg *config.Config) *HashBuilder {
	return hb.WithParameters(ConfigParameters(cfg))
}

// Build computes the hash.
func (hb *HashBuilder) Build() *RunHash {
	return &RunHash{
		Hash:       computeHash(hb.config),
		Algorithm:  HashAlgorithm,
		ComputedAt: time.Now(),
		Config:     hb.config,
	}
}

// ConfigParameters flattens the settings of cfg that change results.
func ConfigParameters(cfg *config.Config) map[string]string {
	joinInts := func(xs []int) string {
		parts := make([]string, len(xs))
		for i, x := range xs {
			parts[i] = strconv.Itoa(x)
		}
		return strings.Join(parts, " ")
	}
	return map[string]string{
		"analysis.strong_threshold":  strconv.Itoa(cfg.Analysis.StrongThreshold),
		"analysis.partial_threshold": strconv.Itoa(cfg.Analysis.PartialThreshold),
		"generation.max_new_tokens":  strconv.Itoa(cfg.Generation.MaxNewTokens),
		"generation.marker":          cfg.Generation.Marker,
		"layers.total":               strconv.Itoa(cfg.Layers.Total),
		"layers.targeted":            joinInts(cfg.Layers.Targeted),
		"sweep.max_combinations":     strconv.Itoa(cfg.Sweep.MaxCombinations),
	}
}

// computeHash hashes a canonical, fixed-order rendering of c.
func computeHash(c *RunConfig) string {
	var sb strings.Builder
	field := func(k, v string) {
		sb.WriteString(k)
		sb.WriteString(":")
		sb.WriteString(v)
		sb.WriteString("|")
	}
	field("version", c.ToolVersion)
	field("model", c.Model)
	field("experiment", c.Experiment)
	field("seed", strconv.FormatUint(c.Seed, 10))
	field("requests", strconv.Itoa(c.RequestCount))
	field("start", c.StartTime.UTC().Format(time.RFC3339))
	if c.EndTime != nil {
		field("end", c.EndTime.UTC().Format(time.RFC3339))
	}
	if len(c.Parameters) > 0 {
		keys := make([]string, 0, len(c.Parameters))
		for k := range c.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + c.Parameters[k]
		}
		field("params", strings.Join(pairs, ","))
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first 8 characters of the hash.
func (h *RunHash) ShortHash() string {
	if len(h.Hash) >= 8 {
		return h.Hash[:8]
	}
	return h.Hash
}

// Verify recomputes the hash from Config.
func (h *RunHash) Verify() bool {
	if h.Config == nil {
		return false
	}
	return computeHash(h.Config) == h.Hash
}

// ToJSON renders the hash as indented JSON.
func (h *RunHash) ToJSON() (string, error) {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run hash: %w", err)
	}
	return string(data), nil
}
