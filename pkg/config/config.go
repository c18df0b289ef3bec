// Package config handles patchscope configuration loading.
package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	perrors "github.com/r3d91ll/patchscope/pkg/errors"
)

// Template categories. Unknown categories fall back to CategoryStandard.
const (
	CategoryPatchscope = "patchscope"
	CategoryFewShot    = "few_shot"
	CategoryMinimal    = "minimal"
	CategoryContextual = "contextual"
	CategoryStandard   = "standard"
)

// CategoryOrder is the display and iteration order of the built-in categories.
var CategoryOrder = []string{
	CategoryPatchscope,
	CategoryFewShot,
	CategoryMinimal,
	CategoryContextual,
	CategoryStandard,
}

// Config is the root configuration structure.
type Config struct {
	DefaultModel string                 `yaml:"default_model"`
	Models       map[string]ModelConfig `yaml:"models"`
	Prompts      PromptsConfig          `yaml:"prompts"`
	Layers       LayersConfig           `yaml:"layers"`
	Analysis     AnalysisConfig         `yaml:"analysis"`
	Generation   GenerationConfig       `yaml:"generation"`
	Sweep        SweepConfig            `yaml:"sweep"`
	Session      SessionConfig          `yaml:"session"`
}

// ModelConfig describes how to acquire one model.
type ModelConfig struct {
	Provider     string `yaml:"provider"`
	Identifier   string `yaml:"identifier"`
	DType        string `yaml:"dtype"`
	Quantization string `yaml:"quantization,omitempty"`
	// Decode selects the reference model's decode strategy
	// ("recompute" or "cached"). Other providers ignore it.
	Decode string `yaml:"decode,omitempty"`
}

// PromptsConfig holds source entities, target templates and the keywords
// used to score continuations.
type PromptsConfig struct {
	Sources   []string            `yaml:"sources"`
	Templates map[string][]string `yaml:"templates"`
	Keywords  map[string][]string `yaml:"keywords"`
}

// LayersConfig holds the layer geometry and the named subsets.
type LayersConfig struct {
	Total    int   `yaml:"total"`
	Early    []int `yaml:"early"`
	Mid      []int `yaml:"mid"`
	Late     []int `yaml:"late"`
	Targeted []int `yaml:"targeted"`

	// Strategic sweep anchors.
	EarlyAnchors []int `yaml:"early_anchors"`
	MidAnchors   []int `yaml:"mid_anchors"`
	LateAnchors  []int `yaml:"late_anchors"`

	// QuickPairs are the (extract, inject) pairs of the quick test.
	QuickPairs [][2]int `yaml:"quick_pairs"`
}

// AnalysisConfig holds classification thresholds.
type AnalysisConfig struct {
	StrongThreshold  int `yaml:"strong_threshold"`
	PartialThreshold int `yaml:"partial_threshold"`
	OutputMaxLength  int `yaml:"output_max_length"`
}

// GenerationConfig holds decoding settings.
type GenerationConfig struct {
	MaxNewTokens int    `yaml:"max_new_tokens"`
	Marker       string `yaml:"marker"`
}

// SweepConfig holds sweep limits and the chooser seed.
type SweepConfig struct {
	MaxCombinations           int    `yaml:"max_combinations"`
	ComprehensiveCombinations int    `yaml:"comprehensive_combinations"`
	MultiPromptCount          int    `yaml:"multi_prompt_count"`
	TemplatesPerCategory      int    `yaml:"templates_per_category"`
	Seed                      uint64 `yaml:"seed"`
}

// SessionConfig holds session persistence settings.
type SessionConfig struct {
	ExportDir       string `yaml:"export_dir"`
	HistoryFile     string `yaml:"history_file"`
	ResultsFile     string `yaml:"results_file"`
	SummaryFile     string `yaml:"summary_file"`
	CSVFile         string `yaml:"csv_file"`
	CSVDialect      string `yaml:"csv_dialect"`
	DetailedLogging bool   `yaml:"detailed_logging"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DefaultModel: "reference-28",
		Models: map[string]ModelConfig{
			"reference-28": {
				Provider:   "reference",
				Identifier: "reference/28x48",
				DType:      "float32",
				Decode:     "cached",
			},
			"reference-28-recompute": {
				Provider:   "reference",
				Identifier: "reference/28x48",
				DType:      "float32",
				Decode:     "recompute",
			},
			"reference-small": {
				Provider:   "reference",
				Identifier: "reference/12x24",
				DType:      "float32",
				Decode:     "cached",
			},
		},
		Prompts: PromptsConfig{
			Sources:   append([]string(nil), defaultSources...),
			Templates: copyLists(defaultTemplates),
			Keywords:  copyLists(defaultKeywords),
		},
		Layers: LayersConfig{
			Total:        28,
			Early:        intRange(0, 7),
			Mid:          intRange(7, 21),
			Late:         intRange(21, 28),
			Targeted:     []int{2, 7, 14, 21, 26},
			EarlyAnchors: []int{2, 5, 8},
			MidAnchors:   []int{12, 16, 20},
			LateAnchors:  []int{22, 25},
			QuickPairs:   [][2]int{{2, 2}, {7, 14}, {14, 21}, {21, 26}},
		},
		Analysis: AnalysisConfig{
			StrongThreshold:  2,
			PartialThreshold: 1,
			OutputMaxLength:  50,
		},
		Generation: GenerationConfig{
			MaxNewTokens: 15,
			Marker:       "?",
		},
		Sweep: SweepConfig{
			MaxCombinations:           50,
			ComprehensiveCombinations: 30,
			MultiPromptCount:          3,
			TemplatesPerCategory:      3,
			Seed:                      42,
		},
		Session: SessionConfig{
			ExportDir:       ".",
			HistoryFile:     "experiment_history.log",
			ResultsFile:     "detailed_results.json",
			SummaryFile:     "experiment_summary.txt",
			CSVFile:         "results.csv",
			CSVDialect:      "standard",
			DetailedLogging: true,
		},
	}
}

// Load loads configuration from a file, overlaying it on Default, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perrors.ConfigNotFound(path)
		}
		return nil, perrors.IOWrap(err, perrors.ErrConfigNotFound, "failed to read config").
			WithContext("path", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, perrors.ConfigParseError(path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns default if not found.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return perrors.ConfigWrap(err, perrors.ErrConfigWriteFailed, "failed to create config directory").
			WithContext("path", path)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return perrors.ConfigWrap(err, perrors.ErrIOMarshalFailed, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return perrors.AttachSuggestions(
			perrors.ConfigWrap(err, perrors.ErrConfigWriteFailed, "failed to write config file").
				WithContext("path", path))
	}
	return nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	if _, err := os.Stat("patchscope.yaml"); err == nil {
		return "patchscope.yaml"
	}
	if _, err := os.Stat("config/patchscope.yaml"); err == nil {
		return "config/patchscope.yaml"
	}
	return "patchscope.yaml"
}

// InitConfig creates a default config file if it doesn't exist.
func InitConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return Default().Save(path)
}

// Validate checks structural invariants of the configuration.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.PartialThreshold < 1 {
		return perrors.ConfigInvalid("analysis.partial_threshold", "must be at least 1")
	}
	if a.StrongThreshold <= a.PartialThreshold {
		return perrors.ConfigInvalid("analysis.strong_threshold", "must be greater than partial_threshold")
	}
	if c.Layers.Total < 1 {
		return perrors.ConfigInvalid("layers.total", "must be positive")
	}
	subsets := map[string][]int{
		"layers.early":    c.Layers.Early,
		"layers.mid":      c.Layers.Mid,
		"layers.late":     c.Layers.Late,
		"layers.targeted": c.Layers.Targeted,
	}
	for name, layers := range subsets {
		for _, l := range layers {
			if l < 0 || l >= c.Layers.Total {
				return perrors.ConfigInvalid(name, "layer outside [0, total)").
					WithInt("layer", l)
			}
		}
	}
	for _, p := range c.Layers.QuickPairs {
		if p[0] < 0 || p[1] < 0 {
			return perrors.ConfigInvalid("layers.quick_pairs", "negative layer index")
		}
	}
	if c.Generation.MaxNewTokens < 1 {
		return perrors.ConfigInvalid("generation.max_new_tokens", "must be positive")
	}
	if strings.TrimSpace(c.Generation.Marker) == "" {
		return perrors.ConfigInvalid("generation.marker", "must not be empty")
	}
	if c.Sweep.MaxCombinations < 1 {
		return perrors.ConfigInvalid("sweep.max_combinations", "must be positive")
	}
	if _, ok := c.Models[c.DefaultModel]; !ok {
		return perrors.ConfigInvalid("default_model", "not present in models").
			WithContext("model", c.DefaultModel)
	}
	return nil
}

// Model returns the named model configuration. An empty name selects
// DefaultModel.
func (c *Config) Model(name string) (ModelConfig, error) {
	if name == "" {
		name = c.DefaultModel
	}
	m, ok := c.Models[name]
	if !ok {
		return ModelConfig{}, perrors.ModelNotFound(name)
	}
	return m, nil
}

// ModelNames returns the configured model names, sorted.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for n := range c.Models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Templates returns a copy of the templates of a category. Unknown
// categories fall back to the standard list.
func (c *Config) Templates(category string) []string {
	t, ok := c.Prompts.Templates[category]
	if !ok {
		t = c.Prompts.Templates[CategoryStandard]
	}
	return append([]string(nil), t...)
}

// Categories returns the configured template categories: built-in ones in
// CategoryOrder, then any extra ones sorted.
func (c *Config) Categories() []string {
	var out []string
	seen := make(map[string]bool)
	for _, cat := range CategoryOrder {
		if _, ok := c.Prompts.Templates[cat]; ok {
			out = append(out, cat)
			seen[cat] = true
		}
	}
	var extra []string
	for cat := range c.Prompts.Templates {
		if !seen[cat] {
			extra = append(extra, cat)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Keywords returns a copy of the expected keywords for an entity. Unknown
// entities fall back to the lowercased entity name.
func (c *Config) Keywords(entity string) []string {
	if kw, ok := c.Prompts.Keywords[entity]; ok && len(kw) > 0 {
		return append([]string(nil), kw...)
	}
	return []string{strings.ToLower(entity)}
}

// StandardTarget returns the first standard template, the default target
// of the single-template experiments.
func (c *Config) StandardTarget() string {
	t := c.Templates(CategoryStandard)
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

func intRange(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

func copyLists(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}
