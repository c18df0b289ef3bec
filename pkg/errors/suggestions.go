package errors

import (
	"runtime"
	"sort"
	"strings"
)

// Context keys used to select appropriate suggestions.
const (
	// ContextOS is the operating system (e.g., "linux", "darwin")
	ContextOS = "os"

	// ContextArch is the CPU architecture (e.g., "amd64", "arm64")
	ContextArch = "arch"

	// ContextProvider is the model provider name (e.g., "reference")
	ContextProvider = "provider"

	// ContextDecode is the decode strategy of the model ("recompute", "cached")
	ContextDecode = "decode"
)

// ProviderReference is the name of the built-in in-process provider.
const ProviderReference = "reference"

// Suggestion represents a remediation suggestion with optional conditions.
type Suggestion struct {
	// Text is the suggestion message displayed to the user.
	Text string

	// Conditions are key-value pairs that must ALL match the error context.
	// Empty conditions match any context.
	Conditions map[string]string

	// Priority orders suggestions; higher is shown first.
	Priority int
}

// Matches returns true if this suggestion's conditions match the given context.
func (s *Suggestion) Matches(ctx map[string]string) bool {
	for key, value := range s.Conditions {
		if ctx[key] != value {
			return false
		}
	}
	return true
}

// Registry maps error codes to their remediation suggestions.
type Registry struct {
	suggestions map[string][]Suggestion
}

// NewRegistry creates a new suggestion registry.
func NewRegistry() *Registry {
	return &Registry{suggestions: make(map[string][]Suggestion)}
}

// Register adds an unconditional suggestion for an error code.
func (r *Registry) Register(code, text string) *Registry {
	return r.RegisterSuggestion(code, Suggestion{Text: text})
}

// RegisterWithCondition adds a suggestion that only applies when the
// error context matches conditions.
func (r *Registry) RegisterWithCondition(code, text string, conditions map[string]string) *Registry {
	return r.RegisterSuggestion(code, Suggestion{Text: text, Conditions: conditions})
}

// RegisterWithPriority adds a suggestion with explicit priority.
func (r *Registry) RegisterWithPriority(code, text string, priority int) *Registry {
	return r.RegisterSuggestion(code, Suggestion{Text: text, Priority: priority})
}

// RegisterSuggestion adds a complete Suggestion struct.
func (r *Registry) RegisterSuggestion(code string, suggestion Suggestion) *Registry {
	r.suggestions[code] = append(r.suggestions[code], suggestion)
	return r
}

// Get returns the suggestion texts for code that match ctx, highest
// priority first. Registration order breaks ties.
func (r *Registry) Get(code string, ctx map[string]string) []string {
	var matching []Suggestion
	for _, s := range r.suggestions[code] {
		if s.Matches(ctx) {
			matching = append(matching, s)
		}
	}
	if len(matching) == 0 {
		return nil
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Priority > matching[j].Priority
	})
	out := make([]string, len(matching))
	for i, s := range matching {
		out[i] = s.Text
	}
	return out
}

// HasSuggestions returns true if any suggestions exist for the error code.
func (r *Registry) HasSuggestions(code string) bool {
	return len(r.suggestions[code]) > 0
}

// Codes returns all error codes that have registered suggestions, sorted.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.suggestions))
	for code := range r.suggestions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// DefaultContext returns a context map with current platform information.
func DefaultContext() map[string]string {
	return map[string]string{
		ContextOS:   runtime.GOOS,
		ContextArch: runtime.GOARCH,
	}
}

// MergeContext combines context maps. Later maps win on duplicate keys.
func MergeContext(contexts ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, ctx := range contexts {
		for k, v := range ctx {
			result[k] = v
		}
	}
	return result
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global registry holding built-in suggestions.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// GetSuggestions returns suggestions for an error code using the default
// registry and the current platform context.
func GetSuggestions(code string) []string {
	return defaultRegistry.Get(code, DefaultContext())
}

func init() {
	registerConfigSuggestions()
	registerModelSuggestions()
	registerPatchSuggestions()
	registerSweepSuggestions()
	registerIOSuggestions()
}

func registerConfigSuggestions() {
	defaultRegistry.
		RegisterWithPriority(ErrConfigNotFound, "Run 'patchscope init' to create a default configuration", 10).
		Register(ErrConfigNotFound, "Pass --config to point at an existing YAML file")

	defaultRegistry.
		RegisterWithPriority(ErrConfigParseFailed, "Check the YAML syntax (indentation must use spaces)", 10).
		Register(ErrConfigParseFailed, "Compare against the file written by 'patchscope init'")

	defaultRegistry.
		Register(ErrConfigInvalid, "strong_threshold must be greater than partial_threshold, and partial_threshold at least 1").
		Register(ErrConfigInvalid, "Layer subsets must lie within [0, total_layers)")

	defaultRegistry.
		Register(ErrConfigWriteFailed, "Check that the config directory is writable")
}

func registerModelSuggestions() {
	defaultRegistry.
		Register(ErrModelNotFound, "Run 'patchscope models' to list configured models")

	defaultRegistry.
		RegisterWithPriority(ErrProviderNotFound, "Use provider 'reference' for the built-in model", 10)

	defaultRegistry.
		Register(ErrModelLoadFailed, "Check the model identifier and provider in the config").
		RegisterWithCondition(ErrModelLoadFailed,
			"The reference provider accepts identifiers of the form 'reference/<layers>x<hidden>'",
			map[string]string{ContextProvider: ProviderReference})

	defaultRegistry.
		Register(ErrInterceptionBusy, "Remove the previous interception before arming another on the same layer")
}

func registerPatchSuggestions() {
	defaultRegistry.
		RegisterWithPriority(ErrLayerOutOfRange, "Valid layers are 0..total_layers-1; run 'patchscope models' to see the layer count", 10)

	defaultRegistry.
		RegisterWithPriority(ErrMarkerNotFound, "Ensure the target template contains the marker '?'", 10).
		Register(ErrMarkerNotFound, "Run 'patchscope validate' to check all templates")

	defaultRegistry.
		Register(ErrPatchExecution, "Re-run with --verbose to see the per-step log").
		RegisterWithCondition(ErrPatchExecution,
			"With cached decoding the patched row persists in the cache; try the recompute strategy to compare",
			map[string]string{ContextDecode: "cached"})

	defaultRegistry.
		Register(ErrEmptyPrompt, "Prompts must contain at least one token")
}

func registerSweepSuggestions() {
	defaultRegistry.
		Register(ErrSweepEmpty, "Increase layers.total or sweep.max_combinations")

	defaultRegistry.
		Register(ErrUnknownStrategy, "Valid subsets: targeted, early, mid, late").
		Register(ErrCommandMissingArgs, "Type /help to see command usage").
		Register(ErrCommandInvalidArg, "Type /help to see command usage")
}

func registerIOSuggestions() {
	defaultRegistry.
		Register(ErrIOWriteFailed, "Check that the --out directory exists and is writable").
		RegisterWithCondition(ErrIOWriteFailed, "On Windows, close programs holding the file open",
			map[string]string{ContextOS: "windows"})
}

// AttachSuggestions adds registry suggestions to err, matching against the
// platform context merged with the error's own context.
func AttachSuggestions(err *PatchError) *PatchError {
	if err == nil {
		return nil
	}
	ctx := MergeContext(DefaultContext(), err.Context)
	if s := defaultRegistry.Get(err.Code, ctx); len(s) > 0 {
		err.Suggestions = append(err.Suggestions, s...)
	}
	return err
}

// NewWithSuggestions creates a new PatchError and attaches registry suggestions.
func NewWithSuggestions(code string, category Category, message string) *PatchError {
	return AttachSuggestions(New(code, category, message))
}

// WrapWithSuggestions wraps an error and attaches registry suggestions.
func WrapWithSuggestions(cause error, code string, category Category, message string) *PatchError {
	return AttachSuggestions(Wrap(cause, code, category, message))
}

// FormatSuggestionList formats a list of suggestions for display.
func FormatSuggestionList(suggestions []string) string {
	lines := make([]string, len(suggestions))
	for i, s := range suggestions {
		lines[i] = "→ " + s
	}
	return strings.Join(lines, "\n")
}
