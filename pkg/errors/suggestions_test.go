package errors

import (
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// Registry Tests
// -----------------------------------------------------------------------------

func TestRegistry_PriorityOrder(t *testing.T) {
	r := NewRegistry().
		Register("CODE", "low").
		RegisterWithPriority("CODE", "high", 10).
		Register("CODE", "low-2")

	got := r.Get("CODE", nil)
	want := []string{"high", "low", "low-2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Get() = %v, want %v", got, want)
	}
}

func TestRegistry_Conditions(t *testing.T) {
	r := NewRegistry().
		Register("CODE", "always").
		RegisterWithCondition("CODE", "cached only", map[string]string{ContextDecode: "cached"})

	if got := r.Get("CODE", map[string]string{ContextDecode: "recompute"}); len(got) != 1 {
		t.Errorf("expected 1 suggestion for recompute, got %v", got)
	}
	if got := r.Get("CODE", map[string]string{ContextDecode: "cached"}); len(got) != 2 {
		t.Errorf("expected 2 suggestions for cached, got %v", got)
	}
	if got := r.Get("MISSING", nil); got != nil {
		t.Errorf("expected nil for unknown code, got %v", got)
	}
}

func TestRegistry_Codes(t *testing.T) {
	r := NewRegistry().Register("B", "b").Register("A", "a")
	codes := r.Codes()
	if len(codes) != 2 || codes[0] != "A" || codes[1] != "B" {
		t.Errorf("Codes() = %v", codes)
	}
	if !r.HasSuggestions("A") || r.HasSuggestions("C") {
		t.Error("HasSuggestions mismatch")
	}
}

func TestMergeContext(t *testing.T) {
	got := MergeContext(map[string]string{"a": "1", "b": "1"}, map[string]string{"b": "2"})
	if got["a"] != "1" || got["b"] != "2" {
		t.Errorf("MergeContext() = %v", got)
	}
}

// -----------------------------------------------------------------------------
// Built-in Suggestions Tests
// -----------------------------------------------------------------------------

func TestBuiltinSuggestions(t *testing.T) {
	codes := []string{
		ErrConfigNotFound,
		ErrConfigParseFailed,
		ErrConfigInvalid,
		ErrProviderNotFound,
		ErrModelLoadFailed,
		ErrLayerOutOfRange,
		ErrMarkerNotFound,
		ErrPatchExecution,
		ErrUnknownStrategy,
		ErrIOWriteFailed,
	}
	for _, code := range codes {
		if len(GetSuggestions(code)) == 0 {
			t.Errorf("no built-in suggestions for %s", code)
		}
	}
}

func TestAttachSuggestions_UsesErrorContext(t *testing.T) {
	plain := AttachSuggestions(New(ErrModelLoadFailed, CategoryModel, "x"))
	ref := ModelLoadFailed(ProviderReference, "reference/bad", nil)

	if len(ref.Suggestions) <= len(plain.Suggestions) {
		t.Errorf("reference provider should add a conditional suggestion: %v vs %v",
			ref.Suggestions, plain.Suggestions)
	}
	if AttachSuggestions(nil) != nil {
		t.Error("AttachSuggestions(nil) should return nil")
	}
}

func TestFormatSuggestionList(t *testing.T) {
	if FormatSuggestionList(nil) != "" {
		t.Error("empty list should format to empty string")
	}
	if got := FormatSuggestionList([]string{"a", "b"}); got != "→ a\n→ b" {
		t.Errorf("FormatSuggestionList() = %q", got)
	}
}
