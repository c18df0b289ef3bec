package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// PatchError Construction Tests
// -----------------------------------------------------------------------------

func TestNew(t *testing.T) {
	pe := New("TEST_ERROR", CategoryConfig, "test message")

	if pe.Code != "TEST_ERROR" {
		t.Errorf("expected Code 'TEST_ERROR', got %q", pe.Code)
	}
	if pe.Category != CategoryConfig {
		t.Errorf("expected Category config, got %v", pe.Category)
	}
	if pe.Context == nil {
		t.Error("expected Context map to be initialized")
	}
	if pe.Cause != nil || pe.Suggestions != nil {
		t.Errorf("expected no cause and no suggestions, got %v %v", pe.Cause, pe.Suggestions)
	}
}

func TestPatchError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *PatchError
		expected string
	}{
		{
			name:     "without cause",
			err:      New(ErrMarkerNotFound, CategoryMarker, "marker not found"),
			expected: "MARKER_NOT_FOUND: marker not found",
		},
		{
			name:     "with cause",
			err:      New(ErrPatchExecution, CategoryPatch, "generate failed").WithCause(fmt.Errorf("boom")),
			expected: "PATCH_EXECUTION_FAILED: generate failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Builder Pattern Tests
// -----------------------------------------------------------------------------

func TestBuilders(t *testing.T) {
	pe := New("TEST", CategoryLayer, "test").
		WithContext("role", "inject").
		WithInt("layer", 30).
		WithSuggestion("first").
		WithSuggestions("second", "third")

	if pe.Context["role"] != "inject" || pe.Context["layer"] != "30" {
		t.Errorf("unexpected context %v", pe.Context)
	}
	if len(pe.Suggestions) != 3 || pe.Suggestions[0] != "first" {
		t.Errorf("unexpected suggestions %v", pe.Suggestions)
	}
	if got := pe.ContextString(); got != `layer="30", role="inject"` {
		t.Errorf("ContextString() = %q", got)
	}
}

func TestWithContext_NilMap(t *testing.T) {
	pe := &PatchError{Code: "X"}
	pe.WithContext("k", "v")
	if pe.Context["k"] != "v" {
		t.Errorf("expected context to be created, got %v", pe.Context)
	}
}

// -----------------------------------------------------------------------------
// errors.Is / errors.As Tests
// -----------------------------------------------------------------------------

func TestIs_MatchesByCode(t *testing.T) {
	a := InvalidLayer("extract", 40, 28)
	b := New(ErrLayerOutOfRange, CategoryLayer, "different message")

	if !errors.Is(a, b) {
		t.Error("errors with the same code should match")
	}
	if errors.Is(a, New(ErrMarkerNotFound, CategoryMarker, "")) {
		t.Error("errors with different codes should not match")
	}
}

func TestUnwrapChain(t *testing.T) {
	root := errors.New("cuda out of memory")
	pe := PatchExecution(7, 14, root)
	wrapped := fmt.Errorf("sweep: %w", pe)

	if !errors.Is(wrapped, root) {
		t.Error("expected root cause to be reachable")
	}
	got, ok := AsPatchError(wrapped)
	if !ok {
		t.Fatal("expected PatchError in chain")
	}
	if got.Context["extract"] != "7" || got.Context["inject"] != "14" {
		t.Errorf("unexpected context %v", got.Context)
	}
	if !IsCode(wrapped, ErrPatchExecution) || !IsCategory(wrapped, CategoryPatch) {
		t.Error("IsCode/IsCategory should see through wrapping")
	}
}

func TestAsPatchError_Plain(t *testing.T) {
	if _, ok := AsPatchError(nil); ok {
		t.Error("nil should not be a PatchError")
	}
	if _, ok := AsPatchError(errors.New("plain")); ok {
		t.Error("plain error should not be a PatchError")
	}
	if IsCode(errors.New("plain"), ErrInternal) {
		t.Error("plain error should not match a code")
	}
}

// -----------------------------------------------------------------------------
// Domain Constructor Tests
// -----------------------------------------------------------------------------

func TestDomainConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *PatchError
		code     string
		category Category
	}{
		{"invalid layer", InvalidLayer("inject", -1, 28), ErrLayerOutOfRange, CategoryLayer},
		{"marker", MarkerNotFound("Tell me about it.", "?"), ErrMarkerNotFound, CategoryMarker},
		{"patch", PatchExecution(1, 2, errors.New("x")), ErrPatchExecution, CategoryPatch},
		{"busy", InterceptionBusy(3), ErrInterceptionBusy, CategoryModel},
		{"config missing", ConfigNotFound("/tmp/x.yaml"), ErrConfigNotFound, CategoryConfig},
		{"config invalid", ConfigInvalid("analysis.strong_threshold", "must exceed partial"), ErrConfigInvalid, CategoryConfig},
		{"provider", ProviderNotFound("hf", []string{"reference"}), ErrProviderNotFound, CategoryModel},
		{"strategy", UnknownStrategy("upper"), ErrUnknownStrategy, CategorySweep},
		{"write", WriteFailed("/ro/out.json", errors.New("read-only")), ErrIOWriteFailed, CategoryIO},
		{"panic", InternalPanic("boom"), ErrInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Category != tt.category {
				t.Errorf("Category = %q, want %q", tt.err.Category, tt.category)
			}
			if CategoryLabel(tt.err.Category) == "Error" {
				t.Errorf("category %q has no label", tt.err.Category)
			}
		})
	}
}

func TestInvalidLayer_Message(t *testing.T) {
	pe := InvalidLayer("extract", 30, 28)
	if !strings.Contains(pe.Message, "30") || !strings.Contains(pe.Message, "28") {
		t.Errorf("message should name layer and bound: %q", pe.Message)
	}
	if !pe.HasSuggestions() {
		t.Error("expected registry suggestions to be attached")
	}
}
