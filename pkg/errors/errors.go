// Package errors defines PatchError, the error type returned across
// patchscope. Callers branch on Code; the console renders Context and
// Suggestions.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Category groups codes by the stage that raised them.
type Category string

const (
	CategoryConfig     Category = "config"
	CategoryModel      Category = "model"
	CategoryLayer      Category = "layer"
	CategoryMarker     Category = "marker"
	CategoryPatch      Category = "patch" // raised inside a guarded generate call
	CategorySweep      Category = "sweep"
	CategoryAnalysis   Category = "analysis"
	CategoryCommand    Category = "command"
	CategoryValidation Category = "validation"
	CategoryIO         Category = "io"
	CategoryInternal   Category = "internal"
)

// PatchError carries a stable Code (see codes.go) plus the details needed to
// explain a failed extraction, patch or console command. Context values are
// pre-formatted strings so they render the same in logs and in the console.
type PatchError struct {
	Code        string
	Category    Category
	Message     string
	Context     map[string]string
	Cause       error
	Suggestions []string
}

func (e *PatchError) Error() string {
	if e.Cause == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *PatchError) Unwrap() error { return e.Cause }

// Is matches any *PatchError with the same code, so a sentinel built with
// New can be used as an errors.Is target.
func (e *PatchError) Is(target error) bool {
	t, ok := target.(*PatchError)
	return ok && t.Code == e.Code
}

func New(code string, category Category, message string) *PatchError {
	return &PatchError{Code: code, Category: category, Message: message, Context: map[string]string{}}
}

func Newf(code string, category Category, format string, args ...any) *PatchError {
	return New(code, category, fmt.Sprintf(format, args...))
}

// Wrap attaches err as the cause of a new PatchError.
func Wrap(err error, code string, category Category, message string) *PatchError {
	return New(code, category, message).WithCause(err)
}

// WithContext records key=value and returns e.
func (e *PatchError) WithContext(key, value string) *PatchError {
	if e.Context == nil {
		e.Context = map[string]string{}
	}
	e.Context[key] = value
	return e
}

// WithInt records an integer detail such as a layer index or position.
func (e *PatchError) WithInt(key string, v int) *PatchError {
	return e.WithContext(key, strconv.Itoa(v))
}

func (e *PatchError) WithCause(cause error) *PatchError {
	e.Cause = cause
	return e
}

func (e *PatchError) WithSuggestion(s string) *PatchError {
	e.Suggestions = append(e.Suggestions, s)
	return e
}

func (e *PatchError) WithSuggestions(s ...string) *PatchError {
	e.Suggestions = append(e.Suggestions, s...)
	return e
}

func (e *PatchError) HasContext() bool     { return len(e.Context) > 0 }
func (e *PatchError) HasSuggestions() bool { return len(e.Suggestions) > 0 }

// ContextString renders Context as key="value" pairs in key order.
func (e *PatchError) ContextString() string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%q", k, e.Context[k])
	}
	return b.String()
}

// AsPatchError returns the first PatchError in err's chain.
func AsPatchError(err error) (*PatchError, bool) {
	var pe *PatchError
	if err != nil && errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func IsCategory(err error, category Category) bool {
	pe, ok := AsPatchError(err)
	return ok && pe.Category == category
}

// IsCode reports whether err's chain holds a PatchError with code. Runner
// policy (skip, reject or record) is keyed on this.
func IsCode(err error, code string) bool {
	pe, ok := AsPatchError(err)
	return ok && pe.Code == code
}
