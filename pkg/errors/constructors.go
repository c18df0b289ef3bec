package errors

import "fmt"

// -----------------------------------------------------------------------------
// Category constructors
// -----------------------------------------------------------------------------

// Config creates a configuration error.
func Config(code, message string) *PatchError {
	return New(code, CategoryConfig, message)
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(cause error, code, message string) *PatchError {
	return Wrap(cause, code, CategoryConfig, message)
}

// Model creates a model error.
func Model(code, message string) *PatchError {
	return New(code, CategoryModel, message)
}

// ModelWrap wraps an error as a model error.
func ModelWrap(cause error, code, message string) *PatchError {
	return Wrap(cause, code, CategoryModel, message)
}

// Command creates a console command error.
func Command(code, message string) *PatchError {
	return New(code, CategoryCommand, message)
}

// Validation creates a validation error.
func Validation(code, message string) *PatchError {
	return New(code, CategoryValidation, message)
}

// IOWrap wraps an error as an I/O error.
func IOWrap(cause error, code, message string) *PatchError {
	return Wrap(cause, code, CategoryIO, message)
}

// Internal creates an internal error.
func Internal(message string) *PatchError {
	return New(ErrInternal, CategoryInternal, message)
}

// -----------------------------------------------------------------------------
// Domain constructors
// -----------------------------------------------------------------------------

// InvalidLayer reports a layer index outside [0, total).
func InvalidLayer(role string, layer, total int) *PatchError {
	return AttachSuggestions(
		Newf(ErrLayerOutOfRange, CategoryLayer, "%s layer %d out of range [0, %d)", role, layer, total).
			WithContext("role", role).
			WithInt("layer", layer).
			WithInt("total_layers", total))
}

// MarkerNotFound reports a target prompt without the placeholder marker.
func MarkerNotFound(prompt, marker string) *PatchError {
	return AttachSuggestions(
		Newf(ErrMarkerNotFound, CategoryMarker, "marker %q not found in target prompt", marker).
			WithContext("prompt", prompt).
			WithContext("marker", marker))
}

// PatchExecution wraps a failure inside the guarded generate call.
func PatchExecution(extract, inject int, cause error) *PatchError {
	return AttachSuggestions(
		Wrap(cause, ErrPatchExecution, CategoryPatch, "generation under intervention failed").
			WithInt("extract", extract).
			WithInt("inject", inject))
}

// InterventionState reports an intervention driven out of order.
func InterventionState(op, state string) *PatchError {
	return Newf(ErrInterventionState, CategoryPatch, "cannot %s intervention in state %s", op, state).
		WithContext("state", state)
}

// EmptyPrompt reports a prompt that tokenized to zero tokens.
func EmptyPrompt(prompt string) *PatchError {
	return AttachSuggestions(New(ErrEmptyPrompt, CategoryValidation, "prompt produced no tokens").
		WithContext("prompt", prompt))
}

// InterceptionBusy reports a second interception on a layer.
func InterceptionBusy(layer int) *PatchError {
	return AttachSuggestions(Newf(ErrInterceptionBusy, CategoryModel, "layer %d already has an interception", layer).
		WithInt("layer", layer))
}

// ConfigNotFound reports a missing configuration file.
func ConfigNotFound(path string) *PatchError {
	return AttachSuggestions(Config(ErrConfigNotFound, "configuration file not found").
		WithContext("path", path))
}

// ConfigParseError reports an unparseable configuration file.
func ConfigParseError(path string, cause error) *PatchError {
	return AttachSuggestions(ConfigWrap(cause, ErrConfigParseFailed, "failed to parse configuration").
		WithContext("path", path))
}

// ConfigInvalid reports a configuration value that fails validation.
func ConfigInvalid(field, reason string) *PatchError {
	return AttachSuggestions(Config(ErrConfigInvalid, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithContext("field", field))
}

// ProviderNotFound reports an unregistered provider name.
func ProviderNotFound(name string, available []string) *PatchError {
	return AttachSuggestions(Model(ErrProviderNotFound, fmt.Sprintf("provider %q is not registered", name)).
		WithContext("provider", name).
		WithContext("available", fmt.Sprint(available)))
}

// ModelNotFound reports a model name absent from the configuration.
func ModelNotFound(name string) *PatchError {
	return AttachSuggestions(Model(ErrModelNotFound, fmt.Sprintf("model %q is not configured", name)).
		WithContext("model", name))
}

// ModelLoadFailed wraps a provider failure.
func ModelLoadFailed(provider, identifier string, cause error) *PatchError {
	return AttachSuggestions(ModelWrap(cause, ErrModelLoadFailed, "failed to load model").
		WithContext(ContextProvider, provider).
		WithContext("identifier", identifier))
}

// UnknownStrategy reports an unknown experiment mode or layer subset.
func UnknownStrategy(name string) *PatchError {
	return AttachSuggestions(Newf(ErrUnknownStrategy, CategorySweep, "unknown strategy %q", name).
		WithContext("name", name))
}

// CommandMissingArgs reports a console command invoked without required args.
func CommandMissingArgs(cmd, usage string) *PatchError {
	return AttachSuggestions(Command(ErrCommandMissingArgs, fmt.Sprintf("%s: missing arguments", cmd)).
		WithContext("usage", usage))
}

// CommandInvalidArg reports an invalid console argument.
func CommandInvalidArg(arg, expected string) *PatchError {
	return AttachSuggestions(Command(ErrCommandInvalidArg, fmt.Sprintf("invalid argument %q", arg)).
		WithContext("expected", expected))
}

// ValidationOutOfRange reports a numeric value outside [min, max].
func ValidationOutOfRange(field string, value, min, max int) *PatchError {
	return Validation(ErrValidationOutOfRange, fmt.Sprintf("%s must be between %d and %d", field, min, max)).
		WithContext("field", field).
		WithInt("value", value)
}

// WriteFailed wraps a failed file write.
func WriteFailed(path string, cause error) *PatchError {
	return AttachSuggestions(IOWrap(cause, ErrIOWriteFailed, "failed to write file").
		WithContext("path", path))
}

// InternalPanic converts a recovered panic value into an error.
func InternalPanic(recovered any) *PatchError {
	return Internal(fmt.Sprintf("panic: %v", recovered))
}
