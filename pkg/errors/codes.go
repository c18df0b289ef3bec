package errors

// -----------------------------------------------------------------------------
// Configuration Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = "CONFIG_NOT_FOUND"

	// ErrConfigParseFailed indicates the configuration file could not be parsed.
	ErrConfigParseFailed = "CONFIG_PARSE_FAILED"

	// ErrConfigInvalid indicates configuration values are invalid.
	ErrConfigInvalid = "CONFIG_INVALID"

	// ErrConfigWriteFailed indicates the config file could not be written.
	ErrConfigWriteFailed = "CONFIG_WRITE_FAILED"
)

// -----------------------------------------------------------------------------
// Model Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrModelNotFound indicates the requested model is not in the registry.
	ErrModelNotFound = "MODEL_NOT_FOUND"

	// ErrProviderNotFound indicates no loader is registered for a provider.
	ErrProviderNotFound = "PROVIDER_NOT_FOUND"

	// ErrProviderExists indicates a provider name is already registered.
	ErrProviderExists = "PROVIDER_ALREADY_REGISTERED"

	// ErrModelLoadFailed indicates the provider could not load the model.
	ErrModelLoadFailed = "MODEL_LOAD_FAILED"

	// ErrForwardFailed indicates a forward evaluation failed.
	ErrForwardFailed = "MODEL_FORWARD_FAILED"

	// ErrInterceptionBusy indicates a layer already holds an interception.
	ErrInterceptionBusy = "INTERCEPTION_BUSY"
)

// -----------------------------------------------------------------------------
// Patch Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrLayerOutOfRange indicates an extract or inject layer outside
	// [0, total_layers). Raised before any state mutation.
	ErrLayerOutOfRange = "LAYER_OUT_OF_RANGE"

	// ErrMarkerNotFound indicates the target prompt has no placeholder marker.
	// Recoverable: the request is skipped.
	ErrMarkerNotFound = "MARKER_NOT_FOUND"

	// ErrPatchExecution indicates a failure inside the guarded generate call.
	ErrPatchExecution = "PATCH_EXECUTION_FAILED"

	// ErrInterventionState indicates an intervention was driven out of order.
	ErrInterventionState = "INTERVENTION_STATE"

	// ErrEmptyPrompt indicates a prompt tokenized to nothing.
	ErrEmptyPrompt = "EMPTY_PROMPT"
)

// -----------------------------------------------------------------------------
// Sweep / Command / Validation Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrSweepEmpty indicates a sweep strategy produced no pairs.
	ErrSweepEmpty = "SWEEP_EMPTY"

	// ErrUnknownStrategy indicates an unknown experiment mode or subset.
	ErrUnknownStrategy = "UNKNOWN_STRATEGY"

	// ErrCommandInvalidArg indicates a console argument is invalid.
	ErrCommandInvalidArg = "COMMAND_INVALID_ARG"

	// ErrCommandMissingArgs indicates required console arguments are missing.
	ErrCommandMissingArgs = "COMMAND_MISSING_ARGS"

	// ErrValidationInvalidValue indicates a value is invalid.
	ErrValidationInvalidValue = "VALIDATION_INVALID_VALUE"

	// ErrValidationOutOfRange indicates a value is outside the allowed range.
	ErrValidationOutOfRange = "VALIDATION_OUT_OF_RANGE"
)

// -----------------------------------------------------------------------------
// I/O and Internal Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrIOWriteFailed indicates a file write operation failed.
	ErrIOWriteFailed = "IO_WRITE_FAILED"

	// ErrIOTerminal indicates the interactive terminal could not be opened.
	ErrIOTerminal = "IO_TERMINAL"

	// ErrIOMarshalFailed indicates data marshaling failed.
	ErrIOMarshalFailed = "IO_MARSHAL_FAILED"

	// ErrInternal indicates an unexpected internal error.
	ErrInternal = "INTERNAL_ERROR"
)
