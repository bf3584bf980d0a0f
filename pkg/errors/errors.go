package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Configuration errors
	ErrMissingDataset     = errors.New("no dataset location configured")
	ErrNoQuasiIdentifiers = errors.New("no quasi-identifying attributes configured")
	ErrOverlappingRoles   = errors.New("attribute assigned to more than one role")
	ErrUnknownAttribute   = errors.New("attribute not present in dataset")
	ErrMissingSuppression = errors.New("suppression limit must be set explicitly")
	ErrInvalidParameter   = errors.New("privacy model parameter out of range")
	ErrUnknownBackend     = errors.New("unknown anonymization backend")

	// Hierarchy errors
	ErrHierarchyNotFound  = errors.New("hierarchy file not found")
	ErrHierarchyMalformed = errors.New("hierarchy file malformed")
	ErrHierarchyCoverage  = errors.New("hierarchy does not cover every dataset value")
	ErrHierarchyBranching = errors.New("hierarchy level mapping is not unique")
	ErrMissingHierarchy   = errors.New("quasi-identifier has no hierarchy configured")

	// Privacy errors
	ErrPrivacyUnachievable = errors.New("privacy guarantees unachievable")
	ErrRunCancelled        = errors.New("anonymization run cancelled")

	// Metric errors
	ErrMetricUnavailable = errors.New("metric unavailable")

	// Dataset errors
	ErrDatasetLoad       = errors.New("failed to load dataset")
	ErrDatasetExport     = errors.New("failed to export dataset")
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeHierarchy     ErrorType = "hierarchy"
	ErrorTypePrivacy       ErrorType = "privacy"
	ErrorTypeMetric        ErrorType = "metric"
	ErrorTypeDataset       ErrorType = "dataset"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error. Errors always name the offending
// attribute, value or parameter so a configuration can be corrected without
// re-running blind.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// NewConfigurationError creates a configuration error, surfaced before any
// data is touched.
func NewConfigurationError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, code, message)
}

// NewHierarchyLoadError creates a hierarchy load error, surfaced before
// generalization begins.
func NewHierarchyLoadError(code, message string) *AppError {
	return NewAppError(ErrorTypeHierarchy, code, message)
}

// NewPrivacyUnachievable creates the terminal driver error: the requested
// guarantees cannot be met with the configured hierarchies and suppression
// budget.
func NewPrivacyUnachievable(message string) *AppError {
	return &AppError{
		Type:    ErrorTypePrivacy,
		Code:    CodePrivacyUnachievable,
		Message: message,
		Cause:   ErrPrivacyUnachievable,
	}
}

// NewMetricUnavailable creates the per-call metric sentinel. It never aborts
// the whole Result.
func NewMetricUnavailable(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeMetric,
		Code:    CodeMetricUnavailable,
		Message: message,
		Cause:   ErrMetricUnavailable,
	}
}

// NewDatasetError creates a dataset load/export error
func NewDatasetError(code, message string) *AppError {
	return NewAppError(ErrorTypeDataset, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// IsPrivacyUnachievable reports whether err is a terminal driver failure.
func IsPrivacyUnachievable(err error) bool {
	return errors.Is(err, ErrPrivacyUnachievable)
}

// IsMetricUnavailable reports whether err is a metric sentinel.
func IsMetricUnavailable(err error) bool {
	return errors.Is(err, ErrMetricUnavailable)
}

// Error codes for different error scenarios
const (
	// Configuration error codes
	CodeInvalidInput       = "INVALID_INPUT"
	CodeMissingField       = "MISSING_FIELD"
	CodeOutOfRange         = "OUT_OF_RANGE"
	CodeOverlappingRoles   = "OVERLAPPING_ROLES"
	CodeUnknownAttribute   = "UNKNOWN_ATTRIBUTE"
	CodeMissingSuppression = "MISSING_SUPPRESSION_LIMIT"
	CodeUnknownBackend     = "UNKNOWN_BACKEND"

	// Hierarchy error codes
	CodeHierarchyNotFound  = "HIERARCHY_NOT_FOUND"
	CodeHierarchyMalformed = "HIERARCHY_MALFORMED"
	CodeHierarchyCoverage  = "HIERARCHY_COVERAGE"
	CodeHierarchyBranching = "HIERARCHY_BRANCHING"
	CodeMissingHierarchy   = "MISSING_HIERARCHY"

	// Privacy error codes
	CodePrivacyUnachievable = "PRIVACY_UNACHIEVABLE"
	CodeRunCancelled        = "RUN_CANCELLED"

	// Metric error codes
	CodeMetricUnavailable = "METRIC_UNAVAILABLE"

	// Dataset error codes
	CodeDatasetLoad       = "DATASET_LOAD_FAILED"
	CodeDatasetExport     = "DATASET_EXPORT_FAILED"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
