package sweet

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeReference   ErrorType = "reference"
	ErrorTypeFormat      ErrorType = "format"
	ErrorTypeInput       ErrorType = "input"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeTransaction ErrorType = "transaction"
)

// SweetError is the error returned by every schema manager operation.
type SweetError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *SweetError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *SweetError) Unwrap() error {
	return e.Cause
}

// WithDetails merges details into the error
func (e *SweetError) WithDetails(details map[string]any) *SweetError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail
func (e *SweetError) WithDetail(key string, value any) *SweetError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *SweetError) WithCause(cause error) *SweetError {
	e.Cause = cause
	return e
}

// WithField adds field context
func (e *SweetError) WithField(field string) *SweetError {
	e.Field = field
	return e
}

// Error codes
const (
	// Loader
	ErrCodeInvalidFormat     = "INVALID_FORMAT"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeEmptyContent      = "EMPTY_CONTENT"
	ErrCodeFileNotFound      = "FILE_NOT_FOUND"
	ErrCodeInvalidSource     = "INVALID_SOURCE"

	// Validator
	ErrCodeValidationFailed      = "VALIDATION_FAILED"
	ErrCodeSchemaInvalid         = "SCHEMA_INVALID"
	ErrCodePrimaryKeyNotInTable  = "PRIMARY_KEY_NOT_IN_TABLE"
	ErrCodeForeignKeyNotInTable  = "FOREIGN_KEY_NOT_IN_TABLE"
	ErrCodeForeignKeyCardinality = "FOREIGN_KEY_CARDINALITY"
	ErrCodeDuplicateField        = "DUPLICATE_FIELD"

	// Type mapping and modeling
	ErrCodeUnsupportedDialect   = "UNSUPPORTED_DIALECT"
	ErrCodeUnsupportedFieldType = "UNSUPPORTED_FIELD_TYPE"
	ErrCodeDialectMismatch      = "DIALECT_MISMATCH"
	ErrCodeColumnConflict       = "COLUMN_CONFLICT"

	// Repository
	ErrCodeInvalidSelector     = "INVALID_SELECTOR"
	ErrCodeSchemaNotFound      = "SCHEMA_NOT_FOUND"
	ErrCodeSchemaAlreadyExists = "SCHEMA_ALREADY_EXISTS"
	ErrCodeTableAlreadyExists  = "TABLE_ALREADY_EXISTS"
	ErrCodeReferenceNotFound   = "REFERENCE_NOT_FOUND"
	ErrCodeCircularReference   = "CIRCULAR_REFERENCE"
	ErrCodeDuplicateInBatch    = "DUPLICATE_IN_BATCH"

	ErrCodeTransactionFailed = "TRANSACTION_FAILED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// ============================================================================
// SweetError Constructors
// ============================================================================

// NewSweetError creates a new SweetError
func NewSweetError(errorType ErrorType, code, message string) *SweetError {
	return &SweetError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewValidationError creates a structural validation error
func NewValidationError(field, message string) *SweetError {
	return &SweetError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
		Details: make(map[string]any),
	}
}

// NewReferenceError creates a referential error with the given code
func NewReferenceError(code, field, message string) *SweetError {
	return &SweetError{
		Type:    ErrorTypeReference,
		Code:    code,
		Message: message,
		Field:   field,
		Details: make(map[string]any),
	}
}

// NewFormatError creates a content format error
func NewFormatError(code, message string) *SweetError {
	return NewSweetError(ErrorTypeFormat, code, message)
}

// NewInputError creates an input contract error (the caller's bug)
func NewInputError(code, message string) *SweetError {
	return NewSweetError(ErrorTypeInput, code, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(code, message string) *SweetError {
	return NewSweetError(ErrorTypeNotFound, code, message)
}

// NewConflictError creates a conflict error
func NewConflictError(code, message string) *SweetError {
	return NewSweetError(ErrorTypeConflict, code, message)
}

// NewTransactionError creates a transaction error
func NewTransactionError(message string, cause error) *SweetError {
	return &SweetError{
		Type:    ErrorTypeTransaction,
		Code:    ErrCodeTransactionFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *SweetError {
	return &SweetError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewUnsupportedDialectError creates a standardized error for unknown dialect names
func NewUnsupportedDialectError(dialect string) *SweetError {
	return NewInputError(ErrCodeUnsupportedDialect, "unsupported database dialect: "+dialect).
		WithDetail("dialect", dialect)
}

// NewSelectorError reports a selector that names both or neither of id and name
func NewSelectorError() *SweetError {
	return NewInputError(ErrCodeInvalidSelector, "exactly one of id or name must be provided")
}

// AsSweetError unwraps err to a *SweetError if it carries one.
func AsSweetError(err error) (*SweetError, bool) {
	var se *SweetError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsErrorType reports whether err carries a SweetError of type t.
func IsErrorType(err error, t ErrorType) bool {
	se, ok := AsSweetError(err)
	return ok && se.Type == t
}

// ErrorCode returns the code of the SweetError carried by err, or "".
func ErrorCode(err error) string {
	if se, ok := AsSweetError(err); ok {
		return se.Code
	}
	return ""
}
