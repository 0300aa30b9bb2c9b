package errors

import (
	"errors"
	"fmt"
)

var (
	ErrScanNotFound          = errors.New("scan not found")
	ErrVulnerabilityNotFound = errors.New("vulnerability not found")
	ErrToolNotRegistered     = errors.New("tool not registered")
	ErrScanNotCancellable    = errors.New("scan is not in a cancellable state")
	ErrDiscordNotConfigured  = errors.New("discord client not configured")
)

// ValidationError rejects a request before any scan state is created.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s (value: %v): %s", e.Field, e.Value, e.Message)
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NotFoundError identifies an unknown scan or vulnerability id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ToolError is a per-adapter failure. It is recorded against the scan and
// never aborts sibling adapters.
type ToolError struct {
	ToolID string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.ToolID, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func NewToolError(toolID string, err error) *ToolError {
	return &ToolError{
		ToolID: toolID,
		Err:    err,
	}
}

// StoreError wraps a persistence failure. The orchestrator retries these
// with bounded backoff before settling the scan to failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err is caller-visible input rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err identifies a missing scan or vulnerability.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
