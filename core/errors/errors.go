// Package errors provides standardized error types and helpers for the swordshelf codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrConfig indicates an unusable or malformed module configuration
	ErrConfig = errors.New("invalid configuration")
	// ErrLocked indicates an enciphered module with no unlock key
	ErrLocked = errors.New("module is locked")
	// ErrCorruptIndex indicates a structurally invalid index file or record
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrDecode indicates a decompression or character decoding failure
	ErrDecode = errors.New("decode failure")
	// ErrMissingFile indicates a required data file is absent
	ErrMissingFile = errors.New("missing file")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "module", "verse", "entry")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// Is keeps the sentinel matchable even when a cause is attached.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConfigError represents a .conf file problem that makes a module unusable
type ConfigError struct {
	Module  string // Module name or conf file stem
	Field   string // Field involved, if any
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s (%s): %s", e.Module, e.Field, e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Module, e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfig
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// LockedModuleError represents an attempt to load an enciphered module
// whose conf carries an empty CipherKey.
type LockedModuleError struct {
	Module string // Module name
}

func (e *LockedModuleError) Error() string {
	return fmt.Sprintf("module %s is locked: cipher key required", e.Module)
}

func (e *LockedModuleError) Unwrap() error {
	return ErrLocked
}

// IndexCorruptionError represents a structurally invalid index file or record
type IndexCorruptionError struct {
	Module string // Module name
	Path   string // Index file path
	Record int    // Record number, -1 when not record-specific
	Reason string // What was wrong
	Err    error  // Underlying error, if any
}

func (e *IndexCorruptionError) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("corrupt index in %s at %s record %d: %s", e.Module, e.Path, e.Record, e.Reason)
	}
	return fmt.Sprintf("corrupt index in %s at %s: %s", e.Module, e.Path, e.Reason)
}

func (e *IndexCorruptionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCorruptIndex
}

func (e *IndexCorruptionError) Is(target error) bool { return target == ErrCorruptIndex }

// DecodeError represents a decompression or text decoding failure
type DecodeError struct {
	Module string // Module name
	Stage  string // Pipeline stage (e.g., "zlib", "xz", "charset")
	Err    error  // Underlying error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failure in %s (%s): %v", e.Module, e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrDecode
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// MissingFileError represents an absent required data file
type MissingFileError struct {
	Module string // Module name
	Path   string // Expected file path
	Err    error  // Underlying error, if any
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("module %s: missing data file %s", e.Module, e.Path)
}

func (e *MissingFileError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMissingFile
}

func (e *MissingFileError) Is(target error) bool { return target == ErrMissingFile }

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string, err error) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
		Err:      err,
	}
}

// NewConfig creates a ConfigError
func NewConfig(module, field, message string, err error) *ConfigError {
	return &ConfigError{
		Module:  module,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// NewLocked creates a LockedModuleError
func NewLocked(module string) *LockedModuleError {
	return &LockedModuleError{Module: module}
}

// NewCorruptIndex creates an IndexCorruptionError
func NewCorruptIndex(module, path string, record int, reason string, err error) *IndexCorruptionError {
	return &IndexCorruptionError{
		Module: module,
		Path:   path,
		Record: record,
		Reason: reason,
		Err:    err,
	}
}

// NewDecode creates a DecodeError
func NewDecode(module, stage string, err error) *DecodeError {
	return &DecodeError{
		Module: module,
		Stage:  stage,
		Err:    err,
	}
}

// NewMissingFile creates a MissingFileError
func NewMissingFile(module, path string, err error) *MissingFileError {
	return &MissingFileError{
		Module: module,
		Path:   path,
		Err:    err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string, err error) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
		Err:     err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
