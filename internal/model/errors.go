package model

import (
	"errors"
	"fmt"
)

// Error categories. Callers match them with errors.Is.
var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrMissingInvoiceKey = errors.New("missing invoice key")
	ErrEmptyInput        = errors.New("no invoice records to render")
	ErrRenderFailure     = errors.New("render failure")
	ErrInitialization    = errors.New("pdf engine initialization failure")
)

// ParseError represents a document that could not be turned into records
type ParseError struct {
	Kind  error
	Key   string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Kind == ErrMissingInvoiceKey {
		return fmt.Sprintf("missing invoice key %q", e.Key)
	}
	if e.Cause != nil {
		return fmt.Sprintf("failed to parse document: %v", e.Cause)
	}
	return "failed to parse document: " + e.Kind.Error()
}

func (e *ParseError) Is(target error) bool {
	return target == e.Kind
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewMalformedError wraps a parser-level failure
func NewMalformedError(cause error) *ParseError {
	return &ParseError{Kind: ErrMalformedDocument, Cause: cause}
}

// NewMissingKeyError reports that no invoice collection was found under key
func NewMissingKeyError(key string) *ParseError {
	return &ParseError{Kind: ErrMissingInvoiceKey, Key: key}
}

// RenderError represents a PDF composition failure for one record
type RenderError struct {
	Index int
	Name  string
	Cause error
}

func (e *RenderError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("render failed for record %d (%s): %v", e.Index+1, e.Name, e.Cause)
	}
	return fmt.Sprintf("render failed for record %d: %v", e.Index+1, e.Cause)
}

func (e *RenderError) Is(target error) bool {
	return target == ErrRenderFailure
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// NewRenderError creates a new render error
func NewRenderError(index int, name string, cause error) *RenderError {
	return &RenderError{Index: index, Name: name, Cause: cause}
}

// InitError represents a PDF engine that could not be set up
type InitError struct {
	Cause error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize pdf engine: %v", e.Cause)
}

func (e *InitError) Is(target error) bool {
	return target == ErrInitialization
}

func (e *InitError) Unwrap() error {
	return e.Cause
}

// NewInitError creates a new initialization error
func NewInitError(cause error) *InitError {
	return &InitError{Cause: cause}
}
