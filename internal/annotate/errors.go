package annotate

import (
	"errors"
	"fmt"
)

var (
	// ErrInputNotFound is fatal: the input table could not be opened.
	ErrInputNotFound = errors.New("input not found")
	// ErrProcessExecution marks a row whose model call failed.
	ErrProcessExecution = errors.New("model process failed")
	// ErrResponseParse marks a row whose model output was not a JSON object.
	ErrResponseParse = errors.New("model response is not valid JSON")
)

// ProcessError is returned by Analyze when the provider call fails.
type ProcessError struct {
	Comment string
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("running model: %v", e.Err)
}

func (e *ProcessError) Unwrap() []error { return []error{ErrProcessExecution, e.Err} }

// ParseError is returned by Analyze when the cleaned output does not parse.
type ParseError struct {
	Comment string
	Raw     string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing model output: %v", e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrResponseParse, e.Err} }
