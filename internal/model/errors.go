package model

import "fmt"

// ValidationError reports missing or malformed client input.
// It is always detected before any engine call or temp-file write.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ProcessingError wraps an engine or I/O failure with the stage that failed.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err.Error())
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// StageName returns the processing stage that failed.
func (e *ProcessingError) StageName() string {
	return e.Stage
}

// ErrorReport is the JSON body of every failed API response.
type ErrorReport struct {
	Error string `json:"error"`
}
