package extraction

import "fmt"

const rawPreviewLen = 500

// FormatError means the model response held no {...} span at all
type FormatError struct {
	Raw string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("model did not return JSON: %q", preview(e.Raw))
}

// ParseError means a {...} span was found but it is not a valid extraction
type ParseError struct {
	Span string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid extraction JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ServiceError means the inference call itself failed
type ServiceError struct {
	Model string
	Err   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("extraction service call (model %q) failed: %v", e.Model, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > rawPreviewLen {
		return string(r[:rawPreviewLen])
	}
	return s
}
