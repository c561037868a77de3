package app

import "errors"

var (
	// ErrEmptyInput indicates a request with no text after trimming.
	ErrEmptyInput = errors.New("empty input")
	// ErrGenerationFailed indicates the backend answered but produced no
	// usable completion, or rejected the request.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrBackendUnavailable indicates the backend could not be reached
	// or timed out.
	ErrBackendUnavailable = errors.New("generation backend unavailable")

	ErrSessionRequired      = errors.New("session id required")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrExportsDisabled      = errors.New("exports not configured")
	ErrExportJobNotFound    = errors.New("export job not found")
)
