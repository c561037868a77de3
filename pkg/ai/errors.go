package ai

import "fmt"

// APIError is a non-2xx reply from a provider, preserving its status code
// and message so callers can distinguish backend failures from transport ones.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.Status, e.Message)
}
