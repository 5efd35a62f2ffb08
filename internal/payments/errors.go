package payments

import "fmt"

// ProviderError surfaces a PSP failure with the provider's own error code
// preserved for logging and client-safe messaging.
type ProviderError struct {
	Provider string
	Op       string
	Code     string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", e.Provider, e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
