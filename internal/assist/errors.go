package assist

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned by a provider whose body contained no text.
var ErrEmptyResponse = errors.New("empty response body")

// ErrProviderUnavailable wraps transport and API failures of a provider.
type ErrProviderUnavailable struct {
	Provider string
	Err      error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("provider %s unavailable", e.Provider)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }
