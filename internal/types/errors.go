package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRuleConfig = errors.New("invalid rule config")
	ErrInvalidEvent      = errors.New("invalid notification event")

	ErrInvalidBackend  = errors.New("invalid backend")
	ErrDataStoreAccess = errors.New("data store read/write error")

	ErrAdvisorTimeout = errors.New("advisor timed out")
	ErrAdvisorFailure = errors.New("advisor failed")
)

// Err joins a typed sentinel with the inner error and an optional formatted message,
// so callers can match with errors.Is on either.
func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}
