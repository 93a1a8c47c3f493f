package security

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistryFrozen is returned when a scheme is registered after the
	// description built from the registry was published.
	ErrRegistryFrozen = errors.New("security registry is frozen")

	ErrInvalidScheme = errors.New("invalid security scheme")
)

// DuplicateSchemeError reports a scheme name registered more than once.
type DuplicateSchemeError struct {
	Name string
}

func (e *DuplicateSchemeError) Error() string {
	return fmt.Sprintf("security scheme %q is already registered", e.Name)
}

// UnknownSchemeError reports a requirement naming a scheme that was never
// registered.
type UnknownSchemeError struct {
	Name string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("security scheme %q is not registered", e.Name)
}
