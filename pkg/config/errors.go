// Package config loads and validates power spectrum run parameters.
package config

import (
	"fmt"

	"cosmo-powerspec/pkg/errors"
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Option  string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("Option '%s': %s", e.Option, e.Message)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// invalid builds a validation failure for one option. The returned error
// classifies as CONFIG_VALIDATION and unwraps to the ConfigError.
func invalid(option, format string, args ...interface{}) error {
	ce := &ConfigError{
		Option:  option,
		Message: fmt.Sprintf(format, args...),
	}
	return errors.Wrap(ce, errors.ErrConfigValidation, "invalid parameters").
		SetContext("option", option)
}
