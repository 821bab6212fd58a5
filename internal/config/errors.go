package config

import (
	"errors"
	"fmt"
)

// CodeInvalid prefixes every ConfigError message.
const CodeInvalid = "CONFIG_INVALID"

// ConfigError reports a malformed or missing configuration.
type ConfigError struct {
	// Path is the configuration source, if known.
	Path string

	// Field locates the offending value (e.g. "[1].goldens[0].name").
	Field string

	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := CodeInvalid + ": " + e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s: %s", CodeInvalid, e.Field, e.Message)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
