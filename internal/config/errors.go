package config

import "fmt"

// ConfigError reports required backend configuration that is missing or
// malformed at startup. It halts bootstrap.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}
