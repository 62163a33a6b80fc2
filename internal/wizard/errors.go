package wizard

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed graph. It is a programming error and is
// never shown as a validation message.
type ConfigError struct {
	Graph  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("wizard %q: %s", e.Graph, e.Reason)
}

func configErrorf(graph, format string, args ...any) error {
	return &ConfigError{Graph: graph, Reason: fmt.Sprintf(format, args...)}
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// RejectedError is returned by a finish callback that refuses the collected
// values on domain grounds. The engine reports it on the terminal step.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

func Reject(format string, args ...any) error {
	return &RejectedError{Message: fmt.Sprintf(format, args...)}
}
