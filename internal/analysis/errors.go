package analysis

import "fmt"

// MalformedTableError indicates a structurally invalid table: unequal column
// lengths, unsupported cell types, or bad column names.
type MalformedTableError struct {
	Column string
	Reason string
}

func (e *MalformedTableError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("malformed table: column %q: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("malformed table: %s", e.Reason)
}

// ConfigurationError indicates an option outside its valid range.
type ConfigurationError struct {
	Option string
	Value  any
	Rule   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v (must satisfy %s)", e.Option, e.Value, e.Rule)
}
