package tools

import "fmt"

// ErrToolUnavailable reports a call to a tool the effective registry
// does not expose: elevated-only in normal mode, unregistered, or
// simply misspelled by the model. It is not a transient failure; the
// agent loop surfaces it to the model as an observation so it can pick
// another tool.
type ErrToolUnavailable struct {
	ToolName string
}

func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available in this context", e.ToolName)
}
