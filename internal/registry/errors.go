package registry

import "fmt"

// UnknownServiceError is returned when a command names a service that
// was never registered.
type UnknownServiceError struct {
	Service string
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("unknown service: %s", e.Service)
}

// UnknownToolError is returned when a known adapter receives a tool it
// does not expose.
type UnknownToolError struct {
	Service string
	Tool    string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q for service %q", e.Tool, e.Service)
}

// UnknownToolResult is the Result form of UnknownToolError. Adapters use
// it so that an unrecognized tool produces a structured failure instead
// of an escaping error.
func UnknownToolResult(service, tool string) Result {
	return Result{Success: false, Error: (&UnknownToolError{Service: service, Tool: tool}).Error()}
}
