// Package tool implements the capability subsystem: a registry of pluggable
// domain actions with schema validated arguments, risk classification and a
// uniform preview/invoke contract consumed by the executor.
package tool

import "fmt"

// CapabilityError represents errors that occur during capability execution.
type CapabilityError struct {
	Capability string      `json:"capability"`        // Name of the capability that failed
	Message    string      `json:"message"`           // Error message
	Code       string      `json:"code"`              // Error code for categorization
	Details    interface{} `json:"details,omitempty"` // Additional error details
}

func (e *CapabilityError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("capability error [%s] in %s: %s", e.Code, e.Capability, e.Message)
	}
	return fmt.Sprintf("capability error in %s: %s", e.Capability, e.Message)
}

// NewCapabilityError creates a new CapabilityError with the specified details.
func NewCapabilityError(capability, message, code string) *CapabilityError {
	return &CapabilityError{
		Capability: capability,
		Message:    message,
		Code:       code,
	}
}
