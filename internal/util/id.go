package util

import "github.com/google/uuid"

// NewID generates a unique identifier for sessions, plans, steps and
// proposals.
func NewID() string { return uuid.NewString() }
