package domain

import "github.com/google/uuid"

// NewID returns a random unique identifier for workflow entities and for
// synthetic ids substituted when a source record omits its own.
func NewID() string {
	return uuid.NewString()
}
