package uid

import "github.com/google/uuid"

// New generates a new unique identifier for request correlation.
func New() string {
	return uuid.New().String()
}
