package id

import "github.com/google/uuid"

// New returns a random identifier for stored artifacts.
func New() string {
	return uuid.NewString()
}
