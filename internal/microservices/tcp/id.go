package tcp

import (
	"fmt"

	"github.com/google/uuid"
)

// ConnectionID identifies one accepted connection. It is a plain lookup key:
// once the connection is removed, lookups with it simply miss.
type ConnectionID uuid.UUID

// constructor for ConnectionID => random 128-bit value
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New())
}

// ParseConnectionID parses the canonical string form produced by String.
func ParseConnectionID(s string) (ConnectionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ConnectionID{}, fmt.Errorf("invalid connection id %q: %w", s, err)
	}
	return ConnectionID(u), nil
}

func (id ConnectionID) String() string {
	return uuid.UUID(id).String()
}
