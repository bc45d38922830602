package core

import "github.com/google/uuid"

// Identifier names a renderer resource for its whole lifetime, across
// device loss and restore.
type Identifier struct {
	uuid.UUID
}

func NewIdentifier() Identifier {
	return Identifier{UUID: uuid.New()}
}

func (i Identifier) IsZero() bool {
	return i.UUID == uuid.Nil
}
