package storage

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type IDGenerator interface {
	NewID() (string, error)
}

type IDGeneratorFunc func() (string, error)

func (f IDGeneratorFunc) NewID() (string, error) {
	return f()
}

// UUIDGenerator issues random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("uuid: %w", err)
	}
	return id.String(), nil
}

// ULIDGenerator issues ULIDs, which sort lexically by creation time.
type ULIDGenerator struct{}

func (ULIDGenerator) NewID() (string, error) {
	return ulid.Make().String(), nil
}

// NewIDGenerator resolves a generator by name: "uuid" (default) or "ulid".
func NewIDGenerator(name string) (IDGenerator, error) {
	switch name {
	case "", "uuid":
		return UUIDGenerator{}, nil
	case "ulid":
		return ULIDGenerator{}, nil
	}
	return nil, fmt.Errorf("unknown id generator '%s'", name)
}
