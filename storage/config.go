package storage

import (
	"log/slog"

	"github.com/fulldump/objectstore/collection"
)

const DefaultIDProperty = "id"

// Config is shared by every adapter.
type Config struct {
	// IDProperty is the field holding the identity. Default "id".
	IDProperty string

	// IDFunction computes the identity instead of reading IDProperty.
	IDFunction func(record Record) string

	// IDGenerator issues identities for records that have none. Default
	// UUIDGenerator.
	IDGenerator IDGenerator

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.IDProperty == "" {
		c.IDProperty = DefaultIDProperty
	}
	if c.IDGenerator == nil {
		c.IDGenerator = UUIDGenerator{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) identify(record Record) string {
	if record == nil {
		return ""
	}
	if c.IDFunction != nil {
		return c.IDFunction(record)
	}
	id, _ := collection.CanonicalID(record[c.IDProperty])
	return id
}
