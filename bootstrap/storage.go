package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulldump/objectstore/configuration"
	"github.com/fulldump/objectstore/storage"
	"github.com/fulldump/objectstore/utils"
)

type storageOpener func(c *configuration.Configuration, config storage.Config) (storage.Storage, error)

var storageKinds = map[string]storageOpener{
	"memory": func(c *configuration.Configuration, config storage.Config) (storage.Storage, error) {
		return storage.NewMemory(config), nil
	},
	"journal": func(c *configuration.Configuration, config storage.Config) (storage.Storage, error) {
		err := os.MkdirAll(c.Dir, 0755)
		if err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		journal, err := storage.OpenJournal(storage.JournalConfig{
			Config:     config,
			Filename:   filepath.Join(c.Dir, "objects.jsonl"),
			SyncWrites: c.SyncWrites,
		})
		if err != nil {
			return nil, err
		}
		return journal, nil
	},
	"badger": func(c *configuration.Configuration, config storage.Config) (storage.Storage, error) {
		badgerConfig := storage.DefaultBadgerConfig(filepath.Join(c.Dir, "badger"))
		badgerConfig.Config = config
		badgerConfig.SyncWrites = c.SyncWrites
		db, err := storage.OpenBadger(badgerConfig)
		if err != nil {
			return nil, err
		}
		return db, nil
	},
}

// OpenStorage builds the adapter named by c.Storage.
func OpenStorage(c *configuration.Configuration, logger *slog.Logger) (storage.Storage, error) {

	generator, err := storage.NewIDGenerator(c.IDGenerator)
	if err != nil {
		return nil, err
	}

	kind := strings.ToLower(c.Storage)
	if kind == "" {
		kind = "memory"
	}
	open, exists := storageKinds[kind]
	if !exists {
		return nil, fmt.Errorf("bad storage '%s', must be [%s]", c.Storage, strings.Join(utils.GetKeys(storageKinds), "|"))
	}

	return open(c, storage.Config{
		IDProperty:  c.IDProperty,
		IDGenerator: generator,
		Logger:      logger,
	})
}
