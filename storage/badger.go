package storage

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/fulldump/objectstore/collection"
)

// recordPrefix namespaces record keys: r/<id> holds {"seq":N,"record":{...}}.
const recordPrefix = "r/"

type BadgerConfig struct {
	Config

	// Path is the database directory. Ignored when InMemory is true.
	Path string

	InMemory   bool
	SyncWrites bool

	// GCInterval enables value log garbage collection. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Badger keeps the working set in memory and writes every batch through to
// a badger database in a single transaction.
type Badger struct {
	engine

	db  *badger.DB
	gc  *gcRunner
	seq uint64
}

func OpenBadger(config BadgerConfig) (*Badger, error) {
	if !config.InMemory && config.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		err := os.MkdirAll(config.Path, 0750)
		if err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", config.Path, err)
		}
		opts = badger.DefaultOptions(config.Path)
	}
	opts = opts.WithSyncWrites(config.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if config.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: config.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	b := &Badger{db: db}
	b.init(config.Config)
	b.commit = b.write

	err = b.load()
	if err != nil {
		db.Close()
		return nil, err
	}

	if config.GCInterval > 0 && !config.InMemory {
		b.gc = newGCRunner(db, config.GCInterval, config.GCDiscardRatio, b.config.Logger)
		b.gc.Start()
	}

	return b, nil
}

type loadedRecord struct {
	id     string
	seq    uint64
	record Record
}

func (b *Badger) load() error {

	loaded := []loadedRecord{}

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), recordPrefix)
			err := item.Value(func(val []byte) error {
				record := Record{}
				err := json.Unmarshal([]byte(gjson.GetBytes(val, "record").Raw), &record)
				if err != nil {
					return fmt.Errorf("decode record '%s': %w", id, err)
				}
				loaded = append(loaded, loadedRecord{
					id:     id,
					seq:    gjson.GetBytes(val, "seq").Uint(),
					record: record,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	slices.SortFunc(loaded, func(x, y loadedRecord) int {
		return cmp.Compare(x.seq, y.seq)
	})

	current := collection.New()
	for _, l := range loaded {
		current = current.Set(l.id, l.record)
		b.seq = max(b.seq, l.seq)
	}
	b.current = current

	b.config.Logger.Debug("badger records loaded", slog.Int("records", current.Len()))
	return nil
}

func (b *Badger) write(changes []change) error {
	seq := b.seq

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, c := range changes {
			key := []byte(recordPrefix + c.ID)

			if c.Kind == changeDelete {
				err := txn.Delete(key)
				if err != nil {
					return fmt.Errorf("delete '%s': %w", c.ID, err)
				}
				continue
			}

			raw, err := json.Marshal(c.Record)
			if err != nil {
				return fmt.Errorf("json encode record '%s': %w", c.ID, err)
			}

			envelope, err := b.envelope(txn, key, &seq)
			if err != nil {
				return err
			}
			envelope, err = sjson.SetRawBytes(envelope, "record", raw)
			if err != nil {
				return fmt.Errorf("set record '%s': %w", c.ID, err)
			}

			err = txn.Set(key, envelope)
			if err != nil {
				return fmt.Errorf("set '%s': %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.seq = seq
	return nil
}

// envelope returns the stored envelope for key, or a new one with the next
// sequence number. Re-puts keep their sequence so the insertion order
// survives a reload.
func (b *Badger) envelope(txn *badger.Txn, key []byte, seq *uint64) ([]byte, error) {
	item, err := txn.Get(key)
	if err == nil {
		return item.ValueCopy(nil)
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("get '%s': %w", string(key), err)
	}

	*seq++
	return sjson.SetBytes([]byte(`{}`), "seq", *seq)
}

func (b *Badger) Close() error {
	if !b.close() {
		return nil
	}
	if b.gc != nil {
		b.gc.Stop()
	}
	return b.db.Close()
}

// gcRunner runs periodic value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *slog.Logger
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (r *gcRunner) Start() {
	go r.run()
}

func (r *gcRunner) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *gcRunner) runGC() {
	// ErrNoRewrite means there was nothing to collect
	err := r.db.RunValueLogGC(r.ratio)
	if err == nil {
		r.logger.Debug("badger value log GC completed")
	} else if !errors.Is(err, badger.ErrNoRewrite) {
		r.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
	}
}
