package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fulldump/objectstore/collection"
	"github.com/fulldump/objectstore/observable"
	"github.com/fulldump/objectstore/query"
	"github.com/fulldump/objectstore/storage"
)

type Record = collection.Record

type CrudOptions = storage.Options

var (
	ErrorNotFound  = storage.ErrorNotFound
	ErrorMissingID = storage.ErrorMissingID
	ErrorOverwrite = storage.ErrorOverwrite
	ErrorClosed    = errors.New("store is closed")
)

type Options struct {
	// Data is added during construction; every operation waits for it.
	Data []Record

	// IDProperty names the identity field. Default "id".
	IDProperty string

	// IDFunction computes identities instead of reading IDProperty.
	IDFunction func(record Record) string

	// Storage defaults to an in-memory adapter owned by the store.
	Storage storage.Storage

	Logger  *slog.Logger
	Metrics *Metrics
}

// Store coordinates CRUD against a storage adapter and fans out changes to
// observers.
//
// Mutations run one at a time in the order they were issued: each one waits
// for the previous one to settle. Reads only wait for the initial load.
type Store struct {
	storage     storage.Storage
	ownsStorage bool
	idProperty  string
	idFunction  func(record Record) string
	logger      *slog.Logger
	metrics     *Metrics

	loaded <-chan struct{}

	mutex  sync.Mutex
	tail   chan struct{}
	closed bool

	items map[string]*observable.Registry[Record]
	all   *observable.Registry[ChangeRecord]
}

func New(options Options) *Store {

	s := &Store{
		storage:    options.Storage,
		idProperty: options.IDProperty,
		idFunction: options.IDFunction,
		logger:     options.Logger,
		metrics:    options.Metrics,
		tail:       make(chan struct{}),
		items:      map[string]*observable.Registry[Record]{},
		all:        observable.NewRegistry[ChangeRecord](),
	}
	close(s.tail)

	if s.idProperty == "" {
		s.idProperty = storage.DefaultIDProperty
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.storage == nil {
		s.storage = storage.NewMemory(storage.Config{
			IDProperty: s.idProperty,
			IDFunction: s.idFunction,
			Logger:     s.logger,
		})
		s.ownsStorage = true
	}

	if len(options.Data) == 0 {
		ready := make(chan struct{})
		close(ready)
		s.loaded = ready
		return s
	}

	seed := s.Add(options.Data, CrudOptions{})
	s.loaded = seed.Done()
	seed.Subscribe(observable.Funcs[*storage.UpdateResults[Record]]{
		OnNext: func(results *storage.UpdateResults[Record]) {
			for _, failure := range results.FailedData {
				s.logger.Warn("seed item rejected", slog.String("id", failure.ID), slog.String("error", failure.Err.Error()))
			}
			s.logger.Debug("seed loaded", slog.Int("records", len(results.SuccessfulData)))
		},
		OnError: func(err error) {
			s.logger.Error("seed failed", slog.String("error", err.Error()))
		},
	})

	return s
}

// Ready is closed once the seed data has been applied, successfully or not.
func (s *Store) Ready() <-chan struct{} {
	return s.loaded
}

func (s *Store) waitLoaded(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue schedules fn after every previously enqueued task. It returns
// false if the store is closed.
func (s *Store) enqueue(fn func()) bool {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return false
	}
	previous := s.tail
	next := make(chan struct{})
	s.tail = next
	s.mutex.Unlock()

	go func() {
		defer close(next)
		<-previous
		fn()
	}()
	return true
}

// Get returns the record or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	records, err := s.get(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// GetMany returns the existing records among ids, in the order of ids.
func (s *Store) GetMany(ctx context.Context, ids ...string) ([]Record, error) {
	records, err := s.get(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make([]Record, 0, len(records))
	for _, record := range records {
		if record != nil {
			found = append(found, record)
		}
	}
	return found, nil
}

func (s *Store) get(ctx context.Context, ids []string) ([]Record, error) {
	if s.isClosed() {
		return nil, ErrorClosed
	}
	err := s.waitLoaded(ctx)
	if err != nil {
		return nil, err
	}

	canonical := make([]string, len(ids))
	for i, id := range ids {
		canonical[i], _ = collection.CanonicalID(id)
	}
	return s.storage.Get(ctx, canonical)
}

// Add stores items, reporting existing identities in FailedData.
func (s *Store) Add(items []Record, options CrudOptions) *observable.Future[*storage.UpdateResults[Record]] {
	options.RejectOverwrite = true
	return mutate(s, storage.OperationAdd, func(ctx context.Context) (*storage.UpdateResults[Record], error) {
		return s.storage.Add(ctx, items, options)
	}, s.notifyPuts)
}

// Put stores items, overwriting existing identities unless
// options.RejectOverwrite is set.
func (s *Store) Put(items []Record, options CrudOptions) *observable.Future[*storage.UpdateResults[Record]] {
	return mutate(s, storage.OperationPut, func(ctx context.Context) (*storage.UpdateResults[Record], error) {
		return s.storage.Put(ctx, items, options)
	}, s.notifyPuts)
}

// Patch accepts a PatchMap, a PatchEntry, a []PatchEntry, a basic patch
// Record or a []Record. An argument with no derivable identity is rejected
// before storage is called.
func (s *Store) Patch(argument PatchArgument, options CrudOptions) *observable.Future[*storage.UpdateResults[Record]] {
	entries, err := s.canonicalPatches(argument, options)
	if err != nil {
		return observable.Rejected[*storage.UpdateResults[Record]](err)
	}
	return mutate(s, storage.OperationPatch, func(ctx context.Context) (*storage.UpdateResults[Record], error) {
		return s.storage.Patch(ctx, entries)
	}, s.notifyPuts)
}

func (s *Store) Delete(ids ...string) *observable.Future[*storage.UpdateResults[string]] {
	canonical := make([]string, len(ids))
	for i, id := range ids {
		canonical[i], _ = collection.CanonicalID(id)
	}
	return mutate(s, storage.OperationDelete, func(ctx context.Context) (*storage.UpdateResults[string], error) {
		return s.storage.Delete(ctx, canonical)
	}, s.notifyDeletes)
}

// mutate queues one storage call. Collection snapshots are taken around it
// only while someone observes the whole collection. Observers are notified
// before the returned future settles.
func mutate[T any](
	s *Store,
	op storage.Operation,
	run func(ctx context.Context) (*storage.UpdateResults[T], error),
	notify func(results *storage.UpdateResults[T]) ChangeRecord,
) *observable.Future[*storage.UpdateResults[T]] {

	future := observable.NewFuture[*storage.UpdateResults[T]]()

	queued := s.enqueue(func() {
		ctx := context.Background()
		start := time.Now()

		var before []Record
		watching := s.all.Len() > 0
		if watching {
			var err error
			before, err = s.snapshot(ctx)
			if err != nil {
				s.metrics.record(string(op), start, 0, err)
				future.Reject(fmt.Errorf("snapshot: %w", err))
				return
			}
		}

		results, err := run(ctx)
		if err != nil {
			s.metrics.record(string(op), start, 0, err)
			s.logger.Error("store operation failed", slog.String("operation", string(op)), slog.String("error", err.Error()))
			future.Reject(err)
			return
		}
		s.metrics.record(string(op), start, len(results.FailedData), nil)
		s.logger.Debug("store operation",
			slog.String("operation", string(op)),
			slog.Int("successful", len(results.SuccessfulData)),
			slog.Int("failed", len(results.FailedData)),
		)

		change := notify(results)
		if watching && (len(change.Puts) > 0 || len(change.Deletes) > 0) {
			after, err := s.snapshot(ctx)
			if err != nil {
				s.logger.Error("snapshot after mutation", slog.String("error", err.Error()))
			} else {
				change.BeforeAll = before
				change.AfterAll = after
				s.all.Next(change)
			}
		}

		future.Resolve(results)
	})
	if !queued {
		return observable.Rejected[*storage.UpdateResults[T]](ErrorClosed)
	}

	return future
}

func (s *Store) snapshot(ctx context.Context) ([]Record, error) {
	return s.storage.Fetch(ctx, nil).Data.Wait(ctx)
}

// FetchResult exposes the data and the lengths as independent futures.
// DataLength is the same future as TotalLength.
type FetchResult struct {
	Data        *observable.Future[[]Record]
	TotalLength *observable.Future[int]
	DataLength  *observable.Future[int]
}

// Fetch evaluates q (nil means everything) once the initial load is done.
// If storage fails both futures reject with the same error.
func (s *Store) Fetch(ctx context.Context, q query.Query) *FetchResult {

	result := &FetchResult{
		Data:        observable.NewFuture[[]Record](),
		TotalLength: observable.NewFuture[int](),
	}
	result.DataLength = result.TotalLength

	if s.isClosed() {
		result.Data.Reject(ErrorClosed)
		result.TotalLength.Reject(ErrorClosed)
		return result
	}

	go func() {
		err := s.waitLoaded(ctx)
		if err != nil {
			result.Data.Reject(err)
			result.TotalLength.Reject(err)
			return
		}

		inner := s.storage.Fetch(ctx, q)
		go func() {
			total, err := inner.TotalLength.Wait(ctx)
			if err != nil {
				result.Data.Reject(err)
				result.TotalLength.Reject(err)
				return
			}
			result.TotalLength.Resolve(total)
		}()

		data, err := inner.Data.Wait(ctx)
		if err != nil {
			result.TotalLength.Reject(err)
			result.Data.Reject(err)
			return
		}
		result.Data.Resolve(data)
	}()

	return result
}

func (s *Store) Identify(items ...Record) []string {
	return s.storage.Identify(items)
}

func (s *Store) CreateID(ctx context.Context) (string, error) {
	if s.isClosed() {
		return "", ErrorClosed
	}
	return s.storage.CreateID(ctx)
}

func (s *Store) isClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

// Close rejects new operations, waits for queued ones and completes every
// observer. A storage created by the store is closed too. Close must not be
// called from an observer callback.
func (s *Store) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	tail := s.tail
	s.mutex.Unlock()

	<-tail

	s.mutex.Lock()
	items := s.items
	s.items = map[string]*observable.Registry[Record]{}
	s.mutex.Unlock()

	for _, registry := range items {
		registry.Complete()
	}
	s.all.Complete()

	if !s.ownsStorage {
		return nil
	}
	if closer, ok := s.storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
