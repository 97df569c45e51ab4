package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/fulldump/objectstore/collection"
	"github.com/fulldump/objectstore/observable"
	"github.com/fulldump/objectstore/patch"
	"github.com/fulldump/objectstore/query"
)

type changeKind string

const (
	changePut    changeKind = "put"
	changePatch  changeKind = "patch"
	changeDelete changeKind = "delete"
)

// change is one accepted mutation of a batch, handed to the adapter's commit
// hook before the new collection version becomes visible.
type change struct {
	Kind   changeKind
	ID     string
	Record Record
	Patch  patch.Patch
}

// engine holds the current collection version and implements Storage on top
// of it. Writers are serialised by mutex; readers only grab the current
// version and work on it without locks.
type engine struct {
	config Config

	mutex   sync.RWMutex
	current *collection.Collection
	closed  bool

	// commit persists a batch. A failing commit discards the batch.
	commit func(changes []change) error
}

func (e *engine) init(config Config) {
	e.config = config.withDefaults()
	e.current = collection.New()
}

func (e *engine) snapshot() (*collection.Collection, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	if e.closed {
		return nil, ErrorClosed
	}
	return e.current, nil
}

// publish persists changes and swaps in next. Callers hold the write lock.
func (e *engine) publish(next *collection.Collection, changes []change) error {
	if len(changes) == 0 {
		return nil
	}
	if e.commit != nil {
		err := e.commit(changes)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	e.current = next
	return nil
}

func (e *engine) Len() int {
	c, err := e.snapshot()
	if err != nil {
		return 0
	}
	return c.Len()
}

func (e *engine) Get(ctx context.Context, ids []string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	result := make([]Record, len(ids))
	for i, id := range ids {
		if record, found := c.Get(id); found {
			result[i] = cloneRecord(record)
		}
	}
	return result, nil
}

func (e *engine) Add(ctx context.Context, items []Record, options Options) (*UpdateResults[Record], error) {
	options.RejectOverwrite = true
	return e.put(ctx, items, options, OperationAdd)
}

func (e *engine) Put(ctx context.Context, items []Record, options Options) (*UpdateResults[Record], error) {
	return e.put(ctx, items, options, OperationPut)
}

type prepared struct {
	id     string
	record Record
}

func (e *engine) prepare(items []Record, options Options, results *UpdateResults[Record]) ([]prepared, error) {

	list := make([]prepared, 0, len(items))
	for _, item := range items {
		record, err := normalizeRecord(item)
		if err != nil {
			results.FailedData = append(results.FailedData, Failure{ID: e.config.identify(item), Item: item, Err: err})
			continue
		}

		assign := false
		id := ""
		if options.ID != "" && len(items) == 1 {
			if e.config.IDFunction != nil {
				results.FailedData = append(results.FailedData, Failure{ID: options.ID, Item: item, Err: ErrorIDOption})
				continue
			}
			id, assign = options.ID, true
		} else {
			id = e.config.identify(record)
		}

		if id == "" {
			if e.config.IDFunction != nil {
				results.FailedData = append(results.FailedData, Failure{Item: item, Err: ErrorMissingID})
				continue
			}
			id, err = e.config.IDGenerator.NewID()
			if err != nil {
				return nil, fmt.Errorf("create id: %w", err)
			}
			assign = true
		}

		if assign && e.config.IDFunction == nil {
			record[e.config.IDProperty] = id
		}

		list = append(list, prepared{id: id, record: record})
	}

	return list, nil
}

func (e *engine) put(ctx context.Context, items []Record, options Options, op Operation) (*UpdateResults[Record], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := newResults[Record](op)
	list, err := e.prepare(items, options, results)
	if err != nil {
		return nil, err
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		return nil, ErrorClosed
	}

	next := e.current
	changes := make([]change, 0, len(list))
	for _, item := range list {
		if options.RejectOverwrite {
			if existing, found := next.Get(item.id); found {
				results.FailedData = append(results.FailedData, Failure{ID: item.id, Item: item.record, Err: ErrorOverwrite})
				results.CurrentItems = append(results.CurrentItems, cloneRecord(existing))
				continue
			}
		}

		next = next.Set(item.id, item.record)
		changes = append(changes, change{Kind: changePut, ID: item.id, Record: item.record})
		results.SuccessfulData = append(results.SuccessfulData, cloneRecord(item.record))
	}

	err = e.publish(next, changes)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (e *engine) Patch(ctx context.Context, entries []PatchEntry) (*UpdateResults[Record], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := newResults[Record](OperationPatch)

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		return nil, ErrorClosed
	}

	next := e.current
	changes := make([]change, 0, len(entries))
	for _, entry := range entries {
		existing, found := next.Get(entry.ID)
		if !found {
			results.FailedData = append(results.FailedData, Failure{ID: entry.ID, Item: entry.Patch, Err: ErrorNotFound})
			continue
		}

		record, err := e.applyPatch(entry, existing)
		if err != nil {
			results.FailedData = append(results.FailedData, Failure{ID: entry.ID, Item: entry.Patch, Err: err})
			results.CurrentItems = append(results.CurrentItems, cloneRecord(existing))
			continue
		}

		next = next.Set(entry.ID, record)
		changes = append(changes, change{Kind: changePatch, ID: entry.ID, Record: record, Patch: entry.Patch})
		results.SuccessfulData = append(results.SuccessfulData, cloneRecord(record))
	}

	err := e.publish(next, changes)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (e *engine) applyPatch(entry PatchEntry, existing Record) (Record, error) {
	patched, err := entry.Patch.Apply(existing)
	if err != nil {
		return nil, err
	}
	record, err := normalizeRecord(patched)
	if err != nil {
		return nil, err
	}
	if e.config.identify(record) != entry.ID {
		return nil, ErrorIdentityChanged
	}
	return record, nil
}

func (e *engine) Delete(ctx context.Context, ids []string) (*UpdateResults[string], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := newResults[string](OperationDelete)

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		return nil, ErrorClosed
	}

	next := e.current
	changes := make([]change, 0, len(ids))
	for _, id := range ids {
		if !next.Has(id) {
			results.FailedData = append(results.FailedData, Failure{ID: id, Err: ErrorNotFound})
			continue
		}
		next = next.Delete(id)
		changes = append(changes, change{Kind: changeDelete, ID: id})
		results.SuccessfulData = append(results.SuccessfulData, id)
	}

	err := e.publish(next, changes)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Fetch evaluates q over the current version. The total length is the
// number of records matched before the first range of q.
func (e *engine) Fetch(ctx context.Context, q query.Query) *FetchResult {
	if err := ctx.Err(); err != nil {
		return RejectedFetch(err)
	}

	c, err := e.snapshot()
	if err != nil {
		return RejectedFetch(err)
	}

	result := &FetchResult{
		Data:        observable.NewFuture[[]Record](),
		TotalLength: observable.NewFuture[int](),
	}

	go func() {
		head, tail := query.Split(q)
		matched := head.Apply(c.Values())
		result.TotalLength.Resolve(len(matched))
		result.Data.Resolve(cloneRecords(tail.Apply(matched)))
	}()

	return result
}

func (e *engine) Identify(items []Record) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = e.config.identify(item)
	}
	return ids
}

func (e *engine) CreateID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.config.IDGenerator.NewID()
}

func (e *engine) close() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		return false
	}
	e.closed = true
	return true
}

// Memory keeps records only in memory. It is the default adapter.
type Memory struct {
	engine
}

func NewMemory(config Config) *Memory {
	m := &Memory{}
	m.init(config)
	return m
}

func (m *Memory) Close() error {
	m.close()
	return nil
}

func normalizeRecord(item any) (Record, error) {
	normalized, err := patch.Normalize(item)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrorInvalidRecord, err.Error())
	}
	record, ok := normalized.(map[string]any)
	if !ok {
		return nil, ErrorInvalidRecord
	}
	return record, nil
}

func cloneRecord(record Record) Record {
	if record == nil {
		return nil
	}
	return patch.Clone(record).(map[string]any)
}

func cloneRecords(records []Record) []Record {
	result := make([]Record, len(records))
	for i, record := range records {
		result[i] = cloneRecord(record)
	}
	return result
}
