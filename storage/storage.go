package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fulldump/objectstore/collection"
	"github.com/fulldump/objectstore/observable"
	"github.com/fulldump/objectstore/patch"
	"github.com/fulldump/objectstore/query"
)

type Record = collection.Record

var (
	ErrorNotFound         = errors.New("not found")
	ErrorOverwrite        = errors.New("already exists")
	ErrorMissingID        = errors.New("missing identity")
	ErrorInvalidRecord    = errors.New("record must be a JSON object")
	ErrorIdentityChanged  = errors.New("patch changes the record identity")
	ErrorIDOption         = errors.New("id option cannot be used with an identity function")
	ErrorClosed           = errors.New("storage is closed")
	ErrorCorruptedJournal = errors.New("corrupted journal")
)

// Storage is the capability surface consumed by the store coordinator. Every
// method may block; per-id problems are reported in UpdateResults.FailedData
// and a returned error means the whole batch failed.
type Storage interface {
	// Get returns one entry per id, nil for missing ids.
	Get(ctx context.Context, ids []string) ([]Record, error)
	Add(ctx context.Context, items []Record, options Options) (*UpdateResults[Record], error)
	Put(ctx context.Context, items []Record, options Options) (*UpdateResults[Record], error)
	Patch(ctx context.Context, entries []PatchEntry) (*UpdateResults[Record], error)
	Delete(ctx context.Context, ids []string) (*UpdateResults[string], error)
	// Fetch settles Data and TotalLength independently.
	Fetch(ctx context.Context, q query.Query) *FetchResult
	Identify(items []Record) []string
	CreateID(ctx context.Context) (string, error)
}

type Operation string

const (
	OperationAdd    Operation = "add"
	OperationPut    Operation = "put"
	OperationPatch  Operation = "patch"
	OperationDelete Operation = "delete"
)

type Options struct {
	// RejectOverwrite turns an existing identity into a per-id failure.
	RejectOverwrite bool `json:"reject_overwrite,omitempty"`

	// ID is the identity of a single item; it overrides the extracted one
	// and is ignored for batches of more than one item. Adapters configured
	// with an IDFunction reject it.
	ID string `json:"id,omitempty"`
}

type PatchEntry struct {
	ID    string      `json:"id"`
	Patch patch.Patch `json:"patch"`
}

// Failure describes one item of a batch that could not be applied.
type Failure struct {
	ID   string
	Item any
	Err  error
}

func (f Failure) MarshalJSON() ([]byte, error) {
	message := ""
	if f.Err != nil {
		message = f.Err.Error()
	}
	return json.Marshal(struct {
		ID    string `json:"id"`
		Item  any    `json:"item,omitempty"`
		Error string `json:"error"`
	}{
		ID:    f.ID,
		Item:  f.Item,
		Error: message,
	})
}

// UpdateResults is the outcome of one CRUD batch. CurrentItems holds the
// stored version of records that failed but exist, so callers can retry
// against fresh data.
type UpdateResults[T any] struct {
	Type           Operation `json:"type"`
	SuccessfulData []T       `json:"successful_data"`
	FailedData     []Failure `json:"failed_data,omitempty"`
	CurrentItems   []Record  `json:"current_items,omitempty"`
}

func newResults[T any](op Operation) *UpdateResults[T] {
	return &UpdateResults[T]{
		Type:           op,
		SuccessfulData: []T{},
	}
}

type FetchResult struct {
	Data        *observable.Future[[]Record]
	TotalLength *observable.Future[int]
}

// RejectedFetch returns a result whose futures both reject with err.
func RejectedFetch(err error) *FetchResult {
	return &FetchResult{
		Data:        observable.Rejected[[]Record](err),
		TotalLength: observable.Rejected[int](err),
	}
}
