package collection

import (
	"github.com/google/btree"
)

// Record is a JSON-like document held by a collection.
type Record = map[string]any

type entry struct {
	id     string
	seq    uint64 // insertion order
	record Record
}

const degree = 32

// Collection is a persistent ordered map from identity to Record. Every
// mutation returns a new version that shares structure with its parent;
// holders of an older version keep seeing it unchanged.
//
// Any number of goroutines may read any version. Deriving new versions
// (Set, Delete) from the same version must be done by one goroutine at a
// time.
type Collection struct {
	byID  *btree.BTreeG[*entry]
	bySeq *btree.BTreeG[*entry]
	seq   uint64
}

func New() *Collection {
	return &Collection{
		byID: btree.NewG(degree, func(a, b *entry) bool {
			return a.id < b.id
		}),
		bySeq: btree.NewG(degree, func(a, b *entry) bool {
			return a.seq < b.seq
		}),
	}
}

// FromRecords builds a version holding records in the given order. Records
// with an empty identity are skipped; later duplicates replace earlier ones.
func FromRecords(idOf func(Record) string, records []Record) *Collection {
	c := New()
	for _, record := range records {
		id := idOf(record)
		if id == "" {
			continue
		}
		c.set(id, record)
	}
	return c
}

// clone is O(1): btree marks both copies copy-on-write.
func (c *Collection) clone() *Collection {
	return &Collection{
		byID:  c.byID.Clone(),
		bySeq: c.bySeq.Clone(),
		seq:   c.seq,
	}
}

func (c *Collection) Get(id string) (Record, bool) {
	e, ok := c.byID.Get(&entry{id: id})
	if !ok {
		return nil, false
	}
	return e.record, true
}

func (c *Collection) Has(id string) bool {
	return c.byID.Has(&entry{id: id})
}

func (c *Collection) Len() int {
	return c.byID.Len()
}

// Set returns a new version where id maps to record. Replacing an existing
// identity keeps its insertion position.
func (c *Collection) Set(id string, record Record) *Collection {
	next := c.clone()
	next.set(id, record)
	return next
}

func (c *Collection) set(id string, record Record) {
	seq := uint64(0)
	if old, exists := c.byID.Get(&entry{id: id}); exists {
		seq = old.seq
	} else {
		c.seq++
		seq = c.seq
	}

	e := &entry{
		id:     id,
		seq:    seq,
		record: record,
	}
	c.byID.ReplaceOrInsert(e)
	c.bySeq.ReplaceOrInsert(e)
}

// Delete returns a new version without id. Deleting a missing id returns
// the receiver itself.
func (c *Collection) Delete(id string) *Collection {
	old, exists := c.byID.Get(&entry{id: id})
	if !exists {
		return c
	}

	next := c.clone()
	next.byID.Delete(old)
	next.bySeq.Delete(old)

	return next
}

// Ascend iterates in insertion order until f returns false.
func (c *Collection) Ascend(f func(id string, record Record) bool) {
	c.bySeq.Ascend(func(e *entry) bool {
		return f(e.id, e.record)
	})
}

// Values returns the records in insertion order.
func (c *Collection) Values() []Record {
	values := make([]Record, 0, c.Len())
	c.Ascend(func(id string, record Record) bool {
		values = append(values, record)
		return true
	})
	return values
}

// IDs returns the identities in insertion order.
func (c *Collection) IDs() []string {
	ids := make([]string, 0, c.Len())
	c.Ascend(func(id string, record Record) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}
