package query

import (
	"errors"
	"slices"
	"strings"

	jsonv2 "github.com/go-json-experiment/json"

	"github.com/fulldump/objectstore/collection"
	"github.com/fulldump/objectstore/patch"
)

type Record = collection.Record

var ErrorInvalidQuery = errors.New("invalid query")

type Type int

const (
	TypeFilter Type = iota
	TypeSort
	TypeRange
	TypeCompound
)

func (t Type) String() string {
	switch t {
	case TypeFilter:
		return "filter"
	case TypeSort:
		return "sort"
	case TypeRange:
		return "range"
	case TypeCompound:
		return "compound"
	}
	return "unknown"
}

// Query is an immutable operator over a sequence of records. Apply never
// modifies its input slice.
type Query interface {
	Apply(records []Record) []Record
	Serialize(s Serializer) string
	String() string
	Type() Type

	// Incremental reports whether the query can be applied to a delta
	// instead of being recomputed over the whole sequence.
	Incremental() bool
}

// Serializer renders paths and literal values inside a serialized query.
type Serializer interface {
	Path(p patch.Pointer) string
	Value(v any) string
}

// RQL is the default serializer: dotted paths and canonical JSON values.
var RQL Serializer = rqlSerializer{}

type rqlSerializer struct{}

func (rqlSerializer) Path(p patch.Pointer) string {
	return p.Dotted()
}

func (rqlSerializer) Value(v any) string {
	b, err := jsonv2.Marshal(v, jsonv2.Deterministic(true))
	if err != nil {
		return "null"
	}
	return string(b)
}

const separator = "&"

// CompoundQuery threads records through its members from left to right.
type CompoundQuery struct {
	queries []Query
}

// Compose builds a compound query. Nested compounds are flattened and nil
// members are skipped. Compose() is the identity query.
func Compose(queries ...Query) *CompoundQuery {
	c := &CompoundQuery{}
	for _, q := range queries {
		c.queries = appendFlat(c.queries, q)
	}
	return c
}

func appendFlat(list []Query, q Query) []Query {
	switch v := q.(type) {
	case nil:
		return list
	case *CompoundQuery:
		if v == nil {
			return list
		}
		return append(list, v.queries...)
	}
	return append(list, q)
}

// Then returns a new compound with q appended; the receiver is unchanged.
func (c *CompoundQuery) Then(q Query) *CompoundQuery {
	next := &CompoundQuery{queries: slices.Clone(c.queries)}
	next.queries = appendFlat(next.queries, q)
	return next
}

func (c *CompoundQuery) Queries() []Query {
	return slices.Clone(c.queries)
}

func (c *CompoundQuery) Len() int {
	return len(c.queries)
}

func (c *CompoundQuery) Apply(records []Record) []Record {
	result := slices.Clone(records)
	if result == nil {
		result = []Record{}
	}
	for _, q := range c.queries {
		result = q.Apply(result)
	}
	return result
}

func (c *CompoundQuery) Serialize(s Serializer) string {
	parts := make([]string, len(c.queries))
	for i, q := range c.queries {
		parts[i] = q.Serialize(s)
	}
	return strings.Join(parts, separator)
}

func (c *CompoundQuery) String() string {
	return c.Serialize(RQL)
}

func (c *CompoundQuery) Type() Type {
	return TypeCompound
}

func (c *CompoundQuery) Incremental() bool {
	for _, q := range c.queries {
		if !q.Incremental() {
			return false
		}
	}
	return true
}

// Split cuts q before its first range. Applying head gives the full match
// set (its length is the total length); applying tail to that result gives
// the requested page. Both halves are always non-nil.
func Split(q Query) (head, tail *CompoundQuery) {
	all := Compose(q).queries
	for i, member := range all {
		if member.Type() == TypeRange {
			return &CompoundQuery{queries: all[:i:i]}, &CompoundQuery{queries: all[i:]}
		}
	}
	return &CompoundQuery{queries: all}, Compose()
}
