package query

import (
	"slices"
	"strings"

	"github.com/fulldump/objectstore/patch"
)

// SortKey orders by the value found at Path. Compare overrides the default
// value ordering for this key.
type SortKey struct {
	Path       patch.Pointer
	Descending bool
	Compare    func(a, b any) int
}

// SortQuery is a stable multi-key sort: records equal under every key keep
// their input order.
type SortQuery struct {
	Keys []SortKey

	name   string
	custom func(a, b Record) int
}

func Sort(keys ...SortKey) *SortQuery {
	return &SortQuery{Keys: keys}
}

// SortBy parses "name", "+name" (ascending) and "-name" (descending).
func SortBy(fields ...string) *SortQuery {
	keys := make([]SortKey, 0, len(fields))
	for _, field := range fields {
		keys = append(keys, parseSortKey(field))
	}
	return Sort(keys...)
}

func parseSortKey(field string) SortKey {
	key := SortKey{}
	switch {
	case strings.HasPrefix(field, "-"):
		key.Descending = true
		field = field[1:]
	case strings.HasPrefix(field, "+"):
		field = field[1:]
	}
	key.Path = patch.ParseDotted(field)
	return key
}

// SortFunc sorts with a whole-record comparator; name is what gets
// serialized.
func SortFunc(name string, compare func(a, b Record) int) *SortQuery {
	return &SortQuery{name: name, custom: compare}
}

func (q *SortQuery) compare(a, b Record) int {
	if q.custom != nil {
		return q.custom(a, b)
	}
	for _, key := range q.Keys {
		va, _ := patch.Resolve(a, key.Path)
		vb, _ := patch.Resolve(b, key.Path)

		c := 0
		if key.Compare != nil {
			c = key.Compare(va, vb)
		} else {
			c = Compare(va, vb)
		}
		if key.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func (q *SortQuery) Apply(records []Record) []Record {
	result := slices.Clone(records)
	if result == nil {
		return []Record{}
	}
	slices.SortStableFunc(result, q.compare)
	return result
}

func (q *SortQuery) Serialize(s Serializer) string {
	if q.custom != nil {
		return "sort(@" + q.name + ")"
	}
	parts := make([]string, len(q.Keys))
	for i, key := range q.Keys {
		sign := "+"
		if key.Descending {
			sign = "-"
		}
		parts[i] = sign + s.Path(key.Path)
	}
	return "sort(" + strings.Join(parts, ",") + ")"
}

func (q *SortQuery) String() string {
	return q.Serialize(RQL)
}

func (q *SortQuery) Type() Type {
	return TypeSort
}

func (q *SortQuery) Incremental() bool {
	return true
}
