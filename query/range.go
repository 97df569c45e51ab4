package query

import (
	"strconv"
)

// RangeQuery keeps the window [Start, Start+Count).
type RangeQuery struct {
	Start int
	Count int
}

func Range(start, count int) *RangeQuery {
	return &RangeQuery{Start: start, Count: count}
}

// Apply clips the window to the input: a window past the end yields the
// tail or an empty result, never an error.
func (q *RangeQuery) Apply(records []Record) []Record {
	start := max(q.Start, 0)
	if q.Count <= 0 || start >= len(records) {
		return []Record{}
	}
	end := len(records)
	if q.Count < end-start {
		end = start + q.Count
	}

	result := make([]Record, end-start)
	copy(result, records[start:end])
	return result
}

// Serialize renders limit(count) or limit(count,start).
func (q *RangeQuery) Serialize(s Serializer) string {
	if q.Start == 0 {
		return "limit(" + strconv.Itoa(q.Count) + ")"
	}
	return "limit(" + strconv.Itoa(q.Count) + "," + strconv.Itoa(q.Start) + ")"
}

func (q *RangeQuery) String() string {
	return q.Serialize(RQL)
}

func (q *RangeQuery) Type() Type {
	return TypeRange
}

// Incremental is false: the window depends on positions, so any upstream
// change moves it.
func (q *RangeQuery) Incremental() bool {
	return false
}
