package collection

import (
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	. "github.com/fulldump/biff"
)

func TestSet(t *testing.T) {

	// Setup
	c := New()

	// Run
	c = c.Set("1", Record{"id": "1", "name": "Pablo"})
	c = c.Set("2", Record{"id": "2", "name": "Sara"})

	// Check
	AssertEqual(c.Len(), 2)
	record, found := c.Get("2")
	AssertTrue(found)
	AssertEqual(record["name"], "Sara")
}

func TestGetMissing(t *testing.T) {
	c := New().Set("1", Record{"id": "1"})

	record, found := c.Get("nope")
	AssertFalse(found)
	AssertNil(record)
	AssertFalse(c.Has("nope"))
}

func TestSet_PreviousVersionUnchanged(t *testing.T) {

	// Setup
	v1 := New().Set("1", Record{"name": "a"})

	// Run
	v2 := v1.Set("1", Record{"name": "z"}).Set("2", Record{"name": "b"})

	// Check
	old, _ := v1.Get("1")
	AssertEqual(old["name"], "a")
	AssertEqual(v1.Len(), 1)

	current, _ := v2.Get("1")
	AssertEqual(current["name"], "z")
	AssertEqual(v2.Len(), 2)
}

func TestSet_ReplaceKeepsInsertionOrder(t *testing.T) {

	// Setup
	c := New().
		Set("b", Record{"v": 1}).
		Set("a", Record{"v": 2}).
		Set("c", Record{"v": 3})

	// Run
	c = c.Set("b", Record{"v": 4})

	// Check
	AssertEqual(c.IDs(), []string{"b", "a", "c"})
	AssertEqual(c.Values()[0]["v"], 4)
}

func TestDelete(t *testing.T) {

	// Setup
	v1 := New().Set("1", Record{}).Set("2", Record{}).Set("3", Record{})

	// Run
	v2 := v1.Delete("2")

	// Check
	AssertEqual(v2.IDs(), []string{"1", "3"})
	AssertEqual(v1.IDs(), []string{"1", "2", "3"})
}

func TestDelete_Missing(t *testing.T) {
	v1 := New().Set("1", Record{})

	v2 := v1.Delete("nope")

	AssertTrue(v1 == v2)
}

func TestDelete_ThenSetAppends(t *testing.T) {
	c := New().Set("1", Record{}).Set("2", Record{})

	c = c.Delete("1").Set("1", Record{})

	AssertEqual(c.IDs(), []string{"2", "1"})
}

func TestAscend_Stop(t *testing.T) {
	c := New().Set("1", Record{}).Set("2", Record{}).Set("3", Record{})

	visited := []string{}
	c.Ascend(func(id string, record Record) bool {
		visited = append(visited, id)
		return len(visited) < 2
	})

	AssertEqual(visited, []string{"1", "2"})
}

func TestConcurrentReaders(t *testing.T) {

	// Setup
	base := New()
	for i := 0; i < 1000; i++ {
		id := strconv.Itoa(i)
		base = base.Set(id, Record{"id": id})
	}

	// Run
	wg := &sync.WaitGroup{}
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			AssertEqual(len(base.Values()), 1000)
		}()
	}
	next := base
	for i := 0; i < 500; i++ {
		next = next.Delete(strconv.Itoa(i))
	}
	wg.Wait()

	// Check
	AssertEqual(base.Len(), 1000)
	AssertEqual(next.Len(), 500)
}

func TestCanonicalID(t *testing.T) {

	cases := []struct {
		input    any
		expected string
		ok       bool
	}{
		{"abc", "abc", true},
		{1, "1", true},
		{int64(1), "1", true},
		{uint8(7), "7", true},
		{1.0, "1", true},
		{float32(2), "2", true},
		{1.5, "1.5", true},
		{json.Number("3"), "3", true},
		{json.Number("3.0"), "3", true},
		{"", "", false},
		{nil, "", false},
	}

	for _, c := range cases {
		id, ok := CanonicalID(c.input)
		AssertEqual(id, c.expected)
		AssertEqual(ok, c.ok)
	}
}

func TestFromRecords(t *testing.T) {

	idOf := func(r Record) string {
		id, _ := CanonicalID(r["id"])
		return id
	}

	c := FromRecords(idOf, []Record{
		{"id": 2, "name": "b"},
		{"id": 1, "name": "a"},
		{"name": "no id"},
		{"id": "2", "name": "bb"},
	})

	AssertEqual(c.IDs(), []string{"2", "1"})
	record, _ := c.Get("2")
	AssertEqual(record["name"], "bb")
}
