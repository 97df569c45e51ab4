package query

import (
	"errors"
	"math"
	"strings"
	"testing"

	. "github.com/fulldump/biff"
)

func people() []Record {
	return []Record{
		{"id": 1.0, "name": "ana", "age": 30.0, "tags": []any{"admin"}},
		{"id": 2.0, "name": "bob", "age": 25.0, "address": map[string]any{"city": "Madrid"}},
		{"id": 3.0, "name": "carol", "age": 30.0},
		{"id": 4.0, "name": "dave", "age": 25.0, "address": map[string]any{"city": "Paris"}},
	}
}

func ids(records []Record) []float64 {
	result := []float64{}
	for _, r := range records {
		result = append(result, r["id"].(float64))
	}
	return result
}

func TestFilter(t *testing.T) {

	cases := []struct {
		expr     Expression
		expected []float64
	}{
		{Eq("name", "bob"), []float64{2}},
		{Eq("age", 30), []float64{1, 3}},
		{Ne("name", "bob"), []float64{1, 3, 4}},
		{Lt("age", 30), []float64{2, 4}},
		{Le("name", "bob"), []float64{1, 2}},
		{Gt("name", "bob"), []float64{3, 4}},
		{Ge("age", 30), []float64{1, 3}},
		{Gt("age", "10"), []float64{}},
		{Contains("name", "o"), []float64{2, 3}},
		{Contains("tags", "admin"), []float64{1}},
		{Eq("address.city", "Paris"), []float64{4}},
		{Ne("address.city", "Paris"), []float64{1, 2, 3}},
		{In("name", "ana", "dave", "zoe"), []float64{1, 4}},
		{And(Eq("age", 25), Contains("name", "a")), []float64{4}},
		{Or(Eq("id", 1), Eq("id", 3)), []float64{1, 3}},
		{Not(Eq("age", 25)), []float64{1, 3}},
		{And(), []float64{1, 2, 3, 4}},
		{Or(), []float64{}},
		{Match(map[string]any{"name": "carol"}), []float64{3}},
		{Custom("even", func(r Record) bool { return int(r["id"].(float64))%2 == 0 }), []float64{2, 4}},
	}

	for _, c := range cases {
		result := Filter(c.expr).Apply(people())
		AssertEqual(ids(result), c.expected)
	}
}

func TestFilter_DoesNotModifyInput(t *testing.T) {
	input := people()
	Filter(Eq("name", "bob")).Apply(input)
	AssertEqual(len(input), 4)
	AssertEqual(ids(input), []float64{1, 2, 3, 4})
}

func TestFilter_Serialize(t *testing.T) {

	cases := []struct {
		query    Query
		expected string
	}{
		{Filter(Eq("name", "b")), `eq(name,"b")`},
		{Filter(Gt("address.zip", 28000)), `gt(address.zip,28000)`},
		{Filter(And(Eq("a", true), Not(In("b", 1, "x")))), `and(eq(a,true),not(in(b,1,"x")))`},
		{Filter(Match(map[string]any{"z": 1, "a": 2})), `match({"a":2,"z":1})`},
		{Filter(Custom("adults", nil)), `custom(adults)`},
	}

	for _, c := range cases {
		AssertEqual(c.query.String(), c.expected)
		AssertEqual(c.query.Type(), TypeFilter)
		AssertTrue(c.query.Incremental())
	}
}

func TestSort_Stable(t *testing.T) {

	// Setup
	records := people()

	// Run
	result := SortBy("age").Apply(records)

	// Check
	AssertEqual(ids(result), []float64{2, 4, 1, 3})
	AssertEqual(ids(records), []float64{1, 2, 3, 4})
}

func TestSort_MultiKey(t *testing.T) {

	result := SortBy("-age", "+name").Apply(people())
	AssertEqual(ids(result), []float64{1, 3, 2, 4})

	result = SortBy("-age", "-name").Apply(people())
	AssertEqual(ids(result), []float64{3, 1, 4, 2})
}

func TestSort_MissingFirst(t *testing.T) {
	result := SortBy("address.city").Apply(people())
	AssertEqual(ids(result), []float64{1, 3, 2, 4})
}

func TestSort_CustomComparator(t *testing.T) {

	byLength := Sort(SortKey{
		Path: []string{"name"},
		Compare: func(a, b any) int {
			return len(a.(string)) - len(b.(string))
		},
	})
	AssertEqual(ids(byLength.Apply(people())), []float64{1, 2, 4, 3})

	reversed := SortFunc("reverse-id", func(a, b Record) int {
		return Compare(b["id"], a["id"])
	})
	AssertEqual(ids(reversed.Apply(people())), []float64{4, 3, 2, 1})
	AssertEqual(reversed.String(), "sort(@reverse-id)")
}

func TestSort_Serialize(t *testing.T) {
	q := SortBy("name", "-address.city")
	AssertEqual(q.String(), "sort(+name,-address.city)")
	AssertEqual(q.Type(), TypeSort)
}

func TestRange(t *testing.T) {

	cases := []struct {
		start    int
		count    int
		expected []float64
	}{
		{0, 0, []float64{}},
		{0, 2, []float64{1, 2}},
		{1, 2, []float64{2, 3}},
		{3, 10, []float64{4}},
		{4, 1, []float64{}},
		{100, 5, []float64{}},
		{1, math.MaxInt, []float64{2, 3, 4}},
		{math.MaxInt, math.MaxInt, []float64{}},
	}

	for _, c := range cases {
		result := Range(c.start, c.count).Apply(people())
		AssertEqual(ids(result), c.expected)
	}
}

func TestRange_Serialize(t *testing.T) {
	AssertEqual(Range(0, 10).String(), "limit(10)")
	AssertEqual(Range(20, 10).String(), "limit(10,20)")
	AssertFalse(Range(0, 10).Incremental())
	AssertEqual(Range(0, 10).Type(), TypeRange)
}

func TestCompose(t *testing.T) {

	// Setup
	filter := Filter(Ge("age", 25))
	sort := SortBy("name")
	page := Range(1, 2)

	// Run
	q := Compose(Compose(filter, sort), page)

	// Check
	AssertEqual(q.Len(), 3)
	AssertEqual(q.String(), `ge(age,25)&sort(+name)&limit(2,1)`)
	AssertEqual(ids(q.Apply(people())), []float64{2, 3})
	AssertFalse(q.Incremental())
	AssertTrue(Compose(filter, sort).Incremental())
	AssertEqual(q.Type(), TypeCompound)
}

func TestCompose_Then(t *testing.T) {

	base := Compose(Filter(Eq("age", 25)))
	next := base.Then(Compose(SortBy("-name"), Range(0, 1)))

	AssertEqual(base.Len(), 1)
	AssertEqual(next.Len(), 3)
	AssertEqual(ids(next.Apply(people())), []float64{4})
}

func TestCompose_Identity(t *testing.T) {
	q := Compose()
	AssertEqual(q.String(), "")
	AssertEqual(ids(q.Apply(people())), []float64{1, 2, 3, 4})
	AssertEqual(len(q.Apply(nil)), 0)
}

func TestSplit(t *testing.T) {

	Alternative("Split", func(a *A) {

		a.Alternative("with range", func(a *A) {
			head, tail := Split(Compose(Filter(Ge("age", 25)), Range(0, 1), SortBy("name")))
			AssertEqual(head.String(), "ge(age,25)")
			AssertEqual(tail.String(), "limit(1)&sort(+name)")
		})

		a.Alternative("without range", func(a *A) {
			head, tail := Split(Filter(Eq("name", "b")))
			AssertEqual(head.String(), `eq(name,"b")`)
			AssertEqual(tail.Len(), 0)
		})

		a.Alternative("nil", func(a *A) {
			head, tail := Split(nil)
			AssertEqual(head.Len(), 0)
			AssertEqual(tail.Len(), 0)
		})
	})
}

func TestParse_RoundTrip(t *testing.T) {

	queries := []Query{
		Filter(Eq("name", "b")),
		Filter(And(Eq("a", true), Not(In("b", 1, "x, y")), Contains("c", "(z)"))),
		Filter(Or(Lt("n", 1.5), Ge("s", "q&r"))),
		Filter(Match(map[string]any{"age": map[string]any{"$gt": 18}})),
		SortBy("+name", "-address.city"),
		Range(0, 10),
		Compose(Filter(Ne("x", nil)), SortBy("-y"), Range(5, 10)),
	}

	for _, q := range queries {
		parsed, err := Parse(q.String())
		AssertNil(err)
		AssertEqual(parsed.String(), q.String())
		AssertEqual(ids(parsed.Apply(people())), ids(q.Apply(people())))
	}
}

func TestParse_HugeLimit(t *testing.T) {
	q, err := Parse("limit(9223372036854775807,1)")
	AssertNil(err)
	AssertEqual(ids(q.Apply(people())), []float64{2, 3, 4})
}

func TestParse_BareValue(t *testing.T) {
	q, err := Parse("eq(name,bob)")
	AssertNil(err)
	AssertEqual(ids(q.Apply(people())), []float64{2})
}

func TestParse_Errors(t *testing.T) {

	inputs := []string{
		"eq(name)",
		"limit(x)",
		"unknown(a,1)",
		"custom(even)",
		"sort(@reverse)",
		`eq(name,"b"`,
		"eq(a,1))",
		"match(nope)",
	}

	for _, input := range inputs {
		_, err := Parse(input)
		AssertTrue(errors.Is(err, ErrorInvalidQuery))
	}
}

func TestParse_Empty(t *testing.T) {
	q, err := Parse("  ")
	AssertNil(err)
	AssertEqual(q.Type(), TypeCompound)
	AssertTrue(strings.TrimSpace(q.String()) == "")
}
