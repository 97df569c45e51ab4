package query

import (
	"strings"

	"github.com/SierraSoftworks/connor"

	"github.com/fulldump/objectstore/patch"
)

// Expression is a node of a filter expression tree.
type Expression interface {
	Match(record Record) bool
	Serialize(s Serializer) string
}

// FilterQuery keeps the records matching its expression, in input order.
type FilterQuery struct {
	Expression Expression
}

func Filter(e Expression) *FilterQuery {
	return &FilterQuery{Expression: e}
}

func (f *FilterQuery) Apply(records []Record) []Record {
	result := []Record{}
	for _, record := range records {
		if f.Expression == nil || f.Expression.Match(record) {
			result = append(result, record)
		}
	}
	return result
}

func (f *FilterQuery) Serialize(s Serializer) string {
	if f.Expression == nil {
		return "and()"
	}
	return f.Expression.Serialize(s)
}

func (f *FilterQuery) String() string {
	return f.Serialize(RQL)
}

func (f *FilterQuery) Type() Type {
	return TypeFilter
}

func (f *FilterQuery) Incremental() bool {
	return true
}

type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpLt       Operator = "lt"
	OpLe       Operator = "le"
	OpGt       Operator = "gt"
	OpGe       Operator = "ge"
	OpContains Operator = "contains"
)

// Comparison tests the value found at Path against Value. A missing path
// only satisfies ne.
type Comparison struct {
	Operator Operator
	Path     patch.Pointer
	Value    any
}

func compare(op Operator, path string, value any) *Comparison {
	return &Comparison{Operator: op, Path: patch.ParseDotted(path), Value: value}
}

func Eq(path string, value any) *Comparison       { return compare(OpEq, path, value) }
func Ne(path string, value any) *Comparison       { return compare(OpNe, path, value) }
func Lt(path string, value any) *Comparison       { return compare(OpLt, path, value) }
func Le(path string, value any) *Comparison       { return compare(OpLe, path, value) }
func Gt(path string, value any) *Comparison       { return compare(OpGt, path, value) }
func Ge(path string, value any) *Comparison       { return compare(OpGe, path, value) }
func Contains(path string, value any) *Comparison { return compare(OpContains, path, value) }

func (c *Comparison) Match(record Record) bool {
	current, found := patch.Resolve(record, c.Path)
	if !found {
		return c.Operator == OpNe
	}

	switch c.Operator {
	case OpEq:
		return patch.Equal(current, c.Value)
	case OpNe:
		return !patch.Equal(current, c.Value)
	case OpLt:
		return orderable(current, c.Value) && Compare(current, c.Value) < 0
	case OpLe:
		return orderable(current, c.Value) && Compare(current, c.Value) <= 0
	case OpGt:
		return orderable(current, c.Value) && Compare(current, c.Value) > 0
	case OpGe:
		return orderable(current, c.Value) && Compare(current, c.Value) >= 0
	case OpContains:
		return contains(current, c.Value)
	}
	return false
}

func contains(container, value any) bool {
	switch v := container.(type) {
	case string:
		s, ok := value.(string)
		return ok && strings.Contains(v, s)
	case []any:
		for _, item := range v {
			if patch.Equal(item, value) {
				return true
			}
		}
	}
	return false
}

func (c *Comparison) Serialize(s Serializer) string {
	return string(c.Operator) + "(" + s.Path(c.Path) + "," + s.Value(c.Value) + ")"
}

// InExpression matches when the value at Path equals any of Values.
type InExpression struct {
	Path   patch.Pointer
	Values []any
}

func In(path string, values ...any) *InExpression {
	return &InExpression{Path: patch.ParseDotted(path), Values: values}
}

func (e *InExpression) Match(record Record) bool {
	current, found := patch.Resolve(record, e.Path)
	if !found {
		return false
	}
	for _, v := range e.Values {
		if patch.Equal(current, v) {
			return true
		}
	}
	return false
}

func (e *InExpression) Serialize(s Serializer) string {
	parts := []string{s.Path(e.Path)}
	for _, v := range e.Values {
		parts = append(parts, s.Value(v))
	}
	return "in(" + strings.Join(parts, ",") + ")"
}

type AndExpression struct {
	Operands []Expression
}

// And matches when every operand matches. And() matches everything.
func And(operands ...Expression) *AndExpression {
	return &AndExpression{Operands: operands}
}

func (e *AndExpression) Match(record Record) bool {
	for _, operand := range e.Operands {
		if !operand.Match(record) {
			return false
		}
	}
	return true
}

func (e *AndExpression) Serialize(s Serializer) string {
	return "and(" + serializeAll(s, e.Operands) + ")"
}

type OrExpression struct {
	Operands []Expression
}

// Or matches when any operand matches. Or() matches nothing.
func Or(operands ...Expression) *OrExpression {
	return &OrExpression{Operands: operands}
}

func (e *OrExpression) Match(record Record) bool {
	for _, operand := range e.Operands {
		if operand.Match(record) {
			return true
		}
	}
	return false
}

func (e *OrExpression) Serialize(s Serializer) string {
	return "or(" + serializeAll(s, e.Operands) + ")"
}

type NotExpression struct {
	Operand Expression
}

func Not(operand Expression) *NotExpression {
	return &NotExpression{Operand: operand}
}

func (e *NotExpression) Match(record Record) bool {
	return !e.Operand.Match(record)
}

func (e *NotExpression) Serialize(s Serializer) string {
	return "not(" + e.Operand.Serialize(s) + ")"
}

func serializeAll(s Serializer, list []Expression) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = e.Serialize(s)
	}
	return strings.Join(parts, ",")
}

// MatchExpression evaluates mongo-style conditions, for example
// {"age": {"$gt": 18}}. A condition that cannot be evaluated does not match.
type MatchExpression struct {
	Conditions map[string]any
}

func Match(conditions map[string]any) *MatchExpression {
	return &MatchExpression{Conditions: conditions}
}

func (e *MatchExpression) Match(record Record) bool {
	match, err := connor.Match(e.Conditions, record)
	if err != nil {
		return false
	}
	return match
}

func (e *MatchExpression) Serialize(s Serializer) string {
	return "match(" + s.Value(e.Conditions) + ")"
}

// CustomExpression wraps an arbitrary predicate. Only its name is
// serialized, so it cannot be parsed back.
type CustomExpression struct {
	Name      string
	Predicate func(record Record) bool
}

func Custom(name string, predicate func(record Record) bool) *CustomExpression {
	return &CustomExpression{Name: name, Predicate: predicate}
}

func (e *CustomExpression) Match(record Record) bool {
	return e.Predicate(record)
}

func (e *CustomExpression) Serialize(s Serializer) string {
	return "custom(" + e.Name + ")"
}
