package patch

import (
	"errors"
	"fmt"

	jsonv2 "github.com/go-json-experiment/json"
)

var (
	ErrorInvalidPointer   = errors.New("invalid pointer")
	ErrorInvalidOperation = errors.New("invalid operation")
	ErrorPathNotFound     = errors.New("path not found")
	ErrorInvalidIndex     = errors.New("invalid array index")
	ErrorTestFailed       = errors.New("test failed")
	ErrorNotReversible    = errors.New("patch is not reversible")
)

type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
	OpTest    Op = "test"
)

// Operation is a single RFC 6902 step. Old holds the value found at Path
// before the operation, when known (Diff always records it for remove and
// replace), and is what makes a patch reversible.
type Operation struct {
	Op    Op
	Path  Pointer
	Value any

	Old    any
	HasOld bool
}

func Add(path Pointer, value any) Operation {
	return Operation{Op: OpAdd, Path: path, Value: value}
}

func Remove(path Pointer) Operation {
	return Operation{Op: OpRemove, Path: path}
}

func Replace(path Pointer, value any) Operation {
	return Operation{Op: OpReplace, Path: path, Value: value}
}

func Test(path Pointer, value any) Operation {
	return Operation{Op: OpTest, Path: path, Value: value}
}

// Patch is an ordered list of operations.
type Patch []Operation

// Apply executes the operations in order over a deep copy of root; root is
// never modified. replace, remove and test on a missing path fail the whole
// patch with ErrorPathNotFound, add creates missing intermediate objects.
func (p Patch) Apply(root any) (any, error) {
	return Apply(root, p)
}

func Apply(root any, p Patch) (any, error) {
	doc := Clone(root)
	for i, op := range p {
		var err error
		doc, err = op.apply(doc, op.Path)
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s '%s'): %w", i, op.Op, op.Path.String(), err)
		}
	}
	return doc, nil
}

func (o Operation) apply(node any, tokens Pointer) (any, error) {

	if len(tokens) == 0 {
		switch o.Op {
		case OpAdd, OpReplace:
			return Clone(o.Value), nil
		case OpRemove:
			return nil, nil
		case OpTest:
			if !Equal(node, o.Value) {
				return nil, ErrorTestFailed
			}
			return node, nil
		default:
			return nil, fmt.Errorf("%w: '%s'", ErrorInvalidOperation, o.Op)
		}
	}

	token := tokens[0]
	last := len(tokens) == 1

	switch n := node.(type) {
	case map[string]any:
		child, exists := n[token]
		if last {
			return o.applyToMember(n, token, child, exists)
		}
		if !exists {
			if o.Op != OpAdd {
				return nil, ErrorPathNotFound
			}
			child = map[string]any{}
		}
		updated, err := o.apply(child, tokens[1:])
		if err != nil {
			return nil, err
		}
		n[token] = updated
		return n, nil

	case []any:
		if last && o.Op == OpAdd {
			i := len(n)
			if token != "-" {
				var ok bool
				i, ok = arrayIndex(token, len(n)+1)
				if !ok {
					return nil, fmt.Errorf("%w: '%s'", ErrorInvalidIndex, token)
				}
			}
			n = append(n, nil)
			copy(n[i+1:], n[i:])
			n[i] = Clone(o.Value)
			return n, nil
		}

		i, ok := arrayIndex(token, len(n))
		if !ok {
			return nil, ErrorPathNotFound
		}
		if !last {
			updated, err := o.apply(n[i], tokens[1:])
			if err != nil {
				return nil, err
			}
			n[i] = updated
			return n, nil
		}
		switch o.Op {
		case OpReplace:
			n[i] = Clone(o.Value)
		case OpRemove:
			n = append(n[:i], n[i+1:]...)
		case OpTest:
			if !Equal(n[i], o.Value) {
				return nil, ErrorTestFailed
			}
		default:
			return nil, fmt.Errorf("%w: '%s'", ErrorInvalidOperation, o.Op)
		}
		return n, nil

	case nil:
		if o.Op != OpAdd {
			return nil, ErrorPathNotFound
		}
		return o.apply(map[string]any{}, tokens)

	default:
		return nil, fmt.Errorf("%w: cannot traverse %T", ErrorPathNotFound, node)
	}
}

func (o Operation) applyToMember(n map[string]any, token string, current any, exists bool) (any, error) {
	switch o.Op {
	case OpAdd:
		n[token] = Clone(o.Value)
	case OpReplace:
		if !exists {
			return nil, ErrorPathNotFound
		}
		n[token] = Clone(o.Value)
	case OpRemove:
		if !exists {
			return nil, ErrorPathNotFound
		}
		delete(n, token)
	case OpTest:
		if !exists {
			return nil, ErrorPathNotFound
		}
		if !Equal(current, o.Value) {
			return nil, ErrorTestFailed
		}
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrorInvalidOperation, o.Op)
	}
	return n, nil
}

// Inverse builds the patch that undoes p. Only fields touched by p are
// restored. Test operations are dropped.
func (p Patch) Inverse() (Patch, error) {
	inverse := make(Patch, 0, len(p))
	for i := len(p) - 1; i >= 0; i-- {
		op := p[i]
		switch op.Op {
		case OpAdd:
			if len(op.Path) > 0 && op.Path[len(op.Path)-1] == "-" {
				return nil, fmt.Errorf("%w: append to '%s'", ErrorNotReversible, op.Path.String())
			}
			if op.HasOld {
				inverse = append(inverse, Operation{Op: OpReplace, Path: op.Path, Value: op.Old, Old: op.Value, HasOld: true})
				continue
			}
			inverse = append(inverse, Operation{Op: OpRemove, Path: op.Path, Old: op.Value, HasOld: true})
		case OpRemove:
			if !op.HasOld {
				return nil, fmt.Errorf("%w: unknown previous value at '%s'", ErrorNotReversible, op.Path.String())
			}
			inverse = append(inverse, Operation{Op: OpAdd, Path: op.Path, Value: op.Old})
		case OpReplace:
			if !op.HasOld {
				return nil, fmt.Errorf("%w: unknown previous value at '%s'", ErrorNotReversible, op.Path.String())
			}
			inverse = append(inverse, Operation{Op: OpReplace, Path: op.Path, Value: op.Old, Old: op.Value, HasOld: true})
		case OpTest:
			// nothing to undo
		default:
			return nil, fmt.Errorf("%w: '%s'", ErrorInvalidOperation, op.Op)
		}
	}
	return inverse, nil
}

// Equal compares operation kinds, paths and values.
func (p Patch) Equal(other Patch) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		a, b := p[i], other[i]
		if a.Op != b.Op || a.Path.String() != b.Path.String() || !Equal(a.Value, b.Value) {
			return false
		}
	}
	return true
}

func (o Operation) toJSON() map[string]any {
	m := map[string]any{
		"op":   string(o.Op),
		"path": o.Path.String(),
	}
	if o.Op != OpRemove {
		m["value"] = o.Value
	}
	if o.HasOld {
		m["old"] = o.Old
	}
	return m
}

func (p Patch) MarshalJSON() ([]byte, error) {
	ops := make([]map[string]any, len(p))
	for i, op := range p {
		ops[i] = op.toJSON()
	}
	return jsonv2.Marshal(ops, jsonv2.Deterministic(true))
}

func (p *Patch) UnmarshalJSON(data []byte) error {
	raw := []map[string]any{}
	err := jsonv2.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	ops := make(Patch, 0, len(raw))
	for i, item := range raw {
		name, _ := item["op"].(string)
		path, _ := item["path"].(string)
		pointer, err := ParsePointer(path)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		op := Operation{
			Op:    Op(name),
			Path:  pointer,
			Value: item["value"],
		}
		switch op.Op {
		case OpAdd, OpReplace, OpTest:
			if _, exists := item["value"]; !exists {
				return fmt.Errorf("operation %d: %w: '%s' requires a value", i, ErrorInvalidOperation, name)
			}
		case OpRemove:
		default:
			return fmt.Errorf("operation %d: %w: '%s'", i, ErrorInvalidOperation, name)
		}
		if old, exists := item["old"]; exists {
			op.Old = old
			op.HasOld = true
		}
		ops = append(ops, op)
	}

	*p = ops
	return nil
}

// String is the canonical serialization: RFC 6902 JSON with sorted keys.
// Equal patches always produce the same string.
func (p Patch) String() string {
	b, err := p.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("!patch(%s)", err.Error())
	}
	return string(b)
}
