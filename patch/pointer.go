package patch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Pointer addresses a value inside a JSON-like document (RFC 6901). The
// empty Pointer addresses the root.
type Pointer []string

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")
var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// Path builds a Pointer from raw tokens.
func Path(tokens ...string) Pointer {
	return Pointer(tokens)
}

// ParsePointer parses "/a/b/0". The empty string is the root.
func ParsePointer(s string) (Pointer, error) {
	if s == "" {
		return Pointer{}, nil
	}
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("%w: '%s' must start with '/'", ErrorInvalidPointer, s)
	}

	parts := strings.Split(s[1:], "/")
	p := make(Pointer, len(parts))
	for i, part := range parts {
		p[i] = pointerUnescaper.Replace(part)
	}
	return p, nil
}

// ParseDotted parses "a.b.0", the form used by query serialization.
func ParseDotted(s string) Pointer {
	if s == "" {
		return Pointer{}
	}
	return Pointer(strings.Split(s, "."))
}

func (p Pointer) String() string {
	if len(p) == 0 {
		return ""
	}
	b := &strings.Builder{}
	for _, token := range p {
		b.WriteByte('/')
		b.WriteString(pointerEscaper.Replace(token))
	}
	return b.String()
}

// Dotted renders the pointer as "a.b.0".
func (p Pointer) Dotted() string {
	return strings.Join(p, ".")
}

// Append returns a new pointer; the receiver is never modified.
func (p Pointer) Append(tokens ...string) Pointer {
	next := make(Pointer, 0, len(p)+len(tokens))
	next = append(next, p...)
	return append(next, tokens...)
}

func (p Pointer) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Pointer) UnmarshalJSON(data []byte) error {
	s := ""
	err := json.Unmarshal(data, &s)
	if err != nil {
		return err
	}
	parsed, err := ParsePointer(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Resolve walks root following p. Missing intermediate nodes are not an
// error: the second result is simply false.
func Resolve(root any, p Pointer) (any, bool) {
	node := root
	for _, token := range p {
		switch n := node.(type) {
		case map[string]any:
			child, exists := n[token]
			if !exists {
				return nil, false
			}
			node = child
		case []any:
			i, ok := arrayIndex(token, len(n))
			if !ok {
				return nil, false
			}
			node = n[i]
		default:
			return nil, false
		}
	}
	return node, true
}

// arrayIndex accepts canonical non-negative integers lower than length.
func arrayIndex(token string, length int) (int, bool) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, false
	}
	i, err := strconv.Atoi(token)
	if err != nil || i < 0 || i >= length {
		return 0, false
	}
	return i, true
}
