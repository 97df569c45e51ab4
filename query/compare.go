package query

import (
	"cmp"
	"strings"

	jsonv2 "github.com/go-json-experiment/json"

	"github.com/fulldump/objectstore/patch"
)

func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := patch.ToFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case bool:
		return 3
	}
	return 4
}

// Compare orders two JSON values. Values of different kinds are ordered
// nil, numbers, strings, booleans, then anything else; numbers compare by
// value and strings lexically.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch ra {
	case 0:
		return 0
	case 1:
		fa, _ := patch.ToFloat(a)
		fb, _ := patch.ToFloat(b)
		return cmp.Compare(fa, fb)
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}

	ja, _ := jsonv2.Marshal(a, jsonv2.Deterministic(true))
	jb, _ := jsonv2.Marshal(b, jsonv2.Deterministic(true))
	return strings.Compare(string(ja), string(jb))
}

// orderable reports whether a and b can be ordered by lt/le/gt/ge: both
// numbers or both strings.
func orderable(a, b any) bool {
	ra := rank(a)
	return (ra == 1 || ra == 2) && ra == rank(b)
}
