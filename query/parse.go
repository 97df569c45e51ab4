package query

import (
	"fmt"
	"strconv"
	"strings"

	jsonv2 "github.com/go-json-experiment/json"

	"github.com/fulldump/objectstore/patch"
)

// Parse reads the RQL form produced by String. Custom filters and custom
// sorts have no parseable form. An empty string is the identity query.
func Parse(s string) (Query, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Compose(), nil
	}

	terms, err := splitTopLevel(s, '&')
	if err != nil {
		return nil, err
	}

	queries := make([]Query, 0, len(terms))
	for _, term := range terms {
		q, err := parseQueryTerm(term)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	if len(queries) == 1 {
		return queries[0], nil
	}
	return Compose(queries...), nil
}

func parseQueryTerm(term string) (Query, error) {
	name, args, err := splitCall(term)
	if err != nil {
		return nil, err
	}

	switch name {
	case "sort":
		if len(args) == 1 && strings.HasPrefix(args[0], "@") {
			return nil, fmt.Errorf("%w: custom sort '%s' cannot be parsed", ErrorInvalidQuery, args[0][1:])
		}
		return SortBy(args...), nil
	case "limit":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("%w: limit expects 1 or 2 arguments", ErrorInvalidQuery)
		}
		count, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: limit count: %s", ErrorInvalidQuery, err.Error())
		}
		start := 0
		if len(args) == 2 {
			start, err = strconv.Atoi(args[1])
			if err != nil {
				return nil, fmt.Errorf("%w: limit start: %s", ErrorInvalidQuery, err.Error())
			}
		}
		return Range(start, count), nil
	}

	e, err := parseExpression(name, args)
	if err != nil {
		return nil, err
	}
	return Filter(e), nil
}

func parseExpression(name string, args []string) (Expression, error) {
	switch Operator(name) {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpContains:
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: %s expects 2 arguments", ErrorInvalidQuery, name)
		}
		return &Comparison{
			Operator: Operator(name),
			Path:     patch.ParseDotted(args[0]),
			Value:    parseValue(args[1]),
		}, nil
	}

	switch name {
	case "in":
		if len(args) < 1 {
			return nil, fmt.Errorf("%w: in expects a path", ErrorInvalidQuery)
		}
		values := make([]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			values = append(values, parseValue(arg))
		}
		return &InExpression{Path: patch.ParseDotted(args[0]), Values: values}, nil
	case "and", "or", "not":
		operands := make([]Expression, 0, len(args))
		for _, arg := range args {
			n, a, err := splitCall(arg)
			if err != nil {
				return nil, err
			}
			operand, err := parseExpression(n, a)
			if err != nil {
				return nil, err
			}
			operands = append(operands, operand)
		}
		switch name {
		case "and":
			return And(operands...), nil
		case "or":
			return Or(operands...), nil
		}
		if len(operands) != 1 {
			return nil, fmt.Errorf("%w: not expects 1 argument", ErrorInvalidQuery)
		}
		return Not(operands[0]), nil
	case "match":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: match expects 1 argument", ErrorInvalidQuery)
		}
		conditions := map[string]any{}
		err := jsonv2.Unmarshal([]byte(args[0]), &conditions)
		if err != nil {
			return nil, fmt.Errorf("%w: match: %s", ErrorInvalidQuery, err.Error())
		}
		return Match(conditions), nil
	case "custom":
		return nil, fmt.Errorf("%w: custom filter '%s' cannot be parsed", ErrorInvalidQuery, strings.Join(args, ","))
	}

	return nil, fmt.Errorf("%w: unknown operator '%s'", ErrorInvalidQuery, name)
}

// parseValue reads a JSON literal; anything else is taken as a bare string.
func parseValue(s string) any {
	var v any
	err := jsonv2.Unmarshal([]byte(s), &v)
	if err != nil {
		return s
	}
	return v
}

// splitCall splits "name(a,b)" into its name and top-level arguments.
func splitCall(s string) (string, []string, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("%w: '%s'", ErrorInvalidQuery, s)
	}

	name := s[:open]
	inner := s[open+1 : len(s)-1]
	if strings.TrimSpace(inner) == "" {
		return name, []string{}, nil
	}

	args, err := splitTopLevel(inner, ',')
	if err != nil {
		return "", nil, err
	}
	return name, args, nil
}

// splitTopLevel splits on sep outside brackets and string literals.
func splitTopLevel(s string, sep byte) ([]string, error) {
	parts := []string{}
	depth := 0
	quoted := false
	escaped := false
	last := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quoted {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				quoted = false
			}
			continue
		}
		switch c {
		case '"':
			quoted = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced '%c' at %d", ErrorInvalidQuery, c, i)
			}
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[last:i]))
				last = i + 1
			}
		}
	}
	if quoted || depth != 0 {
		return nil, fmt.Errorf("%w: unterminated expression '%s'", ErrorInvalidQuery, s)
	}

	return append(parts, strings.TrimSpace(s[last:])), nil
}
