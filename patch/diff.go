package patch

import (
	"slices"
	"strconv"
)

// Diff returns a patch p such that p.Apply(before) equals after. Remove and
// replace operations carry the previous value, so the result can always be
// inverted.
func Diff(before, after any) Patch {
	p := Patch{}
	diff(&p, Pointer{}, before, after)
	return p
}

func diff(p *Patch, path Pointer, before, after any) {

	if Equal(before, after) {
		return
	}

	switch a := before.(type) {
	case map[string]any:
		if b, ok := after.(map[string]any); ok {
			diffObjects(p, path, a, b)
			return
		}
	case []any:
		if b, ok := after.([]any); ok {
			diffArrays(p, path, a, b)
			return
		}
	}

	*p = append(*p, Operation{
		Op:     OpReplace,
		Path:   path,
		Value:  Clone(after),
		Old:    Clone(before),
		HasOld: true,
	})
}

func diffObjects(p *Patch, path Pointer, before, after map[string]any) {

	keys := make([]string, 0, len(before)+len(after))
	for k := range before {
		keys = append(keys, k)
	}
	for k := range after {
		if _, exists := before[k]; !exists {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		b, inBefore := before[k]
		a, inAfter := after[k]
		child := path.Append(k)
		switch {
		case inBefore && !inAfter:
			*p = append(*p, Operation{Op: OpRemove, Path: child, Old: Clone(b), HasOld: true})
		case !inBefore && inAfter:
			*p = append(*p, Operation{Op: OpAdd, Path: child, Value: Clone(a)})
		default:
			diff(p, child, b, a)
		}
	}
}

func diffArrays(p *Patch, path Pointer, before, after []any) {

	common := min(len(before), len(after))
	for i := 0; i < common; i++ {
		diff(p, path.Append(strconv.Itoa(i)), before[i], after[i])
	}

	for i := common; i < len(after); i++ {
		*p = append(*p, Operation{Op: OpAdd, Path: path.Append(strconv.Itoa(i)), Value: Clone(after[i])})
	}

	// tail first so the remaining indexes stay valid
	for i := len(before) - 1; i >= common; i-- {
		*p = append(*p, Operation{Op: OpRemove, Path: path.Append(strconv.Itoa(i)), Old: Clone(before[i]), HasOld: true})
	}
}
