package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// runPipeline evaluates a Mongo-style aggregation pipeline over the
// decoded documents. Supported stages: $match, $group, $sort, $project,
// $unwind, $limit, $skip.
func runPipeline(docs []Document, pipeline []Document) ([]Document, error) {
	out := docs
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage %d: expected a single-operator stage, got %d keys", i, len(stage))
		}
		var err error
		for op, spec := range stage {
			switch op {
			case "$match":
				out, err = applyMatch(out, spec)
			case "$group":
				out, err = applyGroup(out, spec)
			case "$sort":
				out, err = applySort(out, spec)
			case "$project":
				out, err = applyProject(out, spec)
			case "$unwind":
				out, err = applyUnwind(out, spec)
			case "$limit":
				out, err = applyLimit(out, spec)
			case "$skip":
				out, err = applySkip(out, spec)
			default:
				err = fmt.Errorf("unsupported stage %q", op)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
	}
	if out == nil {
		out = []Document{}
	}
	return out, nil
}

func applyMatch(docs []Document, spec any) ([]Document, error) {
	filter, ok := spec.(Document)
	if !ok {
		return nil, fmt.Errorf("$match expects a filter document")
	}
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if matchDoc(doc, filter) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// matchDoc evaluates an equality-or-operator filter against one
// document. Field names may use dotted paths.
func matchDoc(doc Document, filter Document) bool {
	for field, cond := range filter {
		val, present := lookupPath(doc, field)

		ops, isOps := cond.(Document)
		if !isOps || !hasOperatorKeys(ops) {
			if !present || !valueEq(val, cond) {
				return false
			}
			continue
		}

		for op, arg := range ops {
			switch op {
			case "$eq":
				if !present || !valueEq(val, arg) {
					return false
				}
			case "$ne":
				if present && valueEq(val, arg) {
					return false
				}
			case "$gt", "$gte", "$lt", "$lte":
				cmp, comparable := compareValues(val, arg)
				if !present || !comparable {
					return false
				}
				switch op {
				case "$gt":
					if cmp <= 0 {
						return false
					}
				case "$gte":
					if cmp < 0 {
						return false
					}
				case "$lt":
					if cmp >= 0 {
						return false
					}
				case "$lte":
					if cmp > 0 {
						return false
					}
				}
			case "$in":
				list, ok := arg.([]any)
				if !ok || !present {
					return false
				}
				found := false
				for _, item := range list {
					if valueEq(val, item) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			case "$exists":
				want, _ := arg.(bool)
				if present != want {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func hasOperatorKeys(doc Document) bool {
	for k := range doc {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func applyGroup(docs []Document, spec any) ([]Document, error) {
	groupSpec, ok := spec.(Document)
	if !ok {
		return nil, fmt.Errorf("$group expects a spec document")
	}
	idExpr, ok := groupSpec[IDField]
	if !ok {
		return nil, fmt.Errorf("$group requires an _id expression")
	}

	type bucket struct {
		id   any
		docs []Document
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, doc := range docs {
		id := evalExpr(doc, idExpr)
		key := fmt.Sprintf("%v", id)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{id: id}
			buckets[key] = b
			order = append(order, key)
		}
		b.docs = append(b.docs, doc)
	}

	out := make([]Document, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		result := Document{IDField: b.id}
		for field, accSpec := range groupSpec {
			if field == IDField {
				continue
			}
			acc, ok := accSpec.(Document)
			if !ok || len(acc) != 1 {
				return nil, fmt.Errorf("$group field %q: expected a single accumulator", field)
			}
			for op, arg := range acc {
				val, err := accumulate(op, arg, b.docs)
				if err != nil {
					return nil, fmt.Errorf("$group field %q: %w", field, err)
				}
				result[field] = val
			}
		}
		out = append(out, result)
	}
	return out, nil
}

func accumulate(op string, arg any, docs []Document) (any, error) {
	switch op {
	case "$sum":
		total := 0.0
		for _, doc := range docs {
			total += toNumber(evalExpr(doc, arg))
		}
		return total, nil
	case "$avg":
		if len(docs) == 0 {
			return nil, nil
		}
		total := 0.0
		n := 0
		for _, doc := range docs {
			v := evalExpr(doc, arg)
			if v == nil {
				continue
			}
			total += toNumber(v)
			n++
		}
		if n == 0 {
			return nil, nil
		}
		return total / float64(n), nil
	case "$min", "$max":
		var best any
		for _, doc := range docs {
			v := evalExpr(doc, arg)
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			cmp, comparable := compareValues(v, best)
			if !comparable {
				continue
			}
			if (op == "$min" && cmp < 0) || (op == "$max" && cmp > 0) {
				best = v
			}
		}
		return best, nil
	case "$first":
		if len(docs) == 0 {
			return nil, nil
		}
		return evalExpr(docs[0], arg), nil
	default:
		return nil, fmt.Errorf("unsupported accumulator %q", op)
	}
}

func applySort(docs []Document, spec any) ([]Document, error) {
	sortSpec, ok := spec.(Document)
	if !ok {
		return nil, fmt.Errorf("$sort expects a spec document")
	}

	// deterministic key order for multi-key sorts
	fields := make([]string, 0, len(sortSpec))
	for field := range sortSpec {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := make([]Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		for _, field := range fields {
			dir := toNumber(sortSpec[field])
			a, _ := lookupPath(out[i], field)
			b, _ := lookupPath(out[j], field)
			cmp, comparable := compareValues(a, b)
			if !comparable || cmp == 0 {
				continue
			}
			if dir < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return out, nil
}

func applyProject(docs []Document, spec any) ([]Document, error) {
	projSpec, ok := spec.(Document)
	if !ok {
		return nil, fmt.Errorf("$project expects a spec document")
	}

	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		res := Document{}
		includeID := true
		for field, expr := range projSpec {
			switch v := expr.(type) {
			case string:
				res[field] = evalExpr(doc, v)
			case bool:
				if v {
					if val, present := lookupPath(doc, field); present {
						res[field] = val
					}
				} else if field == IDField {
					includeID = false
				}
			default:
				if toNumber(expr) != 0 {
					if val, present := lookupPath(doc, field); present {
						res[field] = val
					}
				} else if field == IDField {
					includeID = false
				}
			}
		}
		if includeID {
			if _, listed := projSpec[IDField]; !listed {
				if id, present := doc[IDField]; present {
					res[IDField] = id
				}
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func applyUnwind(docs []Document, spec any) ([]Document, error) {
	path, ok := spec.(string)
	if !ok || !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("$unwind expects a $-prefixed field path")
	}
	field := strings.TrimPrefix(path, "$")

	var out []Document
	for _, doc := range docs {
		val, present := lookupPath(doc, field)
		if !present || val == nil {
			continue
		}
		items, ok := val.([]any)
		if !ok {
			out = append(out, doc)
			continue
		}
		for _, item := range items {
			clone := cloneDoc(doc)
			clone[field] = item
			out = append(out, clone)
		}
	}
	return out, nil
}

func applyLimit(docs []Document, spec any) ([]Document, error) {
	n := int(toNumber(spec))
	if n < 0 {
		return nil, fmt.Errorf("$limit expects a non-negative number")
	}
	if n > len(docs) {
		n = len(docs)
	}
	return docs[:n], nil
}

func applySkip(docs []Document, spec any) ([]Document, error) {
	n := int(toNumber(spec))
	if n < 0 {
		return nil, fmt.Errorf("$skip expects a non-negative number")
	}
	if n > len(docs) {
		n = len(docs)
	}
	return docs[n:], nil
}

// evalExpr resolves a group/project expression: "$path" reads from the
// document, anything else is a literal.
func evalExpr(doc Document, expr any) any {
	if s, ok := expr.(string); ok && strings.HasPrefix(s, "$") {
		val, _ := lookupPath(doc, strings.TrimPrefix(s, "$"))
		return val
	}
	return expr
}

func lookupPath(doc Document, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		val, present := m[part]
		if !present {
			return nil, false
		}
		cur = val
	}
	return cur, true
}

func valueEq(a, b any) bool {
	if cmp, comparable := compareValues(a, b); comparable {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two scalar values. Numbers compare numerically
// across int/float representations, strings lexically.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}

	an, aIsNum := asNumber(a)
	bn, bIsNum := asNumber(b)
	if aIsNum && bIsNum {
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.Compare(as, bs), true
	}

	ab, aIsBool := a.(bool)
	bb, bIsBool := b.(bool)
	if aIsBool && bIsBool {
		if ab == bb {
			return 0, true
		}
		if !ab {
			return -1, true
		}
		return 1, true
	}

	return 0, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toNumber(v any) float64 {
	n, _ := asNumber(v)
	return n
}
