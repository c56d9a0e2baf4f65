package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Normalize converts v into the canonical in-memory shape used by the stores:
// maps become map[string]any, slices become []any, integers int64 and floats
// float64. Sentinels and transforms pass through untouched.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, int64, float64, time.Time, Sentinel, Incr, Union, Remove:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return *t
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	}
	return v
}

// NormalizeMap normalizes every value of data into a fresh map.
func NormalizeMap(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = Normalize(v)
	}
	return out
}

// Clone deep-copies a normalized value.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies a document body.
func CloneMap(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return Clone(data).(map[string]any)
}

// ResolveSentinels replaces ServerTimestamp markers inside data with now and
// drops DeleteField markers. It mutates data.
func ResolveSentinels(data map[string]any, now time.Time) {
	for k, v := range data {
		switch t := v.(type) {
		case Sentinel:
			if t == ServerTimestamp {
				data[k] = now
			} else {
				delete(data, k)
			}
		case map[string]any:
			ResolveSentinels(t, now)
		}
	}
}

// Lookup reads the value at a dotted path.
func Lookup(data map[string]any, path string) (any, bool) {
	cur := any(data)
	for _, seg := range splitField(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ApplyUpdates applies updates to data in order, resolving server timestamps
// with now. data must be normalized; it is mutated.
func ApplyUpdates(data map[string]any, updates []Update, now time.Time) error {
	for _, u := range updates {
		if err := ValidateField(u.Path); err != nil {
			return err
		}
		segs := splitField(u.Path)
		parent, err := walkCreate(data, segs[:len(segs)-1], u.Path)
		if err != nil {
			return err
		}
		leaf := segs[len(segs)-1]
		cur, exists := parent[leaf]

		switch v := u.Value.(type) {
		case Sentinel:
			if v == DeleteField {
				delete(parent, leaf)
			} else {
				parent[leaf] = now
			}
		case Incr:
			next, err := addNumber(cur, exists, v.By)
			if err != nil {
				return fmt.Errorf("increment %s: %w", u.Path, err)
			}
			parent[leaf] = next
		case Union:
			arr, _ := cur.([]any)
			out := append([]any{}, arr...)
			for _, e := range v.Elems {
				e = Normalize(e)
				if !containsValue(out, e) {
					out = append(out, e)
				}
			}
			parent[leaf] = out
		case Remove:
			arr, _ := cur.([]any)
			out := make([]any, 0, len(arr))
			for _, e := range arr {
				drop := false
				for _, r := range v.Elems {
					if Equal(e, Normalize(r)) {
						drop = true
						break
					}
				}
				if !drop {
					out = append(out, e)
				}
			}
			parent[leaf] = out
		default:
			val := Normalize(u.Value)
			if m, ok := val.(map[string]any); ok {
				ResolveSentinels(m, now)
			}
			parent[leaf] = Clone(val)
		}
	}
	return nil
}

func walkCreate(data map[string]any, segs []string, path string) (map[string]any, error) {
	cur := data
	for _, seg := range segs {
		next, ok := cur[seg]
		if !ok || next == nil {
			m := map[string]any{}
			cur[seg] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q traverses a non-map value", ErrInvalidPath, path)
		}
		cur = m
	}
	return cur, nil
}

func addNumber(cur any, exists bool, by int64) (any, error) {
	if !exists || cur == nil {
		return by, nil
	}
	switch n := cur.(type) {
	case int64:
		return n + by, nil
	case float64:
		return n + float64(by), nil
	default:
		return nil, fmt.Errorf("field holds %T, not a number", cur)
	}
}

// CheckPreconditions reports whether every precondition holds for data. A
// missing document (nil data) fails MustContain and passes MustNotContain.
func CheckPreconditions(data map[string]any, preconditions []Precondition) bool {
	for _, p := range preconditions {
		var arr []any
		if data != nil {
			v, _ := Lookup(data, p.Path)
			arr, _ = Normalize(v).([]any)
		}
		has := containsValue(arr, Normalize(p.Value))
		switch p.Op {
		case MustContain:
			if !has {
				return false
			}
		case MustNotContain:
			if has {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Match reports whether data satisfies every filter.
func Match(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := Lookup(data, f.Path)
		want := Normalize(f.Value)
		switch f.Op {
		case OpEqual:
			if !ok || !Equal(v, want) {
				return false
			}
		case OpNotEqual:
			if ok && Equal(v, want) {
				return false
			}
		case OpArrayContains:
			arr, isArr := v.([]any)
			if !ok || !isArr || !containsValue(arr, want) {
				return false
			}
		case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
			if !ok {
				return false
			}
			c, comparable := Compare(v, want)
			if !comparable {
				return false
			}
			switch f.Op {
			case OpLess:
				if c >= 0 {
					return false
				}
			case OpLessEqual:
				if c > 0 {
					return false
				}
			case OpGreater:
				if c <= 0 {
					return false
				}
			case OpGreaterEqual:
				if c < 0 {
					return false
				}
			}
		default:
			return false
		}
	}
	return true
}

// Equal compares two normalized values, treating int64 and float64 as numbers.
func Equal(a, b any) bool {
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values of the same kind. ok is false when the values are
// not mutually ordered.
func Compare(a, b any) (c int, ok bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch at := a.(type) {
	case string:
		bt, bok := b.(string)
		if !bok {
			return 0, false
		}
		return strings.Compare(at, bt), true
	case time.Time:
		bt, bok := b.(time.Time)
		if !bok {
			return 0, false
		}
		return at.Compare(bt), true
	case bool:
		bt, bok := b.(bool)
		if !bok {
			return 0, false
		}
		switch {
		case at == bt:
			return 0, true
		case !at:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func containsValue(arr []any, v any) bool {
	for _, e := range arr {
		if Equal(e, v) {
			return true
		}
	}
	return false
}

// SortDocuments orders docs by o, keeping the incoming order for ties and
// dropping documents that lack the sort field.
func SortDocuments(docs []Document, o *Order) []Document {
	if o == nil {
		return docs
	}
	kept := docs[:0]
	for _, d := range docs {
		if _, ok := Lookup(d.Data, o.Path); ok {
			kept = append(kept, d)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, _ := Lookup(kept[i].Data, o.Path)
		b, _ := Lookup(kept[j].Data, o.Path)
		c, _ := Compare(a, b)
		if o.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
	return kept
}
