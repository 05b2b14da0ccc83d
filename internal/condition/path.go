package condition

import (
	"reflect"
	"strconv"
	"strings"
)

// Lookup resolves a dotted attribute path (e.g. "profile.address.city") inside ctx.
// Nested maps of any string-keyed type are traversed; numeric segments index into lists.
// A nil leaf is reported as missing.
func Lookup(ctx map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if len(ctx) == 0 || path == "" {
		return nil, false
	}
	var current any = ctx
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, false
		}
		next, ok := step(current, part)
		if !ok {
			return nil, false
		}
		current = next
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

func step(current any, key string) (any, bool) {
	switch typed := current.(type) {
	case map[string]any:
		v, ok := typed[key]
		return v, ok
	case map[string]string:
		v, ok := typed[key]
		return v, ok
	case []any:
		return index(len(typed), key, func(i int) any { return typed[i] })
	}

	rv := reflect.ValueOf(current)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		return index(rv.Len(), key, func(i int) any { return rv.Index(i).Interface() })
	}
	return nil, false
}

func index(n int, key string, at func(int) any) (any, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= n {
		return nil, false
	}
	return at(i), true
}
