package ledger

import (
	"encoding/json"
	"strconv"
)

// Fields is the JSON rendering of a Move struct. Accessors tolerate the
// shapes nodes produce for the same value: plain strings, numeric strings,
// {"id": ...} wrappers and {"fields": {...}} nesting.
type Fields map[string]any

func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

func (f Fields) Uint64(key string) (uint64, bool) {
	switch v := f[key].(type) {
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// ID resolves an object id stored under key.
func (f Fields) ID(key string) string {
	return idOf(f[key])
}

func (f Fields) Address(key string) string {
	return f.String(key)
}

// Nested returns the struct stored under key, unwrapping {"fields": ...}.
func (f Fields) Nested(key string) Fields {
	m, ok := f[key].(map[string]any)
	if !ok {
		return Fields{}
	}
	if inner, ok := m["fields"].(map[string]any); ok {
		return Fields(inner)
	}
	return Fields(m)
}

func idOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if inner, ok := t["fields"]; ok {
			if s := idOf(inner); s != "" {
				return s
			}
		}
		if id, ok := t["id"]; ok {
			return idOf(id)
		}
		if b, ok := t["bytes"].(string); ok {
			return b
		}
	}
	return ""
}
