// Package value implements the tagged-union document model used by the
// template engine's merge algorithm (spec §4.7, §9 re-architected patterns):
// a closed sum type over Null, Bool, Int, Float, String, List and Map,
// replacing the dynamically-typed configuration tree of the source system
// with an explicit, type-safe Go representation.
package value

import (
	"fmt"
	"sort"
)

// Kind discriminates the tagged union.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is an immutable-by-convention node in a document tree. Construct via
// the New* helpers; read via the Is*/As* accessors.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	// keys preserves insertion order; m holds the backing data.
	keys []string
	m    map[string]Value
}

func Null() Value               { return Value{kind: KindNull} }
func NewBool(b bool) Value      { return Value{kind: KindBool, b: b} }
func NewInt(i int64) Value      { return Value{kind: KindInt, i: i} }
func NewFloat(f float64) Value  { return Value{kind: KindFloat, f: f} }
func NewString(s string) Value  { return Value{kind: KindString, s: s} }
func NewList(items []Value) Value {
	return Value{kind: KindList, list: items}
}

// NewMap builds a Value from an already-ordered slice of keys, reusing the
// supplied order instead of sorting — callers that parsed YAML/JSON in
// document order should preserve it.
func NewMap(keys []string, m map[string]Value) Value {
	return Value{kind: KindMap, keys: append([]string(nil), keys...), m: m}
}

// NewMapFromGo builds a Value from a plain Go map, sorting keys for
// deterministic output when no explicit order is known.
func NewMapFromGo(m map[string]Value) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return NewMap(keys, m)
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) IsMap() bool   { return v.kind == KindMap }
func (v Value) IsList() bool  { return v.kind == KindList }

func (v Value) Bool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) Int() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindNull:
		return ""
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}

// List returns the backing slice; empty for non-list values.
func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Keys returns map keys in insertion order; nil for non-map values.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	return v.keys
}

// Get returns the value at key and whether it was present (maps only).
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	val, ok := v.m[key]
	return val, ok
}

// Set returns a new map Value with key set to val, preserving existing order
// and appending key if new. Value is treated as persistent/copy-on-write at
// the single-key granularity the merge algorithm needs.
func (v Value) Set(key string, val Value) Value {
	keys := v.keys
	m := make(map[string]Value, len(v.m)+1)
	for k, existing := range v.m {
		m[k] = existing
	}
	if _, existed := m[key]; !existed {
		keys = append(append([]string(nil), keys...), key)
	}
	m[key] = val
	return NewMap(keys, m)
}

// Without returns a new map Value with key removed.
func (v Value) Without(key string) Value {
	if v.kind != KindMap {
		return v
	}
	newKeys := make([]string, 0, len(v.keys))
	m := make(map[string]Value, len(v.m))
	for _, k := range v.keys {
		if k == key {
			continue
		}
		newKeys = append(newKeys, k)
		m[k] = v.m[k]
	}
	return NewMap(newKeys, m)
}

// Equal performs a deep structural comparison, used by the merge engine's
// redundancy-elimination step (spec §4.7 step 2).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bv, ok := b.Get(k)
			if !ok {
				return false
			}
			if !Equal(a.m[k], bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ToGo converts a Value into plain Go interface{} data (map[string]any /
// []any / string / int64 / float64 / bool / nil), suitable for yaml.Marshal.
func (v Value) ToGo() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToGo()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for _, k := range v.keys {
			out[k] = v.m[k].ToGo()
		}
		return out
	default:
		return nil
	}
}

// FromGo converts decoded YAML/JSON data (as produced by yaml.v3 or
// encoding/json into map[string]interface{}) into a Value tree. Map key
// order is not recoverable from a plain Go map, so keys are sorted; a
// document-ordered Value is built with NewMap and an explicit key slice, as
// the template engine does when it interprets a yaml.Node.
func FromGo(data interface{}) Value {
	switch t := data.(type) {
	case nil:
		return Null()
	case bool:
		return NewBool(t)
	case int:
		return NewInt(int64(t))
	case int64:
		return NewInt(t)
	case float64:
		if t == float64(int64(t)) {
			return NewInt(int64(t))
		}
		return NewFloat(t)
	case string:
		return NewString(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromGo(item)
		}
		return NewList(items)
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, v := range t {
			m[k] = FromGo(v)
		}
		return NewMapFromGo(m)
	case map[interface{}]interface{}:
		m := make(map[string]Value, len(t))
		for k, v := range t {
			m[fmt.Sprintf("%v", k)] = FromGo(v)
		}
		return NewMapFromGo(m)
	default:
		return NewString(fmt.Sprintf("%v", t))
	}
}
