// Package jsonvalue models a JSON document as a tagged variant tree.
//
// Each node carries exactly one Kind, so transforms can switch over every
// variant instead of type-asserting on interface{} values. Object members
// keep the order in which they were decoded or inserted, which keeps
// rewritten documents diff-friendly.
package jsonvalue

import (
	"encoding/json"
	"iter"
	"maps"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "invalid"
}

// Value is a single JSON node. The zero Value is null.
//
// Arrays and strings behave as values; objects are reference-like, so Set on
// a copy of an object Value is visible through every copy. Use Clone to get
// an independent tree.
type Value struct {
	kind Kind
	b    bool
	s    string // string payload or number literal
	raw  string // quoted literal of a decoded string
	arr  []Value
	obj  *orderedmap.OrderedMap[string, Value]
	keys map[string]string // quoted literals of decoded member names
}

// NullValue returns a JSON null.
func NullValue() Value { return Value{} }

// BoolValue returns a JSON boolean.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// NumberValue returns a JSON number holding the literal as written.
func NumberValue(n json.Number) Value { return Value{kind: Number, s: string(n)} }

// StringValue returns a JSON string.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// ArrayValue returns a JSON array of elems.
func ArrayValue(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: Array, arr: elems}
}

// NewObject returns an empty JSON object.
func NewObject() Value {
	return Value{kind: Object, obj: orderedmap.New[string, Value]()}
}

// Kind reports the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsObject reports whether v is an object.
func (v Value) IsObject() bool { return v.kind == Object }

// IsArray reports whether v is an array.
func (v Value) IsArray() bool { return v.kind == Array }

// Str returns the string payload and true when v is a string.
func (v Value) Str() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// Num returns the number literal and true when v is a number.
func (v Value) Num() (json.Number, bool) {
	if v.kind != Number {
		return "", false
	}
	return json.Number(v.s), true
}

// Elems returns the elements of an array, or nil for any other kind.
// The returned slice aliases v; callers must not modify it.
func (v Value) Elems() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

// Append returns a new array value with items added after the elements of v.
// v must be an array; any other kind is treated as an empty array.
func (v Value) Append(items ...Value) Value {
	var base []Value
	if v.kind == Array {
		base = v.arr
	}
	out := make([]Value, 0, len(base)+len(items))
	out = append(out, base...)
	out = append(out, items...)
	return Value{kind: Array, arr: out}
}

// Len returns the number of elements of an array or members of an object.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return v.obj.Len()
	}
	return 0
}

// Get returns the member stored under key when v is an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Set stores val under key, keeping the position of an existing key.
// It is a no-op when v is not an object.
func (v Value) Set(key string, val Value) {
	if v.kind != Object {
		return
	}
	v.obj.Set(key, val)
}

// Members iterates object members in order. It yields nothing for other kinds.
func (v Value) Members() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if v.kind != Object {
			return
		}
		for pair := v.obj.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// MapMembers returns a new object holding fn's result for every member of
// v, in order. Member names keep the literals they were decoded from. For
// other kinds v is returned unchanged.
func (v Value) MapMembers(fn func(key string, m Value) (Value, error)) (Value, error) {
	if v.kind != Object {
		return v, nil
	}
	out := orderedmap.New[string, Value](v.obj.Len())
	for k, m := range v.Members() {
		r, err := fn(k, m)
		if err != nil {
			return Value{}, err
		}
		out.Set(k, r)
	}
	return Value{kind: Object, obj: out, keys: maps.Clone(v.keys)}, nil
}

// Clone returns a deep copy of v. Strings are immutable and shared.
func (v Value) Clone() Value {
	switch v.kind {
	case Array:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Clone()
		}
		return Value{kind: Array, arr: out}
	case Object:
		out := orderedmap.New[string, Value](v.obj.Len())
		for k, m := range v.Members() {
			out.Set(k, m.Clone())
		}
		return Value{kind: Object, obj: out, keys: maps.Clone(v.keys)}
	}
	return v
}

// Equal reports whether a and b hold the same JSON data. Member order is
// ignored; number literals are compared as written.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Number, String:
		return a.s == b.s
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for k, av := range a.Members() {
			bv, ok := b.obj.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}
