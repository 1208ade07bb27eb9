// Package payload models extracted document data as a recursive structured
// value. Consumers descend through it structurally; no schema is assumed.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindList
)

// Object is a string-keyed map of values.
type Object map[string]Value

// List is an ordered sequence of values.
type List []Value

// Value is a scalar, a nested Object or a List. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	flag bool
	obj  Object
	list List
}

// Null is the empty value.
var Null = Value{}

func String(s string) Value   { return Value{kind: KindString, str: s} }
func Number(n float64) Value  { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value       { return Value{kind: KindBool, flag: b} }
func ObjectOf(o Object) Value { return Value{kind: KindObject, obj: o} }
func ListOf(l List) Value     { return Value{kind: KindList, list: l} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) Object() Object { return v.obj }
func (v Value) List() List     { return v.list }

// Str returns the string form of a scalar. Numbers and booleans are formatted.
func (v Value) Str() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.flag), true
	default:
		return "", false
	}
}

// Num returns the numeric value when v is a number.
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Truthy returns the boolean value when v is a bool.
func (v Value) Truthy() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// Lookup descends through nested objects following path.
func (v Value) Lookup(path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		if cur.kind != KindObject {
			return Null, false
		}
		next, ok := cur.obj[key]
		if !ok {
			return Null, false
		}
		cur = next
	}
	return cur, true
}

// Walk visits every node depth-first. Object keys are visited in sorted order
// and list elements by index. Returning false from fn stops the walk.
func (v Value) Walk(fn func(path []string, node Value) bool) {
	v.walk(nil, fn)
}

func (v Value) walk(path []string, fn func([]string, Value) bool) bool {
	if !fn(path, v) {
		return false
	}
	switch v.kind {
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !v.obj[k].walk(append(path[:len(path):len(path)], k), fn) {
				return false
			}
		}
	case KindList:
		for i, item := range v.list {
			if !item.walk(append(path[:len(path):len(path)], strconv.Itoa(i)), fn) {
				return false
			}
		}
	}
	return true
}

// FindString returns the first scalar found under any of keys, searching the
// whole tree. Shallower matches win over deeper ones.
func (v Value) FindString(keys ...string) (string, bool) {
	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	best, bestDepth := "", -1
	v.Walk(func(path []string, node Value) bool {
		if len(path) == 0 {
			return true
		}
		if bestDepth >= 0 && len(path) >= bestDepth {
			return true
		}
		if _, ok := wanted[path[len(path)-1]]; !ok {
			return true
		}
		if s, ok := node.Str(); ok && s != "" {
			best, bestDepth = s, len(path)
		}
		return true
	})
	return best, bestDepth >= 0
}

// Equal reports structural equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.flag == o.flag
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, a := range v.obj {
			b, ok := o.obj[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts decoded JSON (map[string]any, []any, scalars) into a Value.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Null, fmt.Errorf("parse number %q: %w", t, err)
		}
		return Number(n), nil
	case map[string]any:
		obj := make(Object, len(t))
		for k, item := range t {
			child, err := FromAny(item)
			if err != nil {
				return Null, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = child
		}
		return ObjectOf(obj), nil
	case []any:
		list := make(List, 0, len(t))
		for i, item := range t {
			child, err := FromAny(item)
			if err != nil {
				return Null, fmt.Errorf("[%d]: %w", i, err)
			}
			list = append(list, child)
		}
		return ListOf(list), nil
	default:
		return Null, fmt.Errorf("unsupported payload type %T", raw)
	}
}

// ToAny converts v back to plain Go values suitable for encoding/json.
func (v Value) ToAny() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.flag
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, child := range v.obj {
			out[k] = child.ToAny()
		}
		return out
	case KindList:
		out := make([]any, 0, len(v.list))
		for _, child := range v.list {
			out = append(out, child.ToAny())
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
