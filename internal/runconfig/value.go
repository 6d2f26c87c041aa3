package runconfig

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindMapping
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is an immutable configuration value: null, a scalar (string, bool,
// int64 or float64), a sequence, or a string-keyed mapping. Values share
// structure freely since no method mutates a Value in place.
type Value struct {
	kind    Kind
	scalar  any
	seq     []Value
	mapping map[string]Value
}

// Null returns the null value.
func Null() Value {
	return Value{}
}

// String returns a string scalar.
func String(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// Bool returns a boolean scalar.
func Bool(b bool) Value {
	return Value{kind: KindScalar, scalar: b}
}

// Int returns an integer scalar.
func Int(i int64) Value {
	return Value{kind: KindScalar, scalar: i}
}

// Float returns a floating point scalar.
func Float(f float64) Value {
	return Value{kind: KindScalar, scalar: f}
}

// Sequence returns a sequence holding items.
func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, seq: slices.Clone(items)}
}

// Mapping returns a mapping holding a copy of m.
func Mapping(m map[string]Value) Value {
	out := make(map[string]Value, len(m))
	maps.Copy(out, m)
	return Value{kind: KindMapping, mapping: out}
}

// EmptyMapping returns a mapping with no keys.
func EmptyMapping() Value {
	return Value{kind: KindMapping, mapping: map[string]Value{}}
}

// FromAny converts decoded YAML or JSON data into a Value.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return fromUnsigned(uint64(x)), nil
	case uint64:
		return fromUnsigned(x), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return Float(f), nil
	case time.Time:
		return String(x.Format(time.RFC3339)), nil
	case []any:
		items := make([]Value, 0, len(x))
		for i, item := range x {
			iv, err := FromAny(item)
			if err != nil {
				return Null(), fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, iv)
		}
		return Value{kind: KindSequence, seq: items}, nil
	case []string:
		items := make([]Value, 0, len(x))
		for _, s := range x {
			items = append(items, String(s))
		}
		return Value{kind: KindSequence, seq: items}, nil
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			iv, err := FromAny(item)
			if err != nil {
				return Null(), fmt.Errorf("%s: %w", k, err)
			}
			m[k] = iv
		}
		return Value{kind: KindMapping, mapping: m}, nil
	case map[any]any:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			key := fmt.Sprint(k)
			iv, err := FromAny(item)
			if err != nil {
				return Null(), fmt.Errorf("%s: %w", key, err)
			}
			m[key] = iv
		}
		return Value{kind: KindMapping, mapping: m}, nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", v)
	}
}

func fromUnsigned(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

// MustFromAny is like FromAny but panics on unsupported input. It is meant
// for literals in code and tests.
func MustFromAny(v any) Value {
	out, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return out
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsMapping reports whether v is a mapping.
func (v Value) IsMapping() bool {
	return v.kind == KindMapping
}

// Len returns the number of items of a sequence or keys of a mapping.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return len(v.mapping)
	default:
		return 0
	}
}

// Keys returns the keys of a mapping in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	return slices.Sorted(maps.Keys(v.mapping))
}

// Items returns the items of a sequence.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return slices.Clone(v.seq)
}

// Field returns the value stored under key in a mapping.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Null(), false
	}
	f, ok := v.mapping[key]
	return f, ok
}

// Get walks nested mappings along path.
func (v Value) Get(path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		next, ok := cur.Field(key)
		if !ok {
			return Null(), false
		}
		cur = next
	}
	return cur, true
}

// With returns a copy of the mapping v with key set to val. A non-mapping v
// is treated as an empty mapping.
func (v Value) With(key string, val Value) Value {
	out := make(map[string]Value, len(v.mapping)+1)
	if v.kind == KindMapping {
		maps.Copy(out, v.mapping)
	}
	out[key] = val
	return Value{kind: KindMapping, mapping: out}
}

// Without returns a copy of the mapping v with the given keys removed.
func (v Value) Without(keys ...string) Value {
	if v.kind != KindMapping {
		return v
	}
	out := maps.Clone(v.mapping)
	for _, key := range keys {
		delete(out, key)
	}
	return Value{kind: KindMapping, mapping: out}
}

// AsString returns the string form of a scalar. Numbers and booleans are
// formatted; sequences, mappings and null report false.
func (v Value) AsString() (string, bool) {
	if v.kind != KindScalar {
		return "", false
	}
	switch s := v.scalar.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64), true
	}
	return "", false
}

// AsBool returns a boolean scalar.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.scalar.(bool)
	return b, ok && v.kind == KindScalar
}

// AsInt returns an integer scalar. Whole floats are accepted.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindScalar {
		return 0, false
	}
	switch n := v.scalar.(type) {
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n), true
		}
	}
	return 0, false
}

// AsFloat returns a numeric scalar as float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindScalar {
		return 0, false
	}
	switch n := v.scalar.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// StringAt returns the string at path, or def when absent or not a scalar.
func (v Value) StringAt(def string, path ...string) string {
	if f, ok := v.Get(path...); ok {
		if s, ok := f.AsString(); ok {
			return s
		}
	}
	return def
}

// BoolAt returns the boolean at path, or def when absent or not a boolean.
func (v Value) BoolAt(def bool, path ...string) bool {
	if f, ok := v.Get(path...); ok {
		if b, ok := f.AsBool(); ok {
			return b
		}
	}
	return def
}

// IntAt returns the integer at path, or def when absent or not an integer.
func (v Value) IntAt(def int64, path ...string) int64 {
	if f, ok := v.Get(path...); ok {
		if i, ok := f.AsInt(); ok {
			return i
		}
	}
	return def
}

// FloatAt returns the number at path, or def when absent or not numeric.
func (v Value) FloatAt(def float64, path ...string) float64 {
	if f, ok := v.Get(path...); ok {
		if n, ok := f.AsFloat(); ok {
			return n
		}
	}
	return def
}

// Any converts v back into plain Go data: nil, string, bool, int64, float64,
// []any and map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.Any()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.mapping))
		for k, item := range v.mapping {
			out[k] = item.Any()
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether v and other hold the same data. Integer and float
// scalars compare by numeric value.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindScalar:
		if a, ok := v.AsFloat(); ok {
			b, ok := other.AsFloat()
			return ok && a == b
		}
		return v.scalar == other.scalar
	case KindSequence:
		return slices.EqualFunc(v.seq, other.seq, Value.Equal)
	case KindMapping:
		return maps.EqualFunc(v.mapping, other.mapping, Value.Equal)
	}
	return false
}

// MarshalJSON encodes v as canonical JSON: mapping keys sorted, no
// insignificant whitespace.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes JSON into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// Canonical returns the canonical JSON encoding of v.
func (v Value) Canonical() []byte {
	data, err := v.MarshalJSON()
	if err != nil {
		// Only non-finite floats fail to encode; fall back to their text form.
		return []byte(fmt.Sprintf("%v", v.Any()))
	}
	return data
}
