package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is one node of the configuration document. The zero Value is Null.
//
// Mapping keys keep their insertion order so a document serializes the way it
// was read. Numbers keep their decimal text too, so integers wider than a
// float64 mantissa survive a round trip.
type Value struct {
	kind Kind
	b    bool
	n    float64
	lit  string
	s    string
	seq  []Value
	keys []string
	m    map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a number.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

func numberText(text string) (Value, error) {
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, fmt.Errorf("invalid number %s: %w", text, err)
	}
	return Value{kind: KindNumber, n: n, lit: text}, nil
}

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Sequence wraps an ordered list of values.
func Sequence(items ...Value) Value {
	seq := make([]Value, len(items))
	copy(seq, items)
	return Value{kind: KindSequence, seq: seq}
}

// Strings builds a sequence of strings.
func Strings(items ...string) Value {
	seq := make([]Value, 0, len(items))
	for _, s := range items {
		seq = append(seq, String(s))
	}
	return Value{kind: KindSequence, seq: seq}
}

// Field is a key/value pair used to build mappings in order.
type Field struct {
	Key   string
	Value Value
}

// Mapping builds a mapping from fields, in order. Later duplicates win.
func Mapping(fields ...Field) Value {
	v := Value{kind: KindMapping, m: make(map[string]Value, len(fields))}
	for _, f := range fields {
		v.put(f.Key, f.Value)
	}
	return v
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

// AsInt64 returns the number held by v when it is an integer that fits in an
// int64 exactly.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.lit != "" {
		if i, err := strconv.ParseInt(v.lit, 10, 64); err == nil {
			return i, true
		}
	}
	if v.n == math.Trunc(v.n) && v.n >= math.MinInt64 && v.n < math.MaxInt64 {
		return int64(v.n), true
	}
	return 0, false
}

func (v Value) numberString() string {
	if v.lit != "" {
		return v.lit
	}
	return strconv.FormatFloat(v.n, 'f', -1, 64)
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsSequence returns a copy of the items held by v.
func (v Value) AsSequence() ([]Value, bool) {
	if v.kind != KindSequence {
		return nil, false
	}
	out := make([]Value, len(v.seq))
	copy(out, v.seq)
	return out, true
}

// AsStrings returns the string items of a sequence. Non-string items are
// skipped.
func (v Value) AsStrings() ([]string, bool) {
	if v.kind != KindSequence {
		return nil, false
	}
	out := make([]string, 0, len(v.seq))
	for _, item := range v.seq {
		if s, ok := item.AsString(); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// Len returns the number of items in a sequence or keys in a mapping.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return len(v.keys)
	}
	return 0
}

// Keys returns mapping keys in document order.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Lookup returns the value stored under key in a mapping.
func (v Value) Lookup(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Value{}, false
	}
	item, ok := v.m[key]
	return item, ok
}

// With returns a copy of the mapping v with key set to item. It returns v
// unchanged when v is not a mapping.
func (v Value) With(key string, item Value) Value {
	if v.kind != KindMapping {
		return v
	}
	out := v.Clone()
	out.put(key, item)
	return out
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		a, aok := v.AsInt64()
		b, bok := o.AsInt64()
		if aok && bok {
			return a == b
		}
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(v.keys) != len(o.keys) {
			return false
		}
		for _, k := range v.keys {
			other, ok := o.m[k]
			if !ok || !v.m[k].Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSequence:
		seq := make([]Value, len(v.seq))
		for i, item := range v.seq {
			seq[i] = item.Clone()
		}
		return Value{kind: KindSequence, seq: seq}
	case KindMapping:
		out := Value{kind: KindMapping, keys: make([]string, len(v.keys)), m: make(map[string]Value, len(v.m))}
		copy(out.keys, v.keys)
		for k, item := range v.m {
			out.m[k] = item.Clone()
		}
		return out
	}
	return v
}

func (v *Value) put(key string, item Value) {
	if v.m == nil {
		v.m = make(map[string]Value)
	}
	if _, ok := v.m[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.m[key] = item
}

func (v *Value) delete(key string) {
	if _, ok := v.m[key]; !ok {
		return
	}
	delete(v.m, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i], v.keys[i+1:]...)
			break
		}
	}
}

// MarshalJSON encodes v as JSON, keeping mapping key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if v.lit == "" && (math.IsNaN(v.n) || math.IsInf(v.n, 0)) {
			return fmt.Errorf("unsupported number %v", v.n)
		}
		buf.WriteString(v.numberString())
	case KindString:
		data, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := v.m[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes any JSON document into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after top-level value")
	}
	*v = out
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return numberText(t.String())
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			seq := Value{kind: KindSequence, seq: []Value{}}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				seq.seq = append(seq.seq, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return seq, nil
		case '{':
			m := Mapping()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("invalid object key %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.put(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return m, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

// FromAny converts a decoded generic tree (as produced by yaml.v3 or
// encoding/json) into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case int:
		return numberText(strconv.Itoa(t))
	case int64:
		return numberText(strconv.FormatInt(t, 10))
	case uint64:
		return numberText(strconv.FormatUint(t, 10))
	case float64:
		return Number(t), nil
	case json.Number:
		return numberText(t.String())
	case string:
		return String(t), nil
	case []any:
		seq := Value{kind: KindSequence, seq: make([]Value, 0, len(t))}
		for _, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			seq.seq = append(seq.seq, v)
		}
		return seq, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := Mapping()
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			m.put(k, v)
		}
		return m, nil
	}
	return Value{}, fmt.Errorf("unsupported value of type %T", x)
}

// ToAny converts v into a generic tree suitable for yaml.v3 encoding.
func (v Value) ToAny() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if i, ok := v.AsInt64(); ok {
			return i
		}
		if u, err := strconv.ParseUint(v.lit, 10, 64); err == nil {
			return u
		}
		return v.n
	case KindString:
		return v.s
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.ToAny()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[k] = v.m[k].ToAny()
		}
		return out
	}
	return nil
}
