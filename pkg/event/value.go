package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// String returns the kind name for diagnostics.
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
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a JSON-compatible payload. It is a closed union over null,
// booleans, numbers, strings, ordered lists, and string-keyed mappings
// whose key order is preserved through marshal and unmarshal.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	keys []string
	vals map[string]Value
}

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number returns a numeric value.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// List returns a list value holding the given elements in order.
func List(elems ...Value) Value {
	return Value{kind: KindList, list: elems}
}

// Map returns an empty ordered mapping. Populate it with Set.
func Map() Value {
	return Value{kind: KindMap, vals: make(map[string]Value)}
}

// Kind reports which variant this value holds.
func (v Value) Kind() Kind {
	return v.kind
}

// BoolValue returns the boolean variant. Valid only for KindBool.
func (v Value) BoolValue() bool { return v.b }

// NumberValue returns the numeric variant. Valid only for KindNumber.
func (v Value) NumberValue() float64 { return v.n }

// StringValue returns the string variant. Valid only for KindString.
func (v Value) StringValue() string { return v.s }

// Len returns the element count for lists and maps, zero otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.keys)
	default:
		return 0
	}
}

// Index returns the i-th list element. Valid only for KindList.
func (v Value) Index(i int) Value {
	return v.list[i]
}

// Keys returns map keys in insertion order. Valid only for KindMap.
func (v Value) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Get looks up a map key. The second return is false when the key is
// absent or the value is not a map.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	val, ok := v.vals[key]
	return val, ok
}

// Set stores a key in insertion order, replacing in place if present.
// Valid only for values created with Map.
func (v *Value) Set(key string, val Value) {
	if v.kind != KindMap {
		return
	}
	if _, exists := v.vals[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.vals[key] = val
}

// Clone returns a deep copy. Mutating the copy's lists or maps never
// reaches the original.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		if v.list == nil {
			return v
		}
		list := make([]Value, len(v.list))
		for i, elem := range v.list {
			list[i] = elem.Clone()
		}
		return Value{kind: KindList, list: list}
	case KindMap:
		out := Map()
		for _, k := range v.keys {
			out.Set(k, v.vals[k].Clone())
		}
		return out
	default:
		return v
	}
}

// Equal reports deep equality, including map key order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.keys) != len(other.keys) {
			return false
		}
		for i, k := range v.keys {
			if other.keys[i] != k {
				return false
			}
			if !v.vals[k].Equal(other.vals[k]) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON renders the value with map keys in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) write(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		data, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindString:
		data, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindList:
		buf.WriteByte('[')
		for i, elem := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := elem.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyData, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyData)
			buf.WriteByte(':')
			if err := v.vals[k].write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot marshal value of kind %s", v.kind)
	}
	return nil
}

// UnmarshalJSON parses JSON into the value, preserving map key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse decodes a JSON document into a Value. Object key order is the
// order keys appear in the document.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseNext(dec)
	if err != nil {
		return Value{}, err
	}
	// Trailing content after the first document is malformed input.
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("unexpected trailing JSON content")
	}
	return v, nil
}

func parseNext(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(n), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			list := Value{kind: KindList}
			for dec.More() {
				elem, err := parseNext(dec)
				if err != nil {
					return Value{}, err
				}
				list.list = append(list.list, elem)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return list, nil
		case '{':
			m := Map()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				val, err := parseNext(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return m, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token: %v", tok)
}

// ParseString is Parse over a string input.
func ParseString(s string) (Value, error) {
	return Parse([]byte(strings.TrimSpace(s)))
}
