package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
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
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a semi-structured JSON value: null, bool, number, string, array or object.
// Objects keep their fields in declaration order. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  float64
	text string // string content, or the number literal as written
	arr  []Value
	obj  *Object
}

// Object is an ordered mapping from field name to Value.
// A repeated field keeps its first position and its last value.
type Object struct {
	keys   []string
	fields map[string]Value
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// Set stores v under key, appending key if it is new.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.fields[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
}

// Get returns the field stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.fields[key]
	return v, ok
}

// Keys returns field names in declaration order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of fields.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

func NullValue() Value             { return Value{} }
func BoolValue(b bool) Value       { return Value{kind: KindBool, b: b} }
func NumberValue(f float64) Value  { return Value{kind: KindNumber, num: f} }
func StringValue(s string) Value   { return Value{kind: KindString, text: s} }
func ArrayValue(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, typeMismatch(KindBool, v.kind)
	}
	return v.b, nil
}

func (v Value) AsNumber() (float64, error) {
	if v.kind != KindNumber {
		return 0, typeMismatch(KindNumber, v.kind)
	}
	return v.num, nil
}

func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", typeMismatch(KindString, v.kind)
	}
	return v.text, nil
}

func (v Value) AsArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, typeMismatch(KindArray, v.kind)
	}
	return v.arr, nil
}

func (v Value) AsObject() (*Object, error) {
	if v.kind != KindObject {
		return nil, typeMismatch(KindObject, v.kind)
	}
	return v.obj, nil
}

// Field returns the named field of an object value.
// It fails with ErrTypeMismatch for non-objects and ErrFieldMissing for absent fields.
func (v Value) Field(name string) (Value, error) {
	obj, err := v.AsObject()
	if err != nil {
		return Value{}, err
	}
	f, ok := obj.Get(name)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", apperrors.ErrFieldMissing, name)
	}
	return f, nil
}

// Lookup is Field without the error detail; absent fields and non-objects report false.
func (v Value) Lookup(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	return v.obj.Get(name)
}

func typeMismatch(want, got Kind) error {
	return fmt.Errorf("%w: want %s, got %s", apperrors.ErrTypeMismatch, want, got)
}

// Key returns a canonical identity for set membership. Equal numbers written
// differently (1 and 1.0) share a key; a number never equals a string.
func (v Value) Key() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "b:true"
		}
		return "b:false"
	case KindNumber:
		if i, ok := v.exactInt(); ok {
			return "n:" + i.String()
		}
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return "s:" + v.text
	default:
		b, _ := v.MarshalJSON()
		return v.kind.String()[:1] + ":" + string(b)
	}
}

// exactInt returns the integer a number denotes. Integer literals use their
// source text so IDs beyond 2^53 keep distinct keys; integral floats such as
// 1.0 key the same as 1.
func (v Value) exactInt() (*big.Int, bool) {
	if v.text != "" {
		if i, ok := new(big.Int).SetString(v.text, 10); ok {
			return i, true
		}
	}
	if math.IsInf(v.num, 0) || math.IsNaN(v.num) || v.num != math.Trunc(v.num) {
		return nil, false
	}
	i, _ := new(big.Float).SetFloat64(v.num).Int(nil)
	return i, true
}

// lossy reports whether an integer literal does not survive float64.
func (v Value) lossy() bool {
	if v.text == "" {
		return false
	}
	i, ok := new(big.Int).SetString(v.text, 10)
	if !ok {
		return false
	}
	f, _ := new(big.Float).SetInt(i).Float64()
	exact, _ := new(big.Float).SetFloat64(f).Int(nil)
	return exact.Cmp(i) != 0
}

// ParseNumber parses s as a JSON number, keeping its text for exact keys.
func ParseNumber(s string) (Value, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NumberValue(f), nil
	}
	return Value{kind: KindNumber, num: f, text: s}, nil
}

// String renders the value the way the data tooling stringifies cells:
// None/True/False for null and booleans, numbers as written.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "None"
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindNumber:
		if v.text != "" {
			return v.text
		}
		return formatNumber(v.num)
	case KindString:
		return v.text
	default:
		b, _ := v.MarshalJSON()
		return string(b)
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Interface converts the value to plain Go types (nil, bool, float64, string, []any, map[string]any).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.lossy() {
			return json.Number(v.text)
		}
		return v.num
	case KindString:
		return v.text
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, v.obj.Len())
		for _, k := range v.obj.keys {
			out[k] = v.obj.fields[k].Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes the value, keeping object field order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if v.text != "" {
			return []byte(v.text), nil
		}
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.text)
	case KindArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			b, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			sb.Write(b)
		}
		sb.WriteByte(']')
		return []byte(sb.String()), nil
	case KindObject:
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			sb.Write(kb)
			sb.WriteByte(':')
			b, err := v.obj.fields[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			sb.Write(b)
		}
		sb.WriteByte('}')
		return []byte(sb.String()), nil
	}
	return nil, fmt.Errorf("unknown value kind %d", v.kind)
}

// UnmarshalJSON decodes data, keeping object field order.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Compare orders values by kind first (null < bool < number < string < array < object),
// then by content. Used to keep diagnostic samples deterministic.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	case KindString:
		return strings.Compare(a.text, b.text)
	default:
		return strings.Compare(a.String(), b.String())
	}
}

// SortValues sorts vs in place using Compare.
func SortValues(vs []Value) {
	sort.SliceStable(vs, func(i, j int) bool { return Compare(vs[i], vs[j]) < 0 })
}

// Parse decodes JSON text into a Value. Invalid JSON fails with ErrMalformedJSON.
func Parse(data []byte) (Value, error) {
	if !json.Valid(data) {
		return Value{}, fmt.Errorf("%w: document does not parse", apperrors.ErrMalformedJSON)
	}
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedJSON, err)
	}
	return fromParser(raw, dataType)
}

func fromParser(raw []byte, dataType jsonparser.ValueType) (Value, error) {
	switch dataType {
	case jsonparser.Null:
		return NullValue(), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedJSON, err)
		}
		return BoolValue(b), nil
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedJSON, err)
		}
		return Value{kind: KindNumber, num: f, text: string(raw)}, nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedJSON, err)
		}
		return StringValue(s), nil
	case jsonparser.Array:
		elems := make([]Value, 0)
		var inner error
		_, err := jsonparser.ArrayEach(raw, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
			if inner != nil {
				return
			}
			e, err := fromParser(value, dt)
			if err != nil {
				inner = err
				return
			}
			elems = append(elems, e)
		})
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedJSON, err)
		}
		if inner != nil {
			return Value{}, inner
		}
		return ArrayValue(elems...), nil
	case jsonparser.Object:
		obj := NewObject()
		err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, dt jsonparser.ValueType, _ int) error {
			e, err := fromParser(value, dt)
			if err != nil {
				return err
			}
			obj.Set(string(key), e)
			return nil
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrMalformedJSON) {
				return Value{}, err
			}
			return Value{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedJSON, err)
		}
		return ObjectValue(obj), nil
	}
	return Value{}, fmt.Errorf("%w: unexpected token", apperrors.ErrMalformedJSON)
}

// FromAny converts already-decoded Go data into a Value. Map keys are sorted
// because Go maps carry no declaration order.
func FromAny(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return x, nil
	case bool:
		return BoolValue(x), nil
	case string:
		return StringValue(x), nil
	case float64:
		return NumberValue(x), nil
	case float32:
		return NumberValue(float64(x)), nil
	case int:
		return NumberValue(float64(x)), nil
	case int32:
		return NumberValue(float64(x)), nil
	case int64:
		return NumberValue(float64(x)), nil
	case uint:
		return NumberValue(float64(x)), nil
	case uint64:
		return NumberValue(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedJSON, err)
		}
		return Value{kind: KindNumber, num: f, text: x.String()}, nil
	case json.RawMessage:
		return Parse(x)
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return ArrayValue(elems...), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			v, err := FromAny(x[k])
			if err != nil {
				return Value{}, err
			}
			obj.Set(k, v)
		}
		return ObjectValue(obj), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported Go type %T", apperrors.ErrTypeMismatch, in)
}
