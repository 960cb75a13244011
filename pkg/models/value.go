package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies which member of the Value union is populated.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindList
)

var ErrUnsupportedValue = errors.New("unsupported extra value")

// Value is a closed union of the shapes that page-derived extras can take:
// a string, a number, a boolean or a list of strings.
type Value struct {
	kind   ValueKind
	str    string
	number float64
	flag   bool
	list   []string
}

// Extras holds named, schema-less attributes attached to steps, doctors and workflows.
type Extras map[string]Value

func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

func NumberValue(n float64) Value {
	return Value{kind: KindNumber, number: n}
}

func IntValue(n int) Value {
	return Value{kind: KindNumber, number: float64(n)}
}

func BoolValue(b bool) Value {
	return Value{kind: KindBool, flag: b}
}

func ListValue(items []string) Value {
	list := make([]string, len(items))
	copy(list, items)

	return Value{kind: KindList, list: list}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

// Str returns the string member and whether the value holds a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) Number() (float64, bool) {
	return v.number, v.kind == KindNumber
}

func (v Value) Bool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

func (v Value) List() ([]string, bool) {
	return v.list, v.kind == KindList
}

// String renders the value for logs and messages.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return v.str
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case KindNumber:
		return v.number == other.number
	case KindBool:
		return v.flag == other.flag
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}

		for i := range v.list {
			if v.list[i] != other.list[i] {
				return false
			}
		}

		return true
	default:
		return v.str == other.str
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.number)
	case KindBool:
		return json.Marshal(v.flag)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}

		return json.Marshal(v.list)
	default:
		return json.Marshal(v.str)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	switch typed := raw.(type) {
	case string:
		*v = StringValue(typed)
	case float64:
		*v = NumberValue(typed)
	case bool:
		*v = BoolValue(typed)
	case []any:
		items := make([]string, 0, len(typed))

		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("%w: list item of type %T", ErrUnsupportedValue, item)
			}

			items = append(items, s)
		}

		*v = ListValue(items)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}

	return nil
}
