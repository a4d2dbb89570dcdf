package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the canonical date format for extracted dates.
const DateLayout = "2006-01-02"

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindAbsent Kind = iota
	KindNumber
	KindString
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "absent":
		return KindAbsent, nil
	case "number":
		return KindNumber, nil
	case "string":
		return KindString, nil
	case "date":
		return KindDate, nil
	}
	return KindAbsent, fmt.Errorf("schema: unknown value kind %q", s)
}

// Value is a single extracted property value. The zero Value is absent.
type Value struct {
	kind Kind
	num  float64
	str  string
	date time.Time
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Date returns a date Value truncated to the calendar day in UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Absent returns the absent Value.
func Absent() Value { return Value{} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v carries no value.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Float returns the numeric payload and whether v is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Text returns the string payload and whether v is a string.
func (v Value) Text() (string, bool) { return v.str, v.kind == KindString }

// Time returns the date payload and whether v is a date.
func (v Value) Time() (time.Time, bool) { return v.date, v.kind == KindDate }

// String renders v for messages: numbers without trailing zeros, dates as
// YYYY-MM-DD, absent as "null".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return v.str
	case KindDate:
		return v.date.Format(DateLayout)
	default:
		return "null"
	}
}

// Equal reports whether v and o hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindDate:
		return v.date.Equal(o.date)
	default:
		return true
	}
}

// MarshalJSON encodes v as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindDate:
		return json.Marshal(v.date.Format(DateLayout))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes numbers, strings and null. Strings in YYYY-MM-DD
// form decode as dates.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("schema: decode value: %w", err)
	}
	switch x := raw.(type) {
	case nil:
		*v = Absent()
	case float64:
		*v = Number(x)
	case string:
		if t, err := time.Parse(DateLayout, x); err == nil {
			*v = Date(t)
			return nil
		}
		*v = String(x)
	case bool:
		*v = String(strconv.FormatBool(x))
	default:
		return fmt.Errorf("schema: unsupported value %s", string(b))
	}
	return nil
}

// FormatNumber renders f without exponent or trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Values maps property names to extracted values.
type Values map[string]Value

// Get returns the value stored under name, or Absent.
func (vs Values) Get(name string) Value {
	if vs == nil {
		return Absent()
	}
	return vs[name]
}

// Lookup returns the first non-absent value among names together with the
// name it was found under.
func (vs Values) Lookup(names ...string) (Value, string) {
	for _, n := range names {
		if v := vs.Get(n); !v.IsAbsent() {
			return v, n
		}
	}
	return Absent(), ""
}

// Set stores v under name. Absent values delete the key.
func (vs Values) Set(name string, v Value) {
	if v.IsAbsent() {
		delete(vs, name)
		return
	}
	vs[name] = v
}
