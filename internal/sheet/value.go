package sheet

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Value is the content of a single cell: a string or a number.
// The zero Value is the empty string.
type Value struct {
	Str     string
	Num     float64
	Numeric bool
}

// Text returns a string cell value.
func Text(s string) Value {
	return Value{Str: s}
}

// Number returns a numeric cell value.
func Number(n float64) Value {
	return Value{Num: n, Numeric: true}
}

// IsEmpty reports whether v is the empty string.
func (v Value) IsEmpty() bool {
	return !v.Numeric && v.Str == ""
}

// String renders the value the way the grid and the CSV encoder show it.
func (v Value) String() string {
	if v.Numeric {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Str
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Numeric {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Str)
}

// UnmarshalJSON accepts strings and numbers. null becomes the empty string and
// booleans are kept as their literal text.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*v = Value{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case bytes.Equal(b, []byte("true")) || bytes.Equal(b, []byte("false")):
		*v = Text(string(b))
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = Number(n)
	return nil
}
