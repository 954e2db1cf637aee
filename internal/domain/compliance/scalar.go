package compliance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

type ScalarKind int

const (
	KindNumber ScalarKind = iota + 1
	KindString
	KindBool
)

func (k ScalarKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	default:
		return "invalid"
	}
}

var errInvalidScalar = errors.New("rule value must be a number, string or boolean")

// Scalar is the value side of a rule predicate: a number, a string or a boolean.
// The zero value is invalid.
type Scalar struct {
	kind ScalarKind
	num  float64
	str  string
	b    bool
}

func NumberValue(v float64) Scalar { return Scalar{kind: KindNumber, num: v} }
func StringValue(v string) Scalar  { return Scalar{kind: KindString, str: v} }
func BoolValue(v bool) Scalar      { return Scalar{kind: KindBool, b: v} }

func (s Scalar) Kind() ScalarKind { return s.kind }
func (s Scalar) IsValid() bool    { return s.kind != 0 }

func (s Scalar) Number() (float64, bool) { return s.num, s.kind == KindNumber }
func (s Scalar) Text() (string, bool)    { return s.str, s.kind == KindString }
func (s Scalar) Bool() (bool, bool)      { return s.b, s.kind == KindBool }

// Arg returns the value as a query parameter. Integral numbers bind as int64.
func (s Scalar) Arg() any {
	switch s.kind {
	case KindNumber:
		if s.num == math.Trunc(s.num) && math.Abs(s.num) < 1<<53 {
			return int64(s.num)
		}
		return s.num
	case KindString:
		return s.str
	case KindBool:
		return s.b
	default:
		return nil
	}
}

func (s Scalar) String() string {
	switch s.kind {
	case KindNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case KindString:
		return s.str
	case KindBool:
		return strconv.FormatBool(s.b)
	default:
		return ""
	}
}

func (s Scalar) Equal(other Scalar) bool {
	return s == other
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindNumber:
		return json.Marshal(s.num)
	case KindString:
		return json.Marshal(s.str)
	case KindBool:
		return json.Marshal(s.b)
	default:
		return nil, errInvalidScalar
	}
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errInvalidScalar
	}

	switch trimmed[0] {
	case '"':
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return fmt.Errorf("decode string value: %w", err)
		}
		*s = StringValue(v)
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return fmt.Errorf("decode boolean value: %w", err)
		}
		*s = BoolValue(v)
	case 'n', '[', '{':
		return errInvalidScalar
	default:
		var v float64
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return fmt.Errorf("decode number value: %w", err)
		}
		*s = NumberValue(v)
	}
	return nil
}
