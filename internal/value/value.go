// Package value coerces loosely typed runtime values (JSON numbers, strings,
// booleans) into the types declared by variables and ports.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AaronLay10/protoflow/internal/model"
)

// Number converts v to a float64. ok is false when v had no numeric reading
// and the fallback 0 was used.
func Number(v interface{}) (n float64, ok bool) {
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case uint:
		n = float64(t)
	case uint64:
		n = float64(t)
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	case fmt.Stringer:
		return Number(t.String())
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// Truthy converts v to a boolean. Strings are parsed as booleans first
// ("true", "false", "1", "0"); any other non-empty string is true.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return t != ""
	default:
		if n, ok := Number(v); ok {
			return n != 0
		}
		return true
	}
}

// String converts v to its text form. nil becomes "".
func String(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Coerce converts v to the declared variable type. ok is false when a
// fallback was applied (NaN or unparsable number).
func Coerce(t model.VariableType, v interface{}) (out interface{}, ok bool) {
	switch t {
	case model.VarNumber:
		return Number(v)
	case model.VarBoolean:
		_, isBool := v.(bool)
		return Truthy(v), isBool
	default:
		_, isString := v.(string)
		return String(v), isString || v == nil
	}
}

// Compare applies op to a and b after coercing both to type t. Ordering
// operators only match for numbers; for string, boolean and color only
// == and != can match.
func Compare(t model.VariableType, op model.Operator, a, b interface{}) bool {
	if t == model.VarNumber {
		x, _ := Number(a)
		y, _ := Number(b)
		switch op {
		case model.OpEqual:
			return x == y
		case model.OpNotEqual:
			return x != y
		case model.OpGreater:
			return x > y
		case model.OpLess:
			return x < y
		case model.OpGreaterEqual:
			return x >= y
		case model.OpLessEqual:
			return x <= y
		}
		return false
	}

	x, _ := Coerce(t, a)
	y, _ := Coerce(t, b)
	switch op {
	case model.OpEqual:
		return x == y
	case model.OpNotEqual:
		return x != y
	default:
		return false
	}
}

// Clamp limits n to [min, max]. A reversed range is treated as unbounded.
func Clamp(n, min, max float64) float64 {
	if min > max {
		return n
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
