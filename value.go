package duckdb

import (
	"fmt"
	"math"
)

// ParameterKind tags a ParameterValue. The zero value is ParamNull so a
// freshly grown binding slot is a valid null binding.
type ParameterKind int32

const (
	ParamNull ParameterKind = iota
	ParamString
	ParamInt
	ParamDouble
	ParamBool
)

// ParameterValue is the tagged union bound into a prepared statement.
// Exactly one of the value fields is meaningful, selected by Kind.
type ParameterValue struct {
	Kind  ParameterKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

func NullValue() ParameterValue { return ParameterValue{Kind: ParamNull} }

func StringValue(s string) ParameterValue { return ParameterValue{Kind: ParamString, Str: s} }

func IntValue(v int64) ParameterValue { return ParameterValue{Kind: ParamInt, Int: v} }

func DoubleValue(v float64) ParameterValue { return ParameterValue{Kind: ParamDouble, Float: v} }

func BoolValue(v bool) ParameterValue { return ParameterValue{Kind: ParamBool, Bool: v} }

// ToEngineValue maps a dynamically typed host value to the engine's
// parameter representation. The mapping is exhaustive: anything without a
// dedicated representation is stringified.
func ToEngineValue(v any) ParameterValue {
	if v == nil {
		return NullValue()
	}
	switch x := v.(type) {
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case int:
		return IntValue(int64(x))
	case int8:
		return IntValue(int64(x))
	case int16:
		return IntValue(int64(x))
	case int32:
		return IntValue(int64(x))
	case int64:
		return IntValue(x)
	case uint:
		return IntValue(int64(x))
	case uint8:
		return IntValue(int64(x))
	case uint16:
		return IntValue(int64(x))
	case uint32:
		return IntValue(int64(x))
	case uint64:
		// cap at MaxInt64 to avoid overflow
		if x > uint64(math.MaxInt64) {
			return IntValue(math.MaxInt64)
		}
		return IntValue(int64(x))
	case float32:
		return DoubleValue(float64(x))
	case float64:
		return DoubleValue(x)
	default:
		return StringValue(fmt.Sprint(v))
	}
}
