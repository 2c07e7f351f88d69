package duckdb

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToEngineValue(t *testing.T) {
	tbl := []struct {
		name string
		in   any
		want ParameterValue
	}{
		{"nil", nil, NullValue()},
		{"string", "hello", StringValue("hello")},
		{"bool", true, BoolValue(true)},
		{"int", 42, IntValue(42)},
		{"int8", int8(-8), IntValue(-8)},
		{"int16", int16(-16), IntValue(-16)},
		{"int32", int32(-32), IntValue(-32)},
		{"int64", int64(-64), IntValue(-64)},
		{"uint", uint(7), IntValue(7)},
		{"uint8", uint8(8), IntValue(8)},
		{"uint16", uint16(16), IntValue(16)},
		{"uint32", uint32(32), IntValue(32)},
		{"uint64", uint64(64), IntValue(64)},
		{"uint64 overflow", uint64(math.MaxUint64), IntValue(math.MaxInt64)},
		{"float32", float32(1.5), DoubleValue(1.5)},
		{"float64", 3.25, DoubleValue(3.25)},
		{"fallback struct", struct{ A int }{A: 1}, StringValue("{1}")},
		{"fallback slice", []int{1, 2}, StringValue("[1 2]")},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToEngineValue(tt.in))
		})
	}
}

func TestParameterValueZeroIsNull(t *testing.T) {
	var p ParameterValue
	assert.Equal(t, ParamNull, p.Kind, "zero value must be a null binding")
}
