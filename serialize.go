package duckdb

import (
	"math"
	"strconv"
	"strings"
)

// serializeResult renders a result set as one JSON array-of-objects string,
// row by row in engine order. It never builds a row/column matrix first;
// the string builder is the only buffer.
func serializeResult(res EngineResult) (string, error) {
	cols := res.Columns()
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for res.Next() {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteByte('{')
		for i := range cols {
			if i > 0 {
				b.WriteByte(',')
			}
			appendJSONString(&b, cols[i].Name)
			b.WriteByte(':')
			appendCellJSON(&b, res.Cell(i))
		}
		b.WriteByte('}')
	}
	if err := res.Err(); err != nil {
		return "", err
	}
	b.WriteByte(']')
	return b.String(), nil
}

// appendCellJSON writes one cell in its JSON representation. Numeric and
// boolean classes map to JSON primitives; everything else is the engine's
// canonical text, JSON-escaped. Non-finite floats have no JSON rendering
// and degrade to null.
func appendCellJSON(b *strings.Builder, c Cell) {
	if c.Null {
		b.WriteString("null")
		return
	}
	switch c.Class {
	case ClassBoolean:
		b.WriteString(strconv.FormatBool(c.Bool))
	case ClassSigned:
		b.WriteString(strconv.FormatInt(c.Int, 10))
	case ClassUnsigned:
		b.WriteString(strconv.FormatUint(c.Uint, 10))
	case ClassFloat, ClassDouble:
		if math.IsNaN(c.Float) || math.IsInf(c.Float, 0) {
			b.WriteString("null")
			return
		}
		b.WriteString(strconv.FormatFloat(c.Float, 'g', -1, 64))
	default:
		appendJSONString(b, c.Text)
	}
}

// appendJSONString writes s as a quoted JSON string, escaping quote,
// backslash and control characters. Valid UTF-8 above the control range
// passes through unmodified.
func appendJSONString(b *strings.Builder, s string) {
	const hex = "0123456789abcdef"
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hex[c>>4])
				b.WriteByte(hex[c&0xf])
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
}
