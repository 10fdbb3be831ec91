package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	var i uint64
	if v {
		i = 1
	}
	return appendVarintField(b, num, i)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendFixed64Field(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// walkFields consumes varint/fixed-width scalar fields only (no bytes),
// calling fn for each with the varint value decoded when applicable.
func walkFields(buf []byte, fn func(num protowire.Number, typ protowire.Type, v uint64, str string)) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return protowire.ParseError(n)
		}
		buf = buf[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, typ, v, "")
			buf = buf[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, typ, 0, string(v))
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return protowire.ParseError(n)
			}
			buf = buf[n:]
		}
	}
	return nil
}

// walkStringFields is like walkFields but also surfaces the raw string
// alongside the varint for messages that mix both kinds.
func walkStringFields(buf []byte, fn func(num protowire.Number, v uint64, s string)) error {
	return walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		fn(num, v, s)
	})
}

// walkBytesFields is like walkStringFields but hands back []byte instead
// of string, for binary payload fields.
func walkBytesFields(buf []byte, fn func(num protowire.Number, v uint64, bs []byte)) error {
	return walkFields(buf, func(num protowire.Number, typ protowire.Type, v uint64, s string) {
		fn(num, v, []byte(s))
	})
}

// walkAllFields additionally decodes fixed64 fields as float64, for
// messages carrying both integers and doubles.
func walkAllFields(buf []byte, fn func(num protowire.Number, typ protowire.Type, v uint64, f float64, bs []byte)) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return protowire.ParseError(n)
		}
		buf = buf[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, typ, v, 0, nil)
			buf = buf[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(buf)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, typ, 0, math.Float64frombits(v), nil)
			buf = buf[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, typ, 0, 0, v)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return protowire.ParseError(n)
			}
			buf = buf[n:]
		}
	}
	return nil
}
