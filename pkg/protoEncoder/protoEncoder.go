// Package protoEncoder writes protobuf messages field by field on top of
// protowire, for chains whose transaction schemas are not vendored as Go types.
// Scalar fields follow proto3 rules and are omitted when they hold the zero
// value, so the output matches what generated marshalers produce.
package protoEncoder

import "google.golang.org/protobuf/encoding/protowire"

// Builder accumulates the encoded fields of one message.
type Builder struct {
	buf []byte
}

// New returns an empty message builder.
func New() *Builder {
	return &Builder{}
}

// String writes a string field. Empty strings are omitted.
func (b *Builder) String(num protowire.Number, v string) *Builder {
	if v == "" {
		return b
	}
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendString(b.buf, v)
	return b
}

// Bytes writes a bytes field. Empty values are omitted.
func (b *Builder) Bytes(num protowire.Number, v []byte) *Builder {
	if len(v) == 0 {
		return b
	}
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, v)
	return b
}

// RepeatedBytes writes every element, including empty ones, as a separate field.
func (b *Builder) RepeatedBytes(num protowire.Number, values ...[]byte) *Builder {
	for _, v := range values {
		b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
		b.buf = protowire.AppendBytes(b.buf, v)
	}
	return b
}

// Uint64 writes a varint field. Zero is omitted.
func (b *Builder) Uint64(num protowire.Number, v uint64) *Builder {
	if v == 0 {
		return b
	}
	b.buf = protowire.AppendTag(b.buf, num, protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, v)
	return b
}

// Int64 writes a signed varint field (int64/int32/enum encoding). Zero is omitted.
func (b *Builder) Int64(num protowire.Number, v int64) *Builder {
	return b.Uint64(num, uint64(v))
}

// Bool writes a bool field. False is omitted.
func (b *Builder) Bool(num protowire.Number, v bool) *Builder {
	if !v {
		return b
	}
	return b.Uint64(num, 1)
}

// Message writes an embedded message. A nil message is omitted; an empty one is
// written with zero length, which marks the field as present.
func (b *Builder) Message(num protowire.Number, m *Builder) *Builder {
	if m == nil {
		return b
	}
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, m.buf)
	return b
}

// Messages writes a repeated embedded message field.
func (b *Builder) Messages(num protowire.Number, ms ...*Builder) *Builder {
	for _, m := range ms {
		b.Message(num, m)
	}
	return b
}

// Marshal returns a copy of the encoded message.
func (b *Builder) Marshal() []byte {
	return append([]byte(nil), b.buf...)
}

// Any wraps an encoded message in google.protobuf.Any.
func Any(typeURL string, value *Builder) *Builder {
	return New().String(1, typeURL).Bytes(2, value.buf)
}
