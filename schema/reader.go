package schema

import (
	"fmt"
	"io"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/stream"
)

// Reader decodes one field value or stream element.
//
// The built-in variants are IntReader, BytesReader, SkipReader, BufferReader,
// ArrayReader, FunctionReader, RecordRef and the stream-producing viewReader.
// Plugins contribute further readers through Module.RegisterTypes.
type Reader interface {
	// TypeName is the name a formatter is looked up by.
	TypeName() string
	Read(f *Frame) (any, error)
}

// Sizer is implemented by readers whose encoded size is known without
// reading. count is the field's literal count, or -1 when it has none.
type Sizer interface {
	Size(count int64) (int64, bool)
}

// Counted is implemented by readers that consume the field count themselves
// instead of being repeated as array elements.
type Counted interface {
	UsesCount() bool
}

// Frame is the context of one Read call.
type Frame struct {
	Stream stream.Stream
	// Record holds the sibling fields decoded so far; nil outside a record.
	Record  *Record
	session *Session
	// Count is the evaluated field count, or -1 when the field has none.
	Count int64
}

// Session returns the decode session the read belongs to.
func (f *Frame) Session() *Session { return f.session }

// Env returns the sibling fields as an expression environment.
func (f *Frame) Env() map[string]any {
	if f.Record == nil {
		return map[string]any{}
	}
	return f.Record.Env()
}

func (f *Frame) child(count int64) *Frame {
	return &Frame{Stream: f.Stream, Record: f.Record, session: f.session, Count: count}
}

func (f *Frame) requireCount(what string) (int, error) {
	if f.Count < 0 {
		return 0, errors.InvalidSchema("", fmt.Sprintf("%s requires a count", what))
	}
	return int(f.Count), nil
}

// IntReader decodes a little-endian unsigned integer of 1, 2, 4 or 8 bytes
// into uint8, uint16, uint32 or uint64.
type IntReader struct {
	Width int
}

func (r *IntReader) TypeName() string { return fmt.Sprintf("uint%d", r.Width*8) }

func (r *IntReader) Read(f *Frame) (any, error) {
	v, err := stream.ReadUint(f.Stream, r.Width)
	if err != nil {
		return nil, err
	}
	switch r.Width {
	case 1:
		return uint8(v), nil
	case 2:
		return uint16(v), nil
	case 4:
		return uint32(v), nil
	}
	return v, nil
}

func (r *IntReader) Size(int64) (int64, bool) { return int64(r.Width), true }

// BytesReader reads count raw bytes as an opaque []byte.
type BytesReader struct{}

func (BytesReader) TypeName() string { return "bytes" }

func (BytesReader) UsesCount() bool { return true }

func (BytesReader) Read(f *Frame) (any, error) {
	n, err := f.requireCount("bytes")
	if err != nil {
		return nil, err
	}
	b, err := stream.ReadFull(f.Stream, n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (BytesReader) Size(count int64) (int64, bool) { return count, count >= 0 }

// SkipReader advances the stream by count bytes and yields no value.
type SkipReader struct{}

func (SkipReader) TypeName() string { return "skip" }

func (SkipReader) UsesCount() bool { return true }

func (SkipReader) Read(f *Frame) (any, error) {
	n, err := f.requireCount("skip")
	if err != nil {
		return nil, err
	}
	f.Stream.Seek(int64(n), io.SeekCurrent)
	return nil, nil
}

func (SkipReader) Size(count int64) (int64, bool) { return count, count >= 0 }

// BufferReader copies count bytes into an in-memory stream.
type BufferReader struct{}

func (BufferReader) TypeName() string { return "buffer" }

func (BufferReader) UsesCount() bool { return true }

func (BufferReader) Read(f *Frame) (any, error) {
	n, err := f.requireCount("buffer")
	if err != nil {
		return nil, err
	}
	b, err := stream.ReadFull(f.Stream, n)
	if err != nil {
		return nil, err
	}
	return stream.NewFixed(append([]byte(nil), b...)), nil
}

func (BufferReader) Size(count int64) (int64, bool) { return count, count >= 0 }

// ArrayReader reads count elements with Elem.
type ArrayReader struct {
	Elem Reader
}

func (r *ArrayReader) TypeName() string { return "array" }

func (r *ArrayReader) UsesCount() bool { return true }

func (r *ArrayReader) Read(f *Frame) (any, error) {
	n, err := f.requireCount("array")
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.Elem.Read(f.child(-1))
		if err != nil {
			return nil, errors.At(err, "", fmt.Sprintf("[%d]", i))
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *ArrayReader) Size(count int64) (int64, bool) {
	if count < 0 {
		return 0, false
	}
	s, ok := r.Elem.(Sizer)
	if !ok {
		return 0, false
	}
	n, ok := s.Size(-1)
	return n * count, ok
}

// FunctionReader evaluates an expression over the sibling fields without
// consuming input. Every field the expression names must already be decoded.
type FunctionReader struct {
	expr *expression
	name string
}

func (r *FunctionReader) TypeName() string { return r.name }

func (r *FunctionReader) Read(f *Frame) (any, error) {
	env := f.Env()
	if err := r.expr.require(env); err != nil {
		return nil, err
	}
	return r.expr.eval(env)
}

func (r *FunctionReader) Size(int64) (int64, bool) { return 0, true }

// RecordRef decodes a nested record. It holds a handle into the schema's
// type arena so records may reference each other before they are declared.
type RecordRef struct {
	schema *Schema
	id     TypeID
}

func (r *RecordRef) Type() *RecordType { return r.schema.types[r.id] }

func (r *RecordRef) TypeName() string { return r.Type().Name }

func (r *RecordRef) Read(f *Frame) (any, error) {
	return r.Type().decode(f.session, f.Stream)
}

func (r *RecordRef) Size(int64) (int64, bool) { return r.Type().Size() }
