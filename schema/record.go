package schema

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/stream"
)

// TypeID indexes a record type in its schema's arena.
type TypeID uint32

// RecordType is a declared record: ordered fields, transforms applied once
// the fields are read, and an optional selector choosing a variant.
type RecordType struct {
	module     *Module
	Selector   *Selector
	Name       string
	Fields     []*Field
	Transforms []Transform
	size       int64
	ID         TypeID
	sized      sizeState
}

type sizeState uint8

const (
	sizeUnknown sizeState = iota
	sizeComputing
	sizeFixed
	sizeVariable
)

// Module returns the module that declared the type.
func (t *RecordType) Module() *Module { return t.module }

// Field returns the named field or nil.
func (t *RecordType) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Size returns the encoded size of the record when every field has a
// statically known size. Records with a selector are never fixed.
func (t *RecordType) Size() (int64, bool) {
	switch t.sized {
	case sizeFixed:
		return t.size, true
	case sizeVariable, sizeComputing:
		return 0, false
	}
	t.sized = sizeComputing
	var total int64
	for _, f := range t.Fields {
		n, ok := f.size()
		if !ok {
			t.sized = sizeVariable
			return 0, false
		}
		total += n
	}
	if t.Selector != nil {
		t.sized = sizeVariable
		return 0, false
	}
	t.size, t.sized = total, sizeFixed
	return total, true
}

func (t *RecordType) decode(sess *Session, s stream.Stream) (any, error) {
	start := s.Pos()
	rec := NewRecord(t.Name, start)
	fr := &Frame{Stream: s, Record: rec, session: sess}
	for _, f := range t.Fields {
		at := s.Pos()
		fr.Count = -1
		if err := f.decode(fr, rec); err != nil {
			return nil, errors.Locate(errors.At(err, t.Name, f.Name), at)
		}
	}
	for i, x := range t.Transforms {
		if err := x.apply(fr); err != nil {
			return nil, errors.At(err, t.Name, fmt.Sprintf("transforms[%d]", i))
		}
	}
	if t.Selector == nil {
		return rec, nil
	}
	return t.Selector.decode(t, fr, start)
}

// Selector dispatches to a variant type keyed by an expression over the
// fields read so far. The variant is decoded from the record start.
type Selector struct {
	expr    *expression
	mapping map[any]Reader
}

// Variant returns the reader mapped to key.
func (sel *Selector) Variant(key any) (Reader, bool) {
	r, ok := sel.mapping[eval.Key(key)]
	return r, ok
}

// Keys returns the number of mapped discriminants.
func (sel *Selector) Keys() int { return len(sel.mapping) }

func (sel *Selector) decode(t *RecordType, fr *Frame, start int64) (any, error) {
	key, err := sel.expr.eval(fr.Env())
	if err != nil {
		return nil, errors.Locate(errors.At(err, t.Name, "selector"), start)
	}
	variant, ok := sel.Variant(key)
	if !ok {
		return nil, errors.UnmappedDiscriminant(t.Name, eval.Key(key), start)
	}
	Logger().Debug("selector dispatch",
		zap.String("type", t.Name),
		zap.Any("discriminant", key),
		zap.Int64("offset", start))
	fr.Stream.Seek(start, io.SeekStart)
	return variant.Read(&Frame{Stream: fr.Stream, session: fr.session, Count: -1})
}

func (sel *Selector) add(key any, r Reader) {
	sel.mapping[eval.Key(key)] = r
}
