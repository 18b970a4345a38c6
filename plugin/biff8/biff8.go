// Package biff8 contributes the BIFF8 record reader used by Excel
// workbook streams.
//
// A BIFF8 record is a little-endian 16-bit kind, a 16-bit body size and
// the body. The reader measures records from their header alone, so serial
// streams of records seek without decoding bodies.
package biff8

import (
	"fmt"
	"io"

	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/schema"
	"github.com/wippyai/bindecode/stream"
)

// Well-known record kinds.
const (
	KindBOF        = 0x0809
	KindEOF        = 0x000A
	KindContinue   = 0x003C
	KindFont       = 0x0031
	KindBoundSheet = 0x0085
	KindXF         = 0x00E0
	KindSST        = 0x00FC
	KindLabelSST   = 0x00FD
	KindNumber     = 0x0203
)

var kindNames = map[int64]string{
	KindBOF:        "BOF",
	KindEOF:        "EOF",
	KindContinue:   "CONTINUE",
	KindFont:       "FONT",
	KindBoundSheet: "BOUNDSHEET",
	KindXF:         "XF",
	KindSST:        "SST",
	KindLabelSST:   "LABELSST",
	KindNumber:     "NUMBER",
}

// Record is one decoded BIFF8 record.
type Record struct {
	Raw  []byte
	Kind uint16
	Size uint16
}

func (r *Record) String() string {
	return fmt.Sprintf("BIFF8 %04X of size %04X", r.Kind, r.Size)
}

// Reader decodes BIFF8 records.
type Reader struct{}

func (Reader) TypeName() string { return "biff8" }

func (Reader) Read(f *schema.Frame) (any, error) {
	kind, err := stream.ReadUint(f.Stream, 2)
	if err != nil {
		return nil, err
	}
	size, err := stream.ReadUint(f.Stream, 2)
	if err != nil {
		return nil, err
	}
	raw, err := stream.ReadFull(f.Stream, int(size))
	if err != nil {
		return nil, err
	}
	return &Record{Kind: uint16(kind), Size: uint16(size), Raw: append([]byte(nil), raw...)}, nil
}

// Measure returns the encoded size of the record under the cursor from its
// header.
func (Reader) Measure(s stream.Stream) (int64, error) {
	s.Seek(2, io.SeekCurrent)
	size, err := stream.ReadUint(s, 2)
	if err != nil {
		return 0, err
	}
	return 4 + int64(size), nil
}

// Plugin registers the biff8 reader, the kinds type mapping (BOF to Bof,
// EOF to Eof, resolved in the activating module) and the kindname function.
func Plugin(m *schema.Module) error {
	err := m.RegisterTypes(map[string]schema.Factory{
		"biff8": func(*schema.FactoryContext) (schema.Reader, error) { return Reader{}, nil },
	})
	if err != nil {
		return err
	}
	err = m.RegisterTypeMapping("kinds", map[any]string{
		KindBOF: "Bof",
		KindEOF: "Eof",
	})
	if err != nil {
		return err
	}
	return m.RegisterFunctions(map[string]eval.Function{
		"kindname": kindName,
	})
}

func kindName(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("kindname takes 1 argument")
	}
	n, ok := eval.ToInt(args[0])
	if !ok {
		return nil, fmt.Errorf("kindname: expected integer, got %T", args[0])
	}
	if name, ok := kindNames[n]; ok {
		return name, nil
	}
	return fmt.Sprintf("%04X", n), nil
}
