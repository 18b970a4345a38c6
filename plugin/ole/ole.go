// Package ole contributes sector chain streams for OLE compound files.
//
// A compound file is split into fixed-size sectors after a one-sector
// header. The file allocation table (FAT) maps each sector to the next
// sector of its stream; a chain ends at EndOfChain. The sectorchain reader
// follows a chain from its start sector and exposes the sectors as one
// contiguous stream.
package ole

import (
	"fmt"
	"io"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/schema"
	"github.com/wippyai/bindecode/stream"
)

// Special FAT entries.
const (
	DifSect    = 0xFFFFFFFC
	FatSect    = 0xFFFFFFFD
	EndOfChain = 0xFFFFFFFE
	FreeSect   = 0xFFFFFFFF
)

// DefaultSectorSize is the sector size of version 3 compound files.
const DefaultSectorSize = 512

var chainParams = map[string]bool{"fat": true, "start": true, "sectorsize": true, "size": true}

// Chain is a sector chain stream. It is built once fat and start are bound.
type Chain struct {
	src     stream.Stream
	built   stream.Stream
	params  map[string]any
	await   map[string]bool
	sectors []uint32
}

// SetParam implements schema.Instance.
func (c *Chain) SetParam(name string, v any) error {
	if !chainParams[name] {
		return errors.NotFound(errors.PhaseBind, "sectorchain parameter", name)
	}
	c.params[name] = v
	return nil
}

// Pending reports whether fat, start or a declared parameter is unbound.
func (c *Chain) Pending() bool {
	for _, name := range []string{"fat", "start"} {
		if _, ok := c.params[name]; !ok {
			return true
		}
	}
	for name := range c.await {
		if _, ok := c.params[name]; !ok {
			return true
		}
	}
	return false
}

// Reset implements schema.Instance by following the chain again.
func (c *Chain) Reset() error {
	c.built, c.sectors = nil, nil
	if c.Pending() {
		return nil
	}
	return c.build()
}

// Built implements schema.Lazy.
func (c *Chain) Built() (any, error) {
	return c.Stream()
}

// Stream returns the chain's contents.
func (c *Chain) Stream() (stream.Stream, error) {
	if c.built == nil {
		return nil, errors.New(errors.PhaseStream, errors.KindBinding).
			Detail("sectorchain is missing parameters").
			Build()
	}
	return c.built, nil
}

// Sectors returns the sector numbers of the chain in order.
func (c *Chain) Sectors() []uint32 { return c.sectors }

func (c *Chain) build() error {
	fat, err := entries(c.params["fat"])
	if err != nil {
		return err
	}
	start, ok := eval.ToInt(c.params["start"])
	if !ok {
		return errors.TypeMismatch(errors.PhaseBind, "integer start", c.params["start"])
	}
	size := int64(DefaultSectorSize)
	if v, ok := c.params["sectorsize"]; ok {
		if size, ok = eval.ToInt(v); !ok || size <= 0 {
			return errors.TypeMismatch(errors.PhaseBind, "positive sectorsize", v)
		}
	}

	sectors, err := follow(fat, start)
	if err != nil {
		return err
	}
	parts := make([]stream.Stream, len(sectors))
	for i, sec := range sectors {
		parts[i] = stream.NewSub(c.src, SectorOffset(int64(sec), size), size)
	}
	var s stream.Stream = stream.NewCombined(parts...)
	if v, ok := c.params["size"]; ok {
		n, ok := eval.ToInt(v)
		if !ok {
			return errors.TypeMismatch(errors.PhaseBind, "integer size", v)
		}
		s = stream.NewSub(s, 0, n)
	}
	c.built, c.sectors = s, sectors
	return nil
}

// follow walks the FAT from start to EndOfChain.
func follow(fat []int64, start int64) ([]uint32, error) {
	var chain []uint32
	seen := make(map[int64]bool)
	for sec := start; sec != EndOfChain; sec = fat[sec] {
		switch {
		case sec == FreeSect:
			return nil, errors.BrokenChain("free sector after %d sectors of chain starting at %d", len(chain), start)
		case sec < 0 || sec >= int64(len(fat)):
			return nil, errors.BrokenChain("sector 0x%X outside the FAT of %d entries", sec, len(fat))
		case seen[sec]:
			return nil, errors.BrokenChain("sector %d repeats in chain starting at %d", sec, start)
		}
		seen[sec] = true
		chain = append(chain, uint32(sec))
	}
	return chain, nil
}

// entries reads FAT entries from a list or a sequence of integers.
func entries(v any) ([]int64, error) {
	if lazy, ok := v.(schema.Lazy); ok {
		built, err := lazy.Built()
		if err != nil {
			return nil, err
		}
		v = built
	}
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case stream.Sequence:
		n, err := x.Len()
		if err != nil {
			return nil, err
		}
		x.Seek(0, io.SeekStart)
		if items, err = x.Read(int(n)); err != nil {
			return nil, err
		}
	case stream.Stream:
		x.Seek(0, io.SeekStart)
		for x.Pos() < x.Len() {
			e, err := stream.ReadUint(x, 4)
			if err != nil {
				return nil, err
			}
			items = append(items, e)
		}
	default:
		return nil, errors.TypeMismatch(errors.PhaseBind, "FAT entries", v)
	}
	fat := make([]int64, len(items))
	for i, item := range items {
		n, ok := eval.ToInt(item)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseBind, fmt.Sprintf("integer FAT entry %d", i), item)
		}
		fat[i] = n
	}
	return fat, nil
}

// SectorOffset returns the file offset of a sector; sector 0 follows the
// header sector.
func SectorOffset(sector, size int64) int64 {
	return (sector + 1) * size
}

type chainReader struct {
	await []string
}

func (r *chainReader) TypeName() string { return "sectorchain" }

func (r *chainReader) Read(f *schema.Frame) (any, error) {
	c := &Chain{
		src:    f.Session().Source(),
		params: make(map[string]any),
		await:  make(map[string]bool, len(r.await)),
	}
	for _, name := range r.await {
		c.await[name] = true
	}
	return c, nil
}

// Plugin registers the sectorchain reader and the sectoroffset function.
func Plugin(m *schema.Module) error {
	err := m.RegisterTypes(map[string]schema.Factory{
		"sectorchain": func(fc *schema.FactoryContext) (schema.Reader, error) {
			r := &chainReader{}
			for _, p := range fc.Decl.Params {
				if !chainParams[p.Name] {
					return nil, errors.InvalidSchema(fc.Record, fmt.Sprintf("sectorchain has no parameter %q", p.Name))
				}
				r.await = append(r.await, p.Name)
			}
			return r, nil
		},
	})
	if err != nil {
		return err
	}
	return m.RegisterFunctions(map[string]eval.Function{
		"sectoroffset": func(args ...any) (any, error) {
			if len(args) < 1 || len(args) > 2 {
				return nil, fmt.Errorf("sectoroffset takes 1 or 2 arguments")
			}
			sec, ok := eval.ToInt(args[0])
			size := int64(DefaultSectorSize)
			if len(args) == 2 {
				size, _ = eval.ToInt(args[1])
			}
			if !ok || size <= 0 {
				return nil, fmt.Errorf("sectoroffset: bad arguments %v", args)
			}
			return SectorOffset(sec, size), nil
		},
	})
}
