// Package format renders decoded values for display.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/schema"
	"github.com/wippyai/bindecode/stream"
)

// Formatter renders a decoded value given the type name its reader reports.
type Formatter interface {
	Format(typeName string, v any) string
}

// Func renders one value.
type Func func(v any) string

// Table is a Formatter dispatching on type name. Values without a
// registered function render by Go type: unsigned integers as zero-padded
// hex, records and lists recursively, streams by length.
type Table struct {
	funcs  map[string]Func
	Indent string
}

// NewTable creates a Table with no registered functions.
func NewTable() *Table {
	return &Table{funcs: make(map[string]Func), Indent: "  "}
}

// Register sets the function for a type name.
func (t *Table) Register(typeName string, f Func) *Table {
	t.funcs[typeName] = f
	return t
}

// Format implements Formatter.
func (t *Table) Format(typeName string, v any) string {
	var b strings.Builder
	t.write(&b, typeName, v, 0)
	return b.String()
}

// Fprint writes the rendering of v followed by a newline.
func (t *Table) Fprint(w io.Writer, typeName string, v any) error {
	_, err := fmt.Fprintln(w, t.Format(typeName, v))
	return err
}

func (t *Table) write(b *strings.Builder, typeName string, v any, depth int) {
	if f, ok := t.funcs[typeName]; ok && typeName != "" {
		b.WriteString(f(v))
		return
	}
	switch x := v.(type) {
	case *schema.Record:
		t.record(b, x, depth)
	case []any:
		t.list(b, x, depth)
	case *eval.Collector:
		t.list(b, x.Items, depth)
	case []byte:
		fmt.Fprintf(b, "[% X]", x)
	case uint8:
		fmt.Fprintf(b, "0x%02X", x)
	case uint16:
		fmt.Fprintf(b, "0x%04X", x)
	case uint32:
		fmt.Fprintf(b, "0x%08X", x)
	case uint64:
		fmt.Fprintf(b, "0x%016X", x)
	case *schema.View:
		t.view(b, x)
	case stream.Stream:
		fmt.Fprintf(b, "<stream %d bytes>", x.Len())
	case stream.Sequence:
		t.sequence(b, x)
	case nil:
		b.WriteString("<nil>")
	default:
		fmt.Fprintf(b, "%v", x)
	}
}

func (t *Table) record(b *strings.Builder, r *schema.Record, depth int) {
	b.WriteString(r.Type)
	b.WriteString(" {\n")
	pad := strings.Repeat(t.Indent, depth+1)
	for _, name := range r.Names() {
		v, _ := r.Get(name)
		b.WriteString(pad)
		b.WriteString(name)
		b.WriteString(": ")
		t.write(b, r.TypeOf(name), v, depth+1)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat(t.Indent, depth))
	b.WriteByte('}')
}

func (t *Table) list(b *strings.Builder, items []any, depth int) {
	if len(items) == 0 {
		b.WriteString("[]")
		return
	}
	b.WriteString("[\n")
	pad := strings.Repeat(t.Indent, depth+1)
	for i, item := range items {
		fmt.Fprintf(b, "%s%d: ", pad, i)
		t.write(b, typeOf(item), item, depth+1)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat(t.Indent, depth))
	b.WriteByte(']')
}

func (t *Table) view(b *strings.Builder, v *schema.View) {
	if v.Pending() {
		fmt.Fprintf(b, "<%s pending>", v.Kind())
		return
	}
	built, err := v.Built()
	if err != nil {
		fmt.Fprintf(b, "<%s error: %v>", v.Kind(), err)
		return
	}
	switch x := built.(type) {
	case stream.Stream:
		fmt.Fprintf(b, "<%s %d bytes>", v.Kind(), x.Len())
	case stream.Sequence:
		t.sequence(b, x)
	}
}

func (t *Table) sequence(b *strings.Builder, s stream.Sequence) {
	n, err := s.Len()
	if err != nil {
		fmt.Fprintf(b, "<sequence error: %v>", err)
		return
	}
	fmt.Fprintf(b, "<sequence %d items>", n)
}

func typeOf(v any) string {
	if r, ok := v.(*schema.Record); ok {
		return r.Type
	}
	return ""
}
