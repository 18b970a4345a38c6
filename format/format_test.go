package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/wippyai/bindecode/schema"
	"github.com/wippyai/bindecode/stream"
)

func TestScalars(t *testing.T) {
	tab := NewTable()
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"uint8", uint8(0x2A), "0x2A"},
		{"uint16", uint16(0x2A), "0x002A"},
		{"uint32", uint32(1), "0x00000001"},
		{"uint64", uint64(0xFF), "0x00000000000000FF"},
		{"bytes", []byte{1, 0xAB}, "[01 AB]"},
		{"int", int64(-3), "-3"},
		{"nil", nil, "<nil>"},
		{"empty list", []any{}, "[]"},
		{"stream", stream.NewFixed(make([]byte, 5)), "<stream 5 bytes>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tab.Format("", tt.v); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegisteredFunc(t *testing.T) {
	tab := NewTable().Register("ascii", func(v any) string { return string(v.([]byte)) })
	if got := tab.Format("ascii", []byte("hi")); got != "hi" {
		t.Errorf("got %q, want hi", got)
	}
	if got := tab.Format("other", []byte("hi")); got != "[68 69]" {
		t.Errorf("got %q, want [68 69]", got)
	}
}

func TestRecord(t *testing.T) {
	inner := schema.NewRecord("Inner", 0)
	inner.Set("x", "uint8", uint8(1))
	rec := schema.NewRecord("Outer", 0)
	rec.Set("inner", "Inner", inner)
	rec.Set("name", "ascii", []byte("ab"))
	rec.Set("xs", "array", []any{uint16(2)})

	tab := NewTable().Register("ascii", func(v any) string { return "'" + string(v.([]byte)) + "'" })
	var buf bytes.Buffer
	if err := tab.Fprint(&buf, "", rec); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"Outer {",
		"  inner: Inner {",
		"    x: 0x01",
		"  }",
		"  name: 'ab'",
		"  xs: [",
		"    0: 0x0002",
		"  ]",
		"}",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestHexdump(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		perLine int
		want    string
	}{
		{"partial", []byte{0, 1, 2, 3, 4, 5}, 4, "00000010  00 01 02 03\n00000014  04 05\n"},
		{"exact", []byte{0xAA, 0xBB}, 2, "00000010  AA BB\n"},
		{"grouped", []byte{1, 2, 3, 4, 5, 6, 7, 8}, 8, "00000010  01 02 03 04  05 06 07 08\n"},
		{"empty", nil, 16, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Hexdump(&buf, tt.data, 0x10, tt.perLine); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
