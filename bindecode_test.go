package bindecode

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/wippyai/bindecode/document"
	"github.com/wippyai/bindecode/schema"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBundledPlugins(t *testing.T) {
	names := document.Plugins()
	for _, want := range []string{"biff8", "ole"} {
		if !slices.Contains(names, want) {
			t.Errorf("plugin %q not registered, have %v", want, names)
		}
	}
}

func TestLoadAndDecodeFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib/pair.yaml", `
records:
  Pair:
    - field: a
      type: uint8
    - field: b
      type: uint8
`)
	entry := writeFile(t, dir, "main.yaml", `
import: [lib/pair.yaml]
records:
  Main:
    - field: n
      type: uint8
    - field: pairs
      type: Pair
      count: n
`)
	input := writeFile(t, dir, "input.bin", "\x02\x01\x02\x03\x04")

	s, err := LoadFile(entry)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	v, err := DecodeFile(s, input)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	rec := v.(*schema.Record)
	got, err := rec.Lookup("pairs[1].b")
	if err != nil {
		t.Fatal(err)
	}
	if got != uint8(4) {
		t.Errorf("pairs[1].b = %v, want 4", got)
	}
}

func TestDecodeFileMissing(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "main.yaml", `
records:
  Main:
    - field: x
      type: uint8
`)
	s, err := LoadFile(entry)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeFile(s, filepath.Join(dir, "absent.bin")); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestDecodeBytesWithPlugin(t *testing.T) {
	dir := t.TempDir()
	entry := writeFile(t, dir, "book.yaml", `
plugins: [biff8]
records:
  Book:
    - field: first
      type: biff8
    - set: name
      value: kindname(first.Kind)
`)
	s, err := LoadFile(entry)
	if err != nil {
		t.Fatal(err)
	}
	v, err := DecodeBytes(s, []byte{0x09, 0x08, 0x02, 0x00, 0xAA, 0xBB})
	if err != nil {
		t.Fatal(err)
	}
	name, _ := v.(*schema.Record).Get("name")
	if name != "BOF" {
		t.Errorf("name = %v, want BOF", name)
	}
}
