package document

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	bderrors "github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/schema"
	"github.com/wippyai/bindecode/stream"
)

const selectorDoc = `
records:
  Header:
    - field: tag
      type: uint32
    - selection:
        selector: tag
        mapping:
          1: TypeA
          2: TypeB
  TypeA:
    - field: tag
      type: skip
      count: 4
    - field: a
      type: uint16
  TypeB:
    - field: tag
      type: skip
      count: 4
    - field: b
      type: uint8
    - field: b2
      type: uint8
`

func load(t *testing.T, files fstest.MapFS, entry string) *schema.Schema {
	t.Helper()
	s, err := NewLoader(files).Load(entry)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func TestParseKeepsRecordOrder(t *testing.T) {
	doc, err := Parse([]byte(selectorDoc))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range doc.Records {
		names = append(names, r.Name)
	}
	if got := strings.Join(names, ","); got != "Header,TypeA,TypeB" {
		t.Errorf("got %s, want Header,TypeA,TypeB", got)
	}

	d, err := doc.Records[0].Decl()
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Fields) != 1 || d.Selection == nil {
		t.Fatalf("Header decl = %+v", d)
	}
	if d.Selection.Mapping[1] != "TypeA" {
		t.Errorf("mapping = %v", d.Selection.Mapping)
	}
}

func TestItemKinds(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{"field", Item{Field: "x", Type: "uint8"}, false},
		{"set", Item{Set: "x", Value: "1"}, false},
		{"call", Item{Transform: "out", For: "xs", Do: "append"}, false},
		{"empty", Item{}, true},
		{"mixed", Item{Field: "x", Set: "y"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Record{Name: "R", Items: []Item{tt.item}}.Decl()
			if (err != nil) != tt.wantErr {
				t.Errorf("Decl() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSelector(t *testing.T) {
	s := load(t, fstest.MapFS{"main.yaml": {Data: []byte(selectorDoc)}}, "main.yaml")

	v, err := s.Decode(stream.NewFixed([]byte{1, 0, 0, 0, 0x2A, 0}))
	if err != nil {
		t.Fatal(err)
	}
	rec := v.(*schema.Record)
	if a, _ := rec.Get("a"); rec.Type != "TypeA" || a != uint16(0x2A) {
		t.Errorf("got %v", rec)
	}

	_, err = s.Decode(stream.NewFixed([]byte{3, 0, 0, 0, 0, 0}))
	var e *bderrors.Error
	if !errors.As(err, &e) || e.Kind != bderrors.KindUnmappedDiscriminant {
		t.Errorf("got %v, want unmapped discriminant", err)
	}
}

func TestLoadImports(t *testing.T) {
	files := fstest.MapFS{
		"main.yaml": {Data: []byte(`
namespace: app
import: [lib/point.yaml, lib/line.yaml]
root: Shape
target: line.to
records:
  Shape:
    - field: line
      type: Line
`)},
		"lib/point.yaml": {Data: []byte(`
namespace: geo
records:
  Point:
    - field: x
      type: uint8
    - field: y
      type: uint8
`)},
		"lib/line.yaml": {Data: []byte(`
namespace: geo
import: [point.yaml]
records:
  Line:
    - field: from
      type: Point
    - field: to
      type: Point
`)},
	}
	s := load(t, files, "main.yaml")
	if n := len(s.Modules()); n != 3 {
		t.Errorf("got %d modules, want 3 (point.yaml imported twice)", n)
	}

	v, err := s.Decode(stream.NewFixed([]byte{1, 2, 3, 4}))
	if err != nil {
		t.Fatal(err)
	}
	to, ok := v.(*schema.Record)
	if !ok || to.Type != "geo.Point" {
		t.Fatalf("target = %v", v)
	}
	if x, _ := to.Get("x"); x != uint8(3) {
		t.Errorf("to.x = %v, want 3", x)
	}
}

func TestLoadImportCycle(t *testing.T) {
	files := fstest.MapFS{
		"a.yaml": {Data: []byte("import: [b.yaml]\nrecords:\n  A:\n    - field: b\n      type: B\n")},
		"b.yaml": {Data: []byte("import: [a.yaml]\nrecords:\n  B:\n    - field: v\n      type: uint8\n")},
	}
	s := load(t, files, "a.yaml")
	v, err := s.Decode(stream.NewFixed([]byte{7}))
	if err != nil {
		t.Fatal(err)
	}
	if v.(*schema.Record).Type != "A" {
		t.Errorf("root = %v", v)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		kind bderrors.Kind
	}{
		{"missing import", "import: [nope.yaml]\n", bderrors.KindIO},
		{"bad yaml", "records: [", bderrors.KindInvalidSchema},
		{"records not a map", "records: [a]\n", bderrors.KindInvalidSchema},
		{"unknown plugin", "plugins: [nope]\n", bderrors.KindNotFound},
		{"unresolved", "records:\n  R:\n    - field: x\n      type: Missing\n", bderrors.KindUnresolvedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(fstest.MapFS{"main.yaml": {Data: []byte(tt.file)}}).Load("main.yaml")
			var e *bderrors.Error
			if !errors.As(err, &e) || e.Kind != tt.kind {
				t.Errorf("got %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestPluginActivation(t *testing.T) {
	files := fstest.MapFS{"main.yaml": {Data: []byte(`
namespace: demo
plugins: [math]
records:
  R:
    - field: v
      type: uint8
    - set: sq
      value: square(v)
`)}}
	square := func(m *schema.Module) error {
		return m.RegisterFunctions(map[string]eval.Function{
			"square": func(args ...any) (any, error) {
				n, _ := eval.ToInt(args[0])
				return n * n, nil
			},
		})
	}
	s, err := NewLoader(files).Use("math", square).Load("main.yaml")
	if err != nil {
		t.Fatal(err)
	}
	v, err := s.Decode(stream.NewFixed([]byte{9}))
	if err != nil {
		t.Fatal(err)
	}
	if sq, _ := v.(*schema.Record).Get("sq"); sq != int64(81) {
		t.Errorf("sq = %v, want 81", sq)
	}
}

func TestRegisteredPlugin(t *testing.T) {
	RegisterPlugin("test-noop", func(*schema.Module) error { return nil })
	found := false
	for _, name := range Plugins() {
		found = found || name == "test-noop"
	}
	if !found {
		t.Fatal("registered plugin not listed")
	}
	files := fstest.MapFS{"main.yaml": {Data: []byte("plugins: [test-noop]\nrecords:\n  R:\n    - field: v\n      type: uint8\n")}}
	load(t, files, "main.yaml")
}

func TestLoadParseMachine(t *testing.T) {
	files := fstest.MapFS{"main.yaml": {Data: []byte(`
records:
  Strings:
    - field: data
      type: bytes
      count: 5
    - set: out
      value: collector()
    - parse: data
      with: out
      machine:
        - state: Item
          actions:
            - on: tok == nil
              action: stop
            - on: tok == 0
            - on: "true"
              push: {next: Chars, with: nest}
        - state: Chars
          default: {do: append, action: next}
          actions:
            - on: tok == nil || tok == 0
              action: pop
`)}}
	s := load(t, files, "main.yaml")
	v, err := s.Decode(stream.NewFixed([]byte{'a', 'b', 0, 'c', 0}))
	if err != nil {
		t.Fatal(err)
	}
	out, _ := v.(*schema.Record).Get("out")
	items := out.(*eval.Collector).Items
	if len(items) != 2 {
		t.Fatalf("got %d strings, want 2", len(items))
	}
	var got []string
	for _, item := range items {
		var b []byte
		for _, c := range item.(*eval.Collector).Items {
			b = append(b, c.(uint8))
		}
		got = append(got, string(b))
	}
	if strings.Join(got, ",") != "ab,c" {
		t.Errorf("got %q, want ab,c", got)
	}
}
