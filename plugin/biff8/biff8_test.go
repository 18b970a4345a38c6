package biff8

import (
	"testing"

	"github.com/wippyai/bindecode/schema"
	"github.com/wippyai/bindecode/stream"
)

// bof(2 byte body), number(3), eof(0)
var workbook = []byte{
	0x09, 0x08, 0x02, 0x00, 0x00, 0x06,
	0x03, 0x02, 0x03, 0x00, 0x01, 0x02, 0x03,
	0x0A, 0x00, 0x00, 0x00,
}

func load(t *testing.T, decls ...schema.RecordDecl) *schema.Schema {
	t.Helper()
	s := schema.New()
	m, _ := s.Module("xl", "xl.yaml")
	if err := Plugin(m); err != nil {
		t.Fatal(err)
	}
	for _, d := range decls {
		if err := m.Declare(d); err != nil {
			t.Fatal(err)
		}
	}
	m.SetRoot(decls[0].Name)
	if err := s.Resolve(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMeasure(t *testing.T) {
	src := stream.NewFixed(workbook)
	src.Seek(6, 0)
	n, err := Reader{}.Measure(src)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("Measure() = %d, want 7", n)
	}
}

func TestSerialRecords(t *testing.T) {
	s := load(t, schema.RecordDecl{
		Name: "Workbook",
		Fields: []schema.FieldDecl{
			{Name: "records", Type: "serial", Of: "biff8"},
		},
	})
	v, err := s.Decode(stream.NewFixed(workbook))
	if err != nil {
		t.Fatal(err)
	}
	view, _ := v.(*schema.Record).Get("records")
	seq, err := view.(*schema.View).Sequence()
	if err != nil {
		t.Fatal(err)
	}
	n, err := seq.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("Len() = %d, want 3", n)
	}
	seq.Seek(1, 0)
	items, err := seq.Read(1)
	if err != nil {
		t.Fatal(err)
	}
	rec := items[0].(*Record)
	if rec.Kind != KindNumber || rec.Size != 3 || len(rec.Raw) != 3 {
		t.Errorf("record 1 = %v", rec)
	}
	if got := rec.String(); got != "BIFF8 0203 of size 0003" {
		t.Errorf("String() = %q", got)
	}
}

func TestKindsMapping(t *testing.T) {
	head := schema.RecordDecl{
		Name:   "Rec",
		Fields: []schema.FieldDecl{{Name: "kind", Type: "uint16"}},
		Selection: &schema.SelectionDecl{
			Selector:    "kind",
			MappingName: "kinds",
		},
	}
	bof := schema.RecordDecl{
		Name: "Bof",
		Fields: []schema.FieldDecl{
			{Name: "kind", Type: "uint16"},
			{Name: "size", Type: "uint16"},
			{Name: "version", Type: "uint16"},
			{Name: "name", Set: true, Value: "kindname(kind)"},
		},
	}
	eof := schema.RecordDecl{
		Name:   "Eof",
		Fields: []schema.FieldDecl{{Name: "kind", Type: "uint16"}, {Name: "size", Type: "uint16"}},
	}
	s := load(t, head, bof, eof)

	v, err := s.Decode(stream.NewFixed(workbook))
	if err != nil {
		t.Fatal(err)
	}
	rec := v.(*schema.Record)
	if rec.Type != "xl.Bof" {
		t.Fatalf("got %s, want xl.Bof", rec.Type)
	}
	if ver, _ := rec.Get("version"); ver != uint16(0x0600) {
		t.Errorf("version = %v", ver)
	}
	if name, _ := rec.Get("name"); name != "BOF" {
		t.Errorf("name = %v, want BOF", name)
	}

	if _, err := s.Decode(stream.NewFixed(workbook[6:])); err == nil {
		t.Error("NUMBER is not in the kinds mapping and should fail")
	}
}

func TestKindName(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{uint16(KindSST), "SST"},
		{0x1234, "1234"},
	}
	for _, tt := range tests {
		got, err := kindName(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("kindName(%v) = %v, %v; want %s", tt.in, got, err, tt.want)
		}
	}
	if _, err := kindName("x"); err == nil {
		t.Error("expected error for non-integer")
	}
}
