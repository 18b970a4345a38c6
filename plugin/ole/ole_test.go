package ole

import (
	"bytes"
	"errors"
	"testing"

	bderrors "github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/schema"
	"github.com/wippyai/bindecode/stream"
)

// compound builds a file with 16-byte sectors: a header holding the start
// sector and a three-entry FAT, then sectors filled with 'A', 'B' and 'C'.
func compound() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x02, 0, 0, 0})
	b.Write([]byte{0xFE, 0xFF, 0xFF, 0xFF}) // 0 -> end
	b.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // 1 free
	b.Write([]byte{0x00, 0, 0, 0})          // 2 -> 0
	for _, c := range []byte("ABC") {
		b.Write(bytes.Repeat([]byte{c}, 16))
	}
	return b.Bytes()
}

func load(t *testing.T, params []schema.ParamDecl, extra ...schema.FieldDecl) *schema.Schema {
	t.Helper()
	s := schema.New()
	m, _ := s.Module("ole", "ole.yaml")
	if err := Plugin(m); err != nil {
		t.Fatal(err)
	}
	fields := []schema.FieldDecl{
		{Name: "start", Type: "uint32"},
		{Name: "fat", Type: "uint32", Count: 3},
		{Name: "data", Type: "sectorchain", Params: params},
	}
	if err := m.Declare(schema.RecordDecl{Name: "File", Fields: append(fields, extra...)}); err != nil {
		t.Fatal(err)
	}
	m.SetRoot("File")
	if err := s.Resolve(); err != nil {
		t.Fatal(err)
	}
	return s
}

func chainOf(t *testing.T, s *schema.Schema, input []byte) *Chain {
	t.Helper()
	v, err := s.Decode(stream.NewFixed(input))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := v.(*schema.Record).Get("data")
	return c.(*Chain)
}

func TestSectorChain(t *testing.T) {
	s := load(t, []schema.ParamDecl{
		{Name: "fat", Reference: "fat"},
		{Name: "start", Reference: "start"},
		{Name: "sectorsize", Reference: "16"},
	})
	c := chainOf(t, s, compound())
	if got := c.Sectors(); len(got) != 2 || got[0] != 2 || got[1] != 0 {
		t.Errorf("Sectors() = %v, want [2 0]", got)
	}
	data, err := c.Stream()
	if err != nil {
		t.Fatal(err)
	}
	want := append(bytes.Repeat([]byte("C"), 16), bytes.Repeat([]byte("A"), 16)...)
	if got := data.Read(64); !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSectorChainGlobalSize(t *testing.T) {
	s := load(t, []schema.ParamDecl{
		{Name: "fat", Reference: "fat"},
		{Name: "start", Reference: "start"},
		{Name: "sectorsize", Reference: "16"},
		{Name: "size", Reference: "length", Global: true},
	}, schema.FieldDecl{Name: "length", Set: true, Value: "20"})

	data, err := chainOf(t, s, compound()).Stream()
	if err != nil {
		t.Fatal(err)
	}
	if data.Len() != 20 {
		t.Errorf("Len() = %d, want 20", data.Len())
	}
}

func TestSectorChainPending(t *testing.T) {
	s := load(t, []schema.ParamDecl{{Name: "sectorsize", Reference: "16"}})
	c := chainOf(t, s, compound())
	if !c.Pending() {
		t.Error("chain without fat and start should be pending")
	}
	if _, err := c.Stream(); err == nil {
		t.Error("expected error from pending chain")
	}
}

func TestFollow(t *testing.T) {
	tests := []struct {
		name    string
		fat     []int64
		start   int64
		want    int
		wantErr bool
	}{
		{"single", []int64{EndOfChain}, 0, 1, false},
		{"empty", []int64{}, EndOfChain, 0, false},
		{"cycle", []int64{1, 0}, 0, 0, true},
		{"out of range", []int64{7}, 0, 0, true},
		{"free sector", []int64{FreeSect}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := follow(tt.fat, tt.start)
			if tt.wantErr {
				var e *bderrors.Error
				if !errors.As(err, &e) || e.Kind != bderrors.KindBrokenChain {
					t.Fatalf("got %v, want broken chain", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(chain) != tt.want {
				t.Errorf("got %d sectors, want %d", len(chain), tt.want)
			}
		})
	}
}

func TestEntriesFromStream(t *testing.T) {
	fat, err := entries(stream.NewFixed([]byte{1, 0, 0, 0, 0xFE, 0xFF, 0xFF, 0xFF}))
	if err != nil {
		t.Fatal(err)
	}
	if len(fat) != 2 || fat[0] != 1 || fat[1] != EndOfChain {
		t.Errorf("got %v", fat)
	}
}

func TestSectorOffset(t *testing.T) {
	if got := SectorOffset(0, 512); got != 512 {
		t.Errorf("SectorOffset(0) = %d, want 512", got)
	}
}
