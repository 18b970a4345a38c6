package main

import (
	"bytes"
	"testing"

	"github.com/wippyai/bindecode/stream"
)

func TestOffset(t *testing.T) {
	tests := []struct {
		src     string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"0x200", 0x200, false},
		{"0x200 + 4*16", 0x240, false},
		{"-1", 0, true},
		{"\"abc\"", 0, true},
	}
	for _, tt := range tests {
		got, err := offset(tt.src)
		if (err != nil) != tt.wantErr {
			t.Errorf("offset(%q) error = %v, wantErr %v", tt.src, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("offset(%q) = %d, want %d", tt.src, got, tt.want)
		}
	}
}

func TestDump(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	var buf bytes.Buffer
	if err := dump(&buf, stream.NewFixed(data), 4, 256, 4); err != nil {
		t.Fatal(err)
	}
	want := "00000004  04 05 06 07\n00000008  08 09\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
