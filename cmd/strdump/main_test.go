package main

import (
	"context"
	"testing"

	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/schema"
)

func sample() *schema.Record {
	inner := schema.NewRecord("Point", 1)
	inner.Set("x", "uint8", uint8(3))
	inner.Set("y", "uint8", uint8(4))
	root := schema.NewRecord("Shape", 0)
	root.Set("n", "uint8", uint8(2))
	root.Set("p", "Point", inner)
	return root
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name    string
		q       string
		want    any
		wantErr bool
	}{
		{"field", "n", uint8(2), false},
		{"path", "p.y", uint8(4), false},
		{"expression", "p.x + p.y", int64(7), false},
		{"bad expression", "p.x +", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := query(sample(), tt.q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("query(%q) error = %v, wantErr %v", tt.q, err, tt.wantErr)
			}
			if n, ok := eval.ToInt(got); ok && !tt.wantErr {
				if _, isInt := tt.want.(int64); isInt {
					got = n
				}
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("query(%q) = %v (%T), want %v", tt.q, got, got, tt.want)
			}
		})
	}
}

func TestQueryRecordKeepsShape(t *testing.T) {
	got, err := query(sample(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if rec, ok := got.(*schema.Record); !ok || rec.Type != "Point" {
		t.Errorf("got %T, want *schema.Record Point", got)
	}
}

func TestRegisterWasmInvalid(t *testing.T) {
	for _, spec := range []string{"noequals", "=x.wasm", "name=", "f=/nonexistent/x.wasm"} {
		if _, err := registerWasm(context.Background(), spec); err == nil {
			t.Errorf("registerWasm(%q) succeeded", spec)
		}
	}
}
