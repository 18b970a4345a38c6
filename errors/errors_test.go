package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:     PhaseDecode,
				Kind:      KindUnmappedDiscriminant,
				Path:      []string{"body", "entry"},
				Type:      "Header",
				Offset:    0x40,
				HasOffset: true,
				Detail:    "no variant",
			},
			contains: []string{"[decode]", "unmapped_discriminant", "body.entry", "in Header", "@0x40", "no variant"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLoad,
				Kind:  KindInvalidSchema,
			},
			contains: []string{"[load]", "invalid_schema"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseBind,
				Kind:   KindBinding,
				Detail: "bind size",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[bind]", "binding", "bind size", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_NoOffset(t *testing.T) {
	err := &Error{Phase: PhaseDecode, Kind: KindIO}
	if strings.Contains(err.Error(), "@0x") {
		t.Errorf("offset rendered without HasOffset: %q", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseDecode,
		Kind:  KindIO,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDecode,
		Kind:  KindStall,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseDecode, Kind: KindStall}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseParse, Kind: KindStall}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindBinding}) {
		t.Error("Is should not match different kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDecode, KindUnmappedDiscriminant).
		Path("header", "tag").
		Type("Header").
		Offset(16).
		Value(3).
		Cause(cause).
		Detail("selector %d missing", 3).
		Build()

	if err.Phase != PhaseDecode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDecode)
	}
	if len(err.Path) != 2 || err.Path[0] != "header" || err.Path[1] != "tag" {
		t.Errorf("Path = %v, want [header tag]", err.Path)
	}
	if err.Type != "Header" {
		t.Errorf("Type = %v, want Header", err.Type)
	}
	if !err.HasOffset || err.Offset != 16 {
		t.Errorf("Offset = %v (set %v), want 16", err.Offset, err.HasOffset)
	}
	if err.Value != 3 {
		t.Errorf("Value = %v, want 3", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "selector 3 missing" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestAt(t *testing.T) {
	inner := UnmappedDiscriminant("Variant", 3, 4)
	inner.Type = ""

	var err error = inner
	err = At(err, "Inner", "tag")
	err = At(err, "Outer", "body")

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("At returned %T", err)
	}
	if e.Type != "Inner" {
		t.Errorf("Type = %q, want Inner", e.Type)
	}
	if got := strings.Join(e.Path, "."); got != "body.tag" {
		t.Errorf("Path = %q, want body.tag", got)
	}

	plain := At(errors.New("short read"), "Rec", "f")
	if !errors.As(plain, &e) || e.Kind != KindIO || e.Type != "Rec" {
		t.Errorf("plain error not wrapped: %v", plain)
	}

	if At(nil, "Rec", "f") != nil {
		t.Error("At(nil) should be nil")
	}
}

func TestLocate(t *testing.T) {
	err := Locate(NotFound(PhaseDecode, "field", "x"), 0x20)
	var e *Error
	if !errors.As(err, &e) || !e.HasOffset || e.Offset != 0x20 {
		t.Fatalf("offset not recorded: %v", err)
	}
	Locate(err, 0x40)
	if e.Offset != 0x20 {
		t.Errorf("Offset = 0x%X, want deepest 0x20", e.Offset)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("UnresolvedType", func(t *testing.T) {
		err := UnresolvedType("Body", "File", "body")
		if err.Kind != KindUnresolvedType || err.Phase != PhaseResolve {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		msg := err.Error()
		for _, s := range []string{"Body", "File", "body"} {
			if !strings.Contains(msg, s) {
				t.Errorf("%q missing %q", msg, s)
			}
		}
	})

	t.Run("UnmappedDiscriminant", func(t *testing.T) {
		err := UnmappedDiscriminant("Header", uint32(3), 0)
		if !strings.Contains(err.Detail, "selector 0x3 not found in the mapping at 0x0") {
			t.Errorf("Detail = %q", err.Detail)
		}
		if !err.HasOffset {
			t.Error("offset not recorded")
		}
	})

	t.Run("Stall", func(t *testing.T) {
		err := Stall("Start", uint8(1), 0)
		if err.Kind != KindStall || !strings.Contains(err.Error(), "Start") {
			t.Errorf("got %v", err)
		}
		eof := Stall("Body", nil, 7)
		if !strings.Contains(eof.Detail, "end of input") {
			t.Errorf("Detail = %q", eof.Detail)
		}
	})

	t.Run("BindingFailed", func(t *testing.T) {
		err := BindingFailed("size", errors.New("missing"))
		if err.Kind != KindBinding || err.Value != "size" {
			t.Errorf("got %+v", err)
		}
	})

	t.Run("BrokenChain", func(t *testing.T) {
		err := BrokenChain("sector %d out of range", 9)
		if err.Detail != "sector 9 out of range" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseBind, "integer", "x")
		if !strings.Contains(err.Detail, "string") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("NotFound and Duplicate", func(t *testing.T) {
		if NotFound(PhaseLoad, "plugin", "x").Kind != KindNotFound {
			t.Error("NotFound kind")
		}
		if Duplicate(PhaseLoad, "type", "x").Kind != KindDuplicate {
			t.Error("Duplicate kind")
		}
	})
}
