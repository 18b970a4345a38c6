package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad    Phase = "load"    // schema document loading
	PhaseResolve Phase = "resolve" // type reference resolution
	PhaseDecode  Phase = "decode"  // record and field decoding
	PhaseBind    Phase = "bind"    // parameter binding
	PhaseParse   Phase = "parse"   // lookahead state machine
	PhaseStream  Phase = "stream"  // stream construction and traversal
	PhasePlugin  Phase = "plugin"  // plugin registration
)

// Kind categorizes the error
type Kind string

const (
	KindUnresolvedType       Kind = "unresolved_type"
	KindInvalidSchema        Kind = "invalid_schema"
	KindUnmappedDiscriminant Kind = "unmapped_discriminant"
	KindStall                Kind = "stall"
	KindBinding              Kind = "binding"
	KindExpression           Kind = "expression"
	KindBrokenChain          Kind = "broken_chain"
	KindNotFound             Kind = "not_found"
	KindDuplicate            Kind = "duplicate"
	KindTypeMismatch         Kind = "type_mismatch"
	KindIO                   Kind = "io"
	KindCallback             Kind = "callback" // a parse context method failed
)

// Error is the structured error type used throughout the library
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Type      string
	Detail    string
	Path      []string
	Offset    int64
	HasOffset bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Type != "" {
		b.WriteString(" in ")
		b.WriteString(e.Type)
	}
	if e.HasOffset {
		fmt.Fprintf(&b, " @0x%X", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the record type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Offset sets the byte offset in the input
func (b *Builder) Offset(off int64) *Builder {
	b.err.Offset = off
	b.err.HasOffset = true
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// At adds decode location context to err as it propagates out of a field.
// The innermost record type wins; field names accumulate outermost first.
// Errors that are not *Error are wrapped as decode errors.
func At(err error, typeName, field string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Phase: PhaseDecode, Kind: KindIO, Cause: err}
	}
	if e.Type == "" {
		e.Type = typeName
	}
	if field != "" {
		e.Path = append([]string{field}, e.Path...)
	}
	return e
}

// Locate records the input offset of err unless a deeper frame already did.
func Locate(err error, offset int64) error {
	var e *Error
	if errors.As(err, &e) && !e.HasOffset {
		e.Offset, e.HasOffset = offset, true
	}
	return err
}

// Convenience constructors for common error patterns

// UnresolvedType creates an error for a type name that no module declares
func UnresolvedType(name, referrer, field string) *Error {
	e := &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnresolvedType,
		Type:   referrer,
		Detail: fmt.Sprintf("type %q is not declared", name),
		Value:  name,
	}
	if field != "" {
		e.Path = []string{field}
	}
	return e
}

// InvalidSchema creates a malformed schema error
func InvalidSchema(typeName, detail string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidSchema,
		Type:   typeName,
		Detail: detail,
	}
}

// UnmappedDiscriminant creates an error for a selector value missing from its mapping
func UnmappedDiscriminant(typeName string, key any, offset int64) *Error {
	return &Error{
		Phase:     PhaseDecode,
		Kind:      KindUnmappedDiscriminant,
		Type:      typeName,
		Offset:    offset,
		HasOffset: true,
		Value:     key,
		Detail:    fmt.Sprintf("selector %s not found in the mapping at 0x%X", hexValue(key), offset),
	}
}

// Stall creates a state machine error for input no action accepts
func Stall(state string, token any, pos int64) *Error {
	detail := fmt.Sprintf("unexpected %s in state %s", hexValue(token), state)
	if token == nil {
		detail = fmt.Sprintf("unexpected end of input in state %s", state)
	}
	return &Error{
		Phase:     PhaseParse,
		Kind:      KindStall,
		Type:      state,
		Offset:    pos,
		HasOffset: true,
		Value:     token,
		Detail:    detail,
	}
}

// BindingFailed creates an error for a parameter expression that could not be applied
func BindingFailed(param string, cause error) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindBinding,
		Detail: fmt.Sprintf("bind parameter %q", param),
		Value:  param,
		Cause:  cause,
	}
}

// Expression creates an expression compile or evaluation error
func Expression(phase Phase, src string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExpression,
		Detail: fmt.Sprintf("expression %q", src),
		Value:  src,
		Cause:  cause,
	}
}

// BrokenChain creates an error for an indexed chain that cannot be followed
func BrokenChain(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseStream,
		Kind:   KindBrokenChain,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// TypeMismatch creates an error for a value of an unexpected Go type
func TypeMismatch(phase Phase, want string, got any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Value:  got,
		Detail: fmt.Sprintf("expected %s, got %T", want, got),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Value:  name,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Duplicate creates an error for a name registered twice
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Value:  name,
		Detail: fmt.Sprintf("%s %q already registered", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

func hexValue(v any) string {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("0x%X", n)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%v", n)
	}
}
