package schema

import (
	"fmt"
	"strings"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/eval"
)

// Hook runs around a field read. Pre hooks may set the frame count; post
// hooks see the decoded value.
type Hook func(f *Frame, v any) error

// Field is one named member of a record type.
type Field struct {
	reader Reader
	count  *expression
	global *Binding
	Name   string
	Type   string
	local  []*param
	pre    []Hook
	post   []Hook
	fixed  int64
	// Set marks a computed field; Skip marks a field whose value is dropped.
	Set  bool
	Skip bool
}

// Reader returns the field's resolved reader.
func (f *Field) Reader() Reader { return f.reader }

// Global returns the field's global binding, or nil.
func (f *Field) Global() *Binding { return f.global }

func (f *Field) decode(fr *Frame, rec *Record) error {
	for _, h := range f.pre {
		if err := h(fr, nil); err != nil {
			return err
		}
	}
	v, err := f.reader.Read(fr)
	if err != nil {
		return err
	}
	if !f.Skip {
		rec.Set(f.Name, f.reader.TypeName(), v)
	}
	for _, h := range f.post {
		if err := h(fr, v); err != nil {
			return err
		}
	}
	return nil
}

// size reports the encoded size of the field when it is known statically.
func (f *Field) size() (int64, bool) {
	s, ok := f.reader.(Sizer)
	if !ok || f.count != nil {
		return 0, false
	}
	return s.Size(f.fixed)
}

func (f *Field) countHook(fr *Frame, _ any) error {
	if f.count == nil {
		fr.Count = f.fixed
		return nil
	}
	n, err := f.count.int(fr.Env())
	if err != nil {
		return err
	}
	if n < 0 {
		return errors.New(errors.PhaseDecode, errors.KindExpression).
			Detail("count %q evaluated to %d", f.count.src, n).
			Build()
	}
	fr.Count = n
	return nil
}

func (f *Field) localHook(fr *Frame, v any) error {
	inst, ok := v.(Instance)
	if !ok {
		return errors.TypeMismatch(errors.PhaseBind, "bindable value", v)
	}
	return applyParams(inst, f.local, fr.Env())
}

func (f *Field) globalHook(fr *Frame, v any) error {
	inst, ok := v.(Instance)
	if !ok {
		return errors.TypeMismatch(errors.PhaseBind, "bindable value", v)
	}
	fr.session.enqueue(f.global, inst)
	return nil
}

// Binding is a set of parameters evaluated once against the flattened root
// record after the whole input is decoded.
type Binding struct {
	Name   string
	params []*param
}

type param struct {
	expr *expression
	name string
}

func applyParams(inst Instance, params []*param, env map[string]any) error {
	values, err := evalParams(params, env)
	if err != nil {
		return err
	}
	return setParams(inst, params, values)
}

func evalParams(params []*param, env map[string]any) ([]any, error) {
	values := make([]any, len(params))
	for i, p := range params {
		v, err := p.expr.eval(env)
		if err != nil {
			return nil, errors.BindingFailed(p.name, err)
		}
		if v == nil {
			return nil, errors.BindingFailed(p.name, fmt.Errorf("%q evaluated to nil", p.expr.src))
		}
		values[i] = v
	}
	return values, nil
}

func setParams(inst Instance, params []*param, values []any) error {
	for i, p := range params {
		if err := inst.SetParam(p.name, values[i]); err != nil {
			return errors.BindingFailed(p.name, err)
		}
	}
	return inst.Reset()
}

// expression is a source expression compiled when the schema is resolved.
type expression struct {
	prog   *eval.Expr
	module *Module
	src    string
}

func (x *expression) eval(env map[string]any) (any, error) {
	v, err := x.prog.Eval(env)
	if err != nil {
		return nil, errors.Expression(errors.PhaseDecode, x.src, err)
	}
	return v, nil
}

// require fails when env lacks a name the expression reads.
func (x *expression) require(env map[string]any) error {
	missing := x.prog.Missing(env)
	if len(missing) == 0 {
		return nil
	}
	return errors.Expression(errors.PhaseDecode, x.src,
		fmt.Errorf("%s not decoded before this field", strings.Join(missing, ", ")))
}

func (x *expression) int(env map[string]any) (int64, error) {
	n, err := x.prog.Int(env)
	if err != nil {
		return 0, errors.Expression(errors.PhaseDecode, x.src, err)
	}
	return n, nil
}

func (x *expression) bool(env map[string]any) (bool, error) {
	b, err := x.prog.Bool(env)
	if err != nil {
		return false, errors.Expression(errors.PhaseDecode, x.src, err)
	}
	return b, nil
}
