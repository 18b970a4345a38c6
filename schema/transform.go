package schema

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/machine"
	"github.com/wippyai/bindecode/stream"
)

// Transform post-processes a record after its fields are read.
type Transform interface {
	apply(fr *Frame) error
}

// callTransform calls Method on a context object once per operand.
type callTransform struct {
	context  *expression
	operands *expression
	method   string
}

func (x *callTransform) apply(fr *Frame) error {
	env := fr.Env()
	target, err := callable(x.context, env)
	if err != nil {
		return err
	}
	ops, err := x.operands.eval(env)
	if err != nil {
		return err
	}
	items, err := listOf(ops)
	if err != nil {
		return err
	}
	for i, op := range items {
		if _, err := target.Call(x.method, op); err != nil {
			return errors.New(errors.PhaseDecode, errors.KindExpression).
				Detail("%s on operand %d", x.method, i).
				Cause(err).
				Build()
		}
	}
	return nil
}

// parseTransform runs a lookahead state machine over a token source.
type parseTransform struct {
	source  *expression
	with    *expression
	machine *machine.Machine
}

func (x *parseTransform) apply(fr *Frame) error {
	env := fr.Env()
	v, err := x.source.eval(env)
	if err != nil {
		return err
	}
	if lazy, ok := v.(Lazy); ok {
		if v, err = lazy.Built(); err != nil {
			return err
		}
	}
	src, err := machine.SourceOf(v)
	if err != nil {
		return err
	}
	var ctx eval.Callable
	if x.with != nil {
		if ctx, err = callable(x.with, env); err != nil {
			return err
		}
	}
	if err := x.machine.Run(src, ctx); err != nil {
		return err
	}
	Logger().Debug("parse transform finished", zap.String("start", x.machine.Start().Name))
	return nil
}

func callable(x *expression, env map[string]any) (eval.Callable, error) {
	v, err := x.eval(env)
	if err != nil {
		return nil, err
	}
	c, ok := v.(eval.Callable)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDecode, "callable context", v)
	}
	return c, nil
}

// listOf expands an operand value into its items.
func listOf(v any) ([]any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return x, nil
	case []byte:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = b
		}
		return out, nil
	case *eval.Collector:
		return x.Items, nil
	case Lazy:
		built, err := x.Built()
		if err != nil {
			return nil, err
		}
		return listOf(built)
	case stream.Sequence:
		n, err := x.Len()
		if err != nil {
			return nil, err
		}
		if _, err := x.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return x.Read(int(n))
	case stream.Stream:
		x.Seek(0, io.SeekStart)
		return listOf(x.Read(int(x.Len())))
	}
	return nil, errors.TypeMismatch(errors.PhaseDecode, "list", v)
}

// conditionEnv exposes the lookahead to a guard expression as tok, pos
// and peek(i).
func conditionEnv(la *machine.Lookahead) map[string]any {
	tok, _ := la.Peek(0)
	return map[string]any{
		"tok": tok,
		"pos": la.Pos(),
		"peek": func(i int) any {
			v, _ := la.Peek(i)
			return v
		},
	}
}

func guard(x *expression) machine.Cond {
	return func(la *machine.Lookahead) (bool, error) {
		return x.bool(conditionEnv(la))
	}
}

func stateError(state, detail string, args ...any) error {
	return errors.InvalidSchema("", fmt.Sprintf("state %s: %s", state, fmt.Sprintf(detail, args...)))
}
