// Package machine implements the lookahead state machine used by parse
// transforms to decode token streams such as string tables.
//
// A Machine is a set of named States. Each State has guarded Actions tried
// in declaration order and a Default used when no guard holds. Running
// keeps a stack of frames, each pairing a State with a context object on
// which actions invoke methods by name:
//
//	next   consume the lookahead token
//	stall  fail: the input is not acceptable in this state
//	pop    leave the current frame, handing its context to the parent's pop method
//	stop   unwind every frame, then finish
//
// Any action may also push a new frame before its operation runs. Parsing
// ends on stop or when the stack empties. A Machine is immutable once built
// and may be run concurrently over independent sources.
package machine

import (
	"fmt"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/eval"
)

// Op is the cursor or stack operation an Action performs.
type Op uint8

const (
	OpNext Op = iota
	OpStall
	OpStop
	OpPop
)

var opNames = map[string]Op{
	"next":  OpNext,
	"stall": OpStall,
	"stop":  OpStop,
	"pop":   OpPop,
}

// ParseOp converts an action name to an Op.
func ParseOp(name string) (Op, error) {
	op, ok := opNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown action %q", name)
	}
	return op, nil
}

func (o Op) String() string {
	for name, op := range opNames {
		if op == o {
			return name
		}
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Cond is an action guard evaluated against the lookahead.
type Cond func(la *Lookahead) (bool, error)

// Push enters a sub-parse. With names the method called on the current
// context with the lookahead token to derive the child context; when empty
// the child shares the current context. Pop names the method called on the
// parent context with the child context when the frame is popped.
type Push struct {
	Next *State
	With string
	Pop  string
}

// Action is one step of a State.
type Action struct {
	Cond Cond
	Push *Push
	Call string
	Op   Op
}

// State is a named machine state.
type State struct {
	Name    string
	Actions []Action
	Default Action
}

func (s *State) choose(la *Lookahead) (*Action, error) {
	for i := range s.Actions {
		a := &s.Actions[i]
		if a.Cond == nil {
			continue
		}
		ok, err := a.Cond(la)
		if err != nil {
			return nil, errors.New(errors.PhaseParse, errors.KindExpression).
				Type(s.Name).
				Offset(la.Pos()).
				Detail("guard %d", i).
				Cause(err).
				Build()
		}
		if ok {
			return a, nil
		}
	}
	return &s.Default, nil
}

// Machine is a set of states; the first state added is the start state.
type Machine struct {
	byName map[string]*State
	states []*State
}

// New creates an empty Machine.
func New() *Machine {
	return &Machine{byName: make(map[string]*State)}
}

// Add declares a state. A new state's default action stalls.
func (m *Machine) Add(name string) (*State, error) {
	if _, ok := m.byName[name]; ok {
		return nil, errors.Duplicate(errors.PhaseParse, "state", name)
	}
	st := &State{Name: name, Default: Action{Op: OpStall}}
	m.byName[name] = st
	m.states = append(m.states, st)
	return st, nil
}

// Lookup returns the named state or nil.
func (m *Machine) Lookup(name string) *State {
	return m.byName[name]
}

// Start returns the start state, or nil for an empty machine.
func (m *Machine) Start() *State {
	if len(m.states) == 0 {
		return nil
	}
	return m.states[0]
}

// States returns the states in declaration order.
func (m *Machine) States() []*State {
	return m.states
}

type frame struct {
	state *State
	ctx   eval.Callable
	onPop string
}

func (f *frame) call(method string, arg any) (any, error) {
	if f.ctx == nil || method == "" {
		return nil, nil
	}
	return f.ctx.Call(method, arg)
}

type run struct {
	la    *Lookahead
	stack []*frame
}

// Run parses src starting in the start state with ctx as the root context.
func (m *Machine) Run(src Source, ctx eval.Callable) error {
	start := m.Start()
	if start == nil {
		return errors.InvalidSchema("", "state machine has no states")
	}
	r := &run{la: NewLookahead(src)}
	r.stack = append(r.stack, &frame{state: start, ctx: ctx})

	for len(r.stack) > 0 {
		top := r.stack[len(r.stack)-1]
		act, err := top.state.choose(r.la)
		if err != nil {
			return err
		}
		tok, err := r.la.Peek(0)
		if err != nil {
			return r.fail(top, errors.KindIO, err)
		}
		if _, err := top.call(act.Call, tok); err != nil {
			return r.fail(top, errors.KindCallback, err)
		}
		if act.Push != nil {
			if err := r.push(top, act.Push, tok); err != nil {
				return err
			}
		}

		switch act.Op {
		case OpNext:
			ok, err := r.la.Next()
			if err != nil {
				return r.fail(top, errors.KindIO, err)
			}
			if !ok {
				return errors.Stall(top.state.Name, nil, r.la.Pos())
			}
		case OpStall:
			return errors.Stall(top.state.Name, tok, r.la.Pos())
		case OpStop:
			for len(r.stack) > 0 {
				if err := r.pop(); err != nil {
					return err
				}
			}
		case OpPop:
			if err := r.pop(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) push(top *frame, p *Push, tok any) error {
	child := &frame{state: p.Next, ctx: top.ctx, onPop: p.Pop}
	if p.With != "" {
		v, err := top.call(p.With, tok)
		if err != nil {
			return r.fail(top, errors.KindCallback, err)
		}
		if v == nil {
			child.ctx = nil
		} else {
			c, ok := v.(eval.Callable)
			if !ok {
				return r.fail(top, errors.KindCallback, errors.TypeMismatch(errors.PhaseParse, "callable context", v))
			}
			child.ctx = c
		}
	}
	r.stack = append(r.stack, child)
	return nil
}

// pop discards the top frame, first handing its context to the parent.
func (r *run) pop() error {
	n := len(r.stack)
	top := r.stack[n-1]
	if n > 1 {
		if _, err := r.stack[n-2].call(top.onPop, top.ctx); err != nil {
			return r.fail(top, errors.KindCallback, err)
		}
	}
	r.stack = r.stack[:n-1]
	return nil
}

// fail locates err at the frame's state and the current lookahead offset.
func (r *run) fail(f *frame, kind errors.Kind, err error) error {
	return errors.New(errors.PhaseParse, kind).
		Type(f.state.Name).
		Offset(r.la.Pos()).
		Cause(err).
		Build()
}
