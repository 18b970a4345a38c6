// Package eval compiles and evaluates the expressions a schema uses for
// computed sizes, bound parameters, discriminants and state machine guards.
//
// Expressions are expr-lang programs evaluated against a map environment:
// field values by name, the function table, and whatever a caller adds.
// Compiled programs are cached per Compiler.
package eval

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
)

// Function is a callable exposed to expressions by name.
type Function func(args ...any) (any, error)

// Compiler compiles expressions against a fixed function table.
type Compiler struct {
	cache   map[string]*Expr
	funcs   map[string]bool
	options []expr.Option
	cacheMu sync.RWMutex
}

// NewCompiler creates a Compiler exposing funcs plus the builtins.
// Entries in funcs override builtins of the same name.
func NewCompiler(funcs map[string]Function) *Compiler {
	table := Builtins()
	for name, fn := range funcs {
		table[name] = fn
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	c := &Compiler{
		cache:   make(map[string]*Expr),
		funcs:   make(map[string]bool, len(names)),
		options: []expr.Option{expr.AllowUndefinedVariables()},
	}
	for _, name := range names {
		c.funcs[name] = true
		c.options = append(c.options, expr.Function(name, table[name]))
	}
	return c
}

// Compile compiles src, reusing a cached program when available.
func (c *Compiler) Compile(src string) (*Expr, error) {
	c.cacheMu.RLock()
	e, ok := c.cache[src]
	c.cacheMu.RUnlock()
	if ok {
		return e, nil
	}

	ids := &identifiers{funcs: c.funcs, declared: make(map[string]bool)}
	opts := append(c.options[:len(c.options):len(c.options)], expr.Patch(ids))
	prog, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, err
	}
	e = &Expr{src: src, prog: prog, vars: ids.free()}

	c.cacheMu.Lock()
	c.cache[src] = e
	c.cacheMu.Unlock()
	return e, nil
}

// identifiers collects the variables an expression reads from its
// environment: every identifier that is neither a function nor bound by let.
type identifiers struct {
	funcs    map[string]bool
	declared map[string]bool
	names    []string
}

func (v *identifiers) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if !v.funcs[n.Value] && !strings.HasPrefix(n.Value, "$") && !slices.Contains(v.names, n.Value) {
			v.names = append(v.names, n.Value)
		}
	case *ast.VariableDeclaratorNode:
		v.declared[n.Name] = true
	}
}

func (v *identifiers) free() []string {
	out := make([]string, 0, len(v.names))
	for _, name := range v.names {
		if !v.declared[name] {
			out = append(out, name)
		}
	}
	return out
}

// Expr is a compiled expression. It is safe for concurrent use.
type Expr struct {
	prog *vm.Program
	src  string
	vars []string
}

// String returns the expression source.
func (e *Expr) String() string { return e.src }

// Vars returns the environment names the expression reads, in order of
// first appearance.
func (e *Expr) Vars() []string { return e.vars }

// Missing returns the names the expression reads that env does not define.
func (e *Expr) Missing(env map[string]any) []string {
	var out []string
	for _, name := range e.vars {
		if _, ok := env[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Eval runs the expression against env.
func (e *Expr) Eval(env map[string]any) (any, error) {
	return expr.Run(e.prog, env)
}

// Int runs the expression and converts the result to an integer.
func (e *Expr) Int(env map[string]any) (int64, error) {
	v, err := e.Eval(env)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("evaluated to nil")
	}
	n, ok := ToInt(v)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
	return n, nil
}

// Bool runs the expression and requires a boolean result.
func (e *Expr) Bool(env map[string]any) (bool, error) {
	v, err := e.Eval(env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return b, nil
}

// ToInt converts any Go integer, or an integral float, to int64.
// Floats are truncated toward zero since expression division yields floats.
func ToInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// Key normalizes a discriminant so values of different integer types compare equal.
func Key(v any) any {
	if n, ok := ToInt(v); ok {
		if _, isFloat := v.(float64); isFloat && float64(n) != v.(float64) {
			return v
		}
		return n
	}
	return v
}
