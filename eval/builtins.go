package eval

import "fmt"

// Callable is an object whose methods a schema can invoke by name, used as
// the context of call transforms and state machine frames.
type Callable interface {
	Call(method string, arg any) (any, error)
}

// Builtins returns the functions every Compiler exposes.
func Builtins() map[string]Function {
	return map[string]Function{
		"collector": func(args ...any) (any, error) {
			if len(args) > 1 {
				return nil, fmt.Errorf("collector takes at most 1 argument")
			}
			return NewCollector(args...), nil
		},
	}
}

// Collector accumulates items and nested collectors.
type Collector struct {
	Items []any
}

// NewCollector creates a Collector holding the given first items.
func NewCollector(first ...any) *Collector {
	return &Collector{Items: append([]any(nil), first...)}
}

// Len returns the number of items.
func (c *Collector) Len() int { return len(c.Items) }

// Call implements Callable. Methods:
//
//	append  adds arg as an item
//	nest    adds a child collector starting with arg and returns it
func (c *Collector) Call(method string, arg any) (any, error) {
	switch method {
	case "append":
		c.Items = append(c.Items, arg)
		return nil, nil
	case "nest":
		child := NewCollector(arg)
		c.Items = append(c.Items, child)
		return child, nil
	}
	return nil, fmt.Errorf("collector has no method %q", method)
}
