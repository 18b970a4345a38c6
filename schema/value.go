package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/bindecode/errors"
)

// Record is a decoded record: field values in declaration order, each
// tagged with the type name of the reader that produced it.
type Record struct {
	values map[string]any
	env    map[string]any
	Type   string
	names  []string
	types  []string
	Offset int64
}

// NewRecord creates an empty record of the given type decoded at offset.
func NewRecord(typeName string, offset int64) *Record {
	return &Record{Type: typeName, Offset: offset, values: make(map[string]any)}
}

// Set stores a field value. Setting an existing name replaces the value in place.
func (r *Record) Set(name, typeName string, v any) {
	if _, ok := r.values[name]; ok {
		for i, n := range r.names {
			if n == name {
				r.types[i] = typeName
			}
		}
	} else {
		r.names = append(r.names, name)
		r.types = append(r.types, typeName)
	}
	r.values[name] = v
	if r.env != nil {
		r.env[name] = envValue(v)
	}
}

// Get returns a field value.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Names returns field names in declaration order.
func (r *Record) Names() []string { return r.names }

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.names) }

// TypeOf returns the type name of a field, or "" when absent.
func (r *Record) TypeOf(name string) string {
	for i, n := range r.names {
		if n == name {
			return r.types[i]
		}
	}
	return ""
}

// Env returns the record as an expression environment. Nested records
// appear as maps; other values are shared, not copied.
func (r *Record) Env() map[string]any {
	if r.env == nil {
		r.env = make(map[string]any, len(r.values))
		for name, v := range r.values {
			r.env[name] = envValue(v)
		}
	}
	return r.env
}

func envValue(v any) any {
	switch x := v.(type) {
	case *Record:
		return x.Env()
	case []any:
		for i, item := range x {
			if _, ok := item.(*Record); ok {
				out := make([]any, len(x))
				copy(out, x[:i])
				for j := i; j < len(x); j++ {
					out[j] = envValue(x[j])
				}
				return out
			}
		}
	}
	return v
}

// Lookup resolves a field path such as "body.items[2].name".
func (r *Record) Lookup(path string) (any, error) {
	var cur any = r
	for _, seg := range splitPath(path) {
		switch c := cur.(type) {
		case *Record:
			if seg.index >= 0 {
				return nil, errors.TypeMismatch(errors.PhaseDecode, "list", c)
			}
			v, ok := c.Get(seg.name)
			if !ok {
				return nil, errors.NotFound(errors.PhaseDecode, "field", path)
			}
			cur = v
		case []any:
			if seg.index < 0 || seg.index >= len(c) {
				return nil, errors.NotFound(errors.PhaseDecode, "element", path)
			}
			cur = c[seg.index]
		default:
			return nil, errors.NotFound(errors.PhaseDecode, "path", path)
		}
	}
	return cur, nil
}

type pathSegment struct {
	name  string
	index int
}

func splitPath(path string) []pathSegment {
	var segs []pathSegment
	for _, part := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(part, "[")
		if name != "" {
			segs = append(segs, pathSegment{name: name, index: -1})
		}
		for rest != "" {
			idx, after, _ := strings.Cut(rest, "]")
			n, err := strconv.Atoi(idx)
			if err != nil {
				n = -2
			}
			segs = append(segs, pathSegment{index: n})
			_, rest, _ = strings.Cut(after, "[")
		}
	}
	return segs
}

func (r *Record) String() string {
	var b strings.Builder
	b.WriteString(r.Type)
	b.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", name, r.values[name])
	}
	b.WriteByte('}')
	return b.String()
}

// flatten merges the fields of root and every nested record into one
// environment. Shallower definitions shadow deeper ones.
func flatten(root any) map[string]any {
	out := make(map[string]any)
	rec, ok := root.(*Record)
	if !ok {
		return out
	}
	queue := []*Record{rec}
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		for _, name := range r.names {
			v := r.values[name]
			if _, seen := out[name]; !seen {
				out[name] = envValue(v)
			}
			if nested, ok := v.(*Record); ok {
				queue = append(queue, nested)
			}
		}
	}
	return out
}
