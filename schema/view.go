package schema

import (
	"fmt"
	"io"
	"sort"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/stream"
)

// Instance is a decoded value whose construction depends on parameters
// bound after it was read. Reset rebuilds it from the current parameters.
type Instance interface {
	SetParam(name string, v any) error
	Reset() error
}

// Lazy is implemented by bound values that materialize into a
// stream.Stream or a stream.Sequence once their parameters are known.
type Lazy interface {
	Built() (any, error)
}

// View kinds.
const (
	ViewStream  = "stream"
	ViewRecords = "records"
	ViewSerial  = "serial"
	ViewConcat  = "concat"
)

var viewParams = map[string][]string{
	ViewStream:  {"offset", "size"},
	ViewRecords: {"offset", "size", "count"},
	ViewSerial:  {"offset", "size", "every"},
	ViewConcat:  {"parts"},
}

// View is a lazily built stream or element sequence over the session's
// input. Reading a view field does not consume bytes; the view addresses
// its window through parameters.
type View struct {
	params map[string]any
	await  map[string]bool
	src    stream.Stream
	elem   Reader
	schema *Schema
	built  any
	kind   string
	anchor int64
	every  int
}

// Kind returns the view kind.
func (v *View) Kind() string { return v.kind }

// Pending reports whether a declared parameter is still unbound.
func (v *View) Pending() bool {
	for name := range v.await {
		if _, ok := v.params[name]; !ok {
			return true
		}
	}
	return false
}

// Param returns a bound parameter.
func (v *View) Param(name string) (any, bool) {
	p, ok := v.params[name]
	return p, ok
}

// SetParam binds a parameter without rebuilding the view.
func (v *View) SetParam(name string, p any) error {
	if !containsString(viewParams[v.kind], name) {
		return errors.NotFound(errors.PhaseBind, v.kind+" parameter", name)
	}
	v.params[name] = p
	return nil
}

// Reset rebuilds the underlying stream from the current parameters.
func (v *View) Reset() error {
	if v.Pending() {
		v.built = nil
		return nil
	}
	built, err := v.build()
	if err != nil {
		return err
	}
	v.built = built
	return nil
}

// Stream returns the byte stream of a stream or concat view.
func (v *View) Stream() (stream.Stream, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	s, ok := v.built.(stream.Stream)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseStream, "byte stream", v.built)
	}
	return s, nil
}

// Sequence returns the element sequence of a records or serial view.
func (v *View) Sequence() (stream.Sequence, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	s, ok := v.built.(stream.Sequence)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseStream, "element sequence", v.built)
	}
	return s, nil
}

// Built returns the underlying stream.Stream or stream.Sequence.
func (v *View) Built() (any, error) {
	if err := v.ready(); err != nil {
		return nil, err
	}
	return v.built, nil
}

func (v *View) ready() error {
	if v.built != nil {
		return nil
	}
	if v.Pending() {
		var missing []string
		for name := range v.await {
			if _, ok := v.params[name]; !ok {
				missing = append(missing, name)
			}
		}
		sort.Strings(missing)
		return errors.New(errors.PhaseStream, errors.KindBinding).
			Detail("%s view is missing parameters %v", v.kind, missing).
			Build()
	}
	return v.Reset()
}

func (v *View) intParam(name string, def int64) (int64, error) {
	p, ok := v.params[name]
	if !ok {
		return def, nil
	}
	n, ok := eval.ToInt(p)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseBind, "integer "+name, p)
	}
	return n, nil
}

func (v *View) window(defSize int64) (stream.Stream, error) {
	off, err := v.intParam("offset", v.anchor)
	if err != nil {
		return nil, err
	}
	size, err := v.intParam("size", defSize)
	if err != nil {
		return nil, err
	}
	return stream.NewSub(v.src, off, size), nil
}

func (v *View) build() (any, error) {
	switch v.kind {
	case ViewStream:
		return v.window(-1)
	case ViewRecords:
		size, _ := v.elem.(Sizer).Size(-1)
		count, err := v.intParam("count", -1)
		if err != nil {
			return nil, err
		}
		span := int64(-1)
		if count >= 0 {
			span = count * size
		}
		w, err := v.window(span)
		if err != nil {
			return nil, err
		}
		return stream.NewRecord(w, v.codec(), size), nil
	case ViewSerial:
		every, err := v.intParam("every", int64(v.every))
		if err != nil {
			return nil, err
		}
		w, err := v.window(-1)
		if err != nil {
			return nil, err
		}
		return stream.NewSerial(w, v.codec(), int(every)), nil
	case ViewConcat:
		return v.concat()
	}
	return nil, errors.NotFound(errors.PhaseStream, "view kind", v.kind)
}

func (v *View) concat() (any, error) {
	raw, ok := v.params["parts"]
	if !ok {
		return stream.NewCombined(), nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseBind, "list of streams", raw)
	}
	parts := make([]stream.Stream, 0, len(items))
	for i, item := range items {
		s, err := asStream(item)
		if err != nil {
			return nil, errors.At(err, "", fmt.Sprintf("parts[%d]", i))
		}
		parts = append(parts, s)
	}
	return stream.NewCombined(parts...), nil
}

func (v *View) codec() stream.Decoder {
	c := &elementCodec{schema: v.schema, elem: v.elem}
	if _, ok := v.elem.(stream.Measurer); ok {
		return &measuringCodec{c}
	}
	return c
}

func asStream(v any) (stream.Stream, error) {
	switch x := v.(type) {
	case stream.Stream:
		x.Seek(0, io.SeekStart)
		return x, nil
	case Lazy:
		built, err := x.Built()
		if err != nil {
			return nil, err
		}
		if _, ok := built.(stream.Stream); !ok {
			return nil, errors.TypeMismatch(errors.PhaseStream, "byte stream", built)
		}
		return asStream(built)
	case []byte:
		return stream.NewFixed(x), nil
	}
	return nil, errors.TypeMismatch(errors.PhaseStream, "stream", v)
}

// elementCodec decodes one element of a view. Each element is decoded in
// its own session so its global bindings resolve against the element.
type elementCodec struct {
	schema *Schema
	elem   Reader
}

func (c *elementCodec) Decode(s stream.Stream) (any, error) {
	return c.schema.NewSession(s).Decode(c.elem)
}

type measuringCodec struct {
	*elementCodec
}

func (c *measuringCodec) Measure(s stream.Stream) (int64, error) {
	return c.elem.(stream.Measurer).Measure(s)
}

// viewReader produces a View bound to the stream it is read from.
type viewReader struct {
	elem   Reader
	kind   string
	params []string
	every  int
}

func (r *viewReader) TypeName() string { return r.kind }

func (r *viewReader) Read(f *Frame) (any, error) {
	v := &View{
		kind:   r.kind,
		src:    f.Stream,
		anchor: f.Stream.Pos(),
		elem:   r.elem,
		every:  r.every,
		params: make(map[string]any),
		await:  make(map[string]bool, len(r.params)),
	}
	if f.session != nil {
		v.schema = f.session.schema
	}
	for _, name := range r.params {
		v.await[name] = true
	}
	if err := v.Reset(); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *viewReader) Size(int64) (int64, bool) { return 0, true }

func viewFactory(kind string) Factory {
	return func(fc *FactoryContext) (Reader, error) {
		r := &viewReader{kind: kind, every: stream.DefaultEvery}
		for _, p := range fc.Decl.Params {
			if !containsString(viewParams[kind], p.Name) {
				return nil, errors.InvalidSchema(fc.Record, fmt.Sprintf("%s view has no parameter %q", kind, p.Name))
			}
			r.params = append(r.params, p.Name)
		}
		if kind != ViewRecords && kind != ViewSerial {
			return r, nil
		}
		if fc.Decl.Of == "" {
			return nil, errors.InvalidSchema(fc.Record, fmt.Sprintf("%s view %q needs an element type", kind, fc.Decl.Name))
		}
		err := fc.Element(fc.Decl.Of, func(elem Reader) error {
			r.elem = elem
			if kind == ViewRecords {
				fc.Check(func() error {
					s, ok := elem.(Sizer)
					if !ok {
						return errors.InvalidSchema(fc.Record, fmt.Sprintf("records element %q has no fixed size", fc.Decl.Of))
					}
					if n, ok := s.Size(-1); !ok || n <= 0 {
						return errors.InvalidSchema(fc.Record, fmt.Sprintf("records element %q has no fixed size", fc.Decl.Of))
					}
					return nil
				})
			}
			return nil
		})
		return r, err
	}
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
