package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/machine"
	"github.com/wippyai/bindecode/stream"
)

// Factory builds a reader for one field declaration. Plugins register
// factories by type name through Module.RegisterTypes.
type Factory func(fc *FactoryContext) (Reader, error)

// Plugin contributes readers, functions and type mappings to a module.
type Plugin func(m *Module) error

// FactoryContext is handed to a Factory instantiating a field reader.
type FactoryContext struct {
	// Module is the module of the referencing field.
	Module *Module
	Decl   *FieldDecl
	// Record is the qualified name of the record declaring the field.
	Record string
}

// Element resolves an element type name, deferring install until the name
// is declared when it is not yet known.
func (fc *FactoryContext) Element(name string, install func(Reader) error) error {
	return fc.Module.resolveType(name, fc.Record, fc.Decl.Name, func(e entry) error {
		r, err := fc.Module.instantiate(e, fc.Record, &FieldDecl{Name: fc.Decl.Name, Type: name})
		if err != nil {
			return err
		}
		return install(r)
	})
}

// Check registers a validation run once every reference is resolved.
func (fc *FactoryContext) Check(fn func() error) {
	s := fc.Module.schema
	s.checks = append(s.checks, fn)
}

type entry struct {
	factory Factory
	id      TypeID
	record  bool
}

type mapping struct {
	module  *Module
	entries map[any]string
}

type xref struct {
	module   *Module
	install  func(entry) error
	mapping  func(*mapping) error
	name     string
	referrer string
	field    string
}

// Schema is the registry of every loaded module. Record types live in an
// arena indexed by TypeID so fields may refer to types declared later.
// Once resolved a Schema is read-only and may decode concurrently.
type Schema struct {
	names    map[string]entry
	funcs    map[string]eval.Function
	mappings map[string]*mapping
	byKey    map[string]*Module
	root     Reader
	rootMod  *Module
	rootName string
	target   string
	types    []*RecordType
	modules  []*Module
	xrefs    []*xref
	exprs    []*expression
	checks   []func() error
	resolved bool
}

// New creates a schema with the built-in readers registered globally.
func New() *Schema {
	s := &Schema{
		names:    make(map[string]entry),
		funcs:    make(map[string]eval.Function),
		mappings: make(map[string]*mapping),
		byKey:    make(map[string]*Module),
	}
	builtins := map[string]Factory{
		"uint8":  intFactory(1),
		"uint16": intFactory(2),
		"uint32": intFactory(4),
		"uint64": intFactory(8),
		"bytes":  constFactory(BytesReader{}),
		"skip":   constFactory(SkipReader{}),
		"buffer": constFactory(BufferReader{}),
	}
	for _, kind := range []string{ViewStream, ViewRecords, ViewSerial, ViewConcat} {
		builtins[kind] = viewFactory(kind)
	}
	for name, f := range builtins {
		s.names[name] = entry{factory: f}
	}
	return s
}

func intFactory(width int) Factory {
	return func(*FactoryContext) (Reader, error) { return &IntReader{Width: width}, nil }
}

func constFactory(r Reader) Factory {
	return func(*FactoryContext) (Reader, error) { return r, nil }
}

// Module returns the module for a schema source, creating it on first use.
// created is false when key names a source that was already loaded. An
// empty key always creates a new module.
func (s *Schema) Module(namespace, key string) (m *Module, created bool) {
	if m, ok := s.byKey[key]; ok && key != "" {
		Logger().Debug("module already loaded", zap.String("key", key))
		return m, false
	}
	m = &Module{schema: s, Namespace: namespace, Key: key, funcs: make(map[string]eval.Function)}
	if key != "" {
		s.byKey[key] = m
	}
	s.modules = append(s.modules, m)
	Logger().Debug("module registered",
		zap.String("namespace", namespace),
		zap.String("key", key))
	return m, true
}

// Modules returns the modules in load order.
func (s *Schema) Modules() []*Module { return s.modules }

// Types returns the declared record types in declaration order.
func (s *Schema) Types() []*RecordType { return s.types }

// Type returns the record type with the given name, resolved as from a
// module without namespace.
func (s *Schema) Type(name string) (*RecordType, bool) {
	e, _, ok := find(s.names, "", name)
	if !ok || !e.record {
		return nil, false
	}
	return s.types[e.id], true
}

// SetTarget sets the field path selecting the decode result.
func (s *Schema) SetTarget(path string) { s.target = path }

// Target returns the result path, or "" for the whole root.
func (s *Schema) Target() string { return s.target }

// Root returns the root reader; nil before Resolve.
func (s *Schema) Root() Reader { return s.root }

// Resolved reports whether Resolve completed.
func (s *Schema) Resolved() bool { return s.resolved }

// Resolve drains the forward-reference worklist, compiles every expression
// and validates the result. The schema is read-only afterwards.
func (s *Schema) Resolve() error {
	if s.resolved {
		return nil
	}
	// installing a reference may queue further references
	for i := 0; i < len(s.xrefs); i++ {
		if err := s.xrefs[i].resolve(); err != nil {
			return err
		}
	}
	s.xrefs = nil

	for _, m := range s.modules {
		m.compiler = eval.NewCompiler(s.functionTable(m))
	}
	for _, x := range s.exprs {
		c := x.module.compiler
		if c == nil {
			c = eval.NewCompiler(s.functionTable(x.module))
			x.module.compiler = c
		}
		prog, err := c.Compile(x.src)
		if err != nil {
			return errors.Expression(errors.PhaseLoad, x.src, err)
		}
		x.prog = prog
	}
	s.exprs = nil

	for _, t := range s.types {
		t.Size()
	}
	for _, check := range s.checks {
		if err := check(); err != nil {
			return err
		}
	}
	s.checks = nil

	if s.rootName != "" {
		e, ok := s.rootMod.lookup(s.rootName)
		if !ok {
			return errors.NotFound(errors.PhaseResolve, "root type", s.rootName)
		}
		r, err := s.rootMod.instantiate(e, "", &FieldDecl{Name: "root", Type: s.rootName})
		if err != nil {
			return err
		}
		s.root = r
	}
	s.resolved = true
	Logger().Debug("schema resolved",
		zap.Int("modules", len(s.modules)),
		zap.Int("types", len(s.types)))
	return nil
}

func (s *Schema) functionTable(m *Module) map[string]eval.Function {
	table := make(map[string]eval.Function, len(s.funcs)+len(m.funcs))
	for name, fn := range s.funcs {
		table[strings.ReplaceAll(name, ".", "_")] = fn
	}
	for name, fn := range m.funcs {
		table[name] = fn
	}
	return table
}

// Decode decodes src with the root type and returns the root record, or
// the value the target path selects.
func (s *Schema) Decode(src stream.Stream) (any, error) {
	if !s.resolved {
		return nil, errors.InvalidSchema("", "schema is not resolved")
	}
	if s.root == nil {
		return nil, errors.NotFound(errors.PhaseDecode, "root type", s.rootName)
	}
	v, err := s.NewSession(src).Decode(s.root)
	if err != nil || s.target == "" {
		return v, err
	}
	rec, ok := v.(*Record)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseDecode, "record", v)
	}
	return rec.Lookup(s.target)
}

// DecodeType decodes src with the named type instead of the root.
func (s *Schema) DecodeType(name string, src stream.Stream) (any, error) {
	if !s.resolved {
		return nil, errors.InvalidSchema("", "schema is not resolved")
	}
	t, ok := s.Type(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDecode, "type", name)
	}
	return s.NewSession(src).Decode(&RecordRef{schema: s, id: t.ID})
}

func (x *xref) resolve() error {
	if x.mapping != nil {
		mp, ok := x.module.lookupMapping(x.name)
		if !ok {
			err := errors.NotFound(errors.PhaseResolve, "type mapping", x.name)
			err.Type = x.referrer
			return err
		}
		return x.mapping(mp)
	}
	e, ok := x.module.lookup(x.name)
	if !ok {
		return errors.UnresolvedType(x.name, x.referrer, x.field)
	}
	Logger().Debug("forward reference resolved",
		zap.String("name", x.name),
		zap.String("referrer", x.referrer),
		zap.String("field", x.field))
	return x.install(e)
}

// find resolves name as seen from namespace ns: the namespace-qualified
// name, then the exact name, then the first qualified name ending in it.
func find[T any](table map[string]T, ns, name string) (T, string, bool) {
	if ns != "" {
		q := ns + "." + name
		if v, ok := table[q]; ok {
			return v, q, true
		}
	}
	if v, ok := table[name]; ok {
		return v, name, true
	}
	suffix := "." + name
	var matches []string
	for k := range table {
		if strings.HasSuffix(k, suffix) {
			matches = append(matches, k)
		}
	}
	if len(matches) == 0 {
		var zero T
		return zero, "", false
	}
	sort.Strings(matches)
	return table[matches[0]], matches[0], true
}

// Module is the scope of one schema source. Names it declares are
// prefixed with its namespace.
type Module struct {
	schema    *Schema
	compiler  *eval.Compiler
	funcs     map[string]eval.Function
	Namespace string
	Key       string
}

// Schema returns the owning schema.
func (m *Module) Schema() *Schema { return m.schema }

// Qualify prefixes name with the module namespace.
func (m *Module) Qualify(name string) string {
	if m.Namespace == "" {
		return name
	}
	return m.Namespace + "." + name
}

// SetRoot names the type Schema.Decode starts from.
func (m *Module) SetRoot(name string) {
	m.schema.rootMod, m.schema.rootName = m, name
}

func (m *Module) writable() error {
	if m.schema.resolved {
		return errors.New(errors.PhaseLoad, errors.KindInvalidSchema).
			Detail("schema is already resolved").
			Build()
	}
	return nil
}

// RegisterTypes registers reader factories under the module namespace.
func (m *Module) RegisterTypes(types map[string]Factory) error {
	if err := m.writable(); err != nil {
		return err
	}
	for _, name := range sortedKeys(types) {
		q := m.Qualify(name)
		if _, ok := m.schema.names[q]; ok {
			return errors.Duplicate(errors.PhasePlugin, "type", q)
		}
		m.schema.names[q] = entry{factory: types[name]}
	}
	return nil
}

// RegisterFunctions exposes functions to expressions. Within the module
// they are called by their bare name; elsewhere as namespace_name.
func (m *Module) RegisterFunctions(fns map[string]eval.Function) error {
	if err := m.writable(); err != nil {
		return err
	}
	for _, name := range sortedKeys(fns) {
		q := m.Qualify(name)
		if _, ok := m.schema.funcs[q]; ok {
			return errors.Duplicate(errors.PhasePlugin, "function", q)
		}
		m.schema.funcs[q] = fns[name]
		m.funcs[name] = fns[name]
	}
	return nil
}

// RegisterTypeMapping registers a named discriminant table for selectors.
// Type names in the table resolve from this module.
func (m *Module) RegisterTypeMapping(name string, entries map[any]string) error {
	if err := m.writable(); err != nil {
		return err
	}
	q := m.Qualify(name)
	if _, ok := m.schema.mappings[q]; ok {
		return errors.Duplicate(errors.PhasePlugin, "type mapping", q)
	}
	m.schema.mappings[q] = &mapping{module: m, entries: entries}
	return nil
}

func (m *Module) lookup(name string) (entry, bool) {
	e, _, ok := find(m.schema.names, m.Namespace, name)
	return e, ok
}

func (m *Module) lookupMapping(name string) (*mapping, bool) {
	mp, _, ok := find(m.schema.mappings, m.Namespace, name)
	return mp, ok
}

func (m *Module) resolveType(name, referrer, field string, install func(entry) error) error {
	if e, ok := m.lookup(name); ok {
		return install(e)
	}
	m.schema.xrefs = append(m.schema.xrefs, &xref{
		module:   m,
		name:     name,
		referrer: referrer,
		field:    field,
		install:  install,
	})
	return nil
}

func (m *Module) resolveMapping(name, referrer string, install func(*mapping) error) error {
	if mp, ok := m.lookupMapping(name); ok {
		return install(mp)
	}
	m.schema.xrefs = append(m.schema.xrefs, &xref{
		module:   m,
		name:     name,
		referrer: referrer,
		field:    "selection",
		mapping:  install,
	})
	return nil
}

func (m *Module) instantiate(e entry, referrer string, decl *FieldDecl) (Reader, error) {
	if e.record {
		return &RecordRef{schema: m.schema, id: e.id}, nil
	}
	return e.factory(&FactoryContext{Module: m, Decl: decl, Record: referrer})
}

func (m *Module) expr(src string) *expression {
	x := &expression{src: src, module: m}
	m.schema.exprs = append(m.schema.exprs, x)
	return x
}

// Declare adds a record type to the module.
func (m *Module) Declare(d RecordDecl) error {
	if err := m.writable(); err != nil {
		return err
	}
	if d.Name == "" {
		return errors.InvalidSchema("", "record without a name")
	}
	s := m.schema
	qn := m.Qualify(d.Name)
	if _, ok := s.names[qn]; ok {
		return errors.Duplicate(errors.PhaseLoad, "type", qn)
	}
	t := &RecordType{Name: qn, module: m, ID: TypeID(len(s.types))}
	s.types = append(s.types, t)
	s.names[qn] = entry{id: t.ID, record: true}

	for i := range d.Fields {
		f, err := m.field(t, &d.Fields[i])
		if err != nil {
			return errors.At(err, qn, d.Fields[i].Name)
		}
		t.Fields = append(t.Fields, f)
	}
	for i := range d.Transforms {
		x, err := m.transform(qn, &d.Transforms[i])
		if err != nil {
			return errors.At(err, qn, fmt.Sprintf("transforms[%d]", i))
		}
		t.Transforms = append(t.Transforms, x)
	}
	if d.Selection != nil {
		sel, err := m.selector(qn, d.Selection)
		if err != nil {
			return errors.At(err, qn, "selection")
		}
		t.Selector = sel
	}
	Logger().Debug("record declared",
		zap.String("type", qn),
		zap.Int("fields", len(t.Fields)))
	return nil
}

func (m *Module) field(t *RecordType, fd *FieldDecl) (*Field, error) {
	if fd.Name == "" {
		return nil, errors.InvalidSchema(t.Name, "field without a name")
	}
	f := &Field{Name: fd.Name, Type: fd.Type, Set: fd.Set, fixed: -1}
	if fd.Set {
		if fd.Value == "" {
			return nil, errors.InvalidSchema(t.Name, "set field has no value")
		}
		name := fd.Type
		if name == "" {
			name = "function"
		}
		f.reader = &FunctionReader{expr: m.expr(fd.Value), name: name}
	} else {
		if fd.Type == "" {
			return nil, errors.InvalidSchema(t.Name, "field has no type")
		}
		if err := m.count(t.Name, f, fd.Count); err != nil {
			return nil, err
		}
		err := m.resolveType(fd.Type, t.Name, fd.Name, func(e entry) error {
			r, err := m.instantiate(e, t.Name, fd)
			if err != nil {
				return err
			}
			if f.count != nil || f.fixed >= 0 {
				if c, ok := r.(Counted); !ok || !c.UsesCount() {
					r = &ArrayReader{Elem: r}
				}
			}
			f.reader = r
			_, f.Skip = r.(SkipReader)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if f.count != nil || f.fixed >= 0 {
			f.pre = append(f.pre, f.countHook)
		}
	}

	for _, p := range fd.Params {
		if p.Name == "" || p.Reference == "" {
			return nil, errors.InvalidSchema(t.Name, "parameter needs a name and a reference")
		}
		pp := &param{name: p.Name, expr: m.expr(p.Reference)}
		if !p.Global {
			f.local = append(f.local, pp)
			continue
		}
		if f.global == nil {
			f.global = &Binding{Name: t.Name + "." + f.Name}
		}
		f.global.params = append(f.global.params, pp)
	}
	if len(f.local) > 0 {
		f.post = append(f.post, f.localHook)
	}
	if f.global != nil {
		f.post = append(f.post, f.globalHook)
	}
	return f, nil
}

func (m *Module) count(typeName string, f *Field, c any) error {
	switch v := c.(type) {
	case nil:
		return nil
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 0, 64); err == nil {
			f.fixed = n
		} else {
			f.count = m.expr(v)
			return nil
		}
	default:
		n, ok := eval.ToInt(v)
		if !ok {
			return errors.InvalidSchema(typeName, fmt.Sprintf("count must be an integer or expression, got %T", c))
		}
		f.fixed = n
	}
	if f.fixed < 0 {
		return errors.InvalidSchema(typeName, fmt.Sprintf("negative count %d", f.fixed))
	}
	return nil
}

func (m *Module) selector(typeName string, sd *SelectionDecl) (*Selector, error) {
	if sd.Selector == "" {
		return nil, errors.InvalidSchema(typeName, "selection has no selector")
	}
	sel := &Selector{expr: m.expr(sd.Selector), mapping: make(map[any]Reader)}
	bind := func(owner *Module, entries map[any]string) error {
		for key, name := range entries {
			key, name := mappingKey(key), name
			err := owner.resolveType(name, typeName, "selection", func(e entry) error {
				r, err := owner.instantiate(e, typeName, &FieldDecl{Name: "selection", Type: name})
				if err != nil {
					return err
				}
				sel.add(key, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := bind(m, sd.Mapping); err != nil {
		return nil, err
	}
	if sd.MappingName != "" {
		err := m.resolveMapping(sd.MappingName, typeName, func(mp *mapping) error {
			return bind(mp.module, mp.entries)
		})
		if err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// mappingKey accepts integer discriminants written as strings.
func mappingKey(k any) any {
	if s, ok := k.(string); ok {
		if n, err := strconv.ParseInt(s, 0, 64); err == nil {
			return n
		}
	}
	return k
}

func (m *Module) transform(typeName string, td *TransformDecl) (Transform, error) {
	if !td.IsParse() {
		if td.Context == "" || td.For == "" || td.Do == "" {
			return nil, errors.InvalidSchema(typeName, "call transform needs transform, for and do")
		}
		return &callTransform{context: m.expr(td.Context), operands: m.expr(td.For), method: td.Do}, nil
	}
	if td.Parse == "" {
		return nil, errors.InvalidSchema(typeName, "parse transform has no source")
	}
	mach, err := m.machine(td.Machine)
	if err != nil {
		return nil, err
	}
	x := &parseTransform{source: m.expr(td.Parse), machine: mach}
	if td.With != "" {
		x.with = m.expr(td.With)
	}
	return x, nil
}

func (m *Module) machine(states []StateDecl) (*machine.Machine, error) {
	if len(states) == 0 {
		return nil, errors.InvalidSchema("", "parse transform has no states")
	}
	mach := machine.New()
	for _, sd := range states {
		if _, err := mach.Add(sd.Name); err != nil {
			return nil, err
		}
	}
	for _, sd := range states {
		st := mach.Lookup(sd.Name)
		if sd.Default != nil {
			a, err := m.action(mach, sd.Name, sd.Default, false)
			if err != nil {
				return nil, err
			}
			st.Default = a
		}
		for i := range sd.Actions {
			a, err := m.action(mach, sd.Name, &sd.Actions[i], true)
			if err != nil {
				return nil, err
			}
			st.Actions = append(st.Actions, a)
		}
	}
	return mach, nil
}

func (m *Module) action(mach *machine.Machine, state string, ad *ActionDecl, guarded bool) (machine.Action, error) {
	a := machine.Action{Call: ad.Do, Op: machine.OpStall}
	if guarded {
		if ad.On == "" {
			return a, stateError(state, "guarded action has no condition")
		}
		a.Cond = guard(m.expr(ad.On))
		a.Op = machine.OpNext
	}
	if ad.Action != "" {
		op, err := machine.ParseOp(ad.Action)
		if err != nil {
			return a, stateError(state, "%v", err)
		}
		a.Op = op
	}
	if ad.Push != nil {
		next := mach.Lookup(ad.Push.Next)
		if next == nil {
			return a, stateError(state, "push to unknown state %q", ad.Push.Next)
		}
		a.Push = &machine.Push{Next: next, With: ad.Push.With, Pop: ad.Push.Pop}
	}
	return a, nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
