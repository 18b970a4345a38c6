package document

import (
	"io/fs"
	"path"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/schema"
)

var (
	registry   = make(map[string]schema.Plugin)
	registryMu sync.RWMutex
)

// RegisterPlugin makes a plugin available to documents by name.
// Documents activate plugins through their plugins list.
func RegisterPlugin(name string, p schema.Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = p
}

// Plugins returns the names of the registered plugins.
func Plugins() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupPlugin(name string) (schema.Plugin, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// Loader loads documents and their imports from a file system.
type Loader struct {
	fsys    fs.FS
	plugins map[string]schema.Plugin
	schema  *schema.Schema
}

// NewLoader creates a loader reading from fsys.
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, plugins: make(map[string]schema.Plugin)}
}

// Use makes a plugin available to this loader only, overriding a
// registered plugin of the same name.
func (l *Loader) Use(name string, p schema.Plugin) *Loader {
	l.plugins[name] = p
	return l
}

// Load reads the entry document and everything it imports, then resolves
// the schema. The root type is the entry document's root, or its first
// record.
func (l *Loader) Load(entry string) (*schema.Schema, error) {
	l.schema = schema.New()
	if err := l.load(path.Clean(entry), true); err != nil {
		return nil, err
	}
	if err := l.schema.Resolve(); err != nil {
		return nil, err
	}
	return l.schema, nil
}

func (l *Loader) load(name string, entry bool) error {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindIO, err, "read "+name)
	}
	doc, err := Parse(data)
	if err != nil {
		return errors.At(err, name, "")
	}

	m, created := l.schema.Module(doc.Namespace, name)
	if !created {
		Logger().Debug("import deduplicated", zap.String("source", name))
		return nil
	}
	Logger().Debug("loading document",
		zap.String("source", name),
		zap.String("namespace", doc.Namespace),
		zap.Int("records", len(doc.Records)))

	for _, pname := range doc.Plugins {
		if err := l.activate(m, pname); err != nil {
			return err
		}
	}
	for _, imp := range doc.Import {
		if err := l.load(path.Join(path.Dir(name), imp), false); err != nil {
			return err
		}
	}
	for _, rec := range doc.Records {
		d, err := rec.Decl()
		if err != nil {
			return err
		}
		if err := m.Declare(d); err != nil {
			return err
		}
	}

	if !entry {
		return nil
	}
	root := doc.Root
	if root == "" && len(doc.Records) > 0 {
		root = doc.Records[0].Name
	}
	if root != "" {
		m.SetRoot(root)
	}
	if doc.Target != "" {
		l.schema.SetTarget(doc.Target)
	}
	return nil
}

func (l *Loader) activate(m *schema.Module, name string) error {
	p, ok := l.plugins[name]
	if !ok {
		p, ok = lookupPlugin(name)
	}
	if !ok {
		return errors.NotFound(errors.PhasePlugin, "plugin", name)
	}
	if err := p(m); err != nil {
		return errors.Wrap(errors.PhasePlugin, errors.KindInvalidSchema, err, "activate plugin "+name)
	}
	Logger().Debug("plugin activated",
		zap.String("plugin", name),
		zap.String("namespace", m.Namespace))
	return nil
}
