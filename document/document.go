// Package document reads YAML schema documents and loads them, with their
// imports, into a schema.Schema.
//
// A document looks like:
//
//	namespace: demo
//	import: [common.yaml]
//	plugins: [biff8]
//	root: File
//	target: body.items
//	records:
//	  File:
//	    - field: n
//	      type: uint8
//	    - field: items
//	      type: uint16
//	      count: n
//	    - set: total
//	      value: len(items)
//
// Each record entry is a list of items, each one of field, set, transform,
// parse or selection.
package document

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/schema"
)

// Document is one schema source.
type Document struct {
	Namespace string   `yaml:"namespace"`
	Root      string   `yaml:"root"`
	Target    string   `yaml:"target"`
	Import    []string `yaml:"import"`
	Plugins   []string `yaml:"plugins"`
	Records   Records  `yaml:"records"`
}

// Records keeps record definitions in document order.
type Records []Record

// Record is one named record definition.
type Record struct {
	Name  string
	Items []Item
}

// UnmarshalYAML decodes the records mapping without losing its order.
func (r *Records) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: records must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		rec := Record{Name: node.Content[i].Value}
		if err := node.Content[i+1].Decode(&rec.Items); err != nil {
			return fmt.Errorf("record %s: %w", rec.Name, err)
		}
		*r = append(*r, rec)
	}
	return nil
}

// Item is one entry of a record definition.
type Item struct {
	Count     any        `yaml:"count"`
	Selection *Selection `yaml:"selection"`
	Field     string     `yaml:"field"`
	Set       string     `yaml:"set"`
	Type      string     `yaml:"type"`
	Value     string     `yaml:"value"`
	Of        string     `yaml:"of"`
	Transform string     `yaml:"transform"`
	For       string     `yaml:"for"`
	Do        string     `yaml:"do"`
	Parse     string     `yaml:"parse"`
	With      string     `yaml:"with"`
	Params    []Param    `yaml:"params"`
	Machine   []State    `yaml:"machine"`
}

// Param binds a reader parameter.
type Param struct {
	Name      string `yaml:"name"`
	Reference string `yaml:"reference"`
	Global    bool   `yaml:"global"`
}

// Selection dispatches on a discriminant expression.
type Selection struct {
	Selector string  `yaml:"selector"`
	Mapping  Mapping `yaml:"mapping"`
}

// Mapping is either an inline discriminant table or the name of a
// mapping registered by a plugin.
type Mapping struct {
	Table map[any]string
	Name  string
}

// UnmarshalYAML accepts a scalar name or a mapping.
func (m *Mapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		m.Name = node.Value
		return nil
	}
	return node.Decode(&m.Table)
}

// State is a parse machine state.
type State struct {
	Default *Action  `yaml:"default"`
	State   string   `yaml:"state"`
	Actions []Action `yaml:"actions"`
}

// Action is a parse machine action.
type Action struct {
	Push   *Push  `yaml:"push"`
	On     string `yaml:"on"`
	Do     string `yaml:"do"`
	Action string `yaml:"action"`
}

// Push enters a sub-parse.
type Push struct {
	Next string `yaml:"next"`
	With string `yaml:"with"`
	Pop  string `yaml:"pop"`
}

// Parse decodes a document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidSchema, err, "parse yaml")
	}
	return &doc, nil
}

// Decl converts a record definition to a schema declaration.
func (r Record) Decl() (schema.RecordDecl, error) {
	d := schema.RecordDecl{Name: r.Name}
	for i, it := range r.Items {
		kind, err := it.kind()
		if err != nil {
			return d, errors.At(errors.InvalidSchema(r.Name, err.Error()), "", fmt.Sprintf("[%d]", i))
		}
		switch kind {
		case "field", "set":
			d.Fields = append(d.Fields, it.field())
		case "transform", "parse":
			d.Transforms = append(d.Transforms, it.transform())
		case "selection":
			if d.Selection != nil {
				return d, errors.InvalidSchema(r.Name, "more than one selection")
			}
			d.Selection = &schema.SelectionDecl{
				Selector:    it.Selection.Selector,
				Mapping:     it.Selection.Mapping.Table,
				MappingName: it.Selection.Mapping.Name,
			}
		}
	}
	return d, nil
}

func (it Item) kind() (string, error) {
	var kinds []string
	for _, k := range []struct {
		name string
		set  bool
	}{
		{"field", it.Field != ""},
		{"set", it.Set != ""},
		{"transform", it.Transform != ""},
		{"parse", it.Parse != ""},
		{"selection", it.Selection != nil},
	} {
		if k.set {
			kinds = append(kinds, k.name)
		}
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("item is none of field, set, transform, parse or selection")
	case 1:
		return kinds[0], nil
	}
	return "", fmt.Errorf("item mixes %v", kinds)
}

func (it Item) field() schema.FieldDecl {
	f := schema.FieldDecl{
		Name:  it.Field,
		Type:  it.Type,
		Count: it.Count,
		Of:    it.Of,
		Value: it.Value,
	}
	if it.Set != "" {
		f.Name, f.Set = it.Set, true
	}
	for _, p := range it.Params {
		f.Params = append(f.Params, schema.ParamDecl{Name: p.Name, Reference: p.Reference, Global: p.Global})
	}
	return f
}

func (it Item) transform() schema.TransformDecl {
	if it.Parse == "" {
		return schema.TransformDecl{Context: it.Transform, For: it.For, Do: it.Do}
	}
	t := schema.TransformDecl{Parse: it.Parse, With: it.With}
	for _, st := range it.Machine {
		sd := schema.StateDecl{Name: st.State}
		if st.Default != nil {
			a := st.Default.decl()
			sd.Default = &a
		}
		for _, a := range st.Actions {
			sd.Actions = append(sd.Actions, a.decl())
		}
		t.Machine = append(t.Machine, sd)
	}
	return t
}

func (a Action) decl() schema.ActionDecl {
	d := schema.ActionDecl{On: a.On, Do: a.Do, Action: a.Action}
	if a.Push != nil {
		d.Push = &schema.PushDecl{Next: a.Push.Next, With: a.Push.With, Pop: a.Push.Pop}
	}
	return d
}
