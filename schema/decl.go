package schema

// RecordDecl declares a record type.
type RecordDecl struct {
	Selection  *SelectionDecl
	Name       string
	Fields     []FieldDecl
	Transforms []TransformDecl
}

// FieldDecl declares one field.
//
// Count is an integer literal or an expression string. A field with a count
// whose reader does not consume counts itself becomes an array of that
// reader. Set declares a computed field evaluated from Value.
type FieldDecl struct {
	Count  any
	Name   string
	Type   string
	Value  string
	Of     string
	Params []ParamDecl
	Set    bool
}

// ParamDecl binds a reader parameter to an expression. Local params are
// evaluated against the sibling fields right after the read; global params
// against the flattened root once decoding finishes.
type ParamDecl struct {
	Name      string
	Reference string
	Global    bool
}

// SelectionDecl dispatches on Selector. Mapping maps discriminants to type
// names; MappingName refers to a mapping registered by a plugin.
type SelectionDecl struct {
	Mapping     map[any]string
	Selector    string
	MappingName string
}

// TransformDecl is either a call transform (For, Do) or a parse transform
// (Parse, With, Machine) applied to Context.
type TransformDecl struct {
	Context string
	For     string
	Do      string
	Parse   string
	With    string
	Machine []StateDecl
}

// IsParse reports whether the declaration is a parse transform.
func (d TransformDecl) IsParse() bool { return d.Parse != "" || len(d.Machine) > 0 }

// StateDecl declares a machine state. The first state is the start state.
type StateDecl struct {
	Default *ActionDecl
	Name    string
	Actions []ActionDecl
}

// ActionDecl declares one action. On is the guard; Action is one of next,
// stall, stop or pop and defaults to next, or to stall for a default action.
type ActionDecl struct {
	Push   *PushDecl
	On     string
	Do     string
	Action string
}

// PushDecl enters state Next, optionally deriving the child context with With
// and handing it back with Pop.
type PushDecl struct {
	Next string
	With string
	Pop  string
}
