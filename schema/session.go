package schema

import (
	"go.uber.org/zap"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/stream"
)

// Session holds the mutable state of one decode: the input and the
// instances waiting on global bindings. A Schema may serve many sessions
// concurrently; a Session is not safe for concurrent use.
type Session struct {
	schema  *Schema
	source  stream.Stream
	waiting map[*Binding][]Instance
	order   []*Binding
}

// NewSession starts a decode of src.
func (s *Schema) NewSession(src stream.Stream) *Session {
	return &Session{schema: s, source: src, waiting: make(map[*Binding][]Instance)}
}

// Source returns the session input.
func (sess *Session) Source() stream.Stream { return sess.source }

// Schema returns the schema the session decodes with.
func (sess *Session) Schema() *Schema { return sess.schema }

// Decode reads one value with r from the current position and then
// resolves the global bindings collected while reading it.
func (sess *Session) Decode(r Reader) (any, error) {
	v, err := r.Read(&Frame{Stream: sess.source, session: sess, Count: -1})
	if err != nil {
		return nil, err
	}
	if err := sess.resolve(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (sess *Session) enqueue(b *Binding, inst Instance) {
	if _, ok := sess.waiting[b]; !ok {
		sess.order = append(sess.order, b)
	}
	sess.waiting[b] = append(sess.waiting[b], inst)
}

// Pending returns the number of instances awaiting global bindings.
func (sess *Session) Pending() int {
	n := 0
	for _, insts := range sess.waiting {
		n += len(insts)
	}
	return n
}

// resolve evaluates every global binding against the flattened root and
// rebuilds its waiting instances. Resolved bindings are cleared, so a
// second call is a no-op.
func (sess *Session) resolve(root any) error {
	if len(sess.order) == 0 {
		return nil
	}
	env := flatten(root)
	order := sess.order
	sess.order = nil
	for _, b := range order {
		insts := sess.waiting[b]
		delete(sess.waiting, b)
		Logger().Debug("resolving global binding",
			zap.String("binding", b.Name),
			zap.Int("instances", len(insts)))
		values, err := evalParams(b.params, env)
		if err != nil {
			return errors.At(err, "", b.Name)
		}
		for _, inst := range insts {
			if err := setParams(inst, b.params, values); err != nil {
				return errors.At(err, "", b.Name)
			}
		}
	}
	return nil
}
