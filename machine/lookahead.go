package machine

import (
	"fmt"
	"io"

	"github.com/wippyai/bindecode/stream"
)

// Source supplies tokens in order. Read returns fewer than n tokens only at
// the end of input.
type Source interface {
	Read(n int) ([]any, error)
}

// Lookahead buffers tokens read ahead of the cursor so guards can peek at
// arbitrary distances without consuming.
type Lookahead struct {
	src      Source
	buf      []any
	consumed int64
	eof      bool
}

// NewLookahead creates a Lookahead over src.
func NewLookahead(src Source) *Lookahead {
	return &Lookahead{src: src}
}

// Peek returns the token i positions ahead of the cursor, or nil past the
// end of input.
func (la *Lookahead) Peek(i int) (any, error) {
	if i < 0 {
		return nil, fmt.Errorf("bad lookahead index %d", i)
	}
	if i >= len(la.buf) && !la.eof {
		items, err := la.src.Read(i + 1 - len(la.buf))
		if err != nil {
			return nil, err
		}
		if len(items) < i+1-len(la.buf) {
			la.eof = true
		}
		la.buf = append(la.buf, items...)
	}
	if i < len(la.buf) {
		return la.buf[i], nil
	}
	return nil, nil
}

// Next consumes the token under the cursor. It reports false at the end of input.
func (la *Lookahead) Next() (bool, error) {
	if len(la.buf) == 0 {
		if _, err := la.Peek(0); err != nil {
			return false, err
		}
		if len(la.buf) == 0 {
			return false, nil
		}
	}
	la.buf = la.buf[1:]
	la.consumed++
	return true, nil
}

// Pos returns the number of tokens consumed.
func (la *Lookahead) Pos() int64 { return la.consumed }

// SourceOf adapts the supported token carriers to a Source, rewinding
// seekable ones to their start. Byte streams yield uint8 tokens.
func SourceOf(v any) (Source, error) {
	switch s := v.(type) {
	case stream.Sequence:
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return s, nil
	case stream.Stream:
		s.Seek(0, io.SeekStart)
		return byteSource{s}, nil
	case []byte:
		return byteSource{stream.NewFixed(s)}, nil
	case []any:
		return &sliceSource{items: s}, nil
	case Source:
		return s, nil
	}
	return nil, fmt.Errorf("cannot parse tokens from %T", v)
}

type byteSource struct{ s stream.Stream }

func (b byteSource) Read(n int) ([]any, error) {
	data := b.s.Read(n)
	out := make([]any, len(data))
	for i, c := range data {
		out[i] = c
	}
	return out, nil
}

type sliceSource struct {
	items []any
	pos   int
}

func (s *sliceSource) Read(n int) ([]any, error) {
	end := min(s.pos+n, len(s.items))
	out := s.items[s.pos:end]
	s.pos = end
	return out, nil
}
