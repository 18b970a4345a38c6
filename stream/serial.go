package stream

import (
	"fmt"
	"io"
	"math"
)

// DefaultEvery is the checkpoint interval used when none is given.
const DefaultEvery = 16

// Serial is a Sequence of variable-size elements over a byte Stream.
//
// Element boundaries are only discoverable by visiting each element, so the
// stream records the byte offset of every Every-th element as it goes.
// Seeking restarts from the nearest checkpoint at or before the target, or
// continues from the current cursor when that is closer.
type Serial struct {
	src   Stream
	dec   Decoder
	every int64
	marks []int64 // marks[j] is the byte offset of element j*every
	count int64   // element count, -1 until the end has been seen
	pos   int64

	// at is the element index the byte cursor rests on, -1 when unknown.
	at     int64
	cursor int64
}

// NewSerial creates a Serial stream. An every below one uses DefaultEvery.
// If dec also implements Measurer, skipped elements are measured instead of
// decoded.
func NewSerial(src Stream, dec Decoder, every int) *Serial {
	if every < 1 {
		every = DefaultEvery
	}
	return &Serial{
		src:   src,
		dec:   dec,
		every: int64(every),
		marks: []int64{0},
		count: -1,
		at:    -1,
	}
}

// Checkpoints returns the number of recorded checkpoints.
func (s *Serial) Checkpoints() int { return len(s.marks) }

func (s *Serial) Pos() int64 { return s.pos }

// Len returns the element count, scanning to the end on first use.
func (s *Serial) Len() (int64, error) {
	if s.count >= 0 {
		return s.count, nil
	}
	if _, err := s.locate(math.MaxInt64); err != nil {
		return 0, err
	}
	return s.count, nil
}

func (s *Serial) Seek(offset int64, whence int) (int64, error) {
	var length int64
	if whence == io.SeekEnd {
		n, err := s.Len()
		if err != nil {
			return s.pos, err
		}
		length = n
	}
	t := target(s.pos, offset, whence, length)
	if t < 0 {
		t = 0
	}
	reached, err := s.locate(t)
	if err != nil {
		return s.pos, err
	}
	s.pos = reached
	return s.pos, nil
}

func (s *Serial) Read(n int) ([]any, error) {
	idx, err := s.locate(s.pos)
	if err != nil {
		return nil, err
	}
	var out []any
	for len(out) < n && !s.atEnd(idx) {
		start := s.src.Pos()
		v, err := s.dec.Decode(s.src)
		if err != nil {
			s.at = -1
			return out, err
		}
		if err := s.step(start, s.src.Pos()-start); err != nil {
			return out, err
		}
		idx++
		s.mark(idx)
		out = append(out, v)
	}
	s.rest(idx)
	s.pos = idx
	return out, nil
}

// Select returns a restartable cursor over the elements matching pred.
func (s *Serial) Select(pred func(any) bool) *Cursor {
	return &Cursor{seq: s, pred: pred, stop: -1}
}

// SelectRange returns a restartable cursor over elements [start, stop).
func (s *Serial) SelectRange(start, stop int64) *Cursor {
	return &Cursor{seq: s, start: start, next: start, stop: stop}
}

// locate positions the byte cursor at element i, or at the end when the
// stream has fewer elements, and returns the element index reached.
func (s *Serial) locate(i int64) (int64, error) {
	if s.count >= 0 && i > s.count {
		i = s.count
	}
	j := min(i/s.every, int64(len(s.marks)-1))
	idx := j * s.every
	if s.at >= idx && s.at <= i {
		idx = s.at
		s.src.Seek(s.cursor, io.SeekStart)
	} else {
		s.src.Seek(s.marks[j], io.SeekStart)
	}
	for idx < i && !s.atEnd(idx) {
		if err := s.skip(); err != nil {
			s.at = -1
			return idx, err
		}
		idx++
		s.mark(idx)
	}
	s.rest(idx)
	return idx, nil
}

// skip moves the byte cursor past the element under it.
func (s *Serial) skip() error {
	start := s.src.Pos()
	if m, ok := s.dec.(Measurer); ok {
		size, err := m.Measure(s.src)
		if err != nil {
			return err
		}
		if err := s.step(start, size); err != nil {
			return err
		}
		s.src.Seek(start+size, io.SeekStart)
		return nil
	}
	if _, err := s.dec.Decode(s.src); err != nil {
		return err
	}
	return s.step(start, s.src.Pos()-start)
}

func (s *Serial) step(start, size int64) error {
	if size <= 0 {
		return fmt.Errorf("element at 0x%X has no encoded size", start)
	}
	return nil
}

// atEnd reports whether no element starts at the cursor, recording the
// element count when the end is first reached.
func (s *Serial) atEnd(idx int64) bool {
	if s.src.Pos() < s.src.Len() {
		return false
	}
	if s.count < 0 {
		s.count = idx
	}
	return true
}

// mark records a checkpoint when idx opens a new interval.
func (s *Serial) mark(idx int64) {
	if idx%s.every == 0 && idx/s.every == int64(len(s.marks)) {
		s.marks = append(s.marks, s.src.Pos())
	}
}

func (s *Serial) rest(idx int64) {
	s.at = idx
	s.cursor = s.src.Pos()
}

// Cursor iterates over Serial elements lazily. Reset restarts it.
type Cursor struct {
	seq   *Serial
	pred  func(any) bool
	start int64
	stop  int64
	next  int64
	index int64
	item  any
	err   error
}

// Next advances to the next matching element.
func (c *Cursor) Next() bool {
	if c.err != nil {
		return false
	}
	for c.stop < 0 || c.next < c.stop {
		if _, err := c.seq.Seek(c.next, io.SeekStart); err != nil {
			c.err = err
			return false
		}
		items, err := c.seq.Read(1)
		if err != nil {
			c.err = err
			return false
		}
		if len(items) == 0 {
			return false
		}
		c.index = c.next
		c.next++
		if c.pred == nil || c.pred(items[0]) {
			c.item = items[0]
			return true
		}
	}
	return false
}

// Index returns the element index of the current match.
func (c *Cursor) Index() int64 { return c.index }

// Item returns the current match.
func (c *Cursor) Item() any { return c.item }

// Err returns the first decode error encountered.
func (c *Cursor) Err() error { return c.err }

// Reset restarts iteration from the first element of the range.
func (c *Cursor) Reset() {
	c.next = c.start
	c.item = nil
	c.err = nil
}
