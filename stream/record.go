package stream

import "io"

// Record is a Sequence of fixed-size elements over a byte Stream.
type Record struct {
	src  Stream
	dec  Decoder
	size int64
	pos  int64
}

// NewRecord creates a Record stream whose elements occupy size bytes each.
func NewRecord(src Stream, dec Decoder, size int64) *Record {
	if size <= 0 {
		size = 1
	}
	return &Record{src: src, dec: dec, size: size}
}

// ElementSize returns the encoded size of one element.
func (r *Record) ElementSize() int64 { return r.size }

func (r *Record) count() int64 { return r.src.Len() / r.size }

func (r *Record) Len() (int64, error) { return r.count(), nil }

func (r *Record) Pos() int64 { return r.pos }

func (r *Record) Seek(offset int64, whence int) (int64, error) {
	n := r.count()
	r.pos = clamp(target(r.pos, offset, whence, n), n)
	return r.pos, nil
}

func (r *Record) Read(n int) ([]any, error) {
	var out []any
	total := r.count()
	for len(out) < n && r.pos < total {
		r.src.Seek(r.pos*r.size, io.SeekStart)
		v, err := r.dec.Decode(r.src)
		if err != nil {
			return out, err
		}
		out = append(out, v)
		r.pos++
	}
	return out, nil
}

// Find scans from the first element and returns the index and value of the
// first element matching pred, or -1 when none does. The cursor is left after
// the match, or at the end.
func (r *Record) Find(pred func(any) bool) (int64, any, error) {
	r.pos = 0
	for {
		items, err := r.Read(1)
		if err != nil {
			return -1, nil, err
		}
		if len(items) == 0 {
			return -1, nil, nil
		}
		if pred(items[0]) {
			return r.pos - 1, items[0], nil
		}
	}
}
