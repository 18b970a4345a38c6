package stream

import "io"

// Fixed is a Stream over an in-memory buffer.
type Fixed struct {
	buf []byte
	pos int64
}

// NewFixed creates a Fixed stream over buf. The buffer is not copied.
func NewFixed(buf []byte) *Fixed {
	return &Fixed{buf: buf}
}

func (f *Fixed) Seek(offset int64, whence int) int64 {
	f.pos = clamp(target(f.pos, offset, whence, f.Len()), f.Len())
	return f.pos
}

func (f *Fixed) Read(n int) []byte {
	if n <= 0 {
		return nil
	}
	end := clamp(f.pos+int64(n), f.Len())
	out := f.buf[f.pos:end]
	f.pos = end
	return out
}

func (f *Fixed) Len() int64 { return int64(len(f.buf)) }

func (f *Fixed) Pos() int64 { return f.pos }

// Reset rewinds to the start of the buffer.
func (f *Fixed) Reset() { f.pos = 0 }

// Bytes returns the whole underlying buffer.
func (f *Fixed) Bytes() []byte { return f.buf }

// Reader adapts a Stream to io.ReadSeeker.
func Reader(s Stream) io.ReadSeeker {
	return &readSeeker{s: s}
}

type readSeeker struct{ s Stream }

func (r *readSeeker) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b := r.s.Read(len(p))
	if len(b) == 0 {
		return 0, io.EOF
	}
	return copy(p, b), nil
}

func (r *readSeeker) Seek(offset int64, whence int) (int64, error) {
	return r.s.Seek(offset, whence), nil
}
