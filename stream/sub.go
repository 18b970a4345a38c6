package stream

import "io"

// Sub is a read-through window of a parent Stream starting at a fixed byte
// offset. Absolute positions inside the window are translated by adding the
// offset; the window never extends past the parent's end. Reads leave the
// parent cursor where they found it, so a window may be read while the
// parent is being decoded.
type Sub struct {
	parent Stream
	offset int64
	size   int64
	pos    int64
}

// NewSub creates a window of parent at offset. A negative size extends the
// window to the end of parent.
func NewSub(parent Stream, offset, size int64) *Sub {
	if offset < 0 {
		offset = 0
	}
	return &Sub{parent: parent, offset: offset, size: size}
}

// Offset returns the window start in the parent.
func (s *Sub) Offset() int64 { return s.offset }

func (s *Sub) Len() int64 {
	avail := s.parent.Len() - s.offset
	if avail < 0 {
		avail = 0
	}
	if s.size >= 0 && s.size < avail {
		return s.size
	}
	return avail
}

func (s *Sub) Pos() int64 { return s.pos }

func (s *Sub) Seek(offset int64, whence int) int64 {
	length := s.Len()
	s.pos = clamp(target(s.pos, offset, whence, length), length)
	return s.pos
}

func (s *Sub) Read(n int) []byte {
	remaining := s.Len() - s.pos
	if n <= 0 || remaining <= 0 {
		return nil
	}
	if int64(n) > remaining {
		n = int(remaining)
	}
	saved := s.parent.Pos()
	s.parent.Seek(s.offset+s.pos, io.SeekStart)
	out := s.parent.Read(n)
	s.parent.Seek(saved, io.SeekStart)
	s.pos += int64(len(out))
	return out
}

// Reset rewinds the window.
func (s *Sub) Reset() {
	s.pos = 0
}
