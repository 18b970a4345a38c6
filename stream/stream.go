package stream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Stream is a seekable cursor over bytes.
type Stream interface {
	// Seek moves the cursor using io.SeekStart, io.SeekCurrent or io.SeekEnd
	// semantics and returns the clamped position.
	Seek(offset int64, whence int) int64
	// Read returns up to n bytes from the cursor and advances past them.
	Read(n int) []byte
	Len() int64
	Pos() int64
}

// Sequence is a seekable cursor over decoded elements. Positions and lengths
// are in element units.
type Sequence interface {
	Seek(offset int64, whence int) (int64, error)
	Read(n int) ([]any, error)
	Len() (int64, error)
	Pos() int64
}

// Decoder decodes one element at the cursor of s, leaving the cursor after it.
type Decoder interface {
	Decode(s Stream) (any, error)
}

// Measurer reports the encoded size of the element at the cursor of s
// without fully decoding it. The cursor position afterwards is unspecified.
type Measurer interface {
	Measure(s Stream) (int64, error)
}

// Resetter is implemented by streams that can rewind to their start.
type Resetter interface {
	Reset()
}

// ShortReadError reports fewer bytes available than a fixed-width read needs.
type ShortReadError struct {
	Offset int64
	Want   int
	Got    int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read at 0x%X: want %d bytes, got %d", e.Offset, e.Want, e.Got)
}

// ReadUint reads a little-endian unsigned integer of width 1, 2, 4 or 8 bytes.
func ReadUint(s Stream, width int) (uint64, error) {
	at := s.Pos()
	b := s.Read(width)
	if len(b) < width {
		return 0, &ShortReadError{Offset: at, Want: width, Got: len(b)}
	}
	switch width {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case 8:
		return binary.LittleEndian.Uint64(b), nil
	}
	return 0, fmt.Errorf("unsupported integer width %d", width)
}

// ReadFull reads exactly n bytes or reports a ShortReadError.
func ReadFull(s Stream, n int) ([]byte, error) {
	at := s.Pos()
	b := s.Read(n)
	if len(b) < n {
		return b, &ShortReadError{Offset: at, Want: n, Got: len(b)}
	}
	return b, nil
}

// target computes the unclamped destination of a seek.
func target(pos, offset int64, whence int, length int64) int64 {
	switch whence {
	case io.SeekCurrent:
		return pos + offset
	case io.SeekEnd:
		return length + offset
	default:
		return offset
	}
}

func clamp(pos, length int64) int64 {
	if pos > length {
		pos = length
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}
