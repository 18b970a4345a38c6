package stream

import (
	"io"
	"sort"
)

// Combined concatenates child streams into one continuous address space.
// Child lengths are captured at construction.
type Combined struct {
	parts  []Stream
	starts []int64
	total  int64
	pos    int64
}

// NewCombined creates a Combined stream over parts in order.
func NewCombined(parts ...Stream) *Combined {
	c := &Combined{parts: parts, starts: make([]int64, len(parts))}
	for i, p := range parts {
		c.starts[i] = c.total
		c.total += p.Len()
	}
	return c
}

// Parts returns the number of child streams.
func (c *Combined) Parts() int { return len(c.parts) }

func (c *Combined) Len() int64 { return c.total }

func (c *Combined) Pos() int64 { return c.pos }

func (c *Combined) Seek(offset int64, whence int) int64 {
	c.pos = clamp(target(c.pos, offset, whence, c.total), c.total)
	return c.pos
}

// owner returns the index of the child containing byte pos.
func (c *Combined) owner(pos int64) int {
	i := sort.Search(len(c.starts), func(i int) bool { return c.starts[i] > pos })
	return i - 1
}

func (c *Combined) Read(n int) []byte {
	if n <= 0 {
		return nil
	}
	var out []byte
	for len(out) < n && c.pos < c.total {
		i := c.owner(c.pos)
		if i < 0 {
			break
		}
		part := c.parts[i]
		local := c.pos - c.starts[i]
		part.Seek(local, io.SeekStart)
		chunk := part.Read(min(n-len(out), int(part.Len()-local)))
		if len(chunk) == 0 {
			break
		}
		out = append(out, chunk...)
		c.pos += int64(len(chunk))
	}
	return out
}
