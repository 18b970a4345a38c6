package format

import (
	"bufio"
	"fmt"
	"io"
)

// Hexdump writes data in lines of perLine bytes. Each line starts with the
// offset of its first byte from base; bytes are grouped by four.
func Hexdump(w io.Writer, data []byte, base int64, perLine int) error {
	if perLine <= 0 {
		perLine = 16
	}
	bw := bufio.NewWriter(w)
	for i, b := range data {
		if i%perLine == 0 {
			fmt.Fprintf(bw, "%08X", base+int64(i))
		}
		if i%4 == 0 {
			bw.WriteByte(' ')
		}
		fmt.Fprintf(bw, " %02X", b)
		if i%perLine == perLine-1 {
			bw.WriteByte('\n')
		}
	}
	if len(data)%perLine != 0 {
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
