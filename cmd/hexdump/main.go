package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/format"
	"github.com/wippyai/bindecode/stream"
)

func main() {
	var (
		pos     = flag.String("pos", "0", "Start offset (expression, e.g. 0x200 + 4*16)")
		size    = flag.Int("size", 256, "Number of bytes to dump")
		perLine = flag.Int("line", 16, "Bytes per line")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: hexdump [-pos offset] [-size n] [-line n] <file>")
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *pos, *size, *perLine); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(file, posExpr string, size, perLine int) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	start, err := offset(posExpr)
	if err != nil {
		return err
	}
	return dump(os.Stdout, stream.NewFixed(data), start, size, perLine)
}

func offset(src string) (int64, error) {
	e, err := eval.NewCompiler(nil).Compile(src)
	if err != nil {
		return 0, fmt.Errorf("pos: %w", err)
	}
	n, err := e.Int(nil)
	if err != nil {
		return 0, fmt.Errorf("pos: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("pos: negative offset %d", n)
	}
	return n, nil
}

func dump(w io.Writer, s stream.Stream, start int64, size, perLine int) error {
	base := s.Seek(start, io.SeekStart)
	return format.Hexdump(w, s.Read(size), base, perLine)
}
