package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/bindecode"
	"github.com/wippyai/bindecode/document"
	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/format"
	"github.com/wippyai/bindecode/plugin/wasmfn"
	"github.com/wippyai/bindecode/schema"
	"github.com/wippyai/bindecode/stream"
)

func main() {
	var (
		schemaFile  = flag.String("schema", "", "Path to the schema document")
		object      = flag.String("object", "", "Path or expression selecting what to print")
		typeName    = flag.String("type", "", "Decode with this type instead of the root")
		wasmFuncs   = flag.String("wasm", "", "WebAssembly function plugins (name=file.wasm,...)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging to stderr")
	)
	flag.Parse()

	if *schemaFile == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: strdump -schema <schema.yaml> [-object expr] [-type name] <file>")
		fmt.Fprintln(os.Stderr, "       strdump -schema <schema.yaml> -wasm name=fn.wasm <file>")
		fmt.Fprintln(os.Stderr, "       strdump -schema <schema.yaml> -i <file>  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			schema.SetLogger(logger)
			document.SetLogger(logger)
			wasmfn.SetLogger(logger)
			defer logger.Sync()
		}
	}

	ctx := context.Background()
	closers, err := registerWasm(ctx, *wasmFuncs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, m := range closers {
			m.Close(ctx)
		}
	}()

	v, err := decode(*schemaFile, *typeName, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(flag.Arg(0), v); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := dump(v, *object); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// registerWasm loads each name=file pair and registers its exports as a
// document plugin under name.
func registerWasm(ctx context.Context, spec string) ([]*wasmfn.Module, error) {
	if spec == "" {
		return nil, nil
	}
	var mods []*wasmfn.Module
	for _, pair := range strings.Split(spec, ",") {
		name, file, ok := strings.Cut(pair, "=")
		if !ok || name == "" || file == "" {
			return mods, fmt.Errorf("invalid -wasm entry %q", pair)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return mods, fmt.Errorf("read %s: %w", file, err)
		}
		m, err := wasmfn.Load(ctx, data, nil)
		if err != nil {
			return mods, fmt.Errorf("load %s: %w", file, err)
		}
		mods = append(mods, m)
		document.RegisterPlugin(name, m.Plugin())
	}
	return mods, nil
}

func decode(schemaFile, typeName, file string) (any, error) {
	s, err := bindecode.LoadFile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if typeName == "" {
		return bindecode.DecodeFile(s, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return s.DecodeType(typeName, stream.NewFixed(data))
}

func dump(v any, object string) error {
	if object != "" {
		sel, err := query(v, object)
		if err != nil {
			return err
		}
		v = sel
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(headerStyle.Render(typeOf(v)))
	}
	return format.NewTable().Fprint(os.Stdout, "", v)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))

// query selects part of a decoded value. A field path such as
// "header.items[2]" is looked up directly so records keep their shape;
// anything else is evaluated as an expression over the root fields.
func query(v any, q string) (any, error) {
	rec, ok := v.(*schema.Record)
	if !ok {
		return nil, fmt.Errorf("cannot query a %T", v)
	}
	if sel, err := rec.Lookup(q); err == nil {
		return sel, nil
	}
	expr, err := eval.NewCompiler(nil).Compile(q)
	if err != nil {
		return nil, err
	}
	return expr.Eval(rec.Env())
}

func typeOf(v any) string {
	if rec, ok := v.(*schema.Record); ok {
		return rec.Type
	}
	return fmt.Sprintf("%T", v)
}
