// Package bindecode decodes binary files with schemas written in YAML.
//
// A schema document declares named record types. Each record is an ordered
// list of fields, each read by a type reader: fixed-width integers, raw
// bytes, arrays, other records, computed values, or views that interpret a
// window of the input lazily. Expressions decide counts, discriminants and
// view parameters; they see the fields decoded so far.
//
// # Architecture Overview
//
//	bindecode/          Entry points and the bundled plugin set
//	├── schema/         Type arena, readers, views, sessions and decoding
//	├── document/       YAML schema documents, imports and plugin activation
//	├── stream/         Random-access byte streams and lazy sequences
//	├── eval/           Expression compiler over expr-lang
//	├── machine/        Pushdown state machine used by parse transforms
//	├── format/         Text rendering of decoded values and hex dumps
//	├── errors/         Structured error types with phase and offset
//	├── plugin/biff8/   BIFF8 record framing
//	├── plugin/ole/     OLE2 compound file sector chains
//	├── plugin/wasmfn/  Schema functions exported by WebAssembly modules
//	└── cmd/            strdump and hexdump command line tools
//
// # Quick Start
//
//	s, err := bindecode.LoadFile("schemas/ole.yaml")
//	if err != nil {
//	    return err
//	}
//	v, err := bindecode.DecodeFile(s, "book.xls")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(format.NewTable().Format("", v))
//
// A resolved schema is read-only and may decode many inputs concurrently.
package bindecode
