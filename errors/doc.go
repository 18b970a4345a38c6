// Package errors provides structured error types for the bindecode library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the context needed to locate the offending schema rule and
// input position: record type, field path, byte offset and the offending value.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindUnmappedDiscriminant).
//		Type("Header").
//		Offset(0x40).
//		Value(3).
//		Detail("selector 0x3 not found in the mapping").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnresolvedType("Body", "File", "body")
//	err := errors.Stall("Start", 0x01, 0)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
