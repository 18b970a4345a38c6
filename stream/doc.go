// Package stream provides seekable cursors over bytes and over decoded elements.
//
// Two interfaces cover every source the decoder works with:
//
//	Stream     byte-addressed: Fixed, Sub, Combined
//	Sequence   element-addressed: Record (fixed-size elements), Serial (variable-size elements)
//
// Reads never fail on out-of-range requests. They return as much data as is
// available, possibly nothing, and leave the position clamped to [0, Len].
// Callers that need strict bounds compare the returned length to the request.
// Sequence methods only return errors raised by the element Decoder.
//
// A Serial stream keeps a sparse checkpoint index of element byte offsets so
// that seeking to element i replays at most Every elements once the index
// covers i:
//
//	s := stream.NewSerial(src, dec, 16)
//	s.Seek(1000, io.SeekStart)   // first pass builds checkpoints
//	s.Seek(990, io.SeekStart)    // restarts from checkpoint 976
//
// Streams are mutable cursor state and must not be shared between goroutines.
package stream
