package schema

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the logger for schema construction and decoding. Debug
// entries cover module registration, record declaration, forward reference
// resolution, selector dispatch, global binding resolution and parse
// transforms. It discards everything until SetLogger is called.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger routes schema events to l under the name "schema". A nil l
// restores the no-op logger. Call it before building or decoding schemas.
func SetLogger(l *zap.Logger) {
	if l == nil {
		logger = zap.NewNop()
		return
	}
	logger = l.Named("schema")
}
