package document

import (
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/bindecode/schema"
)

func TestLoaderLogsPluginActivation(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	files := fstest.MapFS{"main.yaml": {Data: []byte("plugins: [quiet]\nrecords:\n  R:\n    - field: v\n      type: uint8\n")}}
	if _, err := NewLoader(files).Use("quiet", func(*schema.Module) error { return nil }).Load("main.yaml"); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("plugin activated").All()
	if len(entries) != 1 {
		t.Fatalf("got %d plugin activated entries, want 1", len(entries))
	}
	if entries[0].LoggerName != "document" {
		t.Errorf("LoggerName = %q, want document", entries[0].LoggerName)
	}
	if got := entries[0].ContextMap()["plugin"]; got != "quiet" {
		t.Errorf("plugin = %v, want quiet", got)
	}
}
