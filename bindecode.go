package bindecode

import (
	"os"
	"path/filepath"

	"github.com/wippyai/bindecode/document"
	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/plugin/biff8"
	"github.com/wippyai/bindecode/plugin/ole"
	"github.com/wippyai/bindecode/schema"
	"github.com/wippyai/bindecode/stream"
)

func init() {
	document.RegisterPlugin("biff8", biff8.Plugin)
	document.RegisterPlugin("ole", ole.Plugin)
}

// LoadFile loads the schema document at path. Imports are resolved relative
// to the document's directory.
func LoadFile(path string) (*schema.Schema, error) {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	return document.NewLoader(os.DirFS(dir)).Load(name)
}

// DecodeFile decodes the file at path with s.
func DecodeFile(s *schema.Schema, path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindIO, err, "read input")
	}
	return DecodeBytes(s, data)
}

// DecodeBytes decodes data with s.
func DecodeBytes(s *schema.Schema, data []byte) (any, error) {
	return s.Decode(stream.NewFixed(data))
}
