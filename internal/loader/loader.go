// Package loader decodes uploaded files into raw tables. The format is chosen
// by file extension through a registry of decoders.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yassinexng/datawise/internal/table"
)

// Options controls decoding.
type Options struct {
	// Delimiter forces a field separator for delimited text; 0 sniffs it.
	Delimiter rune
	// MissingTokens replaces table.DefaultMissingTokens when set.
	MissingTokens []string
	// Sheet selects a workbook sheet by name.
	Sheet string
	// SheetIndex selects a workbook sheet by 1-based position when Sheet is empty.
	SheetIndex int
	Logger     *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger.Named("loader")
}

// Decoder turns file bytes into a raw table.
type Decoder interface {
	CanDecode(filename string) bool
	Decode(data []byte, opt Options) (*table.Table, error)
}

var registry []Decoder

// Register adds a decoder to the registry.
func Register(d Decoder) {
	registry = append(registry, d)
}

// ErrUnsupported indicates a file extension no decoder accepts.
var ErrUnsupported = errors.New("unsupported file format")

// Extensions lists the accepted file extensions.
var Extensions = []string{".csv", ".tsv", ".txt", ".xlsx"}

// Load decodes data using the decoder registered for name's extension.
func Load(name string, data []byte, opt Options) (*table.Table, error) {
	for _, d := range registry {
		if d.CanDecode(name) {
			t, err := d.Decode(data, opt)
			if err != nil {
				return nil, err
			}
			opt.logger().Debug("decoded table",
				zap.String("file", filepath.Base(name)),
				zap.Int("rows", t.NumRows()),
				zap.Int("cols", t.NumCols()),
			)
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (accepted: %s)", ErrUnsupported, filepath.Ext(name), strings.Join(Extensions, ", "))
}

// LoadFile reads path and decodes it with Load.
func LoadFile(path string, opt Options) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Load(path, data, opt)
}

func hasExt(filename string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func init() {
	Register(delimitedDecoder{})
	Register(xlsxDecoder{})
}
