// Package parser turns uploaded bytes into an in-memory table. The parser is
// chosen from the file extension, case-insensitively.
package parser

import (
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/apperr"
	"github.com/KaramelBytes/insightloom/internal/table"
)

// Parser defines a tabular format implementation.
type Parser interface {
	CanParse(filename string) bool
	Parse(name string, content []byte) (*table.Table, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

// Parse selects a parser from filename and decodes content.
// Unknown extensions fail with apperr.UnsupportedFormat; bytes the selected
// parser cannot read fail with apperr.DecodeError.
func Parse(content []byte, filename string) (*table.Table, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	for _, p := range registry {
		if !p.CanParse(name) {
			continue
		}
		if len(content) == 0 {
			return nil, apperr.New(apperr.DecodeError, "uploaded file is empty")
		}
		t, err := p.Parse(name, content)
		if err != nil {
			if apperr.KindOf(err) != "" {
				return nil, err
			}
			return nil, apperr.Wrap(apperr.DecodeError, "could not read "+name, err)
		}
		if t.NumCols() == 0 {
			return nil, apperr.New(apperr.DecodeError, name+" has no header row")
		}
		return t, nil
	}
	return nil, apperr.Unsupported(name)
}

// Supported reports whether filename has an extension a registered parser accepts.
func Supported(filename string) bool {
	for _, p := range registry {
		if p.CanParse(filename) {
			return true
		}
	}
	return false
}

// Extensions lists accepted extensions, used for upload pickers and help text.
func Extensions() []string { return []string{".csv", ".xlsx", ".xls"} }

func hasExt(filename string, ext string) bool {
	return strings.EqualFold(filepath.Ext(filename), ext)
}

func init() {
	Register(csvParser{})
	Register(xlsxParser{})
	Register(xlsParser{})
}
