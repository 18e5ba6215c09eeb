package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/insightloom/internal/apperr"
	"github.com/KaramelBytes/insightloom/internal/table"
	"golang.org/x/text/encoding/charmap"
)

type csvParser struct{}

func (csvParser) CanParse(filename string) bool {
	return hasExt(filename, ".csv")
}

func (csvParser) Parse(name string, content []byte) (*table.Table, error) {
	text, _, err := DecodeText(content)
	if err != nil {
		return nil, err
	}
	return readCSV(name, text, sniffDelimiter(text))
}

// Encoding names the character set a CSV upload was decoded with.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "iso-8859-1"
)

// DecodeText returns content as UTF-8. Bytes that are not valid UTF-8 are
// decoded once more as Latin-1 before giving up.
func DecodeText(content []byte) (string, Encoding, error) {
	b := content
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		b = b[3:]
	}
	if utf8.Valid(b) {
		return string(b), EncodingUTF8, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", "", apperr.Wrap(apperr.DecodeError, "file is neither UTF-8 nor Latin-1", err)
	}
	return string(out), EncodingLatin1, nil
}

func readCSV(name, text string, delim rune) (*table.Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.New(apperr.DecodeError, name+" is empty")
		}
		return nil, apperr.Wrap(apperr.DecodeError, "read header", err)
	}
	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, apperr.Wrap(apperr.DecodeError, fmt.Sprintf("read row %d", len(records)+1), err)
		}
		records = append(records, rec)
	}
	return table.New(name, header, records), nil
}

// sniffDelimiter picks the most frequent of ',', ';' and tab on the first line,
// ignoring quoted sections. Comma wins ties.
func sniffDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	counts := map[rune]int{}
	inQuote := false
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuote = !inQuote
		case !inQuote && (ch == ',' || ch == ';' || ch == '\t'):
			counts[ch]++
		}
	}
	best := ','
	for _, d := range []rune{';', '\t'} {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}
