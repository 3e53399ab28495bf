package syntax

import (
	"os"
	"sort"

	"github.com/pkg/errors"
)

// Source holds the text of one input file along with a line-offset table so
// that byte offsets carried on tokens and AST nodes can be converted to
// 1-based line/column pairs for diagnostics.
type Source struct {
	Path string
	Buf  []byte

	// lineStarts[i] is the byte offset of the first character of line i+1
	lineStarts []int
}

// NewSource wraps an in-memory buffer as a Source
func NewSource(path string, buf []byte) *Source {
	s := &Source{Path: path, Buf: buf}
	s.lineStarts = append(s.lineStarts, 0)
	for i, b := range buf {
		if b == '\n' {
			s.lineStarts = append(s.lineStarts, i+1)
		}
	}
	return s
}

// SourceFromFile reads a file into a Source
func SourceFromFile(path string) (*Source, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read source file")
	}

	return NewSource(path, buf), nil
}

// Locate converts a byte offset into a 1-based (line, col) pair
func (s *Source) Locate(pos int) (int, int) {
	line := sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > pos
	})
	return line, pos - s.lineStarts[line-1] + 1
}

// Text returns the source text between two byte offsets
func (s *Source) Text(pos, end int) string {
	if pos < 0 || end > len(s.Buf) || pos > end {
		return ""
	}
	return string(s.Buf[pos:end])
}
