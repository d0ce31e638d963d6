package chunker

import (
	"fmt"
	"strings"

	"docrag/internal/domain"
)

// Default window parameters, in characters.
const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Split cuts text into windows of size characters, each starting size-overlap
// characters after the previous one, until a window would start past the end
// of the text. Trailing windows may be shorter than size, so a text of L
// characters yields ceil(L/(size-overlap)) chunks. Offsets count Unicode code
// points, so a window never splits a multi-byte character. Blank text yields
// no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk size %d with overlap %d", domain.ErrInvalidInput, size, overlap)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	runes := []rune(text)
	n := len(runes)
	stride := size - overlap
	chunks := make([]string, 0, (n+stride-1)/stride)
	for start := 0; start < n; start += stride {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// Window is a sliding-window chunker with a fixed size and overlap.
type Window struct {
	size    int
	overlap int
}

// NewWindow validates the window parameters. A zero size selects DefaultSize.
func NewWindow(size, overlap int) (*Window, error) {
	if size == 0 {
		size = DefaultSize
	}
	if size < 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk size %d with overlap %d", domain.ErrInvalidInput, size, overlap)
	}
	return &Window{size: size, overlap: overlap}, nil
}

func (w *Window) Chunk(text string) ([]string, error) {
	return Split(text, w.size, w.overlap)
}

// Whole keeps each document as a single chunk. It is used when chunking is switched off.
type Whole struct{}

func (Whole) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []string{text}, nil
}

var (
	_ domain.Chunker = (*Window)(nil)
	_ domain.Chunker = Whole{}
)
