package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"docrag/internal/domain"
)

// Recursive splits on paragraph, line and word separators before falling back
// to raw characters, keeping chunks near size characters with the given overlap.
// Unlike Window it does not guarantee fixed start offsets.
type Recursive struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursive(size, overlap int) (*Recursive, error) {
	if size == 0 {
		size = DefaultSize
	}
	if size < 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk size %d with overlap %d", domain.ErrInvalidInput, size, overlap)
	}
	return &Recursive{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}, nil
}

func (r *Recursive) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return r.splitter.SplitText(text)
}

var _ domain.Chunker = (*Recursive)(nil)
