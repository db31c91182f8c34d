// Package chunker splits plain text into overlapping fixed-size windows.
package chunker

import (
	"fmt"
	"strconv"

	"github.com/ternarybob/edgarsignals/internal/models"
)

const (
	// DefaultSize is the window size in characters
	DefaultSize = 2000
	// DefaultOverlap is the number of characters shared by consecutive windows
	DefaultOverlap = 200
)

// Chunker produces deterministic chunks with IDs c0, c1, ...
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Overlap must be smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a chunker with the 2000/200 window
func Default() *Chunker {
	return &Chunker{size: DefaultSize, overlap: DefaultOverlap}
}

// Chunk splits text using the default window
func Chunk(text string) []models.Chunk {
	return Default().Chunk(text)
}

// Chunk splits text into windows [i*(size-overlap), i*(size-overlap)+size) clipped to the
// text length. Positions are counted in characters, not bytes.
func (c *Chunker) Chunk(text string) []models.Chunk {
	if text == "" {
		return []models.Chunk{}
	}

	runes := []rune(text)
	step := c.size - c.overlap
	chunks := make([]models.Chunk, 0, len(runes)/step+1)

	for start, i := 0, 0; start < len(runes); start, i = start+step, i+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, models.Chunk{
			ChunkID: "c" + strconv.Itoa(i),
			Text:    string(runes[start:end]),
		})
	}

	return chunks
}
