package indexer

import "strings"

const (
	defaultChunkLines   = 80
	defaultChunkOverlap = 10
)

// Chunk is one slice of a file, line-aligned.
type Chunk struct {
	Index     int
	StartLine int // 1-based, inclusive
	EndLine   int
	Content   string
}

// Chunker splits file content into overlapping line windows. Line
// alignment keeps chunk boundaries stable across small edits, which
// keeps point ids stable too.
type Chunker struct {
	lines   int
	overlap int
}

func NewChunker(lines, overlap int) *Chunker {
	if lines <= 0 {
		lines = defaultChunkLines
	}
	if overlap < 0 || overlap >= lines {
		overlap = defaultChunkOverlap
	}
	return &Chunker{lines: lines, overlap: overlap}
}

func (c *Chunker) Chunk(content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	var chunks []Chunk

	step := c.lines - c.overlap
	for start := 0; start < len(lines); start += step {
		end := start + c.lines
		if end > len(lines) {
			end = len(lines)
		}

		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, Chunk{
				Index:     len(chunks),
				StartLine: start + 1,
				EndLine:   end,
				Content:   text,
			})
		}

		if end == len(lines) {
			break
		}
	}

	return chunks
}
