// internal/ingest/chunker.go
package ingest

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ragline/ragline/internal/rag"
)

// SplitDocuments splits every document into overlapping chunks of at most
// chunkSize runes. Consecutive chunks from the same document share exactly
// chunkOverlap runes: each chunk starts chunkOverlap runes before the end
// of the previous one, so dropping the first chunkOverlap runes of every
// chunk after the first reassembles the document.
func SplitDocuments(documents []Document, chunkSize, chunkOverlap int) ([]rag.Chunk, error) {
	if chunkSize <= 0 {
		return nil, rag.NewConfigError("chunkSize must be greater than zero, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, rag.NewConfigError("chunkOverlap must be in [0, chunkSize), got %d with chunkSize %d", chunkOverlap, chunkSize)
	}

	var chunks []rag.Chunk
	for _, doc := range documents {
		chunks = append(chunks, splitText(doc.Name, doc.Content, chunkSize, chunkOverlap)...)
	}
	return chunks, nil
}

// splitText cuts text into chunks, preferring paragraph, then sentence,
// then word boundaries over raw character cuts. Boundary seeking only
// moves a cut earlier, never past the overlap region, so chunks never
// exceed chunkSize and always make forward progress.
func splitText(doc, text string, chunkSize, chunkOverlap int) []rag.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	// Never seek a boundary back into the overlap region; keep at least
	// half a chunk of payload so boundary seeking cannot degenerate.
	minEnd := chunkOverlap + 1
	if half := chunkSize / 2; half > minEnd {
		minEnd = half
	}

	var chunks []rag.Chunk
	start := 0
	index := 0
	for {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := seekBoundary(runes, start+minEnd, end); cut > 0 {
			end = cut
		}

		piece := string(runes[start:end])
		chunks = append(chunks, rag.Chunk{
			Doc:    doc,
			Index:  index,
			Offset: start,
			Text:   piece,
			Tokens: len(strings.Fields(piece)),
		})
		if end == len(runes) {
			break
		}
		start = end - chunkOverlap
		index++
	}
	return chunks
}

// seekBoundary looks backward from end (exclusive) for the best cut point
// at or after floor. Paragraph breaks win over sentence ends, which win
// over any whitespace. Returns 0 when no boundary exists in the window.
func seekBoundary(runes []rune, floor, end int) int {
	if floor >= end {
		return 0
	}
	wordCut := 0
	sentenceCut := 0
	for i := end - 1; i >= floor; i-- {
		r := runes[i]
		if r == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1 // cut just after a paragraph break
		}
		if sentenceCut == 0 && isSentenceEnd(r) && i+1 < end && unicode.IsSpace(runes[i+1]) {
			sentenceCut = i + 2 // include the terminator and one space
		}
		if wordCut == 0 && unicode.IsSpace(r) {
			wordCut = i + 1
		}
	}
	if sentenceCut > 0 {
		return sentenceCut
	}
	return wordCut
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Reassemble joins chunks from a single document back into the original
// text by dropping each chunk's leading overlap.
func Reassemble(chunks []rag.Chunk, chunkOverlap int) (string, error) {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c.Text)
			continue
		}
		runes := []rune(c.Text)
		if len(runes) < chunkOverlap {
			return "", fmt.Errorf("chunk %d shorter than overlap %d", i, chunkOverlap)
		}
		b.WriteString(string(runes[chunkOverlap:]))
	}
	return b.String(), nil
}
