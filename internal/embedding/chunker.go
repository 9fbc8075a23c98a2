package embedding

import (
	"strings"
	"unicode"
)

// Chunker splits plain text into bounded, overlapping chunks for embedding.
// Splits prefer sentence boundaries, then word boundaries; a chunk never ends
// mid-word unless a single word exceeds the chunk bound. The overlap carries
// trailing context from one chunk into the next so meaning is not lost at
// chunk boundaries.
type Chunker struct {
	maxChars     int
	overlapChars int
}

// NewChunker creates a chunker with the given bounds, both in runes.
func NewChunker(maxChars, overlapChars int) *Chunker {
	return &Chunker{
		maxChars:     maxChars,
		overlapChars: overlapChars,
	}
}

// Chunk splits text into chunks. Returns nil for empty or whitespace-only text.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.maxChars {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.maxChars
		if end >= len(runes) {
			chunk := strings.TrimSpace(string(runes[start:]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := findCut(runes, start, end)
		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		start = c.nextStart(runes, start, cut)
	}

	return chunks
}

// nextStart steps back from the cut by the overlap, then forward to the
// nearest word start so the next chunk never begins mid-word.
func (c *Chunker) nextStart(runes []rune, start, cut int) int {
	next := cut - c.overlapChars
	if next <= start {
		return cut
	}
	for next < cut && !unicode.IsSpace(runes[next-1]) {
		next++
	}
	if next >= cut {
		return cut
	}
	return next
}

// findCut finds the best split point in runes[start:end], searching backwards
// for a sentence end, then a newline, then any whitespace. Only when the span
// holds a single unbroken word does it cut at end.
func findCut(runes []rune, start, end int) int {
	if sentence := lastSentenceEnd(runes, start, end); sentence > start {
		return sentence
	}
	for i := end; i > start; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > start; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// lastSentenceEnd returns the index just past the last sentence terminator
// followed by whitespace within runes[start:end], or start when none exists.
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if !unicode.IsSpace(runes[i]) {
			continue
		}
		switch runes[i-1] {
		case '.', '!', '?':
			return i + 1
		}
	}
	return start
}
