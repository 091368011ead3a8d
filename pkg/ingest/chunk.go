package ingest

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the maximum passage length in characters.
const DefaultChunkSize = 1000

// Chunk splits text into passages of at most maxChars characters (runes).
// Paragraphs (separated by blank lines) are packed together while they fit;
// a paragraph longer than maxChars is split on word boundaries.
func Chunk(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}

	var chunks []string
	var current strings.Builder
	size := 0

	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for _, piece := range splitWords(para, maxChars) {
			n := utf8.RuneCountInString(piece)
			if size > 0 && size+2+n > maxChars {
				flush()
			}
			if size > 0 {
				current.WriteString("\n\n")
				size += 2
			}
			current.WriteString(piece)
			size += n
		}
	}
	flush()
	return chunks
}

// splitWords breaks s into pieces no longer than maxChars runes, cutting
// between words. A single word longer than maxChars is cut hard on a rune
// boundary.
func splitWords(s string, maxChars int) []string {
	if utf8.RuneCountInString(s) <= maxChars {
		return []string{s}
	}

	var pieces []string
	var b strings.Builder
	size := 0

	emit := func() {
		if size > 0 {
			pieces = append(pieces, b.String())
			b.Reset()
			size = 0
		}
	}

	for _, word := range strings.Fields(s) {
		n := utf8.RuneCountInString(word)
		for n > maxChars {
			emit()
			cut := runeOffset(word, maxChars)
			pieces = append(pieces, word[:cut])
			word = word[cut:]
			n -= maxChars
		}
		if size > 0 && size+1+n > maxChars {
			emit()
		}
		if size > 0 {
			b.WriteByte(' ')
			size++
		}
		b.WriteString(word)
		size += n
	}
	emit()
	return pieces
}

// runeOffset returns the byte offset of the n-th rune of s.
func runeOffset(s string, n int) int {
	offset := 0
	for i := 0; i < n && offset < len(s); i++ {
		_, width := utf8.DecodeRuneInString(s[offset:])
		offset += width
	}
	return offset
}
