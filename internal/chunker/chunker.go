// Package chunker splits normalized text into bounded, overlapping
// segments suitable for embedding and retrieval.
package chunker

import (
	"regexp"
	"strings"
)

// DefaultMaxChunkSize is the default chunk bound in runes.
const DefaultMaxChunkSize = 1200

// Chunk is a contiguous span of normalized text. Offsets are rune
// positions into the source text.
type Chunk struct {
	Seq   int
	Start int
	End   int
	Text  string
}

// Splitter produces deterministic chunk sequences: identical input and
// configuration always yield identical chunks.
type Splitter struct {
	maxSize int
	overlap int
}

// New creates a Splitter with the given bound and overlap, both in runes.
func New(maxSize, overlap int) *Splitter {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 4
	}
	return &Splitter{maxSize: maxSize, overlap: overlap}
}

var (
	paragraphBreak = regexp.MustCompile(`\n{2,}`)
	sentenceEnd    = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
)

// span is a unit boundary in rune offsets.
type span struct {
	start, end int
}

// Split chunks the text, preferring paragraph boundaries, then sentence
// boundaries, then hard rune cuts for units that alone exceed the bound.
// Any non-blank input produces at least one chunk.
func (s *Splitter) Split(text string) []Chunk {
	runes := []rune(text)
	units := s.segment(runes)
	if len(units) == 0 {
		return nil
	}

	var chunks []Chunk
	i := 0
	for i < len(units) {
		start := units[i].start
		j := i
		for j+1 < len(units) && units[j+1].end-start <= s.maxSize {
			j++
		}
		end := units[j].end

		chunks = append(chunks, Chunk{
			Seq:   len(chunks),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})

		if j == len(units)-1 {
			break
		}

		// Re-include trailing units of this chunk up to the overlap budget
		// so local context survives the boundary.
		next := j + 1
		for k := j; k > i; k-- {
			if end-units[k].start > s.overlap {
				break
			}
			next = k
		}
		// The overlap must leave room for new content, or the next chunk
		// would be a suffix of this one.
		if units[j+1].end-units[next].start > s.maxSize {
			next = j + 1
		}
		i = next
	}

	return chunks
}

// segment builds the ordered unit list: paragraphs where they fit,
// sentences where a paragraph is too large, hard cuts where a single
// sentence is too large. Hard-cut pieces carry the configured overlap.
func (s *Splitter) segment(runes []rune) []span {
	var units []span
	for _, p := range splitSpans(runes, paragraphBreak) {
		if p.end-p.start <= s.maxSize {
			units = append(units, p)
			continue
		}
		for _, sent := range splitSentences(runes, p) {
			if sent.end-sent.start <= s.maxSize {
				units = append(units, sent)
				continue
			}
			units = append(units, s.hardCut(sent)...)
		}
	}
	return units
}

// splitSpans splits runes on the given separator pattern, returning
// trimmed non-blank spans in rune offsets.
func splitSpans(runes []rune, sep *regexp.Regexp) []span {
	text := string(runes)
	var spans []span
	pos := 0 // rune offset
	bytePos := 0

	for _, loc := range sep.FindAllStringIndex(text, -1) {
		segRunes := len([]rune(text[bytePos:loc[0]]))
		if sp, ok := trimSpan(runes, pos, pos+segRunes); ok {
			spans = append(spans, sp)
		}
		sepRunes := len([]rune(text[loc[0]:loc[1]]))
		pos += segRunes + sepRunes
		bytePos = loc[1]
	}
	if sp, ok := trimSpan(runes, pos, len(runes)); ok {
		spans = append(spans, sp)
	}
	return spans
}

// splitSentences splits a paragraph span at sentence-ending punctuation.
func splitSentences(runes []rune, p span) []span {
	text := string(runes[p.start:p.end])
	var spans []span
	pos := p.start
	bytePos := 0

	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		endRunes := len([]rune(text[bytePos:loc[1]]))
		if sp, ok := trimSpan(runes, pos, pos+endRunes); ok {
			spans = append(spans, sp)
		}
		pos += endRunes
		bytePos = loc[1]
	}
	if sp, ok := trimSpan(runes, pos, p.end); ok {
		spans = append(spans, sp)
	}
	return spans
}

// hardCut slices an oversized unit into maxSize pieces that share exactly
// the configured overlap.
func (s *Splitter) hardCut(unit span) []span {
	step := s.maxSize - s.overlap
	var pieces []span
	for start := unit.start; start < unit.end; start += step {
		end := start + s.maxSize
		if end >= unit.end {
			pieces = append(pieces, span{start, unit.end})
			break
		}
		pieces = append(pieces, span{start, end})
	}
	return pieces
}

func trimSpan(runes []rune, start, end int) (span, bool) {
	for start < end && isSpace(runes[start]) {
		start++
	}
	for end > start && isSpace(runes[end-1]) {
		end--
	}
	if start >= end {
		return span{}, false
	}
	return span{start, end}, true
}

func isSpace(r rune) bool {
	return strings.ContainsRune(" \t\n\v\f\r", r)
}
