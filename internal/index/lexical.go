package index

import (
	"math"
	"strings"
	"unicode"
)

// tokenize lowercases and splits text into alphanumeric terms.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// termSet returns the distinct terms of a text.
func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

// lexicalScorer ranks entries by IDF-weighted term overlap with a query.
// The score is the IDF mass of the query terms an entry contains, divided
// by the total IDF mass of the query, so it is always in [0, 1].
type lexicalScorer struct {
	docCount int
	df       map[string]int // term -> number of entries containing it
}

func newLexicalScorer(entries map[string]*entry) *lexicalScorer {
	s := &lexicalScorer{df: make(map[string]int)}
	for _, e := range entries {
		s.docCount++
		for t := range e.terms {
			s.df[t]++
		}
	}
	return s
}

func (s *lexicalScorer) idf(term string) float64 {
	df := s.df[term]
	if df == 0 {
		return 0
	}
	return math.Log(1 + float64(s.docCount)/float64(df))
}

// score computes the overlap score of an entry against the query terms.
func (s *lexicalScorer) score(queryTerms map[string]struct{}, e *entry) float64 {
	var total, matched float64
	for t := range queryTerms {
		w := s.idf(t)
		total += w
		if _, ok := e.terms[t]; ok {
			matched += w
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}
