package chunker

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

const threeParagraphs = `The patient was referred for a comprehensive evaluation. Initial intake was completed in March. Family history was reviewed in detail during the first session.

Cognitive testing showed average performance across most domains. Working memory scores were slightly below the normative range. Attention measures were consistent with parent and teacher reports.

The care team recommended a structured follow-up plan. School accommodations were discussed with the family. A re-evaluation was scheduled for the next academic year.`

func TestSplitDeterministic(t *testing.T) {
	s := New(160, 40)

	first := s.Split(threeParagraphs)
	second := s.Split(threeParagraphs)

	if !reflect.DeepEqual(first, second) {
		t.Error("identical input and configuration must yield identical chunks")
	}
}

func TestSplitNonEmptyProducesChunks(t *testing.T) {
	s := New(100, 20)

	if got := s.Split("short note"); len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got := s.Split("   \n\n  "); got != nil {
		t.Errorf("blank input should produce no chunks, got %d", len(got))
	}
}

func TestSplitThreeParagraphScenario(t *testing.T) {
	maxSize, overlap := 200, 60
	s := New(maxSize, overlap)

	chunks := s.Split(threeParagraphs)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	source := []rune(threeParagraphs)
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > maxSize {
			t.Errorf("chunk %d exceeds max size: %d > %d", i, n, maxSize)
		}
		if c.Seq != i {
			t.Errorf("chunk %d has seq %d", i, c.Seq)
		}
		if string(source[c.Start:c.End]) != c.Text {
			t.Errorf("chunk %d offsets do not match its text", i)
		}
	}

	// Consecutive chunks share boundary text within the overlap budget.
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if cur.Start >= prev.End {
			continue // boundary landed on a unit too large to re-include
		}
		shared := prev.End - cur.Start
		if shared > overlap {
			t.Errorf("chunks %d/%d share %d runes, more than overlap %d", i-1, i, shared, overlap)
		}
		if !strings.HasSuffix(prev.Text, string(source[cur.Start:prev.End])) {
			t.Errorf("overlap text of chunks %d/%d does not match", i-1, i)
		}
	}
}

func TestSplitSentencePacking(t *testing.T) {
	// Many short sentences in one paragraph force sentence-level units.
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("This is a plain sentence about the visit. ")
	}
	s := New(150, 50)

	chunks := s.Split(b.String())
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start >= chunks[i-1].End {
			t.Errorf("chunks %d/%d do not overlap", i-1, i)
		}
	}
}

func TestSplitHardCut(t *testing.T) {
	maxSize, overlap := 100, 20
	s := New(maxSize, overlap)

	long := strings.Repeat("x", 250) // no separators at all
	chunks := s.Split(long)

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > maxSize {
			t.Errorf("chunk %d exceeds max size: %d", i, n)
		}
	}
	// Hard cuts carry exactly the configured overlap.
	for i := 1; i < len(chunks); i++ {
		if shared := chunks[i-1].End - chunks[i].Start; shared != overlap {
			t.Errorf("chunks %d/%d share %d runes, want exactly %d", i-1, i, shared, overlap)
		}
	}
}

func TestSplitGuards(t *testing.T) {
	s := New(0, -5)
	if s.maxSize != DefaultMaxChunkSize {
		t.Errorf("expected default max size, got %d", s.maxSize)
	}
	if s.overlap != 0 {
		t.Errorf("expected overlap clamped to 0, got %d", s.overlap)
	}

	s = New(100, 100)
	if s.overlap != 25 {
		t.Errorf("expected overlap clamped to maxSize/4, got %d", s.overlap)
	}
}
