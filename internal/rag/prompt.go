package rag

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/clinrag/internal/index"
)

const answerSystemPrompt = `You are a careful assistant answering questions about a clinician's document collection.

Rules:
- Answer ONLY from the numbered excerpts provided. Do not use outside knowledge.
- Cite every claim with the excerpt number in square brackets, like [1] or [2].
- If the excerpts do not contain the answer, say so plainly instead of guessing.
- Keep answers short and factual.`

const noContextSystemPrompt = `You are a careful assistant answering questions about a clinician's document collection.

No document excerpts are available for this question. Tell the user that
nothing relevant was found in the indexed documents and do not attempt an
answer from outside knowledge.`

// estimateTokens approximates token count as characters divided by four.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// selectContext keeps whole chunks from the top rank down until the
// token budget is exhausted. Chunks are never split.
func selectContext(results []index.Result, budget int) []index.Result {
	if budget <= 0 {
		return results
	}
	var included []index.Result
	used := 0
	for _, r := range results {
		cost := estimateTokens(r.Text)
		if used+cost > budget {
			break
		}
		included = append(included, r)
		used += cost
	}
	return included
}

// buildUserPrompt renders the numbered excerpt block followed by the
// question. Excerpt numbers are 1-based and match citation markers.
func buildUserPrompt(question string, included []index.Result) string {
	var b strings.Builder
	if len(included) > 0 {
		b.WriteString("Document excerpts:\n\n")
		for i, r := range included {
			fmt.Fprintf(&b, "[%d] (from %s)\n%s\n\n", i+1, r.Filename, r.Text)
		}
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
