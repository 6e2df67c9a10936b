// Package rag assembles retrieved document chunks into a token-budgeted
// prompt, calls the chat provider with retry, and extracts citations
// from the answer.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/clinrag/internal/index"
	"github.com/ziadkadry99/clinrag/internal/llm"
)

// retryBaseDelay is the first backoff interval; it doubles per attempt.
const retryBaseDelay = 500 * time.Millisecond

// Retriever is the slice of the index manager the orchestrator needs.
type Retriever interface {
	Search(ctx context.Context, query string, filter *index.Filter, topK int) ([]index.Result, error)
}

// Query is one question against the document collection.
type Query struct {
	Question string
	// DocumentID restricts retrieval to a single document when set.
	DocumentID string
	// TopK overrides the configured retrieval width when positive.
	TopK int
}

// Citation points at a chunk the answer drew on.
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Seq        int    `json:"seq"`
	Filename   string `json:"filename"`
}

// GenerationResponse is a synthesized answer with provenance.
type GenerationResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	// Degraded is set when the answer was produced without any
	// retrieved context, either no matches or the search backend down.
	Degraded bool   `json:"degraded"`
	Model    string `json:"model"`
}

// Options configures a Service.
type Options struct {
	Model       string
	TopK        int
	TokenBudget int
	MaxRetries  int
	// LLMTimeout bounds each completion attempt. A timed-out attempt
	// counts as transient and is retried like any other transport
	// failure. Zero disables the bound.
	LLMTimeout time.Duration
}

// Service is the generation orchestrator.
type Service struct {
	retriever   Retriever
	provider    llm.Provider
	model       string
	topK        int
	tokenBudget int
	maxRetries  int
	llmTimeout  time.Duration
}

// NewService wires a retriever and a chat provider into an orchestrator.
func NewService(retriever Retriever, provider llm.Provider, opts Options) *Service {
	topK := opts.TopK
	if topK <= 0 {
		topK = index.DefaultTopK
	}
	return &Service{
		retriever:   retriever,
		provider:    provider,
		model:       opts.Model,
		topK:        topK,
		tokenBudget: opts.TokenBudget,
		maxRetries:  opts.MaxRetries,
		llmTimeout:  opts.LLMTimeout,
	}
}

// Answer retrieves context for the question and synthesizes an answer.
// A search backend outage does not fail the call: the answer is produced
// without context and flagged Degraded.
func (s *Service) Answer(ctx context.Context, q Query) (*GenerationResponse, error) {
	if strings.TrimSpace(q.Question) == "" {
		return nil, fmt.Errorf("question is empty")
	}

	topK := q.TopK
	if topK <= 0 {
		topK = s.topK
	}
	var filter *index.Filter
	if q.DocumentID != "" {
		filter = &index.Filter{DocumentID: q.DocumentID}
	}

	degraded := false
	results, err := s.retriever.Search(ctx, q.Question, filter, topK)
	if err != nil {
		if !errors.Is(err, index.ErrBackendUnavailable) {
			return nil, fmt.Errorf("retrieval: %w", err)
		}
		log.Printf("rag: search backend unavailable, answering without context: %v", err)
		degraded = true
		results = nil
	}

	included := selectContext(results, s.tokenBudget)
	if len(included) == 0 {
		degraded = true
	}

	systemPrompt := answerSystemPrompt
	if len(included) == 0 {
		systemPrompt = noContextSystemPrompt
	}

	resp, err := s.complete(ctx, llm.CompletionRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: buildUserPrompt(q.Question, included)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, &GenerationError{Kind: llm.Classify(err), Err: err}
	}

	answer := strings.TrimSpace(resp.Content)
	return &GenerationResponse{
		Answer:    answer,
		Citations: extractCitations(answer, included),
		Degraded:  degraded,
		Model:     s.model,
	}, nil
}

// complete calls the provider, retrying transient failures with
// exponential backoff up to the configured ceiling. Permanent failures
// return immediately.
func (s *Service) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	delay := retryBaseDelay
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("rag: retrying completion (attempt %d/%d) after %v: %v",
				attempt, s.maxRetries, delay, lastErr)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		resp, err := s.completeOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !llm.Transient(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// completeOnce runs a single provider call under the configured
// per-attempt deadline.
func (s *Service) completeOnce(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.llmTimeout)
		defer cancel()
	}
	return s.provider.Complete(ctx, req)
}

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// extractCitations maps [n] markers in the answer back to included
// chunks. Markers outside 1..len(included) are ignored. An answer with
// no valid markers cites every included chunk, so provenance is never
// silently dropped.
func extractCitations(answer string, included []index.Result) []Citation {
	if len(included) == 0 {
		return nil
	}

	cited := make(map[int]bool)
	for _, match := range citationMarker.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(included) {
			continue
		}
		cited[n-1] = true
	}

	var out []Citation
	for i, r := range included {
		if len(cited) > 0 && !cited[i] {
			continue
		}
		out = append(out, Citation{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Seq:        r.Seq,
			Filename:   r.Filename,
		})
	}
	return out
}
