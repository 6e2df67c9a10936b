package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ziadkadry99/clinrag/internal/index"
	"github.com/ziadkadry99/clinrag/internal/llm"
)

type fakeRetriever struct {
	results []index.Result
	err     error
	lastK   int
	filter  *index.Filter
}

func (f *fakeRetriever) Search(ctx context.Context, query string, filter *index.Filter, topK int) ([]index.Result, error) {
	f.lastK = topK
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeProvider returns the scripted errors in order, then the answer.
type fakeProvider struct {
	errs     []error
	answer   string
	calls    int
	requests []llm.CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &llm.CompletionResponse{Content: f.answer}, nil
}

func sampleResults() []index.Result {
	ts := time.Unix(1700000000, 0)
	return []index.Result{
		{ChunkID: "doc1:0", DocumentID: "doc1", Seq: 0, Text: "The intake notes mention recurring migraines.", Filename: "intake.txt", UploadedAt: ts, Score: 0.9},
		{ChunkID: "doc1:1", DocumentID: "doc1", Seq: 1, Text: "Medication was adjusted in March.", Filename: "intake.txt", UploadedAt: ts, Score: 0.7},
		{ChunkID: "doc2:0", DocumentID: "doc2", Seq: 0, Text: "Follow-up scheduled for June.", Filename: "plan.txt", UploadedAt: ts, Score: 0.5},
	}
}

func TestAnswerWithCitations(t *testing.T) {
	retriever := &fakeRetriever{results: sampleResults()}
	provider := &fakeProvider{answer: "Migraines recur [1] and a follow-up is set [3]."}
	svc := NewService(retriever, provider, Options{Model: "gpt-4o", TopK: 8, TokenBudget: 3000})

	resp, err := svc.Answer(context.Background(), Query{Question: "What is the status?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Degraded {
		t.Error("answer with context must not be degraded")
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(resp.Citations))
	}
	if resp.Citations[0].ChunkID != "doc1:0" || resp.Citations[1].ChunkID != "doc2:0" {
		t.Errorf("wrong chunks cited: %+v", resp.Citations)
	}
	if resp.Model != "gpt-4o" {
		t.Errorf("model not reported: %q", resp.Model)
	}
}

func TestAnswerCitesAllWhenNoMarkers(t *testing.T) {
	retriever := &fakeRetriever{results: sampleResults()}
	provider := &fakeProvider{answer: "The notes describe migraines and a planned follow-up."}
	svc := NewService(retriever, provider, Options{Model: "gpt-4o", TokenBudget: 3000})

	resp, err := svc.Answer(context.Background(), Query{Question: "Summarize."})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(resp.Citations) != 3 {
		t.Errorf("an unmarked answer should cite every included chunk, got %d", len(resp.Citations))
	}
}

func TestAnswerDegradedWhenBackendDown(t *testing.T) {
	retriever := &fakeRetriever{err: index.ErrBackendUnavailable}
	provider := &fakeProvider{answer: "Nothing relevant was found in the indexed documents."}
	svc := NewService(retriever, provider, Options{Model: "gpt-4o"})

	resp, err := svc.Answer(context.Background(), Query{Question: "Anything?"})
	if err != nil {
		t.Fatalf("a search outage must not fail the call: %v", err)
	}
	if !resp.Degraded {
		t.Error("expected Degraded=true when the backend is down")
	}
	if len(resp.Citations) != 0 {
		t.Errorf("no context means no citations, got %d", len(resp.Citations))
	}
	if len(provider.requests) != 1 {
		t.Fatalf("expected one completion call, got %d", len(provider.requests))
	}
	sys := provider.requests[0].Messages[0].Content
	if !strings.Contains(sys, "No document excerpts") {
		t.Error("degraded call should use the no-context system prompt")
	}
}

func TestAnswerDegradedWhenNothingRetrieved(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &fakeProvider{answer: "Nothing relevant was found."}
	svc := NewService(retriever, provider, Options{Model: "gpt-4o"})

	resp, err := svc.Answer(context.Background(), Query{Question: "Anything?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !resp.Degraded {
		t.Error("empty retrieval must set Degraded")
	}
}

func TestAnswerRespectsTokenBudget(t *testing.T) {
	results := sampleResults()
	retriever := &fakeRetriever{results: results}
	provider := &fakeProvider{answer: "Only the top chunk matters [1]."}

	// Budget fits the first chunk only: the first text estimates to 12
	// tokens, adding the second would push past 15.
	svc := NewService(retriever, provider, Options{Model: "gpt-4o", TokenBudget: 15})

	resp, err := svc.Answer(context.Background(), Query{Question: "What recurs?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	prompt := provider.requests[0].Messages[1].Content
	if !strings.Contains(prompt, results[0].Text) {
		t.Error("top-ranked chunk missing from prompt")
	}
	if strings.Contains(prompt, results[1].Text) || strings.Contains(prompt, results[2].Text) {
		t.Error("lower-ranked chunks should have been dropped to fit the budget")
	}
	if len(resp.Citations) != 1 || resp.Citations[0].ChunkID != "doc1:0" {
		t.Errorf("citations must only reference included chunks: %+v", resp.Citations)
	}
}

func TestAnswerRetriesTransientToCeiling(t *testing.T) {
	rateLimited := &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}
	retriever := &fakeRetriever{results: sampleResults()}
	provider := &fakeProvider{errs: []error{rateLimited, rateLimited}}
	svc := NewService(retriever, provider, Options{Model: "gpt-4o", MaxRetries: 1})

	_, err := svc.Answer(context.Background(), Query{Question: "Status?"})
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if provider.calls != 2 {
		t.Errorf("expected initial attempt plus one retry, got %d calls", provider.calls)
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %T", err)
	}
	if genErr.Kind != llm.KindRateLimited {
		t.Errorf("expected rate-limited classification, got %q", genErr.Kind)
	}
}

func TestAnswerRecoversAfterTransientFailure(t *testing.T) {
	retriever := &fakeRetriever{results: sampleResults()}
	provider := &fakeProvider{
		errs:   []error{&openai.APIError{HTTPStatusCode: 503}},
		answer: "Recovered [1].",
	}
	svc := NewService(retriever, provider, Options{Model: "gpt-4o", MaxRetries: 2})

	resp, err := svc.Answer(context.Background(), Query{Question: "Status?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 calls, got %d", provider.calls)
	}
	if resp.Answer != "Recovered [1]." {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
}

func TestAnswerPermanentFailureDoesNotRetry(t *testing.T) {
	retriever := &fakeRetriever{results: sampleResults()}
	provider := &fakeProvider{errs: []error{
		&openai.APIError{HTTPStatusCode: 401, Message: "bad key"},
		&openai.APIError{HTTPStatusCode: 401, Message: "bad key"},
	}}
	svc := NewService(retriever, provider, Options{Model: "gpt-4o", MaxRetries: 3})

	_, err := svc.Answer(context.Background(), Query{Question: "Status?"})
	if err == nil {
		t.Fatal("expected failure")
	}
	if provider.calls != 1 {
		t.Errorf("auth failures must not retry, got %d calls", provider.calls)
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %T", err)
	}
	if genErr.Kind != llm.KindAuthInvalid {
		t.Errorf("expected auth-invalid classification, got %q", genErr.Kind)
	}
}

func TestAnswerScopedToDocument(t *testing.T) {
	retriever := &fakeRetriever{results: sampleResults()[:1]}
	provider := &fakeProvider{answer: "Scoped [1]."}
	svc := NewService(retriever, provider, Options{Model: "gpt-4o", TopK: 4})

	_, err := svc.Answer(context.Background(), Query{Question: "Status?", DocumentID: "doc1", TopK: 2})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if retriever.filter == nil || retriever.filter.DocumentID != "doc1" {
		t.Errorf("document filter not forwarded: %+v", retriever.filter)
	}
	if retriever.lastK != 2 {
		t.Errorf("per-query topK not forwarded, got %d", retriever.lastK)
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	svc := NewService(&fakeRetriever{}, &fakeProvider{}, Options{Model: "gpt-4o"})
	if _, err := svc.Answer(context.Background(), Query{Question: "   "}); err == nil {
		t.Error("expected an error for an empty question")
	}
}

// hangingProvider never answers; it waits for the context to expire.
type hangingProvider struct {
	calls int
}

func (h *hangingProvider) Name() string { return "hanging" }

func (h *hangingProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	h.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAnswerTimesOutHungProvider(t *testing.T) {
	retriever := &fakeRetriever{results: sampleResults()}
	provider := &hangingProvider{}
	svc := NewService(retriever, provider, Options{
		Model:       "gpt-4o",
		TokenBudget: 3000,
		LLMTimeout:  20 * time.Millisecond,
	})

	start := time.Now()
	_, err := svc.Answer(context.Background(), Query{Question: "What is the status?"})
	if err == nil {
		t.Fatal("expected an error from a hung provider")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("call was not bounded by the completion deadline, took %v", elapsed)
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Kind != llm.KindTimeout {
		t.Errorf("expected timeout kind, got %q", genErr.Kind)
	}
	if provider.calls != 1 {
		t.Errorf("expected a single attempt without retries, got %d", provider.calls)
	}
}

func TestAnswerRetriesTimedOutAttempt(t *testing.T) {
	retriever := &fakeRetriever{results: sampleResults()}
	provider := &hangingProvider{}
	svc := NewService(retriever, provider, Options{
		Model:       "gpt-4o",
		TokenBudget: 3000,
		MaxRetries:  1,
		LLMTimeout:  10 * time.Millisecond,
	})

	_, err := svc.Answer(context.Background(), Query{Question: "What is the status?"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Kind != llm.KindTimeout {
		t.Errorf("expected timeout kind, got %q", genErr.Kind)
	}
	if provider.calls != 2 {
		t.Errorf("timed-out attempt should be retried once, got %d calls", provider.calls)
	}
}
