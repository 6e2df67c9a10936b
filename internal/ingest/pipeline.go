// Package ingest drives a document from uploaded bytes to searchable
// chunks: convert, optionally scrub, chunk, index, with lifecycle
// status recorded in the registry at each step.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ziadkadry99/clinrag/internal/anonymizer"
	"github.com/ziadkadry99/clinrag/internal/chunker"
	"github.com/ziadkadry99/clinrag/internal/converter"
	"github.com/ziadkadry99/clinrag/internal/index"
	"github.com/ziadkadry99/clinrag/internal/registry"
)

// Converter turns raw document bytes into normalized plain text.
type Converter interface {
	Convert(ctx context.Context, raw []byte, format string) (string, error)
}

// Indexer is the write side of the search index.
type Indexer interface {
	UpsertDocument(ctx context.Context, docID string, meta index.DocumentMeta, chunks []chunker.Chunk) error
	DeleteDocument(ctx context.Context, docID string) error
}

// Pipeline runs documents through conversion and indexing.
type Pipeline struct {
	registry  *registry.Registry
	converter Converter
	indexer   Indexer
	splitter  *chunker.Splitter
	anonymize bool
	// concurrency bounds how many documents process at once in RunAll.
	concurrency int
}

// Options configures a Pipeline.
type Options struct {
	Anonymize   bool
	Concurrency int
}

// NewPipeline wires the ingest stages together.
func NewPipeline(reg *registry.Registry, conv Converter, idx Indexer, splitter *chunker.Splitter, opts Options) *Pipeline {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		registry:    reg,
		converter:   conv,
		indexer:     idx,
		splitter:    splitter,
		anonymize:   opts.Anonymize,
		concurrency: concurrency,
	}
}

// Run processes one pending document end to end. Any failure marks the
// document failed with a classified reason and leaves the index without
// partial entries for it.
func (p *Pipeline) Run(ctx context.Context, docID string) error {
	doc, err := p.registry.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", docID, err)
	}
	if doc.Status != registry.StatusPending {
		return fmt.Errorf("document %s is %s, expected %s", docID, doc.Status, registry.StatusPending)
	}

	text, err := p.converter.Convert(ctx, doc.Raw, doc.Format)
	if err != nil {
		reason := failureReason(err)
		if ferr := p.registry.SetFailed(ctx, docID, reason); ferr != nil {
			log.Printf("ingest: recording failure for %s: %v", docID, ferr)
		}
		return fmt.Errorf("converting document %s: %w", docID, err)
	}

	if p.anonymize {
		text = anonymizer.Scrub(text)
	}

	if err := p.registry.SetConverted(ctx, docID, text); err != nil {
		// Best effort: without it the document would sit pending forever.
		if ferr := p.registry.SetFailed(ctx, docID, "registry-error"); ferr != nil {
			log.Printf("ingest: recording failure for %s: %v", docID, ferr)
		}
		return fmt.Errorf("storing normalized text for %s: %w", docID, err)
	}

	return p.indexConverted(ctx, docID, doc.Filename, text)
}

// Reindex rebuilds the index entries of an already indexed document from
// its stored normalized text, for example after chunking settings change.
func (p *Pipeline) Reindex(ctx context.Context, docID string) error {
	doc, err := p.registry.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", docID, err)
	}
	if doc.Status != registry.StatusIndexed {
		return fmt.Errorf("document %s is %s, expected %s", docID, doc.Status, registry.StatusIndexed)
	}

	chunks := p.splitter.Split(doc.NormalizedText)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no indexable text", docID)
	}
	meta := index.DocumentMeta{Filename: doc.Filename, UploadedAt: doc.UploadedAt}
	if err := p.indexer.UpsertDocument(ctx, docID, meta, chunks); err != nil {
		return fmt.Errorf("reindexing document %s: %w", docID, err)
	}
	return nil
}

// Delete removes a document from the index and marks it deleted. The
// index entries go first so a registry failure cannot leave searchable
// chunks for a deleted document.
func (p *Pipeline) Delete(ctx context.Context, docID string) error {
	doc, err := p.registry.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", docID, err)
	}
	if doc.Status == registry.StatusIndexed {
		if err := p.indexer.DeleteDocument(ctx, docID); err != nil {
			return fmt.Errorf("removing index entries for %s: %w", docID, err)
		}
		return p.registry.SetDeleted(ctx, docID)
	}
	return fmt.Errorf("document %s is %s and cannot be deleted", docID, doc.Status)
}

// indexConverted chunks the normalized text and publishes it. The
// document must be in converted state.
func (p *Pipeline) indexConverted(ctx context.Context, docID, filename, text string) error {
	fail := func(reason string, cause error) error {
		if ferr := p.registry.SetFailed(ctx, docID, reason); ferr != nil {
			log.Printf("ingest: recording failure for %s: %v", docID, ferr)
		}
		return fmt.Errorf("indexing document %s: %w", docID, cause)
	}

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return fail("empty-document", fmt.Errorf("no indexable text"))
	}

	doc, err := p.registry.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", docID, err)
	}
	meta := index.DocumentMeta{Filename: filename, UploadedAt: doc.UploadedAt}
	if err := p.indexer.UpsertDocument(ctx, docID, meta, chunks); err != nil {
		return fail("index-unavailable", err)
	}

	if err := p.registry.SetIndexed(ctx, docID); err != nil {
		return fmt.Errorf("marking document %s indexed: %w", docID, err)
	}
	return nil
}

// BatchResult collects per-document outcomes of a bulk run.
type BatchResult struct {
	Succeeded int
	Errors    []error
}

// ProgressFunc is called after each document completes, successful or not.
type ProgressFunc func(done, total int, docID string)

// RunAll processes many documents concurrently. Distinct documents run
// in parallel up to the configured concurrency; each document is still
// strictly sequential internally.
func (p *Pipeline) RunAll(ctx context.Context, docIDs []string, onProgress ProgressFunc) *BatchResult {
	total := len(docIDs)
	result := &BatchResult{}
	if total == 0 {
		return result
	}

	sem := make(chan struct{}, p.concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup
	done := 0

	for _, docID := range docIDs {
		select {
		case <-ctx.Done():
			mu.Lock()
			result.Errors = append(result.Errors, fmt.Errorf("ingest %s: %w", docID, ctx.Err()))
			done++
			if onProgress != nil {
				onProgress(done, total, docID)
			}
			mu.Unlock()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := p.Run(ctx, id)

			mu.Lock()
			if err != nil {
				result.Errors = append(result.Errors, err)
			} else {
				result.Succeeded++
			}
			done++
			if onProgress != nil {
				onProgress(done, total, id)
			}
			mu.Unlock()
		}(docID)
	}

	wg.Wait()
	return result
}

// failureReason maps a conversion error to the registry's stored reason.
func failureReason(err error) string {
	var convErr *converter.ConversionError
	if errors.As(err, &convErr) {
		return string(convErr.Reason)
	}
	return "conversion-failed"
}
