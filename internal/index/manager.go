// Package index owns the search engine state: schema, the write path
// with atomic per-document replace, and hybrid ranked retrieval.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/clinrag/internal/chunker"
	"github.com/ziadkadry99/clinrag/internal/embeddings"
)

const collectionName = "chunks"

// embedConcurrency bounds parallel embedding calls during one upsert.
const embedConcurrency = 4

// ErrBackendUnavailable signals that the search backend could not be
// reached, as opposed to a query with no matches.
var ErrBackendUnavailable = errors.New("search backend unavailable")

// DefaultTopK caps result counts when the caller does not provide one.
const DefaultTopK = 8

// DocumentMeta carries the parent document fields stored on each entry.
type DocumentMeta struct {
	Filename   string
	UploadedAt time.Time
}

// Filter restricts a search to a single parent document.
type Filter struct {
	DocumentID string
}

// Result is one retrieval hit. ChunkID identifies the chunk within its
// document and is stable across re-ranking.
type Result struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Seq        int       `json:"seq"`
	Text       string    `json:"text"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
	Score      float64   `json:"score"`
}

// entry is the in-memory lexical twin of a chromem document.
type entry struct {
	id         string
	documentID string
	seq        int
	text       string
	terms      map[string]struct{}
	meta       DocumentMeta
}

// docState tracks the published generation of one document.
type docState struct {
	generation string
	entryIDs   []string
	meta       DocumentMeta
}

// vectorCollection is the slice of the chromem collection the manager
// drives. *chromem.Collection satisfies it; tests substitute failing
// backends for the write path.
type vectorCollection interface {
	AddDocuments(ctx context.Context, documents []chromem.Document, concurrency int) error
	Delete(ctx context.Context, where, whereDocuments map[string]string, ids ...string) error
	Count() int
	Query(ctx context.Context, queryText string, nResults int, where, whereDocuments map[string]string) ([]chromem.Result, error)
}

// Manager implements the search index: a chromem-go vector collection
// plus an in-memory lexical corpus, both versioned per document by a
// generation pointer so replacement is atomic to readers.
type Manager struct {
	collection vectorCollection
	embedder   embeddings.Embedder
	alpha      float64

	mu        sync.RWMutex // guards published and entries
	published map[string]*docState
	entries   map[string]*entry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	genCounter uint64
}

// NewManager creates an index manager over a fresh in-memory collection.
// alpha weights vector similarity against lexical overlap in [0, 1].
func NewManager(embedder embeddings.Embedder, alpha float64) (*Manager, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	if alpha < 0 || alpha > 1 {
		alpha = 0.7
	}

	return &Manager{
		collection: col,
		embedder:   embedder,
		alpha:      alpha,
		published:  make(map[string]*docState),
		entries:    make(map[string]*entry),
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// lockFor returns the mutex serializing writes for one document.
func (m *Manager) lockFor(docID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[docID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[docID] = l
	}
	return l
}

// UpsertDocument replaces the document's entries as one logically atomic
// batch: new entries are staged under a fresh generation, the generation
// pointer flips, then the old generation is removed. A failure before the
// flip leaves the prior state fully intact.
func (m *Manager) UpsertDocument(ctx context.Context, docID string, meta DocumentMeta, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("document %s has no chunks to index", docID)
	}

	lock := m.lockFor(docID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	m.genCounter++
	gen := strconv.FormatUint(m.genCounter, 10)
	m.mu.Unlock()

	// Stage the new generation in chromem.
	docs := make([]chromem.Document, len(chunks))
	newEntries := make([]*entry, len(chunks))
	for i, c := range chunks {
		id := fmt.Sprintf("%s:%s:%d", docID, gen, c.Seq)
		docs[i] = chromem.Document{
			ID:      id,
			Content: c.Text,
			Metadata: map[string]string{
				"document_id": docID,
				"generation":  gen,
				"seq":         strconv.Itoa(c.Seq),
				"filename":    meta.Filename,
				"uploaded_at": meta.UploadedAt.Format(time.RFC3339),
			},
		}
		newEntries[i] = &entry{
			id:         id,
			documentID: docID,
			seq:        c.Seq,
			text:       c.Text,
			terms:      termSet(c.Text),
			meta:       meta,
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, embedConcurrency); err != nil {
		// Roll back whatever part of the stage landed; the generation was
		// never published, so queries never saw it.
		_ = m.collection.Delete(ctx, map[string]string{"generation": gen}, nil)
		return fmt.Errorf("%w: staging document %s: %v", ErrBackendUnavailable, docID, err)
	}

	// Publish: flip the generation pointer and swap the lexical entries.
	m.mu.Lock()
	old := m.published[docID]
	ids := make([]string, len(newEntries))
	for i, e := range newEntries {
		m.entries[e.id] = e
		ids[i] = e.id
	}
	if old != nil {
		for _, id := range old.entryIDs {
			delete(m.entries, id)
		}
	}
	m.published[docID] = &docState{generation: gen, entryIDs: ids, meta: meta}
	m.mu.Unlock()

	// Remove the superseded generation. Failures here are invisible to
	// readers because results are filtered against the pointer.
	if old != nil {
		_ = m.collection.Delete(ctx, map[string]string{
			"document_id": docID,
			"generation":  old.generation,
		}, nil)
	}

	return nil
}

// DeleteDocument removes all entries for the document. Deleting an
// absent document succeeds silently. The backend delete runs first:
// if it fails the published state stays intact, so a retry still sees
// the document and can clean up the backend entries.
func (m *Manager) DeleteDocument(ctx context.Context, docID string) error {
	lock := m.lockFor(docID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	_, ok := m.published[docID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := m.collection.Delete(ctx, map[string]string{"document_id": docID}, nil); err != nil {
		return fmt.Errorf("%w: deleting document %s: %v", ErrBackendUnavailable, docID, err)
	}

	m.mu.Lock()
	if state, ok := m.published[docID]; ok {
		for _, id := range state.entryIDs {
			delete(m.entries, id)
		}
		delete(m.published, docID)
	}
	m.mu.Unlock()
	return nil
}

// EntryCount returns the number of published entries.
func (m *Manager) EntryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// DocumentEntryCount returns the number of published entries for one document.
func (m *Manager) DocumentEntryCount(docID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.published[docID]; ok {
		return len(state.entryIDs)
	}
	return 0
}

// Search executes hybrid ranked retrieval: vector similarity combined
// with lexical overlap, top-k by combined score. Ties break toward the
// more recently uploaded document, then entry ID. A backend failure
// returns ErrBackendUnavailable, never a silently empty result.
func (m *Manager) Search(ctx context.Context, query string, filter *Filter, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	// Snapshot the published entries for deterministic scoring.
	m.mu.RLock()
	live := make(map[string]*entry, len(m.entries))
	for id, e := range m.entries {
		if filter != nil && filter.DocumentID != "" && e.documentID != filter.DocumentID {
			continue
		}
		live[id] = e
	}
	m.mu.RUnlock()

	if len(live) == 0 {
		return nil, nil
	}

	vecScores, err := m.vectorScores(ctx, query, filter, topK, len(live))
	if err != nil {
		return nil, err
	}

	scorer := newLexicalScorer(live)
	queryTerms := termSet(query)

	results := make([]Result, 0, len(live))
	for id, e := range live {
		score := m.alpha*vecScores[id] + (1-m.alpha)*scorer.score(queryTerms, e)
		results = append(results, Result{
			ChunkID:    fmt.Sprintf("%s:%d", e.documentID, e.seq),
			DocumentID: e.documentID,
			Seq:        e.seq,
			Text:       e.text,
			Filename:   e.meta.Filename,
			UploadedAt: e.meta.UploadedAt,
			Score:      score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].UploadedAt.Equal(results[j].UploadedAt) {
			return results[i].UploadedAt.After(results[j].UploadedAt)
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// vectorScores queries chromem for similarity candidates. Entries beyond
// the candidate window score zero on the vector axis; the lexical axis
// still covers them.
func (m *Manager) vectorScores(ctx context.Context, query string, filter *Filter, topK, liveCount int) (map[string]float64, error) {
	count := m.collection.Count()
	if count == 0 {
		return map[string]float64{}, nil
	}

	n := topK*4 + 8
	if n > count {
		n = count
	}
	// With a filter the candidate window cannot exceed the matching
	// entries, or the query would ask for more results than exist.
	if filter != nil && filter.DocumentID != "" && n > liveCount {
		n = liveCount
	}

	var where map[string]string
	if filter != nil && filter.DocumentID != "" {
		where = map[string]string{"document_id": filter.DocumentID}
	}

	hits, err := m.collection.Query(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		sim := float64(h.Similarity)
		if sim < 0 {
			sim = 0
		}
		scores[h.ID] = sim
	}
	return scores, nil
}
