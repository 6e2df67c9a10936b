package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ziadkadry99/clinrag/internal/converter"
	"github.com/ziadkadry99/clinrag/internal/index"
	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/rag"
	"github.com/ziadkadry99/clinrag/internal/registry"
)

type documentResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Uploaded string `json:"uploaded_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func docResponse(doc *registry.Document) documentResponse {
	return documentResponse{
		ID:       doc.ID,
		Filename: doc.Filename,
		Format:   doc.Format,
		Status:   string(doc.Status),
		Reason:   doc.FailureReason,
		Uploaded: doc.UploadedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// handleUpload accepts a multipart document upload and kicks off
// asynchronous ingestion. The response carries the id to poll.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload")
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "empty file")
		return
	}

	format := converter.DetectFormat(header.Filename, raw)
	if format == "" {
		writeError(w, http.StatusUnsupportedMediaType, "could not detect a supported document format")
		return
	}

	doc := &registry.Document{
		ID:       uuid.NewString(),
		Filename: header.Filename,
		Format:   format,
		Raw:      raw,
	}
	if err := s.registry.Create(r.Context(), doc); err != nil {
		log.Printf("server: registering upload: %v", err)
		writeError(w, http.StatusInternalServerError, "storing upload")
		return
	}

	// Ingestion outlives the request.
	go func(id string) {
		if err := s.pipeline.Run(s.ingestContext(), id); err != nil {
			log.Printf("server: ingest %s: %v", id, err)
		}
	}(doc.ID)

	writeJSON(w, http.StatusAccepted, docResponse(doc))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.registry.List(r.Context())
	if err != nil {
		log.Printf("server: listing documents: %v", err)
		writeError(w, http.StatusInternalServerError, "listing documents")
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, docResponse(&docs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.registry.Get(r.Context(), id)
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		log.Printf("server: reading document %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "reading document")
		return
	}
	writeJSON(w, http.StatusOK, docResponse(doc))
}

// handleDeleteDocument removes a document and its index entries. The
// operation is idempotent: unknown and already deleted ids return 204.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.registry.Get(r.Context(), id)
	if errors.Is(err, registry.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		log.Printf("server: reading document %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "reading document")
		return
	}

	switch doc.Status {
	case registry.StatusDeleted:
		w.WriteHeader(http.StatusNoContent)
	case registry.StatusIndexed:
		if err := s.pipeline.Delete(r.Context(), id); err != nil {
			log.Printf("server: deleting document %s: %v", id, err)
			writeError(w, http.StatusServiceUnavailable, "removing index entries")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusConflict, "document is still processing")
	}
}

type queryRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp, err := s.answerer.Answer(r.Context(), rag.Query{
		Question:   req.Question,
		DocumentID: req.DocumentID,
		TopK:       req.TopK,
	})
	if err != nil {
		writeGenerationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSearch is the debug retrieval endpoint: raw ranked chunks, no
// generation.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	topK := 0
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		topK = n
	}

	var filter *index.Filter
	if docID := r.URL.Query().Get("document_id"); docID != "" {
		filter = &index.Filter{DocumentID: docID}
	}

	results, err := s.searcher.Search(r.Context(), q, filter, topK)
	if err != nil {
		if errors.Is(err, index.ErrBackendUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "search backend unavailable")
			return
		}
		log.Printf("server: search: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []index.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

// writeGenerationError maps a failed generation to a status code without
// leaking the underlying provider error.
func writeGenerationError(w http.ResponseWriter, err error) {
	var genErr *rag.GenerationError
	if !errors.As(err, &genErr) {
		log.Printf("server: query: %v", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	log.Printf("server: generation: %v", genErr)
	switch genErr.Kind {
	case llm.KindRateLimited:
		writeError(w, http.StatusTooManyRequests, "model is rate limited, try again later")
	case llm.KindTimeout:
		writeError(w, http.StatusGatewayTimeout, "model timed out")
	case llm.KindAuthInvalid:
		writeError(w, http.StatusBadGateway, "model credentials rejected")
	default:
		writeError(w, http.StatusBadGateway, "model request failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
