package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is a document's position in its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConverted Status = "converted"
	StatusIndexed   Status = "indexed"
	StatusFailed    Status = "failed"
	StatusDeleted   Status = "deleted"
)

var (
	// ErrNotFound is returned when no document exists for the given id.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidTransition is returned for a status change the lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// validTransitions enumerates the allowed lifecycle edges.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConverted, StatusFailed},
	StatusConverted: {StatusIndexed, StatusFailed},
	StatusIndexed:   {StatusDeleted},
}

func canTransition(from, to Status) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Document is a registered upload and its conversion state.
type Document struct {
	ID             string
	Filename       string
	Format         string
	Status         Status
	FailureReason  string
	Raw            []byte
	NormalizedText string
	UploadedAt     time.Time
	UpdatedAt      time.Time
}

// Create inserts a new document in pending state.
func (r *Registry) Create(ctx context.Context, doc *Document) error {
	now := time.Now().UTC()
	doc.Status = StatusPending
	doc.UploadedAt = now
	doc.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, format, status, raw, uploaded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.Format, doc.Status, doc.Raw, doc.UploadedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns the document with the given id.
func (r *Registry) Get(ctx context.Context, id string) (*Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, filename, format, status, failure_reason, raw, normalized_text, uploaded_at, updated_at
		FROM documents WHERE id = ?`, id)

	var doc Document
	err := row.Scan(&doc.ID, &doc.Filename, &doc.Format, &doc.Status, &doc.FailureReason,
		&doc.Raw, &doc.NormalizedText, &doc.UploadedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", id, err)
	}
	return &doc, nil
}

// List returns all documents, newest first, without raw bytes.
func (r *Registry) List(ctx context.Context) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, format, status, failure_reason, uploaded_at, updated_at
		FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Format, &doc.Status,
			&doc.FailureReason, &doc.UploadedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetConverted stores the normalized text and moves the document to
// converted. NormalizedText is immutable once written.
func (r *Registry) SetConverted(ctx context.Context, id, normalizedText string) error {
	return r.transition(ctx, id, StatusConverted, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE documents SET normalized_text = ? WHERE id = ?`, normalizedText, id)
		return err
	})
}

// SetIndexed marks the document as fully searchable.
func (r *Registry) SetIndexed(ctx context.Context, id string) error {
	return r.transition(ctx, id, StatusIndexed, nil)
}

// SetFailed records a classified failure reason. Allowed from pending
// (conversion failure) and converted (indexing failure).
func (r *Registry) SetFailed(ctx context.Context, id, reason string) error {
	return r.transition(ctx, id, StatusFailed, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE documents SET failure_reason = ? WHERE id = ?`, reason, id)
		return err
	})
}

// SetDeleted marks an indexed document deleted and drops its payloads.
func (r *Registry) SetDeleted(ctx context.Context, id string) error {
	return r.transition(ctx, id, StatusDeleted, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE documents SET raw = NULL, normalized_text = '' WHERE id = ?`, id)
		return err
	})
}

// transition applies a status change after validating the lifecycle edge.
// The optional extra function runs in the same transaction.
func (r *Registry) transition(ctx context.Context, id string, to Status, extra func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var from Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = ?`, id).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading status for %s: %w", id, err)
	}

	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s for document %s", ErrInvalidTransition, from, to, id)
	}

	if extra != nil {
		if err := extra(tx); err != nil {
			return fmt.Errorf("updating document %s: %w", id, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		to, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating status for %s: %w", id, err)
	}

	return tx.Commit()
}
