// Package postgres is the relational Datastore. Pages are deduplicated by a
// partial unique index on complete rows, and the aggregation trigger is
// claimed with a conditional UPDATE so only one writer ever wins it.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Lllllllleong/forensicdocumentflow/internal/models"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var _ ports.Datastore = (*Store)(nil)

type Store struct {
	db *DB
}

func New(db *DB) *Store {
	return &Store{db: db}
}

func notFound(id string) error {
	return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) (string, error) {
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, file_hash, status, total_pages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, doc.Filename, doc.FileHash, doc.Status, doc.TotalPages, createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create master document: %w", err)
	}
	return id, nil
}

const documentColumns = `id, filename, file_hash, status, doc_type, processing_lane, total_pages,
	pages_complete, aggregation_triggered, archive_path, error_details, created_at, updated_at`

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	var updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id).Scan(
		&d.ID, &d.Filename, &d.FileHash, &d.Status, &d.DocType, &d.ProcessingLane, &d.TotalPages,
		&d.PagesComplete, &d.AggregationTriggered, &d.ArchivePath, &d.ErrorDetails, &d.CreatedAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	d.UpdatedAt = updatedAt.Time
	return &d, nil
}

// exec runs a single-row document update and maps a missing row to ErrNotFound.
func (s *Store) exec(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *Store) SetDocumentLane(ctx context.Context, id, docType, lane string) error {
	return s.exec(ctx, id, `
		UPDATE documents SET doc_type = $2, processing_lane = $3, updated_at = NOW()
		WHERE id = $1`, id, docType, lane)
}

func (s *Store) SetDocumentStatus(ctx context.Context, id, status, details string) error {
	return s.exec(ctx, id, `
		UPDATE documents SET status = $2,
			error_details = CASE WHEN $3 = '' THEN error_details ELSE $3 END,
			updated_at = NOW()
		WHERE id = $1`, id, status, details)
}

func (s *Store) MarkArchived(ctx context.Context, id, status, archivePath string) error {
	return s.exec(ctx, id, `
		UPDATE documents SET status = $2, archive_path = $3, updated_at = NOW()
		WHERE id = $1`, id, status, archivePath)
}

// claimTrigger flips aggregation_triggered only on the transition that opens
// the barrier. At most one concurrent caller sees a row affected.
func claimTrigger(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET aggregation_triggered = TRUE, updated_at = NOW()
		WHERE id = $1
		  AND NOT aggregation_triggered
		  AND total_pages > 0
		  AND pages_complete >= total_pages`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) FinalizeSplit(ctx context.Context, id string, totalPages int) (models.Completion, error) {
	var c models.Completion
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE documents SET total_pages = $2, status = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING pages_complete, total_pages`, id, totalPages, models.StatusProcessing,
		).Scan(&c.PagesComplete, &c.TotalPages)
		if err == sql.ErrNoRows {
			return notFound(id)
		}
		if err != nil {
			return err
		}
		c.Trigger, err = claimTrigger(ctx, tx, id)
		return err
	})
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to finalize split for %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) CompletePage(ctx context.Context, page *models.Page) (models.Completion, error) {
	data, err := json.Marshal(page.ExtractedData)
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to encode extracted data: %w", err)
	}
	elements := models.ReportingOf(page.ExtractedData).Elements
	createdAt := page.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var c models.Completion
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		// Lock the document row so counter reads below are serialized per document.
		err := tx.QueryRowContext(ctx,
			`SELECT pages_complete, total_pages FROM documents WHERE id = $1 FOR UPDATE`, page.DocID,
		).Scan(&c.PagesComplete, &c.TotalPages)
		if err == sql.ErrNoRows {
			return notFound(page.DocID)
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO pages (doc_id, page_index, status, extracted_data, elements_captured,
				gcs_json_path, gcs_markdown_path, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (doc_id, page_index) WHERE status = 'complete' DO NOTHING`,
			page.DocID, page.PageIndex, models.PageComplete, data, pq.Array(elements),
			page.JSONPath, page.MarkdownPath, createdAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			c.Counted = true
			err := tx.QueryRowContext(ctx, `
				UPDATE documents SET pages_complete = pages_complete + 1, updated_at = NOW()
				WHERE id = $1
				RETURNING pages_complete`, page.DocID,
			).Scan(&c.PagesComplete)
			if err != nil {
				return err
			}
		}
		c.Trigger, err = claimTrigger(ctx, tx, page.DocID)
		return err
	})
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to record page %d of %s: %w", page.PageIndex, page.DocID, err)
	}
	return c, nil
}

func (s *Store) ReleaseTrigger(ctx context.Context, id string) error {
	return s.exec(ctx, id, `
		UPDATE documents SET aggregation_triggered = FALSE, updated_at = NOW()
		WHERE id = $1`, id)
}

func (s *Store) RecordPageError(ctx context.Context, docID string, pageIndex int, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (doc_id, page_index, status, error_message)
		VALUES ($1, $2, $3, $4)`, docID, pageIndex, models.PageError, message)
	if err != nil {
		return fmt.Errorf("failed to record error for page %d of %s: %w", pageIndex, docID, err)
	}
	return nil
}

func (s *Store) ListPages(ctx context.Context, docID string) ([]models.Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, page_index, status, extracted_data, gcs_json_path, gcs_markdown_path, created_at
		FROM pages
		WHERE doc_id = $1 AND status = $2
		ORDER BY page_index`, docID, models.PageComplete)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages for %s: %w", docID, err)
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		var p models.Page
		var data []byte
		if err := rows.Scan(&p.DocID, &p.PageIndex, &p.Status, &data, &p.JSONPath, &p.MarkdownPath, &p.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &p.ExtractedData); err != nil {
				return nil, fmt.Errorf("failed to decode page %d of %s: %w", p.PageIndex, docID, err)
			}
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *Store) InsertRecords(ctx context.Context, collection string, records []models.Record) error {
	if !slices.Contains(models.LaneCollections, collection) {
		return fmt.Errorf("unknown collection %q", collection)
	}
	if len(records) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (doc_id, data) VALUES ($1, $2)`, pq.QuoteIdentifier(collection))
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			docID, _ := r["doc_id"].(string)
			if docID == "" {
				return errors.New("record is missing doc_id")
			}
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, docID, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) LatestRestrictions(ctx context.Context) (map[string]any, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM legal_documents
		WHERE data->>'document_type' = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, models.RestrictionsDocumentType).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query restrictions: %w", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("failed to decode restrictions: %w", err)
	}
	return map[string]any{
		"restrictions":          rec["restrictions"],
		"financial_obligations": rec["financial_obligations"],
	}, true, nil
}
