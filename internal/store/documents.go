package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const documentColumns = `id, file_name, file_path, sector, document_type, status,
	ocr_status, ocr_error, total_pages, extracted_text, processed, processed_at,
	ocr_completed_at, atelier_id, liaison_id, client_visible, created_at, updated_at`

// documentFieldColumns whitelists the business-field columns the
// field-extraction webhook may write. Anything else in the payload is dropped.
var documentFieldColumns = map[string]bool{
	"activity_type":        true,
	"amorce_number":        true,
	"cable_diameter":       true,
	"cable_type":           true,
	"cote":                 true,
	"cuve":                 true,
	"equipment_number":     true,
	"extremite_inf_number": true,
	"extremite_number":     true,
	"extremite_sup_number": true,
	"fibers":               true,
	"length_number":        true,
	"machine":              true,
	"metrage":              true,
	"plan_type":            true,
	"plan_version":         true,
	"recette":              true,
	"scenario":             true,
	"section_number":       true,
	"segment":              true,
}

// DocumentRepository handles CRUD for the documents table.
type DocumentRepository struct {
	db DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document row. Uploads always start as pending.
func (r *DocumentRepository) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt

	query := `
		INSERT INTO documents (id, file_name, file_path, sector, document_type,
			status, atelier_id, liaison_id, client_visible, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.FileName, doc.FilePath, doc.Sector, doc.DocumentType,
		doc.Status, doc.AtelierID, doc.LiaisonID, doc.ClientVisible,
		doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetByID retrieves a document by ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByFilePath retrieves a document by its blob key. Used by the
// storage-event trigger to map an uploaded object back to its row.
func (r *DocumentRepository) GetByFilePath(ctx context.Context, filePath string) (*Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE file_path = $1`, documentColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, filePath))
}

// SaveProgress writes the accumulated per-page results and keeps the document
// in processing. Called after every page so a crash leaves partial results
// visible instead of losing the run.
func (r *DocumentRepository) SaveProgress(ctx context.Context, id uuid.UUID, pages ExtractedText) error {
	query := `
		UPDATE documents
		SET extracted_text = $2, status = $3, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, pages, StatusProcessing)
}

// Finalize records the terminal happy-path state after all pages processed.
func (r *DocumentRepository) Finalize(ctx context.Context, id uuid.UUID, pages ExtractedText, totalPages int) error {
	query := `
		UPDATE documents
		SET extracted_text = $2, status = $3, ocr_status = $3,
			ocr_completed_at = now(), total_pages = $4, processed = true,
			processed_at = now(), updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, pages, StatusCompleted, totalPages)
}

// MarkError records a fatal document-level failure. Error is terminal.
func (r *DocumentRepository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE documents
		SET status = $2, ocr_status = $2, ocr_error = $3, processed = false,
			updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, StatusError, message)
}

// Complete promotes a document to completed without touching extracted text.
// Used by the status-check endpoint once OCR has finished.
func (r *DocumentRepository) Complete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE documents
		SET status = $2, ocr_status = $2, ocr_completed_at = now(), updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, StatusCompleted)
}

// ApplyExtractedFields writes webhook-extracted business fields onto the
// document and marks it completed. Unknown columns are rejected upstream;
// this guards again so a repository caller can never smuggle arbitrary SQL.
func (r *DocumentRepository) ApplyExtractedFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if !documentFieldColumns[name] {
			return fmt.Errorf("extracted field %q is not a known document column", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	set := make([]string, 0, len(names)+2)
	args := []interface{}{id}
	for _, name := range names {
		args = append(args, fields[name])
		set = append(set, fmt.Sprintf("%s = $%d", name, len(args)))
	}
	set = append(set, "status = 'completed'", "processed_at = now()", "updated_at = now()")

	query := fmt.Sprintf(`UPDATE documents SET %s WHERE id = $1`, strings.Join(set, ", "))
	return r.exec(ctx, query, args...)
}

func (r *DocumentRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) scanOne(row *sql.Row) (*Document, error) {
	doc := &Document{}
	err := row.Scan(
		&doc.ID, &doc.FileName, &doc.FilePath, &doc.Sector, &doc.DocumentType,
		&doc.Status, &doc.OCRStatus, &doc.OCRError, &doc.TotalPages,
		&doc.ExtractedText, &doc.Processed, &doc.ProcessedAt, &doc.OCRCompletedAt,
		&doc.AtelierID, &doc.LiaisonID, &doc.ClientVisible,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}
