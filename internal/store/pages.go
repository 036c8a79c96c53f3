package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PageRepository handles CRUD for the document_pages table.
type PageRepository struct {
	db DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db DB) *PageRepository {
	return &PageRepository{db: db}
}

// Create inserts a page row. New pages start with a pending conversion.
func (r *PageRepository) Create(ctx context.Context, page *DocumentPage) error {
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	if page.PNGConversionStatus == "" {
		page.PNGConversionStatus = ConversionPending
	}
	page.CreatedAt = time.Now()

	query := `
		INSERT INTO document_pages (id, document_id, page_number, image_path,
			png_conversion_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		page.ID, page.DocumentID, page.PageNumber, page.ImagePath,
		page.PNGConversionStatus, page.CreatedAt,
	)
	return err
}

// GetByID retrieves a page by ID.
func (r *PageRepository) GetByID(ctx context.Context, id uuid.UUID) (*DocumentPage, error) {
	query := `
		SELECT id, document_id, page_number, image_path, text_content,
			png_conversion_status, png_path, created_at
		FROM document_pages WHERE id = $1
	`
	page := &DocumentPage{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&page.ID, &page.DocumentID, &page.PageNumber, &page.ImagePath,
		&page.TextContent, &page.PNGConversionStatus, &page.PNGPath, &page.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// ListByDocument returns all pages of a document in page order.
func (r *PageRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]DocumentPage, error) {
	query := `
		SELECT id, document_id, page_number, image_path, text_content,
			png_conversion_status, png_path, created_at
		FROM document_pages WHERE document_id = $1
		ORDER BY page_number ASC
	`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []DocumentPage
	for rows.Next() {
		var page DocumentPage
		if err := rows.Scan(
			&page.ID, &page.DocumentID, &page.PageNumber, &page.ImagePath,
			&page.TextContent, &page.PNGConversionStatus, &page.PNGPath, &page.CreatedAt,
		); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// SetConversionStatus updates the PNG conversion state of a page.
func (r *PageRepository) SetConversionStatus(ctx context.Context, id uuid.UUID, status ConversionStatus) error {
	query := `
		UPDATE document_pages SET png_conversion_status = $2 WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, status)
	return err
}

// SetConverted records a finished conversion together with the PNG blob key.
func (r *PageRepository) SetConverted(ctx context.Context, id uuid.UUID, pngPath string) error {
	query := `
		UPDATE document_pages
		SET png_conversion_status = $2, png_path = $3
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, ConversionCompleted, pngPath)
	return err
}
