// Package services holds the business logic behind each deployable function:
// the OCR pipeline, page registration, conversion dispatch, the conversion
// worker and the field-extraction webhook.
package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/atelierdocs/docuflow/internal/store"
)

// DocumentStore is the slice of the document repository the services need.
// Satisfied by *store.DocumentRepository.
type DocumentStore interface {
	Create(ctx context.Context, doc *store.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*store.Document, error)
	GetByFilePath(ctx context.Context, filePath string) (*store.Document, error)
	SaveProgress(ctx context.Context, id uuid.UUID, pages store.ExtractedText) error
	Finalize(ctx context.Context, id uuid.UUID, pages store.ExtractedText, totalPages int) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	Complete(ctx context.Context, id uuid.UUID) error
	ApplyExtractedFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}

// PageStore is satisfied by *store.PageRepository.
type PageStore interface {
	Create(ctx context.Context, page *store.DocumentPage) error
	SetConversionStatus(ctx context.Context, id uuid.UUID, status store.ConversionStatus) error
	SetConverted(ctx context.Context, id uuid.UUID, pngPath string) error
}

// JobStore is satisfied by *store.JobRepository.
type JobStore interface {
	Create(ctx context.Context, job *store.ConversionJob) error
	ListPending(ctx context.Context, limit int) ([]store.ConversionJob, error)
	MarkDispatched(ctx context.Context, id uuid.UUID) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	Complete(ctx context.Context, id uuid.UUID, outputPath string) error
}

// ReferenceStore is satisfied by *store.ReferenceRepository.
type ReferenceStore interface {
	GetLiaison(ctx context.Context, id uuid.UUID) (*store.Liaison, error)
	GetAtelier(ctx context.Context, id uuid.UUID) (*store.Atelier, error)
}

// BlobBucket is the blob-store surface the services need. Satisfied by
// *blob.Bucket.
type BlobBucket interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}
