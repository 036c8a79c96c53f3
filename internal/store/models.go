// Package store provides database models and repositories for the document
// processing service.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentSector identifies the production sector a document belongs to.
type DocumentSector string

const (
	SectorSAT          DocumentSector = "SAT"
	SectorEmbarquement DocumentSector = "Embarquement"
	SectorCable        DocumentSector = "Cable"
)

// DocumentType identifies the kind of document that was uploaded.
type DocumentType string

const (
	TypeQualite    DocumentType = "Qualité"
	TypeMesures    DocumentType = "Mesures"
	TypeProduction DocumentType = "Production"
)

// DocumentStatus represents the processing lifecycle of a document.
// Happy-path transitions are monotonic: pending -> processing -> completed.
// Any step may instead transition to error, which is terminal.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusError      DocumentStatus = "error"
)

// ConversionStatus represents the PDF-to-PNG conversion state of a page or job.
type ConversionStatus string

const (
	ConversionPending    ConversionStatus = "pending"
	ConversionProcessing ConversionStatus = "processing"
	ConversionCompleted  ConversionStatus = "completed"
	ConversionError      ConversionStatus = "error"
)

// PageText is the OCR result recorded for a single page. Failed pages carry
// an error marker in Text and no debug image path.
type PageText struct {
	Text           string `json:"text"`
	DebugImagePath string `json:"debugImagePath,omitempty"`
}

// ExtractedText maps page keys ("page_1", "page_2", ...) to their OCR
// results. It is stored as a JSON column on the documents table.
type ExtractedText map[string]PageText

// PageKey returns the extracted-text key for a 1-based page number.
func PageKey(pageNumber int) string {
	return fmt.Sprintf("page_%d", pageNumber)
}

// Value implements driver.Valuer so the map can be written to a JSON column.
func (t ExtractedText) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for reading the JSON column back.
func (t *ExtractedText) Scan(src interface{}) error {
	if src == nil {
		*t = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("extracted_text: cannot scan %T", src)
	}
	return json.Unmarshal(b, t)
}

// Document is the master record for one uploaded PDF and its processing state.
type Document struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	FileName       string         `json:"file_name" db:"file_name"`
	FilePath       string         `json:"file_path" db:"file_path"`
	Sector         DocumentSector `json:"sector" db:"sector"`
	DocumentType   DocumentType   `json:"document_type" db:"document_type"`
	Status         DocumentStatus `json:"status" db:"status"`
	OCRStatus      *string        `json:"ocr_status,omitempty" db:"ocr_status"`
	OCRError       *string        `json:"ocr_error,omitempty" db:"ocr_error"`
	TotalPages     *int           `json:"total_pages,omitempty" db:"total_pages"`
	ExtractedText  ExtractedText  `json:"extracted_text,omitempty" db:"extracted_text"`
	Processed      bool           `json:"processed" db:"processed"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty" db:"processed_at"`
	OCRCompletedAt *time.Time     `json:"ocr_completed_at,omitempty" db:"ocr_completed_at"`
	AtelierID      *uuid.UUID     `json:"atelier_id,omitempty" db:"atelier_id"`
	LiaisonID      *uuid.UUID     `json:"liaison_id,omitempty" db:"liaison_id"`
	ClientVisible  bool           `json:"client_visible" db:"client_visible"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// DocumentPage is one page of a document registered for PNG conversion.
type DocumentPage struct {
	ID                  uuid.UUID        `json:"id" db:"id"`
	DocumentID          uuid.UUID        `json:"document_id" db:"document_id"`
	PageNumber          int              `json:"page_number" db:"page_number"`
	ImagePath           string           `json:"image_path" db:"image_path"`
	TextContent         *string          `json:"text_content,omitempty" db:"text_content"`
	PNGConversionStatus ConversionStatus `json:"png_conversion_status" db:"png_conversion_status"`
	PNGPath             *string          `json:"png_path,omitempty" db:"png_path"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
}

// ConversionJob is a unit of work requesting PDF-page-to-PNG conversion by
// the external conversion service. Attempts increases monotonically on each
// dispatch; errored jobs are not requeued automatically.
type ConversionJob struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	PageID       uuid.UUID        `json:"page_id" db:"page_id"`
	InputPath    string           `json:"input_path" db:"input_path"`
	OutputPath   string           `json:"output_path" db:"output_path"`
	Status       ConversionStatus `json:"status" db:"status"`
	Attempts     int              `json:"attempts" db:"attempts"`
	ErrorMessage *string          `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

// Liaison is a reference entity used to group documents by cable liaison.
type Liaison struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Atelier is a reference entity identifying which workshop produced a document.
type Atelier struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Profile is a user profile row used for role-based access.
type Profile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ClientLiaison links a client profile to the liaisons it may see.
type ClientLiaison struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProfileID uuid.UUID `json:"profile_id" db:"profile_id"`
	LiaisonID uuid.UUID `json:"liaison_id" db:"liaison_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ValidSector reports whether s is one of the recognized document sectors.
func ValidSector(s DocumentSector) bool {
	switch s {
	case SectorSAT, SectorEmbarquement, SectorCable:
		return true
	}
	return false
}

// ValidDocumentType reports whether t is one of the recognized document types.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case TypeQualite, TypeMesures, TypeProduction:
		return true
	}
	return false
}
