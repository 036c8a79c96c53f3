package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atelierdocs/docuflow/internal/store"
)

// UploaderConfig holds settings for document upload.
type UploaderConfig struct {
	// ProcessorURL, when set, receives a POST {documentId} once the row
	// exists, kicking off OCR processing.
	ProcessorURL string
}

// UploadRequest carries one uploaded file and its metadata.
type UploadRequest struct {
	FileName      string
	Data          []byte
	Sector        store.DocumentSector
	DocumentType  store.DocumentType
	AtelierID     *uuid.UUID
	LiaisonID     *uuid.UUID
	ClientVisible bool
}

// UploaderFunction stores an uploaded PDF, creates its document row and
// triggers processing.
type UploaderFunction struct {
	documents       DocumentStore
	reference       ReferenceStore
	documentsBucket BlobBucket
	httpClient      *http.Client
	config          UploaderConfig
}

// NewUploader creates an UploaderFunction with explicit dependencies.
func NewUploader(documents DocumentStore, reference ReferenceStore, documentsBucket BlobBucket, httpClient *http.Client, cfg UploaderConfig) *UploaderFunction {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &UploaderFunction{
		documents:       documents,
		reference:       reference,
		documentsBucket: documentsBucket,
		httpClient:      httpClient,
		config:          cfg,
	}
}

// Process validates the upload, stores the blob under a fresh UUID key,
// creates the pending document row and asks the processor to pick it up.
func (f *UploaderFunction) Process(ctx context.Context, req UploadRequest) (*store.Document, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	if !store.ValidSector(req.Sector) {
		return nil, fmt.Errorf("unknown sector %q", req.Sector)
	}
	if !store.ValidDocumentType(req.DocumentType) {
		return nil, fmt.Errorf("unknown document type %q", req.DocumentType)
	}

	if req.LiaisonID != nil {
		liaison, err := f.reference.GetLiaison(ctx, *req.LiaisonID)
		if err != nil {
			return nil, fmt.Errorf("liaison lookup failed: %w", err)
		}
		if !liaison.Active {
			return nil, fmt.Errorf("liaison %s is inactive", liaison.Name)
		}
	}
	if req.AtelierID != nil {
		atelier, err := f.reference.GetAtelier(ctx, *req.AtelierID)
		if err != nil {
			return nil, fmt.Errorf("atelier lookup failed: %w", err)
		}
		if !atelier.Active {
			return nil, fmt.Errorf("atelier %s is inactive", atelier.Name)
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(req.FileName), "."))
	if ext == "" {
		ext = "pdf"
	}
	filePath := fmt.Sprintf("%s.%s", uuid.New(), ext)

	if err := f.documentsBucket.Upload(ctx, filePath, req.Data, "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	doc := &store.Document{
		FileName:      req.FileName,
		FilePath:      filePath,
		Sector:        req.Sector,
		DocumentType:  req.DocumentType,
		Status:        store.StatusPending,
		AtelierID:     req.AtelierID,
		LiaisonID:     req.LiaisonID,
		ClientVisible: req.ClientVisible,
	}
	if err := f.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document row: %w", err)
	}
	slog.Info("Document uploaded.", "documentId", doc.ID.String(), "filePath", filePath)

	if f.config.ProcessorURL != "" {
		if err := f.triggerProcessing(ctx, doc.ID); err != nil {
			return doc, fmt.Errorf("document stored but processing trigger failed: %w", err)
		}
	}
	return doc, nil
}

func (f *UploaderFunction) triggerProcessing(ctx context.Context, documentID uuid.UUID) error {
	payload, err := json.Marshal(map[string]string{"documentId": documentID.String()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.ProcessorURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("processor returned status %d", resp.StatusCode)
	}
	return nil
}
