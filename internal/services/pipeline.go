package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/atelierdocs/docuflow/internal/config"
	"github.com/atelierdocs/docuflow/internal/ocr"
	"github.com/atelierdocs/docuflow/internal/pdf"
	"github.com/atelierdocs/docuflow/internal/store"
)

// ProcessorConfig holds the tunables of the OCR pipeline. The delays exist
// to stay under the OCR provider's rate limits; tests zero them out.
type ProcessorConfig struct {
	// PageLimit caps how many pages of a document are processed. Pages
	// beyond the limit are silently skipped.
	PageLimit int

	// OCRAttempts is the total number of tries per page, including the first.
	OCRAttempts int

	// RetryDelay separates failed OCR attempts on the same page.
	RetryDelay time.Duration

	// PageDelay separates consecutive pages.
	PageDelay time.Duration
}

// DefaultProcessorConfig mirrors the production settings: at most 10 pages,
// 3 OCR attempts per page, 5 seconds between attempts and between pages.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PageLimit:   10,
		OCRAttempts: 3,
		RetryDelay:  5 * time.Second,
		PageDelay:   5 * time.Second,
	}
}

// LoadProcessorConfig reads overrides from the environment on top of the
// defaults.
func LoadProcessorConfig() ProcessorConfig {
	cfg := DefaultProcessorConfig()
	if v, err := strconv.Atoi(config.GetEnv("OCR_PAGE_LIMIT", "")); err == nil && v > 0 {
		cfg.PageLimit = v
	}
	if v, err := strconv.Atoi(config.GetEnv("OCR_ATTEMPTS", "")); err == nil && v > 0 {
		cfg.OCRAttempts = v
	}
	if v, err := time.ParseDuration(config.GetEnv("OCR_RETRY_DELAY", "")); err == nil {
		cfg.RetryDelay = v
	}
	if v, err := time.ParseDuration(config.GetEnv("OCR_PAGE_DELAY", "")); err == nil {
		cfg.PageDelay = v
	}
	return cfg
}

// ProcessorFunction runs the per-document OCR pipeline: download the PDF,
// extract each page, OCR it with bounded retries, and persist incremental
// progress so a concurrent reader always sees a prefix of completed pages.
type ProcessorFunction struct {
	documents       DocumentStore
	documentsBucket BlobBucket
	pagesBucket     BlobBucket
	provider        ocr.Provider
	config          ProcessorConfig
}

// NewProcessor creates a ProcessorFunction with explicit dependencies.
func NewProcessor(documents DocumentStore, documentsBucket, pagesBucket BlobBucket, provider ocr.Provider, cfg ProcessorConfig) *ProcessorFunction {
	return &ProcessorFunction{
		documents:       documents,
		documentsBucket: documentsBucket,
		pagesBucket:     pagesBucket,
		provider:        provider,
		config:          cfg,
	}
}

// ProcessResult summarizes one pipeline run.
type ProcessResult struct {
	Pages         int                 `json:"pages"`
	ExtractedText store.ExtractedText `json:"extracted_text"`
}

// Process runs the pipeline for one document. Per-page OCR failures are
// recorded as error markers and do not abort the run; document-level
// failures (missing row, download error) are fatal and leave the document in
// the error state before the error propagates.
func (f *ProcessorFunction) Process(ctx context.Context, documentID uuid.UUID) (*ProcessResult, error) {
	logCtx := slog.With("documentId", documentID.String(), "provider", f.provider.Name())
	logCtx.Info("Starting document processing.")

	doc, err := f.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, f.fail(ctx, logCtx, documentID, "failed to load document", err)
	}

	pdfBuf, err := f.documentsBucket.Download(ctx, doc.FilePath)
	if err != nil {
		return nil, f.fail(ctx, logCtx, documentID, "failed to download PDF", err)
	}

	pageCount, err := pdf.PageCount(pdfBuf)
	if err != nil {
		return nil, f.fail(ctx, logCtx, documentID, "failed to parse PDF", err)
	}

	processable := pageCount
	if processable > f.config.PageLimit {
		processable = f.config.PageLimit
		logCtx.Warn("Page count exceeds limit, extra pages skipped.",
			"pageCount", pageCount, "limit", f.config.PageLimit)
	}
	logCtx.Info("PDF downloaded.", "pageCount", pageCount, "processing", processable)

	extracted := make(store.ExtractedText, processable)
	for i := 0; i < processable; i++ {
		pageNumber := i + 1
		pageLog := logCtx.With("page", pageNumber)

		text, debugPath, pageErr := f.processPage(ctx, pageLog, documentID, pdfBuf, i)
		if pageErr != nil {
			// A bad page must not doom the whole document. Record the failure
			// marker and move on.
			pageLog.Error("Page processing failed, continuing with next page.", "error", pageErr)
			extracted[store.PageKey(pageNumber)] = store.PageText{
				Text: fmt.Sprintf("Erreur: %v", pageErr),
			}
		} else {
			extracted[store.PageKey(pageNumber)] = store.PageText{
				Text:           text,
				DebugImagePath: debugPath,
			}
		}

		if err := f.documents.SaveProgress(ctx, documentID, extracted); err != nil {
			return nil, f.fail(ctx, logCtx, documentID, "failed to save progress", err)
		}

		if pageNumber < processable {
			if err := wait(ctx, f.config.PageDelay); err != nil {
				return nil, f.fail(ctx, logCtx, documentID, "interrupted between pages", err)
			}
		}
	}

	if err := f.documents.Finalize(ctx, documentID, extracted, processable); err != nil {
		return nil, f.fail(ctx, logCtx, documentID, "failed to finalize document", err)
	}

	logCtx.Info("Document processing complete.", "pages", processable)
	return &ProcessResult{Pages: processable, ExtractedText: extracted}, nil
}

// processPage extracts one page, persists its debug copy and runs OCR with
// bounded retries. Any failure here is a per-page failure.
func (f *ProcessorFunction) processPage(ctx context.Context, logCtx *slog.Logger, documentID uuid.UUID, pdfBuf []byte, index int) (text, debugPath string, err error) {
	pageBuf, err := pdf.ExtractPage(pdfBuf, index)
	if err != nil {
		return "", "", fmt.Errorf("page extraction: %w", err)
	}

	// The debug artifact keeps the historical .jpg suffix even though the
	// bytes are a single-page PDF; downstream tooling looks paths up by
	// this exact name.
	debugPath = fmt.Sprintf("%s/page_%d.jpg", documentID, index+1)
	if err := f.pagesBucket.Upload(ctx, debugPath, pageBuf, "image/jpeg"); err != nil {
		return "", "", fmt.Errorf("debug copy upload: %w", err)
	}

	text, err = f.extractWithRetry(ctx, logCtx, pageBuf)
	if err != nil {
		return "", "", err
	}
	logCtx.Info("Page processed.", "textLength", len(text))
	return text, debugPath, nil
}

// extractWithRetry calls the OCR provider up to OCRAttempts times, waiting
// RetryDelay between failed attempts. No backoff, no jitter: this is a
// low-volume batch path.
func (f *ProcessorFunction) extractWithRetry(ctx context.Context, logCtx *slog.Logger, pageBuf []byte) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.config.OCRAttempts; attempt++ {
		text, err := f.provider.ExtractText(ctx, pageBuf)
		if err == nil {
			return text, nil
		}
		lastErr = err
		logCtx.Warn("OCR attempt failed.",
			"attempt", attempt, "maxAttempts", f.config.OCRAttempts, "error", err)

		if attempt < f.config.OCRAttempts {
			if waitErr := wait(ctx, f.config.RetryDelay); waitErr != nil {
				return "", waitErr
			}
		}
	}
	return "", fmt.Errorf("OCR failed after %d attempts: %w", f.config.OCRAttempts, lastErr)
}

// fail records the fatal error on the document row before propagating it, so
// the document is never left silently in processing.
func (f *ProcessorFunction) fail(ctx context.Context, logCtx *slog.Logger, documentID uuid.UUID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.documents.MarkError(ctx, documentID, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to record error status after a processing failure.", "updateError", err)
	}
	return fmt.Errorf("%s", fullError)
}

// StorageEvent is the payload of a storage object-finalized event.
type StorageEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// ProcessUploaded handles a storage finalize event: it resolves the object
// name to a document row and runs the pipeline. Objects with no matching
// document (debug copies, split pages, re-delivered events) are skipped.
func (f *ProcessorFunction) ProcessUploaded(ctx context.Context, event StorageEvent) error {
	doc, err := f.documents.GetByFilePath(ctx, event.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Info("No document for uploaded object, skipping.",
				"bucket", event.Bucket, "object", event.Name)
			return nil
		}
		return fmt.Errorf("failed to resolve uploaded object: %w", err)
	}

	_, err = f.Process(ctx, doc.ID)
	return err
}

// CheckStatus reports the current processing state of a document,
// promoting a document whose OCR has finished out of the processing state.
func (f *ProcessorFunction) CheckStatus(ctx context.Context, documentID uuid.UUID) (store.DocumentStatus, string, error) {
	doc, err := f.documents.GetByID(ctx, documentID)
	if err != nil {
		return "", "", err
	}

	switch doc.Status {
	case store.StatusProcessing:
		if err := f.documents.Complete(ctx, documentID); err != nil {
			return "", "", err
		}
		return store.StatusCompleted, "Document traité avec succès", nil
	case store.StatusError:
		message := "Erreur de traitement"
		if doc.OCRError != nil {
			message = *doc.OCRError
		}
		return store.StatusError, message, nil
	default:
		return doc.Status, "En cours de traitement", nil
	}
}

// wait blocks for the given duration or until the context is cancelled.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
