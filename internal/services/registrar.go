package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/atelierdocs/docuflow/internal/pdf"
	"github.com/atelierdocs/docuflow/internal/store"
)

// registrarUploadLimit bounds how many page uploads run concurrently.
const registrarUploadLimit = 10

// RegistrarConfig holds settings for page registration.
type RegistrarConfig struct {
	// PageLimit caps how many pages are registered for conversion.
	PageLimit int

	// Dispatcher settings are reused for the best-effort immediate notify.
	// When the URL is unset, jobs are simply left pending for the dispatcher.
	ServiceURL string
	ServiceKey string
}

// RegistrarFunction splits a document into single-page PDFs, uploads them,
// and creates the document_pages and conversion_jobs rows that drive the
// PNG conversion flow.
type RegistrarFunction struct {
	documents       DocumentStore
	pages           PageStore
	jobs            JobStore
	documentsBucket BlobBucket
	pagesBucket     BlobBucket
	httpClient      *http.Client
	config          RegistrarConfig
}

// NewRegistrar creates a RegistrarFunction with explicit dependencies.
func NewRegistrar(documents DocumentStore, pages PageStore, jobs JobStore, documentsBucket, pagesBucket BlobBucket, httpClient *http.Client, cfg RegistrarConfig) *RegistrarFunction {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 10
	}
	return &RegistrarFunction{
		documents:       documents,
		pages:           pages,
		jobs:            jobs,
		documentsBucket: documentsBucket,
		pagesBucket:     pagesBucket,
		httpClient:      httpClient,
		config:          cfg,
	}
}

// Process registers every page of the document for PNG conversion and
// returns how many pages were registered.
func (f *RegistrarFunction) Process(ctx context.Context, documentID uuid.UUID) (int, error) {
	logCtx := slog.With("documentId", documentID.String())
	logCtx.Info("Registering document pages for conversion.")

	doc, err := f.documents.GetByID(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load document: %w", err)
	}

	pdfBuf, err := f.documentsBucket.Download(ctx, doc.FilePath)
	if err != nil {
		return 0, fmt.Errorf("failed to download PDF: %w", err)
	}

	pageCount, err := pdf.PageCount(pdfBuf)
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}
	if pageCount > f.config.PageLimit {
		logCtx.Warn("Page count exceeds limit, extra pages not registered.",
			"pageCount", pageCount, "limit", f.config.PageLimit)
		pageCount = f.config.PageLimit
	}

	// Split and upload the per-page PDFs concurrently. No page state exists
	// yet, so ordering does not matter here.
	pagePaths := make([]string, pageCount)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(registrarUploadLimit)
	for i := 0; i < pageCount; i++ {
		index := i
		eg.Go(func() error {
			pageBuf, err := pdf.ExtractPage(pdfBuf, index)
			if err != nil {
				return fmt.Errorf("page %d: %w", index+1, err)
			}
			path := fmt.Sprintf("%s/page-%d.pdf", documentID, index+1)
			if err := f.pagesBucket.Upload(gctx, path, pageBuf, "application/pdf"); err != nil {
				return fmt.Errorf("page %d: %w", index+1, err)
			}
			pagePaths[index] = path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, fmt.Errorf("failed to upload split pages: %w", err)
	}
	logCtx.Info("Split pages uploaded.", "pageCount", pageCount)

	// Rows are created in page order so a concurrent reader sees a prefix.
	jobs := make([]store.ConversionJob, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		page := &store.DocumentPage{
			DocumentID: documentID,
			PageNumber: i + 1,
			ImagePath:  pagePaths[i],
		}
		if err := f.pages.Create(ctx, page); err != nil {
			return 0, fmt.Errorf("failed to create page row %d: %w", i+1, err)
		}

		job := store.ConversionJob{
			PageID:     page.ID,
			InputPath:  pagePaths[i],
			OutputPath: strings.TrimSuffix(pagePaths[i], ".pdf") + ".png",
		}
		if err := f.jobs.Create(ctx, &job); err != nil {
			return 0, fmt.Errorf("failed to create conversion job for page %d: %w", i+1, err)
		}
		jobs = append(jobs, job)
	}

	// Best-effort immediate notify. A failure here is logged and ignored:
	// the jobs stay pending and the dispatcher will pick them up.
	if f.config.ServiceURL != "" {
		notifier := NewDispatcher(f.jobs, f.pages, f.httpClient, DispatcherConfig{
			ServiceURL: f.config.ServiceURL,
			ServiceKey: f.config.ServiceKey,
		})
		for _, job := range jobs {
			if err := notifier.dispatch(ctx, job); err != nil {
				slog.Warn("Conversion service notification failed, job left pending.",
					"jobId", job.ID.String(), "error", err)
			}
		}
	}

	logCtx.Info("Document pages registered.", "pages", pageCount)
	return pageCount, nil
}
