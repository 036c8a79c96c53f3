package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/atelierdocs/docuflow/internal/convert"
	"github.com/atelierdocs/docuflow/internal/store"
)

// ConverterFunction is the worker side of the conversion service: it renders
// one registered page PDF to PNG and records the result on both the job and
// its page row.
type ConverterFunction struct {
	jobs        JobStore
	pages       PageStore
	pagesBucket BlobBucket
}

// NewConverter creates a ConverterFunction with explicit dependencies.
func NewConverter(jobs JobStore, pages PageStore, pagesBucket BlobBucket) *ConverterFunction {
	return &ConverterFunction{
		jobs:        jobs,
		pages:       pages,
		pagesBucket: pagesBucket,
	}
}

// Process converts the PDF at the job's input path to a PNG at its output
// path. On failure both the job and the page are marked errored before the
// error propagates.
func (f *ConverterFunction) Process(ctx context.Context, req ConversionRequest) (string, error) {
	logCtx := slog.With("jobId", req.JobID, "pageId", req.PageID)
	logCtx.Info("Starting PNG conversion.")

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return "", fmt.Errorf("invalid jobId: %w", err)
	}
	pageID, err := uuid.Parse(req.PageID)
	if err != nil {
		return "", fmt.Errorf("invalid pageId: %w", err)
	}

	outputPath, err := f.run(ctx, req)
	if err != nil {
		logCtx.Error("PNG conversion failed.", "error", err)
		if markErr := f.jobs.MarkError(ctx, jobID, err.Error()); markErr != nil {
			logCtx.Error("CRITICAL: Failed to record job error.", "updateError", markErr)
		}
		if pageErr := f.pages.SetConversionStatus(ctx, pageID, store.ConversionError); pageErr != nil {
			logCtx.Error("CRITICAL: Failed to record page conversion error.", "updateError", pageErr)
		}
		return "", err
	}

	if err := f.jobs.Complete(ctx, jobID, outputPath); err != nil {
		return "", fmt.Errorf("conversion done but job update failed: %w", err)
	}
	if err := f.pages.SetConverted(ctx, pageID, outputPath); err != nil {
		return "", fmt.Errorf("conversion done but page update failed: %w", err)
	}

	logCtx.Info("PNG conversion complete.", "outputPath", outputPath)
	return outputPath, nil
}

func (f *ConverterFunction) run(ctx context.Context, req ConversionRequest) (string, error) {
	pdfBuf, err := f.pagesBucket.Download(ctx, req.InputPath)
	if err != nil {
		return "", fmt.Errorf("failed to download page PDF: %w", err)
	}

	pngBuf, err := convert.RenderPNG(pdfBuf)
	if err != nil {
		return "", fmt.Errorf("failed to render PNG: %w", err)
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = strings.TrimSuffix(req.InputPath, ".pdf") + ".png"
	}
	if err := f.pagesBucket.Upload(ctx, outputPath, pngBuf, "image/png"); err != nil {
		return "", fmt.Errorf("failed to upload PNG: %w", err)
	}
	return outputPath, nil
}
