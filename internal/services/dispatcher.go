package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/atelierdocs/docuflow/internal/config"
	"github.com/atelierdocs/docuflow/internal/store"
)

// dispatchBatchSize bounds how many pending jobs one invocation forwards.
const dispatchBatchSize = 10

// DispatcherConfig holds the conversion-service endpoint settings. Both
// values are required; a missing one aborts the whole batch before any job
// is touched.
type DispatcherConfig struct {
	ServiceURL string
	ServiceKey string
	BatchSize  int
}

// LoadDispatcherConfig reads the dispatcher configuration from the environment.
func LoadDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		ServiceURL: config.GetEnv("CONVERSION_SERVICE_URL", ""),
		ServiceKey: config.GetEnv("CONVERSION_SERVICE_KEY", ""),
		BatchSize:  dispatchBatchSize,
	}
}

// ConversionRequest is the payload posted to the conversion service for one job.
type ConversionRequest struct {
	JobID      string `json:"jobId"`
	PageID     string `json:"pageId"`
	InputPath  string `json:"inputPath"`
	OutputPath string `json:"outputPath"`
}

// DispatcherFunction polls pending conversion jobs and forwards each to the
// external PDF-to-PNG conversion service, oldest first. A failed hand-off
// marks that job errored and moves on; the batch never aborts on one job.
type DispatcherFunction struct {
	jobs       JobStore
	pages      PageStore
	httpClient *http.Client
	config     DispatcherConfig
}

// NewDispatcher creates a DispatcherFunction with explicit dependencies.
func NewDispatcher(jobs JobStore, pages PageStore, httpClient *http.Client, cfg DispatcherConfig) *DispatcherFunction {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = dispatchBatchSize
	}
	return &DispatcherFunction{
		jobs:       jobs,
		pages:      pages,
		httpClient: httpClient,
		config:     cfg,
	}
}

// Process runs one dispatch cycle and returns how many jobs were handed to
// the conversion service.
func (f *DispatcherFunction) Process(ctx context.Context) (int, error) {
	if f.config.ServiceURL == "" || f.config.ServiceKey == "" {
		return 0, fmt.Errorf("CONVERSION_SERVICE_URL and CONVERSION_SERVICE_KEY must be set")
	}

	jobs, err := f.jobs.ListPending(ctx, f.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		slog.Info("No pending conversion jobs.")
		return 0, nil
	}

	dispatched := 0
	for _, job := range jobs {
		logCtx := slog.With("jobId", job.ID.String(), "pageId", job.PageID.String())

		if err := f.dispatch(ctx, job); err != nil {
			logCtx.Error("Failed to dispatch conversion job.", "error", err)
			if markErr := f.jobs.MarkError(ctx, job.ID, err.Error()); markErr != nil {
				logCtx.Error("CRITICAL: Failed to record job error.", "updateError", markErr)
			}
			if pageErr := f.pages.SetConversionStatus(ctx, job.PageID, store.ConversionError); pageErr != nil {
				logCtx.Error("CRITICAL: Failed to record page conversion error.", "updateError", pageErr)
			}
			continue
		}

		if err := f.jobs.MarkDispatched(ctx, job.ID); err != nil {
			logCtx.Error("CRITICAL: Job dispatched but status update failed.", "updateError", err)
			continue
		}
		logCtx.Info("Conversion job dispatched.")
		dispatched++
	}
	return dispatched, nil
}

// dispatch posts one job descriptor to the conversion service.
func (f *DispatcherFunction) dispatch(ctx context.Context, job store.ConversionJob) error {
	payload, err := json.Marshal(ConversionRequest{
		JobID:      job.ID.String(),
		PageID:     job.PageID.String(),
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.config.ServiceURL+"/process", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.config.ServiceKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("conversion service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("conversion service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
