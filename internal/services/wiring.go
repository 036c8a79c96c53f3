package services

import (
	"context"
	"fmt"

	"github.com/atelierdocs/docuflow/internal/blob"
	"github.com/atelierdocs/docuflow/internal/config"
	"github.com/atelierdocs/docuflow/internal/ocr"
	"github.com/atelierdocs/docuflow/internal/store"
)

// sharedDeps bundles the store and bucket handles every function needs. The
// underlying *sql.DB and *storage.Client live for the process lifetime,
// matching the one-time initialization in each entry point.
type sharedDeps struct {
	documents       *store.DocumentRepository
	pages           *store.PageRepository
	jobs            *store.JobRepository
	reference       *store.ReferenceRepository
	documentsBucket *blob.Bucket
	pagesBucket     *blob.Bucket
}

func newSharedDeps(ctx context.Context) (*sharedDeps, error) {
	cfg, err := config.LoadStore()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	client, err := blob.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &sharedDeps{
		documents:       store.NewDocumentRepository(db),
		pages:           store.NewPageRepository(db),
		jobs:            store.NewJobRepository(db),
		reference:       store.NewReferenceRepository(db),
		documentsBucket: blob.NewBucket(client, cfg.DocumentsBucket),
		pagesBucket:     blob.NewBucket(client, cfg.PagesBucket),
	}, nil
}

// NewProcessorFromEnv builds the OCR pipeline from environment configuration.
func NewProcessorFromEnv(ctx context.Context) (*ProcessorFunction, error) {
	deps, err := newSharedDeps(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := ocr.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR provider: %w", err)
	}
	return NewProcessor(deps.documents, deps.documentsBucket, deps.pagesBucket, provider, LoadProcessorConfig()), nil
}

// NewDispatcherFromEnv builds the conversion dispatcher from environment
// configuration.
func NewDispatcherFromEnv(ctx context.Context) (*DispatcherFunction, error) {
	deps, err := newSharedDeps(ctx)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(deps.jobs, deps.pages, nil, LoadDispatcherConfig()), nil
}

// NewRegistrarFromEnv builds the page registrar from environment
// configuration.
func NewRegistrarFromEnv(ctx context.Context) (*RegistrarFunction, error) {
	deps, err := newSharedDeps(ctx)
	if err != nil {
		return nil, err
	}
	dispatch := LoadDispatcherConfig()
	return NewRegistrar(deps.documents, deps.pages, deps.jobs, deps.documentsBucket, deps.pagesBucket, nil, RegistrarConfig{
		ServiceURL: dispatch.ServiceURL,
		ServiceKey: dispatch.ServiceKey,
	}), nil
}

// NewWebhookFromEnv builds the field-extraction webhook from environment
// configuration.
func NewWebhookFromEnv(ctx context.Context) (*WebhookFunction, error) {
	deps, err := newSharedDeps(ctx)
	if err != nil {
		return nil, err
	}
	return NewWebhook(deps.documents), nil
}

// NewUploaderFromEnv builds the document uploader from environment
// configuration.
func NewUploaderFromEnv(ctx context.Context) (*UploaderFunction, error) {
	deps, err := newSharedDeps(ctx)
	if err != nil {
		return nil, err
	}
	return NewUploader(deps.documents, deps.reference, deps.documentsBucket, nil, UploaderConfig{
		ProcessorURL: config.GetEnv("PROCESSOR_URL", ""),
	}), nil
}

// NewConverterFromEnv builds the conversion worker from environment
// configuration.
func NewConverterFromEnv(ctx context.Context) (*ConverterFunction, error) {
	deps, err := newSharedDeps(ctx)
	if err != nil {
		return nil, err
	}
	return NewConverter(deps.jobs, deps.pages, deps.pagesBucket), nil
}
