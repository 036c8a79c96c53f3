package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/atelierdocs/docuflow/internal/store"
)

// fakeDocumentStore is an in-memory DocumentStore recording every mutation.
type fakeDocumentStore struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*store.Document
	byPath    map[string]uuid.UUID
	progress  []store.ExtractedText
	finalized bool
	errored   string
	completed bool
	fields    map[string]interface{}

	getErr      error
	progressErr error
	finalizeErr error
	applyErr    error
}

func newFakeDocumentStore(docs ...*store.Document) *fakeDocumentStore {
	f := &fakeDocumentStore{
		docs:   make(map[uuid.UUID]*store.Document),
		byPath: make(map[string]uuid.UUID),
	}
	for _, d := range docs {
		f.docs[d.ID] = d
		f.byPath[d.FilePath] = d.ID
	}
	return f
}

func (f *fakeDocumentStore) Create(ctx context.Context, doc *store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	f.docs[doc.ID] = doc
	f.byPath[doc.FilePath] = doc.ID
	return nil
}

func (f *fakeDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocumentStore) GetByFilePath(ctx context.Context, filePath string) (*store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byPath[filePath]
	if !ok {
		return nil, store.ErrNotFound
	}
	return f.docs[id], nil
}

func (f *fakeDocumentStore) SaveProgress(ctx context.Context, id uuid.UUID, pages store.ExtractedText) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progressErr != nil {
		return f.progressErr
	}
	snapshot := make(store.ExtractedText, len(pages))
	for k, v := range pages {
		snapshot[k] = v
	}
	f.progress = append(f.progress, snapshot)
	return nil
}

func (f *fakeDocumentStore) Finalize(ctx context.Context, id uuid.UUID, pages store.ExtractedText, totalPages int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized = true
	if doc, ok := f.docs[id]; ok {
		doc.Status = store.StatusCompleted
		doc.TotalPages = &totalPages
	}
	return nil
}

func (f *fakeDocumentStore) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errored = message
	if doc, ok := f.docs[id]; ok {
		doc.Status = store.StatusError
		doc.OCRError = &message
	}
	return nil
}

func (f *fakeDocumentStore) Complete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = true
	if doc, ok := f.docs[id]; ok {
		doc.Status = store.StatusCompleted
	}
	return nil
}

func (f *fakeDocumentStore) ApplyExtractedFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.fields = fields
	return nil
}

// fakePageStore is an in-memory PageStore.
type fakePageStore struct {
	mu       sync.Mutex
	pages    []*store.DocumentPage
	statuses map[uuid.UUID]store.ConversionStatus
	pngPaths map[uuid.UUID]string
}

func newFakePageStore() *fakePageStore {
	return &fakePageStore{
		statuses: make(map[uuid.UUID]store.ConversionStatus),
		pngPaths: make(map[uuid.UUID]string),
	}
}

func (f *fakePageStore) Create(ctx context.Context, page *store.DocumentPage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	if page.PNGConversionStatus == "" {
		page.PNGConversionStatus = store.ConversionPending
	}
	f.pages = append(f.pages, page)
	return nil
}

func (f *fakePageStore) SetConversionStatus(ctx context.Context, id uuid.UUID, status store.ConversionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakePageStore) SetConverted(ctx context.Context, id uuid.UUID, pngPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = store.ConversionCompleted
	f.pngPaths[id] = pngPath
	return nil
}

// fakeJobStore is an in-memory JobStore.
type fakeJobStore struct {
	mu         sync.Mutex
	jobs       []*store.ConversionJob
	pending    []store.ConversionJob
	dispatched []uuid.UUID
	errors     map[uuid.UUID]string
	completed  map[uuid.UUID]string

	listErr error
}

func newFakeJobStore(pending ...store.ConversionJob) *fakeJobStore {
	return &fakeJobStore{
		pending:   pending,
		errors:    make(map[uuid.UUID]string),
		completed: make(map[uuid.UUID]string),
	}
}

func (f *fakeJobStore) Create(ctx context.Context, job *store.ConversionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = store.ConversionPending
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeJobStore) ListPending(ctx context.Context, limit int) ([]store.ConversionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.pending) <= limit {
		return f.pending, nil
	}
	return f.pending[:limit], nil
}

func (f *fakeJobStore) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, id)
	return nil
}

func (f *fakeJobStore) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[id] = message
	return nil
}

func (f *fakeJobStore) Complete(ctx context.Context, id uuid.UUID, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = outputPath
	return nil
}

// fakeReferenceStore serves liaisons and ateliers from maps.
type fakeReferenceStore struct {
	liaisons map[uuid.UUID]*store.Liaison
	ateliers map[uuid.UUID]*store.Atelier
}

func (f *fakeReferenceStore) GetLiaison(ctx context.Context, id uuid.UUID) (*store.Liaison, error) {
	if l, ok := f.liaisons[id]; ok {
		return l, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeReferenceStore) GetAtelier(ctx context.Context, id uuid.UUID) (*store.Atelier, error) {
	if a, ok := f.ateliers[id]; ok {
		return a, nil
	}
	return nil, store.ErrNotFound
}

// fakeBucket is an in-memory BlobBucket.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	downloadErr error
	uploadErr   error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeBucket) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeBucket) Download(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (f *fakeBucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeBucket) PublicURL(key string) string {
	return "https://storage.googleapis.com/test-bucket/" + key
}

// fakeProvider scripts OCR responses by call index (1-based), which is
// deterministic because the pipeline runs pages sequentially.
type fakeProvider struct {
	mu        sync.Mutex
	text      string
	calls     int
	failCalls map[int]bool
}

func (f *fakeProvider) ExtractText(ctx context.Context, page []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failCalls[f.calls] {
		return "", fmt.Errorf("ocr backend unavailable")
	}
	return f.text, nil
}

func (f *fakeProvider) Name() string { return "fake" }
