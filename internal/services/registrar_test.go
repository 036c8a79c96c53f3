package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierdocs/docuflow/internal/store"
)

func TestRegistrar_CreatesPagesAndJobs(t *testing.T) {
	bucket := newFakeBucket()
	pagesBucket := newFakeBucket()
	documents, doc := seedDocument(t, bucket, 3)
	pages := newFakePageStore()
	jobs := newFakeJobStore()

	registrar := NewRegistrar(documents, pages, jobs, bucket, pagesBucket, nil, RegistrarConfig{})
	registered, err := registrar.Process(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, registered)

	require.Len(t, pages.pages, 3)
	require.Len(t, jobs.jobs, 3)
	for i, page := range pages.pages {
		expectedInput := fmt.Sprintf("%s/page-%d.pdf", doc.ID, i+1)
		assert.Equal(t, i+1, page.PageNumber)
		assert.Equal(t, expectedInput, page.ImagePath)
		assert.Equal(t, store.ConversionPending, page.PNGConversionStatus)

		job := jobs.jobs[i]
		assert.Equal(t, page.ID, job.PageID)
		assert.Equal(t, expectedInput, job.InputPath)
		assert.Equal(t, fmt.Sprintf("%s/page-%d.png", doc.ID, i+1), job.OutputPath)
		assert.Equal(t, store.ConversionPending, job.Status)

		assert.Contains(t, pagesBucket.objects, expectedInput)
		assert.Equal(t, "application/pdf", pagesBucket.types[expectedInput])
	}
}

func TestRegistrar_PageLimitCapsRegistration(t *testing.T) {
	bucket := newFakeBucket()
	documents, doc := seedDocument(t, bucket, 12)
	pages := newFakePageStore()
	jobs := newFakeJobStore()

	registrar := NewRegistrar(documents, pages, jobs, bucket, newFakeBucket(), nil, RegistrarConfig{})
	registered, err := registrar.Process(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, registered)
	assert.Len(t, pages.pages, 10)
	assert.Len(t, jobs.jobs, 10)
}

func TestRegistrar_NotifiesConversionService(t *testing.T) {
	var notified atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/process", r.URL.Path)
		notified.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bucket := newFakeBucket()
	documents, doc := seedDocument(t, bucket, 2)

	registrar := NewRegistrar(documents, newFakePageStore(), newFakeJobStore(), bucket, newFakeBucket(), server.Client(), RegistrarConfig{
		ServiceURL: server.URL,
		ServiceKey: "test-key",
	})
	registered, err := registrar.Process(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, registered)
	assert.Equal(t, int32(2), notified.Load())
}

func TestRegistrar_NotifyFailureLeavesJobsPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	bucket := newFakeBucket()
	documents, doc := seedDocument(t, bucket, 2)
	jobs := newFakeJobStore()

	registrar := NewRegistrar(documents, newFakePageStore(), jobs, bucket, newFakeBucket(), server.Client(), RegistrarConfig{
		ServiceURL: server.URL,
		ServiceKey: "test-key",
	})
	registered, err := registrar.Process(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, registered)
	// Jobs stay pending for the dispatcher; nothing is marked errored.
	assert.Empty(t, jobs.errors)
	for _, job := range jobs.jobs {
		assert.Equal(t, store.ConversionPending, job.Status)
	}
}

func TestRegistrar_UnknownDocument(t *testing.T) {
	registrar := NewRegistrar(newFakeDocumentStore(), newFakePageStore(), newFakeJobStore(), newFakeBucket(), newFakeBucket(), nil, RegistrarConfig{})
	_, err := registrar.Process(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load document")
}

func TestRegistrar_InvalidPDF(t *testing.T) {
	bucket := newFakeBucket()
	doc := &store.Document{ID: uuid.New(), FilePath: "broken.pdf"}
	bucket.put(doc.FilePath, []byte("not a pdf"))
	documents := newFakeDocumentStore(doc)
	pages := newFakePageStore()

	registrar := NewRegistrar(documents, pages, newFakeJobStore(), bucket, newFakeBucket(), nil, RegistrarConfig{})
	_, err := registrar.Process(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Empty(t, pages.pages)
}

func TestRegistrar_UploadFailure(t *testing.T) {
	bucket := newFakeBucket()
	documents, doc := seedDocument(t, bucket, 2)
	pagesBucket := newFakeBucket()
	pagesBucket.uploadErr = fmt.Errorf("quota exceeded")
	jobs := newFakeJobStore()

	registrar := NewRegistrar(documents, newFakePageStore(), jobs, bucket, pagesBucket, nil, RegistrarConfig{})
	_, err := registrar.Process(context.Background(), doc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload split pages")
	assert.Empty(t, jobs.jobs)
}
