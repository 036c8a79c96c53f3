package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierdocs/docuflow/internal/store"
)

// conversionStub records the requests the dispatcher posts and can fail a
// chosen jobId.
type conversionStub struct {
	mu       sync.Mutex
	requests []ConversionRequest
	failJob  string
}

func (s *conversionStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/process", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ConversionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		s.mu.Lock()
		s.requests = append(s.requests, req)
		fail := s.failJob == req.JobID
		s.mu.Unlock()

		if fail {
			http.Error(w, "conversion backend down", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func pendingJob(input string) store.ConversionJob {
	return store.ConversionJob{
		ID:         uuid.New(),
		PageID:     uuid.New(),
		InputPath:  input,
		OutputPath: input + ".png",
		Status:     store.ConversionPending,
	}
}

func TestDispatcher_ForwardsPendingJobs(t *testing.T) {
	stub := &conversionStub{}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	jobA := pendingJob("doc/page-1.pdf")
	jobB := pendingJob("doc/page-2.pdf")
	jobs := newFakeJobStore(jobA, jobB)
	pages := newFakePageStore()

	dispatcher := NewDispatcher(jobs, pages, server.Client(), DispatcherConfig{
		ServiceURL: server.URL,
		ServiceKey: "test-key",
	})
	dispatched, err := dispatcher.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, dispatched)
	assert.ElementsMatch(t, []uuid.UUID{jobA.ID, jobB.ID}, jobs.dispatched)
	require.Len(t, stub.requests, 2)
	assert.Equal(t, jobA.InputPath, stub.requests[0].InputPath)
	assert.Equal(t, jobA.PageID.String(), stub.requests[0].PageID)
}

func TestDispatcher_FailedJobIsMarkedAndSkipped(t *testing.T) {
	jobA := pendingJob("doc/page-1.pdf")
	jobB := pendingJob("doc/page-2.pdf")

	stub := &conversionStub{failJob: jobA.ID.String()}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	jobs := newFakeJobStore(jobA, jobB)
	pages := newFakePageStore()

	dispatcher := NewDispatcher(jobs, pages, server.Client(), DispatcherConfig{
		ServiceURL: server.URL,
		ServiceKey: "test-key",
	})
	dispatched, err := dispatcher.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, dispatched)
	assert.Contains(t, jobs.errors[jobA.ID], "502")
	assert.Equal(t, store.ConversionError, pages.statuses[jobA.PageID])
	assert.Equal(t, []uuid.UUID{jobB.ID}, jobs.dispatched)
}

func TestDispatcher_BatchSizeBoundsOneCycle(t *testing.T) {
	stub := &conversionStub{}
	server := httptest.NewServer(stub.handler(t))
	defer server.Close()

	var pending []store.ConversionJob
	for i := 0; i < 15; i++ {
		pending = append(pending, pendingJob(fmt.Sprintf("doc/page-%d.pdf", i+1)))
	}
	jobs := newFakeJobStore(pending...)

	dispatcher := NewDispatcher(jobs, newFakePageStore(), server.Client(), DispatcherConfig{
		ServiceURL: server.URL,
		ServiceKey: "test-key",
	})
	dispatched, err := dispatcher.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatchBatchSize, dispatched)
	assert.Len(t, stub.requests, dispatchBatchSize)
}

func TestDispatcher_MissingConfigAbortsBeforeAnyJob(t *testing.T) {
	jobs := newFakeJobStore(pendingJob("doc/page-1.pdf"))
	dispatcher := NewDispatcher(jobs, newFakePageStore(), nil, DispatcherConfig{})

	_, err := dispatcher.Process(context.Background())
	require.Error(t, err)
	assert.Empty(t, jobs.dispatched)
	assert.Empty(t, jobs.errors)
}

func TestDispatcher_NoPendingJobs(t *testing.T) {
	dispatcher := NewDispatcher(newFakeJobStore(), newFakePageStore(), nil, DispatcherConfig{
		ServiceURL: "http://localhost:9",
		ServiceKey: "test-key",
	})
	dispatched, err := dispatcher.Process(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dispatched)
}

func TestDispatcher_ListFailure(t *testing.T) {
	jobs := newFakeJobStore()
	jobs.listErr = fmt.Errorf("connection refused")
	dispatcher := NewDispatcher(jobs, newFakePageStore(), nil, DispatcherConfig{
		ServiceURL: "http://localhost:9",
		ServiceKey: "test-key",
	})
	_, err := dispatcher.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list pending jobs")
}
