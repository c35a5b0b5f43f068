package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"researchplane/internal/dispatch"
	"researchplane/internal/jobs"
	"researchplane/internal/registry"
	"researchplane/internal/store"
)

// fakeJobStore is an in-memory JobStore.
type fakeJobStore struct {
	mu    sync.Mutex
	jobs  map[string]*store.Job
	order []string
	fail  bool
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*store.Job)}
}

func (f *fakeJobStore) CreateJob(_ context.Context, _ store.DBTransaction, job *store.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	cp := *job
	f.jobs[job.ID] = &cp
	f.order = append(f.order, job.ID)
	return nil
}

func (f *fakeJobStore) GetJobByID(_ context.Context, id string) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobStore) ListJobs(_ context.Context, status store.JobStatus, limit int) ([]*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Job
	for i := len(f.order) - 1; i >= 0; i-- {
		job := f.jobs[f.order[i]]
		if status != "" && job.Status != status {
			continue
		}
		cp := *job
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeJobStore) UpdateJobStatus(_ context.Context, _ store.DBTransaction, job *store.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobStore) NextQueuedJob(context.Context) (*store.Job, error) {
	return nil, store.ErrNotFound
}

func (f *fakeJobStore) FailRunningJobs(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeJobStore) CountJobs(context.Context, store.JobStatus) (int64, error) { return 0, nil }

// fakePendingStore is an in-memory PendingAudioStore.
type fakePendingStore struct {
	mu      sync.Mutex
	records map[string]*store.PendingAudio
}

func newFakePendingStore() *fakePendingStore {
	return &fakePendingStore{records: make(map[string]*store.PendingAudio)}
}

func (f *fakePendingStore) CreatePendingAudio(_ context.Context, _ store.DBTransaction, pa *store.PendingAudio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *pa
	f.records[pa.ID] = &cp
	return nil
}

func (f *fakePendingStore) GetPendingAudioByID(_ context.Context, id string) (*store.PendingAudio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pa, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *pa
	return &cp, nil
}

func (f *fakePendingStore) GetPendingAudioByRemoteJobID(_ context.Context, remoteJobID string) (*store.PendingAudio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pa := range f.records {
		if pa.RemoteJobID != nil && *pa.RemoteJobID == remoteJobID {
			cp := *pa
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakePendingStore) UpdatePendingAudio(_ context.Context, _ store.DBTransaction, pa *store.PendingAudio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *pa
	f.records[pa.ID] = &cp
	return nil
}

// fakeDispatcher scripts the dispatch client.
type fakeDispatcher struct {
	configured bool
	result     *dispatch.QueueResult
	err        error
	resolved   *store.PendingAudio
	resolveErr error
}

func (f *fakeDispatcher) IsConfigured() bool { return f.configured }

func (f *fakeDispatcher) QueueAudioGenerations(context.Context, string, []string, string) (*dispatch.QueueResult, error) {
	return f.result, f.err
}

func (f *fakeDispatcher) ResolveWebhook(context.Context, string, string, string, string) (*store.PendingAudio, error) {
	return f.resolved, f.resolveErr
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

type testDeps struct {
	h          *Handlers
	queue      *jobs.Queue
	jobStore   *fakeJobStore
	pending    *fakePendingStore
	registry   *registry.Registry
	dispatcher *fakeDispatcher
	pinger     *fakePinger
}

func newTestHandlers(t *testing.T) *testDeps {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	reg, err := registry.Load(filepath.Join(t.TempDir(), "registry.json"), logger)
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}

	d := &testDeps{
		jobStore:   newFakeJobStore(),
		pending:    newFakePendingStore(),
		registry:   reg,
		dispatcher: &fakeDispatcher{configured: true},
		pinger:     &fakePinger{},
	}
	d.queue = jobs.New(d.jobStore, logger)
	d.h = New(d.queue, d.registry, d.pending, d.dispatcher, d.pinger, logger)
	return d
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, body string, pathValues map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
