package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"researchplane/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventLog records the interleaving of store writes and trigger calls.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// fakePendingStore is an in-memory PendingAudioStore that records events.
type fakePendingStore struct {
	log     *eventLog
	records map[string]*store.PendingAudio
}

func newFakePendingStore(log *eventLog) *fakePendingStore {
	return &fakePendingStore{log: log, records: make(map[string]*store.PendingAudio)}
}

func (f *fakePendingStore) CreatePendingAudio(_ context.Context, _ store.DBTransaction, pa *store.PendingAudio) error {
	f.log.add("create:" + pa.Sources[0])
	cp := *pa
	f.records[pa.ID] = &cp
	return nil
}

func (f *fakePendingStore) GetPendingAudioByID(_ context.Context, id string) (*store.PendingAudio, error) {
	pa, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return pa, nil
}

func (f *fakePendingStore) GetPendingAudioByRemoteJobID(_ context.Context, remoteJobID string) (*store.PendingAudio, error) {
	for _, pa := range f.records {
		if pa.RemoteJobID != nil && *pa.RemoteJobID == remoteJobID {
			return pa, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakePendingStore) UpdatePendingAudio(_ context.Context, _ store.DBTransaction, pa *store.PendingAudio) error {
	f.log.add(fmt.Sprintf("update:%s:%s", pa.Sources[0], pa.Status))
	cp := *pa
	f.records[pa.ID] = &cp
	return nil
}

func newTestClient(log *eventLog, rt roundTripperFunc) (*Client, *fakePendingStore) {
	logger := slog.New(slog.DiscardHandler)
	pending := newFakePendingStore(log)

	tr := NewTransport(logger)
	tr.client = &http.Client{Transport: rt}
	tr.sleep = func(context.Context, time.Duration) error { return nil }

	return &Client{
		cfg:       Config{BaseURL: "http://remote.test", Token: "secret"},
		transport: tr,
		pending:   pending,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, pending
}

func TestIsConfigured(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	c := New(Config{}, newFakePendingStore(&eventLog{}), logger)
	assert.False(t, c.IsConfigured())

	c = New(Config{BaseURL: "http://remote.test", Token: "secret"}, newFakePendingStore(&eventLog{}), logger)
	assert.True(t, c.IsConfigured())
}

func TestQueueAudioGenerations_CreatesRecordsBeforeAnyTrigger(t *testing.T) {
	log := &eventLog{}
	c, _ := newTestClient(log, func(r *http.Request) (*http.Response, error) {
		log.add("trigger")
		return httpResponse(http.StatusOK, `{"job_id":"wf-9"}`), nil
	})

	result, err := c.QueueAudioGenerations(context.Background(), "nb", []string{"a", "b"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Queued)
	assert.Empty(t, result.Failed)

	// Both rows must exist, in status queued, before the first trigger
	// request is observed.
	firstTrigger := -1
	creates := 0
	for i, e := range log.events {
		if e == "trigger" && firstTrigger == -1 {
			firstTrigger = i
		}
		if strings.HasPrefix(e, "create:") && firstTrigger == -1 {
			creates++
		}
	}
	assert.Equal(t, 2, creates, "all pending rows created before any trigger, got %v", log.events)
}

func TestQueueAudioGenerations_SuccessMarksStarted(t *testing.T) {
	log := &eventLog{}
	c, pending := newTestClient(log, func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK, `{"job_id":"wf-42"}`), nil
	})

	result, err := c.QueueAudioGenerations(context.Background(), "nb", []string{"doc-a"}, "calm voice")
	require.NoError(t, err)
	require.Len(t, result.PendingAudios, 1)

	pa := pending.records[result.PendingAudios[0].ID]
	assert.Equal(t, store.PendingAudioStarted, pa.Status)
	require.NotNil(t, pa.RemoteJobID)
	assert.Equal(t, "wf-42", *pa.RemoteJobID)
	assert.NotNil(t, pa.StartedAt)
	require.NotNil(t, pa.CustomPrompt)
	assert.Equal(t, "calm voice", *pa.CustomPrompt)
}

func TestQueueAudioGenerations_TriggerFailureMarksFailed(t *testing.T) {
	log := &eventLog{}
	c, pending := newTestClient(log, func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusBadRequest, "unknown notebook"), nil
	})

	result, err := c.QueueAudioGenerations(context.Background(), "nb", []string{"doc-a"}, "")
	require.NoError(t, err, "per-source trigger failures are reported in the result, not as an error")
	assert.Equal(t, []string{"doc-a"}, result.Failed)
	assert.Empty(t, result.Queued)

	pa := pending.records[result.PendingAudios[0].ID]
	assert.Equal(t, store.PendingAudioFailed, pa.Status)
	require.NotNil(t, pa.Error)
	assert.Contains(t, *pa.Error, "unknown notebook")
	assert.NotNil(t, pa.CompletedAt)
}

func TestQueueAudioGenerations_NoSources(t *testing.T) {
	c, _ := newTestClient(&eventLog{}, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	_, err := c.QueueAudioGenerations(context.Background(), "nb", nil, "")
	assert.Error(t, err)
}

func TestTriggerAudioGeneration_NotConfigured(t *testing.T) {
	c := New(Config{}, newFakePendingStore(&eventLog{}), slog.New(slog.DiscardHandler))

	_, err := c.TriggerAudioGeneration(context.Background(), TriggerParams{NotebookTitle: "nb", Source: "a"})
	assert.Error(t, err)
}

func TestGetJobStatus_ReadsRemoteState(t *testing.T) {
	c, _ := newTestClient(&eventLog{}, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/jobs/wf-7", r.URL.Path)
		return httpResponse(http.StatusOK, `{"status":"generating"}`), nil
	})

	status, err := c.GetJobStatus(context.Background(), "wf-7")
	require.NoError(t, err)
	assert.Equal(t, "generating", status)
}

func TestGetJobStatus_NeverRetries(t *testing.T) {
	requests := 0
	c, _ := newTestClient(&eventLog{}, func(*http.Request) (*http.Response, error) {
		requests++
		return httpResponse(http.StatusInternalServerError, "remote broke"), nil
	})

	_, err := c.GetJobStatus(context.Background(), "wf-7")
	require.Error(t, err)
	assert.Equal(t, 1, requests, "a status read is best-effort, one attempt only")
}

func TestAwaitCompletion_PollsUntilTerminal(t *testing.T) {
	polls := 0
	c, pending := newTestClient(&eventLog{}, func(*http.Request) (*http.Response, error) {
		polls++
		if polls < 3 {
			return httpResponse(http.StatusOK, `{"status":"running"}`), nil
		}
		return httpResponse(http.StatusOK, `{"status":"completed"}`), nil
	})
	seedStarted(pending, "pa-1", "wf-7")

	err := c.AwaitCompletion(context.Background(), []*store.PendingAudio{pending.records["pa-1"]})
	require.NoError(t, err)
	assert.Equal(t, 3, polls)

	pa := pending.records["pa-1"]
	assert.Equal(t, store.PendingAudioCompleted, pa.Status)
	assert.NotNil(t, pa.CompletedAt)
}

func TestAwaitCompletion_SkipsFailedTriggers(t *testing.T) {
	c, pending := newTestClient(&eventLog{}, func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected for a generation that never started")
		return nil, nil
	})

	failed := time.Now().UTC()
	pending.records["pa-1"] = &store.PendingAudio{
		ID:          "pa-1",
		Status:      store.PendingAudioFailed,
		CreatedAt:   failed,
		CompletedAt: &failed,
	}

	err := c.AwaitCompletion(context.Background(), []*store.PendingAudio{pending.records["pa-1"]})
	require.NoError(t, err)
}

func TestAwaitCompletion_PollFailureSurfaces(t *testing.T) {
	requests := 0
	c, pending := newTestClient(&eventLog{}, func(*http.Request) (*http.Response, error) {
		requests++
		return httpResponse(http.StatusInternalServerError, "remote broke"), nil
	})
	seedStarted(pending, "pa-1", "wf-7")

	err := c.AwaitCompletion(context.Background(), []*store.PendingAudio{pending.records["pa-1"]})
	require.Error(t, err)
	assert.Equal(t, 1, requests, "poll failures surface without retry")
}
