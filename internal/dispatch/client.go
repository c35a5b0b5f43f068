// Package dispatch triggers asynchronous work on the external execution
// service and tracks PendingAudio state around each trigger.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"researchplane/internal/store"

	"github.com/google/uuid"
)

// Config holds the connection settings for the execution service.
type Config struct {
	BaseURL string
	Token   string
}

// Client is the remote dispatch client. One instance is constructed at
// the composition root and injected where needed.
type Client struct {
	cfg       Config
	transport *Transport
	pending   store.PendingAudioStore
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a dispatch client.
func New(cfg Config, pending store.PendingAudioStore, logger *slog.Logger) *Client {
	return &Client{
		cfg:       cfg,
		transport: NewTransport(logger),
		pending:   pending,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IsConfigured reports whether a credential is present.
func (c *Client) IsConfigured() bool {
	return c.cfg.BaseURL != "" && c.cfg.Token != ""
}

// TriggerParams are the inputs for one remote audio generation.
type TriggerParams struct {
	NotebookTitle string `json:"notebook_title"`
	Source        string `json:"source"`
	CustomPrompt  string `json:"custom_prompt,omitempty"`
}

// TriggerResult is the outcome of one trigger request.
type TriggerResult struct {
	JobID   string
	Success bool
	Error   string
}

// TriggerAudioGeneration asks the execution service to start one audio
// generation and returns the remote job ID.
func (c *Client) TriggerAudioGeneration(ctx context.Context, params TriggerParams) (*TriggerResult, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("dispatch client is not configured")
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/jobs/trigger", c.cfg.BaseURL)
	body, err := c.transport.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return &TriggerResult{Success: false, Error: err.Error()}, err
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse trigger response: %w", err)
	}

	return &TriggerResult{JobID: resp.JobID, Success: true}, nil
}

// QueueResult reports the outcome of a batch of audio generations.
type QueueResult struct {
	Queued        []string
	Failed        []string
	PendingAudios []*store.PendingAudio
}

// QueueAudioGenerations dispatches one audio generation per source.
// Every PendingAudio row is created, in status queued, before the first
// trigger request goes out: operators always have a record to inspect
// even if the process dies mid-dispatch.
func (c *Client) QueueAudioGenerations(ctx context.Context, notebookTitle string, sources []string, customPrompt string) (*QueueResult, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}

	var prompt *string
	if customPrompt != "" {
		prompt = &customPrompt
	}

	result := &QueueResult{}

	for _, source := range sources {
		pa := &store.PendingAudio{
			ID:            uuid.NewString(),
			NotebookTitle: notebookTitle,
			Sources:       []string{source},
			Status:        store.PendingAudioQueued,
			CustomPrompt:  prompt,
			CreatedAt:     c.now(),
		}
		if err := c.pending.CreatePendingAudio(ctx, nil, pa); err != nil {
			return nil, fmt.Errorf("failed to create pending audio for %q: %w", source, err)
		}
		result.PendingAudios = append(result.PendingAudios, pa)
	}

	for i, source := range sources {
		pa := result.PendingAudios[i]

		trigger, err := c.TriggerAudioGeneration(ctx, TriggerParams{
			NotebookTitle: notebookTitle,
			Source:        source,
			CustomPrompt:  customPrompt,
		})
		now := c.now()
		if err != nil {
			c.logger.Error("audio trigger failed", "source", source, "error", err)
			pa.Status = store.PendingAudioFailed
			msg := err.Error()
			pa.Error = &msg
			pa.CompletedAt = &now
			result.Failed = append(result.Failed, source)
		} else {
			pa.Status = store.PendingAudioStarted
			pa.RemoteJobID = &trigger.JobID
			pa.StartedAt = &now
			result.Queued = append(result.Queued, source)
		}

		if err := c.pending.UpdatePendingAudio(ctx, nil, pa); err != nil {
			// The trigger already happened; losing the update must not
			// undo or re-issue it. Log and keep going.
			c.logger.Error("failed to update pending audio", "id", pa.ID, "error", err)
		}
	}

	return result, nil
}

// GetJobStatus is a best-effort read of a remote job's state. No retry.
func (c *Client) GetJobStatus(ctx context.Context, remoteJobID string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("dispatch client is not configured")
	}

	url := fmt.Sprintf("%s/api/jobs/%s", c.cfg.BaseURL, remoteJobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.transport.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remote returned status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to parse status response: %w", err)
	}
	return body.Status, nil
}

// pollInterval is the delay between remote status reads in AwaitCompletion.
const pollInterval = 5 * time.Second

// AwaitCompletion blocks until every started generation in pending has
// reached a terminal state. Each remote status read is fed through the
// same resolution path a webhook callback takes, so the local record
// converges even when the callback never arrives. Entries whose trigger
// already failed are skipped; a poll failure surfaces immediately
// instead of retrying.
func (c *Client) AwaitCompletion(ctx context.Context, pending []*store.PendingAudio) error {
	for _, pa := range pending {
		if pa.RemoteJobID == nil || pa.Status.Terminal() {
			continue
		}
		remoteID := *pa.RemoteJobID

		for {
			status, err := c.GetJobStatus(ctx, remoteID)
			if err != nil {
				return fmt.Errorf("failed to poll remote job %s: %w", remoteID, err)
			}

			resolved, err := c.ResolveWebhook(ctx, remoteID, status, "", "")
			if err != nil && !errors.Is(err, ErrUnknownStatus) {
				return err
			}
			if err == nil && resolved.Status.Terminal() {
				break
			}

			if err := c.transport.sleep(ctx, pollInterval); err != nil {
				return err
			}
		}
	}
	return nil
}
