// Package notify delivers job-completion events to configured channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"researchplane/internal/store"

	"golang.org/x/sync/errgroup"
)

// maxSnippetLen bounds the result/error text carried in an event.
const maxSnippetLen = 500

// Event is the structured payload emitted on a job's terminal transition.
type Event struct {
	JobID   string `json:"job_id"`
	Type    string `json:"type"`
	Query   string `json:"query"`
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Channel delivers one event somewhere.
type Channel interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Fanout delivers events to every configured channel. Channel failures
// are logged, never propagated: a broken notifier must not fail a job.
type Fanout struct {
	channels []Channel
	logger   *slog.Logger
}

// NewFanout creates a fan-out over the given channels. Zero channels is
// valid and makes Notify a no-op.
func NewFanout(logger *slog.Logger, channels ...Channel) *Fanout {
	return &Fanout{channels: channels, logger: logger}
}

// NotifyJob emits a terminal-transition event for the given job.
func (f *Fanout) NotifyJob(ctx context.Context, job *store.Job) {
	ev := Event{
		JobID:   job.ID,
		Type:    string(job.Type),
		Query:   job.Query,
		Success: job.Status == store.JobStatusCompleted,
	}
	if job.Result != nil {
		ev.Result = truncate(*job.Result, maxSnippetLen)
	}
	if job.Error != nil {
		ev.Error = truncate(*job.Error, maxSnippetLen)
	}
	f.Notify(ctx, ev)
}

// Notify delivers the event to all channels concurrently.
func (f *Fanout) Notify(ctx context.Context, ev Event) {
	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range f.channels {
		g.Go(func() error {
			if err := ch.Send(ctx, ev); err != nil {
				f.logger.Error("notification channel failed",
					"channel", ch.Name(), "job_id", ev.JobID, "error", err)
			}
			// Always nil: one channel's failure must not cancel the rest.
			return nil
		})
	}
	g.Wait()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// LogChannel writes events to the structured log.
type LogChannel struct {
	Logger *slog.Logger
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, ev Event) error {
	if ev.Success {
		c.Logger.Info("job completed", "job_id", ev.JobID, "type", ev.Type, "query", ev.Query)
	} else {
		c.Logger.Warn("job failed", "job_id", ev.JobID, "type", ev.Type, "query", ev.Query, "error", ev.Error)
	}
	return nil
}

// WebhookChannel POSTs events to a configured URL.
type WebhookChannel struct {
	URL    string
	Client *http.Client
}

// NewWebhookChannel creates a webhook channel with a bounded timeout.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
