package dispatch

import (
	"context"
	"errors"
	"fmt"

	"researchplane/internal/store"
)

// ErrUnknownStatus is returned for webhook payloads whose status the
// service does not recognize.
var ErrUnknownStatus = errors.New("unknown remote status")

// ResolveWebhook maps a completion callback from the execution service
// back onto its PendingAudio record. A terminal record is frozen: a late
// or duplicate callback never flips failed to completed.
func (c *Client) ResolveWebhook(ctx context.Context, remoteJobID, status, resultAudioID, errText string) (*store.PendingAudio, error) {
	target, err := mapRemoteStatus(status)
	if err != nil {
		return nil, err
	}

	pa, err := c.pending.GetPendingAudioByRemoteJobID(ctx, remoteJobID)
	if err != nil {
		return nil, err
	}

	if pa.Status.Terminal() {
		if target != pa.Status {
			c.logger.Warn("ignoring webhook for terminal pending audio",
				"id", pa.ID, "status", pa.Status, "requested", target)
		}
		return pa, nil
	}

	now := c.now()
	pa.Status = target
	if target.Terminal() {
		pa.CompletedAt = &now
	}
	if resultAudioID != "" {
		pa.ResultAudioID = &resultAudioID
	}
	if errText != "" {
		pa.Error = &errText
	}

	if err := c.pending.UpdatePendingAudio(ctx, nil, pa); err != nil {
		return nil, fmt.Errorf("failed to update pending audio %s: %w", pa.ID, err)
	}
	return pa, nil
}

func mapRemoteStatus(status string) (store.PendingAudioStatus, error) {
	switch status {
	case "completed", "success":
		return store.PendingAudioCompleted, nil
	case "failed", "error":
		return store.PendingAudioFailed, nil
	case "running", "generating":
		return store.PendingAudioGenerating, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownStatus, status)
	}
}
