// Package collab defines the capability interfaces for the browser
// automation collaborators. The DOM-driving implementations live
// outside this repository; the pipeline depends only on these contracts.
package collab

import "context"

// ResearchOptions controls a research query.
type ResearchOptions struct {
	// Deep requests the long-form deep-research flow instead of a fast
	// grounded answer.
	Deep bool
	// SessionScoped keeps the query inside the current automation
	// session so follow-up calls see the same conversation.
	SessionScoped bool
	// Seed is prior content the synthesis should build on.
	Seed string
}

// Researcher executes research queries against the automation session.
type Researcher interface {
	// Research runs a query and returns the produced content.
	Research(ctx context.Context, query string, opts ResearchOptions) (string, error)

	// ResearchStreaming runs a query, invoking onDelta as content
	// arrives, and returns the full content.
	ResearchStreaming(ctx context.Context, query string, onDelta func(string)) (string, error)
}

// Syncer pulls the conversation history out of the automation session.
type Syncer interface {
	// SyncConversations imports conversations and returns how many were
	// synced.
	SyncConversations(ctx context.Context) (int, error)
}

// ExportedDoc identifies a document materialized by the exporter.
type ExportedDoc struct {
	ExternalID string
	URL        string
	Title      string
}

// Exporter materializes the latest research output as a durable,
// shareable document.
type Exporter interface {
	ExportToDoc(ctx context.Context) (*ExportedDoc, error)
}

// OverviewOptions controls one audio overview generation.
type OverviewOptions struct {
	ContainerTitle    string
	Sources           []string
	CustomPrompt      string
	WaitForCompletion bool
	DryRun            bool
}

// OverviewResult is the outcome of an audio overview generation.
type OverviewResult struct {
	Success       bool
	ArtifactTitle string
}

// AudioStudio manages the notebook-like audio container: generation,
// download and artifact renaming.
type AudioStudio interface {
	// GenerateOverview creates or opens the container, attaches the
	// sources and triggers audio synthesis.
	GenerateOverview(ctx context.Context, opts OverviewOptions) (*OverviewResult, error)

	// DownloadAudio fetches a finished artifact to destPath. The filter
	// narrows which artifact when the container holds several.
	DownloadAudio(ctx context.Context, containerTitle, destPath, filter string) (bool, error)

	// RenameArtifact renames a generated artifact, e.g. to embed its
	// registry ID in the visible title.
	RenameArtifact(ctx context.Context, oldTitle, newTitle string) (bool, error)
}
