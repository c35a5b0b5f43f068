package collab

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by the no-op collaborators. Selecting them
// is a composition-time decision driven by configuration, not a runtime
// fallback.
var ErrUnavailable = errors.New("collaborator not configured")

// NoopResearcher is the null-object Researcher.
type NoopResearcher struct{}

func (NoopResearcher) Research(context.Context, string, ResearchOptions) (string, error) {
	return "", ErrUnavailable
}

func (NoopResearcher) ResearchStreaming(context.Context, string, func(string)) (string, error) {
	return "", ErrUnavailable
}

// NoopSyncer is the null-object Syncer.
type NoopSyncer struct{}

func (NoopSyncer) SyncConversations(context.Context) (int, error) {
	return 0, ErrUnavailable
}

// NoopExporter is the null-object Exporter.
type NoopExporter struct{}

func (NoopExporter) ExportToDoc(context.Context) (*ExportedDoc, error) {
	return nil, ErrUnavailable
}

// NoopAudioStudio is the null-object AudioStudio.
type NoopAudioStudio struct{}

func (NoopAudioStudio) GenerateOverview(context.Context, OverviewOptions) (*OverviewResult, error) {
	return nil, ErrUnavailable
}

func (NoopAudioStudio) DownloadAudio(context.Context, string, string, string) (bool, error) {
	return false, ErrUnavailable
}

func (NoopAudioStudio) RenameArtifact(context.Context, string, string) (bool, error) {
	return false, ErrUnavailable
}
