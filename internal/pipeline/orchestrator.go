// Package pipeline executes research jobs end to end: it pulls queued
// jobs, drives the external collaborators stage by stage and records
// every produced artifact in the registry and the graph store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"researchplane/internal/collab"
	"researchplane/internal/dispatch"
	"researchplane/internal/guard"
	"researchplane/internal/jobs"
	"researchplane/internal/notify"
	"researchplane/internal/registry"
	"researchplane/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AudioDispatcher is the slice of the dispatch client the orchestrator
// uses for fire-and-forget audio jobs.
type AudioDispatcher interface {
	IsConfigured() bool
	QueueAudioGenerations(ctx context.Context, notebookTitle string, sources []string, customPrompt string) (*dispatch.QueueResult, error)
	AwaitCompletion(ctx context.Context, pending []*store.PendingAudio) error
}

// Deps are the collaborators an Orchestrator is composed from. All of
// them are chosen at the composition root; unconfigured ones arrive as
// null objects, never as nil.
type Deps struct {
	Queue      *jobs.Queue
	Registry   *registry.Registry
	Graph      store.GraphStore
	Dispatcher AudioDispatcher
	Researcher collab.Researcher
	Syncer     collab.Syncer
	Exporter   collab.Exporter
	Studio     collab.AudioStudio
	Guard      *guard.Serial
	Notifier   *notify.Fanout
	Logger     *slog.Logger
	DataDir    string
}

// Orchestrator runs one job at a time through its stages. A stage
// failure marks the job failed with the stage name in the error text;
// nothing already produced is rolled back.
type Orchestrator struct {
	queue      *jobs.Queue
	registry   *registry.Registry
	graph      store.GraphStore
	dispatcher AudioDispatcher
	researcher collab.Researcher
	syncer     collab.Syncer
	exporter   collab.Exporter
	studio     collab.AudioStudio
	serial     *guard.Serial
	notifier   *notify.Fanout
	logger     *slog.Logger
	dataDir    string
	now        func() time.Time
}

// New creates an orchestrator from its dependencies.
func New(d Deps) *Orchestrator {
	return &Orchestrator{
		queue:      d.Queue,
		registry:   d.Registry,
		graph:      d.Graph,
		dispatcher: d.Dispatcher,
		researcher: d.Researcher,
		syncer:     d.Syncer,
		exporter:   d.Exporter,
		studio:     d.Studio,
		serial:     d.Guard,
		notifier:   d.Notifier,
		logger:     d.Logger,
		dataDir:    d.DataDir,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs a claimed job to a terminal state and fires the
// completion notification. Terminal writes use a background context so
// a shutdown mid-job still leaves a consistent record.
func (o *Orchestrator) Execute(ctx context.Context, job *store.Job) {
	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(ctx, "execute_job",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.type", string(job.Type)),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	if _, err := o.queue.UpdateStatus(ctx, job.ID, store.JobStatusRunning, nil); err != nil {
		o.logger.Error("failed to mark job running", "job_id", job.ID, "error", err)
		return
	}
	o.logger.Info("job started", "job_id", job.ID, "type", job.Type)

	result, runErr := o.run(ctx, job)

	var final *store.Job
	var err error
	if runErr != nil {
		span.RecordError(runErr)
		msg := runErr.Error()
		final, err = o.queue.UpdateStatus(context.Background(), job.ID, store.JobStatusFailed,
			&jobs.StatusUpdate{Error: &msg})
		o.logger.Error("job failed", "job_id", job.ID, "error", runErr)
	} else {
		final, err = o.queue.UpdateStatus(context.Background(), job.ID, store.JobStatusCompleted,
			&jobs.StatusUpdate{Result: &result})
		o.logger.Info("job completed", "job_id", job.ID)
	}
	if err != nil {
		o.logger.Error("failed to finalize job", "job_id", job.ID, "error", err)
		return
	}

	o.notifier.NotifyJob(context.Background(), final)
}

func (o *Orchestrator) run(ctx context.Context, job *store.Job) (string, error) {
	switch job.Type {
	case store.JobTypeQuery:
		return o.runQuery(ctx, job, false)
	case store.JobTypeDeepResearch:
		return o.runQuery(ctx, job, true)
	case store.JobTypeSyncConversations:
		return o.runSync(ctx)
	case store.JobTypeAudioGeneration:
		return o.runAudioDispatch(ctx, job)
	case store.JobTypeResearchToPodcast:
		return o.runPodcast(ctx, job)
	default:
		return "", fmt.Errorf("unsupported job type %q", job.Type)
	}
}

// stage wraps one pipeline stage with a span and the stage-name error
// prefix the job record carries on failure.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "stage."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("stage %s: %w", name, err)
	}
	return nil
}

func (o *Orchestrator) runQuery(ctx context.Context, job *store.Job, deep bool) (string, error) {
	var content string
	err := o.serial.Do(ctx, "research", func(ctx context.Context) error {
		var rerr error
		content, rerr = o.researcher.Research(ctx, job.Query, collab.ResearchOptions{
			Deep:          deep,
			SessionScoped: true,
		})
		return rerr
	})
	return content, err
}

func (o *Orchestrator) runSync(ctx context.Context) (string, error) {
	var count int
	err := o.serial.Do(ctx, "sync_conversations", func(ctx context.Context) error {
		var serr error
		count, serr = o.syncer.SyncConversations(ctx)
		return serr
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("synced %d conversations", count), nil
}

// runAudioDispatch hands the work to the remote execution service. The
// job's query names the target notebook; its options carry the sources.
// With WaitForAudio set the job stays running until every remote
// generation reaches a terminal state; otherwise it completes as soon as
// the triggers are out and the PendingAudio records track the rest.
func (o *Orchestrator) runAudioDispatch(ctx context.Context, job *store.Job) (string, error) {
	res, err := o.dispatcher.QueueAudioGenerations(ctx, job.Query, job.Options.Sources, job.Options.CustomPrompt)
	if err != nil {
		return "", err
	}
	if len(res.Queued) == 0 {
		return "", fmt.Errorf("all %d audio triggers failed", len(res.Failed))
	}

	if job.Options.WaitForAudio {
		if err := o.dispatcher.AwaitCompletion(ctx, res.PendingAudios); err != nil {
			return "", err
		}
		return fmt.Sprintf("finished %d audio generations (%d failed to trigger)", len(res.Queued), len(res.Failed)), nil
	}

	return fmt.Sprintf("queued %d audio generations (%d failed)", len(res.Queued), len(res.Failed)), nil
}

// runPodcast is the full research-to-podcast flow:
// query, deep_research, export, register, notebook, audio.
func (o *Orchestrator) runPodcast(ctx context.Context, job *store.Job) (string, error) {
	opts := job.Options

	var quick string
	err := o.stage(ctx, "query", func(ctx context.Context) error {
		return o.serial.Do(ctx, "research.query", func(ctx context.Context) error {
			var rerr error
			quick, rerr = o.researcher.Research(ctx, job.Query, collab.ResearchOptions{SessionScoped: true})
			return rerr
		})
	})
	if err != nil {
		return "", err
	}

	err = o.stage(ctx, "deep_research", func(ctx context.Context) error {
		return o.serial.Do(ctx, "research.deep", func(ctx context.Context) error {
			_, rerr := o.researcher.Research(ctx, job.Query, collab.ResearchOptions{
				Deep:          true,
				SessionScoped: true,
				Seed:          quick,
			})
			return rerr
		})
	})
	if err != nil {
		return "", err
	}

	var doc *collab.ExportedDoc
	err = o.stage(ctx, "export", func(ctx context.Context) error {
		return o.serial.Do(ctx, "export.doc", func(ctx context.Context) error {
			var eerr error
			doc, eerr = o.exporter.ExportToDoc(ctx)
			return eerr
		})
	})
	if err != nil {
		return "", err
	}

	var sessionID, docID, docTitle string
	err = o.stage(ctx, "register", func(ctx context.Context) error {
		sessionID = o.sessionFor(job)

		var rerr error
		docID, rerr = o.registry.RegisterDocument(sessionID, doc.ExternalID, doc.Title)
		if rerr != nil {
			return rerr
		}

		docTitle = fmt.Sprintf("[%s] %s", docID, doc.Title)
		o.renameArtifact(ctx, docID, doc.Title, docTitle)

		if rerr = o.ensureEntity(ctx, sessionID, registry.TypeSession, job.Query); rerr != nil {
			return rerr
		}
		if rerr = o.ensureEntity(ctx, docID, registry.TypeDocument, docTitle); rerr != nil {
			return rerr
		}
		return o.linkDerived(ctx, docID, sessionID)
	})
	if err != nil {
		return "", err
	}

	notebookTitle := fmt.Sprintf("Research %s", sessionID)
	var overview *collab.OverviewResult
	err = o.stage(ctx, "notebook", func(ctx context.Context) error {
		return o.serial.Do(ctx, "audio.generate", func(ctx context.Context) error {
			var gerr error
			overview, gerr = o.studio.GenerateOverview(ctx, collab.OverviewOptions{
				ContainerTitle:    notebookTitle,
				Sources:           []string{doc.Title},
				CustomPrompt:      opts.CustomPrompt,
				WaitForCompletion: true,
				DryRun:            opts.DryRun,
			})
			if gerr != nil {
				return gerr
			}
			if !overview.Success {
				return fmt.Errorf("audio generation did not complete")
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	if opts.DryRun {
		return fmt.Sprintf("dry run: session=%s document=%s, audio generation skipped", sessionID, docID), nil
	}

	var audioID, destPath string
	err = o.stage(ctx, "audio", func(ctx context.Context) error {
		destPath = filepath.Join(o.dataDir, "audio", strings.ToLower(docID)+".m4a")

		aerr := o.serial.Do(ctx, "audio.download", func(ctx context.Context) error {
			ok, derr := o.studio.DownloadAudio(ctx, notebookTitle, destPath, overview.ArtifactTitle)
			if derr != nil {
				return derr
			}
			if !ok {
				return fmt.Errorf("audio artifact %q not found in %q", overview.ArtifactTitle, notebookTitle)
			}
			return nil
		})
		if aerr != nil {
			return aerr
		}

		audioID, aerr = o.registry.RegisterAudio(docID, notebookTitle, overview.ArtifactTitle, destPath)
		if aerr != nil {
			return aerr
		}

		audioTitle := fmt.Sprintf("[%s] %s", audioID, overview.ArtifactTitle)
		o.renameArtifact(ctx, audioID, overview.ArtifactTitle, audioTitle)

		if aerr = o.ensureEntity(ctx, audioID, registry.TypeAudio, audioTitle); aerr != nil {
			return aerr
		}
		return o.linkDerived(ctx, audioID, docID)
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("session=%s document=%s audio=%s path=%s", sessionID, docID, audioID, destPath), nil
}

// sessionFor returns the registry session for this job, reusing one
// already minted for the same job (a retry of the same submission).
func (o *Orchestrator) sessionFor(job *store.Job) string {
	if id, ok := o.registry.FindByExternalID(registry.TypeSession, job.ID); ok {
		return id
	}
	return o.registry.RegisterSession(job.ID, job.Query)
}

// renameArtifact renames the visible artifact to embed its registry ID.
// The registry stays authoritative, so a failed rename is logged and the
// run continues.
func (o *Orchestrator) renameArtifact(ctx context.Context, id, oldTitle, newTitle string) {
	err := o.serial.Do(ctx, "rename", func(ctx context.Context) error {
		ok, rerr := o.studio.RenameArtifact(ctx, oldTitle, newTitle)
		if rerr != nil {
			return rerr
		}
		if !ok {
			return fmt.Errorf("artifact %q not found", oldTitle)
		}
		return nil
	})
	if err != nil {
		o.logger.Warn("artifact rename failed", "id", id, "error", err)
		return
	}
	if err := o.registry.UpdateTitle(id, newTitle); err != nil {
		o.logger.Warn("failed to update registry title", "id", id, "error", err)
	}
}

func (o *Orchestrator) ensureEntity(ctx context.Context, id, entityType, name string) error {
	_, err := o.graph.GetEntityByID(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return o.graph.CreateEntity(ctx, nil, &store.Entity{
		ID:        id,
		Type:      entityType,
		Name:      name,
		CreatedAt: o.now(),
	})
}

func (o *Orchestrator) linkDerived(ctx context.Context, childID, parentID string) error {
	return o.graph.CreateRelationship(ctx, nil, &store.Relationship{
		FromID:    childID,
		ToID:      parentID,
		Type:      store.RelDerivedFrom,
		CreatedAt: o.now(),
	})
}
