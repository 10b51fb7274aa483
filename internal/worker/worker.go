package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion/playmaker/internal/artifact"
	"github.com/dgallion/playmaker/internal/curation"
	"github.com/dgallion/playmaker/internal/pipeline"
	"github.com/dgallion/playmaker/internal/playbook"
	"github.com/dgallion/playmaker/internal/task"
)

// cancelPollInterval is how often a running stage checks the task's
// cancellation flag.
const cancelPollInterval = time.Second

// Collaborators are the external pipeline contracts a worker invokes. Each
// is an opaque, possibly slow, possibly-failing call.
type Collaborators struct {
	Extractor pipeline.Extractor
	Retriever pipeline.Retriever
	Generator pipeline.Generator
	Evaluator pipeline.Evaluator
	Reflector pipeline.Reflector
	Curator   pipeline.Curator
}

// Worker executes exactly one pipeline stage for one task, then exits. It
// communicates with the supervisor only through the artifact store and the
// event log; it never touches the task record.
type Worker struct {
	tasks    *task.Store
	playbook *playbook.Store
	engine   *curation.Engine
	collab   Collaborators
}

// New creates a worker.
func New(tasks *task.Store, pb *playbook.Store, engine *curation.Engine, collab Collaborators) *Worker {
	return &Worker{tasks: tasks, playbook: pb, engine: engine, collab: collab}
}

// RunStage executes the given stage for the task. The stage's output
// artifact is written on success; on failure nothing is written and the
// error is returned for the supervisor to record.
func (w *Worker) RunStage(ctx context.Context, t *task.Task, stage task.Stage) error {
	dir := w.tasks.Dir(t.ID)
	store := artifact.NewStore(dir)
	events := task.NewEventLogger(dir)

	// Observe cooperative cancellation while the stage runs.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.watchCancel(ctx, cancel, t.ID)

	events.StageStarted(stage, t.RetryCount+1)

	var err error
	switch stage {
	case task.StageExtracting:
		err = w.extract(ctx, t, store)
	case task.StageRetrieving:
		err = w.retrieve(ctx, store)
	case task.StageGenerating:
		err = w.generate(ctx, store)
	case task.StageEvaluating:
		err = w.evaluate(ctx, t, store)
	case task.StageReflecting:
		err = w.reflect(ctx, store)
	case task.StageCurating:
		err = w.curate(ctx, t, store, events)
	default:
		err = fmt.Errorf("unknown stage: %s", stage)
	}

	if err != nil {
		events.StageFailed(stage, err.Error())
		return err
	}
	events.StageCompleted(stage)
	return nil
}

func (w *Worker) watchCancel(ctx context.Context, cancel context.CancelFunc, taskID string) {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.tasks.CancelRequested(taskID) {
				cancel()
				return
			}
		}
	}
}

func (w *Worker) extract(ctx context.Context, t *task.Task, store *artifact.Store) error {
	req, err := w.collab.Extractor.Extract(ctx, t.Name)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	return store.Write(artifact.Requirements, req)
}

func (w *Worker) retrieve(ctx context.Context, store *artifact.Store) error {
	var req pipeline.RequirementsPayload
	if err := store.Read(artifact.Requirements, &req); err != nil {
		return err
	}
	retrieved, err := w.collab.Retriever.Retrieve(ctx, &req)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	return store.Write(artifact.RetrievedContext, retrieved)
}

func (w *Worker) generate(ctx context.Context, store *artifact.Store) error {
	var req pipeline.RequirementsPayload
	if err := store.Read(artifact.Requirements, &req); err != nil {
		return err
	}
	var retrieved pipeline.ContextPayload
	if err := store.Read(artifact.RetrievedContext, &retrieved); err != nil {
		return err
	}
	snapshot, err := w.playbook.Load()
	if err != nil {
		return err
	}

	plan, err := w.collab.Generator.Generate(ctx, &req, &retrieved, snapshot)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	return store.Write(artifact.Plan, plan)
}

func (w *Worker) evaluate(ctx context.Context, t *task.Task, store *artifact.Store) error {
	var plan pipeline.PlanPayload
	if err := store.Read(artifact.Plan, &plan); err != nil {
		return err
	}

	mode := t.FeedbackMode
	if mode == "" {
		mode = task.FeedbackAuto
	}
	feedback, err := w.collab.Evaluator.Evaluate(ctx, &plan, mode)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	feedback.Mode = mode
	return store.Write(artifact.Feedback, feedback)
}

func (w *Worker) reflect(ctx context.Context, store *artifact.Store) error {
	var plan pipeline.PlanPayload
	if err := store.Read(artifact.Plan, &plan); err != nil {
		return err
	}
	var feedback pipeline.FeedbackPayload
	if err := store.Read(artifact.Feedback, &feedback); err != nil {
		return err
	}

	insights, err := w.collab.Reflector.Reflect(ctx, &plan, &feedback)
	if err != nil {
		return fmt.Errorf("reflection failed: %w", err)
	}
	return store.Write(artifact.Insights, insights)
}

// curate folds the reflection output into the playbook: counter tags for the
// bullets the generator consulted, plus the curator's add/update/delete
// proposals. Both go through the curation engine as one validated batch so a
// single invalid operation rejects everything and the resulting record
// reverses the stage completely.
func (w *Worker) curate(ctx context.Context, t *task.Task, store *artifact.Store, events *task.EventLogger) error {
	var insights pipeline.InsightsPayload
	if err := store.Read(artifact.Insights, &insights); err != nil {
		return err
	}

	// The curator proposes against a snapshot because its call is slow, but
	// tag ops are built against the live playbook inside the apply batch.
	snapshot, err := w.playbook.Load()
	if err != nil {
		return err
	}
	proposed, err := w.collab.Curator.Curate(ctx, &insights, snapshot)
	if err != nil {
		return fmt.Errorf("curation proposal failed: %w", err)
	}

	var warnings []string
	record, err := w.engine.ApplyWith(t.ID, func(pb *playbook.Playbook) ([]curation.Op, error) {
		ops, w2, err := w.engine.BuildTagOps(pb, insights.BulletTags)
		if err != nil {
			return nil, fmt.Errorf("invalid bullet tags: %w", err)
		}
		warnings = w2
		for _, p := range proposed {
			ops = append(ops, curation.Op{
				Kind:     curation.Kind(strings.ToUpper(p.Kind)),
				Section:  p.Section,
				BulletID: p.BulletID,
				Content:  p.Content,
			})
		}
		return ops, nil
	})
	if err != nil {
		return fmt.Errorf("curation failed: %w", err)
	}
	record.Warnings = append(record.Warnings, warnings...)
	return store.Write(artifact.CurationRecord, record)
}
