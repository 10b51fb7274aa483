package task

import (
	"fmt"

	"github.com/dgallion/playmaker/internal/artifact"
)

// Stage is one discrete unit of work within a task's pipeline. The set is
// closed; file-retention behavior during recovery is driven entirely by the
// stage table below, never by ad hoc stage-name comparisons.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageRetrieving Stage = "retrieving"
	StageGenerating Stage = "generating"
	StageEvaluating Stage = "evaluating"
	StageReflecting Stage = "reflecting"
	StageCurating   Stage = "curating"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageExtracting, StageRetrieving, StageGenerating,
	StageEvaluating, StageReflecting, StageCurating,
}

// StageSpec describes how a task resumes at one stage: the status the task is
// placed into before re-executing the stage, the artifact the stage produces,
// and the exact artifacts retained from earlier stages. Every artifact not in
// Keep is discarded on resume.
type StageSpec struct {
	ResumeStatus Status
	Produces     artifact.Name
	Keep         []artifact.Name
}

// stageTable is the single exhaustive mapping from stage to recovery
// behavior. Adding a stage means adding one entry here.
var stageTable = map[Stage]StageSpec{
	StageExtracting: {
		ResumeStatus: StatusPending,
		Produces:     artifact.Requirements,
		Keep:         nil,
	},
	StageRetrieving: {
		ResumeStatus: StatusAwaitingConfirm,
		Produces:     artifact.RetrievedContext,
		Keep:         []artifact.Name{artifact.Requirements},
	},
	StageGenerating: {
		ResumeStatus: StatusRetrieving,
		Produces:     artifact.Plan,
		Keep:         []artifact.Name{artifact.Requirements, artifact.RetrievedContext},
	},
	StageEvaluating: {
		ResumeStatus: StatusCompleted,
		Produces:     artifact.Feedback,
		Keep:         []artifact.Name{artifact.Requirements, artifact.RetrievedContext, artifact.Plan},
	},
	StageReflecting: {
		ResumeStatus: StatusEvaluating,
		Produces:     artifact.Insights,
		Keep: []artifact.Name{
			artifact.Requirements, artifact.RetrievedContext,
			artifact.Plan, artifact.Feedback,
		},
	},
	StageCurating: {
		ResumeStatus: StatusReflecting,
		Produces:     artifact.CurationRecord,
		Keep: []artifact.Name{
			artifact.Requirements, artifact.RetrievedContext,
			artifact.Plan, artifact.Feedback, artifact.Insights,
		},
	},
}

// Spec returns the recovery spec for a stage.
func (s Stage) Spec() (StageSpec, error) {
	spec, ok := stageTable[s]
	if !ok {
		return StageSpec{}, fmt.Errorf("unknown stage: %s", s)
	}
	return spec, nil
}

// Valid reports whether s is a member of the closed stage set.
func (s Stage) Valid() bool {
	_, ok := stageTable[s]
	return ok
}

// NextStage returns the stage that executes next from the given status.
// Artifact presence (the has predicate) is the ground truth that
// disambiguates a status whose stage output already exists from one whose
// stage is still pending. Returns false when no stage is executable
// (failed, cancelled, feedback_completed, or a finished phase awaiting
// finalization by the supervisor).
func NextStage(s Status, has func(artifact.Name) bool) (Stage, bool) {
	switch s {
	case StatusPending:
		if has(artifact.Requirements) {
			return "", false // finished, awaiting finalization to awaiting_confirm
		}
		return StageExtracting, true
	case StatusAwaitingConfirm:
		return StageRetrieving, true
	case StatusRetrieving:
		if has(artifact.RetrievedContext) {
			return StageGenerating, true
		}
		return StageRetrieving, true
	case StatusGenerating:
		if has(artifact.Plan) {
			return "", false // finished, awaiting finalization to completed
		}
		return StageGenerating, true
	case StatusCompleted:
		return StageEvaluating, true
	case StatusEvaluating:
		if has(artifact.Feedback) {
			return StageReflecting, true
		}
		return StageEvaluating, true
	case StatusReflecting:
		if has(artifact.Insights) {
			return StageCurating, true
		}
		return StageReflecting, true
	case StatusCurating:
		if has(artifact.CurationRecord) {
			return "", false // finished, awaiting finalization
		}
		return StageCurating, true
	}
	return "", false
}
