package task

import (
	"reflect"
	"testing"

	"github.com/dgallion/playmaker/internal/artifact"
)

func TestStageSpec_ResumeStatusIsPrecursor(t *testing.T) {
	tests := []struct {
		stage  Stage
		resume Status
	}{
		{StageExtracting, StatusPending},
		{StageRetrieving, StatusAwaitingConfirm},
		{StageGenerating, StatusRetrieving},
		{StageEvaluating, StatusCompleted},
		{StageReflecting, StatusEvaluating},
		{StageCurating, StatusReflecting},
	}

	for _, tt := range tests {
		spec, err := tt.stage.Spec()
		if err != nil {
			t.Fatalf("%s: %v", tt.stage, err)
		}
		if spec.ResumeStatus != tt.resume {
			t.Errorf("%s resume status = %s, want %s", tt.stage, spec.ResumeStatus, tt.resume)
		}
	}
}

func TestStageSpec_RetentionGrowsWithPipeline(t *testing.T) {
	tests := []struct {
		stage Stage
		keep  []artifact.Name
	}{
		{StageExtracting, nil},
		{StageRetrieving, []artifact.Name{artifact.Requirements}},
		{StageGenerating, []artifact.Name{artifact.Requirements, artifact.RetrievedContext}},
		{StageEvaluating, []artifact.Name{artifact.Requirements, artifact.RetrievedContext, artifact.Plan}},
		{StageReflecting, []artifact.Name{artifact.Requirements, artifact.RetrievedContext, artifact.Plan, artifact.Feedback}},
		{StageCurating, []artifact.Name{artifact.Requirements, artifact.RetrievedContext, artifact.Plan, artifact.Feedback, artifact.Insights}},
	}

	for _, tt := range tests {
		spec, err := tt.stage.Spec()
		if err != nil {
			t.Fatalf("%s: %v", tt.stage, err)
		}
		if !reflect.DeepEqual(spec.Keep, tt.keep) {
			t.Errorf("%s keep = %v, want %v", tt.stage, spec.Keep, tt.keep)
		}
		// A stage never retains its own output.
		for _, name := range spec.Keep {
			if name == spec.Produces {
				t.Errorf("%s retains its own output %s", tt.stage, name)
			}
		}
	}
}

func TestStage_Valid(t *testing.T) {
	for _, s := range Stages {
		if !s.Valid() {
			t.Errorf("%s reported invalid", s)
		}
	}
	if Stage("deploying").Valid() {
		t.Error("unknown stage reported valid")
	}
	if _, err := Stage("deploying").Spec(); err == nil {
		t.Error("expected error for unknown stage spec")
	}
}

func TestNextStage_DisambiguatesByArtifactPresence(t *testing.T) {
	none := func(artifact.Name) bool { return false }

	tests := []struct {
		status  Status
		present []artifact.Name
		want    Stage
		ok      bool
	}{
		{StatusPending, nil, StageExtracting, true},
		{StatusPending, []artifact.Name{artifact.Requirements}, "", false},
		{StatusAwaitingConfirm, nil, StageRetrieving, true},
		{StatusRetrieving, nil, StageRetrieving, true},
		{StatusRetrieving, []artifact.Name{artifact.RetrievedContext}, StageGenerating, true},
		{StatusGenerating, nil, StageGenerating, true},
		{StatusGenerating, []artifact.Name{artifact.Plan}, "", false},
		{StatusCompleted, nil, StageEvaluating, true},
		{StatusEvaluating, nil, StageEvaluating, true},
		{StatusEvaluating, []artifact.Name{artifact.Feedback}, StageReflecting, true},
		{StatusReflecting, []artifact.Name{artifact.Insights}, StageCurating, true},
		{StatusCurating, nil, StageCurating, true},
		{StatusCurating, []artifact.Name{artifact.CurationRecord}, "", false},
		{StatusFailed, nil, "", false},
		{StatusCancelled, nil, "", false},
		{StatusFeedbackCompleted, nil, "", false},
	}

	for _, tt := range tests {
		has := none
		if len(tt.present) > 0 {
			present := make(map[artifact.Name]bool)
			for _, name := range tt.present {
				present[name] = true
			}
			has = func(n artifact.Name) bool { return present[n] }
		}

		got, ok := NextStage(tt.status, has)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NextStage(%s, %v) = (%s, %v), want (%s, %v)",
				tt.status, tt.present, got, ok, tt.want, tt.ok)
		}
	}
}
