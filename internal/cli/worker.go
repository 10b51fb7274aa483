package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion/playmaker/internal/ai"
	"github.com/dgallion/playmaker/internal/task"
	"github.com/dgallion/playmaker/internal/worker"
)

var (
	workerTaskID string
	workerStage  string
)

// workerCmd is the entrypoint the supervisor launches as an isolated child
// process: it executes exactly one stage for one task and exits. Errors go
// to stderr, where the supervisor records them as the failure text.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Hidden: true,
	Short:  "Execute one pipeline stage (internal)",
	RunE:   runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerTaskID, "task", "", "Task id")
	workerCmd.Flags().StringVar(&workerStage, "stage", "", "Stage to execute")
	workerCmd.MarkFlagRequired("task")
	workerCmd.MarkFlagRequired("stage")
}

func runWorker(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	stage := task.Stage(workerStage)
	if !stage.Valid() {
		return fmt.Errorf("unknown stage: %s", workerStage)
	}
	t, err := e.tasks.Load(workerTaskID)
	if err != nil {
		return err
	}

	kb := ai.NewKnowledgeBase(filepath.Join(dataDir, knowledgeDir))
	kb.Start()

	claude := &ai.Claude{}
	w := worker.New(e.tasks, e.playbook, e.engine, worker.Collaborators{
		Extractor: claude,
		Retriever: &ai.KBRetriever{KB: kb},
		Generator: claude,
		Evaluator: ai.NewEvaluator(claude),
		Reflector: claude,
		Curator:   claude,
	})

	return w.RunStage(cmd.Context(), t, stage)
}
