package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion/playmaker/internal/display"
	"github.com/dgallion/playmaker/internal/recovery"
	"github.com/dgallion/playmaker/internal/supervisor"
	"github.com/dgallion/playmaker/internal/task"
)

var (
	createMaxRetries int

	runAutoConfirm  bool
	runFeedback     bool
	runFeedbackMode string

	retryForce           bool
	retryStage           string
	retryClean           bool
	retryDiscardPlaybook bool
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new generation task",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var runCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Run a task's pipeline until it completes or hits a gate",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

var retryCmd = &cobra.Command{
	Use:     "retry <task-id>",
	Aliases: []string{"resume"},
	Short:   "Compute and apply a recovery plan for a failed, cancelled, or finished task",
	Long: `Computes a recovery plan from the task's recorded state and the artifacts on
disk, applies it (artifact retention, retry accounting, optional playbook
rollback), and leaves the task ready for 'playmaker run'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel an active task, terminating its worker",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	createCmd.Flags().IntVar(&createMaxRetries, "max-retries", task.DefaultMaxRetries, "Retry ceiling for automatic retries")

	runCmd.Flags().BoolVarP(&runAutoConfirm, "yes", "y", false, "Skip the requirements confirmation gate")
	runCmd.Flags().BoolVar(&runFeedback, "feedback", false, "Continue past completion into evaluation, reflection, and curation")
	runCmd.Flags().StringVar(&runFeedbackMode, "feedback-mode", "", "Evaluation strategy: auto, llm_judge, or human (default: persisted mode)")

	retryCmd.Flags().BoolVarP(&retryForce, "force", "f", false, "Override the retry ceiling and non-retryable errors; regenerate finished tasks")
	retryCmd.Flags().StringVar(&retryStage, "stage", "", "Explicit stage to resume at (extracting, retrieving, generating, evaluating, reflecting, curating)")
	retryCmd.Flags().BoolVar(&retryClean, "clean", false, "Discard every artifact and restart from scratch")
	retryCmd.Flags().BoolVar(&retryDiscardPlaybook, "discard-playbook", false, "Roll back this task's playbook contribution before resuming")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}

	t, err := e.tasks.Create(args[0], createMaxRetries)
	if err != nil {
		return err
	}
	fmt.Printf("Created task %s (%s)\n", t.ID, t.Name)
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}

	current, err := e.tasks.Load(args[0])
	if err != nil {
		return err
	}

	progress := display.New(os.Stdout)
	progress.Start(current.Name)

	sup := e.supervisor(nil)
	t, err := sup.Run(cmd.Context(), args[0], supervisor.RunOptions{
		AutoConfirm:  runAutoConfirm,
		Feedback:     runFeedback,
		FeedbackMode: runFeedbackMode,
		OnStage: func(stage task.Stage, attempt, maxAttempts int) {
			progress.UpdateStage(stage, attempt, maxAttempts)
		},
	})
	progress.Stop()
	if err != nil {
		return err
	}

	switch t.Status {
	case task.StatusAwaitingConfirm:
		fmt.Printf("Task %s: requirements extracted; rerun with --yes to continue.\n", t.ID)
	case task.StatusCompleted:
		fmt.Printf("Task %s completed. Rerun with --feedback to start the feedback cycle.\n", t.ID)
	case task.StatusFeedbackCompleted:
		fmt.Printf("Task %s completed its feedback cycle.\n", t.ID)
	case task.StatusCancelled:
		fmt.Printf("Task %s was cancelled during %s.\n", t.ID, t.FailedStage)
	default:
		fmt.Printf("Task %s is %s.\n", t.ID, t.Status)
	}
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}

	sup := e.supervisor(nil)
	plan, t, err := sup.Resume(args[0], recovery.Options{
		Force:           retryForce,
		TargetStage:     task.Stage(retryStage),
		Clean:           retryClean,
		DiscardPlaybook: retryDiscardPlaybook,
	})
	if err != nil {
		return err
	}

	for _, w := range plan.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	if plan.IntegrityCompromised {
		fmt.Println("Some artifacts failed integrity checks and were discarded; a clean retry may be safer.")
	}

	kept := make([]string, 0, len(plan.Keep))
	for _, name := range plan.Keep {
		kept = append(kept, string(name))
	}
	fmt.Printf("Task %s resumed into %s (stage %s, retry %d/%d, kept: %s)\n",
		t.ID, t.Status, plan.Stage, t.RetryCount, t.MaxRetries, strings.Join(kept, ", "))
	fmt.Println("Run 'playmaker run' to continue.")
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}

	sup := e.supervisor(nil)
	t, err := sup.Cancel(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Task %s cancelled (stage %s recorded).\n", t.ID, t.FailedStage)
	return nil
}
