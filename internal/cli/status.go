package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dgallion/playmaker/internal/task"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5FAFAF")).
			MarginBottom(1)

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#87AF87"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AF5F5F"))
)

var statusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show task state and playbook summary",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return showTask(e, args[0])
	}
	return showAll(e)
}

func showTask(e *env, id string) error {
	t, err := e.tasks.Load(id)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Task " + t.ID))
	fmt.Printf("  Name:    %s\n", t.Name)
	fmt.Printf("  Status:  %s\n", renderStatus(t.Status))
	if t.FailedStage != "" {
		fmt.Printf("  Stage:   %s\n", t.FailedStage)
	}
	if t.LastError != "" {
		fmt.Printf("  Error:   %s\n", errStyle.Render(t.LastError))
	}
	fmt.Printf("  Retries: %d/%d\n", t.RetryCount, t.MaxRetries)
	if t.FeedbackMode != "" {
		fmt.Printf("  Mode:    %s\n", t.FeedbackMode)
	}

	if len(t.RetryHistory) > 0 {
		fmt.Println(subtleStyle.Render("  History:"))
		for _, r := range t.RetryHistory {
			fmt.Printf("    %s  %s from %s (retry %d, %s)\n",
				r.Timestamp.Format("2006-01-02 15:04"), r.Operation, r.PreviousStatus, r.RetryCount, r.Strategy)
		}
	}
	return nil
}

func showAll(e *env) error {
	tasks, err := e.tasks.List()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Tasks"))
	if len(tasks) == 0 {
		fmt.Println(subtleStyle.Render("  none yet; run 'playmaker create <name>'"))
	}
	for _, t := range tasks {
		fmt.Printf("  %s  %-18s %s\n", t.ID, renderStatus(t.Status), t.Name)
	}

	if !e.playbook.Exists() {
		return nil
	}
	pb, err := e.playbook.Load()
	if err != nil {
		return err
	}
	stats := pb.Summarize()

	fmt.Println(titleStyle.Render("Playbook"))
	sections := make([]string, 0, len(stats.PerSection))
	for name := range stats.PerSection {
		sections = append(sections, name)
	}
	sort.Strings(sections)

	var parts []string
	for _, name := range sections {
		parts = append(parts, fmt.Sprintf("%s: %d", name, stats.PerSection[name]))
	}
	fmt.Printf("  %d bullets (%s)\n", stats.Bullets, strings.Join(parts, ", "))
	fmt.Printf("  tags: %s helpful, %s harmful, %d neutral\n",
		okStyle.Render(fmt.Sprint(stats.HelpfulTotal)),
		errStyle.Render(fmt.Sprint(stats.HarmfulTotal)),
		stats.NeutralTotal)
	return nil
}

func renderStatus(s task.Status) string {
	switch s {
	case task.StatusCompleted, task.StatusFeedbackCompleted:
		return okStyle.Render(string(s))
	case task.StatusFailed:
		return errStyle.Render(string(s))
	case task.StatusCancelled:
		return subtleStyle.Render(string(s))
	default:
		return string(s)
	}
}
