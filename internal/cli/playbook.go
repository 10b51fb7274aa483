package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dgallion/playmaker/internal/artifact"
	"github.com/dgallion/playmaker/internal/curation"
)

var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Inspect and maintain the shared playbook",
}

var playbookShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every section and its bullets",
	RunE:  runPlaybookShow,
}

var playbookDedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Merge near-duplicate bullets within each section",
	RunE:  runPlaybookDedupe,
}

var playbookRollbackCmd = &cobra.Command{
	Use:   "rollback <task-id>",
	Short: "Reverse a task's curation contribution",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlaybookRollback,
}

func init() {
	playbookCmd.AddCommand(playbookShowCmd)
	playbookCmd.AddCommand(playbookDedupeCmd)
	playbookCmd.AddCommand(playbookRollbackCmd)
}

func runPlaybookShow(cmd *cobra.Command, args []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}

	pb, err := e.playbook.Load()
	if err != nil {
		return err
	}

	sections := make([]string, 0, len(pb.Sections))
	for name := range pb.Sections {
		sections = append(sections, name)
	}
	sort.Strings(sections)

	for _, section := range sections {
		fmt.Println(titleStyle.Render(section))
		bullets := pb.Sections[section]
		if len(bullets) == 0 {
			fmt.Println(subtleStyle.Render("  (empty)"))
			continue
		}
		for _, b := range bullets {
			fmt.Printf("  [%s] %s\n", b.ID, b.Content)
			fmt.Println(subtleStyle.Render(fmt.Sprintf(
				"      helpful %d / harmful %d / neutral %d",
				b.Metadata.HelpfulCount, b.Metadata.HarmfulCount, b.Metadata.NeutralCount)))
		}
	}
	return nil
}

func runPlaybookDedupe(cmd *cobra.Command, args []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}

	record, err := e.engine.Dedupe("dedupe")
	if err != nil {
		return err
	}

	merged := 0
	for _, op := range record.Operations {
		if op.Kind == curation.OpDelete {
			merged++
		}
	}
	fmt.Printf("Merged %d duplicate bullets.\n", merged)
	return nil
}

func runPlaybookRollback(cmd *cobra.Command, args []string) error {
	if err := requireInitialized(); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}

	store := artifact.NewStore(e.tasks.Dir(args[0]))
	var record curation.Record
	if err := store.Read(artifact.CurationRecord, &record); err != nil {
		return fmt.Errorf("task %s has no curation record: %w", args[0], err)
	}

	warnings, err := e.engine.Rollback(&record)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	fmt.Printf("Rolled back %d operations from task %s.\n", len(record.Operations), args[0])
	return nil
}
