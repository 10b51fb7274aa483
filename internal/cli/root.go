package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion/playmaker/internal/curation"
	"github.com/dgallion/playmaker/internal/playbook"
	"github.com/dgallion/playmaker/internal/supervisor"
	"github.com/dgallion/playmaker/internal/task"
	"github.com/dgallion/playmaker/internal/version"
)

const (
	dataDir        = ".playmaker"
	configFileName = "playbook.yaml"
	knowledgeDir   = "knowledge"
)

var rootCmd = &cobra.Command{
	Use:     "playmaker",
	Short:   "Playbook-curated generation task runner",
	Long:    `Playmaker runs long-running generation tasks through a staged pipeline, folds evaluation feedback into a curated playbook, and recovers precisely after failure or cancellation.`,
	Version: version.String(),
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(playbookCmd)
	rootCmd.AddCommand(workerCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// env bundles the stores and engine every command needs, opened relative to
// the working directory.
type env struct {
	tasks    *task.Store
	playbook *playbook.Store
	config   playbook.Config
	engine   *curation.Engine
}

func openEnv() (*env, error) {
	cfg, err := playbook.LoadConfig(filepath.Join(dataDir, configFileName))
	if err != nil {
		return nil, err
	}
	pb := playbook.NewStore(dataDir)
	return &env{
		tasks:    task.NewStore("."),
		playbook: pb,
		config:   cfg,
		engine:   curation.NewEngine(pb, cfg),
	}, nil
}

func (e *env) supervisor(runner supervisor.StageRunner) *supervisor.Supervisor {
	return supervisor.New(e.tasks, e.playbook, e.engine, runner)
}

func requireInitialized() error {
	info, err := os.Stat(dataDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("playmaker is not initialized here; run 'playmaker init' first")
	}
	if err != nil {
		return fmt.Errorf("failed to check %s directory: %w", dataDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists but is not a directory", dataDir)
	}
	return nil
}
