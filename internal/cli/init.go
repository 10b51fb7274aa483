package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion/playmaker/internal/playbook"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize playmaker in the current directory",
	Long:  "Creates the .playmaker/ data directory, an empty playbook with the configured sections, and the knowledge directory.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(filepath.Join(dataDir, knowledgeDir), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg, err := playbook.LoadConfig(filepath.Join(dataDir, configFileName))
	if err != nil {
		return err
	}

	store := playbook.NewStore(dataDir)
	if store.Exists() {
		fmt.Println("Playbook already exists; nothing to do.")
		return nil
	}
	if err := store.Init(cfg); err != nil {
		return err
	}

	fmt.Printf("Initialized playmaker with sections: %v\n", cfg.SectionNames())
	return nil
}
