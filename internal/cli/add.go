package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [smart text]",
	Short: "Add a new task",
	Long: `Add a new task using smart syntax.

Examples:
  caldo add "Buy groceries"
  caldo add "!2 @tomorrow #work Prepare slides"
  caldo add "#errands ~30m Pick up package"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	task, err := eng.AddTask(strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}

	fmt.Printf("✓ Added \"%s\" (%s)\n", task.Summary, shortUID(task.UID))
	return nil
}

func shortUID(uid string) string {
	if len(uid) > 8 {
		return uid[:8]
	}
	return uid
}
