package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit [task-id] [smart text]",
	Short: "Edit a task",
	Long: `Rewrite a task's smart fields, or its description with --desc.
Editing one leaves the other untouched.

Examples:
  caldo edit abc123 "!1 @friday #work Finish report"
  caldo edit abc123 --desc "Longer notes about the task"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEdit,
}

var editDesc bool

func init() {
	editCmd.Flags().BoolVar(&editDesc, "desc", false, "Edit the description instead of the smart fields")
}

func runEdit(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	uid, err := resolveUID(eng, args[0])
	if err != nil {
		return err
	}

	text := strings.Join(args[1:], " ")
	if editDesc {
		err = eng.UpdateTaskDescription(uid, text)
	} else {
		err = eng.UpdateTaskSmart(uid, text)
	}
	if err != nil {
		return err
	}

	fmt.Printf("✓ Updated %s\n", shortUID(uid))
	return nil
}

var prioCmd = &cobra.Command{
	Use:   "prio [task-id] [delta]",
	Short: "Change a task's priority",
	Long: `Shift a task's priority by a delta, clamped to 0-5. Priority 0 means
unset and sorts last.

Examples:
  caldo prio abc123 +1
  caldo prio abc123 -2`,
	Args: cobra.ExactArgs(2),
	RunE: runPrio,
}

func runPrio(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	uid, err := resolveUID(eng, args[0])
	if err != nil {
		return err
	}

	var delta int
	if _, err := fmt.Sscanf(args[1], "%d", &delta); err != nil {
		return fmt.Errorf("delta must be an integer, got %q", args[1])
	}

	if err := eng.ChangePriority(uid, delta); err != nil {
		return err
	}

	task := eng.Snapshot().Tasks[uid]
	fmt.Printf("✓ Priority of %s is now %d\n", shortUID(uid), task.Priority)
	return nil
}

var moveCmd = &cobra.Command{
	Use:   "move [task-id] [calendar-href]",
	Short: "Move a task to another calendar",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

func runMove(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	uid, err := resolveUID(eng, args[0])
	if err != nil {
		return err
	}

	if err := eng.MoveTask(uid, args[1]); err != nil {
		return err
	}
	fmt.Printf("✓ Moved %s to %s\n", shortUID(uid), args[1])
	return nil
}
