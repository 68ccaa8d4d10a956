package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Toggle a task done",
	Long: `Toggle a task between needs-action and completed. Completing a
recurring task schedules its next occurrence.

Examples:
  caldo done abc123
  caldo done abc1        # uid prefixes work too`,
	Args: cobra.ExactArgs(1),
	RunE: runDone,
}

var startCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Mark a task in-process",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Mark a task cancelled",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func runDone(cmd *cobra.Command, args []string) error {
	return withTask(args[0], "✓ Toggled", func(eng taskMutator, uid string) error {
		return eng.ToggleTask(uid)
	})
}

func runStart(cmd *cobra.Command, args []string) error {
	return withTask(args[0], "▶ Started", func(eng taskMutator, uid string) error {
		return eng.SetStatusProcess(uid)
	})
}

func runCancel(cmd *cobra.Command, args []string) error {
	return withTask(args[0], "✗ Cancelled", func(eng taskMutator, uid string) error {
		return eng.SetStatusCancelled(uid)
	})
}

type taskMutator interface {
	ToggleTask(uid string) error
	SetStatusProcess(uid string) error
	SetStatusCancelled(uid string) error
}

// withTask resolves a uid prefix and applies one mutation.
func withTask(prefix, verb string, mutate func(taskMutator, string) error) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	uid, err := resolveUID(eng, prefix)
	if err != nil {
		return err
	}
	if err := mutate(eng, uid); err != nil {
		return err
	}

	fmt.Printf("%s %s\n", verb, shortUID(uid))
	return nil
}
