package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete [task-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Long: `Delete a task. The task disappears immediately; the remote copy is
removed in the background.

Examples:
  caldo delete abc123
  caldo delete abc123 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var deleteForce bool

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	uid, err := resolveUID(eng, args[0])
	if err != nil {
		return err
	}

	if !deleteForce {
		task := eng.Snapshot().Tasks[uid]
		fmt.Printf("Delete \"%s\"? [y/N] ", task.Summary)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := eng.DeleteTask(uid); err != nil {
		return err
	}
	fmt.Printf("✓ Deleted %s\n", shortUID(uid))
	return nil
}
