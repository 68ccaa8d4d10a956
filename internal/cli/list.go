package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/caldo/internal/engine"
	"github.com/existflow/caldo/internal/model"
	"github.com/existflow/caldo/internal/smart"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List visible tasks from the local cache.

Examples:
  caldo list
  caldo list --tag work
  caldo list --search milk
  caldo list --tag uncategorized`,
	RunE: runList,
}

var (
	listTag    string
	listSearch string
	listAll    bool
)

func init() {
	listCmd.Flags().StringVarP(&listTag, "tag", "t", "", "Filter by tag (\"uncategorized\" for untagged)")
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Search summary and description")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include completed tasks")
}

var (
	urgentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	lowStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func runList(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	tasks := eng.GetViewTasks(listTag, listSearch)
	if listAll {
		tasks = eng.GetViewTasksAll(listTag, listSearch)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found. Add one with: caldo add \"Your task\"")
		return nil
	}

	fmt.Printf("\nTasks (%d)\n", len(tasks))
	fmt.Println(strings.Repeat("─", 72))
	for _, t := range tasks {
		printTask(eng, t)
	}
	fmt.Println()
	return nil
}

func printTask(eng *engine.Engine, t model.Task) {
	checkbox := map[model.Status]string{
		model.StatusNeedsAction: "[ ]",
		model.StatusInProcess:   "[>]",
		model.StatusCompleted:   "[x]",
		model.StatusCancelled:   "[-]",
	}[t.Status]

	due := ""
	if t.Due != nil {
		due = " (" + t.Due.Format("Jan 2") + ")"
		if t.Due.Before(time.Now()) && !t.Status.IsDone() {
			due = urgentStyle.Render(due)
		}
	}

	dur := ""
	if t.DurationMins > 0 {
		dur = " [~" + smart.FormatDuration(t.DurationMins) + "]"
	}

	recur := ""
	if t.IsRecurring() {
		recur = " (R)"
	}

	indent := strings.Repeat("  ", t.Depth)
	line := fmt.Sprintf("  %s %s %s%s%s%s%s",
		checkbox, shortUID(t.UID), indent, t.Summary, dur, due, recur)

	switch {
	case t.Status.IsDone():
		line = doneStyle.Render(line)
	case t.Priority >= 1 && t.Priority <= 2:
		line = urgentStyle.Render(line)
	case t.Priority >= 3 && t.Priority <= 5:
		line = lowStyle.Render(line)
	}

	for _, c := range t.Categories {
		line += tagStyle.Render(" #" + c)
	}
	if eng.IsBlocked(t) {
		line += blockedStyle.Render(" [B]")
	}

	fmt.Println(line)
}
