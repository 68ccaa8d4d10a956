package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var calendarsCmd = &cobra.Command{
	Use:     "calendars",
	Aliases: []string{"cals"},
	Short:   "Manage calendars",
	Long: `List calendars and manage visibility and the default.

Commands:
  caldo calendars                   # List calendars
  caldo calendars show [href]       # Show a hidden calendar
  caldo calendars hide [href]       # Hide a calendar from views
  caldo calendars default [href]    # Route new tasks to a calendar`,
	RunE: runCalendars,
}

var calShowCmd = &cobra.Command{
	Use:   "show [href]",
	Short: "Show a hidden calendar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCalVisibility(args[0], true)
	},
}

var calHideCmd = &cobra.Command{
	Use:   "hide [href]",
	Short: "Hide a calendar from views",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCalVisibility(args[0], false)
	},
}

var calDefaultCmd = &cobra.Command{
	Use:   "default [href]",
	Short: "Set the default calendar for new tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runCalDefault,
}

func init() {
	calendarsCmd.AddCommand(calShowCmd)
	calendarsCmd.AddCommand(calHideCmd)
	calendarsCmd.AddCommand(calDefaultCmd)
}

func runCalendars(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	for _, c := range eng.GetCalendars() {
		check := "[ ]"
		if c.IsVisible {
			check = "[x]"
		}
		marker := " "
		if c.IsDefault {
			marker = ">"
		}
		origin := ""
		if c.IsLocal {
			origin = " (local)"
		}
		fmt.Printf("%s %s %s%s\n    %s\n", marker, check, c.Name, origin, c.Href)
	}
	return nil
}

func setCalVisibility(href string, visible bool) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.SetCalendarVisibility(href, visible); err != nil {
		return err
	}
	state := "hidden"
	if visible {
		state = "visible"
	}
	fmt.Printf("✓ Calendar %s is now %s\n", href, state)
	return nil
}

func runCalDefault(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.SetDefaultCalendar(args[0]); err != nil {
		return err
	}
	fmt.Printf("✓ Default calendar is now %s\n", args[0])
	return nil
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags with task counts",
	RunE:  runTags,
}

func runTags(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	tags := eng.GetAllTags()
	if len(tags) == 0 {
		fmt.Println("No tasks yet")
		return nil
	}
	for _, t := range tags {
		if t.IsUncategorized() {
			fmt.Printf("  (untagged)  %d\n", t.Count)
			continue
		}
		fmt.Printf("  #%-12s %d\n", t.Name, t.Count)
	}
	return nil
}
