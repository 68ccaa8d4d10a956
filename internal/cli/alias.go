package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var aliasCmd = &cobra.Command{
	Use:   "alias",
	Short: "Manage tag aliases",
	Long: `Tag aliases expand one typed tag into several real ones at
task-creation time.

Commands:
  caldo alias                      # List aliases
  caldo alias add er errand urgent # "#er" now expands to #errand #urgent
  caldo alias rm er`,
	RunE: runAliasList,
}

var aliasAddCmd = &cobra.Command{
	Use:   "add [name] [tags...]",
	Short: "Add or overwrite a tag alias",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAliasAdd,
}

var aliasRmCmd = &cobra.Command{
	Use:   "rm [name]",
	Short: "Remove a tag alias",
	Args:  cobra.ExactArgs(1),
	RunE:  runAliasRm,
}

func init() {
	aliasCmd.AddCommand(aliasAddCmd)
	aliasCmd.AddCommand(aliasRmCmd)
}

func runAliasList(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	aliases := eng.GetConfig().TagAliases
	if len(aliases) == 0 {
		fmt.Println("No aliases. Add one with: caldo alias add er errand urgent")
		return nil
	}

	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  #%-12s → #%s\n", name, strings.Join(aliases[name], " #"))
	}
	return nil
}

func runAliasAdd(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.AddAlias(args[0], args[1:]); err != nil {
		return err
	}
	fmt.Printf("✓ #%s expands to #%s\n", args[0], strings.Join(args[1:], " #"))
	return nil
}

func runAliasRm(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.RemoveAlias(args[0]); err != nil {
		return err
	}
	fmt.Printf("✓ Removed alias #%s\n", args[0])
	return nil
}
