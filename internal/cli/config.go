package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/existflow/caldo/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update the remote account and display settings",
	Long: `Without flags, runs an interactive setup prompting for the server
URL, username and password. The password is never shown and is stored
encrypted on disk.

  caldo config                    # Interactive setup
  caldo config --show             # Print current settings
  caldo config --hide-completed   # Drop finished tasks from lists`,
	RunE: runConfig,
}

var (
	configShow          bool
	configHideCompleted bool
	configShowCompleted bool
)

func init() {
	configCmd.Flags().BoolVar(&configShow, "show", false, "Print current settings")
	configCmd.Flags().BoolVar(&configHideCompleted, "hide-completed", false, "Hide finished tasks in lists")
	configCmd.Flags().BoolVar(&configShowCompleted, "show-completed", false, "Show finished tasks in lists")
}

func runConfig(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	info := eng.GetConfig()

	if configShow {
		printConfig(info)
		return nil
	}

	if configHideCompleted || configShowCompleted {
		hide := configHideCompleted && !configShowCompleted
		if err := eng.SaveConfig(info.URL, info.Username, "", info.AllowInsecure, hide); err != nil {
			return err
		}
		if hide {
			fmt.Println("✓ Finished tasks hidden")
		} else {
			fmt.Println("✓ Finished tasks shown")
		}
		return nil
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("Server URL [%s]: ", info.URL)
	url, _ := reader.ReadString('\n')
	url = strings.TrimSpace(url)
	if url == "" {
		url = info.URL
	}

	fmt.Printf("Username [%s]: ", info.Username)
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if username == "" {
		username = info.Username
	}

	prompt := "Password: "
	if info.HasPassword {
		prompt = "Password (empty keeps current): "
	}
	fmt.Print(prompt)
	passwordBytes, _ := term.ReadPassword(int(syscall.Stdin))
	password := string(passwordBytes)
	fmt.Println()

	if err := eng.SaveConfig(url, username, password, info.AllowInsecure, info.HideCompleted); err != nil {
		return err
	}
	fmt.Println("✓ Settings saved. Run: caldo sync")
	return nil
}

func printConfig(info engine.ConfigInfo) {
	fmt.Printf("  Server URL:       %s\n", valueOr(info.URL, "(not set)"))
	fmt.Printf("  Username:         %s\n", valueOr(info.Username, "(not set)"))
	if info.HasPassword {
		fmt.Println("  Password:         ********")
	} else {
		fmt.Println("  Password:         (not set)")
	}
	fmt.Printf("  Allow insecure:   %v\n", info.AllowInsecure)
	fmt.Printf("  Hide completed:   %v\n", info.HideCompleted)
	fmt.Printf("  Default calendar: %s\n", valueOr(info.DefaultCalendar, "(local)"))
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
