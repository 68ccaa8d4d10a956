package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending changes and fetch the remote state",
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Println("🔄 Syncing...")
	res, err := eng.Sync(context.Background())
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if res.Offline {
		fmt.Println("✓ Offline mode, no remote configured. Run: caldo config")
		return nil
	}
	fmt.Printf("✓ Synced: pushed %d, pulled %d", res.Pushed, res.Pulled)
	if res.Dropped > 0 {
		fmt.Printf(", dropped %d stale change(s)", res.Dropped)
	}
	fmt.Println()
	return nil
}
