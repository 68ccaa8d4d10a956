// Package cli is the thin command surface over the engine. Commands
// read instantly from the local cache; nothing here waits on the
// network except an explicit sync.
package cli

import (
	"fmt"
	"strings"

	"github.com/existflow/caldo/internal/config"
	"github.com/existflow/caldo/internal/engine"
	"github.com/existflow/caldo/internal/logger"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
)

var rootCmd = &cobra.Command{
	Use:   "caldo",
	Short: "Caldo - local-first todo client for remote calendars",
	Long: `Caldo keeps a local snapshot of your remote task calendars, applies
changes instantly, and reconciles with the server in the background.

Tasks use smart syntax: !priority @date #tag ~duration and free text.

  caldo add "!2 @tomorrow #work Buy milk"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			logger.Warn("Failed to load config, using defaults", logger.F("error", err))
			cfg = config.DefaultConfig()
		}

		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
		}

		logConfig := logger.Config{
			Level:      logger.ParseLevel(cfg.LogLevel),
			FilePath:   cfg.LogFile,
			MaxSizeMB:  10,
			MaxAge:     7,
			MaxBackups: 5,
			Console:    cfg.LogConsole,
		}

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Info("Caldo started", logger.F("command", cmd.Name()))
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		// Bare invocation shows the task list.
		return runList(cmd, args)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("Caldo exiting", logger.F("command", cmd.Name()))
		logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(prioCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(calendarsCmd)
	rootCmd.AddCommand(aliasCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(configCmd)
}

// openEngine loads config, opens the cache and populates it. Every
// command goes through here so startup never touches the network.
func openEngine() (*engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("Failed to load config, using defaults", logger.F("error", err))
		cfg = config.DefaultConfig()
	}

	eng, err := engine.Open(cfg)
	if err != nil {
		return nil, err
	}
	eng.LoadFromCache()
	return eng, nil
}

// resolveUID expands a uid prefix typed on the command line to the full
// uid, erroring when it is unknown or ambiguous.
func resolveUID(eng *engine.Engine, prefix string) (string, error) {
	snap := eng.Snapshot()
	if _, ok := snap.Tasks[prefix]; ok {
		return prefix, nil
	}

	var matches []string
	for uid := range snap.Tasks {
		if strings.HasPrefix(uid, prefix) {
			matches = append(matches, uid)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no task matches %q", prefix)
	default:
		return "", fmt.Errorf("%q is ambiguous (%d matches)", prefix, len(matches))
	}
}
