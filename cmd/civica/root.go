package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"civica/internal/config"
	"civica/internal/repository/sqlite"
	"civica/internal/service"
)

var (
	cfgPath string
	dbPath  string
	verbose bool

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "civica",
	Short: "A city and citizen registry with unit-of-work persistence",
	Long: `Civica manages cities and their citizens over a SQLite store.
Every command runs as one atomic unit of work: relationship edits,
cascades, and deletions either all apply or none do.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, path, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded

		level := slog.LevelInfo
		if cfg.Logging.Level == "debug" || verbose {
			level = slog.LevelDebug
		} else if cfg.Logging.Level == "warn" {
			level = slog.LevelWarn
		} else if cfg.Logging.Level == "error" {
			level = slog.LevelError
		}

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.Logging.Format == "json" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))

		if path != "" {
			slog.Debug("config loaded", "path", path)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func loadConfig() (*config.Config, string, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// openManager opens the store and wraps it in a service manager. The
// returned closer must be called when the command finishes.
func openManager() (*service.Manager, func(), error) {
	path := cfg.Database.Path
	if dbPath != "" {
		path = dbPath
	}

	store, err := sqlite.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	closer := func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing store", "error", err)
		}
	}
	return service.NewManager(store, slog.Default()), closer, nil
}

// fatal prints the error and exits, matching the style of the other
// command failures.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
