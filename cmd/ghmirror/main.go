// Package main provides the CLI entrypoint for ghmirror.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JohanCodinha/ghmirror/internal/budget"
	"github.com/JohanCodinha/ghmirror/internal/config"
	"github.com/JohanCodinha/ghmirror/internal/gh"
	"github.com/JohanCodinha/ghmirror/internal/logger"
	"github.com/JohanCodinha/ghmirror/internal/store"
	"github.com/JohanCodinha/ghmirror/internal/sync"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	flagConfig   string
	flagDB       string
	flagBudget   int
	flagLogLevel string
	flagDaemon   bool
)

var rootCmd = &cobra.Command{
	Use:   "ghmirror",
	Short: "Mirror a GitHub repository's issues and pull requests locally",
	Long: `ghmirror keeps an incremental local mirror of a GitHub repository's
issues, pull requests and comments in SQLite, staying within a
configurable API call budget per quota window.`,
}

var syncCmd = &cobra.Command{
	Use:   "sync <owner/repo>",
	Short: "Run sync cycles against the remote repository",
	Long: `Run one sync cycle, or keep cycling with --daemon.

Each cycle fetches at most the configured call budget and persists its
progress, so interrupted work resumes exactly where it stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

var resyncCmd = &cobra.Command{
	Use:   "resync <owner/repo>",
	Short: "Schedule a full re-enumeration of the mirror",
	Long: `Clear all pagination cursors and flag every comment collection stale,
so the following sync cycles re-enumerate the repository from scratch.
Mirrored data is kept and merged over.`,
	Args: cobra.ExactArgs(1),
	RunE: runResync,
}

var statsCmd = &cobra.Command{
	Use:   "stats <owner/repo>",
	Short: "Show what the mirror currently holds",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "path to the SQLite mirror database")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	syncCmd.Flags().IntVar(&flagBudget, "budget", 0, "maximum API calls per quota window")
	syncCmd.Flags().BoolVar(&flagDaemon, "daemon", false, "keep running cycles until interrupted")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(resyncCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig resolves the effective configuration from the config file, the
// repo argument and flag overrides.
func loadConfig(repo string) (*config.Config, error) {
	var cfg *config.Config
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default(repo)
		path, err := defaultDBPath(cfg)
		if err != nil {
			return nil, err
		}
		cfg.DatabasePath = path
	}

	if repo != "" {
		cfg.Repository = repo
	}
	if flagDB != "" {
		cfg.DatabasePath = flagDB
	}
	if flagBudget > 0 {
		cfg.Budget = flagBudget
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	return cfg, nil
}

// defaultDBPath places the mirror under ~/.cache/ghmirror/{owner}_{repo}.db
// when no config file or flag names one.
func defaultDBPath(cfg *config.Config) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	owner, name := cfg.OwnerName()
	dir := filepath.Join(homeDir, ".cache", "ghmirror")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.db", owner, name)), nil
}

// buildEngine wires the full stack for the configured repository.
func buildEngine(cfg *config.Config) (*sync.Engine, *store.DB, error) {
	token := cfg.GitHubToken
	if token == "" {
		t, err := gh.GetToken()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get GitHub token: %w\nRun 'gh auth login' to authenticate", err)
		}
		token = t
	}

	db, err := store.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize mirror database: %w", err)
	}

	owner, name := cfg.OwnerName()
	client := gh.New(token, owner, name)
	client.SetPerPage(cfg.PerPage)

	// GitHub's quota window rolls over hourly.
	resetAt := time.Now().Truncate(time.Hour).Add(time.Hour)
	tracker := budget.New(cfg.Budget, resetAt)

	eng := sync.New(db, client, tracker, cfg.Repository)
	eng.SetWorkers(cfg.Workers)
	eng.SetRetryPolicy(cfg.RetryAttempts, 500*time.Millisecond)
	if cfg.JournalDir != "" {
		if err := eng.SetConflictJournal(cfg.JournalDir); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return eng, db, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	eng, db, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagDaemon {
		fmt.Printf("mirroring %s every %ds (budget %d calls/window), Ctrl+C to stop\n",
			cfg.Repository, cfg.IntervalSeconds, cfg.Budget)
		err := eng.Run(ctx, time.Duration(cfg.IntervalSeconds)*time.Second)
		if err != nil && ctx.Err() == nil {
			return err
		}
		fmt.Println("stopped")
		return nil
	}

	res, err := eng.RunCycle(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("cycle %s: %s (%d calls, %d deferred)\n",
		res.CycleID, res.Report, res.Calls, res.Deferred)
	return nil
}

func runResync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	eng, db, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := eng.FullResync(); err != nil {
		return err
	}
	fmt.Println("full resync scheduled; run 'ghmirror sync' to start re-enumerating")
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	db, err := store.InitDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open mirror database: %w", err)
	}
	defer db.Close()

	stats, err := db.GetStats()
	if err != nil {
		return err
	}

	fmt.Printf("mirror of %s at %s\n", cfg.Repository, cfg.DatabasePath)
	fmt.Printf("  issues:     %s\n", humanize.Comma(int64(stats.Issues)))
	fmt.Printf("  pulls:      %s\n", humanize.Comma(int64(stats.Pulls)))
	fmt.Printf("  comments:   %s\n", humanize.Comma(int64(stats.Comments)))
	fmt.Printf("  tombstones: %s\n", humanize.Comma(int64(stats.Tombstones)))
	fmt.Printf("  stale:      %s\n", humanize.Comma(int64(stats.StaleItems)))

	scope, err := db.GetScope()
	if err != nil {
		return err
	}
	if scope != nil && scope.LastFullSync != "" {
		if t, perr := time.Parse(time.RFC3339, scope.LastFullSync); perr == nil {
			fmt.Printf("  last full enumeration: %s\n", humanize.Time(t))
		} else {
			fmt.Printf("  last full enumeration: %s\n", scope.LastFullSync)
		}
	} else {
		fmt.Println("  last full enumeration: never")
	}
	return nil
}
