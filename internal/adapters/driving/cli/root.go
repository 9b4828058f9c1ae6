// Package cli implements the command-line interface using cobra.
// Commands wire the configured provider, store and services together
// and render results for the terminal.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	configfile "github.com/cohort-tools/cohort-tracker/internal/adapters/driven/config/file"
	"github.com/cohort-tools/cohort-tracker/internal/adapters/driven/lms/openclass"
	"github.com/cohort-tools/cohort-tracker/internal/adapters/driven/storage/sqlite"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driving"
	"github.com/cohort-tools/cohort-tracker/internal/core/services"
	"github.com/cohort-tools/cohort-tracker/internal/logger"
	"github.com/cohort-tools/cohort-tracker/internal/ratelimit"
)

var (
	configPath string
	dataDir    string
	verbose    bool

	cfg *configfile.Config

	// Wired lazily: init and help must work without a database or
	// credentials.
	store         *sqlite.Store
	syncEngine    driving.SyncEngine
	reportService driving.Reports
)

var rootCmd = &cobra.Command{
	Use:   "cohort-tracker",
	Short: "Track student progress across LMS cohorts",
	Long: `cohort-tracker synchronises student progress data from an LMS
provider into a local SQLite database and serves analytics over it:
completion metrics, blocker detection, student health and more.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)

		if configPath == "" {
			dir, err := configfile.DefaultConfigDir()
			if err != nil {
				return err
			}
			configPath = filepath.Join(dir, "config.toml")
		}

		loaded, err := configfile.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if dataDir == "" {
			dataDir = cfg.DataDir
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.cohort-tracker/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "database directory (default ~/.cohort-tracker/data)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() {
	defer func() {
		if store != nil {
			store.Close() //nolint:errcheck
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ensureStore opens the SQLite store on first use.
func ensureStore() (*sqlite.Store, error) {
	if store != nil {
		return store, nil
	}
	s, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	store = s
	return store, nil
}

// ensureEngine builds the sync engine from the configured provider.
func ensureEngine() (driving.SyncEngine, error) {
	if syncEngine != nil {
		return syncEngine, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (run 'cohort-tracker init' first)", err)
	}

	s, err := ensureStore()
	if err != nil {
		return nil, err
	}

	provider, err := openclass.New(openclass.Config{
		Email:    cfg.Email,
		Password: cfg.Password,
		BaseURL:  cfg.APIBase,
		AppID:    cfg.AppID,
		Origin:   cfg.Origin,
	})
	if err != nil {
		return nil, err
	}

	interval := ratelimit.DefaultInterval
	if cfg.RequestIntervalMS > 0 {
		interval = time.Duration(cfg.RequestIntervalMS) * time.Millisecond
	}
	pacer := ratelimit.NewPacer(interval)

	syncEngine = services.NewSyncEngine(provider, pacer, s.ClassStore(), s.RosterStore(), s.SyncLogStore())
	return syncEngine, nil
}

// ensureReports builds the report service.
func ensureReports() (driving.Reports, error) {
	if reportService != nil {
		return reportService, nil
	}
	s, err := ensureStore()
	if err != nil {
		return nil, err
	}
	reportService = services.NewReportService(s.RosterStore(), s.SyncLogStore(), s.AnalyticsStore())
	return reportService, nil
}
