package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

var syncFull bool

var syncCmd = &cobra.Command{
	Use:   "sync [class]",
	Short: "Synchronise student progress from the provider",
	Long: `Fetches student progress data for active classes and stores it
locally. By default the walk stops once it reaches data that is already
stored; --full re-walks every page from the beginning.

If a class is given, only that class is synchronised.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "re-fetch every page instead of stopping at known data")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	engine, err := ensureEngine()
	if err != nil {
		return err
	}

	mode := domain.SyncIncremental
	if syncFull {
		mode = domain.SyncFull
	}

	// Ctrl-C stops at the next page boundary; committed pages stay.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.SetProgressFunc(func(classID string, page, records int) {
		cmd.Printf("  %s: page %d done, %d records so far\n", classID, page, records)
	})

	var stats domain.SyncStats
	if len(args) > 0 {
		class, err := resolveClass(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Synchronising %s (%s)...\n", class.Name, class.FriendlyID)
		stats, err = engine.RunClass(ctx, class.ID, mode)
		if err != nil {
			return reportSyncError(cmd, stats, err)
		}
	} else {
		cmd.Printf("Synchronising all active classes (%s mode)...\n", mode)
		stats, err = engine.Run(ctx, mode)
		if err != nil {
			return reportSyncError(cmd, stats, err)
		}
	}

	cmd.Printf("\nSync complete: %d page(s), %d record(s).\n", stats.PagesFetched, stats.TotalRecords)
	for classID, classErr := range stats.PerClassErrors {
		cmd.Printf("  failed: %s: %v\n", classID, classErr)
	}
	if stats.Failed() {
		return fmt.Errorf("%d class(es) failed to sync", len(stats.PerClassErrors))
	}
	return nil
}

func reportSyncError(cmd *cobra.Command, stats domain.SyncStats, err error) error {
	if errors.Is(err, domain.ErrSyncCancelled) {
		cmd.Printf("\nSync cancelled: %d page(s) committed before stopping.\n", stats.PagesFetched)
		return nil
	}
	if errors.Is(err, domain.ErrNoActiveClasses) {
		return fmt.Errorf("no active classes; run 'cohort-tracker classes discover' and activate one")
	}
	return err
}
