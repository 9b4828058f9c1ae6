package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cohort-tools/cohort-tracker/internal/adapters/driving/api"
	"github.com/cohort-tools/cohort-tracker/internal/core/ports/driving"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	Long: `Serves class listings and analytics reports over HTTP. With
valid credentials configured, POST /api/sync triggers a sync run; in a
read-only setup the dashboard works without credentials.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := ensureStore()
	if err != nil {
		return err
	}
	reports, err := ensureReports()
	if err != nil {
		return err
	}

	// The sync route needs credentials; without them the dashboard
	// still serves reports.
	var engine driving.SyncEngine
	if cfg.Validate() == nil {
		engine, err = ensureEngine()
		if err != nil {
			return err
		}
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	if addr == "" {
		addr = ":8080"
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(reports, engine, s.ClassStore())
	return server.ListenAndServe(ctx, addr)
}
