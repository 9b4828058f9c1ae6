package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusClass string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local database counts and last sync time",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusClass, "class", "", "restrict to one class (ID or friendly ID)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	reports, err := ensureReports()
	if err != nil {
		return err
	}

	classID := ""
	if statusClass != "" {
		class, err := resolveClass(cmd.Context(), statusClass)
		if err != nil {
			return err
		}
		classID = class.ID
		cmd.Printf("Class: %s (%s)\n", class.Name, class.FriendlyID)
	}

	health, err := reports.Health(cmd.Context(), classID)
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	cmd.Printf("Students:     %d\n", health.Students)
	cmd.Printf("Assignments:  %d\n", health.Assignments)
	cmd.Printf("Progressions: %d\n", health.ProgressCount)
	if health.LastSync != nil {
		cmd.Printf("Last sync:    %s\n", health.LastSync.Local().Format("2006-01-02 15:04:05"))
	} else {
		cmd.Println("Last sync:    never")
	}
	return nil
}
