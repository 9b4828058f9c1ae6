package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	reportClass string
	reportLimit int
	reportNight string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analytics reports over synced data",
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Headline completion numbers for a class",
	RunE:  runReportSummary,
}

var reportBlockersCmd = &cobra.Command{
	Use:   "blockers",
	Short: "Assignments with the lowest completion",
	RunE:  runReportBlockers,
}

var reportHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Per-student risk tiers",
	RunE:  runReportHealth,
}

var reportActivityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Engagement recency per student",
	RunE:  runReportActivity,
}

var reportSectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "Per-section class advancement",
	RunE:  runReportSections,
}

func init() {
	reportCmd.PersistentFlags().StringVar(&reportClass, "class", "", "class to report on (ID or friendly ID)")
	reportBlockersCmd.Flags().IntVar(&reportLimit, "limit", 10, "number of blockers to show")
	reportActivityCmd.Flags().StringVar(&reportNight, "night", "", "restrict to one cohort night")

	reportCmd.AddCommand(reportSummaryCmd)
	reportCmd.AddCommand(reportBlockersCmd)
	reportCmd.AddCommand(reportHealthCmd)
	reportCmd.AddCommand(reportActivityCmd)
	reportCmd.AddCommand(reportSectionsCmd)
	rootCmd.AddCommand(reportCmd)
}

// reportClassID resolves the --class flag, required for all reports.
func reportClassID(cmd *cobra.Command) (string, error) {
	if reportClass == "" {
		return "", fmt.Errorf("--class is required")
	}
	class, err := resolveClass(cmd.Context(), reportClass)
	if err != nil {
		return "", err
	}
	cmd.Printf("Class: %s (%s)\n\n", class.Name, class.FriendlyID)
	return class.ID, nil
}

func runReportSummary(cmd *cobra.Command, _ []string) error {
	reports, err := ensureReports()
	if err != nil {
		return err
	}
	classID, err := reportClassID(cmd)
	if err != nil {
		return err
	}

	summary, err := reports.Summary(cmd.Context(), classID)
	if err != nil {
		return err
	}

	cmd.Printf("Students:        %d\n", summary.TotalStudents)
	cmd.Printf("Assignments:     %d\n", summary.TotalAssignments)
	cmd.Printf("Progressions:    %d\n", summary.TotalRecords)
	cmd.Printf("Completion rate: %.1f%%\n", summary.CompletionRate*100)
	if summary.AvgGrade != nil {
		cmd.Printf("Average grade:   %.1f%%\n", *summary.AvgGrade*100)
	}
	return nil
}

func runReportBlockers(cmd *cobra.Command, _ []string) error {
	reports, err := ensureReports()
	if err != nil {
		return err
	}
	classID, err := reportClassID(cmd)
	if err != nil {
		return err
	}

	blockers, err := reports.Blockers(cmd.Context(), classID, reportLimit)
	if err != nil {
		return err
	}

	for _, b := range blockers {
		section := ""
		if b.Section != nil {
			section = " (" + *b.Section + ")"
		}
		cmd.Printf("%-40s%s %d/%d completed (%.0f%%)\n",
			b.Name, section, b.Completions, b.TotalStudents, b.CompletionRate*100)
	}
	return nil
}

func runReportHealth(cmd *cobra.Command, _ []string) error {
	reports, err := ensureReports()
	if err != nil {
		return err
	}
	classID, err := reportClassID(cmd)
	if err != nil {
		return err
	}

	students, err := reports.StudentHealth(cmd.Context(), classID)
	if err != nil {
		return err
	}

	for _, s := range students {
		grade := "-"
		if s.AvgGrade != nil {
			grade = fmt.Sprintf("%.0f%%", *s.AvgGrade*100)
		}
		cmd.Printf("%-8s %-25s %d/%d done, avg %s\n",
			strings.ToUpper(s.Risk), s.FirstName+" "+s.LastName, s.Completed, s.TotalAssignments, grade)
	}
	return nil
}

func runReportActivity(cmd *cobra.Command, _ []string) error {
	reports, err := ensureReports()
	if err != nil {
		return err
	}
	classID, err := reportClassID(cmd)
	if err != nil {
		return err
	}

	var night *string
	if reportNight != "" {
		night = &reportNight
	}

	activities, err := reports.StudentActivity(cmd.Context(), classID, night)
	if err != nil {
		return err
	}

	for _, a := range activities {
		recency := "no activity yet"
		if a.DaysInactive != nil {
			recency = fmt.Sprintf("%d day(s) since last completion", *a.DaysInactive)
		}
		cmd.Printf("%-25s %d/%d done, %s\n",
			a.FirstName+" "+a.LastName, a.TotalCompletions, a.TotalAssignments, recency)
	}
	return nil
}

func runReportSections(cmd *cobra.Command, _ []string) error {
	reports, err := ensureReports()
	if err != nil {
		return err
	}
	classID, err := reportClassID(cmd)
	if err != nil {
		return err
	}

	sections, err := reports.SectionProgress(cmd.Context(), classID)
	if err != nil {
		return err
	}

	for _, s := range sections {
		cmd.Printf("%-30s started %d/%d, completed %d/%d\n",
			s.Section, s.StudentsStarted, s.TotalStudents, s.StudentsCompleted, s.TotalStudents)
	}
	return nil
}
