package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "Manage discovered classes",
}

var classesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known classes",
	RunE:  runClassesList,
}

var classesDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Fetch the class list from the provider",
	RunE:  runClassesDiscover,
}

var classesActivateCmd = &cobra.Command{
	Use:   "activate <class>",
	Short: "Include a class in sync runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setClassActive(cmd, args[0], true)
	},
}

var classesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <class>",
	Short: "Exclude a class from sync runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setClassActive(cmd, args[0], false)
	},
}

func init() {
	classesCmd.AddCommand(classesListCmd)
	classesCmd.AddCommand(classesDiscoverCmd)
	classesCmd.AddCommand(classesActivateCmd)
	classesCmd.AddCommand(classesDeactivateCmd)
	rootCmd.AddCommand(classesCmd)
}

func runClassesList(cmd *cobra.Command, _ []string) error {
	s, err := ensureStore()
	if err != nil {
		return err
	}

	classes, err := s.ClassStore().List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing classes: %w", err)
	}
	if len(classes) == 0 {
		cmd.Println("No classes known. Run 'cohort-tracker classes discover' first.")
		return nil
	}

	printClasses(cmd, classes)
	return nil
}

func runClassesDiscover(cmd *cobra.Command, _ []string) error {
	engine, err := ensureEngine()
	if err != nil {
		return err
	}

	classes, err := engine.DiscoverClasses(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovering classes: %w", err)
	}

	cmd.Printf("Discovered %d class(es):\n\n", len(classes))
	printClasses(cmd, classes)
	cmd.Println("\nActivate classes to sync with 'cohort-tracker classes activate <class>'.")
	return nil
}

func setClassActive(cmd *cobra.Command, ref string, active bool) error {
	s, err := ensureStore()
	if err != nil {
		return err
	}

	class, err := resolveClass(cmd.Context(), ref)
	if err != nil {
		return err
	}

	if err := s.ClassStore().SetActive(cmd.Context(), class.ID, active); err != nil {
		return fmt.Errorf("updating class: %w", err)
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	cmd.Printf("Class %s (%s) %s.\n", class.Name, class.FriendlyID, state)
	return nil
}

// resolveClass looks a class up by provider ID or friendly ID.
func resolveClass(ctx context.Context, ref string) (*domain.Class, error) {
	s, err := ensureStore()
	if err != nil {
		return nil, err
	}

	class, err := s.ClassStore().Get(ctx, ref)
	if err == nil {
		return class, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	class, err = s.ClassStore().GetByFriendlyID(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrClassNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return class, nil
}

func printClasses(cmd *cobra.Command, classes []domain.Class) {
	for _, class := range classes {
		marker := " "
		if class.Active {
			marker = "*"
		}
		synced := "never"
		if class.SyncedAt != nil {
			synced = class.SyncedAt.Local().Format("2006-01-02 15:04")
		}
		cmd.Printf("%s %-30s %-20s last sync: %s\n", marker, class.Name, class.FriendlyID, synced)
	}
}
