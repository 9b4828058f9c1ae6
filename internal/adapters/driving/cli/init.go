package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	configfile "github.com/cohort-tools/cohort-tracker/internal/adapters/driven/config/file"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Configure credentials and discover classes",
	Long: `Prompts for provider credentials, saves them to the config file
and discovers the classes visible to the account.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	reader := bufio.NewReader(cmd.InOrStdin())

	email, err := promptLine(cmd, reader, "Provider email", cfg.Email, false)
	if err != nil {
		return err
	}
	password, err := promptLine(cmd, reader, "Provider password", cfg.Password, true)
	if err != nil {
		return err
	}

	cfg.Email = email
	cfg.Password = password
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := configfile.Save(cfg, configPath); err != nil {
		return err
	}
	cmd.Printf("Configuration saved to %s\n\n", configPath)

	// Reset any engine built with stale credentials.
	syncEngine = nil

	engine, err := ensureEngine()
	if err != nil {
		return err
	}

	cmd.Println("Discovering classes...")
	classes, err := engine.DiscoverClasses(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovering classes: %w", err)
	}

	cmd.Printf("Found %d class(es):\n\n", len(classes))
	printClasses(cmd, classes)
	cmd.Println("\nActivate the classes to track with 'cohort-tracker classes activate <class>',")
	cmd.Println("then run 'cohort-tracker sync'.")
	return nil
}

// promptLine reads one line, keeping the current value on empty input.
// Secrets are never echoed back in the prompt.
func promptLine(cmd *cobra.Command, reader *bufio.Reader, label, current string, secret bool) (string, error) {
	switch {
	case current != "" && secret:
		cmd.Printf("%s [saved]: ", label)
	case current != "":
		cmd.Printf("%s [%s]: ", label, current)
	default:
		cmd.Printf("%s: ", label)
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	return line, nil
}
