package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_CommandsRegistered(t *testing.T) {
	expected := []string{
		"init",
		"sync [class]",
		"classes",
		"status",
		"report",
		"serve",
		"version",
	}

	registered := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Use] = true
	}

	for _, use := range expected {
		assert.True(t, registered[use], "command %q should be registered", use)
	}
}

func TestSyncCmd_HelpOutput(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"sync", "--help"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "--full")
	assert.Contains(t, output, "already")
}

func TestClassesCmd_Subcommands(t *testing.T) {
	subs := map[string]bool{}
	for _, cmd := range classesCmd.Commands() {
		subs[cmd.Name()] = true
	}
	for _, name := range []string{"list", "discover", "activate", "deactivate"} {
		assert.True(t, subs[name], "classes %s should be registered", name)
	}
}

func TestReportCmd_Subcommands(t *testing.T) {
	subs := map[string]bool{}
	for _, cmd := range reportCmd.Commands() {
		subs[cmd.Name()] = true
	}
	for _, name := range []string{"summary", "blockers", "health", "activity", "sections"} {
		assert.True(t, subs[name], "report %s should be registered", name)
	}
}

func TestVersionCmd_Output(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--config", t.TempDir() + "/config.toml", "version"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath = ""
	})

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "cohort-tracker version")
}
