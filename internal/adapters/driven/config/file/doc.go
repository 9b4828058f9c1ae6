// Package file provides file-based configuration storage.
// Credentials and provider settings are stored in a TOML file within
// the cohort-tracker config directory, with environment variable
// overrides for containerised deployments.
package file
