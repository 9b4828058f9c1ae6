package main

import (
	"github.com/joho/godotenv"

	"github.com/cohort-tools/cohort-tracker/internal/adapters/driving/cli"
)

func main() {
	// Optional .env supplying COHORT_* overrides for local development.
	godotenv.Load() //nolint:errcheck

	cli.Execute()
}
