// Package main is the entry point for the service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

// Global flags.
var (
	profile   string
	configDir string
	envFile   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ambient-pipeline",
		Short: "HTTP service with an ambient request context pipeline",
		Long: `ambient-pipeline serves a small diagnostics API behind a request pipeline
that gives every request its own ambient scope, a correlation ID, and
problem details responses for every error.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultProfile := os.Getenv("APP_ENVIRONMENT")
	if defaultProfile == "" {
		defaultProfile = "local"
	}

	cmd.PersistentFlags().StringVarP(&profile, "profile", "p", defaultProfile, "configuration profile (loads <config-dir>/<profile>.yaml)")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "configs", "directory holding base.yaml and profile files")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file exported before environment variables are read")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ambient-pipeline version %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		},
	}
}
