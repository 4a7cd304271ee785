// Package main provides the entry point for the salvage CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gitforensics/salvage/cmd/salvage/commands"
	"github.com/gitforensics/salvage/pkg/version"
)

func main() {
	// Interrupts cancel the context; phases honor it at their boundaries,
	// so an in-flight write always reaches its checkpoint first.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "salvage",
		Short: "Salvage - repository recovery and forensics engine",
		Long: `Salvage recovers lost or corrupted files from a git repository's object
store. It mines every surviving copy across branches, reflogs, unreachable
objects, and remotes, ranks the candidates deterministically, and performs
checkpointed surgical writes on an isolated emergency branch, with every
decision recorded in a tamper-evident audit ledger.

Commands:
  mine      Start a session and enumerate recovery candidates
  score     Rank candidates per target path
  recover   Write explicitly selected candidates
  validate  Validate recovered files and close the session
  report    Verify the ledger and write the session report
  abort     Abort a session and roll back`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewMineCommand())
	rootCmd.AddCommand(commands.NewScoreCommand())
	rootCmd.AddCommand(commands.NewRecoverCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewAbortCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "salvage %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
