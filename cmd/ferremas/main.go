// Command ferremas runs the store API and its maintenance tasks.
//
//	ferremas serve            # HTTP + gRPC + workers + scheduler
//	ferremas migrate
//	ferremas seed
//	ferremas queue:work -w 4
//	ferremas rates:sync
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/shashiranjanraj/ferremas/database/migrations"
	"github.com/shashiranjanraj/ferremas/pkg/app"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "ferremas",
	Short:         "Ferremas store backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	rootCmd.AddCommand(queueWorkCmd)
	rootCmd.AddCommand(scheduleRunCmd)
	rootCmd.AddCommand(ratesSyncCmd)
	rootCmd.AddCommand(eventsConsumeCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// boot wires the full application for commands that need services.
func boot(ctx context.Context) (*app.App, error) {
	return app.Boot(ctx)
}
