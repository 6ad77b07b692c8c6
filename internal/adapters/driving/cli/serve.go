package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled collection in the foreground",
	Long: `Starts the background scheduler and keeps collecting on the
configured interval until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if schedulerService == nil {
		return errors.New("scheduler service not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := schedulerService.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	cmd.Println("Scheduler running. Press Ctrl+C to stop.")

	<-ctx.Done()
	cmd.Println("\nStopping...")
	if err := schedulerService.Stop(); err != nil {
		return fmt.Errorf("stopping scheduler: %w", err)
	}
	return nil
}
