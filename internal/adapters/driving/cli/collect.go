package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

var collectSince string

var collectCmd = &cobra.Command{
	Use:   "collect [connector]",
	Short: "Collect reputation events from sources",
	Long: `Runs event collection from configured sources.
If a connector name is provided, only that source is collected.
Otherwise, all sources are collected concurrently.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringVar(&collectSince, "since", "720h",
		"Collection window start: a duration (720h) or a date (2006-01-02)")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	if collectorService == nil {
		return errors.New("collector service not configured")
	}

	since, err := parseSince(collectSince)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if len(args) > 0 {
		connector := args[0]
		cmd.Printf("Collecting from %s...\n", connector)

		result, err := collectorService.Run(ctx, connector, since)
		printRunResult(cmd, result)
		if err != nil {
			return fmt.Errorf("collection failed: %w", err)
		}
		return nil
	}

	cmd.Println("Collecting from all sources...")
	results, err := collectorService.RunAll(ctx, since)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		printRunResult(cmd, results[name])
		if results[name].State == domain.RunFailed {
			failed++
		}
	}
	if failed > 0 {
		cmd.Printf("%d of %d sources failed.\n", failed, len(results))
	}
	return nil
}

// parseSince accepts either a lookback duration or an absolute date.
func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(-d), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q: want a duration or a 2006-01-02 date", s)
}

func printRunResult(cmd *cobra.Command, result domain.RunResult) {
	cmd.Printf("%s: %s\n", result.Connector, result.State)
	cmd.Printf("  fetched %d, normalized %d, stored %d, failed %d (%s)\n",
		result.Fetched, result.Normalized, result.Stored, result.Failed,
		result.Duration.Round(time.Millisecond))
	if result.Err != "" {
		cmd.Printf("  error: %s\n", result.Err)
	}
}
